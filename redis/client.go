package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	jsonpatch "github.com/evanphx/json-patch"
	"github.com/go-redis/redis/v8"
	"github.com/kelseyhightower/envconfig"
)

type DB int
type ReleaseLock func() error

// ErrKeyMissing distinguishes "no such document" from transport failures.
var ErrKeyMissing = errors.New("key not found")

type Client struct {
	client         redis.UniversalClient
	lockExpiration time.Duration
}

var ctx = context.Background()

type Config struct {
	LockExpirationSeconds   int     `envconfig:"CRA_COMN_REDIS_LOCK_EXPIRATION" default:"3"`
	Host                    string  `envconfig:"CRA_COMN_REDIS_HOST" required:"true"`
	Port                    string  `envconfig:"CRA_COMN_REDIS_PORT" required:"true"`
	HASentinelPort          string  `envconfig:"CRA_COMN_REDIS_HA_SENTINEL_PORT" default:"26379"`
	HASentinelMasterName    string  `envconfig:"CRA_COMN_REDIS_HA_MASTER_NAME" default:"mymaster"`
	Password                string  `envconfig:"CRA_COMN_REDIS_AUTH_PASSWORD" default:"0"`
	AuthRequired            bool    `envconfig:"CRA_COMN_REDIS_AUTH_REQUIRED" default:"false"`
	HAMode                  bool    `envconfig:"CRA_COMN_REDIS_HA_MODE" default:"false"`
	HASentinelSocketTimeout float32 `envconfig:"CRA_COMN_REDIS_SOCKET_TIMEOUT" default:"0.5"`
}

func NewClient(db DB) (Client, error) {
	cfg, err := readEnvironment()
	if err != nil {
		return Client{}, err
	}
	var client redis.UniversalClient
	if cfg.HAMode {
		client = CreateClusterClient(cfg, db)
	} else {
		client = CreateClient(cfg, db)
	}
	return Client{
		client:         client,
		lockExpiration: time.Duration(cfg.LockExpirationSeconds) * time.Second,
	}, nil
}

func CreateClusterClient(cfg *Config, db DB) *redis.ClusterClient {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.HASentinelPort)
	timeout := time.Duration(cfg.HASentinelSocketTimeout) * time.Second
	options := redis.FailoverOptions{
		SentinelAddrs: []string{addr},
		ReadTimeout:   timeout,
		WriteTimeout:  timeout,
		MaxRetries:    6,
		DB:            int(db),
		MasterName:    cfg.HASentinelMasterName,
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewFailoverClusterClient(&options)
}

func CreateClient(cfg *Config, db DB) *redis.Client {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	options := redis.Options{
		Addr:       addr,
		MaxRetries: 6,
		DB:         int(db),
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewClient(&options)
}

func (client *Client) GetDocument(redisKey string, doc interface{}) error {
	response := client.client.Get(ctx, redisKey)
	if err := response.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrKeyMissing
		}
		return err
	}
	b, err := response.Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, doc)
}

// SaveDocumentIfAbsent writes the document only when the key does not exist
// yet. Returns false when another writer got there first.
func (client *Client) SaveDocumentIfAbsent(redisKey string, doc interface{}) (bool, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}
	return client.client.SetNX(ctx, redisKey, b, 0).Result()
}

func (client *Client) SaveDocument(redisKey string, doc interface{}) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return client.client.Set(ctx, redisKey, b, 0).Err()
}

// UpdateDocument performs a locked read-modify-write. The mutated document is
// applied to the stored JSON as an RFC 7386 merge patch, so fields written by
// other services and unknown to doc's type survive the update.
func (client *Client) UpdateDocument(redisKey string, doc interface{}, mutate func()) (err error) {
	releaseLock, err := client.Lock(redisKey)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := releaseLock(); err == nil {
			err = releaseErr
		}
	}()
	response := client.client.Get(ctx, redisKey)
	if rErr := response.Err(); rErr != nil {
		if errors.Is(rErr, redis.Nil) {
			return ErrKeyMissing
		}
		return rErr
	}
	original, err := response.Bytes()
	if err != nil {
		return err
	}
	if err = json.Unmarshal(original, doc); err != nil {
		return err
	}
	mutate()
	patch, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	merged, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return err
	}
	return client.client.Set(ctx, redisKey, merged, 0).Err()
}

// PushToList prepends an entry, keeping the list ordered most recent first.
func (client *Client) PushToList(redisKey string, entry interface{}) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return client.client.LPush(ctx, redisKey, b).Err()
}

func (client *Client) GetList(redisKey string) ([][]byte, error) {
	values, err := client.client.LRange(ctx, redisKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = []byte(v)
	}
	return out, nil
}

func (client *Client) Exists(redisKey string) (bool, error) {
	n, err := client.client.Exists(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (client *Client) Lock(redisKey string) (ReleaseLock, error) {
	lockCl := redislock.New(client.client)
	str := redislock.LimitRetry(redislock.LinearBackoff(time.Second), 20)
	lockKey := fmt.Sprintf("lock:%s", redisKey)
	lock, err := lockCl.Obtain(ctx, lockKey, client.lockExpiration, &redislock.Options{RetryStrategy: str})
	if err != nil {
		return nil, err
	}
	return func() error {
		return lock.Release(ctx)
	}, nil
}

func (client *Client) Close() error {
	return client.client.Close()
}

func readEnvironment() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
