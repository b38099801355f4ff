package s3client

import (
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/kelseyhightower/envconfig"

	"clinsight.com/cra/logger"
)

// Client writes pipeline artifacts to the report bucket. Stage outputs and the
// final report are the only things the pipeline persists besides run state.
type Client struct {
	sess       *session.Session
	bucketName string
	env        EnvironmentConfig
}

type EnvironmentConfig struct {
	BucketName  string `envconfig:"CRA_COMN_STORAGE_CONTAINER_NAME" required:"true"`
	Region      string `envconfig:"CRA_COMN_AWS_REGION_NAME" required:"true"`
	Env         string `envconfig:"CRA_ENV" default:"prod"`
	AwsEndpoint string `envconfig:"CRA_COMN_AWS_ENDPOINT_URL" default:""`
	AccessKeyID string `envconfig:"CRA_COMN_AWS_ACCESS_ID" default:""`
	AccessKey   string `envconfig:"CRA_COMN_AWS_ACCESS_KEY" default:""`
}

var clientLogger = logger.NewLogger("S3Client")

func New() (*Client, error) {
	var env EnvironmentConfig
	if err := envconfig.Process("", &env); err != nil {
		clientLogger.Err(err).Msg("Failed to get proper variables from environment")
		return nil, err
	}
	client := Client{
		bucketName: env.BucketName,
		env:        env,
	}
	if err := client.acquireSession(); err != nil {
		return nil, err
	}
	return &client, nil
}

func (client *Client) Upload(data string, key string) error {
	keyLogger := clientLogger.With().
		Str("key", key).
		Str("bucket", client.bucketName).Logger()

	uploader := s3manager.NewUploader(client.sess)
	_, err := uploader.Upload(&s3manager.UploadInput{
		Bucket: &client.bucketName,
		Key:    &key,
		Body:   strings.NewReader(data),
	})
	if err != nil {
		keyLogger.Err(err).Msg("Failed to upload artifact")
		return err
	}
	keyLogger.Debug().Int("size", len(data)).Msg("Uploaded artifact")
	return nil
}

func (client *Client) Download(key string) ([]byte, error) {
	keyLogger := clientLogger.With().
		Str("key", key).
		Str("bucket", client.bucketName).Logger()

	downloader := s3manager.NewDownloader(client.sess)
	buf := aws.NewWriteAtBuffer([]byte{})
	size, err := downloader.Download(buf, &s3.GetObjectInput{
		Bucket: &client.bucketName,
		Key:    &key,
	})
	if err != nil {
		keyLogger.Err(err).Msg("Failed to download artifact")
		return nil, err
	}
	keyLogger.Debug().Msgf("Downloaded %v bytes", size)
	return buf.Bytes(), nil
}

func (client *Client) Close() {}

func (client *Client) acquireSession() error {
	sess, err := session.NewSession(client.instanceConfig())
	if err == nil {
		if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err == nil {
			client.sess = sess
			clientLogger.Info().Msg("S3 session initialized using instance credentials")
			return nil
		}
	}
	clientLogger.Info().Msg("Could not initialize S3 session using instance role, trying env credentials")
	sess, err = session.NewSession(client.envConfig())
	if err != nil {
		clientLogger.Err(err).Msg("Could not initialize S3 session")
		return err
	}
	if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err != nil {
		clientLogger.Err(err).Msg("Could not initialize S3 session")
		return errors.New("could not initialize S3 session")
	}
	client.sess = sess
	clientLogger.Info().Msg("S3 session initialized using env credentials")
	return nil
}

func (client *Client) instanceConfig() *aws.Config {
	return &aws.Config{
		Region:     aws.String(client.env.Region),
		MaxRetries: aws.Int(4),
	}
}

func (client *Client) envConfig() *aws.Config {
	creds := credentials.NewStaticCredentials(
		client.env.AccessKeyID,
		client.env.AccessKey,
		"")
	cfg := aws.NewConfig().
		WithRegion(client.env.Region).
		WithMaxRetries(4).
		WithCredentials(creds)

	inDevEnv := client.env.Env == "dev"
	if inDevEnv && len(client.env.AwsEndpoint) > 0 {
		cfg = cfg.WithEndpoint(client.env.AwsEndpoint).
			WithS3ForcePathStyle(true)
	}
	return cfg
}
