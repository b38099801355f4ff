package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clinsight.com/cra/redis"
	"clinsight.com/cra/types"
)

const PatientsDB redis.DB = 0

var (
	// ErrNotFound means the patient id is unknown to the store. Callers must
	// never conflate this with a transport failure.
	ErrNotFound = errors.New("patient not found")
	// ErrAlreadyExists means the national id is already registered.
	ErrAlreadyExists = errors.New("patient already exists")
)

// Patient is the identity record kept per national id.
type Patient struct {
	NationalID string       `json:"national_id"`
	Name       string       `json:"name"`
	Age        int          `json:"age"`
	Gender     types.Gender `json:"gender"`
	CreatedAt  string       `json:"created_at"`
}

// HistoryEntry is append-only; entries are never mutated or deleted.
type HistoryEntry struct {
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// Store holds patient identities and their medical history in redis. History
// lives in a per-patient list ordered most recent first; appends are
// serialized per patient so concurrent runs cannot lose entries.
type Store struct {
	client redis.Client
}

func NewStore() (*Store, error) {
	client, err := redis.NewClient(PatientsDB)
	if err != nil {
		return nil, err
	}
	return &Store{client: client}, nil
}

func (s *Store) Lookup(nationalID string) (*Patient, error) {
	var patient Patient
	err := s.client.GetDocument(patientKey(nationalID), &patient)
	if err != nil {
		if errors.Is(err, redis.ErrKeyMissing) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("patient lookup failed: %w", err)
	}
	return &patient, nil
}

func (s *Store) Create(patient Patient) error {
	if patient.CreatedAt == "" {
		patient.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	created, err := s.client.SaveDocumentIfAbsent(patientKey(patient.NationalID), &patient)
	if err != nil {
		return fmt.Errorf("patient create failed: %w", err)
	}
	if !created {
		return ErrAlreadyExists
	}
	return nil
}

func (s *Store) AppendHistory(nationalID string, description string, timestamp time.Time) (err error) {
	if _, err = s.Lookup(nationalID); err != nil {
		return err
	}
	releaseLock, err := s.client.Lock(historyKey(nationalID))
	if err != nil {
		return fmt.Errorf("history append failed: %w", err)
	}
	defer func() {
		if releaseErr := releaseLock(); err == nil {
			err = releaseErr
		}
	}()
	entry := HistoryEntry{Description: description, Timestamp: timestamp.UTC()}
	if err = s.client.PushToList(historyKey(nationalID), &entry); err != nil {
		return fmt.Errorf("history append failed: %w", err)
	}
	return nil
}

// ListHistory returns the patient's entries ordered most recent first. A
// registered patient without history yields an empty slice, not an error.
func (s *Store) ListHistory(nationalID string) ([]HistoryEntry, error) {
	if _, err := s.Lookup(nationalID); err != nil {
		return nil, err
	}
	raw, err := s.client.GetList(historyKey(nationalID))
	if err != nil {
		return nil, fmt.Errorf("history lookup failed: %w", err)
	}
	entries := make([]HistoryEntry, 0, len(raw))
	for _, b := range raw {
		var entry HistoryEntry
		if err := json.Unmarshal(b, &entry); err != nil {
			return nil, fmt.Errorf("history lookup failed: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Store) Close() {
	_ = s.client.Close()
}

func patientKey(nationalID string) string {
	return fmt.Sprintf("patient:%s", nationalID)
}

func historyKey(nationalID string) string {
	return fmt.Sprintf("patient:%s:history", nationalID)
}
