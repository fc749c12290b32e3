// Package audit records one event per classification or retrieval request.
// Events carry a SHA-256 digest of the subject (cleaned note text or patient
// id), never the subject itself or any document payload.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Operation names the request that produced an event.
type Operation string

const (
	OperationPredict        Operation = "predict"
	OperationFetchDischarge Operation = "fetch_discharge"
)

// Outcome is the result category of an audited request.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeNotFound       Outcome = "not_found"
	OutcomeInvalidInput   Outcome = "invalid_input"
	OutcomeInferenceError Outcome = "inference_error"
	OutcomeRetrievalError Outcome = "retrieval_error"
	OutcomeUnavailable    Outcome = "unavailable"
	OutcomeTimeout        Outcome = "timeout"
)

// Event is a single audit trail entry.
type Event struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"request_id,omitempty"`
	Operation   Operation `json:"operation"`
	Outcome     Outcome   `json:"outcome"`
	SubjectHash string    `json:"subject_hash"`
	Label       string    `json:"label,omitempty"` // predict only
	LatencyMS   int64     `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewEvent creates an event with a fresh id and timestamp. The subject is
// hashed before it is stored.
func NewEvent(op Operation, outcome Outcome, subject string, latency time.Duration) *Event {
	return &Event{
		ID:          uuid.NewString(),
		Operation:   op,
		Outcome:     outcome,
		SubjectHash: HashSubject(subject),
		LatencyMS:   latency.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}
}

// HashSubject returns the hex SHA-256 digest of subject.
func HashSubject(subject string) string {
	sum := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(sum[:])
}

// Store defines the interface for audit trail storage.
type Store interface {
	// Record appends an event. Missing ids and timestamps are filled in.
	Record(ctx context.Context, event *Event) error

	// List returns events newest first.
	List(ctx context.Context, limit, offset int) ([]*Event, error)

	// Count returns the total number of events.
	Count(ctx context.Context) (int64, error)

	// Close releases the underlying connection.
	Close() error
}

func prepare(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
}

// NoopStore discards events.
type NoopStore struct{}

func (NoopStore) Record(context.Context, *Event) error { return nil }

func (NoopStore) List(context.Context, int, int) ([]*Event, error) { return nil, nil }

func (NoopStore) Count(context.Context) (int64, error) { return 0, nil }

func (NoopStore) Close() error { return nil }
