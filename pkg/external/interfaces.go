package external

import (
	"context"
	"errors"

	"github.com/clinical-note-classifier/internal/domain"
)

// Outcomes of a document lookup that callers must tell apart
var (
	// ErrDocumentNotFound means the search succeeded but matched nothing.
	ErrDocumentNotFound = errors.New("no matching document")
	// ErrRetrievalFailed covers transport errors, non-2xx responses and
	// payloads that cannot be decoded.
	ErrRetrievalFailed = errors.New("document retrieval failed")
	// ErrServiceUnavailable is returned while the circuit breaker is open.
	ErrServiceUnavailable = errors.New("document store unavailable")
	// ErrRateLimited means the local rate limiter could not admit the request
	// before the deadline. The document store was never contacted.
	ErrRateLimited = errors.New("document store request throttled")
)

// DocumentRetriever looks up the most recent document of a given LOINC type
// for a patient and returns its decoded text.
type DocumentRetriever interface {
	FetchLatestDocument(ctx context.Context, patientID, typeCode string) (*domain.DischargeSummary, error)
}
