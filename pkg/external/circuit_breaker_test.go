package external

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinical-note-classifier/internal/domain"
)

// MockDocumentRetriever is a mock implementation of DocumentRetriever
type MockDocumentRetriever struct {
	mock.Mock
}

func (m *MockDocumentRetriever) FetchLatestDocument(ctx context.Context, patientID, typeCode string) (*domain.DischargeSummary, error) {
	args := m.Called(ctx, patientID, typeCode)
	if doc := args.Get(0); doc != nil {
		return doc.(*domain.DischargeSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

func testBreakerConfig() domain.CircuitBreakerConfig {
	return domain.CircuitBreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

func TestResilientDocumentRetriever_PassesThrough(t *testing.T) {
	inner := new(MockDocumentRetriever)
	expected := &domain.DischargeSummary{PatientID: "p1", DocumentID: "d1", Text: "stable"}
	inner.On("FetchLatestDocument", mock.Anything, "p1", domain.DischargeSummaryCode).Return(expected, nil)

	retriever := NewResilientDocumentRetriever(inner, testBreakerConfig(), testLogger())

	doc, err := retriever.FetchLatestDocument(context.Background(), "p1", domain.DischargeSummaryCode)
	require.NoError(t, err)
	assert.Equal(t, expected, doc)
	assert.Equal(t, gobreaker.StateClosed, retriever.State())
	inner.AssertExpectations(t)
}

func TestResilientDocumentRetriever_OpensAfterFailures(t *testing.T) {
	inner := new(MockDocumentRetriever)
	failure := errors.Join(ErrRetrievalFailed, errors.New("connection refused"))
	inner.On("FetchLatestDocument", mock.Anything, "p1", domain.DischargeSummaryCode).Return(nil, failure)

	retriever := NewResilientDocumentRetriever(inner, testBreakerConfig(), testLogger())

	for i := 0; i < 3; i++ {
		_, err := retriever.FetchLatestDocument(context.Background(), "p1", domain.DischargeSummaryCode)
		assert.ErrorIs(t, err, ErrRetrievalFailed)
	}
	assert.Equal(t, gobreaker.StateOpen, retriever.State())

	_, err := retriever.FetchLatestDocument(context.Background(), "p1", domain.DischargeSummaryCode)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	inner.AssertNumberOfCalls(t, "FetchLatestDocument", 3)
}

func TestResilientDocumentRetriever_NotFoundDoesNotTrip(t *testing.T) {
	inner := new(MockDocumentRetriever)
	inner.On("FetchLatestDocument", mock.Anything, "ghost", domain.DischargeSummaryCode).Return(nil, ErrDocumentNotFound)

	retriever := NewResilientDocumentRetriever(inner, testBreakerConfig(), testLogger())

	for i := 0; i < 10; i++ {
		doc, err := retriever.FetchLatestDocument(context.Background(), "ghost", domain.DischargeSummaryCode)
		assert.Nil(t, doc)
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, retriever.State())
	inner.AssertNumberOfCalls(t, "FetchLatestDocument", 10)
}

func TestResilientDocumentRetriever_LocalThrottlingDoesNotTrip(t *testing.T) {
	inner := new(MockDocumentRetriever)
	throttled := fmt.Errorf("%w: %w", ErrRateLimited, context.DeadlineExceeded)
	inner.On("FetchLatestDocument", mock.Anything, "p1", domain.DischargeSummaryCode).Return(nil, throttled)

	retriever := NewResilientDocumentRetriever(inner, testBreakerConfig(), testLogger())

	for i := 0; i < 10; i++ {
		_, err := retriever.FetchLatestDocument(context.Background(), "p1", domain.DischargeSummaryCode)
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.NotErrorIs(t, err, ErrServiceUnavailable)
	}
	assert.Equal(t, gobreaker.StateClosed, retriever.State())
	inner.AssertNumberOfCalls(t, "FetchLatestDocument", 10)
}

func TestResilientDocumentRetriever_Defaults(t *testing.T) {
	inner := new(MockDocumentRetriever)
	retriever := NewResilientDocumentRetriever(inner, domain.CircuitBreakerConfig{}, nil)

	assert.NotNil(t, retriever.logger)
	assert.Equal(t, gobreaker.StateClosed, retriever.State())
}
