package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/clinical-note-classifier/internal/domain"
)

// ResilientDocumentRetriever wraps a DocumentRetriever with a circuit breaker.
// A search that finds nothing, or a request the local rate limiter never let
// through, counts as a success.
type ResilientDocumentRetriever struct {
	retriever DocumentRetriever
	breaker   *gobreaker.CircuitBreaker
	logger    *logrus.Logger
}

// NewResilientDocumentRetriever creates a retriever guarded by a circuit breaker
func NewResilientDocumentRetriever(retriever DocumentRetriever, config domain.CircuitBreakerConfig, logger *logrus.Logger) *ResilientDocumentRetriever {
	if config.MaxRequests == 0 {
		config.MaxRequests = 5
	}
	if config.Interval == 0 {
		config.Interval = 30 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MinRequests == 0 {
		config.MinRequests = 3
	}
	if config.FailureRatio == 0 {
		config.FailureRatio = 0.6
	}
	if logger == nil {
		logger = logrus.New()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "DocumentStore",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= config.MinRequests && failureRatio >= config.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrDocumentNotFound) ||
				errors.Is(err, ErrRateLimited) ||
				errors.Is(err, context.Canceled)
		},
	})

	return &ResilientDocumentRetriever{
		retriever: retriever,
		breaker:   breaker,
		logger:    logger,
	}
}

// FetchLatestDocument queries the wrapped retriever through the circuit breaker
func (r *ResilientDocumentRetriever) FetchLatestDocument(ctx context.Context, patientID, typeCode string) (*domain.DischargeSummary, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.retriever.FetchLatestDocument(ctx, patientID, typeCode)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
		return nil, err
	}

	return result.(*domain.DischargeSummary), nil
}

// State returns the current breaker state for health reporting
func (r *ResilientDocumentRetriever) State() gobreaker.State {
	return r.breaker.State()
}
