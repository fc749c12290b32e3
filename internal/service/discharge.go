package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinical-note-classifier/internal/audit"
	"github.com/clinical-note-classifier/internal/domain"
	"github.com/clinical-note-classifier/pkg/external"
)

// DefaultRetrievalTimeout bounds a single discharge summary lookup
const DefaultRetrievalTimeout = 10 * time.Second

// FHIR resource id grammar
var patientIDPattern = regexp.MustCompile(`^[A-Za-z0-9\-.]{1,64}$`)

// ValidPatientID reports whether id is a well-formed FHIR resource id
func ValidPatientID(id string) bool {
	return patientIDPattern.MatchString(id)
}

// DischargeService fetches a patient's most recent discharge summary
type DischargeService struct {
	retriever external.DocumentRetriever
	timeout   time.Duration
	audit     audit.Store
	logger    *logrus.Logger
}

// NewDischargeService creates a discharge service. A zero timeout selects
// DefaultRetrievalTimeout.
func NewDischargeService(retriever external.DocumentRetriever, timeout time.Duration, auditStore audit.Store, logger *logrus.Logger) (*DischargeService, error) {
	if retriever == nil {
		return nil, fmt.Errorf("document retriever is required")
	}
	if timeout <= 0 {
		timeout = DefaultRetrievalTimeout
	}
	if auditStore == nil {
		auditStore = audit.NoopStore{}
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &DischargeService{
		retriever: retriever,
		timeout:   timeout,
		audit:     auditStore,
		logger:    logger,
	}, nil
}

// FetchDischargeSummary returns the most recent discharge summary for the
// patient. A missing document is a ServiceError of KindNotFound.
func (s *DischargeService) FetchDischargeSummary(ctx context.Context, patientID string) (*domain.DischargeSummary, error) {
	start := time.Now()

	if !ValidPatientID(patientID) {
		s.record(ctx, audit.OutcomeInvalidInput, patientID, start)
		return nil, domain.NewServiceError(domain.KindValidation, "Invalid patient_id format.", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := s.retriever.FetchLatestDocument(ctx, patientID, domain.DischargeSummaryCode)
	if err != nil {
		svcErr, outcome := classifyRetrievalError(err)
		entry := s.logger.WithFields(logrus.Fields{
			"correlation_id": domain.CorrelationIDFrom(ctx),
			"outcome":        outcome,
			"duration":       time.Since(start),
		})
		if outcome == audit.OutcomeNotFound {
			entry.Info("No discharge summary on record")
		} else {
			entry.WithError(err).Error("Discharge summary retrieval failed")
		}
		s.record(ctx, outcome, patientID, start)
		return nil, svcErr
	}

	s.logger.WithFields(logrus.Fields{
		"correlation_id": domain.CorrelationIDFrom(ctx),
		"document_id":    doc.DocumentID,
		"duration":       time.Since(start),
	}).Info("Discharge summary retrieved")

	s.record(ctx, audit.OutcomeOK, patientID, start)
	return doc, nil
}

func classifyRetrievalError(err error) (*domain.ServiceError, audit.Outcome) {
	switch {
	case errors.Is(err, external.ErrDocumentNotFound):
		return domain.NewServiceError(domain.KindNotFound, "no discharge summary found", err), audit.OutcomeNotFound
	case errors.Is(err, external.ErrServiceUnavailable):
		return domain.NewServiceError(domain.KindUnavailable, "document store temporarily unavailable", err), audit.OutcomeUnavailable
	case external.IsTimeout(err):
		return domain.NewServiceError(domain.KindTimeout, "document store timed out", err), audit.OutcomeTimeout
	default:
		return domain.NewServiceError(domain.KindRetrieval, "failed to retrieve discharge summary", err), audit.OutcomeRetrievalError
	}
}

func (s *DischargeService) record(ctx context.Context, outcome audit.Outcome, patientID string, start time.Time) {
	event := audit.NewEvent(audit.OperationFetchDischarge, outcome, patientID, time.Since(start))
	event.RequestID = domain.CorrelationIDFrom(ctx)

	if err := s.audit.Record(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WithError(err).Warn("Failed to record audit event")
	}
}
