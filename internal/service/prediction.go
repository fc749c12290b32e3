// Package service orchestrates note classification and discharge summary
// retrieval behind the HTTP and MCP surfaces.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinical-note-classifier/internal/audit"
	"github.com/clinical-note-classifier/internal/cache"
	"github.com/clinical-note-classifier/internal/domain"
	"github.com/clinical-note-classifier/internal/nlp"
)

const inferenceFailedMessage = "prediction failed"

// PredictionService runs Normalize, Transform and Classify over a note.
// It holds no per-request state and is safe for concurrent use.
type PredictionService struct {
	model  *nlp.Model
	cache  cache.PredictionCache
	audit  audit.Store
	logger *logrus.Logger
}

// NewPredictionService creates a prediction service around a loaded model.
// A nil cache or audit store disables that concern.
func NewPredictionService(model *nlp.Model, predictionCache cache.PredictionCache, auditStore audit.Store, logger *logrus.Logger) (*PredictionService, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if predictionCache == nil {
		predictionCache = cache.NoopCache{}
	}
	if auditStore == nil {
		auditStore = audit.NoopStore{}
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &PredictionService{
		model:  model,
		cache:  predictionCache,
		audit:  auditStore,
		logger: logger,
	}, nil
}

// Predict classifies a raw note. Failures are returned as a ServiceError of
// KindInference and never rendered as a label.
func (s *PredictionService) Predict(ctx context.Context, text string) (domain.Prediction, error) {
	start := time.Now()
	cleaned := nlp.Normalize(text)
	key := cache.Key(s.model.Fingerprint(), cleaned)

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithError(err).Warn("Prediction cache lookup failed")
	} else if ok {
		cached.Cached = true
		s.record(ctx, audit.OutcomeOK, cleaned, cached.Label.String(), start)
		return cached, nil
	}

	prediction, err := s.infer(cleaned)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"correlation_id": domain.CorrelationIDFrom(ctx),
			"error":          err,
		}).Error("Prediction failed")
		s.record(ctx, audit.OutcomeInferenceError, cleaned, "", start)
		return domain.Prediction{}, err
	}

	if err := s.cache.Set(ctx, key, prediction); err != nil {
		s.logger.WithError(err).Warn("Prediction cache write failed")
	}

	s.logger.WithFields(logrus.Fields{
		"correlation_id": domain.CorrelationIDFrom(ctx),
		"prediction":     prediction.Label.String(),
		"cleaned_length": len(cleaned),
		"duration":       time.Since(start),
	}).Debug("Note classified")

	s.record(ctx, audit.OutcomeOK, cleaned, prediction.Label.String(), start)
	return prediction, nil
}

// infer converts panics from the numeric core into inference errors so a bad
// request can never take the process down.
func (s *PredictionService) infer(cleaned string) (prediction domain.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewServiceError(domain.KindInference, inferenceFailedMessage, fmt.Errorf("panic during inference: %v", r))
		}
	}()

	vector := s.model.Vectorizer.Transform(cleaned)
	score, err := s.model.Classifier.DecisionFunction(vector)
	if err != nil {
		return domain.Prediction{}, domain.NewServiceError(domain.KindInference, inferenceFailedMessage, err)
	}

	return domain.Prediction{
		Label: domain.LabelFromClass(s.model.Classifier.ClassFor(score)),
		Score: score,
	}, nil
}

// VocabularySize returns D for health reporting
func (s *PredictionService) VocabularySize() int {
	return s.model.Dimension()
}

func (s *PredictionService) record(ctx context.Context, outcome audit.Outcome, cleaned, label string, start time.Time) {
	event := audit.NewEvent(audit.OperationPredict, outcome, cleaned, time.Since(start))
	event.RequestID = domain.CorrelationIDFrom(ctx)
	event.Label = label

	if err := s.audit.Record(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WithError(err).Warn("Failed to record audit event")
	}
}
