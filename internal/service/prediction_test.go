package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinical-note-classifier/internal/audit"
	"github.com/clinical-note-classifier/internal/cache"
	"github.com/clinical-note-classifier/internal/domain"
	"github.com/clinical-note-classifier/internal/nlp"
)

func TestPredictionService_Predict(t *testing.T) {
	service, err := NewPredictionService(testModel(t), nil, nil, testLogger())
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		expected domain.Label
	}{
		{"Positive note", "Acute chest pain, radiating to left arm.", domain.LabelPositive},
		{"Negative note", "Patient stable; ready for discharge.", domain.LabelNegative},
		{"Empty input", "", domain.LabelNegative},
		{"Punctuation only", "?!...", domain.LabelNegative},
		{"Out of vocabulary", "lorem ipsum dolor", domain.LabelNegative},
		{"Newline artifacts", "ACUTE\nCHEST\r\nPAIN", domain.LabelPositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prediction, err := service.Predict(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, prediction.Label)
			assert.Contains(t, []string{"YES", "NO"}, prediction.Label.String())
		})
	}
}

func TestPredictionService_DeterministicAcrossCleaning(t *testing.T) {
	service, err := NewPredictionService(testModel(t), nil, nil, testLogger())
	require.NoError(t, err)

	raw := "  Acute   CHEST pain!!  "
	a, err := service.Predict(context.Background(), raw)
	require.NoError(t, err)
	b, err := service.Predict(context.Background(), nlp.Normalize(raw))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPredictionService_DimensionMismatch(t *testing.T) {
	model := &nlp.Model{
		Vectorizer: testVectorizer(t),
		Classifier: testClassifier(t, []float64{1.0, 2.0}),
	}
	auditStore := new(MockAuditStore)
	auditStore.On("Record", mock.Anything, mock.MatchedBy(func(e *audit.Event) bool {
		return e.Outcome == audit.OutcomeInferenceError && e.Label == ""
	})).Return(nil).Once()

	service, err := NewPredictionService(model, nil, auditStore, testLogger())
	require.NoError(t, err)

	_, err = service.Predict(context.Background(), "chest pain")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInference))
	assert.ErrorIs(t, err, nlp.ErrDimensionMismatch)
	auditStore.AssertExpectations(t)
}

func TestPredictionService_RecoversPanic(t *testing.T) {
	service, err := NewPredictionService(&nlp.Model{}, nil, nil, testLogger())
	require.NoError(t, err)

	_, err = service.Predict(context.Background(), "chest pain")
	require.Error(t, err)

	var svcErr *domain.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, domain.KindInference, svcErr.Kind)
	assert.Equal(t, "prediction failed", svcErr.SafeMessage())
	assert.Contains(t, svcErr.Error(), "panic during inference")
}

func TestPredictionService_UsesCache(t *testing.T) {
	ctx := context.Background()
	predictionCache := new(MockPredictionCache)
	key := cache.Key(testModel(t).Fingerprint(), "acute chest pain")
	cached := domain.Prediction{Label: domain.LabelNegative, Score: -9}

	predictionCache.On("Get", ctx, key).Return(cached, true, nil).Once()

	service, err := NewPredictionService(testModel(t), predictionCache, nil, testLogger())
	require.NoError(t, err)

	prediction, err := service.Predict(ctx, "Acute chest pain")
	require.NoError(t, err)
	assert.Equal(t, domain.LabelNegative, prediction.Label)
	assert.True(t, prediction.Cached)
	predictionCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
}

func TestPredictionService_CacheIsScopedToModel(t *testing.T) {
	ctx := context.Background()
	shared, err := cache.NewMemoryCache(10, time.Minute)
	require.NoError(t, err)

	previous, err := nlp.NewModel(testVectorizer(t), testClassifier(t, []float64{1.0, 0.5, -1.0, -2.0, 1.5}))
	require.NoError(t, err)
	retrained, err := nlp.NewModel(testVectorizer(t), testClassifier(t, []float64{-1.0, -0.5, 1.0, 2.0, -1.5}))
	require.NoError(t, err)
	require.NotEqual(t, previous.Fingerprint(), retrained.Fingerprint())

	before, err := NewPredictionService(previous, shared, nil, testLogger())
	require.NoError(t, err)
	after, err := NewPredictionService(retrained, shared, nil, testLogger())
	require.NoError(t, err)

	first, err := before.Predict(ctx, "Acute chest pain")
	require.NoError(t, err)
	assert.Equal(t, domain.LabelPositive, first.Label)

	second, err := after.Predict(ctx, "Acute chest pain")
	require.NoError(t, err)
	assert.Equal(t, domain.LabelNegative, second.Label)
	assert.False(t, second.Cached)

	again, err := before.Predict(ctx, "Acute chest pain")
	require.NoError(t, err)
	assert.Equal(t, domain.LabelPositive, again.Label)
	assert.True(t, again.Cached)
	assert.Equal(t, 2, shared.Len())
}

func TestPredictionService_CacheFailuresAreIgnored(t *testing.T) {
	ctx := context.Background()
	predictionCache := new(MockPredictionCache)
	predictionCache.On("Get", ctx, mock.Anything).Return(domain.Prediction{}, false, errors.New("redis down"))
	predictionCache.On("Set", ctx, mock.Anything, mock.Anything).Return(errors.New("redis down"))

	auditStore := new(MockAuditStore)
	auditStore.On("Record", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	service, err := NewPredictionService(testModel(t), predictionCache, auditStore, testLogger())
	require.NoError(t, err)

	prediction, err := service.Predict(ctx, "acute chest pain")
	require.NoError(t, err)
	assert.Equal(t, domain.LabelPositive, prediction.Label)
	assert.False(t, prediction.Cached)
	predictionCache.AssertExpectations(t)
}

func TestPredictionService_AuditStoresDigestOnly(t *testing.T) {
	auditStore := new(MockAuditStore)
	var recorded *audit.Event
	auditStore.On("Record", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded = args.Get(1).(*audit.Event)
	}).Return(nil)

	service, err := NewPredictionService(testModel(t), nil, auditStore, testLogger())
	require.NoError(t, err)

	ctx := domain.WithCorrelationID(context.Background(), "corr-1")
	_, err = service.Predict(ctx, "Acute chest pain")
	require.NoError(t, err)

	require.NotNil(t, recorded)
	assert.Equal(t, audit.OperationPredict, recorded.Operation)
	assert.Equal(t, audit.OutcomeOK, recorded.Outcome)
	assert.Equal(t, "YES", recorded.Label)
	assert.Equal(t, "corr-1", recorded.RequestID)
	assert.Equal(t, audit.HashSubject("acute chest pain"), recorded.SubjectHash)
	assert.NotContains(t, recorded.SubjectHash, "chest")
}

func TestPredictionService_Concurrent(t *testing.T) {
	service, err := NewPredictionService(testModel(t), nil, nil, testLogger())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			input := "stable discharge"
			expected := domain.LabelNegative
			if i%2 == 0 {
				input = "acute chest pain"
				expected = domain.LabelPositive
			}
			prediction, err := service.Predict(context.Background(), input)
			assert.NoError(t, err)
			assert.Equal(t, expected, prediction.Label)
		}(i)
	}
	wg.Wait()
}

func TestNewPredictionService_RequiresModel(t *testing.T) {
	_, err := NewPredictionService(nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestPredictionService_VocabularySize(t *testing.T) {
	service, err := NewPredictionService(testModel(t), nil, nil, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 5, service.VocabularySize())
}
