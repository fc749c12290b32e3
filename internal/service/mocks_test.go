package service

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinical-note-classifier/internal/audit"
	"github.com/clinical-note-classifier/internal/cache"
	"github.com/clinical-note-classifier/internal/domain"
	"github.com/clinical-note-classifier/internal/nlp"
)

// MockDocumentRetriever is a mock implementation of external.DocumentRetriever
type MockDocumentRetriever struct {
	mock.Mock
}

func (m *MockDocumentRetriever) FetchLatestDocument(ctx context.Context, patientID, typeCode string) (*domain.DischargeSummary, error) {
	args := m.Called(ctx, patientID, typeCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DischargeSummary), args.Error(1)
}

// MockAuditStore is a mock implementation of audit.Store
type MockAuditStore struct {
	mock.Mock
}

func (m *MockAuditStore) Record(ctx context.Context, event *audit.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAuditStore) List(ctx context.Context, limit, offset int) ([]*audit.Event, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Event), args.Error(1)
}

func (m *MockAuditStore) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAuditStore) Close() error {
	return m.Called().Error(0)
}

// MockPredictionCache is a mock implementation of cache.PredictionCache
type MockPredictionCache struct {
	mock.Mock
}

func (m *MockPredictionCache) Get(ctx context.Context, key string) (domain.Prediction, bool, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(domain.Prediction), args.Bool(1), args.Error(2)
}

func (m *MockPredictionCache) Set(ctx context.Context, key string, prediction domain.Prediction) error {
	return m.Called(ctx, key, prediction).Error(0)
}

func (m *MockPredictionCache) Stats() cache.Stats {
	return m.Called().Get(0).(cache.Stats)
}

func (m *MockPredictionCache) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockPredictionCache) Close() error {
	return m.Called().Error(0)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func testVectorizer(t *testing.T) *nlp.Vectorizer {
	t.Helper()
	vectorizer, err := nlp.NewVectorizer(&nlp.VectorizerArtifact{
		Vocabulary: map[string]int{
			"chest":     0,
			"pain":      1,
			"discharge": 2,
			"stable":    3,
			"acute":     4,
		},
		IDF:  []float64{1.5, 1.2, 2.0, 1.0, 1.8},
		Norm: "l2",
	})
	require.NoError(t, err)
	return vectorizer
}

func testClassifier(t *testing.T, coef []float64) *nlp.LinearClassifier {
	t.Helper()
	classifier, err := nlp.NewLinearClassifier(&nlp.ClassifierArtifact{
		Kind:      nlp.KindLinearSVC,
		Coef:      coef,
		Intercept: -0.2,
		Classes:   []int{0, 1},
	})
	require.NoError(t, err)
	return classifier
}

func testModel(t *testing.T) *nlp.Model {
	t.Helper()
	model, err := nlp.NewModel(testVectorizer(t), testClassifier(t, []float64{1.0, 0.5, -1.0, -2.0, 1.5}))
	require.NoError(t, err)
	return model
}
