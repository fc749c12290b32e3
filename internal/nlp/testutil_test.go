package nlp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// testVectorizerArtifact is a five-term vocabulary shared by the pipeline tests.
func testVectorizerArtifact() *VectorizerArtifact {
	return &VectorizerArtifact{
		Vocabulary: map[string]int{
			"chest":     0,
			"pain":      1,
			"discharge": 2,
			"stable":    3,
			"acute":     4,
		},
		IDF:  []float64{1.5, 1.2, 2.0, 1.0, 1.8},
		Norm: "l2",
	}
}

func testClassifierArtifact() *ClassifierArtifact {
	return &ClassifierArtifact{
		Kind:      KindLinearSVC,
		Coef:      flatVector{1.0, 0.5, -1.0, -2.0, 1.5},
		Intercept: -0.2,
		Classes:   []int{0, 1},
	}
}

func newTestModel(t *testing.T) *Model {
	t.Helper()

	vectorizer, err := NewVectorizer(testVectorizerArtifact())
	require.NoError(t, err)
	classifier, err := NewLinearClassifier(testClassifierArtifact())
	require.NoError(t, err)
	model, err := NewModel(vectorizer, classifier)
	require.NoError(t, err)
	return model
}
