package nlp

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when a vector's length differs from the
// classifier's coefficient count.
var ErrDimensionMismatch = errors.New("feature vector dimension mismatch")

// Supported classifier kinds. Both share the same linear decision function.
const (
	KindLinearSVC          = "linear_svc"
	KindLogisticRegression = "logistic_regression"
)

// LinearClassifier separates the feature space with the hyperplane
// coef·x + intercept = 0. It is read-only after construction.
type LinearClassifier struct {
	kind      string
	coef      []float64
	intercept float64
	classes   [2]int
}

// NewLinearClassifier validates a fitted classifier artifact
func NewLinearClassifier(artifact *ClassifierArtifact) (*LinearClassifier, error) {
	if artifact == nil {
		return nil, fmt.Errorf("classifier artifact is required")
	}

	kind := artifact.Kind
	if kind == "" {
		kind = KindLinearSVC
	}
	if kind != KindLinearSVC && kind != KindLogisticRegression {
		return nil, fmt.Errorf("unsupported classifier kind %q", kind)
	}

	if len(artifact.Coef) == 0 {
		return nil, fmt.Errorf("classifier has no coefficients")
	}
	coef := make([]float64, len(artifact.Coef))
	for i, w := range artifact.Coef {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("invalid coefficient %v at index %d", w, i)
		}
		coef[i] = w
	}

	intercept := float64(artifact.Intercept)
	if math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return nil, fmt.Errorf("invalid intercept %v", intercept)
	}

	classes := [2]int{0, 1}
	if len(artifact.Classes) > 0 {
		if len(artifact.Classes) != 2 {
			return nil, fmt.Errorf("binary classifier needs exactly 2 classes, got %d", len(artifact.Classes))
		}
		classes = [2]int{artifact.Classes[0], artifact.Classes[1]}
	}

	return &LinearClassifier{
		kind:      kind,
		coef:      coef,
		intercept: intercept,
		classes:   classes,
	}, nil
}

// Kind returns the classifier family the parameters came from
func (c *LinearClassifier) Kind() string {
	return c.kind
}

// Dimension returns the number of coefficients
func (c *LinearClassifier) Dimension() int {
	return len(c.coef)
}

// DecisionFunction returns the signed distance score coef·v + intercept
func (c *LinearClassifier) DecisionFunction(v FeatureVector) (float64, error) {
	if len(v) != len(c.coef) {
		return 0, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(v), len(c.coef))
	}

	score := c.intercept
	for i, x := range v {
		if x != 0 {
			score += c.coef[i] * x
		}
	}
	return score, nil
}

// Classify returns the positive class when the decision score is strictly
// greater than zero and the negative class otherwise.
func (c *LinearClassifier) Classify(v FeatureVector) (int, error) {
	score, err := c.DecisionFunction(v)
	if err != nil {
		return 0, err
	}
	return c.ClassFor(score), nil
}

// ClassFor maps a decision score to a class label
func (c *LinearClassifier) ClassFor(score float64) int {
	if score > 0 {
		return c.classes[1]
	}
	return c.classes[0]
}
