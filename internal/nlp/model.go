package nlp

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
)

// VectorizerArtifact is the on-disk form of a fitted TF-IDF vectorizer
type VectorizerArtifact struct {
	Vocabulary  map[string]int `json:"vocabulary"`
	IDF         []float64      `json:"idf"`
	NgramRange  [2]int         `json:"ngram_range"`
	Norm        string         `json:"norm"`
	SublinearTF bool           `json:"sublinear_tf"`
	Lowercase   *bool          `json:"lowercase,omitempty"`
	StopWords   []string       `json:"stop_words,omitempty"`
}

// ClassifierArtifact is the on-disk form of a fitted binary linear classifier.
// Coef accepts either a flat list or a single-row matrix; Intercept accepts a
// number or a one-element list.
type ClassifierArtifact struct {
	Kind      string     `json:"kind"`
	Coef      flatVector `json:"coef"`
	Intercept scalar     `json:"intercept"`
	Classes   []int      `json:"classes"`
}

type flatVector []float64

func (f *flatVector) UnmarshalJSON(data []byte) error {
	var flat []float64
	if err := json.Unmarshal(data, &flat); err == nil {
		*f = flat
		return nil
	}

	var rows [][]float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("coef must be a list of numbers or a single-row matrix: %w", err)
	}
	if len(rows) != 1 {
		return fmt.Errorf("coef matrix must have exactly one row for binary classification, got %d", len(rows))
	}
	*f = rows[0]
	return nil
}

type scalar float64

func (s *scalar) UnmarshalJSON(data []byte) error {
	var x float64
	if err := json.Unmarshal(data, &x); err == nil {
		*s = scalar(x)
		return nil
	}

	var list []float64
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("intercept must be a number or a one-element list: %w", err)
	}
	if len(list) != 1 {
		return fmt.Errorf("intercept list must have exactly one element, got %d", len(list))
	}
	*s = scalar(list[0])
	return nil
}

// Model is the immutable pair of fitted vectorizer and classifier. It is
// created once at startup and shared read-only by every request.
type Model struct {
	Vectorizer *Vectorizer
	Classifier *LinearClassifier

	fingerprint string
}

// NewModel pairs a vectorizer and classifier, checking their dimensions agree
func NewModel(vectorizer *Vectorizer, classifier *LinearClassifier) (*Model, error) {
	if vectorizer == nil || classifier == nil {
		return nil, fmt.Errorf("vectorizer and classifier are both required")
	}
	if vectorizer.Dimension() != classifier.Dimension() {
		return nil, fmt.Errorf("%w: vocabulary has %d terms, classifier has %d coefficients",
			ErrDimensionMismatch, vectorizer.Dimension(), classifier.Dimension())
	}
	return &Model{
		Vectorizer:  vectorizer,
		Classifier:  classifier,
		fingerprint: fingerprint(vectorizer, classifier),
	}, nil
}

// Dimension returns D, the fixed feature dimension
func (m *Model) Dimension() int {
	return m.Vectorizer.Dimension()
}

// Fingerprint identifies the fitted parameters. Two models that score any
// note differently have different fingerprints.
func (m *Model) Fingerprint() string {
	return m.fingerprint
}

// fingerprint digests every parameter that influences a prediction, in a
// canonical order, so it does not depend on artifact key order or formatting
func fingerprint(v *Vectorizer, c *LinearClassifier) string {
	h := sha256.New()

	terms := make([]string, 0, len(v.vocabulary))
	for term := range v.vocabulary {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	for _, term := range terms {
		fmt.Fprintf(h, "v%q=%d;", term, v.vocabulary[term])
	}
	writeFloats(h, "idf", v.idf)
	fmt.Fprintf(h, "ngram=%d,%d;norm=%s;sublinear=%t;lowercase=%t;",
		v.ngramMin, v.ngramMax, v.norm, v.sublinearTF, v.lowercase)

	stopWords := make([]string, 0, len(v.stopWords))
	for w := range v.stopWords {
		stopWords = append(stopWords, w)
	}
	sort.Strings(stopWords)
	for _, w := range stopWords {
		fmt.Fprintf(h, "s%q;", w)
	}

	fmt.Fprintf(h, "kind=%s;", c.kind)
	writeFloats(h, "coef", c.coef)
	writeFloats(h, "intercept", []float64{c.intercept})
	fmt.Fprintf(h, "classes=%d,%d;", c.classes[0], c.classes[1])

	return hex.EncodeToString(h.Sum(nil))[:16]
}

func writeFloats(w io.Writer, name string, values []float64) {
	fmt.Fprintf(w, "%s[%d]", name, len(values))
	for _, x := range values {
		fmt.Fprintf(w, "%016x", math.Float64bits(x))
	}
	io.WriteString(w, ";")
}

// LoadModel reads both artifacts from disk and builds the Model
func LoadModel(vectorizerPath, classifierPath string) (*Model, error) {
	var vArtifact VectorizerArtifact
	if err := readArtifact(vectorizerPath, &vArtifact); err != nil {
		return nil, fmt.Errorf("loading vectorizer: %w", err)
	}
	vectorizer, err := NewVectorizer(&vArtifact)
	if err != nil {
		return nil, fmt.Errorf("building vectorizer: %w", err)
	}

	var cArtifact ClassifierArtifact
	if err := readArtifact(classifierPath, &cArtifact); err != nil {
		return nil, fmt.Errorf("loading classifier: %w", err)
	}
	classifier, err := NewLinearClassifier(&cArtifact)
	if err != nil {
		return nil, fmt.Errorf("building classifier: %w", err)
	}

	return NewModel(vectorizer, classifier)
}

func readArtifact(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
