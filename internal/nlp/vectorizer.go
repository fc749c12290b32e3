package nlp

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// FeatureVector is a dense term-weight vector of the vocabulary's dimension.
type FeatureVector []float64

// Norm is the row normalization applied after term weighting
type Norm string

const (
	NormL2   Norm = "l2"
	NormL1   Norm = "l1"
	NormNone Norm = "none"
)

// tokenPattern matches runs of two or more word characters.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Vectorizer maps text onto a fixed vocabulary using TF-IDF weights fitted at
// training time. It never refits and is safe for concurrent use.
type Vectorizer struct {
	vocabulary  map[string]int
	idf         []float64
	ngramMin    int
	ngramMax    int
	norm        Norm
	sublinearTF bool
	lowercase   bool
	stopWords   map[string]struct{}
}

// NewVectorizer validates a fitted vectorizer artifact and builds a Vectorizer
func NewVectorizer(artifact *VectorizerArtifact) (*Vectorizer, error) {
	if artifact == nil {
		return nil, fmt.Errorf("vectorizer artifact is required")
	}
	dim := len(artifact.Vocabulary)
	if dim == 0 {
		return nil, fmt.Errorf("vectorizer vocabulary is empty")
	}

	seen := make([]bool, dim)
	vocabulary := make(map[string]int, dim)
	for term, idx := range artifact.Vocabulary {
		if idx < 0 || idx >= dim {
			return nil, fmt.Errorf("vocabulary index %d for term %q out of range [0,%d)", idx, term, dim)
		}
		if seen[idx] {
			return nil, fmt.Errorf("vocabulary index %d assigned to more than one term", idx)
		}
		seen[idx] = true
		vocabulary[term] = idx
	}

	var idf []float64
	if len(artifact.IDF) > 0 {
		if len(artifact.IDF) != dim {
			return nil, fmt.Errorf("idf length %d does not match vocabulary size %d", len(artifact.IDF), dim)
		}
		idf = make([]float64, dim)
		for i, w := range artifact.IDF {
			if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
				return nil, fmt.Errorf("invalid idf weight %v at index %d", w, i)
			}
			idf[i] = w
		}
	}

	ngramMin, ngramMax := artifact.NgramRange[0], artifact.NgramRange[1]
	if ngramMin == 0 && ngramMax == 0 {
		ngramMin, ngramMax = 1, 1
	}
	if ngramMin < 1 || ngramMax < ngramMin {
		return nil, fmt.Errorf("invalid ngram range [%d, %d]", ngramMin, ngramMax)
	}

	norm, err := parseNorm(artifact.Norm)
	if err != nil {
		return nil, err
	}

	lowercase := true
	if artifact.Lowercase != nil {
		lowercase = *artifact.Lowercase
	}

	stopWords := make(map[string]struct{}, len(artifact.StopWords))
	for _, w := range artifact.StopWords {
		stopWords[w] = struct{}{}
	}

	return &Vectorizer{
		vocabulary:  vocabulary,
		idf:         idf,
		ngramMin:    ngramMin,
		ngramMax:    ngramMax,
		norm:        norm,
		sublinearTF: artifact.SublinearTF,
		lowercase:   lowercase,
		stopWords:   stopWords,
	}, nil
}

func parseNorm(raw string) (Norm, error) {
	switch strings.ToLower(raw) {
	case "", "l2":
		return NormL2, nil
	case "l1":
		return NormL1, nil
	case "none", "null":
		return NormNone, nil
	default:
		return "", fmt.Errorf("unsupported norm %q", raw)
	}
}

// Dimension returns D, the length of every vector produced by Transform
func (v *Vectorizer) Dimension() int {
	return len(v.vocabulary)
}

// Transform turns text into a FeatureVector of length Dimension(). Terms
// outside the vocabulary are ignored; empty or fully out-of-vocabulary text
// yields the zero vector.
func (v *Vectorizer) Transform(text string) FeatureVector {
	vec := make(FeatureVector, v.Dimension())

	counts := make(map[int]float64)
	for _, term := range v.analyze(text) {
		if idx, ok := v.vocabulary[term]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return vec
	}

	for idx, tf := range counts {
		if v.sublinearTF {
			tf = 1 + math.Log(tf)
		}
		if v.idf != nil {
			tf *= v.idf[idx]
		}
		vec[idx] = tf
	}

	v.normalize(vec)
	return vec
}

// analyze produces the terms (word n-grams) looked up in the vocabulary
func (v *Vectorizer) analyze(text string) []string {
	if v.lowercase {
		text = strings.ToLower(text)
	}

	raw := tokenPattern.FindAllString(text, -1)
	tokens := raw[:0]
	for _, tok := range raw {
		if _, stop := v.stopWords[tok]; !stop {
			tokens = append(tokens, tok)
		}
	}

	if v.ngramMax == 1 {
		return tokens
	}

	terms := make([]string, 0, len(tokens)*(v.ngramMax-v.ngramMin+1))
	if v.ngramMin == 1 {
		terms = append(terms, tokens...)
	}
	start := v.ngramMin
	if start == 1 {
		start = 2
	}
	for n := start; n <= v.ngramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

func (v *Vectorizer) normalize(vec FeatureVector) {
	var total float64
	switch v.norm {
	case NormL2:
		for _, x := range vec {
			total += x * x
		}
		total = math.Sqrt(total)
	case NormL1:
		for _, x := range vec {
			total += math.Abs(x)
		}
	default:
		return
	}

	if total == 0 {
		return
	}
	for i := range vec {
		vec[i] /= total
	}
}
