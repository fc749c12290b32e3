// Package domain contains the core entities shared by the clinical note
// classifier and the discharge summary retrieval service.
//
// Discharge summaries are identified by LOINC code 18842-5.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// LOINC identifiers for the document type served by /fetchDischarge
const (
	LOINCSystem          = "http://loinc.org"
	DischargeSummaryCode = "18842-5"
)

// Label is the binary outcome of classifying a clinical note.
type Label int

const (
	LabelNegative Label = iota
	LabelPositive
)

// String renders the label the way callers see it: "YES" or "NO".
func (l Label) String() string {
	if l == LabelPositive {
		return "YES"
	}
	return "NO"
}

// MarshalJSON renders the label as its external string form
func (l Label) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts the external string form
func (l *Label) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLabel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLabel parses "YES"/"NO" back into a Label
func ParseLabel(s string) (Label, error) {
	switch s {
	case "YES":
		return LabelPositive, nil
	case "NO":
		return LabelNegative, nil
	default:
		return LabelNegative, fmt.Errorf("unknown label %q", s)
	}
}

// LabelFromClass maps a classifier class to a label: 1 is positive, anything
// else is negative.
func LabelFromClass(class int) Label {
	if class == 1 {
		return LabelPositive
	}
	return LabelNegative
}

// Prediction is the successful result of classifying a note
type Prediction struct {
	Label  Label   `json:"prediction"`
	Score  float64 `json:"score"`
	Cached bool    `json:"-"`
}

// DischargeSummary is a decoded discharge-summary document for a patient.
// It is fetched per request and never cached or persisted.
type DischargeSummary struct {
	PatientID   string    `json:"patient_id"`
	DocumentID  string    `json:"document_id"`
	Date        time.Time `json:"date,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Text        string    `json:"text"`
}
