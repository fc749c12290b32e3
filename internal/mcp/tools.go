package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/clinical-note-classifier/internal/domain"
)

const (
	classifyNoteTool   = "classify_note"
	fetchDischargeTool = "fetch_discharge_summary"
)

// ClassifyNoteParams is the input of classify_note
type ClassifyNoteParams struct {
	Text string `json:"text" jsonschema:"free-text clinical note; may be empty"`
}

// ClassifyNoteResult is the output of classify_note
type ClassifyNoteResult struct {
	Prediction string  `json:"prediction"`
	Score      float64 `json:"score"`
}

// FetchDischargeParams is the input of fetch_discharge_summary
type FetchDischargeParams struct {
	PatientID string `json:"patient_id" jsonschema:"FHIR Patient resource id"`
}

// FetchDischargeResult is the output of fetch_discharge_summary
type FetchDischargeResult struct {
	DischargeSummary *string `json:"discharge_summary"`
	DocumentID       string  `json:"document_id,omitempty"`
	Date             string  `json:"date,omitempty"`
}

func (s *Server) handleClassifyNote(ctx context.Context, req *mcp.CallToolRequest, params ClassifyNoteParams) (*mcp.CallToolResult, ClassifyNoteResult, error) {
	s.logger.WithField("tool", classifyNoteTool).Info("Tool invoked")

	prediction, err := s.predictor.Predict(ctx, params.Text)
	if err != nil {
		return s.toolError(classifyNoteTool, err), ClassifyNoteResult{}, nil
	}

	label := prediction.Label.String()
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: label},
		},
	}, ClassifyNoteResult{Prediction: label, Score: prediction.Score}, nil
}

func (s *Server) handleFetchDischargeSummary(ctx context.Context, req *mcp.CallToolRequest, params FetchDischargeParams) (*mcp.CallToolResult, FetchDischargeResult, error) {
	s.logger.WithField("tool", fetchDischargeTool).Info("Tool invoked")

	summary, err := s.discharge.FetchDischargeSummary(ctx, params.PatientID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					&mcp.TextContent{Text: "No discharge summary on record for this patient."},
				},
			}, FetchDischargeResult{}, nil
		}
		return s.toolError(fetchDischargeTool, err), FetchDischargeResult{}, nil
	}

	result := FetchDischargeResult{
		DischargeSummary: &summary.Text,
		DocumentID:       summary.DocumentID,
	}
	if !summary.Date.IsZero() {
		result.Date = summary.Date.UTC().Format(time.RFC3339)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary.Text},
		},
	}, result, nil
}

// toolError reports a failure as a tool result so the model can see it;
// only the caller-safe message is included
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) {
		svcErr = domain.NewServiceError(domain.KindInternal, "", err)
	}

	s.logger.WithFields(logrus.Fields{
		"tool":  tool,
		"kind":  svcErr.Kind,
		"error": err.Error(),
	}).Warn("Tool call failed")

	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: svcErr.SafeMessage()},
		},
	}
}
