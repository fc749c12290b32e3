package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clinical-note-classifier/internal/domain"
	"github.com/clinical-note-classifier/internal/middleware"
)

const (
	invalidPredictionInput = "Invalid input format. Expected a JSON with an 'input' key."
	invalidDischargeInput  = "Invalid input format. Expected a JSON with a 'patient_id' key."
	bodyTooLarge           = "request body too large"
)

var (
	errBodyTooLarge  = errors.New("body exceeds limit")
	errInvalidObject = errors.New("invalid request object")
)

// predictionResponse is the body of a successful /getPrediction call
type predictionResponse struct {
	Prediction domain.Label `json:"prediction"`
}

// dischargeResponse is the body of a successful /fetchDischarge call.
// A nil summary means the patient has none on record.
type dischargeResponse struct {
	DischargeSummaries *string `json:"discharge_summaries"`
}

// stringField extracts a required string member from a JSON object body.
// It fails with errInvalidObject when the body is not an object or the member
// is missing, null or not a string, and with errBodyTooLarge when the body
// limit cut the read short.
func stringField(c *gin.Context, key string) (string, error) {
	body, err := c.GetRawData()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", errBodyTooLarge
		}
		return "", errInvalidObject
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(body, &object); err != nil || object == nil {
		return "", errInvalidObject
	}

	raw, ok := object[key]
	if !ok {
		return "", errInvalidObject
	}

	var value *string
	if err := json.Unmarshal(raw, &value); err != nil || value == nil {
		return "", errInvalidObject
	}
	return *value, nil
}

// rejectBody answers a request whose body could not be read as expected
func rejectBody(c *gin.Context, err error, message string) {
	if errors.Is(err, errBodyTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": bodyTooLarge})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// handleGetPrediction classifies the note in {"input": "..."}
func (s *Server) handleGetPrediction(c *gin.Context) {
	input, err := stringField(c, "input")
	if err != nil {
		rejectBody(c, err, invalidPredictionInput)
		return
	}

	prediction, err := s.predictor.Predict(c.Request.Context(), input)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, predictionResponse{Prediction: prediction.Label})
}

// handleFetchDischarge returns the latest discharge summary for {"patient_id": "..."}
func (s *Server) handleFetchDischarge(c *gin.Context) {
	patientID, err := stringField(c, "patient_id")
	if err != nil {
		rejectBody(c, err, invalidDischargeInput)
		return
	}

	summary, err := s.discharge.FetchDischargeSummary(c.Request.Context(), patientID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			c.JSON(http.StatusOK, dischargeResponse{})
			return
		}
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dischargeResponse{DischargeSummaries: &summary.Text})
}

// handleHealth reports the loaded model and the state of each dependency.
// Predictions never depend on them, so the endpoint always answers 200.
func (s *Server) handleHealth(c *gin.Context) {
	components := runHealthChecks(c.Request.Context(), s.healthChecks)

	body := gin.H{
		"status":          overallStatus(components),
		"timestamp":       time.Now().UTC(),
		"version":         Version,
		"vocabulary_size": s.vocabSize,
	}
	if len(components) > 0 {
		byName := make(map[string]ComponentHealth, len(components))
		for _, component := range components {
			byName[component.Name] = component
		}
		body["components"] = byName
	}
	c.JSON(http.StatusOK, body)
}

// writeError renders a service failure without leaking internal detail
func (s *Server) writeError(c *gin.Context, err error) {
	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) {
		svcErr = domain.NewServiceError(domain.KindInternal, "", err)
	}

	s.logger.WithFields(logrus.Fields{
		"correlation_id": middleware.GetCorrelationID(c),
		"kind":           svcErr.Kind,
		"error":          err.Error(),
	}).Warn("Request failed")

	c.JSON(svcErr.HTTPStatus(), gin.H{"error": svcErr.SafeMessage()})
}
