package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures crossing the service boundary
type ErrorKind string

// Error kinds for different failure scenarios
const (
	KindValidation  ErrorKind = "VALIDATION_ERROR"
	KindInference   ErrorKind = "INFERENCE_ERROR"
	KindNotFound    ErrorKind = "NOT_FOUND"
	KindRetrieval   ErrorKind = "RETRIEVAL_ERROR"
	KindUnavailable ErrorKind = "SERVICE_UNAVAILABLE"
	KindTimeout     ErrorKind = "TIMEOUT"
	KindInternal    ErrorKind = "INTERNAL_SERVER_ERROR"
)

// ServiceError is the error result returned by PredictionService and
// DischargeService. Message is safe to show to callers; Err is for logs only.
type ServiceError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// SafeMessage returns the caller-facing message
func (e *ServiceError) SafeMessage() string {
	if e.Message == "" {
		return "internal server error"
	}
	return e.Message
}

// HTTPStatus maps the error kind to a response status
func (e *ServiceError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRetrieval:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// NewServiceError creates a new ServiceError
func NewServiceError(kind ErrorKind, message string, err error) *ServiceError {
	return &ServiceError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the kind of err, or KindInternal when err is not a ServiceError
func KindOf(err error) ErrorKind {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a ServiceError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
