package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neurotunes/neurotunes-server/internal/eeg"
	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
	"github.com/neurotunes/neurotunes-server/internal/store"
)

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// FieldError is one request validation failure reported by huma.
type FieldError struct {
	Location string `json:"location,omitempty"`
	Message  string `json:"message"`
	Value    any    `json:"value,omitempty"`
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			if apiErr := fromError(err); apiErr != nil {
				return apiErr
			}
		}

		apiErr := &APIError{
			status:  status,
			Code:    statusToCode(status),
			Message: message,
		}

		// Request validation failures from huma itself.
		var fields []FieldError
		for _, err := range errs {
			var detail *huma.ErrorDetail
			if errors.As(err, &detail) {
				fields = append(fields, FieldError{Location: detail.Location, Message: detail.Message, Value: detail.Value})
			}
		}
		if len(fields) > 0 {
			apiErr.Details = fields
		}
		return apiErr
	}
}

func fromError(err error) *APIError {
	// Checked before *domainerrors.Error: a SchemaError unwraps to the bare
	// sentinel, which carries no issue list.
	var schemaErr *eeg.SchemaError
	if errors.As(err, &schemaErr) {
		return fromDomain(schemaErr.DomainError())
	}

	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return fromDomain(domainErr)
	}

	if errors.Is(err, store.ErrNotFound) {
		return &APIError{
			status:  http.StatusNotFound,
			Code:    string(domainerrors.CodeNotFound),
			Message: err.Error(),
		}
	}
	return nil
}

func fromDomain(e *domainerrors.Error) *APIError {
	return &APIError{
		status:  e.HTTPStatus(),
		Code:    string(e.Code),
		Message: e.Message,
		Details: e.Details,
	}
}

// statusToCode maps HTTP status codes to our domain error codes.
func statusToCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(domainerrors.CodeValidation)
	case http.StatusUnauthorized:
		return string(domainerrors.CodeUnauthorized)
	case http.StatusForbidden:
		return string(domainerrors.CodeForbidden)
	case http.StatusNotFound:
		return string(domainerrors.CodeNotFound)
	case http.StatusConflict:
		return string(domainerrors.CodeConflict)
	case http.StatusUnprocessableEntity:
		return string(domainerrors.CodeValidation)
	case http.StatusRequestEntityTooLarge:
		return string(domainerrors.CodeValidation)
	case http.StatusTooManyRequests:
		return string(domainerrors.CodeRateLimited)
	case http.StatusServiceUnavailable:
		return string(domainerrors.CodeStoreUnavailable)
	default:
		return string(domainerrors.CodeInternal)
	}
}
