package api

import (
	"github.com/danielgtaylor/huma/v2"
)

// envelopeVersion is bumped only on breaking changes to the wrapper itself.
const envelopeVersion = 1

// Envelope wraps every successful JSON response.
type Envelope struct {
	Version int  `json:"v"`
	Success bool `json:"success"`
	Data    any  `json:"data,omitzero"`
}

// ErrorEnvelope wraps every error response. Error repeats Message for
// clients that only read a single string.
type ErrorEnvelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// EnvelopeTransformer is a huma transformer that wraps response bodies.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	switch body := v.(type) {
	case *APIError:
		return ErrorEnvelope{
			Version: envelopeVersion,
			Error:   body.Message,
			Code:    body.Code,
			Message: body.Message,
			Details: body.Details,
		}, nil
	case Envelope, *Envelope, ErrorEnvelope, *ErrorEnvelope:
		return v, nil
	}
	return Envelope{Version: envelopeVersion, Success: true, Data: v}, nil
}
