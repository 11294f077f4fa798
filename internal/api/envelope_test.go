package api

import (
	"encoding/json/v2"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurotunes/neurotunes-server/internal/eeg"
	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
	"github.com/neurotunes/neurotunes-server/internal/store"
)

func marshalToMap(t *testing.T, v any) map[string]any {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestEnvelopeTransformer_Success(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "200", map[string]string{"id": "rec-1"})
	require.NoError(t, err)

	out := marshalToMap(t, result)
	assert.Equal(t, float64(1), out["v"])
	assert.Equal(t, true, out["success"])
	assert.Equal(t, map[string]any{"id": "rec-1"}, out["data"])
	assert.Len(t, out, 3)
}

func TestEnvelopeTransformer_NilDataIsOmitted(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "204", nil)
	require.NoError(t, err)

	out := marshalToMap(t, result)
	assert.Equal(t, map[string]any{"v": float64(1), "success": true}, out)
}

func TestEnvelopeTransformer_EmptySliceIsKept(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "200", []string{})
	require.NoError(t, err)

	assert.Equal(t, []any{}, marshalToMap(t, result)["data"])
}

func TestEnvelopeTransformer_Error(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "409", &APIError{
		Code:    "CONFLICT",
		Message: "patient has no data yet",
		Details: map[string]string{"patient_id": "p-1"},
	})
	require.NoError(t, err)

	out := marshalToMap(t, result)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "patient has no data yet", out["error"])
	assert.Equal(t, "CONFLICT", out["code"])
	assert.Equal(t, "patient has no data yet", out["message"])
	assert.Equal(t, map[string]any{"patient_id": "p-1"}, out["details"])
	assert.NotContains(t, out, "data")
}

func TestEnvelopeTransformer_AlreadyWrapped(t *testing.T) {
	env := Envelope{Version: envelopeVersion, Success: true, Data: 1}
	result, err := EnvelopeTransformer(nil, "200", env)
	require.NoError(t, err)
	assert.Equal(t, env, result)
}

func TestErrorHandler_MapsErrors(t *testing.T) {
	RegisterErrorHandler()

	schemaErr := &eeg.SchemaError{Issues: []eeg.Issue{{Column: "Beta_AF7_mean", Reason: eeg.ReasonMissingColumn}}}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		hasDetails bool
	}{
		{"schema", fmt.Errorf("upload: %w", schemaErr), http.StatusUnprocessableEntity, "SCHEMA_INVALID", true},
		{"model", domainerrors.ErrModelUnavailable, http.StatusServiceUnavailable, "MODEL_UNAVAILABLE", false},
		{"store outage", domainerrors.StoreUnavailable(errors.New("disk gone")), http.StatusServiceUnavailable, "STORE_UNAVAILABLE", false},
		{"not found", domainerrors.NotFound("patient not found"), http.StatusNotFound, "NOT_FOUND", false},
		{"store not found", store.ErrNotFound.WithMessage("track 9 not found"), http.StatusNotFound, "NOT_FOUND", false},
		{"rate limited", domainerrors.ErrRateLimited.WithDetails(RetryAfterDetails{RetryAfterSeconds: 30}), http.StatusTooManyRequests, "RATE_LIMITED", true},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "INTERNAL", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := huma.NewError(http.StatusInternalServerError, "unexpected error occurred", tt.err)
			apiErr, ok := se.(*APIError)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, apiErr.GetStatus())
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.hasDetails, apiErr.Details != nil)
		})
	}
}

func TestErrorHandler_CollectsFieldErrors(t *testing.T) {
	RegisterErrorHandler()

	se := huma.NewError(http.StatusUnprocessableEntity, "validation failed",
		&huma.ErrorDetail{Location: "body.track_id", Message: "expected length >= 1", Value: ""})
	apiErr, ok := se.(*APIError)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION", apiErr.Code)
	require.IsType(t, []FieldError{}, apiErr.Details)
	assert.Equal(t, "body.track_id", apiErr.Details.([]FieldError)[0].Location)
}
