package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurotunes/neurotunes-server/internal/classifier"
	"github.com/neurotunes/neurotunes-server/internal/domain"
	"github.com/neurotunes/neurotunes-server/internal/eeg"
	"github.com/neurotunes/neurotunes-server/internal/eeg/eegtest"
	"github.com/neurotunes/neurotunes-server/internal/genre"
	"github.com/neurotunes/neurotunes-server/internal/service"
)

func TestUpsertPatient(t *testing.T) {
	ts := setupTestServer(t, Options{})
	doc := ts.bearer(t, caregiverEmail)

	resp := ts.api.Put("/api/v1/patients/p-1", doc)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	p := decode[PatientResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, "p-1", p.ID)
	assert.Equal(t, caregiverEmail, p.Caregiver)
	assert.Zero(t, p.Summary.Count)

	resp = ts.api.Put("/api/v1/patients/p-1", doc)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Put("/api/v1/patients/p-1", ts.bearer(t, listenerEmail))
	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "FORBIDDEN", decode[any](t, resp.Body.Bytes()).Code)

	resp = ts.api.Put("/api/v1/patients/has%20space", doc)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION", decode[any](t, resp.Body.Bytes()).Code)
}

func TestUploadBatch_CSV(t *testing.T) {
	ts := setupTestServer(t, Options{})
	doc := ts.bearer(t, caregiverEmail)

	body := eegtest.CSV(eegtest.Uniform(1, 1, 1, 1, 2), eegtest.Uniform(1, 1, 1, 3, 2))
	resp := ts.api.Post("/api/v1/patients/p-1/batches", doc, "Content-Type: text/csv", strings.NewReader(body))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	batch := decode[domain.Batch](t, resp.Body.Bytes()).Data
	assert.Equal(t, "p-1", batch.PatientID)
	assert.Equal(t, 2, batch.Rows)
	assert.Equal(t, 0, batch.FirstSeq)
	assert.True(t, batch.Created)
	assert.Equal(t, 2, batch.Summary.Count)
	top, ok := batch.Summary.Top()
	require.True(t, ok)
	assert.Equal(t, genre.Rock, top)

	resp = ts.api.Get("/api/v1/patients/p-1/summary", doc)
	require.Equal(t, http.StatusOK, resp.Code)
	summary := decode[domain.Summary](t, resp.Body.Bytes()).Data
	assert.Equal(t, 2, summary.Count)
	engagement, ok := summary.Means.Engagement.Value()
	require.True(t, ok)
	assert.InDelta(t, 1.0, engagement, 1e-9)
}

func TestUploadBatch_JSON(t *testing.T) {
	ts := setupTestServer(t, Options{})
	doc := ts.bearer(t, caregiverEmail)

	rows := eegtest.Records(eegtest.Labelled(eegtest.Uniform(1, 1, 1, 1, 5), genre.RnB))
	resp := ts.api.Post("/api/v1/patients/p-2/batches", doc, map[string]any{"rows": rows})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, 1, decode[domain.Batch](t, resp.Body.Bytes()).Data.Rows)

	resp = ts.api.Get("/api/v1/patients/p-2/observations", doc)
	require.Equal(t, http.StatusOK, resp.Code)
	page := decode[ListObservationsResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Observations, 1)
	assert.Equal(t, genre.RnB, page.Observations[0].Row.Label)
	assert.Equal(t, genre.RnB, page.Observations[0].Prediction.Genre)

	resp = ts.api.Get("/api/v1/patients/p-2/trends", doc)
	require.Equal(t, http.StatusOK, resp.Code)
	trends := decode[GenreTrendsResponse](t, resp.Body.Bytes()).Data.Genres
	require.Len(t, trends, 1)
	assert.Equal(t, genre.RnB, trends[0].Genre)
}

func TestUploadBatch_SchemaErrorListsIssues(t *testing.T) {
	ts := setupTestServer(t, Options{})
	doc := ts.bearer(t, caregiverEmail)

	table := eegtest.Table(eegtest.Uniform(1, 1, 1, 1, 2))
	table.Records[0][2] = "n/a"
	var b strings.Builder
	b.WriteString(strings.Join(table.Header, ",") + "\n")
	b.WriteString(strings.Join(table.Records[0], ",") + "\n")

	resp := ts.api.Post("/api/v1/patients/p-1/batches", doc, "Content-Type: text/csv", strings.NewReader(b.String()))
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code, resp.Body.String())

	env := decode[any](t, resp.Body.Bytes())
	assert.False(t, env.Success)
	assert.Equal(t, "SCHEMA_INVALID", env.Code)
	assert.NotNil(t, env.Details)

	// Nothing was stored, not even the profile.
	resp = ts.api.Get("/api/v1/patients/p-1", doc)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUploadBatch_Rejections(t *testing.T) {
	ts := setupTestServer(t, Options{})
	body := eegtest.CSV(eegtest.Uniform(1, 1, 1, 1, 2))

	resp := ts.api.Post("/api/v1/patients/p-1/batches", ts.bearer(t, listenerEmail), "Content-Type: text/csv", strings.NewReader(body))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.api.Post("/api/v1/patients/p-1/batches", ts.bearer(t, caregiverEmail), "Content-Type: application/xml", strings.NewReader("<rows/>"))
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION", decode[any](t, resp.Body.Bytes()).Code)
}

func TestUploadBatch_RateLimited(t *testing.T) {
	ts := setupTestServer(t, Options{UploadRatePerMinute: 1})
	doc := ts.bearer(t, caregiverEmail)
	body := eegtest.CSV(eegtest.Uniform(1, 1, 1, 1, 2))

	resp := ts.api.Post("/api/v1/patients/p-1/batches", doc, "Content-Type: text/csv", strings.NewReader(body))
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = ts.api.Post("/api/v1/patients/p-1/batches", doc, "Content-Type: text/csv", strings.NewReader(body))
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "RATE_LIMITED", decode[any](t, resp.Body.Bytes()).Code)
}

func TestUploadBatch_ModelUnavailable(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.Server.services.Patients = service.NewPatientService(ts.store, classifier.NewAdapter(1), ts.logger)
	doc := ts.bearer(t, caregiverEmail)
	body := eegtest.CSV(eegtest.Uniform(1, 1, 1, 1, 2))

	resp := ts.api.Post("/api/v1/patients/p-1/batches", doc, "Content-Type: text/csv", strings.NewReader(body))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, "MODEL_UNAVAILABLE", decode[any](t, resp.Body.Bytes()).Code)

	resp = ts.api.Get("/api/v1/model", doc)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	// Scoring does not need the model.
	resp = ts.api.Post("/api/v1/scores/preview", doc, "Content-Type: text/csv", strings.NewReader(body))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, 1, decode[service.Preview](t, resp.Body.Bytes()).Data.Rows)
}

func TestSummary_UnknownPatient(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/api/v1/patients/ghost/summary", ts.bearer(t, caregiverEmail))
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decode[any](t, resp.Body.Bytes()).Code)
}

func TestListAndDeletePatients(t *testing.T) {
	ts := setupTestServer(t, Options{})
	doc := ts.bearer(t, caregiverEmail)

	for _, id := range []string{"a", "b"} {
		resp := ts.api.Put("/api/v1/patients/"+id, doc)
		require.Equal(t, http.StatusCreated, resp.Code)
	}

	resp := ts.api.Get("/api/v1/patients", doc)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[ListPatientsResponse](t, resp.Body.Bytes()).Data.Patients, 2)

	resp = ts.api.Delete("/api/v1/patients/a", doc)
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.api.Get("/api/v1/patients?all=true", doc)
	require.Equal(t, http.StatusOK, resp.Code)
	patients := decode[ListPatientsResponse](t, resp.Body.Bytes()).Data.Patients
	require.Len(t, patients, 1)
	assert.Equal(t, "b", patients[0].ID)

	resp = ts.api.Delete("/api/v1/patients/a", doc)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestGetModel(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/api/v1/model", ts.bearer(t, listenerEmail))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"kind":"stub"`)
}

func TestParseUpload(t *testing.T) {
	csvBody := eegtest.CSV(eegtest.Uniform(1, 2, 3, 4, 5))

	table, err := parseUpload("", []byte(csvBody))
	require.NoError(t, err)
	assert.Equal(t, eeg.Columns(), table.Header)

	table, err = parseUpload("text/csv; charset=utf-8", []byte(csvBody))
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())

	table, err = parseUpload("", []byte(`{"rows":[{"Delta_TP9_mean":1}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Delta_TP9_mean"}, table.Header)

	_, err = parseUpload("application/json", []byte(`{"nope":[]}`))
	require.Error(t, err)

	_, err = parseUpload("application/json", []byte(`not json`))
	require.Error(t, err)

	_, err = parseUpload("image/png", []byte("x"))
	require.Error(t, err)
}
