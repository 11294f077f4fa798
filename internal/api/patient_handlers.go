package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neurotunes/neurotunes-server/internal/classifier"
	"github.com/neurotunes/neurotunes-server/internal/domain"
	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
	"github.com/neurotunes/neurotunes-server/internal/playlist"
	"github.com/neurotunes/neurotunes-server/internal/service"
)

func (s *Server) registerPatientRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listPatients",
		Method:      http.MethodGet,
		Path:        "/api/v1/patients",
		Summary:     "List patients",
		Description: "Lists the caller's patient profiles, or every profile with all=true",
		Tags:        []string{"Patients"},
		Security:    bearerSecurity,
	}, s.handleListPatients)

	huma.Register(s.api, huma.Operation{
		OperationID:   "upsertPatient",
		Method:        http.MethodPut,
		Path:          "/api/v1/patients/{id}",
		Summary:       "Create patient",
		Description:   "Creates an empty patient profile, or returns the existing one",
		Tags:          []string{"Patients"},
		Security:      bearerSecurity,
		DefaultStatus: http.StatusOK,
	}, s.handleUpsertPatient)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPatient",
		Method:      http.MethodGet,
		Path:        "/api/v1/patients/{id}",
		Summary:     "Get patient",
		Description: "Returns a patient profile with its summary",
		Tags:        []string{"Patients"},
		Security:    bearerSecurity,
	}, s.handleGetPatient)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deletePatient",
		Method:        http.MethodDelete,
		Path:          "/api/v1/patients/{id}",
		Summary:       "Delete patient",
		Description:   "Deletes a patient profile and its history. Owner only",
		Tags:          []string{"Patients"},
		Security:      bearerSecurity,
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeletePatient)

	huma.Register(s.api, huma.Operation{
		OperationID:   "uploadBatch",
		Method:        http.MethodPost,
		Path:          "/api/v1/patients/{id}/batches",
		Summary:       "Upload EEG batch",
		Description:   "Validates, scores, and classifies a batch of band-power rows and appends it to the patient's history. Accepts text/csv or application/json",
		Tags:          []string{"Patients"},
		Security:      bearerSecurity,
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  s.maxUploadBytes,
	}, s.handleUploadBatch)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPatientSummary",
		Method:      http.MethodGet,
		Path:        "/api/v1/patients/{id}/summary",
		Summary:     "Get patient summary",
		Description: "Returns aggregated cognitive scores and the genre distribution",
		Tags:        []string{"Patients"},
		Security:    bearerSecurity,
	}, s.handleGetSummary)

	huma.Register(s.api, huma.Operation{
		OperationID: "listObservations",
		Method:      http.MethodGet,
		Path:        "/api/v1/patients/{id}/observations",
		Summary:     "List observations",
		Description: "Returns stored rows in upload order",
		Tags:        []string{"Patients"},
		Security:    bearerSecurity,
	}, s.handleListObservations)

	huma.Register(s.api, huma.Operation{
		OperationID: "getGenreTrends",
		Method:      http.MethodGet,
		Path:        "/api/v1/patients/{id}/trends",
		Summary:     "Get genre trends",
		Description: "Ranks the genres a patient listened to by mean engagement",
		Tags:        []string{"Patients"},
		Security:    bearerSecurity,
	}, s.handleGenreTrends)

	huma.Register(s.api, huma.Operation{
		OperationID:  "previewScores",
		Method:       http.MethodPost,
		Path:         "/api/v1/scores/preview",
		Summary:      "Preview scores",
		Description:  "Validates and scores a batch without classifying or storing it",
		Tags:         []string{"Patients"},
		Security:     bearerSecurity,
		MaxBodyBytes: s.maxUploadBytes,
	}, s.handlePreviewScores)

	huma.Register(s.api, huma.Operation{
		OperationID: "getModel",
		Method:      http.MethodGet,
		Path:        "/api/v1/model",
		Summary:     "Get model info",
		Description: "Describes the loaded genre classifier",
		Tags:        []string{"Patients"},
		Security:    bearerSecurity,
	}, s.handleGetModel)
}

// === DTOs ===

// PatientResponse contains patient data in API responses.
type PatientResponse struct {
	ID        string         `json:"id" doc:"Patient ID"`
	Caregiver string         `json:"caregiver" doc:"Caregiver who owns the profile"`
	Summary   domain.Summary `json:"summary" doc:"Aggregated history"`
	CreatedAt time.Time      `json:"created_at" doc:"Creation time"`
	UpdatedAt time.Time      `json:"updated_at" doc:"Last update time"`
}

func toPatientResponse(p *domain.Patient) PatientResponse {
	return PatientResponse{
		ID:        p.ID,
		Caregiver: p.Caregiver,
		Summary:   p.Summary,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// PatientIDInput identifies a patient.
type PatientIDInput struct {
	ID string `path:"id" doc:"Patient ID"`
}

// ListPatientsInput contains parameters for listing patients.
type ListPatientsInput struct {
	All bool `query:"all" doc:"List every caregiver's patients"`
}

// ListPatientsResponse contains a list of patients.
type ListPatientsResponse struct {
	Patients []PatientResponse `json:"patients" doc:"Patient profiles"`
}

// ListPatientsOutput wraps the list patients response for Huma.
type ListPatientsOutput struct {
	Body ListPatientsResponse
}

// PatientOutput wraps the patient response for Huma.
type PatientOutput struct {
	Status int
	Body   PatientResponse
}

// UploadBatchInput carries a raw CSV or JSON batch.
type UploadBatchInput struct {
	ID          string `path:"id" doc:"Patient ID"`
	ContentType string `header:"Content-Type" doc:"text/csv or application/json"`
	RawBody     []byte `contentType:"text/csv"`
}

// BatchOutput wraps the stored batch for Huma.
type BatchOutput struct {
	Body *domain.Batch
}

// SummaryOutput wraps a patient summary for Huma.
type SummaryOutput struct {
	Body *domain.Summary
}

// ListObservationsInput contains parameters for listing observations.
type ListObservationsInput struct {
	ID     string `path:"id" doc:"Patient ID"`
	Offset int    `query:"offset" minimum:"0" doc:"Rows to skip"`
	Limit  int    `query:"limit" default:"100" minimum:"1" maximum:"1000" doc:"Maximum rows to return"`
}

// ListObservationsResponse contains a page of observations.
type ListObservationsResponse struct {
	Total        int                  `json:"total" doc:"Rows in the patient's history"`
	Observations []domain.Observation `json:"observations" doc:"Rows in upload order"`
}

// ListObservationsOutput wraps the observations for Huma.
type ListObservationsOutput struct {
	Body ListObservationsResponse
}

// GenreTrendsResponse ranks labelled genres by engagement.
type GenreTrendsResponse struct {
	Genres []playlist.GenreEngagement `json:"genres" doc:"Genres by mean engagement, highest first"`
}

// GenreTrendsOutput wraps the trends for Huma.
type GenreTrendsOutput struct {
	Body GenreTrendsResponse
}

// PreviewInput carries a raw batch to score.
type PreviewInput struct {
	ContentType string `header:"Content-Type" doc:"text/csv or application/json"`
	RawBody     []byte `contentType:"text/csv"`
}

// PreviewOutput wraps a score preview for Huma.
type PreviewOutput struct {
	Body *service.Preview
}

// ModelOutput wraps the model description for Huma.
type ModelOutput struct {
	Body classifier.Info
}

// === Handlers ===

func (s *Server) handleListPatients(ctx context.Context, input *ListPatientsInput) (*ListPatientsOutput, error) {
	ident, err := RequireCaregiver(ctx)
	if err != nil {
		return nil, err
	}

	caregiver := ident.Email
	if input.All {
		caregiver = ""
	}
	patients, err := s.services.Patients.ListPatients(ctx, caregiver)
	if err != nil {
		return nil, err
	}

	resp := make([]PatientResponse, len(patients))
	for i, p := range patients {
		resp[i] = toPatientResponse(p)
	}
	return &ListPatientsOutput{Body: ListPatientsResponse{Patients: resp}}, nil
}

func (s *Server) handleUpsertPatient(ctx context.Context, input *PatientIDInput) (*PatientOutput, error) {
	ident, err := RequireCaregiver(ctx)
	if err != nil {
		return nil, err
	}

	p, created, err := s.services.Patients.UpsertPatient(ctx, ident.Email, input.ID)
	if err != nil {
		return nil, err
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return &PatientOutput{Status: status, Body: toPatientResponse(p)}, nil
}

func (s *Server) handleGetPatient(ctx context.Context, input *PatientIDInput) (*PatientOutput, error) {
	if _, err := RequireCaregiver(ctx); err != nil {
		return nil, err
	}

	p, err := s.services.Patients.GetPatient(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &PatientOutput{Status: http.StatusOK, Body: toPatientResponse(p)}, nil
}

func (s *Server) handleDeletePatient(ctx context.Context, input *PatientIDInput) (*struct{}, error) {
	ident, err := RequireCaregiver(ctx)
	if err != nil {
		return nil, err
	}
	return nil, s.services.Patients.DeletePatient(ctx, ident.Email, input.ID)
}

func (s *Server) handleUploadBatch(ctx context.Context, input *UploadBatchInput) (*BatchOutput, error) {
	ident, err := RequireCaregiver(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.allowUpload(ident.Email); err != nil {
		return nil, err
	}

	table, err := parseUpload(input.ContentType, input.RawBody)
	if err != nil {
		return nil, err
	}

	batch, err := s.services.Patients.AppendBatch(service.WithBatchSource(ctx, service.SourceAPI), ident.Email, input.ID, table)
	if err != nil {
		return nil, err
	}
	return &BatchOutput{Body: batch}, nil
}

func (s *Server) handleGetSummary(ctx context.Context, input *PatientIDInput) (*SummaryOutput, error) {
	if _, err := RequireCaregiver(ctx); err != nil {
		return nil, err
	}

	summary, err := s.services.Patients.GetSummary(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &SummaryOutput{Body: summary}, nil
}

func (s *Server) handleListObservations(ctx context.Context, input *ListObservationsInput) (*ListObservationsOutput, error) {
	if _, err := RequireCaregiver(ctx); err != nil {
		return nil, err
	}

	obs, err := s.services.Patients.ListObservations(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	total := len(obs)
	start := min(input.Offset, total)
	end := min(start+input.Limit, total)
	page := obs[start:end]
	if page == nil {
		page = []domain.Observation{}
	}
	return &ListObservationsOutput{Body: ListObservationsResponse{Total: total, Observations: page}}, nil
}

func (s *Server) handleGenreTrends(ctx context.Context, input *PatientIDInput) (*GenreTrendsOutput, error) {
	if _, err := RequireCaregiver(ctx); err != nil {
		return nil, err
	}

	trends, err := s.services.Patients.GenreTrends(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &GenreTrendsOutput{Body: GenreTrendsResponse{Genres: trends}}, nil
}

func (s *Server) handlePreviewScores(ctx context.Context, input *PreviewInput) (*PreviewOutput, error) {
	if _, err := RequireCaregiver(ctx); err != nil {
		return nil, err
	}

	table, err := parseUpload(input.ContentType, input.RawBody)
	if err != nil {
		return nil, err
	}
	preview, err := s.services.Patients.PreviewScores(ctx, table)
	if err != nil {
		return nil, err
	}
	return &PreviewOutput{Body: preview}, nil
}

func (s *Server) handleGetModel(ctx context.Context, _ *struct{}) (*ModelOutput, error) {
	if _, err := GetIdentity(ctx); err != nil {
		return nil, err
	}

	info, ok := s.services.Patients.ModelInfo()
	if !ok {
		return nil, domainerrors.ErrModelUnavailable
	}
	return &ModelOutput{Body: info}, nil
}
