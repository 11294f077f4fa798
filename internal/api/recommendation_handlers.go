package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
	"github.com/neurotunes/neurotunes-server/internal/genre"
	"github.com/neurotunes/neurotunes-server/internal/service"
)

func (s *Server) registerRecommendationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createRecommendation",
		Method:        http.MethodPost,
		Path:          "/api/v1/recommendations",
		Summary:       "Create recommendation",
		Description:   "Recommends genres, in rank order, to a recipient email",
		Tags:          []string{"Recommendations"},
		Security:      bearerSecurity,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateRecommendation)

	huma.Register(s.api, huma.Operation{
		OperationID:   "recommendFromPatient",
		Method:        http.MethodPost,
		Path:          "/api/v1/patients/{id}/recommendations",
		Summary:       "Recommend from patient",
		Description:   "Recommends the patient's predicted genres with a cognitive snapshot",
		Tags:          []string{"Recommendations"},
		Security:      bearerSecurity,
		DefaultStatus: http.StatusCreated,
	}, s.handleRecommendFromPatient)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRecommendation",
		Method:      http.MethodGet,
		Path:        "/api/v1/recommendations/{id}",
		Summary:     "Get recommendation",
		Description: "Returns a recommendation to its caregiver or recipient",
		Tags:        []string{"Recommendations"},
		Security:    bearerSecurity,
	}, s.handleGetRecommendation)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteRecommendation",
		Method:        http.MethodDelete,
		Path:          "/api/v1/recommendations/{id}",
		Summary:       "Delete recommendation",
		Description:   "Deletes a recommendation. Owner only",
		Tags:          []string{"Recommendations"},
		Security:      bearerSecurity,
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteRecommendation)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMyRecommendations",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/recommendations",
		Summary:     "List my recommendations",
		Description: "Returns recommendations addressed to the caller, newest first",
		Tags:        []string{"Me"},
		Security:    bearerSecurity,
	}, s.handleListMyRecommendations)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMyPlaylist",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/playlist",
		Summary:     "Get my playlist",
		Description: "Builds a playlist from the caller's newest recommendation",
		Tags:        []string{"Me"},
		Security:    bearerSecurity,
	}, s.handleGetMyPlaylist)
}

// === DTOs ===

// CreateRecommendationRequest is the request body for a manual recommendation.
type CreateRecommendationRequest struct {
	RecipientEmail string   `json:"recipient_email" doc:"Who the recommendation is for"`
	Genres         []string `json:"genres" doc:"Genres in rank order: names, slugs or labels 1-5"`
}

// CreateRecommendationInput wraps the create request for Huma.
type CreateRecommendationInput struct {
	Body CreateRecommendationRequest
}

// RecommendFromPatientRequest is the request body for a derived recommendation.
type RecommendFromPatientRequest struct {
	RecipientEmail string `json:"recipient_email" doc:"Who the recommendation is for"`
}

// RecommendFromPatientInput wraps the request for Huma.
type RecommendFromPatientInput struct {
	ID   string `path:"id" doc:"Patient ID"`
	Body RecommendFromPatientRequest
}

// RecommendationIDInput identifies a recommendation.
type RecommendationIDInput struct {
	ID string `path:"id" doc:"Recommendation ID"`
}

// RecommendationOutput wraps a recommendation for Huma.
type RecommendationOutput struct {
	Body *domain.Recommendation
}

// ListRecommendationsResponse contains recommendations, newest first.
type ListRecommendationsResponse struct {
	Recommendations []*domain.Recommendation `json:"recommendations" doc:"Recommendations, newest first"`
}

// ListRecommendationsOutput wraps the list for Huma.
type ListRecommendationsOutput struct {
	Body ListRecommendationsResponse
}

// GetPlaylistInput contains parameters for building a playlist.
type GetPlaylistInput struct {
	Max int `query:"max" default:"6" minimum:"1" maximum:"45" doc:"Maximum tracks"`
}

// PlaylistOutput wraps a playlist for Huma.
type PlaylistOutput struct {
	Body *service.Playlist
}

// === Handlers ===

func (s *Server) handleCreateRecommendation(ctx context.Context, input *CreateRecommendationInput) (*RecommendationOutput, error) {
	ident, err := RequireCaregiver(ctx)
	if err != nil {
		return nil, err
	}

	genres := make([]genre.Genre, 0, len(input.Body.Genres))
	for _, name := range input.Body.Genres {
		g, err := genre.Parse(name)
		if err != nil {
			return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"genres": err.Error()})
		}
		genres = append(genres, g)
	}

	rec, err := s.services.Recommendations.Create(ctx, ident.Email, input.Body.RecipientEmail, genres)
	if err != nil {
		return nil, err
	}
	return &RecommendationOutput{Body: rec}, nil
}

func (s *Server) handleRecommendFromPatient(ctx context.Context, input *RecommendFromPatientInput) (*RecommendationOutput, error) {
	ident, err := RequireCaregiver(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := s.services.Recommendations.RecommendFromPatient(ctx, ident.Email, input.ID, input.Body.RecipientEmail)
	if err != nil {
		return nil, err
	}
	return &RecommendationOutput{Body: rec}, nil
}

func (s *Server) handleGetRecommendation(ctx context.Context, input *RecommendationIDInput) (*RecommendationOutput, error) {
	ident, err := GetIdentity(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := s.services.Recommendations.Get(ctx, ident.Email, input.ID)
	if err != nil {
		return nil, err
	}
	return &RecommendationOutput{Body: rec}, nil
}

func (s *Server) handleDeleteRecommendation(ctx context.Context, input *RecommendationIDInput) (*struct{}, error) {
	ident, err := RequireCaregiver(ctx)
	if err != nil {
		return nil, err
	}
	return nil, s.services.Recommendations.Delete(ctx, ident.Email, input.ID)
}

func (s *Server) handleListMyRecommendations(ctx context.Context, _ *struct{}) (*ListRecommendationsOutput, error) {
	ident, err := GetIdentity(ctx)
	if err != nil {
		return nil, err
	}

	recs, err := s.services.Recommendations.ListForRecipient(ctx, ident.Email)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*domain.Recommendation{}
	}
	return &ListRecommendationsOutput{Body: ListRecommendationsResponse{Recommendations: recs}}, nil
}

func (s *Server) handleGetMyPlaylist(ctx context.Context, input *GetPlaylistInput) (*PlaylistOutput, error) {
	ident, err := GetIdentity(ctx)
	if err != nil {
		return nil, err
	}

	pl, err := s.services.Recommendations.PlaylistForRecipient(ctx, ident.Email, input.Max)
	if err != nil {
		return nil, err
	}
	return &PlaylistOutput{Body: pl}, nil
}
