package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	"github.com/neurotunes/neurotunes-server/internal/service"
)

func (s *Server) registerMeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getMe",
		Method:      http.MethodGet,
		Path:        "/api/v1/me",
		Summary:     "Get current user",
		Description: "Returns the caller's identity and role",
		Tags:        []string{"Me"},
		Security:    bearerSecurity,
	}, s.handleGetMe)

	huma.Register(s.api, huma.Operation{
		OperationID:   "recordPlay",
		Method:        http.MethodPost,
		Path:          "/api/v1/me/plays",
		Summary:       "Record play",
		Description:   "Records that the caller started a catalog track",
		Tags:          []string{"Me"},
		Security:      bearerSecurity,
		DefaultStatus: http.StatusCreated,
	}, s.handleRecordPlay)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMyPlays",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/plays",
		Summary:     "Get play counts",
		Description: "Counts the caller's plays per genre, most played first",
		Tags:        []string{"Me"},
		Security:    bearerSecurity,
	}, s.handleGetMyPlays)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMyActivity",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/activity",
		Summary:     "Get activity",
		Description: "Returns the caller's activity log in order",
		Tags:        []string{"Me"},
		Security:    bearerSecurity,
	}, s.handleGetMyActivity)
}

// === DTOs ===

// MeResponse describes the caller.
type MeResponse struct {
	Email      string      `json:"email" doc:"Verified email"`
	Name       string      `json:"name,omitempty" doc:"Display name from the identity provider"`
	Role       domain.Role `json:"role" doc:"caregiver or listener"`
	CreatedAt  time.Time   `json:"created_at,omitzero" doc:"First time the caller was seen"`
	LastSeenAt time.Time   `json:"last_seen_at,omitzero" doc:"Most recent request"`
}

// MeOutput wraps the caller description for Huma.
type MeOutput struct {
	Body MeResponse
}

// RecordPlayRequest is the request body for a play.
type RecordPlayRequest struct {
	TrackID string `json:"track_id" minLength:"1" doc:"Catalog track ID"`
}

// RecordPlayInput wraps the play request for Huma.
type RecordPlayInput struct {
	Body RecordPlayRequest
}

// EventOutput wraps an activity event for Huma.
type EventOutput struct {
	Body *domain.Event
}

// PlaysResponse lists per-genre play counts.
type PlaysResponse struct {
	Genres []service.GenrePlays `json:"genres" doc:"Play counts, most played first"`
}

// PlaysOutput wraps play counts for Huma.
type PlaysOutput struct {
	Body PlaysResponse
}

// ActivityResponse lists events.
type ActivityResponse struct {
	Events []*domain.Event `json:"events" doc:"Events, oldest first"`
}

// ActivityOutput wraps the activity log for Huma.
type ActivityOutput struct {
	Body ActivityResponse
}

// === Handlers ===

func (s *Server) handleGetMe(ctx context.Context, _ *struct{}) (*MeOutput, error) {
	ident, err := GetIdentity(ctx)
	if err != nil {
		return nil, err
	}

	resp := MeResponse{Email: ident.Email, Name: ident.Name, Role: ident.Role}
	// The activity record is best-effort; the token alone answers this.
	if u, err := s.services.Activity.GetUser(ctx, ident.Email); err == nil {
		resp.CreatedAt = u.CreatedAt
		resp.LastSeenAt = u.LastSeenAt
	}
	return &MeOutput{Body: resp}, nil
}

func (s *Server) handleRecordPlay(ctx context.Context, input *RecordPlayInput) (*EventOutput, error) {
	ident, err := GetIdentity(ctx)
	if err != nil {
		return nil, err
	}

	event, err := s.services.Activity.RecordPlay(ctx, ident.Email, input.Body.TrackID)
	if err != nil {
		return nil, err
	}
	return &EventOutput{Body: event}, nil
}

func (s *Server) handleGetMyPlays(ctx context.Context, _ *struct{}) (*PlaysOutput, error) {
	ident, err := GetIdentity(ctx)
	if err != nil {
		return nil, err
	}

	plays, err := s.services.Activity.PlaysByGenre(ctx, ident.Email)
	if err != nil {
		return nil, err
	}
	return &PlaysOutput{Body: PlaysResponse{Genres: plays}}, nil
}

func (s *Server) handleGetMyActivity(ctx context.Context, _ *struct{}) (*ActivityOutput, error) {
	ident, err := GetIdentity(ctx)
	if err != nil {
		return nil, err
	}

	events, err := s.services.Activity.ListEvents(ctx, ident.Email)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*domain.Event{}
	}
	return &ActivityOutput{Body: ActivityResponse{Events: events}}, nil
}
