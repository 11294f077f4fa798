package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
	"github.com/neurotunes/neurotunes-server/internal/genre"
	"github.com/neurotunes/neurotunes-server/internal/search"
	"github.com/neurotunes/neurotunes-server/internal/service"
)

func (s *Server) registerCatalogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listGenres",
		Method:      http.MethodGet,
		Path:        "/api/v1/genres",
		Summary:     "List genres",
		Description: "Returns the five genres in canonical order with catalog sizes",
		Tags:        []string{"Catalog"},
		Security:    bearerSecurity,
	}, s.handleListGenres)

	huma.Register(s.api, huma.Operation{
		OperationID: "listTracks",
		Method:      http.MethodGet,
		Path:        "/api/v1/tracks",
		Summary:     "List tracks",
		Description: "Returns catalog tracks, optionally for one genre",
		Tags:        []string{"Catalog"},
		Security:    bearerSecurity,
	}, s.handleListTracks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTrack",
		Method:      http.MethodGet,
		Path:        "/api/v1/tracks/{id}",
		Summary:     "Get track",
		Description: "Returns a catalog track by ID",
		Tags:        []string{"Catalog"},
		Security:    bearerSecurity,
	}, s.handleGetTrack)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchTracks",
		Method:      http.MethodGet,
		Path:        "/api/v1/search/tracks",
		Summary:     "Search tracks",
		Description: "Full-text search over the melody catalog with genre and tempo filters",
		Tags:        []string{"Catalog"},
		Security:    bearerSecurity,
	}, s.handleSearchTracks)
}

// === DTOs ===

// GenresResponse lists genres.
type GenresResponse struct {
	Genres []service.GenreInfo `json:"genres" doc:"Genres in canonical order"`
}

// GenresOutput wraps the genre list for Huma.
type GenresOutput struct {
	Body GenresResponse
}

// ListTracksInput contains parameters for listing tracks.
type ListTracksInput struct {
	Genre string `query:"genre" doc:"Genre name, slug or label"`
}

// TracksResponse lists tracks.
type TracksResponse struct {
	Tracks []*domain.Track `json:"tracks" doc:"Tracks in catalog order"`
}

// TracksOutput wraps the track list for Huma.
type TracksOutput struct {
	Body TracksResponse
}

// TrackIDInput identifies a track.
type TrackIDInput struct {
	ID string `path:"id" doc:"Track ID"`
}

// TrackOutput wraps a track for Huma.
type TrackOutput struct {
	Body *domain.Track
}

// SearchTracksInput contains search parameters.
type SearchTracksInput struct {
	Query  string `query:"q" doc:"Search text; empty matches everything"`
	Genre  string `query:"genre" doc:"Genre name, slug or label"`
	MinBPM int    `query:"min_bpm" minimum:"0" doc:"Minimum tempo, inclusive"`
	MaxBPM int    `query:"max_bpm" minimum:"0" doc:"Maximum tempo, inclusive"`
	Limit  int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum hits"`
	Offset int    `query:"offset" minimum:"0" doc:"Hits to skip"`
}

// SearchTracksOutput wraps search results for Huma.
type SearchTracksOutput struct {
	Body *search.Result
}

// === Handlers ===

func (s *Server) handleListGenres(ctx context.Context, _ *struct{}) (*GenresOutput, error) {
	if _, err := GetIdentity(ctx); err != nil {
		return nil, err
	}

	genres, err := s.services.Catalog.Genres(ctx)
	if err != nil {
		return nil, err
	}
	return &GenresOutput{Body: GenresResponse{Genres: genres}}, nil
}

func (s *Server) handleListTracks(ctx context.Context, input *ListTracksInput) (*TracksOutput, error) {
	if _, err := GetIdentity(ctx); err != nil {
		return nil, err
	}

	var g genre.Genre
	if input.Genre != "" {
		parsed, err := genre.Parse(input.Genre)
		if err != nil {
			return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"genre": err.Error()})
		}
		g = parsed
	}

	tracks, err := s.services.Catalog.ListTracks(ctx, g)
	if err != nil {
		return nil, err
	}
	if tracks == nil {
		tracks = []*domain.Track{}
	}
	return &TracksOutput{Body: TracksResponse{Tracks: tracks}}, nil
}

func (s *Server) handleGetTrack(ctx context.Context, input *TrackIDInput) (*TrackOutput, error) {
	if _, err := GetIdentity(ctx); err != nil {
		return nil, err
	}

	track, err := s.services.Catalog.GetTrack(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &TrackOutput{Body: track}, nil
}

func (s *Server) handleSearchTracks(ctx context.Context, input *SearchTracksInput) (*SearchTracksOutput, error) {
	if _, err := GetIdentity(ctx); err != nil {
		return nil, err
	}

	result, err := s.services.Catalog.Search(ctx, search.Params{
		Query:  input.Query,
		Genre:  input.Genre,
		MinBPM: input.MinBPM,
		MaxBPM: input.MaxBPM,
		Limit:  min(input.Limit, maxPageSize),
		Offset: input.Offset,
	})
	if err != nil {
		return nil, err
	}
	return &SearchTracksOutput{Body: result}, nil
}
