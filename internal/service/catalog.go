package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neurotunes/neurotunes-server/internal/catalog"
	"github.com/neurotunes/neurotunes-server/internal/domain"
	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
	"github.com/neurotunes/neurotunes-server/internal/genre"
	"github.com/neurotunes/neurotunes-server/internal/search"
	"github.com/neurotunes/neurotunes-server/internal/store"
)

// CatalogService serves the melody catalog and its search index.
type CatalogService struct {
	store  store.Store
	index  *search.TrackIndex
	logger *slog.Logger
}

// NewCatalogService creates a catalog service. index may be nil, in which
// case Search reports the feature as unavailable.
func NewCatalogService(s store.Store, index *search.TrackIndex, logger *slog.Logger) *CatalogService {
	return &CatalogService{store: s, index: index, logger: logger}
}

// SeedIfEmpty writes the built-in catalog when the store has no tracks and
// returns how many tracks were written.
func (s *CatalogService) SeedIfEmpty(ctx context.Context) (int, error) {
	n, err := s.store.CountTracks(ctx)
	if err != nil {
		return 0, storeError(err, "catalog")
	}
	if n > 0 {
		return 0, nil
	}
	return s.Seed(ctx)
}

// Seed writes the built-in catalog, replacing tracks with the same ids.
func (s *CatalogService) Seed(ctx context.Context) (int, error) {
	tracks := catalog.Tracks()
	for _, t := range tracks {
		if err := s.store.PutTrack(ctx, t); err != nil {
			return 0, storeError(err, fmt.Sprintf("track %s", t.ID))
		}
	}
	s.logger.Info("catalog seeded", "tracks", len(tracks))
	return len(tracks), nil
}

// Reindex rebuilds the search index from the store.
func (s *CatalogService) Reindex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	tracks, err := s.store.ListTracks(ctx, 0)
	if err != nil {
		return storeError(err, "catalog")
	}
	if err := s.index.Rebuild(tracks); err != nil {
		return fmt.Errorf("rebuild track index: %w", err)
	}
	s.logger.Info("track index rebuilt", "tracks", len(tracks))
	return nil
}

// ListTracks lists tracks in catalog order. A zero genre lists all.
func (s *CatalogService) ListTracks(ctx context.Context, g genre.Genre) ([]*domain.Track, error) {
	tracks, err := s.store.ListTracks(ctx, g)
	if err != nil {
		return nil, storeError(err, "catalog")
	}
	return tracks, nil
}

// GetTrack returns one track.
func (s *CatalogService) GetTrack(ctx context.Context, trackID string) (*domain.Track, error) {
	t, err := s.store.GetTrack(ctx, trackID)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("track %q", trackID))
	}
	return t, nil
}

// GenreInfo describes one genre and its catalog size.
type GenreInfo struct {
	Genre  genre.Genre `json:"genre"`
	Label  int         `json:"label"`
	Name   string      `json:"name"`
	Slug   string      `json:"slug"`
	Tracks int         `json:"tracks"`
}

// Genres lists every genre in canonical order.
func (s *CatalogService) Genres(ctx context.Context) ([]GenreInfo, error) {
	tracks, err := s.store.ListTracks(ctx, 0)
	if err != nil {
		return nil, storeError(err, "catalog")
	}
	counts := make(map[genre.Genre]int, len(genre.All))
	for _, t := range tracks {
		counts[t.Genre]++
	}

	out := make([]GenreInfo, 0, len(genre.All))
	for _, g := range genre.All {
		out = append(out, GenreInfo{Genre: g, Label: g.Label(), Name: g.String(), Slug: g.Slug(), Tracks: counts[g]})
	}
	return out, nil
}

// Search queries the catalog index. A genre filter may be a slug, a label
// or a display name.
func (s *CatalogService) Search(ctx context.Context, params search.Params) (*search.Result, error) {
	if s.index == nil {
		return nil, domainerrors.Internalf("catalog search is not configured")
	}
	if params.Genre != "" {
		g, err := genre.Parse(params.Genre)
		if err != nil {
			return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"genre": err.Error()})
		}
		params.Genre = g.Slug()
	}
	if params.MinBPM > 0 && params.MaxBPM > 0 && params.MinBPM > params.MaxBPM {
		return nil, domainerrors.ValidationWithDetails("validation failed",
			map[string]string{"max_bpm": "must not be below min_bpm"})
	}
	return s.index.Search(ctx, params)
}
