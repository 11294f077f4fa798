package store

import (
	"context"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	"github.com/neurotunes/neurotunes-server/internal/genre"
)

// PutTrack creates or replaces a catalog entry.
func (s *BadgerStore) PutTrack(ctx context.Context, t *domain.Track) error {
	if !t.Genre.Valid() {
		return ErrInvalidInput.WithMessagef("track %s has no valid genre", t.ID)
	}
	_, err := s.tracks.Upsert(ctx, t.ID, t)
	return err
}

// GetTrack returns the entry, or ErrNotFound.
func (s *BadgerStore) GetTrack(ctx context.Context, id string) (*domain.Track, error) {
	return s.tracks.Get(ctx, id)
}

// ListTracks returns tracks of genre g in catalog order; a zero g lists all.
func (s *BadgerStore) ListTracks(ctx context.Context, g genre.Genre) ([]*domain.Track, error) {
	var out []*domain.Track
	if g != 0 {
		var err error
		if out, err = s.tracks.ListByIndex(ctx, "genre", g.Slug()); err != nil {
			return nil, err
		}
	} else {
		for t, err := range s.tracks.List(ctx) {
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
	}
	if out == nil {
		out = []*domain.Track{}
	}
	SortTracks(out)
	return out, nil
}

// CountTracks returns the catalog size.
func (s *BadgerStore) CountTracks(ctx context.Context) (int, error) {
	return s.tracks.Count(ctx)
}
