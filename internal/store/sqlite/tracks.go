package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	"github.com/neurotunes/neurotunes-server/internal/genre"
	"github.com/neurotunes/neurotunes-server/internal/store"
)

const trackColumns = `id, genre, name, duration_sec, bpm, music_key, audio_url`

func scanTrack(scanner interface{ Scan(dest ...any) error }) (*domain.Track, error) {
	var (
		t     domain.Track
		label int
	)
	if err := scanner.Scan(&t.ID, &label, &t.Name, &t.DurationSec, &t.BPM, &t.Key, &t.AudioURL); err != nil {
		return nil, err
	}
	g, err := genre.FromLabel(label)
	if err != nil {
		return nil, err
	}
	t.Genre = g
	return &t, nil
}

// PutTrack creates or replaces a catalog entry.
func (s *Store) PutTrack(ctx context.Context, t *domain.Track) error {
	if !t.Genre.Valid() {
		return store.ErrInvalidInput.WithMessagef("track %s has no valid genre", t.ID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracks (`+trackColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			genre = excluded.genre, name = excluded.name, duration_sec = excluded.duration_sec,
			bpm = excluded.bpm, music_key = excluded.music_key, audio_url = excluded.audio_url`,
		t.ID, t.Genre.Label(), t.Name, t.DurationSec, t.BPM, t.Key, t.AudioURL)
	return err
}

// GetTrack returns the entry, or store.ErrNotFound.
func (s *Store) GetTrack(ctx context.Context, id string) (*domain.Track, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return t, err
}

// ListTracks returns tracks of genre g in catalog order; a zero g lists all.
func (s *Store) ListTracks(ctx context.Context, g genre.Genre) ([]*domain.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks`
	var args []any
	if g != 0 {
		query += ` WHERE genre = ?`
		args = append(args, g.Label())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Track{}
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	store.SortTracks(out)
	return out, nil
}

// CountTracks returns the catalog size.
func (s *Store) CountTracks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&n)
	return n, err
}
