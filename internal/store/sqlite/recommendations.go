package sqlite

import (
	"context"
	"database/sql"
	"encoding/json/v2"
	"errors"
	"fmt"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	"github.com/neurotunes/neurotunes-server/internal/scoring"
	"github.com/neurotunes/neurotunes-server/internal/store"
)

const recommendationColumns = `id, caregiver, recipient_email, genres, track_ids, patient_id, snapshot, created_at`

func scanRecommendation(scanner interface{ Scan(dest ...any) error }) (*domain.Recommendation, error) {
	var (
		r                domain.Recommendation
		genres, trackIDs string
		patientID, snap  sql.NullString
		createdAt        string
	)
	if err := scanner.Scan(&r.ID, &r.Caregiver, &r.RecipientEmail, &genres, &trackIDs, &patientID, &snap, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(genres), &r.Genres); err != nil {
		return nil, fmt.Errorf("decode genres: %w", err)
	}
	if err := json.Unmarshal([]byte(trackIDs), &r.TrackIDs); err != nil {
		return nil, fmt.Errorf("decode track ids: %w", err)
	}
	if len(r.TrackIDs) == 0 {
		r.TrackIDs = nil
	}
	r.PatientID = patientID.String
	if snap.Valid {
		r.Snapshot = &scoring.Means{}
		if err := json.Unmarshal([]byte(snap.String), r.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
	}
	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRecommendation inserts a new record.
func (s *Store) CreateRecommendation(ctx context.Context, r *domain.Recommendation) error {
	genres, err := json.Marshal(r.Genres)
	if err != nil {
		return fmt.Errorf("encode genres: %w", err)
	}
	trackIDs := r.TrackIDs
	if trackIDs == nil {
		trackIDs = []string{}
	}
	tracks, err := json.Marshal(trackIDs)
	if err != nil {
		return fmt.Errorf("encode track ids: %w", err)
	}
	var snapshot sql.NullString
	if r.Snapshot != nil {
		b, err := json.Marshal(r.Snapshot)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		snapshot = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO recommendations (`+recommendationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Caregiver, r.RecipientEmail, string(genres), string(tracks),
		nullString(r.PatientID), snapshot, formatTime(r.CreatedAt))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// GetRecommendation returns the record, or store.ErrNotFound.
func (s *Store) GetRecommendation(ctx context.Context, id string) (*domain.Recommendation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recommendationColumns+` FROM recommendations WHERE id = ?`, id)
	r, err := scanRecommendation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return r, err
}

// ListRecommendationsByRecipient returns records addressed to email, newest first.
func (s *Store) ListRecommendationsByRecipient(ctx context.Context, email string) ([]*domain.Recommendation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recommendationColumns+` FROM recommendations WHERE recipient_email = ?`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Recommendation{}
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// RFC3339Nano strings do not sort lexically, so order in Go.
	store.SortRecommendations(out)
	return out, nil
}

// DeleteRecommendation removes the record, or returns store.ErrNotFound.
func (s *Store) DeleteRecommendation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recommendations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
