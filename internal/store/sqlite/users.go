package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	"github.com/neurotunes/neurotunes-server/internal/genre"
	"github.com/neurotunes/neurotunes-server/internal/store"
)

// UpsertUser creates or refreshes the user keyed by email. An existing
// user keeps its original CreatedAt, which is copied back into u.
func (s *Store) UpsertUser(ctx context.Context, u *domain.User) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var createdAt string
	err = tx.QueryRowContext(ctx, `SELECT created_at FROM users WHERE email = ?`, u.Email).Scan(&createdAt)
	created := errors.Is(err, sql.ErrNoRows)
	switch {
	case created:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (email, name, role, created_at, last_seen_at) VALUES (?, ?, ?, ?, ?)`,
			u.Email, u.Name, string(u.Role), formatTime(u.CreatedAt), formatTime(u.LastSeenAt))
	case err != nil:
		return false, err
	default:
		if u.CreatedAt, err = parseTime(createdAt); err != nil {
			return false, err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET name = ?, role = ?, last_seen_at = ? WHERE email = ?`,
			u.Name, string(u.Role), formatTime(u.LastSeenAt), u.Email)
	}
	if err != nil {
		return false, err
	}
	return created, tx.Commit()
}

// GetUser returns the user, or store.ErrNotFound.
func (s *Store) GetUser(ctx context.Context, email string) (*domain.User, error) {
	var (
		u                   domain.User
		role                string
		createdAt, lastSeen string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT email, name, role, created_at, last_seen_at FROM users WHERE email = ?`, email).
		Scan(&u.Email, &u.Name, &role, &createdAt, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.LastSeenAt, err = parseTime(lastSeen); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateEvent appends an activity event.
func (s *Store) CreateEvent(ctx context.Context, e *domain.Event) error {
	var g sql.NullInt64
	if e.Genre.Valid() {
		g = sql.NullInt64{Int64: int64(e.Genre.Label()), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, email, type, track_id, genre, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Email, string(e.Type), nullString(e.TrackID), g, formatTime(e.CreatedAt))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// ListEvents returns the user's events, newest first.
func (s *Store) ListEvents(ctx context.Context, email string) ([]*domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, type, track_id, genre, created_at FROM events WHERE email = ?`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Event{}
	for rows.Next() {
		var (
			e         domain.Event
			typ       string
			trackID   sql.NullString
			label     sql.NullInt64
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Email, &typ, &trackID, &label, &createdAt); err != nil {
			return nil, err
		}
		e.Type = domain.EventType(typ)
		e.TrackID = trackID.String
		if label.Valid {
			if e.Genre, err = genre.FromLabel(int(label.Int64)); err != nil {
				return nil, err
			}
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	store.SortEvents(out)
	return out, nil
}
