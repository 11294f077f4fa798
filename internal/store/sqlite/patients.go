package sqlite

import (
	"context"
	"database/sql"
	"encoding/json/v2"
	"errors"
	"fmt"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	"github.com/neurotunes/neurotunes-server/internal/store"
)

const patientColumns = `id, caregiver, summary, created_at, updated_at`

func scanPatient(scanner interface{ Scan(dest ...any) error }) (*domain.Patient, error) {
	var (
		p                    domain.Patient
		summary              string
		createdAt, updatedAt string
	)
	if err := scanner.Scan(&p.ID, &p.Caregiver, &summary, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(summary), &p.Summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePatient inserts a new profile.
// Returns store.ErrAlreadyExists if the id is taken.
func (s *Store) CreatePatient(ctx context.Context, p *domain.Patient) error {
	summary, err := json.Marshal(p.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO patients (`+patientColumns+`) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Caregiver, string(summary), formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// GetPatient returns the profile, or store.ErrNotFound.
func (s *Store) GetPatient(ctx context.Context, id string) (*domain.Patient, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = ?`, id)
	p, err := scanPatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

// ListPatients returns profiles owned by caregiver (all when empty), ordered by id.
func (s *Store) ListPatients(ctx context.Context, caregiver string) ([]*domain.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients`
	var args []any
	if caregiver != "" {
		query += ` WHERE caregiver = ?`
		args = append(args, caregiver)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AppendObservations inserts obs and upserts the profile in one transaction.
// obs must continue the stored sequence exactly.
func (s *Store) AppendObservations(ctx context.Context, p *domain.Patient, obs []domain.Observation) error {
	if len(obs) == 0 {
		return store.ErrInvalidInput.WithMessage("no observations to append")
	}
	summary, err := json.Marshal(p.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM observations WHERE patient_id = ?`, p.ID).Scan(&next)
	if err != nil {
		return fmt.Errorf("read next seq: %w", err)
	}
	if obs[0].Seq != next {
		return store.ErrAlreadyExists.WithMessagef("observations out of sequence: next is %d, got %d", next, obs[0].Seq)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO patients (`+patientColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET summary = excluded.summary, updated_at = excluded.updated_at`,
		p.ID, p.Caregiver, string(summary), formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert patient: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (patient_id, seq, batch_id, row, scores, prediction, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare observation insert: %w", err)
	}
	defer stmt.Close()

	for i := range obs {
		o := &obs[i]
		row, err := json.Marshal(o.Row)
		if err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
		scores, err := json.Marshal(o.Scores)
		if err != nil {
			return fmt.Errorf("encode scores: %w", err)
		}
		pred, err := json.Marshal(o.Prediction)
		if err != nil {
			return fmt.Errorf("encode prediction: %w", err)
		}
		_, err = stmt.ExecContext(ctx, p.ID, o.Seq, o.BatchID, string(row), string(scores), string(pred), formatTime(o.RecordedAt))
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithMessagef("observation %d already recorded", o.Seq)
		}
		if err != nil {
			return fmt.Errorf("insert observation %d: %w", o.Seq, err)
		}
	}

	return tx.Commit()
}

// ListObservations returns the patient's observations by sequence number.
func (s *Store) ListObservations(ctx context.Context, patientID string) ([]domain.Observation, error) {
	if _, err := s.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, batch_id, row, scores, prediction, recorded_at
		FROM observations WHERE patient_id = ? ORDER BY seq`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Observation{}
	for rows.Next() {
		o := domain.Observation{PatientID: patientID}
		var row, scores, pred, recordedAt string
		if err := rows.Scan(&o.Seq, &o.BatchID, &row, &scores, &pred, &recordedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(row), &o.Row); err != nil {
			return nil, fmt.Errorf("decode row %d: %w", o.Seq, err)
		}
		if err := json.Unmarshal([]byte(scores), &o.Scores); err != nil {
			return nil, fmt.Errorf("decode scores %d: %w", o.Seq, err)
		}
		if err := json.Unmarshal([]byte(pred), &o.Prediction); err != nil {
			return nil, fmt.Errorf("decode prediction %d: %w", o.Seq, err)
		}
		if o.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// DeletePatient removes the profile and its observations in one transaction.
func (s *Store) DeletePatient(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM observations WHERE patient_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}
