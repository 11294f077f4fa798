package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/neurotunes/neurotunes-server/internal/classifier"
	"github.com/neurotunes/neurotunes-server/internal/domain"
	"github.com/neurotunes/neurotunes-server/internal/eeg"
	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
	"github.com/neurotunes/neurotunes-server/internal/keylock"
	"github.com/neurotunes/neurotunes-server/internal/metrics"
	"github.com/neurotunes/neurotunes-server/internal/playlist"
	"github.com/neurotunes/neurotunes-server/internal/scoring"
	"github.com/neurotunes/neurotunes-server/internal/store"
	"github.com/neurotunes/neurotunes-server/internal/validation"
)

// PatientService owns patient profiles and their append-only histories.
// Writes for one patient are serialized; different patients run in parallel.
type PatientService struct {
	store  store.Store
	model  *classifier.Adapter
	locks  *keylock.Map[string]
	now    Clock
	logger *slog.Logger
}

// NewPatientService creates a patient service.
func NewPatientService(s store.Store, model *classifier.Adapter, logger *slog.Logger) *PatientService {
	return &PatientService{
		store:  s,
		model:  model,
		locks:  keylock.New[string](),
		now:    utcNow,
		logger: logger,
	}
}

func checkPatientID(patientID string) error {
	if !validation.ValidPatientID(patientID) {
		return domainerrors.ValidationWithDetails("invalid patient id", map[string]string{
			"patient_id": "must be 1-64 letters, digits, '.', '_' or '-'",
		})
	}
	return nil
}

// UpsertPatient returns the existing profile, or creates an empty one; the
// bool reports creation. Profiles are owned by the caregiver who created
// them, so upserting an id owned by a different caregiver returns Forbidden
// rather than that caregiver's profile.
func (s *PatientService) UpsertPatient(ctx context.Context, caregiver, patientID string) (*domain.Patient, bool, error) {
	if err := checkPatientID(patientID); err != nil {
		return nil, false, err
	}
	caregiver = domain.NormalizeEmail(caregiver)

	unlock, err := s.locks.Lock(ctx, patientID)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	p, err := s.store.GetPatient(ctx, patientID)
	switch {
	case err == nil:
		if p.Caregiver != caregiver {
			return nil, false, domainerrors.Forbidden("patient belongs to another caregiver")
		}
		return p, false, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, false, storeError(err, "patient")
	}

	now := s.now()
	p = &domain.Patient{
		ID:        patientID,
		Caregiver: caregiver,
		Summary:   domain.Summarize(nil),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreatePatient(ctx, p); err != nil {
		return nil, false, storeError(err, "patient")
	}

	s.logger.Info("patient created", "patient_id", patientID, "caregiver", caregiver)
	return p, true, nil
}

// AppendBatch validates, scores and classifies a batch, then appends every
// row and the recomputed summary in one write. The profile is created on
// the first upload. Any failure leaves the history untouched.
func (s *PatientService) AppendBatch(ctx context.Context, caregiver, patientID string, table *eeg.Table) (*domain.Batch, error) {
	start := time.Now()
	source := batchSource(ctx)

	batch, err := s.appendBatch(ctx, domain.NormalizeEmail(caregiver), patientID, table)
	switch {
	case err == nil:
		metrics.BatchesTotal.WithLabelValues(source, metrics.OutcomeStored).Inc()
		metrics.BatchDuration.Observe(time.Since(start).Seconds())
	case errors.Is(err, domainerrors.ErrSchema), errors.Is(err, domainerrors.ErrValidation),
		errors.Is(err, domainerrors.ErrForbidden):
		metrics.BatchesTotal.WithLabelValues(source, metrics.OutcomeRejected).Inc()
	default:
		metrics.BatchesTotal.WithLabelValues(source, metrics.OutcomeFailed).Inc()
	}
	return batch, err
}

func (s *PatientService) appendBatch(ctx context.Context, caregiver, patientID string, table *eeg.Table) (*domain.Batch, error) {
	if err := checkPatientID(patientID); err != nil {
		return nil, err
	}

	rows, err := eeg.Validate(table)
	if err != nil {
		return nil, err
	}

	preds, err := s.model.PredictBatch(ctx, rows)
	if err != nil {
		if errors.Is(err, domainerrors.ErrModelUnavailable) || ctx.Err() != nil {
			return nil, err
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "classification failed")
	}

	unlock, err := s.locks.Lock(ctx, patientID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()
	created := false
	p, err := s.store.GetPatient(ctx, patientID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		created = true
		p = &domain.Patient{ID: patientID, Caregiver: caregiver, CreatedAt: now}
	case err != nil:
		return nil, storeError(err, "patient")
	case p.Caregiver != caregiver:
		return nil, domainerrors.Forbidden("patient belongs to another caregiver")
	}

	var history []domain.Observation
	if !created {
		history, err = s.store.ListObservations(ctx, patientID)
		if err != nil {
			return nil, storeError(err, "patient")
		}
	}

	batchID := uuid.NewString()
	first := len(history)
	fresh := make([]domain.Observation, len(rows))
	for i, row := range rows {
		fresh[i] = domain.Observation{
			PatientID:  patientID,
			Seq:        first + i,
			BatchID:    batchID,
			Row:        row,
			Scores:     scoring.Compute(row),
			Prediction: preds[i],
			RecordedAt: now,
		}
	}

	p.Summary = domain.Summarize(append(history, fresh...))
	p.UpdatedAt = now
	if err := s.store.AppendObservations(ctx, p, fresh); err != nil {
		return nil, storeError(err, "patient history")
	}

	metrics.ObservationsStored.Add(float64(len(fresh)))
	for _, o := range fresh {
		metrics.PredictionsTotal.WithLabelValues(o.Prediction.Genre.Slug()).Inc()
	}
	s.logger.Info("batch stored",
		"patient_id", patientID,
		"batch_id", batchID,
		"rows", len(fresh),
		"first_seq", first,
		"created", created,
	)

	return &domain.Batch{
		ID:        batchID,
		PatientID: patientID,
		Rows:      len(fresh),
		FirstSeq:  first,
		Created:   created,
		Summary:   p.Summary,
		StoredAt:  now,
	}, nil
}

// GetPatient returns a profile.
func (s *PatientService) GetPatient(ctx context.Context, patientID string) (*domain.Patient, error) {
	p, err := s.store.GetPatient(ctx, patientID)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("patient %q", patientID))
	}
	return p, nil
}

// GetSummary returns the profile summary. A profile without observations
// has a zero count and undefined means.
func (s *PatientService) GetSummary(ctx context.Context, patientID string) (*domain.Summary, error) {
	p, err := s.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if p.Summary.Count == 0 {
		empty := domain.Summarize(nil)
		return &empty, nil
	}
	return &p.Summary, nil
}

// ListPatients lists profiles owned by caregiver, or all when caregiver is empty.
func (s *PatientService) ListPatients(ctx context.Context, caregiver string) ([]*domain.Patient, error) {
	ps, err := s.store.ListPatients(ctx, domain.NormalizeEmail(caregiver))
	if err != nil {
		return nil, storeError(err, "patients")
	}
	return ps, nil
}

// ListObservations returns the full history in upload order.
func (s *PatientService) ListObservations(ctx context.Context, patientID string) ([]domain.Observation, error) {
	obs, err := s.store.ListObservations(ctx, patientID)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("patient %q", patientID))
	}
	return obs, nil
}

// DeletePatient removes a profile and its history. Only the owning
// caregiver may delete it.
func (s *PatientService) DeletePatient(ctx context.Context, caregiver, patientID string) error {
	unlock, err := s.locks.Lock(ctx, patientID)
	if err != nil {
		return err
	}
	defer unlock()

	p, err := s.store.GetPatient(ctx, patientID)
	if err != nil {
		return storeError(err, fmt.Sprintf("patient %q", patientID))
	}
	if p.Caregiver != domain.NormalizeEmail(caregiver) {
		return domainerrors.Forbidden("patient belongs to another caregiver")
	}
	if err := s.store.DeletePatient(ctx, patientID); err != nil {
		return storeError(err, fmt.Sprintf("patient %q", patientID))
	}

	s.logger.Info("patient deleted", "patient_id", patientID, "observations", p.Summary.Count)
	return nil
}

// Preview is the scored view of a batch that was not stored.
type Preview struct {
	Rows      int                `json:"rows"`
	Scores    []scoring.ScoreSet `json:"scores"`
	Means     scoring.Means      `json:"means"`
	Dashboard scoring.Means      `json:"dashboard"`
}

// PreviewScores validates and scores a batch without classifying or storing it.
func (s *PatientService) PreviewScores(_ context.Context, table *eeg.Table) (*Preview, error) {
	rows, err := eeg.Validate(table)
	if err != nil {
		return nil, err
	}
	sets := make([]scoring.ScoreSet, len(rows))
	for i, r := range rows {
		sets[i] = scoring.Compute(r)
	}
	return &Preview{
		Rows:      len(rows),
		Scores:    sets,
		Means:     scoring.Aggregate(sets),
		Dashboard: scoring.Dashboard(sets),
	}, nil
}

// GenreTrends ranks the genres a patient listened to by mean engagement.
func (s *PatientService) GenreTrends(ctx context.Context, patientID string) ([]playlist.GenreEngagement, error) {
	obs, err := s.ListObservations(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return playlist.RankByEngagement(obs), nil
}

// ModelInfo describes the loaded classifier.
func (s *PatientService) ModelInfo() (classifier.Info, bool) {
	return s.model.Info()
}
