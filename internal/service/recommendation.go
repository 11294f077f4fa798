package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
	"github.com/neurotunes/neurotunes-server/internal/genre"
	"github.com/neurotunes/neurotunes-server/internal/id"
	"github.com/neurotunes/neurotunes-server/internal/metrics"
	"github.com/neurotunes/neurotunes-server/internal/playlist"
	"github.com/neurotunes/neurotunes-server/internal/store"
	"github.com/neurotunes/neurotunes-server/internal/validation"
)

// RecommendationService links caregiver output to recipient emails.
type RecommendationService struct {
	store     store.Store
	validator *validation.Validator
	now       Clock
	logger    *slog.Logger
}

// NewRecommendationService creates a recommendation service.
func NewRecommendationService(s store.Store, v *validation.Validator, logger *slog.Logger) *RecommendationService {
	return &RecommendationService{store: s, validator: v, now: utcNow, logger: logger}
}

func (s *RecommendationService) recipient(email string) (string, error) {
	email = domain.NormalizeEmail(email)
	if err := s.validator.Var("recipient_email", email, "required,email"); err != nil {
		return "", err
	}
	return email, nil
}

// Create stores a recommendation of genres, in rank order, for a recipient.
// Genres must be non-empty, valid and distinct.
func (s *RecommendationService) Create(ctx context.Context, caregiver, recipientEmail string, genres []genre.Genre) (*domain.Recommendation, error) {
	email, err := s.recipient(recipientEmail)
	if err != nil {
		return nil, err
	}
	if len(genres) == 0 {
		return nil, domainerrors.ValidationWithDetails("validation failed",
			map[string]string{"genres": "at least one genre is required"})
	}

	seen := make(map[genre.Genre]bool, len(genres))
	ranked := make([]domain.GenreWeight, 0, len(genres))
	for _, g := range genres {
		if !g.Valid() {
			return nil, domainerrors.ValidationWithDetails("validation failed",
				map[string]string{"genres": fmt.Sprintf("unknown genre %d", g)})
		}
		if seen[g] {
			return nil, domainerrors.ValidationWithDetails("validation failed",
				map[string]string{"genres": fmt.Sprintf("%s listed twice", g)})
		}
		seen[g] = true
		ranked = append(ranked, domain.GenreWeight{Genre: g, Weight: 1 / float64(len(genres))})
	}

	r := &domain.Recommendation{
		Caregiver:      domain.NormalizeEmail(caregiver),
		RecipientEmail: email,
		Genres:         ranked,
	}
	if err := s.save(ctx, r, "manual"); err != nil {
		return nil, err
	}
	return r, nil
}

// RecommendFromPatient derives a recommendation from a patient's
// confidence-weighted genre ranking and attaches the cognitive snapshot.
func (s *RecommendationService) RecommendFromPatient(ctx context.Context, caregiver, patientID, recipientEmail string) (*domain.Recommendation, error) {
	email, err := s.recipient(recipientEmail)
	if err != nil {
		return nil, err
	}

	p, err := s.store.GetPatient(ctx, patientID)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("patient %q", patientID))
	}
	if len(p.Summary.Ranking) == 0 {
		return nil, domainerrors.Conflictf("patient %q has no classified observations yet", patientID)
	}

	snapshot := p.Summary.Means
	r := &domain.Recommendation{
		Caregiver:      domain.NormalizeEmail(caregiver),
		RecipientEmail: email,
		Genres:         append([]domain.GenreWeight(nil), p.Summary.Ranking...),
		PatientID:      patientID,
		Snapshot:       &snapshot,
	}
	if err := s.save(ctx, r, "patient"); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *RecommendationService) save(ctx context.Context, r *domain.Recommendation, source string) error {
	recID, err := id.Generate(id.Recommendation)
	if err != nil {
		return fmt.Errorf("generate recommendation ID: %w", err)
	}
	r.ID = recID
	r.CreatedAt = s.now()

	tracks, err := s.store.ListTracks(ctx, 0)
	if err != nil {
		return storeError(err, "catalog")
	}
	for _, t := range playlist.Build(playlist.Allocate(r.Genres, playlist.DefaultMax), tracks, playlist.DefaultMax) {
		r.TrackIDs = append(r.TrackIDs, t.ID)
	}

	if err := s.store.CreateRecommendation(ctx, r); err != nil {
		return storeError(err, "recommendation")
	}
	metrics.RecommendationsCreated.WithLabelValues(source).Inc()
	s.logger.Info("recommendation created",
		"recommendation_id", r.ID,
		"recipient", r.RecipientEmail,
		"patient_id", r.PatientID,
		"genres", len(r.Genres),
	)
	return nil
}

// ListForRecipient returns records addressed to email, newest first.
func (s *RecommendationService) ListForRecipient(ctx context.Context, email string) ([]*domain.Recommendation, error) {
	recs, err := s.store.ListRecommendationsByRecipient(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, storeError(err, "recommendations")
	}
	return recs, nil
}

// Get returns one record. Only its caregiver and recipient may read it.
func (s *RecommendationService) Get(ctx context.Context, viewer, recID string) (*domain.Recommendation, error) {
	r, err := s.store.GetRecommendation(ctx, recID)
	if err != nil {
		return nil, storeError(err, "recommendation")
	}
	viewer = domain.NormalizeEmail(viewer)
	if viewer != r.Caregiver && viewer != r.RecipientEmail {
		return nil, domainerrors.NotFound("recommendation not found")
	}
	return r, nil
}

// Delete removes a record. Only the caregiver who wrote it may delete it.
func (s *RecommendationService) Delete(ctx context.Context, caregiver, recID string) error {
	r, err := s.store.GetRecommendation(ctx, recID)
	if err != nil {
		return storeError(err, "recommendation")
	}
	if r.Caregiver != domain.NormalizeEmail(caregiver) {
		return domainerrors.Forbidden("recommendation belongs to another caregiver")
	}
	if err := s.store.DeleteRecommendation(ctx, recID); err != nil {
		return storeError(err, "recommendation")
	}
	s.logger.Info("recommendation deleted", "recommendation_id", recID)
	return nil
}

// Playlist is a bounded track list built from one recommendation.
type Playlist struct {
	RecommendationID string                `json:"recommendation_id,omitempty"`
	Allocation       []playlist.Allocation `json:"allocation"`
	Tracks           []*domain.Track       `json:"tracks"`
}

// PlaylistForRecipient builds at most limit tracks from the newest record
// addressed to email. A recipient without records gets an empty playlist.
func (s *RecommendationService) PlaylistForRecipient(ctx context.Context, email string, limit int) (*Playlist, error) {
	if limit <= 0 {
		limit = playlist.DefaultMax
	}
	recs, err := s.ListForRecipient(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return &Playlist{Allocation: []playlist.Allocation{}, Tracks: []*domain.Track{}}, nil
	}

	newest := recs[0]
	tracks, err := s.store.ListTracks(ctx, 0)
	if err != nil {
		return nil, storeError(err, "catalog")
	}
	alloc := playlist.Allocate(newest.Genres, limit)
	return &Playlist{
		RecommendationID: newest.ID,
		Allocation:       alloc,
		Tracks:           playlist.Build(alloc, tracks, limit),
	}, nil
}
