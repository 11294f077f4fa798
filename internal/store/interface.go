// Package store defines the persistence contract and the Badger backend.
package store

import (
	"context"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	"github.com/neurotunes/neurotunes-server/internal/genre"
)

// Store is the single source of truth for patient records, recommendations,
// the melody catalog, and activity.
type Store interface {
	Close() error
	Ping(ctx context.Context) error

	// Patients. Observations are append-only; AppendObservations writes the
	// rows and the updated profile in one transaction.
	CreatePatient(ctx context.Context, p *domain.Patient) error
	GetPatient(ctx context.Context, id string) (*domain.Patient, error)
	ListPatients(ctx context.Context, caregiver string) ([]*domain.Patient, error)
	AppendObservations(ctx context.Context, p *domain.Patient, obs []domain.Observation) error
	ListObservations(ctx context.Context, patientID string) ([]domain.Observation, error)
	DeletePatient(ctx context.Context, id string) error

	// Recommendations, looked up by normalized recipient email.
	CreateRecommendation(ctx context.Context, r *domain.Recommendation) error
	GetRecommendation(ctx context.Context, id string) (*domain.Recommendation, error)
	ListRecommendationsByRecipient(ctx context.Context, email string) ([]*domain.Recommendation, error)
	DeleteRecommendation(ctx context.Context, id string) error

	// Melody catalog. A zero genre lists every track.
	PutTrack(ctx context.Context, t *domain.Track) error
	GetTrack(ctx context.Context, id string) (*domain.Track, error)
	ListTracks(ctx context.Context, g genre.Genre) ([]*domain.Track, error)
	CountTracks(ctx context.Context) (int, error)

	// Users and activity events.
	UpsertUser(ctx context.Context, u *domain.User) (created bool, err error)
	GetUser(ctx context.Context, email string) (*domain.User, error)
	CreateEvent(ctx context.Context, e *domain.Event) error
	ListEvents(ctx context.Context, email string) ([]*domain.Event, error)
}
