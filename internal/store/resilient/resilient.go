// Package resilient wraps a store.Store in a circuit breaker so a failing
// backend surfaces as STORE_UNAVAILABLE instead of hanging every request.
package resilient

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
	"github.com/neurotunes/neurotunes-server/internal/genre"
	"github.com/neurotunes/neurotunes-server/internal/metrics"
	"github.com/neurotunes/neurotunes-server/internal/store"
)

// Config controls when the breaker opens.
type Config struct {
	Name string
	// FailureThreshold consecutive backend failures open the breaker.
	FailureThreshold uint32
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
}

// Store decorates a backend with breaker protection.
type Store struct {
	next   store.Store
	cb     *gobreaker.CircuitBreaker[any]
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New wraps next.
func New(next store.Store, cfg Config, logger *slog.Logger) *Store {
	if cfg.Name == "" {
		cfg.Name = "store"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{next: next, logger: logger}
	s.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.StoreBreakerState.WithLabelValues(name).Set(float64(to))
			s.logger.Warn("store breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	metrics.StoreBreakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))
	return s
}

// State reports the breaker state, e.g. for /health.
func (s *Store) State() gobreaker.State {
	return s.cb.State()
}

// isSuccessful treats answers about the request itself as healthy backend
// responses. Only everything else counts toward opening the breaker.
func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrAlreadyExists) ||
		errors.Is(err, store.ErrInvalidInput) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func call[T any](s *Store, op string, fn func() (T, error)) (T, error) {
	v, err := s.cb.Execute(func() (any, error) {
		out, err := fn()
		return out, err
	})
	out, _ := v.(T)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return out, domainerrors.StoreUnavailable(err)
	}
	if isSuccessful(err) {
		return out, err
	}
	metrics.StoreErrors.WithLabelValues(op).Inc()
	s.logger.Error("store operation failed", "operation", op, "error", err)
	return out, domainerrors.StoreUnavailable(err)
}

func exec(s *Store, op string, fn func() error) error {
	_, err := call(s, op, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// Close closes the backend without going through the breaker.
func (s *Store) Close() error { return s.next.Close() }

// Ping checks the backend through the breaker.
func (s *Store) Ping(ctx context.Context) error {
	return exec(s, "ping", func() error { return s.next.Ping(ctx) })
}

// CreatePatient stores a new profile through the breaker.
func (s *Store) CreatePatient(ctx context.Context, p *domain.Patient) error {
	return exec(s, "create_patient", func() error { return s.next.CreatePatient(ctx, p) })
}

// GetPatient reads one profile through the breaker.
func (s *Store) GetPatient(ctx context.Context, id string) (*domain.Patient, error) {
	return call(s, "get_patient", func() (*domain.Patient, error) { return s.next.GetPatient(ctx, id) })
}

// ListPatients lists a caregiver's profiles through the breaker.
func (s *Store) ListPatients(ctx context.Context, caregiver string) ([]*domain.Patient, error) {
	return call(s, "list_patients", func() ([]*domain.Patient, error) { return s.next.ListPatients(ctx, caregiver) })
}

// AppendObservations appends rows and the updated profile through the breaker.
func (s *Store) AppendObservations(ctx context.Context, p *domain.Patient, obs []domain.Observation) error {
	return exec(s, "append_observations", func() error { return s.next.AppendObservations(ctx, p, obs) })
}

// ListObservations reads a patient's history through the breaker.
func (s *Store) ListObservations(ctx context.Context, patientID string) ([]domain.Observation, error) {
	return call(s, "list_observations", func() ([]domain.Observation, error) { return s.next.ListObservations(ctx, patientID) })
}

// DeletePatient removes a profile and its history through the breaker.
func (s *Store) DeletePatient(ctx context.Context, id string) error {
	return exec(s, "delete_patient", func() error { return s.next.DeletePatient(ctx, id) })
}

// CreateRecommendation stores a record through the breaker.
func (s *Store) CreateRecommendation(ctx context.Context, r *domain.Recommendation) error {
	return exec(s, "create_recommendation", func() error { return s.next.CreateRecommendation(ctx, r) })
}

// GetRecommendation reads one record through the breaker.
func (s *Store) GetRecommendation(ctx context.Context, id string) (*domain.Recommendation, error) {
	return call(s, "get_recommendation", func() (*domain.Recommendation, error) { return s.next.GetRecommendation(ctx, id) })
}

// ListRecommendationsByRecipient looks up records by recipient email through the breaker.
func (s *Store) ListRecommendationsByRecipient(ctx context.Context, email string) ([]*domain.Recommendation, error) {
	return call(s, "list_recommendations", func() ([]*domain.Recommendation, error) {
		return s.next.ListRecommendationsByRecipient(ctx, email)
	})
}

// DeleteRecommendation removes a record through the breaker.
func (s *Store) DeleteRecommendation(ctx context.Context, id string) error {
	return exec(s, "delete_recommendation", func() error { return s.next.DeleteRecommendation(ctx, id) })
}

// PutTrack writes a catalog track through the breaker.
func (s *Store) PutTrack(ctx context.Context, t *domain.Track) error {
	return exec(s, "put_track", func() error { return s.next.PutTrack(ctx, t) })
}

// GetTrack reads one catalog track through the breaker.
func (s *Store) GetTrack(ctx context.Context, id string) (*domain.Track, error) {
	return call(s, "get_track", func() (*domain.Track, error) { return s.next.GetTrack(ctx, id) })
}

// ListTracks lists catalog tracks through the breaker.
func (s *Store) ListTracks(ctx context.Context, g genre.Genre) ([]*domain.Track, error) {
	return call(s, "list_tracks", func() ([]*domain.Track, error) { return s.next.ListTracks(ctx, g) })
}

// CountTracks counts catalog tracks through the breaker.
func (s *Store) CountTracks(ctx context.Context) (int, error) {
	return call(s, "count_tracks", func() (int, error) { return s.next.CountTracks(ctx) })
}

// UpsertUser creates or refreshes a user through the breaker.
func (s *Store) UpsertUser(ctx context.Context, u *domain.User) (bool, error) {
	return call(s, "upsert_user", func() (bool, error) { return s.next.UpsertUser(ctx, u) })
}

// GetUser reads one user through the breaker.
func (s *Store) GetUser(ctx context.Context, email string) (*domain.User, error) {
	return call(s, "get_user", func() (*domain.User, error) { return s.next.GetUser(ctx, email) })
}

// CreateEvent records an activity event through the breaker.
func (s *Store) CreateEvent(ctx context.Context, e *domain.Event) error {
	return exec(s, "create_event", func() error { return s.next.CreateEvent(ctx, e) })
}

// ListEvents reads a user's events through the breaker.
func (s *Store) ListEvents(ctx context.Context, email string) ([]*domain.Event, error) {
	return call(s, "list_events", func() ([]*domain.Event, error) { return s.next.ListEvents(ctx, email) })
}
