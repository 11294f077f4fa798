package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	"github.com/neurotunes/neurotunes-server/internal/genre"
	"github.com/neurotunes/neurotunes-server/internal/id"
	"github.com/neurotunes/neurotunes-server/internal/metrics"
	"github.com/neurotunes/neurotunes-server/internal/store"
)

// ActivityService keeps last-seen user records and the activity log.
type ActivityService struct {
	store  store.Store
	now    Clock
	logger *slog.Logger
}

// NewActivityService creates an activity service.
func NewActivityService(s store.Store, logger *slog.Logger) *ActivityService {
	return &ActivityService{store: s, now: utcNow, logger: logger}
}

// TouchUser records that an identity was seen. The first sighting also
// records a login event.
func (s *ActivityService) TouchUser(ctx context.Context, email, name string, role domain.Role) (*domain.User, error) {
	now := s.now()
	u := &domain.User{
		Email:      domain.NormalizeEmail(email),
		Name:       name,
		Role:       role,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	created, err := s.store.UpsertUser(ctx, u)
	if err != nil {
		return nil, storeError(err, "user")
	}
	if created {
		if _, err := s.record(ctx, &domain.Event{Email: u.Email, Type: domain.EventLogin}); err != nil {
			return nil, err
		}
		s.logger.Info("new user seen", "email", u.Email, "role", role)
	}
	return u, nil
}

// GetUser returns the last-seen record for email.
func (s *ActivityService) GetUser(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.store.GetUser(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, storeError(err, "user")
	}
	return u, nil
}

// RecordPlay logs that email started a catalog track.
func (s *ActivityService) RecordPlay(ctx context.Context, email, trackID string) (*domain.Event, error) {
	t, err := s.store.GetTrack(ctx, trackID)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("track %q", trackID))
	}
	e, err := s.record(ctx, &domain.Event{
		Email:   domain.NormalizeEmail(email),
		Type:    domain.EventPlay,
		TrackID: t.ID,
		Genre:   t.Genre,
	})
	if err != nil {
		return nil, err
	}
	metrics.PlaysTotal.WithLabelValues(t.Genre.Slug()).Inc()
	s.logger.Debug("play recorded", "email", e.Email, "track_id", t.ID)
	return e, nil
}

func (s *ActivityService) record(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	eventID, err := id.Generate(id.Event)
	if err != nil {
		return nil, fmt.Errorf("generate event ID: %w", err)
	}
	e.ID = eventID
	e.CreatedAt = s.now()
	if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, storeError(err, "event")
	}
	return e, nil
}

// ListEvents returns the activity of email, newest first.
func (s *ActivityService) ListEvents(ctx context.Context, email string) ([]*domain.Event, error) {
	events, err := s.store.ListEvents(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, storeError(err, "events")
	}
	return events, nil
}

// GenrePlays is a play count for one genre.
type GenrePlays struct {
	Genre genre.Genre `json:"genre"`
	Plays int         `json:"plays"`
}

// PlaysByGenre counts the plays of email per genre, most played first.
// Genres never played are omitted; ties keep canonical genre order.
func (s *ActivityService) PlaysByGenre(ctx context.Context, email string) ([]GenrePlays, error) {
	events, err := s.ListEvents(ctx, email)
	if err != nil {
		return nil, err
	}
	counts := make(map[genre.Genre]int, len(genre.All))
	for _, e := range events {
		if e.Type == domain.EventPlay && e.Genre.Valid() {
			counts[e.Genre]++
		}
	}

	out := []GenrePlays{}
	for _, g := range genre.All {
		if counts[g] > 0 {
			out = append(out, GenrePlays{Genre: g, Plays: counts[g]})
		}
	}
	slices.SortStableFunc(out, func(a, b GenrePlays) int { return cmp.Compare(b.Plays, a.Plays) })
	return out, nil
}
