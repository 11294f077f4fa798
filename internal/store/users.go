package store

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/neurotunes/neurotunes-server/internal/domain"
)

// UpsertUser creates or refreshes the user keyed by email. An existing
// user keeps its original CreatedAt, which is copied back into u.
func (s *BadgerStore) UpsertUser(ctx context.Context, u *domain.User) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var created bool
	err := s.db.Update(func(txn *badger.Txn) error {
		old, err := s.users.getTxn(txn, u.Email)
		switch {
		case errors.Is(err, ErrNotFound):
			created = true
		case err != nil:
			return err
		default:
			u.CreatedAt = old.CreatedAt
		}
		_, err = s.users.upsertTxn(txn, u.Email, u)
		return err
	})
	return created, err
}

// GetUser returns the user, or ErrNotFound.
func (s *BadgerStore) GetUser(ctx context.Context, email string) (*domain.User, error) {
	return s.users.Get(ctx, email)
}

// CreateEvent appends an activity event.
func (s *BadgerStore) CreateEvent(ctx context.Context, e *domain.Event) error {
	return s.events.Create(ctx, e.ID, e)
}

// ListEvents returns the user's events, newest first.
func (s *BadgerStore) ListEvents(ctx context.Context, email string) ([]*domain.Event, error) {
	events, err := s.events.ListByIndex(ctx, "user", email)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*domain.Event{}
	}
	SortEvents(events)
	return events, nil
}
