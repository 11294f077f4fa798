package store

import (
	"context"

	"github.com/neurotunes/neurotunes-server/internal/domain"
)

// CreateRecommendation stores a new record.
func (s *BadgerStore) CreateRecommendation(ctx context.Context, r *domain.Recommendation) error {
	return s.recommendations.Create(ctx, r.ID, r)
}

// GetRecommendation returns the record, or ErrNotFound.
func (s *BadgerStore) GetRecommendation(ctx context.Context, id string) (*domain.Recommendation, error) {
	return s.recommendations.Get(ctx, id)
}

// ListRecommendationsByRecipient returns records addressed to email, newest first.
func (s *BadgerStore) ListRecommendationsByRecipient(ctx context.Context, email string) ([]*domain.Recommendation, error) {
	recs, err := s.recommendations.ListByIndex(ctx, "recipient", email)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*domain.Recommendation{}
	}
	SortRecommendations(recs)
	return recs, nil
}

// DeleteRecommendation removes the record, or returns ErrNotFound.
func (s *BadgerStore) DeleteRecommendation(ctx context.Context, id string) error {
	return s.recommendations.Delete(ctx, id)
}
