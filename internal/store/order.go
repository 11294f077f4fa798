package store

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/neurotunes/neurotunes-server/internal/domain"
)

// Both backends return lists in these orders.

// SortTracks orders by catalog id, numerically when both ids are numbers.
func SortTracks(tracks []*domain.Track) {
	slices.SortFunc(tracks, func(a, b *domain.Track) int {
		return CompareTrackIDs(a.ID, b.ID)
	})
}

// CompareTrackIDs compares track ids, numerically when both are integers.
func CompareTrackIDs(a, b string) int {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return cmp.Compare(ai, bi)
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}

// SortRecommendations orders newest first; equal timestamps by id descending.
func SortRecommendations(recs []*domain.Recommendation) {
	slices.SortFunc(recs, func(a, b *domain.Recommendation) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// SortEvents orders newest first; equal timestamps by id descending.
func SortEvents(events []*domain.Event) {
	slices.SortFunc(events, func(a, b *domain.Event) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// SortPatients orders by id.
func SortPatients(ps []*domain.Patient) {
	slices.SortFunc(ps, func(a, b *domain.Patient) int {
		return cmp.Compare(a.ID, b.ID)
	})
}
