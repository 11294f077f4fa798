// Package playlist turns ranked genres into bounded track lists and ranks
// genres by how engaging a patient's sessions were.
package playlist

import (
	"cmp"
	"math"
	"slices"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	"github.com/neurotunes/neurotunes-server/internal/genre"
)

// DefaultMax is the playlist length when none is requested.
const DefaultMax = 6

// Allocation is how many tracks one genre contributes.
type Allocation struct {
	Genre genre.Genre `json:"genre"`
	Count int         `json:"count"`
}

// Allocate splits limit slots across ranked genres by normalized weight.
// Every genre that gets a turn receives at least one slot, the last genre
// takes whatever remains, and allocation stops once limit is reached.
// Rounding is half-to-even.
func Allocate(ranked []domain.GenreWeight, limit int) []Allocation {
	if limit <= 0 {
		return nil
	}

	seen := make(map[genre.Genre]bool, len(ranked))
	clean := make([]domain.GenreWeight, 0, len(ranked))
	var total float64
	for _, r := range ranked {
		if !r.Genre.Valid() || seen[r.Genre] {
			continue
		}
		seen[r.Genre] = true
		w := math.Max(r.Weight, 0)
		clean = append(clean, domain.GenreWeight{Genre: r.Genre, Weight: w})
		total += w
	}
	if total == 0 {
		total = 1
	}

	var out []Allocation
	remaining := limit
	for i, r := range clean {
		count := int(math.Max(1, math.RoundToEven(r.Weight/total*float64(limit))))
		if i == len(clean)-1 {
			count = int(math.Max(1, float64(remaining)))
		}
		count = min(count, remaining)
		out = append(out, Allocation{Genre: r.Genre, Count: count})
		remaining -= count
		if remaining <= 0 {
			break
		}
	}
	return out
}

// Build picks the first Count tracks of each allocated genre, in catalog
// order, never returning more than limit. tracks is the catalog in order.
func Build(alloc []Allocation, tracks []*domain.Track, limit int) []*domain.Track {
	byGenre := make(map[genre.Genre][]*domain.Track, len(genre.All))
	for _, t := range tracks {
		byGenre[t.Genre] = append(byGenre[t.Genre], t)
	}

	out := []*domain.Track{}
	for _, a := range alloc {
		pool := byGenre[a.Genre]
		for _, t := range pool[:min(a.Count, len(pool))] {
			if len(out) >= limit {
				return out
			}
			out = append(out, t)
		}
	}
	return out
}

// GenreEngagement is one row of a session trend.
type GenreEngagement struct {
	Genre      genre.Genre `json:"genre"`
	Rows       int         `json:"rows"`
	Engagement float64     `json:"mean_engagement"`
}

// RankByEngagement groups observations by their Melody # label and orders
// genres by mean engagement, highest first. Ties keep canonical genre order.
// Unlabelled rows are ignored.
func RankByEngagement(obs []domain.Observation) []GenreEngagement {
	sums := make(map[genre.Genre]float64, len(genre.All))
	rows := make(map[genre.Genre]int, len(genre.All))
	for _, o := range obs {
		if !o.Row.HasLabel() {
			continue
		}
		rows[o.Row.Label]++
		sums[o.Row.Label] += o.Scores.Engagement
	}

	out := []GenreEngagement{}
	for _, g := range genre.All {
		if n := rows[g]; n > 0 {
			out = append(out, GenreEngagement{Genre: g, Rows: n, Engagement: sums[g] / float64(n)})
		}
	}
	slices.SortStableFunc(out, func(a, b GenreEngagement) int {
		return cmp.Compare(b.Engagement, a.Engagement)
	})
	return out
}
