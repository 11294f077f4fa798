package domain

import (
	"cmp"
	"slices"

	"github.com/neurotunes/neurotunes-server/internal/genre"
	"github.com/neurotunes/neurotunes-server/internal/scoring"
)

// GenreShare is one bucket of a prediction distribution.
type GenreShare struct {
	Genre genre.Genre `json:"genre"`
	Count int         `json:"count"`
	Share float64     `json:"share"`
}

// GenreWeight is one entry of a ranked genre list.
type GenreWeight struct {
	Genre  genre.Genre `json:"genre"`
	Weight float64     `json:"weight"`
}

// Summary aggregates a patient's history.
type Summary struct {
	Count int           `json:"count"`
	Means scoring.Means `json:"means"`
	// Dashboard is the 0-10 view, with focus inverted.
	Dashboard scoring.Means `json:"dashboard"`
	// Distribution has one entry per genre in canonical order.
	Distribution []GenreShare `json:"distribution"`
	// Ranking orders predicted genres by summed confidence, highest first.
	Ranking []GenreWeight `json:"ranking"`
}

// Summarize recomputes the summary from the full observation history.
func Summarize(obs []Observation) Summary {
	sets := make([]scoring.ScoreSet, len(obs))
	counts := make(map[genre.Genre]int, len(genre.All))
	weights := make(map[genre.Genre]float64, len(genre.All))
	var totalWeight float64
	for i, o := range obs {
		sets[i] = o.Scores
		counts[o.Prediction.Genre]++
		weights[o.Prediction.Genre] += o.Prediction.Confidence
		totalWeight += o.Prediction.Confidence
	}

	s := Summary{
		Count:        len(obs),
		Means:        scoring.Aggregate(sets),
		Dashboard:    scoring.Dashboard(sets),
		Distribution: make([]GenreShare, 0, len(genre.All)),
		Ranking:      []GenreWeight{},
	}
	for _, g := range genre.All {
		share := GenreShare{Genre: g, Count: counts[g]}
		if len(obs) > 0 {
			share.Share = float64(counts[g]) / float64(len(obs))
		}
		s.Distribution = append(s.Distribution, share)
	}

	// Fall back to plain counts when the model reported no confidence.
	for _, g := range genre.All {
		var w float64
		switch {
		case totalWeight > 0:
			w = weights[g] / totalWeight
		case len(obs) > 0:
			w = float64(counts[g]) / float64(len(obs))
		}
		if w > 0 {
			s.Ranking = append(s.Ranking, GenreWeight{Genre: g, Weight: w})
		}
	}
	SortRanking(s.Ranking)
	return s
}

// SortRanking orders by weight descending; equal weights keep canonical genre order.
func SortRanking(r []GenreWeight) {
	slices.SortStableFunc(r, func(a, b GenreWeight) int {
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		return cmp.Compare(a.Genre, b.Genre)
	})
}

// Top returns the highest-ranked genre, if any.
func (s Summary) Top() (genre.Genre, bool) {
	if len(s.Ranking) == 0 {
		return 0, false
	}
	return s.Ranking[0].Genre, true
}
