package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurotunes/neurotunes-server/internal/catalog"
	"github.com/neurotunes/neurotunes-server/internal/domain"
	"github.com/neurotunes/neurotunes-server/internal/eeg/eegtest"
	"github.com/neurotunes/neurotunes-server/internal/genre"
	"github.com/neurotunes/neurotunes-server/internal/scoring"
)

func TestAllocate(t *testing.T) {
	tests := []struct {
		name   string
		ranked []domain.GenreWeight
		max    int
		want   []Allocation
	}{
		{
			name:   "single genre takes everything",
			ranked: []domain.GenreWeight{{Genre: genre.Classical, Weight: 1}},
			max:    6,
			want:   []Allocation{{genre.Classical, 6}},
		},
		{
			name:   "weights split and last takes remainder",
			ranked: []domain.GenreWeight{{Genre: genre.Classical, Weight: 0.7}, {Genre: genre.RnB, Weight: 0.3}},
			max:    6,
			want:   []Allocation{{genre.Classical, 4}, {genre.RnB, 2}},
		},
		{
			name: "small weights still get one slot",
			ranked: []domain.GenreWeight{
				{Genre: genre.Rock, Weight: 0.9}, {Genre: genre.Pop, Weight: 0.05}, {Genre: genre.Rap, Weight: 0.05},
			},
			max:  6,
			want: []Allocation{{genre.Rock, 5}, {genre.Pop, 1}},
		},
		{
			name:   "half rounds to even",
			ranked: []domain.GenreWeight{{Genre: genre.Pop, Weight: 0.25}, {Genre: genre.Rap, Weight: 0.75}},
			max:    6,
			want:   []Allocation{{genre.Pop, 2}, {genre.Rap, 4}},
		},
		{
			name:   "unnormalized weights",
			ranked: []domain.GenreWeight{{Genre: genre.Pop, Weight: 3}, {Genre: genre.Rap, Weight: 1}},
			max:    4,
			want:   []Allocation{{genre.Pop, 3}, {genre.Rap, 1}},
		},
		{
			name:   "zero weights",
			ranked: []domain.GenreWeight{{Genre: genre.Pop}, {Genre: genre.Rap}},
			max:    6,
			want:   []Allocation{{genre.Pop, 1}, {genre.Rap, 5}},
		},
		{
			name:   "duplicates and invalid genres skipped",
			ranked: []domain.GenreWeight{{Genre: genre.Pop, Weight: 1}, {Genre: 0, Weight: 5}, {Genre: genre.Pop, Weight: 1}},
			max:    3,
			want:   []Allocation{{genre.Pop, 3}},
		},
		{
			name:   "nothing ranked",
			ranked: nil,
			max:    6,
			want:   nil,
		},
		{
			name:   "zero max",
			ranked: []domain.GenreWeight{{Genre: genre.Pop, Weight: 1}},
			max:    0,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allocate(tt.ranked, tt.max))
		})
	}
}

func TestBuild(t *testing.T) {
	tracks := catalog.Tracks()
	alloc := Allocate([]domain.GenreWeight{{Genre: genre.Classical, Weight: 0.7}, {Genre: genre.RnB, Weight: 0.3}}, 6)

	got := Build(alloc, tracks, 6)
	require.Len(t, got, 6)
	ids := make([]string, len(got))
	for i, tr := range got {
		ids[i] = tr.ID
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "37", "38"}, ids)
}

func TestBuild_ShortGenrePool(t *testing.T) {
	tracks := catalog.Tracks()[:2] // two classical tracks only
	got := Build([]Allocation{{genre.Classical, 5}, {genre.Rock, 1}}, tracks, 6)
	assert.Len(t, got, 2)
}

func TestRankByEngagement(t *testing.T) {
	observe := func(g genre.Genre, beta float64) domain.Observation {
		row := eegtest.Labelled(eegtest.Uniform(1, 1, 1, beta, 1), g)
		return domain.Observation{Row: row, Scores: scoring.Compute(row)}
	}
	unlabelled := eegtest.Uniform(1, 1, 1, 9, 9)

	obs := []domain.Observation{
		observe(genre.Rock, 3),      // engagement 1
		observe(genre.Rock, 7),      // engagement 3
		observe(genre.Classical, 1), // engagement 0
		observe(genre.RnB, 4),       // engagement 1.5
		observe(genre.Pop, 4),       // engagement 1.5, ties with R&B
		{Row: unlabelled, Scores: scoring.Compute(unlabelled)},
	}

	got := RankByEngagement(obs)
	require.Len(t, got, 4)
	order := make([]genre.Genre, len(got))
	for i, g := range got {
		order[i] = g.Genre
	}
	assert.Equal(t, []genre.Genre{genre.Rock, genre.Pop, genre.RnB, genre.Classical}, order)
	assert.Equal(t, 2, got[0].Rows)
	assert.InDelta(t, 2.0, got[0].Engagement, 1e-12)
}

func TestRankByEngagement_Empty(t *testing.T) {
	got := RankByEngagement(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
