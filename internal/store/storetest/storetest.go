// Package storetest runs the same behavioural checks against every
// store.Store backend.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurotunes/neurotunes-server/internal/classifier"
	"github.com/neurotunes/neurotunes-server/internal/domain"
	"github.com/neurotunes/neurotunes-server/internal/eeg/eegtest"
	"github.com/neurotunes/neurotunes-server/internal/genre"
	"github.com/neurotunes/neurotunes-server/internal/scoring"
	"github.com/neurotunes/neurotunes-server/internal/store"
)

// Factory opens an empty store for one test.
type Factory func(t *testing.T) store.Store

// Run executes the suite.
func Run(t *testing.T, open Factory) {
	t.Run("patients", func(t *testing.T) { testPatients(t, open(t)) })
	t.Run("observations", func(t *testing.T) { testObservations(t, open(t)) })
	t.Run("delete patient", func(t *testing.T) { testDeletePatient(t, open(t)) })
	t.Run("recommendations", func(t *testing.T) { testRecommendations(t, open(t)) })
	t.Run("tracks", func(t *testing.T) { testTracks(t, open(t)) })
	t.Run("users and events", func(t *testing.T) { testUsersAndEvents(t, open(t)) })
}

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// Observations builds n scored observations for patientID starting at seq.
func Observations(patientID, batchID string, seq, n int) []domain.Observation {
	out := make([]domain.Observation, n)
	for i := range n {
		row := eegtest.Uniform(1, 2, 3, float64(4+i), 5)
		out[i] = domain.Observation{
			PatientID: patientID,
			Seq:       seq + i,
			BatchID:   batchID,
			Row:       row,
			Scores:    scoring.Compute(row),
			Prediction: classifier.Prediction{
				Genre:      genre.All[(seq+i)%len(genre.All)],
				Confidence: 0.8,
			},
			RecordedAt: base,
		}
	}
	return out
}

func newPatient(id, caregiver string) *domain.Patient {
	return &domain.Patient{ID: id, Caregiver: caregiver, CreatedAt: base, UpdatedAt: base}
}

func testPatients(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreatePatient(ctx, newPatient("P-2", "doc@clinic.com")))
	require.NoError(t, s.CreatePatient(ctx, newPatient("P-1", "doc@clinic.com")))
	require.NoError(t, s.CreatePatient(ctx, newPatient("P-3", "other@clinic.com")))

	err := s.CreatePatient(ctx, newPatient("P-1", "doc@clinic.com"))
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	got, err := s.GetPatient(ctx, "P-1")
	require.NoError(t, err)
	assert.Equal(t, "doc@clinic.com", got.Caregiver)
	assert.True(t, base.Equal(got.CreatedAt))

	_, err = s.GetPatient(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	mine, err := s.ListPatients(ctx, "doc@clinic.com")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "P-1", mine[0].ID)
	assert.Equal(t, "P-2", mine[1].ID)

	all, err := s.ListPatients(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.ListPatients(ctx, "nobody@clinic.com")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testObservations(t *testing.T, s store.Store) {
	ctx := context.Background()

	first := Observations("P-7", "b1", 0, 3)
	p := newPatient("P-7", "doc@clinic.com")
	p.Summary = domain.Summarize(first)
	require.NoError(t, s.AppendObservations(ctx, p, first))

	second := Observations("P-7", "b2", 3, 300)
	all := append(append([]domain.Observation{}, first...), second...)
	p.Summary = domain.Summarize(all)
	p.UpdatedAt = base.Add(time.Minute)
	require.NoError(t, s.AppendObservations(ctx, p, second))

	got, err := s.ListObservations(ctx, "P-7")
	require.NoError(t, err)
	require.Len(t, got, 303)
	for i, o := range got {
		require.Equal(t, i, o.Seq)
	}
	assert.Equal(t, "b1", got[2].BatchID)
	assert.Equal(t, "b2", got[3].BatchID)
	assert.Equal(t, first[1].Row, got[1].Row)
	assert.Equal(t, first[1].Prediction.Genre, got[1].Prediction.Genre)

	focus, ok := got[0].Scores.Focus.Value()
	require.True(t, ok)
	assert.InDelta(t, 0.5, focus, 1e-12)

	stored, err := s.GetPatient(ctx, "P-7")
	require.NoError(t, err)
	assert.Equal(t, 303, stored.Summary.Count)
	assert.True(t, base.Add(time.Minute).Equal(stored.UpdatedAt))

	// Replaying a sequence number is a conflict and leaves history unchanged.
	err = s.AppendObservations(ctx, p, Observations("P-7", "b3", 302, 2))
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
	got, err = s.ListObservations(ctx, "P-7")
	require.NoError(t, err)
	assert.Len(t, got, 303)

	_, err = s.ListObservations(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDeletePatient(t *testing.T, s store.Store) {
	ctx := context.Background()

	p := newPatient("P-9", "doc@clinic.com")
	require.NoError(t, s.AppendObservations(ctx, p, Observations("P-9", "b1", 0, 2)))
	require.NoError(t, s.AppendObservations(ctx, newPatient("P-90", "doc@clinic.com"), Observations("P-90", "b1", 0, 1)))

	require.NoError(t, s.DeletePatient(ctx, "P-9"))
	_, err := s.GetPatient(ctx, "P-9")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeletePatient(ctx, "P-9"), store.ErrNotFound)

	// A prefix-sharing id is untouched.
	obs, err := s.ListObservations(ctx, "P-90")
	require.NoError(t, err)
	assert.Len(t, obs, 1)

	// The id can be reused with an empty history.
	require.NoError(t, s.CreatePatient(ctx, newPatient("P-9", "doc@clinic.com")))
	obs, err = s.ListObservations(ctx, "P-9")
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func testRecommendations(t *testing.T, s store.Store) {
	ctx := context.Background()

	snap := scoring.Means{Engagement: scoring.Defined(1.5), Relaxation: scoring.Defined(-1.5)}
	recs := []*domain.Recommendation{
		{ID: "rec_a", CreatedAt: base},
		{ID: "rec_c", CreatedAt: base.Add(time.Hour), PatientID: "P-1", Snapshot: &snap, TrackIDs: []string{"1", "2"}},
		{ID: "rec_b", CreatedAt: base.Add(time.Hour)},
		{ID: "rec_z", CreatedAt: base.Add(2 * time.Hour), RecipientEmail: "someone@else.com"},
	}
	for _, r := range recs {
		r.Caregiver = "doc@clinic.com"
		if r.RecipientEmail == "" {
			r.RecipientEmail = "listener@home.com"
		}
		r.Genres = []domain.GenreWeight{{Genre: genre.Classical, Weight: 0.7}, {Genre: genre.RnB, Weight: 0.3}}
		require.NoError(t, s.CreateRecommendation(ctx, r))
	}
	assert.ErrorIs(t, s.CreateRecommendation(ctx, recs[0]), store.ErrAlreadyExists)

	got, err := s.ListRecommendationsByRecipient(ctx, "listener@home.com")
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"rec_c", "rec_b", "rec_a"}, ids)

	c := got[0]
	assert.Equal(t, "P-1", c.PatientID)
	assert.Equal(t, []string{"1", "2"}, c.TrackIDs)
	require.NotNil(t, c.Snapshot)
	assert.Equal(t, 1.5, c.Snapshot.Engagement.Or(0))
	assert.False(t, c.Snapshot.Focus.IsDefined())
	assert.Equal(t, genre.RnB, c.Genres[1].Genre)
	assert.Nil(t, got[1].Snapshot)

	empty, err := s.ListRecommendationsByRecipient(ctx, "nobody@home.com")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	require.NoError(t, s.DeleteRecommendation(ctx, "rec_c"))
	assert.ErrorIs(t, s.DeleteRecommendation(ctx, "rec_c"), store.ErrNotFound)
	_, err = s.GetRecommendation(ctx, "rec_c")
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err = s.ListRecommendationsByRecipient(ctx, "listener@home.com")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func testTracks(t *testing.T, s store.Store) {
	ctx := context.Background()

	n, err := s.CountTracks(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := 12; i >= 1; i-- {
		g := genre.Classical
		if i > 9 {
			g = genre.Rock
		}
		require.NoError(t, s.PutTrack(ctx, &domain.Track{
			ID: fmt.Sprint(i), Genre: g, Name: fmt.Sprintf("Track %d", i), DurationSec: 200, BPM: 70, Key: "C Major",
		}))
	}
	assert.ErrorIs(t, s.PutTrack(ctx, &domain.Track{ID: "x"}), store.ErrInvalidInput)

	n, err = s.CountTracks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	all, err := s.ListTracks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 12)
	assert.Equal(t, "1", all[0].ID)
	assert.Equal(t, "2", all[1].ID)
	assert.Equal(t, "10", all[9].ID)

	rock, err := s.ListTracks(ctx, genre.Rock)
	require.NoError(t, err)
	require.Len(t, rock, 3)
	assert.Equal(t, "10", rock[0].ID)

	none, err := s.ListTracks(ctx, genre.Pop)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	// Replacing a track moves it between genres.
	require.NoError(t, s.PutTrack(ctx, &domain.Track{ID: "12", Genre: genre.Pop, Name: "Moved"}))
	rock, err = s.ListTracks(ctx, genre.Rock)
	require.NoError(t, err)
	assert.Len(t, rock, 2)
	got, err := s.GetTrack(ctx, "12")
	require.NoError(t, err)
	assert.Equal(t, "Moved", got.Name)

	_, err = s.GetTrack(ctx, "404")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testUsersAndEvents(t *testing.T, s store.Store) {
	ctx := context.Background()

	u := &domain.User{Email: "listener@home.com", Name: "Lee", Role: domain.RoleListener, CreatedAt: base, LastSeenAt: base}
	created, err := s.UpsertUser(ctx, u)
	require.NoError(t, err)
	assert.True(t, created)

	later := base.Add(24 * time.Hour)
	again := &domain.User{Email: "listener@home.com", Name: "Lee R", Role: domain.RoleListener, CreatedAt: later, LastSeenAt: later}
	created, err = s.UpsertUser(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, base.Equal(again.CreatedAt))

	got, err := s.GetUser(ctx, "listener@home.com")
	require.NoError(t, err)
	assert.Equal(t, "Lee R", got.Name)
	assert.True(t, base.Equal(got.CreatedAt))
	assert.True(t, later.Equal(got.LastSeenAt))

	_, err = s.GetUser(ctx, "ghost@home.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	events := []*domain.Event{
		{ID: "evt_1", Email: u.Email, Type: domain.EventLogin, CreatedAt: base},
		{ID: "evt_2", Email: u.Email, Type: domain.EventPlay, TrackID: "3", Genre: genre.Classical, CreatedAt: later},
		{ID: "evt_3", Email: "other@home.com", Type: domain.EventLogin, CreatedAt: later},
	}
	for _, e := range events {
		require.NoError(t, s.CreateEvent(ctx, e))
	}

	mine, err := s.ListEvents(ctx, u.Email)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "evt_2", mine[0].ID)
	assert.Equal(t, genre.Classical, mine[0].Genre)
	assert.Equal(t, "3", mine[0].TrackID)
	assert.Equal(t, genre.Genre(0), mine[1].Genre)
}
