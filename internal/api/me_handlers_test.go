package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	"github.com/neurotunes/neurotunes-server/internal/genre"
	"github.com/neurotunes/neurotunes-server/internal/service"
)

func TestRecordPlay(t *testing.T) {
	ts := setupTestServer(t, Options{})
	bob := ts.bearer(t, listenerEmail)

	for _, id := range []string{"1", "10", "2"} {
		resp := ts.api.Post("/api/v1/me/plays", bob, map[string]any{"track_id": id})
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
		event := decode[domain.Event](t, resp.Body.Bytes()).Data
		assert.Equal(t, domain.EventPlay, event.Type)
		assert.Equal(t, id, event.TrackID)
	}

	resp := ts.api.Post("/api/v1/me/plays", bob, map[string]any{"track_id": "999"})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Get("/api/v1/me/plays", bob)
	require.Equal(t, http.StatusOK, resp.Code)
	plays := decode[PlaysResponse](t, resp.Body.Bytes()).Data.Genres
	assert.Equal(t, []service.GenrePlays{
		{Genre: genre.Classical, Plays: 2},
		{Genre: genre.Rock, Plays: 1},
	}, plays)

	resp = ts.api.Get("/api/v1/me/activity", bob)
	require.Equal(t, http.StatusOK, resp.Code)
	events := decode[ActivityResponse](t, resp.Body.Bytes()).Data.Events
	require.Len(t, events, 4)
	// Newest first: the plays in reverse, then the first-sighting login.
	assert.Equal(t, domain.EventLogin, events[len(events)-1].Type)
	for i, id := range []string{"2", "10", "1"} {
		assert.Equal(t, domain.EventPlay, events[i].Type)
		assert.Equal(t, id, events[i].TrackID)
	}
}

func TestRecordPlay_RequiresTrackID(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Post("/api/v1/me/plays", ts.bearer(t, listenerEmail), map[string]any{"track_id": ""})
	assert.GreaterOrEqual(t, resp.Code, http.StatusBadRequest)
	assert.Less(t, resp.Code, http.StatusInternalServerError)
	env := decode[any](t, resp.Body.Bytes())
	assert.False(t, env.Success)
	assert.Equal(t, "VALIDATION", env.Code)
}
