package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	"github.com/neurotunes/neurotunes-server/internal/store"
	"github.com/neurotunes/neurotunes-server/internal/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var fk int
	require.NoError(t, s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	for _, table := range []string{"patients", "observations", "recommendations", "tracks", "users", "events"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestOpenClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.AppendObservations(ctx,
		&domain.Patient{ID: "P-1", Caregiver: "doc@clinic.com"},
		storetest.Observations("P-1", "b1", 0, 2)))
	require.NoError(t, s.Close())

	// Re-open should work (schema is idempotent).
	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	obs, err := s.ListObservations(ctx, "P-1")
	require.NoError(t, err)
	assert.Len(t, obs, 2)
}

func TestDeletePatient_CascadesObservations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendObservations(ctx,
		&domain.Patient{ID: "P-1", Caregiver: "doc@clinic.com"},
		storetest.Observations("P-1", "b1", 0, 3)))
	require.NoError(t, s.DeletePatient(ctx, "P-1"))

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM observations").Scan(&n))
	assert.Zero(t, n)
}

func TestDeletePatient_OnAnotherPooledConnection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Hold one connection so the writes below use a different one.
	pinned, err := s.db.Conn(ctx)
	require.NoError(t, err)
	defer pinned.Close()

	var fk int
	require.NoError(t, s.db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	p := &domain.Patient{ID: "P-1", Caregiver: "doc@clinic.com"}
	require.NoError(t, s.AppendObservations(ctx, p, storetest.Observations("P-1", "b1", 0, 3)))
	require.NoError(t, s.DeletePatient(ctx, "P-1"))

	var n int
	require.NoError(t, pinned.QueryRowContext(ctx, "SELECT COUNT(*) FROM observations").Scan(&n))
	assert.Zero(t, n)

	// A recreated id starts with an empty history.
	require.NoError(t, s.CreatePatient(ctx, &domain.Patient{ID: "P-1", Caregiver: "doc@clinic.com"}))
	obs, err := s.ListObservations(ctx, "P-1")
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestAppendObservations_RollsBackOnConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &domain.Patient{ID: "P-1", Caregiver: "doc@clinic.com"}
	require.NoError(t, s.AppendObservations(ctx, p, storetest.Observations("P-1", "b1", 0, 2)))

	p.Summary.Count = 99
	err := s.AppendObservations(ctx, p, storetest.Observations("P-1", "b2", 0, 2))
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	got, err := s.GetPatient(ctx, "P-1")
	require.NoError(t, err)
	assert.Zero(t, got.Summary.Count)
}
