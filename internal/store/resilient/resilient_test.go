package resilient

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
	"github.com/neurotunes/neurotunes-server/internal/store"
)

// flakyStore fails GetPatient with err while calls are counted.
type flakyStore struct {
	store.Store
	err   atomic.Pointer[error]
	calls atomic.Int32
}

func (f *flakyStore) fail(err error) { f.err.Store(&err) }

func (f *flakyStore) GetPatient(_ context.Context, id string) (*domain.Patient, error) {
	f.calls.Add(1)
	if p := f.err.Load(); p != nil && *p != nil {
		return nil, *p
	}
	return &domain.Patient{ID: id}, nil
}

func newTestStore(t *testing.T) (*Store, *flakyStore) {
	t.Helper()
	backend := &flakyStore{}
	return New(backend, Config{Name: t.Name(), FailureThreshold: 3, Timeout: 20 * time.Millisecond}, nil), backend
}

func TestStore_PassesThroughResults(t *testing.T) {
	s, _ := newTestStore(t)

	p, err := s.GetPatient(context.Background(), "P-1")
	require.NoError(t, err)
	assert.Equal(t, "P-1", p.ID)
}

func TestStore_NotFoundDoesNotTrip(t *testing.T) {
	s, backend := newTestStore(t)
	backend.fail(store.ErrNotFound)

	for range 10 {
		_, err := s.GetPatient(context.Background(), "P-1")
		assert.ErrorIs(t, err, store.ErrNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, s.State())
	assert.EqualValues(t, 10, backend.calls.Load())
}

func TestStore_BackendFailuresOpenBreaker(t *testing.T) {
	s, backend := newTestStore(t)
	backend.fail(errors.New("disk on fire"))
	ctx := context.Background()

	for range 3 {
		_, err := s.GetPatient(ctx, "P-1")
		require.ErrorIs(t, err, domainerrors.ErrStoreUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, s.State())

	// Open: the backend is not called.
	_, err := s.GetPatient(ctx, "P-1")
	assert.ErrorIs(t, err, domainerrors.ErrStoreUnavailable)
	assert.EqualValues(t, 3, backend.calls.Load())

	var derr *domainerrors.Error
	require.ErrorAs(t, err, &derr)
	assert.True(t, derr.Retryable())
}

func TestStore_RecoversAfterTimeout(t *testing.T) {
	s, backend := newTestStore(t)
	backend.fail(errors.New("connection reset"))
	ctx := context.Background()

	for range 3 {
		_, _ = s.GetPatient(ctx, "P-1")
	}
	require.Equal(t, gobreaker.StateOpen, s.State())

	backend.fail(nil)
	require.Eventually(t, func() bool {
		_, err := s.GetPatient(ctx, "P-1")
		return err == nil
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, gobreaker.StateClosed, s.State())
}
