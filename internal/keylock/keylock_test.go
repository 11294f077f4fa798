package keylock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_SerializesSameKey(t *testing.T) {
	m := New[string]()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(context.Background(), "P-1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := inside.Add(1)
			for {
				cur := maxInside.Load()
				if n <= cur || maxInside.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(100 * time.Microsecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, 0, m.Len())
}

func TestLock_DifferentKeysDoNotBlock(t *testing.T) {
	m := New[string]()
	unlockA, err := m.Lock(context.Background(), "A")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := m.Lock(context.Background(), "B")
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on B blocked behind A")
	}
}

func TestLock_ContextCancelled(t *testing.T) {
	m := New[string]()
	unlock, err := m.Lock(context.Background(), "P-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "P-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, m.Len())

	unlock()
	unlock()
	assert.Equal(t, 0, m.Len())
}

func TestTryLock(t *testing.T) {
	m := New[int]()

	unlock, ok := m.TryLock(7)
	require.True(t, ok)

	_, ok = m.TryLock(7)
	assert.False(t, ok)

	unlock()
	unlock2, ok := m.TryLock(7)
	require.True(t, ok)
	unlock2()
	assert.Equal(t, 0, m.Len())
}
