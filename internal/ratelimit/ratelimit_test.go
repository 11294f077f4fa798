package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{name: "burst allows initial requests", rps: 1, burst: 3, calls: 3, wantPass: 3},
		{name: "exceeding burst blocks", rps: 1, burst: 2, calls: 5, wantPass: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)
			defer rl.Stop()

			passed := 0
			for range tt.calls {
				if rl.Allow("doc@clinic.com") {
					passed++
				}
			}
			assert.Equal(t, tt.wantPass, passed)
		})
	}
}

func TestKeyedRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := PerMinute(1)
	defer rl.Stop()

	assert.True(t, rl.Allow("a@clinic.com"))
	assert.False(t, rl.Allow("a@clinic.com"))
	assert.True(t, rl.Allow("b@clinic.com"))
	assert.Equal(t, 2, rl.Len())
}

func TestKeyedRateLimiter_RetryAfter(t *testing.T) {
	rl := PerMinute(2)
	defer rl.Stop()

	assert.Zero(t, rl.RetryAfter("k"))
	rl.Allow("k")
	rl.Allow("k")

	d := rl.RetryAfter("k")
	assert.Greater(t, d, 20*time.Second)
	assert.LessOrEqual(t, d, 30*time.Second)
	// RetryAfter does not consume a token.
	assert.InDelta(t, d.Seconds(), rl.RetryAfter("k").Seconds(), 1)
}

func TestKeyedRateLimiter_Wait(t *testing.T) {
	rl := New(1000, 1)
	defer rl.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rl.Wait(ctx, "k"))
	require.NoError(t, rl.Wait(ctx, "k"))
}

func TestKeyedRateLimiter_WaitCanceled(t *testing.T) {
	rl := New(0.001, 1)
	defer rl.Stop()
	rl.Allow("k")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, rl.Wait(ctx, "k"))
}

func TestKeyedRateLimiter_SweepDropsIdleKeys(t *testing.T) {
	rl := newLimiter(1, 1, time.Minute, time.Hour)
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.Allow("old")
	now = now.Add(2 * time.Minute)
	rl.Allow("fresh")

	rl.sweep()
	assert.Equal(t, 1, rl.Len())
}
