package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	now := time.Now()
	limiter := NewMemoryLimiter(testLogger())
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		res, err := limiter.Check(ctx, "charge:1", 4, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 3-i, res.Remaining)
	}

	res, err := limiter.Check(ctx, "charge:1", 4, time.Hour)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, res.Allowed)
	assert.Equal(t, now.Add(time.Hour), res.ResetAt)

	_, err = limiter.Check(ctx, "charge:2", 4, time.Hour)
	assert.NoError(t, err, "keys are independent")

	now = now.Add(time.Hour + time.Second)
	_, err = limiter.Check(ctx, "charge:1", 4, time.Hour)
	assert.NoError(t, err)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	now := time.Now()
	limiter := NewMemoryLimiter(testLogger())
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = limiter.Check(ctx, "old", 1, time.Minute)
	now = now.Add(2 * time.Hour)
	_, _ = limiter.Check(ctx, "fresh", 1, time.Minute)

	assert.Equal(t, 1, limiter.Cleanup(time.Hour))
	assert.Equal(t, 0, limiter.Cleanup(time.Hour))
}

func TestCleaner_RunStopsOnCancel(t *testing.T) {
	limiter := NewMemoryLimiter(testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		NewCleaner(limiter, testLogger(), time.Millisecond, time.Hour).Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleaner did not stop")
	}
}
