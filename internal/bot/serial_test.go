package bot

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSerializer_PreservesOrderPerKey(t *testing.T) {
	s := NewSerializer(testLogger())

	var mu sync.Mutex
	got := make(map[int64][]int)

	for i := 0; i < 50; i++ {
		for _, key := range []int64{1, 2, 3} {
			key, i := key, i
			require.NoError(t, s.Submit(key, func() {
				if i%7 == 0 {
					time.Sleep(time.Millisecond)
				}
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
			}))
		}
	}

	require.NoError(t, s.Close(context.Background()))

	for _, key := range []int64{1, 2, 3} {
		require.Len(t, got[key], 50)
		for i, v := range got[key] {
			assert.Equal(t, i, v)
		}
	}
}

func TestSerializer_KeysRunConcurrently(t *testing.T) {
	s := NewSerializer(testLogger())
	release := make(chan struct{})
	done := make(chan struct{})

	require.NoError(t, s.Submit(1, func() { <-release }))
	require.NoError(t, s.Submit(2, func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task for key 2 was blocked by key 1")
	}

	close(release)
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 0, s.Pending())
}

func TestSerializer_PanicDoesNotStopQueue(t *testing.T) {
	s := NewSerializer(testLogger())
	ran := make(chan struct{})

	require.NoError(t, s.Submit(1, func() { panic("boom") }))
	require.NoError(t, s.Submit(1, func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("queue stopped after panic")
	}
	require.NoError(t, s.Close(context.Background()))
}

func TestSerializer_CloseRejectsAndTimesOut(t *testing.T) {
	s := NewSerializer(testLogger())
	release := make(chan struct{})
	require.NoError(t, s.Submit(1, func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Close(ctx), context.DeadlineExceeded)
	assert.ErrorIs(t, s.Submit(1, func() {}), ErrSerializerClosed)

	close(release)
	require.NoError(t, s.Close(context.Background()))
}
