package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdown_PhasesRunInOrder(t *testing.T) {
	s := NewShutdown(slog.New(slog.NewTextHandler(io.Discard, nil)))

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	s.Register(PhaseResources, "redis", record("redis"))
	s.Register(PhaseIngress, "bot", record("bot"))
	s.Register(PhaseIngress, "http", record("http"))

	require.NoError(t, s.Execute(context.Background()))
	require.Len(t, order, 3)
	assert.ElementsMatch(t, []string{"bot", "http"}, order[:2])
	assert.Equal(t, "redis", order[2])
}

func TestShutdown_JoinsErrors(t *testing.T) {
	s := NewShutdown(nil)
	boom := errors.New("boom")

	s.Register(PhaseIngress, "bot", func(context.Context) error { return boom })
	s.Register(PhaseResources, "redis", func(context.Context) error { return nil })
	s.Register(PhaseResources, "nil", nil)

	err := s.Execute(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bot: boom")
}
