package bot

import (
	"context"
	"log/slog"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/vitrine-bot/internal/bot/handlers"
	"github.com/Proton-105/vitrine-bot/internal/state"
)

// SessionReader reads the current conversation state of a user.
type SessionReader interface {
	Session(ctx context.Context, userID int64) (state.Session, error)
}

// Dispatcher routes free-text updates to state-specific handlers.
type Dispatcher struct {
	sessions      SessionReader
	stateHandlers map[state.State]handlers.Handler
	log           *slog.Logger
	mu            sync.RWMutex
}

// NewDispatcher creates a Dispatcher with an empty handlers registry.
func NewDispatcher(sessions SessionReader, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		sessions:      sessions,
		stateHandlers: make(map[state.State]handlers.Handler),
		log:           log,
	}
}

// RegisterStateHandler registers a handler for the provided state.
func (d *Dispatcher) RegisterStateHandler(s state.State, h handlers.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateHandlers[s] = h
}

// Dispatch routes the update based on the user's current state. It reports
// false when no handler is registered for that state.
func (d *Dispatcher) Dispatch(c telebot.Context) (bool, error) {
	if c == nil || c.Sender() == nil {
		d.log.Warn("cannot dispatch without sender information")
		return false, nil
	}

	userID := c.Sender().ID
	session, err := d.sessions.Session(handlers.RequestContext(c), userID)
	if err != nil {
		return false, err
	}

	handler := d.getHandler(session.State)
	if handler == nil {
		d.log.Debug("no handler registered for state", "state", session.State, "user_id", userID)
		return false, nil
	}

	return true, handler(c)
}

func (d *Dispatcher) getHandler(s state.State) handlers.Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stateHandlers[s]
}
