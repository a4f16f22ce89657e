package state

import (
	"context"
	"errors"
	"log/slog"
)

// ErrInvalidTransition indicates that a requested transition is not allowed.
var ErrInvalidTransition = errors.New("invalid state transition")

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// Machine validates transitions and applies them to sessions held by a Store.
type Machine struct {
	store Store
	log   *slog.Logger
}

// NewMachine creates a state machine over the provided session store.
func NewMachine(store Store, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}

	return &Machine{
		store: store,
		log:   log,
	}
}

// Session returns the user's current session.
func (m *Machine) Session(ctx context.Context, userID int64) (Session, error) {
	return m.store.Get(ctx, userID)
}

// All returns every known session.
func (m *Machine) All(ctx context.Context) ([]Session, error) {
	return m.store.All(ctx)
}

// Transition moves the user's session to the target state, applying mutate in the same atomic update.
func (m *Machine) Transition(ctx context.Context, userID int64, to State, mutate func(*Session)) (Session, error) {
	var from State

	session, err := m.store.Update(ctx, userID, func(s *Session) error {
		from = s.State
		if !IsTransitionAllowed(from, to) {
			return ErrInvalidTransition
		}

		if mutate != nil {
			mutate(s)
		}
		s.State = to

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			m.log.Warn("invalid state transition", "user_id", userID, "from", from, "to", to)
		}
		return session, err
	}

	transitionRecorder(string(from), string(to))
	m.log.Debug("state transition", "user_id", userID, "from", from, "to", to)

	return session, nil
}

// Amend applies mutate to the user's session atomically without changing its state.
func (m *Machine) Amend(ctx context.Context, userID int64, mutate func(*Session)) (Session, error) {
	return m.store.Update(ctx, userID, func(s *Session) error {
		mutate(s)
		return nil
	})
}
