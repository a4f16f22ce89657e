package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory for the lifetime of the process.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// Get returns a copy of the user's session, creating it lazily.
func (s *MemoryStore) Get(ctx context.Context, userID int64) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return *s.loadLocked(userID), nil
}

// Update mutates a copy of the session under the store lock and commits it when fn succeeds.
func (s *MemoryStore) Update(ctx context.Context, userID int64, fn func(*Session) error) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.loadLocked(userID)
	next := *current

	if fn != nil {
		if err := fn(&next); err != nil {
			return *current, err
		}
	}

	next.UserID = userID
	next.UpdatedAt = s.now()
	*current = next

	return next, nil
}

// All returns copies of every stored session.
func (s *MemoryStore) All(ctx context.Context) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, *session)
	}

	return sessions, nil
}

func (s *MemoryStore) loadLocked(userID int64) *Session {
	session, ok := s.sessions[userID]
	if !ok {
		session = &Session{
			UserID:    userID,
			State:     StateChoosing,
			UpdatedAt: s.now(),
		}
		s.sessions[userID] = session
	}

	return session
}
