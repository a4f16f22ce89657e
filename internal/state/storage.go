// Package state manages per-user conversation sessions and their transitions.
package state

import "context"

// Store is the session persistence contract.
type Store interface {
	// Get returns the session for userID, creating it in StateChoosing when absent.
	Get(ctx context.Context, userID int64) (Session, error)
	// Update applies fn to the user's session atomically and returns the stored result.
	// When fn returns an error nothing is written.
	Update(ctx context.Context, userID int64, fn func(*Session) error) (Session, error)
	// All returns a snapshot of every session.
	All(ctx context.Context) ([]Session, error)
}
