package session

import (
	"context"
	"errors"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("invalid session")
	ErrCorruptSession  = errors.New("corrupt session")
)

// Store persists sessions. Implementations must be safe for concurrent use.
type Store interface {
	// Create assigns an id when the session has none and saves it.
	Create(ctx context.Context, s *Session) (string, error)
	Read(ctx context.Context, id string) (*Session, error)
	// Update saves s. Sessions that are no longer valid are left untouched.
	Update(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	ActiveSessions(ctx context.Context) ([]*Session, error)
}
