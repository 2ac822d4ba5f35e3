package store

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	// ErrSessionNotFound is returned when a session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// Store abstracts session persistence and the interaction log.
// Implementations must be safe for concurrent use. Update is
// last-write-wins; callers serialize writes per identity.
type Store interface {
	// GetOrCreate returns the session for an identity, creating it with
	// the store's defaults on first contact.
	GetOrCreate(ctx context.Context, identity string) (*Session, error)

	// Update applies a partial update to an existing session.
	// Returns ErrSessionNotFound if the session doesn't exist.
	Update(ctx context.Context, identity string, delta Delta) (*Session, error)

	// AppendInteraction adds one graded-answer record (append-only).
	AppendInteraction(ctx context.Context, rec *Interaction) error

	// AverageScore returns the mean over all interaction records for an
	// identity and the number of records; count 0 means no answers yet.
	AverageScore(ctx context.Context, identity string) (avg float64, count int, err error)

	// AllSessions returns every known session. Used only by the
	// scheduled-broadcast path.
	AllSessions(ctx context.Context) ([]*Session, error)

	// Ping checks backend liveness.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
