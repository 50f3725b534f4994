package pool

import (
	"context"

	"github.com/google/uuid"
)

// Conn is an opaque handle to a live backend session. The pool never looks
// inside a connection; it only tracks ownership and closes it on teardown.
type Conn interface {
	Close() error
}

// Factory opens a live connection to the named backend. It is called once per
// connection with no retry logic; each call either yields a fresh, independent
// connection or fails without touching pool state.
type Factory func(ctx context.Context, backend string) (Conn, error)

// CallerID identifies the execution unit borrowing a connection. The pool
// uses it as the re-entrancy key: a caller that already owns a connection
// gets the same one back instead of waiting.
type CallerID string

// NewCallerID returns a fresh caller token.
func NewCallerID() CallerID {
	return CallerID(uuid.NewString())
}

// Liveness reports whether the caller behind an id is still running. It is
// consulted only by the capacity-recovery sweep; a nil probe disables the
// sweep entirely.
type Liveness func(CallerID) bool
