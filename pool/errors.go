package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPoolSize is a configuration error: max size must be positive.
	ErrInvalidPoolSize = errors.New("pool size must be positive")

	// ErrUnknownPolicy is a configuration error: unrecognized recycling policy.
	ErrUnknownPolicy = errors.New("unknown recycling policy")

	// ErrRemoveDefaultBackend is a configuration error: the default backend
	// can never be removed from a router.
	ErrRemoveDefaultBackend = errors.New("cannot remove the default backend")

	// ErrNotCheckedOut is a usage error: the caller released a connection it
	// does not own. Pool state is untouched when this is returned.
	ErrNotCheckedOut = errors.New("caller owns no connection")

	// ErrConnBroken marks an operation error caused by a dead connection.
	// Operations run under Hold wrap their error with this sentinel to tell
	// the pool to discard the connection instead of recycling it.
	ErrConnBroken = errors.New("connection broken")
)

// FactoryError reports a failed connection dial. The failed attempt does not
// count against pool capacity and is never retried by the pool.
type FactoryError struct {
	Backend string
	Err     error
}

func (e *FactoryError) Error() string {
	return fmt.Sprintf("create connection for backend %q: %v", e.Backend, e.Err)
}

func (e *FactoryError) Unwrap() error {
	return e.Err
}
