package engine

import "errors"

// Boundary error taxonomy. All of these are synchronous contract violations
// detected at the call that observed them; none is recoverable or retryable,
// and any of them fails the guest's whole run invocation.
var (
	// ErrInvalidHandle reports a stale, foreign or wrong-kind handle.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrNoActiveScope reports a registration call made outside any root.
	ErrNoActiveScope = errors.New("no active scope")

	// ErrReentrantEffect reports an effect whose execution transitively
	// re-triggered itself.
	ErrReentrantEffect = errors.New("re-entrant effect")

	// ErrOutOfRange reports a list index outside the list's bounds.
	ErrOutOfRange = errors.New("list index out of range")
)
