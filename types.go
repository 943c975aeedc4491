package durableset

import "errors"

// Addr is the durable-address coordinate of a volatile node: the owning
// thread/owner id and the index of its backing cell in that owner's arena.
// It is the (prefix, postfix) pair identifying where a node's durable
// twin lives.
type Addr struct {
	Owner int
	Cell  int
}

// AbortFlag is a cooperative, read-only cancellation token. Implementations
// must be safe to read concurrently; a nil AbortFlag is always "not
// aborted". *atomic.Bool satisfies this interface via its Load method.
type AbortFlag interface {
	Load() bool
}

// Aborted reports whether flag is set, treating a nil flag as never set.
func Aborted(flag AbortFlag) bool {
	return flag != nil && flag.Load()
}

// Sentinel errors used outside the Insert/Remove/Contains boolean surface,
// for failures the boolean contract has no room to express.
var (
	// ErrArenaExhausted is returned by the persist store constructors and
	// Resize when given no owners or a non-positive per-owner write budget.
	ErrArenaExhausted = errors.New("durableset: arena exhausted")
	// ErrAborted identifies an operation stopped by the abort flag. No
	// function in this module returns it.
	ErrAborted = errors.New("durableset: aborted")
)
