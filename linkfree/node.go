// Package linkfree implements the link-free lock-free ordered set: a
// singly linked list ordered by key, where every node's own successor word
// doubles as its logical-delete mark, and a 2-bit valid_bits word commits
// the node's durability state. Traversal, insertion and removal are all
// lock-free, completing via a single successful CAS.
package linkfree

import (
	"sync/atomic"

	"github.com/metailurini/durableset"
)

// MinKey and MaxKey are this set's sentinel bounds, kept local to the
// package rather than as a single shared global across set classes.
const (
	MinKey int64 = -100000
	MaxKey int64 = 100000
)

const (
	bitPrepared  uint32 = 1 << 0
	bitCommitted uint32 = 1 << 1
)

// node is the volatile representation of one key/item pair. next packs a
// successor reference and a logical-delete mark into one atomic word; see
// packNext/unpackNext in tagged.go for why a ref replaces a raw tagged pointer.
type node struct {
	key  int64
	item int64

	validBits atomic.Uint32
	next      atomic.Uint64

	addr durableset.Addr

	insertFlushed atomic.Bool
	deleteFlushed atomic.Bool
}

func setBit(a *atomic.Uint32, bit uint32) {
	for {
		old := a.Load()
		if old&bit != 0 {
			return
		}
		if a.CompareAndSwap(old, old|bit) {
			return
		}
	}
}
