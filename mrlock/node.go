// Package mrlock implements the MRLock ordered set: a singly linked list
// whose nodes are partitioned across a cycling set of resource bits,
// locked and unlocked through a single MRLock rather than per-node
// mutexes.
package mrlock

import (
	"sync/atomic"

	"github.com/metailurini/durableset"
)

// MinKey and MaxKey are this set's sentinel bounds, kept local to the
// package rather than as a shared global.
const (
	MinKey int64 = -100000
	MaxKey int64 = 100000
)

const (
	bitPrepared  int32 = 1 << 0
	bitCommitted int32 = 1 << 1

	headResource uint32 = 1 << 0
	tailResource uint32 = 1 << 1
	firstNodeBit       = 2
	lastNodeBit        = 31
)

// node is the volatile representation of one key/item pair, tagged with
// the resource bit its hand-over-hand lock acquires.
type node struct {
	key        int64
	item       int64
	resourceID uint32

	validBits int32
	next      *node
	marked    bool

	addr durableset.Addr

	insertFlushed bool
	deleteFlushed bool
}

// resourceCycle hands out resource bits 2..31 round-robin, the same
// wraparound scheme the original striping used: once every allocator has
// taken a turn through the available bits, a later node shares a resource
// ID with an earlier one and the two serialize through the same lock.
type resourceCycle struct {
	bit atomic.Uint32
}

func newResourceCycle() *resourceCycle {
	rc := &resourceCycle{}
	rc.bit.Store(firstNodeBit)
	return rc
}

func (rc *resourceCycle) next() uint32 {
	for {
		cur := rc.bit.Load()
		nxt := cur + 1
		if nxt > lastNodeBit {
			nxt = firstNodeBit
		}
		if rc.bit.CompareAndSwap(cur, nxt) {
			return uint32(1) << cur
		}
	}
}
