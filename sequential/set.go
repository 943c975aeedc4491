// Package sequential implements the single-threaded oracle set of spec
// section 4.5: no locks, no atomics, no CAS loops — a plain linked list
// that exists so a property test can compare a concurrent variant's
// observed history against the one true sequential outcome.
package sequential

import (
	"github.com/metailurini/durableset"
	"github.com/metailurini/durableset/internal/arena"
	"github.com/metailurini/durableset/persist"
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
)

// node is a plain, unshared linked-list node. Sequential access is the
// whole point: no field here is ever touched by more than one goroutine.
type node struct {
	key  int64
	item int64

	validBits int32
	next      *node
	marked    bool

	addr durableset.Addr

	insertFlushed bool
	deleteFlushed bool
}

// Set is the sequential ordered set. Every method must be called by a
// single goroutine at a time; Set does not defend against concurrent
// callers the way the other variants do.
type Set struct {
	store *persist.Store
	abort durableset.AbortFlag

	arena      *arena.Arena[node]
	head, tail *node
}

// New builds a Set backed by store, sized by maxWriteOps. There is only
// ever one owner: the single caller.
func New(store *persist.Store, abort durableset.AbortFlag, maxWriteOps int) *Set {
	s := &Set{store: store, abort: abort}
	s.rebuild([]int{maxWriteOps})
	return s
}

func (s *Set) rebuild(sizes []int) {
	a := arena.New[node](sizes, 2)
	head, tail := a.At(a.ReservedRef(0)), a.At(a.ReservedRef(1))

	head.key = MinKey
	tail.key = MaxKey
	head.validBits = bitPrepared | bitCommitted
	tail.validBits = bitPrepared | bitCommitted
	head.next = tail
	tail.next = tail

	s.arena = a
	s.head, s.tail = head, tail
}

func (s *Set) find(key int64) (pred, curr *node) {
	pred = s.head
	curr = pred.next
	for curr.key < key {
		pred = curr
		curr = pred.next
	}
	return pred, curr
}

// Insert adds key/item. It returns false if key is already present, the
// arena or persistent budget is exhausted, or the abort flag is set.
func (s *Set) Insert(key, item int64) bool {
	if durableset.Aborted(s.abort) {
		return false
	}

	pred, curr := s.find(key)
	if curr.key == key {
		return false
	}

	_, n, ok := s.arena.Alloc(0)
	if !ok {
		return false
	}
	cell := s.store.RetrieveAddress(0)
	if cell < 0 {
		return false
	}

	n.key = key
	n.item = item
	n.addr = durableset.Addr{Owner: 0, Cell: cell}
	n.validBits = bitPrepared
	n.next = curr
	pred.next = n
	s.store.UpdateAddress(0)
	n.validBits |= bitCommitted

	s.flushInsert(n)
	s.store.Metrics().AddLen(0, 1)
	return true
}

// Contains reports whether key is present.
func (s *Set) Contains(key int64) bool {
	_, curr := s.find(key)
	return curr.key == key && !curr.marked
}

// Remove deletes key. It returns false if key is absent or the abort flag
// is set.
func (s *Set) Remove(key int64) bool {
	if durableset.Aborted(s.abort) {
		return false
	}

	pred, curr := s.find(key)
	if curr.key != key {
		return false
	}

	successor := curr.next
	curr.marked = true
	pred.next = successor

	s.flushDelete(curr)
	s.store.Metrics().AddLen(0, -1)
	return true
}

func (s *Set) flushInsert(n *node) {
	if n.insertFlushed {
		return
	}
	s.store.Flush(n.addr, n.key, n.item, uint8(n.validBits), encodeNext(n))
	n.insertFlushed = true
}

func (s *Set) flushDelete(n *node) {
	if n.deleteFlushed {
		return
	}
	s.store.Flush(n.addr, n.key, n.item, uint8(n.validBits), encodeNext(n))
	n.deleteFlushed = true
}

func encodeNext(n *node) uint64 {
	var mark uint64
	if n.marked {
		mark = 1
	}
	return mark
}

// Recover replays the persistent store's crash-recovered contents into a
// freshly rebuilt set. A single-owner set needs only one size, not an
// owner-sized slice of them.
func (s *Set) Recover(maxWriteOps int) {
	keys, items, _, active, _ := s.store.ReadResetMemory()
	_ = s.Keys() // diagnostic snapshot of pre-recovery volatile state

	size := maxWriteOps + active[0]
	_ = s.store.Resize([]int{size})
	s.rebuild([]int{size})

	for i := range keys {
		s.Insert(keys[i], items[i])
	}
}

// Free releases the set's backing arena. Must only be called with no
// operations in flight.
func (s *Set) Free() {
	s.arena = nil
}

// Keys returns every live key in ascending order.
func (s *Set) Keys() []int64 {
	var out []int64
	curr := s.head.next
	for curr != s.tail {
		if !curr.marked {
			out = append(out, curr.key)
		}
		curr = curr.next
	}
	return out
}

// Len returns the number of live keys.
func (s *Set) Len() int {
	return len(s.Keys())
}
