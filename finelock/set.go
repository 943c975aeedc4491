package finelock

import (
	"github.com/metailurini/durableset"
	"github.com/metailurini/durableset/internal/arena"
	"github.com/metailurini/durableset/persist"
)

// Set is the fine-grained hand-over-hand lock ordered set.
type Set struct {
	store *persist.Store
	abort durableset.AbortFlag

	arena      *arena.Arena[node]
	head, tail *node
}

// New builds a Set backed by store, with numOwners per-owner arenas sized
// by writeOpsPerOwner. abort may be nil.
func New(store *persist.Store, abort durableset.AbortFlag, numOwners int, writeOpsPerOwner []int) *Set {
	s := &Set{store: store, abort: abort}
	s.rebuild(writeOpsPerOwner)
	return s
}

func (s *Set) rebuild(writeOpsPerOwner []int) {
	a := arena.New[node](writeOpsPerOwner, 2)
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

// find walks from head under no locks and returns the first node whose key
// is >= target along with its predecessor. The result is only a hint: the
// caller must re-lock and re-validate before trusting it.
func (s *Set) find(key int64) (pred, curr *node) {
	pred = s.head
	curr = pred.next
	for curr.key < key {
		pred = curr
		curr = pred.next
	}
	return pred, curr
}

// Insert adds key/item under owner. It returns false if key is already
// present, the owner's arena or persistent budget is exhausted, or the
// abort flag is observed set.
func (s *Set) Insert(key, item int64, owner int) bool {
	if durableset.Aborted(s.abort) {
		return false
	}

	for {
		pred, curr := s.find(key)

		pred.mtx.Lock()
		curr.mtx.Lock()

		if pred.next != curr || curr.marked {
			curr.mtx.Unlock()
			pred.mtx.Unlock()
			continue
		}

		if curr.key == key {
			curr.mtx.Unlock()
			pred.mtx.Unlock()
			return false
		}

		if durableset.Aborted(s.abort) {
			curr.mtx.Unlock()
			pred.mtx.Unlock()
			return false
		}

		_, n, ok := s.arena.Alloc(owner)
		if !ok {
			curr.mtx.Unlock()
			pred.mtx.Unlock()
			return false
		}
		cell := s.store.RetrieveAddress(owner)
		if cell < 0 {
			curr.mtx.Unlock()
			pred.mtx.Unlock()
			return false
		}

		n.key = key
		n.item = item
		n.addr = durableset.Addr{Owner: owner, Cell: cell}
		n.validBits = bitPrepared
		n.next = curr
		pred.next = n
		s.store.UpdateAddress(owner)
		n.validBits |= bitCommitted

		s.flushInsert(n)
		s.store.Metrics().AddLen(owner, 1)

		curr.mtx.Unlock()
		pred.mtx.Unlock()
		return true
	}
}

// Contains reports whether key is present. It takes no locks, mirroring
// the original's lock-free read path: durability of an in-flight insert or
// remove is not this method's concern.
func (s *Set) Contains(key int64) bool {
	curr := s.head.next
	for curr.key < key {
		curr = curr.next
	}
	return curr.key == key && !curr.marked
}

// Remove deletes key. It returns false if key is absent or the abort flag
// is set.
func (s *Set) Remove(key int64, owner int) bool {
	_ = owner
	if durableset.Aborted(s.abort) {
		return false
	}

	for {
		pred, curr := s.find(key)

		pred.mtx.Lock()
		curr.mtx.Lock()

		if pred.next != curr || curr.marked {
			curr.mtx.Unlock()
			pred.mtx.Unlock()
			continue
		}

		if curr.key != key {
			curr.mtx.Unlock()
			pred.mtx.Unlock()
			return false
		}

		if durableset.Aborted(s.abort) {
			curr.mtx.Unlock()
			pred.mtx.Unlock()
			return false
		}

		successor := curr.next
		curr.marked = true
		curr.next = successor
		pred.next = successor

		s.flushDelete(curr)
		s.store.Metrics().AddLen(curr.addr.Owner, -1)

		curr.mtx.Unlock()
		pred.mtx.Unlock()
		return true
	}
}

// flushInsert and flushDelete each write a node's cell at most once, guarded
// by insertFlushed and deleteFlushed. The delete flush runs after Remove
// sets marked, so its cell content differs from the insert flush's only in
// the mark bit. Both must be called with curr's mutex held.
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

// encodeNext mirrors the tagged-successor word the other variants persist,
// so the PersistentStore's cell layout is uniform across variants even
// though finelock's volatile next field is a plain, mutex-guarded pointer
// rather than an atomic tagged ref.
func encodeNext(n *node) uint64 {
	var mark uint64
	if n.marked {
		mark = 1
	}
	return mark
}

// Recover replays the persistent store's crash-recovered contents into a
// freshly rebuilt set. It must not run concurrently with any other Set
// method.
func (s *Set) Recover(writeOpsPerOwner []int) {
	keys, items, owners, active, _ := s.store.ReadResetMemory()
	_ = s.Keys() // diagnostic snapshot of pre-recovery volatile state

	sizes := make([]int, len(writeOpsPerOwner))
	for i := range sizes {
		sizes[i] = writeOpsPerOwner[i] + active[i]
	}
	_ = s.store.Resize(sizes)
	s.rebuild(sizes)

	for i := range keys {
		s.Insert(keys[i], items[i], owners[i])
	}
}

// Free releases the set's backing arena. Must only be called with no
// operations in flight.
func (s *Set) Free() {
	s.arena = nil
}

// Keys returns every live key in ascending order. It is a debug helper,
// not part of the hot path, and takes no locks.
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
