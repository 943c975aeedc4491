package linkfree

import (
	"github.com/metailurini/durableset"
	"github.com/metailurini/durableset/internal/arena"
	"github.com/metailurini/durableset/persist"
)

// Set is the link-free lock-free ordered set.
type Set struct {
	store *persist.Store
	abort durableset.AbortFlag

	arena            *arena.Arena[node]
	headRef, tailRef int
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
	headRef, tailRef := a.ReservedRef(0), a.ReservedRef(1)
	head, tail := a.At(headRef), a.At(tailRef)

	head.key = MinKey
	tail.key = MaxKey
	head.validBits.Store(bitPrepared | bitCommitted)
	tail.validBits.Store(bitPrepared | bitCommitted)
	head.next.Store(packNext(tailRef, false))
	tail.next.Store(packNext(tailRef, false))

	s.arena = a
	s.headRef = headRef
	s.tailRef = tailRef
}

// find walks from head, trimming any logically-deleted node it crosses,
// and returns the first node whose key is >= target along with its
// predecessor. predWord is the exact value observed in pred.next, usable
// as the CAS "expected" for a subsequent insert.
func (s *Set) find(key int64) (pred, curr *node, predRef, currRef int, predWord uint64) {
outer:
	for {
		predRef = s.headRef
		pred = s.arena.At(predRef)
		predWord = pred.next.Load()
		var predMarked bool
		currRef, predMarked = unpackNext(predWord)
		curr = s.arena.At(currRef)

		for {
			if currRef == s.tailRef {
				return pred, curr, predRef, currRef, predWord
			}

			currWord := curr.next.Load()
			succRef, currMarked := unpackNext(currWord)

			if currMarked {
				swung := packNext(succRef, predMarked)
				if !pred.next.CompareAndSwap(predWord, swung) {
					continue outer
				}
				s.flushDelete(curr)
				currRef = succRef
				curr = s.arena.At(currRef)
				predWord = swung
				continue
			}

			if curr.key >= key {
				return pred, curr, predRef, currRef, predWord
			}

			predRef, pred, predWord, predMarked = currRef, curr, currWord, currMarked
			currRef = succRef
			curr = s.arena.At(currRef)
		}
	}
}

// Insert adds key/item under owner. It returns false if key is already
// present, the owner's arena or persistent budget is exhausted, or the
// abort flag is observed set.
func (s *Set) Insert(key, item int64, owner int) bool {
	if durableset.Aborted(s.abort) {
		return false
	}

	// Drawn once per logical Insert, not per CAS attempt: the original's
	// allocFromArea returns the same slot on every retry, only advancing
	// the owner's allocation index on the success path. Drawing a fresh
	// slot on every lost race would burn one permanently, since arena slots
	// are never recycled.
	newRef, n, ok := s.arena.Alloc(owner)
	if !ok {
		return false
	}
	cell := s.store.RetrieveAddress(owner)
	if cell < 0 {
		return false
	}
	n.key = key
	n.item = item
	n.addr = durableset.Addr{Owner: owner, Cell: cell}
	n.validBits.Store(bitPrepared)

	for {
		pred, curr, _, currRef, predWord := s.find(key)

		if curr.key == key {
			setBit(&curr.validBits, bitCommitted)
			s.flushInsert(curr)
			return false
		}

		if durableset.Aborted(s.abort) {
			return false
		}

		n.next.Store(packNext(currRef, false))

		if pred.next.CompareAndSwap(predWord, packNext(newRef, false)) {
			s.store.UpdateAddress(owner)
			setBit(&n.validBits, bitCommitted)
			s.flushInsert(n)
			s.store.Metrics().IncInsertCASSuccess()
			s.store.Metrics().AddLen(owner, 1)
			return true
		}
		// Lost the race: retry from find with the same slot and cell
		// address, per the original's same-slot-on-retry behavior.
		s.store.Metrics().IncInsertCASRetry()
	}
}

// Remove deletes key. It returns false if key is absent, the abort flag is
// set, or a concurrent remover already won the race for this key.
func (s *Set) Remove(key int64, owner int) bool {
	if durableset.Aborted(s.abort) {
		return false
	}

	for {
		_, curr, predRef, currRef, _ := s.find(key)

		if curr.key != key {
			return false
		}

		if durableset.Aborted(s.abort) {
			return false
		}

		setBit(&curr.validBits, bitCommitted)

		currWord := curr.next.Load()
		succRef, marked := unpackNext(currWord)
		if marked {
			return false
		}

		if curr.next.CompareAndSwap(currWord, packNext(succRef, true)) {
			s.trim(predRef, currRef)
			s.store.Metrics().AddLen(curr.addr.Owner, -1)
			return true
		}
	}
}

// trim swings pred.next past a marked node's successor, first flushing
// the delete. Failure is ignored: another thread will trim it.
func (s *Set) trim(predRef, currRef int) {
	curr := s.arena.At(currRef)
	s.flushDelete(curr)

	currWord := curr.next.Load()
	succRef, marked := unpackNext(currWord)
	if !marked {
		return
	}

	pred := s.arena.At(predRef)
	predWord := pred.next.Load()
	pRef, predMarked := unpackNext(predWord)
	if pRef != currRef {
		return
	}
	pred.next.CompareAndSwap(predWord, packNext(succRef, predMarked))
}

// Contains reports whether key is present. On the way it opportunistically
// helps durability along: a live match gets committed and flush-inserted,
// a logically-deleted match gets flush-deleted.
func (s *Set) Contains(key int64) bool {
	curr := s.arena.At(s.headRef)
	currRef, _ := unpackNext(curr.next.Load())
	curr = s.arena.At(currRef)

	for curr.key < key {
		succRef, _ := unpackNext(curr.next.Load())
		currRef = succRef
		curr = s.arena.At(currRef)
	}

	if curr.key != key {
		return false
	}

	_, marked := unpackNext(curr.next.Load())
	if !marked {
		setBit(&curr.validBits, bitCommitted)
		s.flushInsert(curr)
		return true
	}
	s.flushDelete(curr)
	return false
}

// flushInsert and flushDelete are idempotent: repeated calls after the
// first are no-ops. Racing callers may both flush once each; that's a
// benign duplicate write since flush contents are a deterministic function
// of the node's current fields.
func (s *Set) flushInsert(n *node) {
	if n.insertFlushed.Load() {
		return
	}
	s.store.Flush(n.addr, n.key, n.item, uint8(n.validBits.Load()), n.next.Load())
	n.insertFlushed.Store(true)
}

func (s *Set) flushDelete(n *node) {
	if n.deleteFlushed.Load() {
		return
	}
	s.store.Flush(n.addr, n.key, n.item, uint8(n.validBits.Load()), n.next.Load())
	n.deleteFlushed.Store(true)
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

// Free releases the set's backing arenas. Must only be called with no
// operations in flight.
func (s *Set) Free() {
	s.arena = nil
}

// Keys returns every live key in ascending order. It is a debug helper,
// not part of the hot path.
func (s *Set) Keys() []int64 {
	var out []int64
	curr := s.arena.At(s.headRef)
	currRef, _ := unpackNext(curr.next.Load())
	curr = s.arena.At(currRef)
	for currRef != s.tailRef {
		if _, marked := unpackNext(curr.next.Load()); !marked {
			out = append(out, curr.key)
		}
		succRef, _ := unpackNext(curr.next.Load())
		currRef = succRef
		curr = s.arena.At(currRef)
	}
	return out
}

// Len returns the number of live keys.
func (s *Set) Len() int {
	return len(s.Keys())
}
