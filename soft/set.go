package soft

import (
	"github.com/metailurini/durableset"
	"github.com/metailurini/durableset/internal/arena"
	"github.com/metailurini/durableset/persist"
)

// Set is the SOFT ordered set.
type Set struct {
	store *persist.SoftStore
	abort durableset.AbortFlag

	arena                      *arena.Arena[vnode]
	headRef, tail1Ref, tail2Ref int
}

// New builds a Set backed by store, with numOwners per-owner arenas sized
// by writeOpsPerOwner. abort may be nil.
func New(store *persist.SoftStore, abort durableset.AbortFlag, numOwners int, writeOpsPerOwner []int) *Set {
	s := &Set{store: store, abort: abort}
	s.rebuild(writeOpsPerOwner)
	return s
}

func (s *Set) rebuild(writeOpsPerOwner []int) {
	a := arena.New[vnode](writeOpsPerOwner, 3)
	headRef := a.ReservedRef(0)
	tail1Ref := a.ReservedRef(1)
	tail2Ref := a.ReservedRef(2)

	head, tail1, tail2 := a.At(headRef), a.At(tail1Ref), a.At(tail2Ref)
	head.key, tail1.key, tail2.key = MinKey, MaxKey, MaxKey+1

	head.next.Store(pack(tail1Ref, Inserted))
	tail1.next.Store(pack(tail2Ref, Inserted))
	tail2.next.Store(pack(tail2Ref, Inserted))

	s.arena = a
	s.headRef, s.tail1Ref, s.tail2Ref = headRef, tail1Ref, tail2Ref
}

// find walks from head, trimming any DELETED node it crosses, and returns
// the first node whose key is >= target, its predecessor, and the node's
// own observed state. predWord is the exact word seen in pred.next.
func (s *Set) find(key int64) (pred, curr *vnode, predRef, currRef int, currState, predWord uint64) {
outer:
	for {
		predRef = s.headRef
		pred = s.arena.At(predRef)
		predWord = pred.next.Load()
		var predState uint64
		currRef, predState = ref(predWord), state(predWord)
		curr = s.arena.At(currRef)

		for {
			cWord := curr.next.Load()
			succRef, cState := ref(cWord), state(cWord)

			if cState == Deleted {
				swung := pack(succRef, predState)
				if !pred.next.CompareAndSwap(predWord, swung) {
					continue outer
				}
				currRef = succRef
				curr = s.arena.At(currRef)
				predWord = swung
				continue
			}

			if curr.key >= key {
				return pred, curr, predRef, currRef, cState, predWord
			}

			predRef, pred, predWord, predState = currRef, curr, cWord, cState
			currRef = succRef
			curr = s.arena.At(currRef)
		}
	}
}

// publish persists resultNode's twin and spins the node's own state from
// INTEND_TO_INSERT to INSERTED. Both the inserting thread and any helper
// that observed the same INTEND_TO_INSERT node run this; the first CAS to
// land wins, and create() is idempotent so a redundant one is harmless.
func (s *Set) publish(resultNode *vnode, key, item int64) {
	resultNode.pn.create(s.store, key, item)
	for {
		cur := resultNode.next.Load()
		r, st := ref(cur), state(cur)
		if st != IntendToInsert {
			return
		}
		if resultNode.next.CompareAndSwap(cur, pack(r, Inserted)) {
			return
		}
	}
}

// Insert adds key/item under owner, or helps publish an existing node
// still in INTEND_TO_INSERT. Returns false if key is already (fully or
// pending) present, the arena/persistent budget is exhausted, or abort is
// set.
func (s *Set) Insert(key, item int64, owner int) bool {
	if durableset.Aborted(s.abort) {
		return false
	}

	// Drawn once per logical Insert, not per CAS attempt: a lost race must
	// retry from find with the same slot and cell address rather than
	// burning a fresh one every time, since arena slots are never recycled.
	newRef, n, ok := s.arena.Alloc(owner)
	if !ok {
		return false
	}
	cell := s.store.RetrieveAddress(owner)
	if cell < 0 {
		return false
	}
	n.key, n.item = key, item
	n.pn = pnode{addr: durableset.Addr{Owner: owner, Cell: cell}}

	for {
		pred, curr, _, currRef, currState, predWord := s.find(key)

		var resultNode *vnode
		var result bool

		if curr.key == key {
			if currState != IntendToInsert {
				return false
			}
			resultNode = curr
			result = false
		} else {
			if durableset.Aborted(s.abort) {
				return false
			}

			n.next.Store(pack(currRef, IntendToInsert))

			predState := state(predWord)
			if !pred.next.CompareAndSwap(predWord, pack(newRef, predState)) {
				s.store.Metrics().IncInsertCASRetry()
				continue
			}
			s.store.UpdateAddress(owner)
			s.store.Metrics().IncInsertCASSuccess()
			s.store.Metrics().AddLen(owner, 1)
			resultNode = n
			result = true
		}

		s.publish(resultNode, key, item)
		return result
	}
}

// Remove deletes key. It returns false if key is absent or still
// INTEND_TO_INSERT, or abort is set. Only the goroutine whose CAS wins the
// INSERTED -> INTEND_TO_DELETE transition returns true.
func (s *Set) Remove(key int64, owner int) bool {
	_ = owner
	if durableset.Aborted(s.abort) {
		return false
	}

	pred, curr, predRef, currRef, currState, _ := s.find(key)
	if curr.key != key || currState == IntendToInsert {
		return false
	}
	if durableset.Aborted(s.abort) {
		return false
	}

	result := false
	for {
		cur := curr.next.Load()
		r, st := ref(cur), state(cur)
		if st != Inserted {
			break
		}
		if curr.next.CompareAndSwap(cur, pack(r, IntendToDelete)) {
			result = true
			break
		}
	}

	curr.pn.destroy(s.store)

	for {
		cur := curr.next.Load()
		r, st := ref(cur), state(cur)
		if st != IntendToDelete {
			break
		}
		if curr.next.CompareAndSwap(cur, pack(r, Deleted)) {
			break
		}
	}

	if result {
		s.trim(predRef, currRef)
		s.store.Metrics().AddLen(curr.pn.addr.Owner, -1)
	}
	_ = pred
	return result
}

// trim swings pred.next past a DELETED node, retaining the predecessor's
// own state. Failure is ignored: another thread will trim it.
func (s *Set) trim(predRef, currRef int) {
	pred := s.arena.At(predRef)
	curr := s.arena.At(currRef)

	predWord := pred.next.Load()
	if ref(predWord) != currRef {
		return
	}
	currWord := curr.next.Load()
	if state(currWord) != Deleted {
		return
	}
	pred.next.CompareAndSwap(predWord, pack(ref(currWord), state(predWord)))
}

// Contains reports whether key is present and not deleted and not still
// pending its first insert. It performs no writes: no helping, no flush.
func (s *Set) Contains(key int64) bool {
	curr := s.arena.At(s.headRef)
	currRef := ref(curr.next.Load())
	curr = s.arena.At(currRef)

	for curr.key < key {
		next := curr.next.Load()
		currRef = ref(next)
		curr = s.arena.At(currRef)
	}

	if curr.key != key {
		return false
	}
	st := state(curr.next.Load())
	return st != Deleted && st != IntendToInsert
}

// Recover replays the persistent store's recovered contents into a freshly
// rebuilt set. Must not run concurrently with any other Set method.
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

// Keys returns every live key in ascending order, walking past DELETED and
// still-pending nodes. This replaces the original SOFTDurableSet::recover
// walk, which called isNextMarked()/getNextRef() methods that don't exist
// on SOFT nodes; the intent there was exactly this — skip DELETED state.
func (s *Set) Keys() []int64 {
	var out []int64
	curr := s.arena.At(s.headRef)
	currRef := ref(curr.next.Load())
	curr = s.arena.At(currRef)
	for currRef != s.tail1Ref && currRef != s.tail2Ref {
		st := state(curr.next.Load())
		if st == Inserted {
			out = append(out, curr.key)
		}
		currRef = ref(curr.next.Load())
		curr = s.arena.At(currRef)
	}
	return out
}

// Len returns the number of live (INSERTED-state) keys.
func (s *Set) Len() int {
	return len(s.Keys())
}
