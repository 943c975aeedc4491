package persist

import (
	"sync/atomic"

	"github.com/metailurini/durableset"
)

// SoftCell is the crash-consistent record for the SOFT variant, whose
// lifecycle is validStart -> validEnd -> deleted rather than a valid-bits
// word plus a tagged successor.
type SoftCell struct {
	Key        int64
	Item       int64
	ValidStart bool
	ValidEnd   bool
	Deleted    bool
}

func (c SoftCell) insertedOK() bool {
	return c.ValidStart && c.ValidEnd && !c.Deleted
}

// SoftStore is the PersistentStore specialization backing the SOFT
// variant's PNode layer. It shares the same arena/address-allocation
// shape as Store; only the cell contents differ.
type SoftStore struct {
	cells   [][]SoftCell
	free    []atomic.Int64
	metrics *Metrics
}

// NewSoft creates a SOFT-flavored store with numOwners arenas of
// maxWritesPerThread cells each.
func NewSoft(numOwners, maxWritesPerThread int) (*SoftStore, error) {
	sizes := make([]int, numOwners)
	for i := range sizes {
		sizes[i] = maxWritesPerThread
	}
	return newSoftSized(sizes)
}

func newSoftSized(sizes []int) (*SoftStore, error) {
	if len(sizes) == 0 {
		return nil, durableset.ErrArenaExhausted
	}
	for _, n := range sizes {
		if n <= 0 {
			return nil, durableset.ErrArenaExhausted
		}
	}
	s := &SoftStore{
		cells: make([][]SoftCell, len(sizes)),
		free:  make([]atomic.Int64, len(sizes)),
	}
	for i, n := range sizes {
		s.cells[i] = make([]SoftCell, n)
		s.free[i].Store(int64(n - 1))
	}
	s.metrics = newMetrics(len(sizes))
	return s, nil
}

// NumOwners returns the number of owner arenas.
func (s *SoftStore) NumOwners() int { return len(s.cells) }

// RetrieveAddress returns owner's next free cell index, or -1 if exhausted.
func (s *SoftStore) RetrieveAddress(owner int) int {
	idx := s.free[owner].Load()
	if idx < 0 {
		return -1
	}
	return int(idx)
}

// UpdateAddress advances owner's free pointer. Only call after a
// successful allocation.
func (s *SoftStore) UpdateAddress(owner int) {
	s.free[owner].Add(-1)
}

// FlushCreate persists a PNode's key/item and marks validStart and
// validEnd, writing validStart first and validEnd last.
func (s *SoftStore) FlushCreate(addr durableset.Addr, key, item int64) {
	c := &s.cells[addr.Owner][addr.Cell]
	c.ValidStart = true
	c.Key = key
	c.Item = item
	c.ValidEnd = true
	s.metrics.IncFlush(addr.Owner)
}

// FlushDestroy marks a PNode deleted and flushes the cell, per spec
// section 4.2's destroy().
func (s *SoftStore) FlushDestroy(addr durableset.Addr) {
	c := &s.cells[addr.Owner][addr.Cell]
	c.Deleted = true
	s.metrics.IncFlush(addr.Owner)
}

// Metrics exposes the store's sharded flush counters.
func (s *SoftStore) Metrics() *Metrics { return s.metrics }

// ReadResetMemory scans every cell for ones that are validStart, validEnd,
// and not deleted, reports the recovered (key, item, owner) triples, zeroes
// every cell, and resets each owner's free index to 0. Must not run
// concurrently with any Set operation.
func (s *SoftStore) ReadResetMemory() (keys, items []int64, owners []int, activePerOwner []int, total int) {
	activePerOwner = make([]int, len(s.cells))
	for owner := range s.cells {
		row := s.cells[owner]
		for j := 0; j < len(row); j++ {
			c := row[j]
			if c.insertedOK() {
				keys = append(keys, c.Key)
				items = append(items, c.Item)
				owners = append(owners, owner)
				activePerOwner[owner]++
				total++
			}
			row[j] = SoftCell{}
		}
		s.free[owner].Store(0)
	}
	return keys, items, owners, activePerOwner, total
}

// Resize replaces the store's arenas with fresh, fully-available ones
// sized per owner, used by soft.Set.Recover after ReadResetMemory.
func (s *SoftStore) Resize(sizes []int) error {
	fresh, err := newSoftSized(sizes)
	if err != nil {
		return err
	}
	s.cells = fresh.cells
	s.free = fresh.free
	s.metrics = fresh.metrics
	return nil
}
