// Package persist implements the crash-consistent backing store shared by
// every set variant: a 2-D grid of fixed-size cells partitioned by owner,
// a descending per-owner free-address allocator, and post-crash replay.
//
// The "persistent" medium is simulated: a Cell lives in ordinary process
// memory. A real byte-addressable NVM implementation would replace Flush's
// plain copy with a cache-line writeback plus store fence before
// returning; the API shape is otherwise what a real implementation would
// expose.
package persist

import (
	"sync/atomic"

	"github.com/metailurini/durableset"
)

// Cell is the crash-consistent record mirroring one volatile node over its
// lifetime, for the link-free, fine-grained-lock, MRLock, and sequential
// variants. It carries no header, version, or checksum: just a dense
// array of bare records.
type Cell struct {
	Key       int64
	Item      int64
	ValidBits uint8  // bit0 = prepared, bit1 = committed
	NextRaw   uint64 // tagged successor word at flush time; bit0 = logically deleted
}

// insertedOK reports whether, at recovery time, this cell represents a
// node that is both committed and not logically deleted.
func (c Cell) insertedOK() bool {
	return c.ValidBits&3 == 3 && c.NextRaw&1 == 0
}

// Store is the 2-D cells[owner][index] grid backing a set's durable state.
type Store struct {
	cells   [][]Cell
	free    []atomic.Int64
	metrics *Metrics
}

// New creates a store with numOwners arenas, each holding maxWritesPerThread
// cells.
func New(numOwners, maxWritesPerThread int) (*Store, error) {
	sizes := make([]int, numOwners)
	for i := range sizes {
		sizes[i] = maxWritesPerThread
	}
	return newSized(sizes)
}

func newSized(sizes []int) (*Store, error) {
	if len(sizes) == 0 {
		return nil, durableset.ErrArenaExhausted
	}
	for _, n := range sizes {
		if n <= 0 {
			return nil, durableset.ErrArenaExhausted
		}
	}
	s := &Store{
		cells: make([][]Cell, len(sizes)),
		free:  make([]atomic.Int64, len(sizes)),
	}
	for i, n := range sizes {
		s.cells[i] = make([]Cell, n)
		s.free[i].Store(int64(n - 1))
	}
	s.metrics = newMetrics(len(sizes))
	return s, nil
}

// NumOwners returns the number of owner arenas the store was built with.
func (s *Store) NumOwners() int { return len(s.cells) }

// RetrieveAddress returns the next free cell index for owner, or -1 if the
// owner's arena is exhausted. It does not consume the address; a failed
// insert must not call UpdateAddress.
func (s *Store) RetrieveAddress(owner int) int {
	idx := s.free[owner].Load()
	if idx < 0 {
		return -1
	}
	return int(idx)
}

// UpdateAddress advances owner's free pointer past the cell just
// committed to. Must only be called after a successful insert.
func (s *Store) UpdateAddress(owner int) {
	s.free[owner].Add(-1)
}

// Flush writes the current state of a node into its backing cell. Flushing
// the same node repeatedly (monotonically advancing through
// prepared -> committed -> deleted) produces bitwise-identical cell
// contents each time, so a flush can be retried freely after a crash.
func (s *Store) Flush(addr durableset.Addr, key, item int64, validBits uint8, nextRaw uint64) {
	c := &s.cells[addr.Owner][addr.Cell]
	c.Key = key
	c.Item = item
	c.ValidBits = validBits
	c.NextRaw = nextRaw
	s.metrics.IncFlush(addr.Owner)
}

// Metrics exposes the store's sharded CAS/flush counters for observability
// wiring (see Collector).
func (s *Store) Metrics() *Metrics { return s.metrics }

// ReadResetMemory scans every cell, appending the (key, item, owner)
// triple for each cell that committed successfully and was not logically
// deleted, then zeroes the cell and resets the owner's free index to 0.
// It must not be called concurrently with any Set operation.
func (s *Store) ReadResetMemory() (keys, items []int64, owners []int, activePerOwner []int, total int) {
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
			row[j] = Cell{}
		}
		s.free[owner].Store(0)
	}
	return keys, items, owners, activePerOwner, total
}

// Resize replaces the store's arenas with freshly-sized, fully-available
// ones, used by Set.Recover after ReadResetMemory to grow each owner's
// budget to writeOpsPerOwner[i] + activeNodes[i]. Existing cell contents
// are discarded; callers call this only after ReadResetMemory has already
// drained them.
func (s *Store) Resize(sizes []int) error {
	fresh, err := newSized(sizes)
	if err != nil {
		return err
	}
	s.cells = fresh.cells
	s.free = fresh.free
	s.metrics = fresh.metrics
	return nil
}
