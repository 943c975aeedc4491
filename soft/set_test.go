package soft

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/metailurini/durableset"
	"github.com/metailurini/durableset/persist"
)

func newTestSet(t *testing.T, numOwners, perOwner int) *Set {
	t.Helper()
	store, err := persist.NewSoft(numOwners, perOwner)
	require.NoError(t, err)
	sizes := make([]int, numOwners)
	for i := range sizes {
		sizes[i] = perOwner
	}
	return New(store, nil, numOwners, sizes)
}

func TestInsertContainsRemove(t *testing.T) {
	s := newTestSet(t, 1, 8)

	assert.False(t, s.Contains(5))
	assert.True(t, s.Insert(5, 50, 0))
	assert.True(t, s.Contains(5))
	assert.False(t, s.Insert(5, 99, 0))

	assert.True(t, s.Remove(5, 0))
	assert.False(t, s.Contains(5))
	assert.False(t, s.Remove(5, 0))
}

func TestInsertOrdersKeys(t *testing.T) {
	s := newTestSet(t, 1, 8)
	for _, k := range []int64{30, 10, 20} {
		assert.True(t, s.Insert(k, k*10, 0))
	}
	assert.Equal(t, []int64{10, 20, 30}, s.Keys())
}

func TestArenaExhaustion(t *testing.T) {
	s := newTestSet(t, 1, 2)
	assert.True(t, s.Insert(1, 1, 0))
	assert.True(t, s.Insert(2, 2, 0))
	assert.False(t, s.Insert(3, 3, 0))
}

func TestConcurrentMixedOperationsStorm(t *testing.T) {
	const numOwners = 4
	const perOwner = 200
	s := newTestSet(t, numOwners, perOwner)

	var g errgroup.Group
	var inserted sync.Map
	for owner := 0; owner < numOwners; owner++ {
		owner := owner
		g.Go(func() error {
			for i := 0; i < perOwner; i++ {
				key := int64(owner*perOwner + i)
				if s.Insert(key, key, owner) {
					inserted.Store(key, true)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	count := 0
	inserted.Range(func(k, _ any) bool {
		count++
		assert.True(t, s.Contains(k.(int64)))
		return true
	})
	assert.Equal(t, numOwners*perOwner, count)
	assert.Equal(t, count, s.Len())
}

// TestContainsHiddenUntilPublish drives a node through the
// INTEND_TO_INSERT window directly, the way a suspended inserting
// goroutine would leave it before calling publish: Contains must report
// absence while the node sits in INTEND_TO_INSERT, and presence only once
// publish has spun its state to INSERTED.
func TestContainsHiddenUntilPublish(t *testing.T) {
	s := newTestSet(t, 1, 8)

	head := s.arena.At(s.headRef)
	headWord := head.next.Load()

	newRef, n, ok := s.arena.Alloc(0)
	require.True(t, ok)
	cell := s.store.RetrieveAddress(0)
	require.GreaterOrEqual(t, cell, 0)

	const key, item = 7, 70
	n.key, n.item = key, item
	n.pn = pnode{addr: durableset.Addr{Owner: 0, Cell: cell}}
	n.next.Store(pack(ref(headWord), IntendToInsert))

	require.True(t, head.next.CompareAndSwap(headWord, pack(newRef, state(headWord))))
	s.store.UpdateAddress(0)

	assert.False(t, s.Contains(key))

	s.publish(n, key, item)

	assert.True(t, s.Contains(key))
}

func TestRecoverReplaysCommittedNodes(t *testing.T) {
	s := newTestSet(t, 1, 8)
	for _, k := range []int64{1, 2, 3} {
		require.True(t, s.Insert(k, k, 0))
	}
	require.True(t, s.Remove(2, 0))

	s.Recover([]int{8})
	assert.Equal(t, []int64{1, 3}, s.Keys())
}
