package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type testNode struct {
	key int64
}

func TestAllocDrawsDistinctStableRefs(t *testing.T) {
	a := New[testNode]([]int{2, 3}, 2)

	r0, n0, ok := a.Alloc(0)
	assert.True(t, ok)
	n0.key = 100

	r1, n1, ok := a.Alloc(0)
	assert.True(t, ok)
	n1.key = 200
	assert.NotEqual(t, r0, r1)

	// At(ref) returns the same stable slot every time.
	assert.Equal(t, int64(100), a.At(r0).key)
	assert.Equal(t, int64(200), a.At(r1).key)

	// Owner 0's budget is 2; a third Alloc must fail.
	_, _, ok = a.Alloc(0)
	assert.False(t, ok)
}

func TestOwnersDoNotShareSlots(t *testing.T) {
	a := New[testNode]([]int{1, 1}, 0)

	r0, _, ok := a.Alloc(0)
	assert.True(t, ok)
	r1, _, ok := a.Alloc(1)
	assert.True(t, ok)
	assert.NotEqual(t, r0, r1)

	owner, _, reserved := a.OwnerOf(r0)
	assert.Equal(t, 0, owner)
	assert.False(t, reserved)

	owner, _, reserved = a.OwnerOf(r1)
	assert.Equal(t, 1, owner)
	assert.False(t, reserved)
}

func TestReservedSlotsComeFirst(t *testing.T) {
	a := New[testNode]([]int{2}, 2)
	head := a.At(a.ReservedRef(0))
	tail := a.At(a.ReservedRef(1))
	head.key = 1
	tail.key = 2

	r, n, ok := a.Alloc(0)
	assert.True(t, ok)
	n.key = 3
	assert.NotEqual(t, a.ReservedRef(0), r)
	assert.NotEqual(t, a.ReservedRef(1), r)

	_, _, reserved := a.OwnerOf(a.ReservedRef(0))
	assert.True(t, reserved)
}

func TestResetRebuildsWithFreshCapacities(t *testing.T) {
	a := New[testNode]([]int{1}, 1)
	_, n, ok := a.Alloc(0)
	assert.True(t, ok)
	n.key = 42

	a.Reset([]int{3})
	assert.Equal(t, 3, a.Cap(0))
	_, _, ok = a.Alloc(0)
	assert.True(t, ok)
	_, _, ok = a.Alloc(0)
	assert.True(t, ok)
	_, _, ok = a.Alloc(0)
	assert.True(t, ok)
	_, _, ok = a.Alloc(0)
	assert.False(t, ok)
}
