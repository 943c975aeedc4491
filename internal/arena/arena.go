// Package arena provides the pre-sized, per-owner node allocator shared by
// every set variant's allocFromArea, plus the integer-ref indirection the
// link-free and SOFT variants need to pack a lifecycle tag alongside a
// successor reference in one atomic word.
//
// A sync.Pool would let the Go runtime hand a freed slot from one owner to
// another goroutine's allocation, which breaks arena disjointness and the
// (owner, index) durable-address scheme, so Arena preallocates once and
// never frees an individual slot: it backs that idiom with one flat,
// owner-partitioned slice, so a slot only ever belongs to one owner. A
// node's crash-visible cell address is not its arena slot; it comes from
// the persist store's own per-owner address allocator.
//
// Go cannot safely stash tag bits inside a live, GC-traced pointer the way
// a systems-language implementation would. The idiomatic Go substitute —
// used by arena-backed skip lists in production (e.g. CockroachDB's
// arenaskl/interval_skl, and the Handle-into-table indirection in Pebble's
// concurrent Set) — is to reference nodes by a small integer into a stable
// table instead of by pointer, leaving the low bits free for a state tag.
// Arena's ref is exactly that integer.
package arena

import "sync/atomic"

// Arena is a flat, owner-partitioned pool of slots for a node type T. A
// handful of "reserved" slots at the front of the table are available for
// sentinels that don't belong to any owner (e.g. a list's head/tail).
type Arena[T any] struct {
	flat     []T
	offsets  []int
	caps     []int
	next     []atomic.Int64
	reserved int
}

// New builds an Arena with `reserved` sentinel slots up front, followed by
// one pool per owner sized by capacities[i].
func New[T any](capacities []int, reserved int) *Arena[T] {
	if reserved < 0 {
		reserved = 0
	}
	offsets := make([]int, len(capacities))
	total := reserved
	for i, c := range capacities {
		if c < 0 {
			c = 0
		}
		offsets[i] = total
		total += c
	}
	return &Arena[T]{
		flat:     make([]T, total),
		offsets:  offsets,
		caps:     capacities,
		next:     make([]atomic.Int64, len(capacities)),
		reserved: reserved,
	}
}

// Alloc draws the next free slot for owner. ok is false once that owner's
// budget is exhausted. ref is a stable integer identifying the slot for
// the lifetime of this Arena; At(ref) dereferences it.
func (a *Arena[T]) Alloc(owner int) (ref int, slot *T, ok bool) {
	idx := a.next[owner].Add(1) - 1
	if idx < 0 || int(idx) >= a.caps[owner] {
		return 0, nil, false
	}
	ref = a.offsets[owner] + int(idx)
	return ref, &a.flat[ref], true
}

// At dereferences a ref returned by Alloc or ReservedRef.
func (a *Arena[T]) At(ref int) *T {
	return &a.flat[ref]
}

// ReservedRef returns the ref for reserved sentinel slot i (0 <= i <
// reserved).
func (a *Arena[T]) ReservedRef(i int) int {
	return i
}

// Cap returns owner's total slot capacity.
func (a *Arena[T]) Cap(owner int) int {
	return a.caps[owner]
}

// NumOwners returns the number of owner pools.
func (a *Arena[T]) NumOwners() int {
	return len(a.caps)
}

// OwnerOf recovers the owning owner id and local index for a ref
// previously returned by Alloc. It is used only for diagnostics; hot paths
// never need to invert a ref.
func (a *Arena[T]) OwnerOf(ref int) (owner, index int, isReserved bool) {
	if ref < a.reserved {
		return -1, ref, true
	}
	for i := len(a.offsets) - 1; i >= 0; i-- {
		if ref >= a.offsets[i] {
			return i, ref - a.offsets[i], false
		}
	}
	return -1, ref, true
}

// Reset replaces the arena's pools with freshly-sized, empty ones,
// preserving the reserved-slot count. The Set variants' Recover methods do
// not call it; they build a new Arena with New instead.
func (a *Arena[T]) Reset(capacities []int) {
	fresh := New[T](capacities, a.reserved)
	a.flat = fresh.flat
	a.offsets = fresh.offsets
	a.caps = fresh.caps
	a.next = fresh.next
}
