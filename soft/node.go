// Package soft implements the SOFT ordered set: a volatile ordering layer
// whose nodes carry their lifecycle state in the low two bits of their
// successor word, paired with a persistent twin (pnode) that is the unit
// of durability.
package soft

import (
	"sync/atomic"

	"github.com/metailurini/durableset"
	"github.com/metailurini/durableset/persist"
)

// MinKey and MaxKey are this set's sentinel bounds, declared locally per
// variant package rather than shared globally.
const (
	MinKey int64 = -100000
	MaxKey int64 = 100000
)

// Node lifecycle states, packed into the low two bits of a vnode's next
// word.
const (
	IntendToInsert uint64 = 0
	Inserted       uint64 = 1
	IntendToDelete uint64 = 2
	Deleted        uint64 = 3
)

// ref extracts the successor reference from a packed next word.
func ref(word uint64) int { return int(word >> 2) }

// state extracts the lifecycle state from a packed next word.
func state(word uint64) uint64 { return word & 3 }

// pack combines a successor reference and a state into one next word.
func pack(r int, st uint64) uint64 { return uint64(r)<<2 | (st & 3) }

// pnode is the persistent twin of a vnode: the unit of durability that
// create/destroy flush to the backing SoftStore.
type pnode struct {
	key, item int64
	addr      durableset.Addr
}

// create persists key/item and marks validStart/validEnd: FlushCreate
// writes validStart, then key/item, then validEnd into the cell. As with
// every flush of the simulated store, no fence or writeback is issued.
func (p *pnode) create(store *persist.SoftStore, key, item int64) {
	p.key, p.item = key, item
	store.FlushCreate(p.addr, key, item)
}

// destroy marks the twin deleted and flushes it.
func (p *pnode) destroy(store *persist.SoftStore) {
	store.FlushDestroy(p.addr)
}

// vnode is the volatile ordering node: key/item for fast comparison, its
// persistent twin, and a next word packing (successor ref, state).
type vnode struct {
	key, item int64
	pn        pnode
	next      atomic.Uint64
}
