// Package durableset holds the shared vocabulary for a family of durably
// linearizable concurrent ordered sets: the durable-address coordinate and
// the cooperative abort token that every variant package (linkfree, soft,
// finelock, mrlock, sequential) uses, and the sentinel errors that the
// persist stores' constructors return. Keys and items are plain int64.
//
// Each variant package implements the same driver-facing contract:
//
//	New(store, abort, numOwners, writeOpsPerOwner) -> *Set
//	Insert(key, item int64, owner int) bool
//	Remove(key int64, owner int) bool
//	Contains(key int64) bool
//	Recover(writeOpsPerOwner []int)
//	Free()
//
// The package itself stores nothing and runs nothing; it exists so the
// variant packages don't each redeclare the same small types.
package durableset
