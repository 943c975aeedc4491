// Package finelock implements the fine-grained hand-over-hand lock set: a
// singly linked list ordered by key, where insert and remove hold the
// predecessor's and current node's own mutexes together before mutating,
// validating both still agree on the link before committing. Contains
// never locks.
package finelock

import (
	"sync"

	"github.com/metailurini/durableset"
)

// MinKey and MaxKey are this set's sentinel bounds, kept local to the
// package rather than as a shared global.
const (
	MinKey int64 = -100000
	MaxKey int64 = 100000
)

const (
	bitPrepared  int32 = 1 << 0
	bitCommitted int32 = 1 << 1
)

// node is the volatile representation of one key/item pair. mtx is locked
// hand-over-hand during insert/remove; marked records logical deletion and
// is only written while mtx is held. Contains and Keys read marked and
// next without taking mtx.
type node struct {
	mtx sync.Mutex

	key  int64
	item int64

	validBits int32
	next      *node
	marked    bool

	addr durableset.Addr

	insertFlushed bool
	deleteFlushed bool
}
