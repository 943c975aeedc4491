package persist

import "sync/atomic"

// metricShard tracks one owner's counters, padded to a cache line so
// disjoint owners never false-share: each owner writes only its own cells,
// so indexing shards by owner avoids contention without any randomization.
type metricShard struct {
	flushes atomic.Int64
	length  atomic.Int64
	_       [48]byte
}

// Metrics is a per-owner sharded counter block. casRetries/casSuccesses
// are global: lock-free variants (link-free, SOFT) report through these;
// lock-based variants never retry a CAS so they leave them at zero.
type Metrics struct {
	shards     []metricShard
	casRetries atomic.Int64
	casSuccess atomic.Int64
}

func newMetrics(numOwners int) *Metrics {
	return &Metrics{shards: make([]metricShard, numOwners)}
}

// IncFlush records one flush (insert or delete) issued by owner.
func (m *Metrics) IncFlush(owner int) {
	if m == nil {
		return
	}
	m.shards[owner].flushes.Add(1)
}

// AddLen adjusts owner's live-item count by delta (+1 on a committed
// insert, -1 on a committed remove).
func (m *Metrics) AddLen(owner int, delta int64) {
	if m == nil {
		return
	}
	m.shards[owner].length.Add(delta)
}

// IncInsertCASRetry records one failed CAS attempt during a lock-free
// insert's retry loop.
func (m *Metrics) IncInsertCASRetry() {
	if m == nil {
		return
	}
	m.casRetries.Add(1)
}

// IncInsertCASSuccess records one winning CAS during a lock-free insert.
func (m *Metrics) IncInsertCASSuccess() {
	if m == nil {
		return
	}
	m.casSuccess.Add(1)
}

// TotalFlushes sums the per-owner flush counters.
func (m *Metrics) TotalFlushes() int64 {
	if m == nil {
		return 0
	}
	var total int64
	for i := range m.shards {
		total += m.shards[i].flushes.Load()
	}
	return total
}

// PerOwnerFlushes returns a snapshot of each owner's flush count.
func (m *Metrics) PerOwnerFlushes() []int64 {
	if m == nil {
		return nil
	}
	out := make([]int64, len(m.shards))
	for i := range m.shards {
		out[i] = m.shards[i].flushes.Load()
	}
	return out
}

// Len sums the per-owner live-item counters.
func (m *Metrics) Len() int64 {
	if m == nil {
		return 0
	}
	var total int64
	for i := range m.shards {
		total += m.shards[i].length.Load()
	}
	return total
}

// InsertCASStats returns the running totals of CAS retries and successes
// across every lock-free insert call.
func (m *Metrics) InsertCASStats() (retries, successes int64) {
	if m == nil {
		return 0, 0
	}
	return m.casRetries.Load(), m.casSuccess.Load()
}
