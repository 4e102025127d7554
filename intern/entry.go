package intern

import "sync/atomic"

// entry is one interned byte sequence. hash and data never change after
// creation; refs is the only field touched outside the shard lock.
type entry struct {
	hash uint32
	refs atomic.Int32
	data []byte

	// next links the bucket chain. Guarded by sh.mu.
	next *entry

	// sh is the shard the entry lives in (non-owning back-pointer).
	sh *shard
}

// tryRef increments refs unless it already reached zero.
// An entry at zero is waiting on sh.mu to unlink itself and must never be
// handed out again.
func (e *entry) tryRef() bool {
	for {
		n := e.refs.Load()
		if n <= 0 {
			return false
		}
		if e.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// ref adds a reference on behalf of a caller that already holds one.
func (e *entry) ref() {
	if e.refs.Add(1) <= 1 {
		panic(corrupt("ref on released entry (hash %#x)", e.hash))
	}
}

// unref drops a reference. The 1->0 transition unlinks the entry.
func (e *entry) unref() {
	switch n := e.refs.Add(-1); {
	case n > 0:
	case n == 0:
		e.sh.unlink(e)
	default:
		panic(corrupt("entry (hash %#x) released %d time(s) too often", e.hash, -n))
	}
}
