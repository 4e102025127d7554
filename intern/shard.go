package intern

import (
	"bytes"
	"sync"

	"github.com/IvanBrykalov/internslice/internal/util"
)

// shard is an independent partition of the table: a chained hash table
// with its own lock. Entries are placed by the hash bits above the ones
// used for shard selection.
type shard struct {
	// ---- guarded by mu ----
	mu      sync.Mutex
	buckets []*entry // len is a power of two
	count   int      // entries reachable from buckets
	retired bool     // set by Shutdown; buckets is nil afterwards

	id    int
	shift uint // log2(shard count)
	tab   *Table

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
}

func newShard(id int, shift uint, capacity int, tab *Table) *shard {
	return &shard{
		buckets: make([]*entry, capacity),
		id:      id,
		shift:   shift,
		tab:     tab,
	}
}

// findOrCreate returns a referenced entry holding b, creating it if no live
// entry matches. With owned set, a new entry adopts b instead of copying it.
func (s *shard) findOrCreate(hash uint32, b []byte, owned bool) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retired {
		panic(ErrClosed)
	}
	idx := util.BucketIndex(hash, s.shift, len(s.buckets))
	if e := s.matchLocked(hash, idx, b); e != nil {
		s.hits.Add(1)
		s.tab.opt.Metrics.Hit()
		return e
	}
	e := s.insertLocked(hash, idx, b, owned)
	s.misses.Add(1)
	s.tab.opt.Metrics.Miss()
	return e
}

// unlink removes e from its chain once its last reference is gone.
func (s *shard) unlink(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retired {
		// Leaked entry released after Shutdown: the chains are gone already.
		return
	}
	idx := util.BucketIndex(e.hash, s.shift, len(s.buckets))
	prev := &s.buckets[idx]
	for *prev != e {
		if *prev == nil {
			panic(corrupt("entry (hash %#x) missing from shard %d bucket %d", e.hash, s.id, idx))
		}
		prev = &(*prev).next
	}
	*prev = e.next
	e.next = nil
	s.count--

	s.tab.live.Add(-1)
	s.tab.opt.Metrics.Release()
}

func (s *shard) stats() ShardStats {
	s.mu.Lock()
	st := ShardStats{Count: s.count, Capacity: len(s.buckets)}
	s.mu.Unlock()
	st.Hits = s.hits.Load()
	st.Misses = s.misses.Load()
	return st
}

// retire drops the bucket array and returns leaks appended with every entry
// still referenced.
func (s *shard) retire(leaks []Leak) []Leak {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.tab.opt.Logger
	n := len(leaks)
	for _, head := range s.buckets {
		for e := head; e != nil; e = e.next {
			refs := e.refs.Load()
			if refs <= 0 {
				// Released; its unlink is waiting for mu and becomes a no-op.
				continue
			}
			l := Leak{
				Shard: s.id,
				Hash:  e.hash,
				Refs:  refs,
				Len:   len(e.data),
				Dump:  Dump(e.data),
			}
			log.Debug("intern.leaked_entry", Fields{
				"shard": l.Shard,
				"hash":  l.Hash,
				"refs":  l.Refs,
				"dump":  l.Dump,
			})
			leaks = append(leaks, l)
		}
	}
	if len(leaks) > n {
		log.Warn("intern.leaked", Fields{"shard": s.id, "count": len(leaks) - n})
	}
	s.buckets = nil
	s.retired = true
	return leaks
}

// -------------------- internals (mu held) --------------------

// matchLocked looks for a live entry with the given content. Entries whose
// count already hit zero are skipped; the caller then creates a fresh one
// while the dying entry waits for mu to unlink itself.
func (s *shard) matchLocked(hash uint32, idx int, b []byte) *entry {
	for e := s.buckets[idx]; e != nil; e = e.next {
		if e.hash == hash && bytes.Equal(e.data, b) && e.tryRef() {
			return e
		}
	}
	return nil
}

// insertLocked links a new entry with one reference at the head of bucket idx.
func (s *shard) insertLocked(hash uint32, idx int, b []byte, owned bool) *entry {
	data := b
	if !owned {
		data = make([]byte, len(b))
		copy(data, b)
	}
	e := &entry{hash: hash, data: data, next: s.buckets[idx], sh: s}
	e.refs.Store(1)
	s.buckets[idx] = e
	s.count++

	s.tab.live.Add(1)

	if s.count > 2*len(s.buckets) {
		s.growLocked()
	}
	return e
}

// growLocked doubles the bucket array and relinks every entry by its
// stored hash. Only placement changes.
func (s *shard) growLocked() {
	capacity := 2 * len(s.buckets)
	buckets := make([]*entry, capacity)
	for _, head := range s.buckets {
		for e := head; e != nil; {
			next := e.next
			idx := util.BucketIndex(e.hash, s.shift, capacity)
			e.next = buckets[idx]
			buckets[idx] = e
			e = next
		}
	}
	s.buckets = buckets

	s.tab.opt.Metrics.Grow(capacity)
	s.tab.opt.Logger.Debug("intern.shard_grown", Fields{
		"shard":    s.id,
		"count":    s.count,
		"capacity": capacity,
	})
}
