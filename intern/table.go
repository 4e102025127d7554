package intern

import (
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/IvanBrykalov/internslice/internal/util"
)

// Table is a sharded intern table for immutable byte sequences.
// All methods are safe for concurrent use by multiple goroutines.
//
// A Table is meant to be built once per process (New), passed to whatever
// needs interning, and torn down with Shutdown.
type Table struct {
	shards []*shard
	shift  uint // log2(len(shards))
	seed   uint32
	hash   HashFunc
	closed atomic.Bool

	// static maps registered content to its index in statics.
	static  map[string]int
	statics [][]byte

	opt Options

	_    util.CacheLinePad
	live util.PaddedAtomicInt64 // entries across all shards
}

// ShardStats is a point-in-time view of one shard.
type ShardStats struct {
	Count    int   // live entries
	Capacity int   // bucket array length
	Hits     int64 // Intern calls answered by an existing entry
	Misses   int64 // Intern calls that created an entry
}

// Placement reports where content hashes to.
type Placement struct {
	Hash   uint32
	Shard  int
	Bucket int // under the shard's current capacity
}

// New builds a Table with the provided Options.
// Defaults:
//   - Shards <= 0          -> DefaultShards, rounded up to the next power of two
//   - InitialCapacity <= 0 -> DefaultInitialCapacity, rounded up likewise
//   - nil Seed             -> low 32 bits of the clock's nanoseconds
//   - nil Hash             -> Murmur3
func New(opt Options) *Table {
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = NopLogger{}
	}
	if opt.Hash == nil {
		opt.Hash = Murmur3
	}

	sh := opt.Shards
	if sh <= 0 {
		sh = DefaultShards
	}
	capacity := opt.InitialCapacity
	if capacity <= 0 {
		capacity = DefaultInitialCapacity
	}
	if !util.IsPowerOfTwo(uint64(sh)) || !util.IsPowerOfTwo(uint64(capacity)) {
		opt.Logger.Debug("intern.rounded_up", Fields{"shards": sh, "capacity": capacity})
		sh = int(util.NextPow2(uint64(sh)))
		capacity = int(util.NextPow2(uint64(capacity)))
	}

	t := &Table{
		shift: util.Log2(uint64(sh)),
		seed:  seedFrom(opt),
		hash:  opt.Hash,
		opt:   opt,
	}
	t.shards = make([]*shard, sh)
	for i := range t.shards {
		t.shards[i] = newShard(i, t.shift, capacity, t)
	}

	if len(opt.Static) > 0 {
		t.static = make(map[string]int, len(opt.Static))
		for _, b := range opt.Static {
			k := string(b)
			if _, dup := t.static[k]; dup {
				continue
			}
			t.static[k] = len(t.statics)
			t.statics = append(t.statics, []byte(k))
		}
	}

	opt.Logger.Debug("intern.init", Fields{
		"shards":      sh,
		"capacity":    capacity,
		"forced_seed": opt.Seed != nil,
		"static":      len(t.statics),
	})
	return t
}

func seedFrom(opt Options) uint32 {
	if opt.Seed != nil {
		return *opt.Seed
	}
	now := time.Now().UnixNano()
	if opt.Clock != nil {
		now = opt.Clock.NowUnixNano()
	}
	return uint32(now)
}

// Intern returns a handle to the deduplicated copy of b. b is copied if a
// new entry has to be created; the caller keeps ownership of b.
// Zero-length input is valid. The handle must be Released exactly once.
func (t *Table) Intern(b []byte) Slice { return t.intern(b, false) }

// InternOwned is Intern for a buffer the caller hands over: if a new entry
// is created it adopts b without copying, so b must not be modified afterwards.
func (t *Table) InternOwned(b []byte) Slice { return t.intern(b, true) }

// InternString interns the bytes of s.
func (t *Table) InternString(s string) Slice {
	return t.intern(unsafe.Slice(unsafe.StringData(s), len(s)), false)
}

// InternSlice interns an existing buffer value:
//   - static slices are returned as is;
//   - slices already interned in t gain a reference (no lookup, no copy);
//   - anything else is interned by content.
func (t *Table) InternSlice(s Slice) Slice {
	if t.closed.Load() {
		panic(ErrClosed)
	}
	switch s.kind {
	case KindStatic:
		return s
	case KindInterned:
		if s.e.sh.tab == t {
			return s.Ref()
		}
	}
	return t.intern(s.Bytes(), false)
}

func (t *Table) intern(b []byte, owned bool) Slice {
	if t.closed.Load() {
		panic(ErrClosed)
	}
	if t.static != nil {
		if i, ok := t.static[string(b)]; ok {
			return StaticSlice(t.statics[i])
		}
	}
	h := t.hash(b, t.seed)
	e := t.shards[util.ShardIndex(h, len(t.shards))].findOrCreate(h, b, owned)
	return Slice{kind: KindInterned, e: e}
}

// Hash returns the table's hash of b (same function and seed as Intern).
func (t *Table) Hash(b []byte) uint32 { return t.hash(b, t.seed) }

// HashSlice is Hash for a Slice, reusing the stored hash of entries
// interned in t.
func (t *Table) HashSlice(s Slice) uint32 {
	if s.kind == KindInterned && s.e.sh.tab == t {
		return s.e.hash
	}
	return t.Hash(s.Bytes())
}

// Seed returns the hash seed chosen at construction.
func (t *Table) Seed() uint32 { return t.seed }

// Locate reports the shard and bucket b maps to right now.
// The bucket changes when the shard grows; the shard never does.
func (t *Table) Locate(b []byte) Placement {
	h := t.Hash(b)
	i := util.ShardIndex(h, len(t.shards))
	s := t.shards[i]
	s.mu.Lock()
	capacity := len(s.buckets)
	s.mu.Unlock()
	p := Placement{Hash: h, Shard: i, Bucket: -1}
	if capacity > 0 {
		p.Bucket = util.BucketIndex(h, t.shift, capacity)
	}
	return p
}

// Len returns the number of live entries across all shards.
func (t *Table) Len() int {
	return int(t.live.Load())
}

// Stats returns one ShardStats per shard, indexed by shard id.
func (t *Table) Stats() []ShardStats {
	out := make([]ShardStats, len(t.shards))
	for i, s := range t.shards {
		out[i] = s.stats()
	}
	return out
}

// Shutdown retires every shard. Entries still referenced are logged
// (one warning per shard, one debug record with a content dump per entry)
// and returned as a *LeakError. With Options.AbortOnLeaks the error is
// raised via panic instead. Calling Shutdown twice returns ErrClosed.
//
// Releasing a leaked handle after Shutdown is harmless; interning is not
// and panics with ErrClosed.
func (t *Table) Shutdown() error {
	if !t.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	var leaks []Leak
	for _, s := range t.shards {
		leaks = s.retire(leaks)
	}
	t.opt.Metrics.Leak(len(leaks))
	if len(leaks) == 0 {
		return nil
	}

	err := &LeakError{Leaks: leaks}
	if t.opt.AbortOnLeaks {
		t.opt.Logger.Error("intern.abort_on_leaks", Fields{"leaked": len(leaks)})
		panic(err)
	}
	return err
}
