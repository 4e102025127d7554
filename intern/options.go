package intern

import "github.com/IvanBrykalov/internslice/internal/util"

const (
	// DefaultShards is the shard count used when Options.Shards <= 0.
	DefaultShards = 32
	// DefaultInitialCapacity is the initial bucket count of every shard.
	DefaultInitialCapacity = 8
)

// HashFunc hashes content under a seed. It must be pure: the same bytes
// and seed always produce the same value.
type HashFunc func(b []byte, seed uint32) uint32

// Murmur3 is the default HashFunc (MurmurHash3 x86_32).
func Murmur3(b []byte, seed uint32) uint32 { return util.Murmur3(b, seed) }

// XXHash is an alternative HashFunc built on xxHash64, folded to 32 bits.
func XXHash(b []byte, seed uint32) uint32 { return util.XXHash(b, seed) }

// Metrics exposes table-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
// Hooks may be called while a shard lock is held; keep them cheap.
type Metrics interface {
	// Hit is called when Intern returns an existing entry.
	Hit()
	// Miss is called when Intern creates a new entry. Miss and Release pair
	// up per entry; shards call them independently and in no global order,
	// so a live count is kept as +1/-1 deltas.
	Miss()
	// Release is called when an entry is destroyed (last reference dropped).
	Release()
	// Grow is called after a shard doubles its bucket array.
	Grow(capacity int)
	// Leak reports the number of entries still alive at Shutdown.
	Leak(entries int)
}

// Clock provides time in UnixNano. The table only reads it once, to
// derive the hash seed when none is forced.
type Clock interface{ NowUnixNano() int64 }

// Options configures a Table. Zero values are safe;
// defaults are applied in New():
//   - Shards <= 0          => DefaultShards (rounded up to a power of two)
//   - InitialCapacity <= 0 => DefaultInitialCapacity (rounded up to a power of two)
//   - nil Seed             => derived from Clock
//   - nil Hash             => Murmur3
//   - nil Metrics          => NoopMetrics
//   - nil Logger           => NopLogger
type Options struct {
	// Shards is the number of independently locked partitions.
	Shards int

	// InitialCapacity is the bucket count each shard starts with.
	// Shards double their capacity when they hold more than 2*capacity entries.
	InitialCapacity int

	// Seed forces the hash seed (deterministic tests, reproducible layouts).
	// Nil derives the seed from Clock at construction time.
	Seed *uint32

	// Clock overrides the time source used to derive the seed. Nil => time.Now().
	Clock Clock

	// Hash is the content hash. Nil => Murmur3.
	Hash HashFunc

	// Static registers well-known contents. Interning any of them returns a
	// KindStatic Slice that is never refcounted and never enters the shards.
	Static [][]byte

	// AbortOnLeaks makes Shutdown panic with a *LeakError when entries are
	// still referenced. The default only logs them and returns the error.
	AbortOnLeaks bool

	Metrics Metrics
	Logger  Logger
}

// Seed returns a pointer to v, for use as Options.Seed.
func Seed(v uint32) *uint32 { return &v }
