// Package intern deduplicates immutable byte sequences: identical content
// is stored once and shared by reference count instead of being copied.
// It targets values that repeat across messages, such as protocol metadata
// keys and values.
//
// Design
//
//   - Sharding: the table is split into a fixed, power-of-two number of
//     shards (32 by default), each a chained hash table behind its own
//     sync.Mutex. The low bits of the 32-bit content hash pick the shard;
//     the bits above them pick the bucket inside the shard. Growing one
//     shard never moves entries of another, and no call ever holds two
//     shard locks.
//
//   - Lookup-or-create: Intern hashes the content (Murmur3 by default,
//     seeded once per Table), locks the shard, walks the bucket comparing
//     hash then bytes, and on a match takes a reference with a CAS-based
//     increment-if-nonzero. Otherwise it links a new entry holding one
//     reference at the head of the bucket.
//
//   - Release: reference drops are plain atomic decrements. Only the
//     transition to zero takes the shard lock, to unlink the entry. An
//     entry at zero is never handed out again: a concurrent Intern of the
//     same content fails the increment and creates a fresh entry.
//
//   - Growth: a shard doubles its bucket array once it holds more than
//     twice as many entries as buckets. It never shrinks.
//
//   - Kinds: a Slice is inline (small private copy), static (registered
//     via Options.Static, returned by Intern without touching the shards)
//     or interned. Release is a no-op for the first two.
//
//   - Shutdown: Table.Shutdown retires every shard and reports entries
//     that are still referenced as leaks: logged, returned as *LeakError,
//     or raised via panic when Options.AbortOnLeaks is set.
//
// Basic usage
//
//	t := intern.New(intern.Options{})
//	defer func() { _ = t.Shutdown() }()
//
//	a := t.InternString("content-type")
//	b := t.Intern([]byte("content-type"))
//	_ = a.Same(b) // true: one entry, two references
//	a.Release()
//	b.Release()
//
// Deterministic layout (tests)
//
//	t := intern.New(intern.Options{Seed: intern.Seed(42)})
//	p := t.Locate([]byte("grpc-status")) // same shard/bucket on every run
//
// Exporting metrics
//
//	m := prom.New(nil, "intern", "metadata", nil) // implements Metrics
//	t := intern.New(intern.Options{Metrics: m})
package intern
