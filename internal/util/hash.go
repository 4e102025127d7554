// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/twmb/murmur3"
)

// Murmur3 returns the 32-bit MurmurHash3 (x86_32) of b under seed.
// It is the default content hash of the intern table.
func Murmur3(b []byte, seed uint32) uint32 {
	return murmur3.SeedSum32(seed, b)
}

// XXHash returns a 32-bit seeded hash derived from xxHash64.
// The seed is fed as a 4-byte little-endian prefix, and the 64-bit digest
// is folded (hi ^ lo) so that both halves feed shard and bucket selection.
func XXHash(b []byte, seed uint32) uint32 {
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], seed)

	d := xxhash.New()
	_, _ = d.Write(prefix[:])
	_, _ = d.Write(b)
	sum := d.Sum64()
	return uint32(sum>>32) ^ uint32(sum)
}
