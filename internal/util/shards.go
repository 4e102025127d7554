package util

import (
	"math/bits"
	"runtime"
)

// ReasonableShardCount picks a practical shard count based on CPU
// parallelism. Heuristic: nextPow2(2*GOMAXPROCS), clamped to [1..256].
func ReasonableShardCount() int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	n := int(NextPow2(uint64(p * 2)))
	if n > 256 {
		n = 256
	}
	return n
}

// Log2 returns log2(x) for a power of two x.
func Log2(x uint64) uint {
	return uint(bits.TrailingZeros64(x))
}

// ShardIndex maps a 32-bit hash to a shard using its low bits.
// shards must be a power of two.
func ShardIndex(hash uint32, shards int) int {
	return int(hash & uint32(shards-1))
}

// BucketIndex maps a 32-bit hash to a bucket inside a shard, skipping the
// low shift bits already consumed by ShardIndex. capacity must be a power
// of two, so the mask equals (hash>>shift) % capacity.
func BucketIndex(hash uint32, shift uint, capacity int) int {
	return int((hash >> shift) & uint32(capacity-1))
}
