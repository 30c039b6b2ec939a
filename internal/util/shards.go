package util

import "runtime"

// MaxShards caps the automatic and the requested shard count.
const MaxShards = 256

// ReasonableShardCount picks a practical default shard count based on CPU
// parallelism: nextPow2(2*GOMAXPROCS), clamped to [1..MaxShards].
func ReasonableShardCount() int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	return ShardCount(p * 2)
}

// ShardCount normalizes a requested shard count: non-positive values pick the
// automatic default, everything else is rounded up to a power of two and
// clamped to MaxShards.
func ShardCount(n int) int {
	if n <= 0 {
		return ReasonableShardCount()
	}
	s := int(NextPow2(uint64(n)))
	if s > MaxShards {
		s = MaxShards
	}
	return s
}

// ShardIndex maps a 64-bit hash to a shard index. shards must be a power of
// two (see ShardCount).
func ShardIndex(hash uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	return int(hash & uint64(shards-1))
}
