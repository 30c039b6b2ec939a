package util

import (
	"testing"
)

func TestNextPow2(t *testing.T) {
	cases := []struct{ in, want uint64 }{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {17, 32}, {1 << 40, 1 << 40}, {1<<63 + 1, 1 << 63},
	}
	for _, c := range cases {
		if got := NextPow2(c.in); got != c.want {
			t.Errorf("NextPow2(%d)=%d, want %d", c.in, got, c.want)
		}
	}
}

func TestShardCount(t *testing.T) {
	for _, n := range []int{-1, 0, 1, 3, 64, 100, 1000} {
		got := ShardCount(n)
		if !IsPowerOfTwo(uint64(got)) || got > MaxShards {
			t.Fatalf("ShardCount(%d)=%d", n, got)
		}
	}
	if got := ShardCount(5); got != 8 {
		t.Fatalf("ShardCount(5)=%d, want 8", got)
	}
	if got := ShardCount(1000); got != MaxShards {
		t.Fatalf("ShardCount(1000)=%d, want %d", got, MaxShards)
	}
}

func TestShardIndex_Spread(t *testing.T) {
	const shards = 16
	seen := make(map[int]int)
	for i := 0; i < 1000; i++ {
		idx := ShardIndex(Fnv64a("asset/"+string(rune('a'+i%26))+string(rune('a'+i/26))), shards)
		if idx < 0 || idx >= shards {
			t.Fatalf("index %d out of range", idx)
		}
		seen[idx]++
	}
	if len(seen) < shards/2 {
		t.Fatalf("poor spread: %v", seen)
	}
}

func TestFnv64a_Known(t *testing.T) {
	// FNV-1a 64 of the empty string is the offset basis
	if Fnv64a("") != fnvOffset64 {
		t.Fatal("empty string hash mismatch")
	}
	if Fnv64a("a") != 0xaf63dc4c8601ec8c {
		t.Fatalf("Fnv64a(a)=%x", Fnv64a("a"))
	}
}
