package endpoint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShardIndexIsDeterministic(t *testing.T) {
	cid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	a := shardIndex(cid, 4)
	b := shardIndex(cid, 4)
	require.Equal(t, a, b)
}

func TestShardIndexWithinBounds(t *testing.T) {
	for i := 0; i < 64; i++ {
		cid := []byte{byte(i), byte(i * 7), byte(i * 13)}
		idx := shardIndex(cid, 4)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 4)
	}
}

func TestShardIndexSpreadsAcrossShards(t *testing.T) {
	seen := map[int]bool{}
	for i := 0; i < 256; i++ {
		cid := []byte{byte(i), byte(i >> 8), 0xAA, 0xBB}
		seen[shardIndex(cid, 4)] = true
	}
	require.Len(t, seen, 4, "256 distinct CIDs over 4 shards should hit every shard at least once")
}
