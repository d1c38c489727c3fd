package sessioncache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShardedPutGet(t *testing.T) {
	c := NewSharded()
	ctx := context.Background()

	_, ok := c.Get(ctx, "example.com")
	require.False(t, ok)

	c.Put(ctx, "example.com", []byte("ticket-bytes"))
	v, ok := c.Get(ctx, "example.com")
	require.True(t, ok)
	require.Equal(t, []byte("ticket-bytes"), v)
}

func TestShardedOverwriteRotatesTicket(t *testing.T) {
	c := NewSharded()
	ctx := context.Background()
	c.Put(ctx, "k", []byte("first"))
	c.Put(ctx, "k", []byte("second"))

	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, []byte("second"), v)
}

func TestShardedDistributesAcrossShards(t *testing.T) {
	c := NewSharded()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		c.Put(ctx, string(rune('a'+i%26))+string(rune(i)), []byte("x"))
	}
	seen := map[*shard]bool{}
	for i := range c.shards {
		seen[c.shards[i]] = true
	}
	require.Len(t, seen, shardCount)

	nonEmpty := 0
	for i := range c.shards {
		if len(c.shards[i].data) > 0 {
			nonEmpty++
		}
	}
	require.Greater(t, nonEmpty, 1)
}
