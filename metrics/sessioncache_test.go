package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caozhiyi/quicx-go/sessioncache"
)

func TestInstrumentSessionCacheDelegatesAndTimes(t *testing.T) {
	c := InstrumentSessionCache(sessioncache.NewSharded())

	_, ok := c.Get(context.Background(), "missing")
	require.False(t, ok)

	c.Put(context.Background(), "key", []byte("ticket"))
	v, ok := c.Get(context.Background(), "key")
	require.True(t, ok)
	require.Equal(t, []byte("ticket"), v)
}
