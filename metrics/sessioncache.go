package metrics

import (
	"context"
	"time"

	"github.com/docker/go-metrics"

	"github.com/caozhiyi/quicx-go/sessioncache"
)

var cacheLatency = ConnectionNamespace.NewLabeledTimer("sessioncache_latency", "The time taken to service a session cache operation", "operation")

// instrumentedCache wraps a sessioncache.Cache with per-operation latency
// timers, the way registry/storage/cache/metrics wraps a
// BlobDescriptorCacheProvider.
type instrumentedCache struct {
	sessioncache.Cache
}

// InstrumentSessionCache returns c wrapped with Get/Put latency timers.
func InstrumentSessionCache(c sessioncache.Cache) sessioncache.Cache {
	return &instrumentedCache{c}
}

func (c *instrumentedCache) Get(ctx context.Context, key string) ([]byte, bool) {
	start := time.Now()
	v, ok := c.Cache.Get(ctx, key)
	cacheLatency.WithValues("Get").UpdateSince(start)
	return v, ok
}

func (c *instrumentedCache) Put(ctx context.Context, key string, session []byte) {
	start := time.Now()
	c.Cache.Put(ctx, key, session)
	cacheLatency.WithValues("Put").UpdateSince(start)
}
