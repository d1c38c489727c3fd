// Package sessioncache stores TLS 1.3 session tickets / 0-RTT resumption
// secrets (tlsadapter does not consult it): a concurrent map with per-shard locks,
// shared read-mostly across the endpoint runtime's loops. The in-process
// Sharded cache below is the default; Redis is the multi-process option.
package sessioncache

import (
	"context"
	"hash/fnv"
	"sync"
)

// Cache stores and retrieves opaque session-ticket blobs keyed by server
// name. Put overwrites a prior entry for the same key (ticket rotation).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, session []byte)
}

const shardCount = 16

type shard struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// Sharded is the default in-process cache: fixed shard count, one RWMutex
// per shard, so ticket issuance from one loop never blocks a lookup
// driven by a different loop's connections. Writes are infrequent
// relative to reads, so the RWMutex split pays for itself.
type Sharded struct {
	shards [shardCount]*shard
}

// NewSharded returns an empty Sharded cache.
func NewSharded() *Sharded {
	s := &Sharded{}
	for i := range s.shards {
		s.shards[i] = &shard{data: map[string][]byte{}}
	}
	return s
}

func (s *Sharded) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

func (s *Sharded) Get(_ context.Context, key string) ([]byte, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	v, ok := sh.data[key]
	return v, ok
}

func (s *Sharded) Put(_ context.Context, key string, session []byte) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.data[key] = session
}
