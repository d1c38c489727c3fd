package sessioncache

import (
	"context"
	"time"

	"github.com/caozhiyi/quicx-go/qcontext"
	"github.com/gomodule/redigo/redis"
)

// Redis is the multi-process backend: a shared session cache across
// endpoint-runtime processes, fronted by a redigo connection pool. Used
// when config.SessionCache.Backend == "redis" (SPEC_FULL ambient config).
type Redis struct {
	pool   *redis.Pool
	prefix string
	ttl    time.Duration
}

// NewRedis builds a Redis-backed cache pooling connections to addr.
func NewRedis(addr, prefix string, ttl time.Duration) *Redis {
	pool := &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 2 * time.Minute,
		Dial:        func() (redis.Conn, error) { return redis.Dial("tcp", addr) },
	}
	return &Redis{pool: pool, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(k string) string { return r.prefix + k }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		qcontext.GetLogger(ctx).Warnf("sessioncache: redis dial failed: %v", err)
		return nil, false
	}
	defer conn.Close()

	v, err := redis.Bytes(conn.Do("GET", r.key(key)))
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *Redis) Put(ctx context.Context, key string, session []byte) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		qcontext.GetLogger(ctx).Warnf("sessioncache: redis dial failed: %v", err)
		return
	}
	defer conn.Close()

	args := redis.Args{}.Add(r.key(key)).Add(session)
	if r.ttl > 0 {
		args = args.Add("EX", int(r.ttl.Seconds()))
	}
	if _, err := conn.Do("SET", args...); err != nil {
		qcontext.GetLogger(ctx).Warnf("sessioncache: redis SET failed: %v", err)
	}
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.pool.Close() }
