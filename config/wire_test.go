package config

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionCacheForDefaultsToSharded(t *testing.T) {
	cfg, err := Parse(strings.NewReader(minimalYAML))
	require.NoError(t, err)
	c := cfg.SessionCacheFor()

	c.Put(context.Background(), "key", []byte("ticket"))
	v, ok := c.Get(context.Background(), "key")
	require.True(t, ok)
	require.Equal(t, []byte("ticket"), v)
}

func TestSessionCacheForRedisBackend(t *testing.T) {
	const yaml = `
version: 0.1
endpoint:
  addr: x
sessioncache:
  backend: redis
  redis:
    addr: localhost:6379
`
	cfg, err := Parse(strings.NewReader(yaml))
	require.NoError(t, err)
	c := cfg.SessionCacheFor()
	require.NotNil(t, c)
}
