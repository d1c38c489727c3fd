package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const minimalYAML = `
version: 0.1
endpoint:
  addr: 0.0.0.0:4433
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(minimalYAML))
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:4433", cfg.Endpoint.Addr)
	require.Equal(t, 4, cfg.Endpoint.NumLoops)
	require.Equal(t, 8, cfg.Endpoint.ShortCIDLen)
	require.Equal(t, Loglevel("info"), cfg.Log.Level)
	require.Equal(t, "text", cfg.Log.Formatter)
	require.Equal(t, "memory", cfg.SessionCache.Backend)
	require.Equal(t, "discard", cfg.Events.Sink)
}

func TestParseRejectsMissingEndpointAddr(t *testing.T) {
	_, err := Parse(strings.NewReader("version: 0.1\n"))
	require.Error(t, err)
}

func TestParseRejectsUnknownVersion(t *testing.T) {
	_, err := Parse(strings.NewReader("version: 9.9\nendpoint:\n  addr: x\n"))
	require.Error(t, err)
}

func TestParseHonorsExplicitFields(t *testing.T) {
	const yaml = `
version: 0.1
log:
  level: debug
  formatter: json
endpoint:
  addr: 127.0.0.1:9999
  numloops: 2
  shortcidlen: 4
transport:
  maxidletimeout: 10s
sessioncache:
  backend: redis
  redis:
    addr: localhost:6379
`
	cfg, err := Parse(strings.NewReader(yaml))
	require.NoError(t, err)
	require.Equal(t, Loglevel("debug"), cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Formatter)
	require.Equal(t, 2, cfg.Endpoint.NumLoops)
	require.Equal(t, 4, cfg.Endpoint.ShortCIDLen)
	require.Equal(t, 10*time.Second, cfg.Transport.MaxIdleTimeout)
	require.Equal(t, "redis", cfg.SessionCache.Backend)
	require.Equal(t, "localhost:6379", cfg.SessionCache.Redis.Addr)
}

func TestConnConfigFallsBackToDefaultsForZeroFields(t *testing.T) {
	cfg, err := Parse(strings.NewReader(minimalYAML))
	require.NoError(t, err)
	cc := cfg.ConnConfig()
	require.Equal(t, 30*time.Second, cc.MaxIdleTimeout)
	require.NotZero(t, cc.InitialMaxData)
}

func TestConnConfigHonorsExplicitTransportOverrides(t *testing.T) {
	const yaml = `
version: 0.1
endpoint:
  addr: x
transport:
  maxidletimeout: 5s
  initialmaxdata: 99
  disableactivemigration: true
`
	cfg, err := Parse(strings.NewReader(yaml))
	require.NoError(t, err)
	cc := cfg.ConnConfig()
	require.Equal(t, 5*time.Second, cc.MaxIdleTimeout)
	require.Equal(t, uint64(99), cc.InitialMaxData)
	require.True(t, cc.DisableActiveMigration)
}

func TestEndpointConfigCarriesConnConfig(t *testing.T) {
	cfg, err := Parse(strings.NewReader(minimalYAML))
	require.NoError(t, err)
	ec := cfg.EndpointConfig()
	require.Equal(t, cfg.Endpoint.NumLoops, ec.NumLoops)
	require.Equal(t, cfg.Endpoint.ShortCIDLen, ec.ShortCIDLen)
	require.Equal(t, cfg.ConnConfig(), ec.Conn)
}

func TestLoglevelUnmarshalRejectsInvalidValue(t *testing.T) {
	_, err := Parse(strings.NewReader("version: 0.1\nendpoint:\n  addr: x\nlog:\n  level: noisy\n"))
	require.Error(t, err)
}

func TestLoglevelUnmarshalLowercases(t *testing.T) {
	cfg, err := Parse(strings.NewReader("version: 0.1\nendpoint:\n  addr: x\nlog:\n  level: WARN\n"))
	require.NoError(t, err)
	require.Equal(t, Loglevel("warn"), cfg.Log.Level)
}
