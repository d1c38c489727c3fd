package config

import (
	"github.com/caozhiyi/quicx-go/conn"
	"github.com/caozhiyi/quicx-go/endpoint"
	"github.com/caozhiyi/quicx-go/metrics"
	"github.com/caozhiyi/quicx-go/sessioncache"
)

// ConnConfig converts the parsed Transport section into conn.Config,
// falling back to conn.DefaultConfig for anything left at its zero value.
func (c *Configuration) ConnConfig() conn.Config {
	d := conn.DefaultConfig()
	t := c.Transport

	cfg := d
	if t.MaxIdleTimeout > 0 {
		cfg.MaxIdleTimeout = t.MaxIdleTimeout
	}
	if t.InitialMaxData > 0 {
		cfg.InitialMaxData = t.InitialMaxData
	}
	if t.InitialMaxStreamDataBidiLocal > 0 {
		cfg.InitialMaxStreamDataBidiLocal = t.InitialMaxStreamDataBidiLocal
	}
	if t.InitialMaxStreamDataBidiRemote > 0 {
		cfg.InitialMaxStreamDataBidiRemote = t.InitialMaxStreamDataBidiRemote
	}
	if t.InitialMaxStreamDataUni > 0 {
		cfg.InitialMaxStreamDataUni = t.InitialMaxStreamDataUni
	}
	if t.InitialMaxStreamsBidi > 0 {
		cfg.InitialMaxStreamsBidi = t.InitialMaxStreamsBidi
	}
	if t.InitialMaxStreamsUni > 0 {
		cfg.InitialMaxStreamsUni = t.InitialMaxStreamsUni
	}
	if t.AckDelayExponent > 0 {
		cfg.AckDelayExponent = t.AckDelayExponent
	}
	if t.MaxAckDelay > 0 {
		cfg.MaxAckDelay = t.MaxAckDelay
	}
	if t.ActiveConnectionIDLimit > 0 {
		cfg.ActiveConnectionIDLimit = t.ActiveConnectionIDLimit
	}
	if t.InitialRTT > 0 {
		cfg.InitialRTT = t.InitialRTT
	}
	cfg.DisableActiveMigration = t.DisableActiveMigration
	return cfg
}

// EndpointConfig converts the parsed Endpoint section into endpoint.Config.
func (c *Configuration) EndpointConfig() endpoint.Config {
	return endpoint.Config{
		NumLoops:    c.Endpoint.NumLoops,
		ShortCIDLen: c.Endpoint.ShortCIDLen,
		Conn:        c.ConnConfig(),
	}
}

// SessionCacheFor builds the TLS session cache named by SessionCache.Backend,
// instrumented with per-operation latency timers.
func (c *Configuration) SessionCacheFor() sessioncache.Cache {
	var cache sessioncache.Cache
	if c.SessionCache.Backend == "redis" {
		prefix := c.SessionCache.Redis.Prefix
		if prefix == "" {
			prefix = "quicx:session:"
		}
		cache = sessioncache.NewRedis(c.SessionCache.Redis.Addr, prefix, c.SessionCache.Redis.TTL)
	} else {
		cache = sessioncache.NewSharded()
	}
	return metrics.InstrumentSessionCache(cache)
}
