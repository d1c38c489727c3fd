// Package config loads quicxd's process configuration from YAML: a
// versioned top-level struct with QUICXD_FIELD environment variable
// overrides, parsed with gopkg.in/yaml.v2.
package config

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"time"
)

// Configuration is quicxd's versioned process configuration.
//
// yaml field names avoid underscores, since underscore is the separator
// used when deriving environment variable names.
type Configuration struct {
	Version Version `yaml:"version"`

	Log Log `yaml:"log"`

	Endpoint Endpoint `yaml:"endpoint"`

	Transport Transport `yaml:"transport"`

	TLS TLS `yaml:"tls"`

	SessionCache SessionCache `yaml:"sessioncache,omitempty"`

	Events Events `yaml:"events,omitempty"`

	Metrics Metrics `yaml:"metrics,omitempty"`
}

// Log configures the logging subsystem.
type Log struct {
	Level Loglevel `yaml:"level,omitempty"`

	// Formatter overrides the default formatter. Options are "text" and
	// "json".
	Formatter string `yaml:"formatter,omitempty"`

	Fields map[string]interface{} `yaml:"fields,omitempty"`

	ReportCaller bool `yaml:"reportcaller,omitempty"`
}

// Endpoint configures the event-loop runtime and the socket it binds.
type Endpoint struct {
	// Addr is the UDP address to listen on, e.g. "0.0.0.0:4433".
	Addr string `yaml:"addr"`

	// NumLoops is the fixed worker-loop count.
	NumLoops int `yaml:"numloops,omitempty"`

	// ShortCIDLen is the length, in bytes, of connection IDs this
	// endpoint mints for its own short-header packets.
	ShortCIDLen int `yaml:"shortcidlen,omitempty"`
}

// Transport mirrors conn.Config: the transport parameters this endpoint
// advertises to peers.
type Transport struct {
	MaxIdleTimeout time.Duration `yaml:"maxidletimeout,omitempty"`

	InitialMaxData                 uint64 `yaml:"initialmaxdata,omitempty"`
	InitialMaxStreamDataBidiLocal  uint64 `yaml:"initialmaxstreamdatabidilocal,omitempty"`
	InitialMaxStreamDataBidiRemote uint64 `yaml:"initialmaxstreamdatabidiremote,omitempty"`
	InitialMaxStreamDataUni        uint64 `yaml:"initialmaxstreamdatauni,omitempty"`
	InitialMaxStreamsBidi          uint64 `yaml:"initialmaxstreamsbidi,omitempty"`
	InitialMaxStreamsUni           uint64 `yaml:"initialmaxstreamsuni,omitempty"`

	AckDelayExponent        uint8         `yaml:"ackdelayexponent,omitempty"`
	MaxAckDelay             time.Duration `yaml:"maxackdelay,omitempty"`
	ActiveConnectionIDLimit uint64        `yaml:"activeconnectionidlimit,omitempty"`
	DisableActiveMigration  bool          `yaml:"disableactivemigration,omitempty"`
	InitialRTT              time.Duration `yaml:"initialrtt,omitempty"`
}

// TLS configures the certificate quicxd presents to clients.
type TLS struct {
	CertFile string `yaml:"certfile,omitempty"`
	KeyFile  string `yaml:"keyfile,omitempty"`
}

// SessionCache configures the 0-RTT/session-resumption cache backend.
type SessionCache struct {
	// Backend is "memory" (the default) or "redis".
	Backend string `yaml:"backend,omitempty"`

	Redis RedisSessionCache `yaml:"redis,omitempty"`
}

// RedisSessionCache configures the redis-backed session cache, via
// gomodule/redigo the same way sessioncache.Redis already does.
type RedisSessionCache struct {
	Addr   string        `yaml:"addr,omitempty"`
	Prefix string        `yaml:"prefix,omitempty"`
	TTL    time.Duration `yaml:"ttl,omitempty"`
}

// Events configures where connection lifecycle events (stream opened,
// connection closed, key update) are published.
type Events struct {
	// Sink is "discard" (the default) or "http".
	Sink string `yaml:"sink,omitempty"`

	HTTP HTTPEventSink `yaml:"http,omitempty"`
}

// HTTPEventSink configures a webhook-style event destination.
type HTTPEventSink struct {
	URL     string        `yaml:"url,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Metrics configures the Prometheus-compatible metrics listener.
type Metrics struct {
	Addr string `yaml:"addr,omitempty"`
}

type v0_1Configuration Configuration

// Parse reads a YAML configuration document from rd and applies quicxd's
// defaults for anything left unset.
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	p := NewParser("quicxd", []VersionedParseInfo{
		{
			Version: MajorMinorVersion(0, 1),
			ParseAs: reflect.TypeOf(v0_1Configuration{}),
			ConversionFunc: func(c interface{}) (interface{}, error) {
				v0_1, ok := c.(*v0_1Configuration)
				if !ok {
					return nil, fmt.Errorf("expected *v0_1Configuration, received %#v", c)
				}
				applyDefaults((*Configuration)(v0_1))
				if v0_1.Endpoint.Addr == "" {
					return nil, errors.New("config: endpoint.addr is required")
				}
				return (*Configuration)(v0_1), nil
			},
		},
	})

	cfg := new(Configuration)
	if err := p.Parse(in, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(c *Configuration) {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Formatter == "" {
		c.Log.Formatter = "text"
	}
	if c.Endpoint.NumLoops <= 0 {
		c.Endpoint.NumLoops = 4
	}
	if c.Endpoint.ShortCIDLen <= 0 {
		c.Endpoint.ShortCIDLen = 8
	}
	if c.SessionCache.Backend == "" {
		c.SessionCache.Backend = "memory"
	}
	if c.Events.Sink == "" {
		c.Events.Sink = "discard"
	}
}
