// Package endpoint implements a fixed set of worker-thread event loops,
// each owning UDP sockets, a connection-ID shard, and a local timer
// wheel, with cross-loop task handoff for anything that must run on a
// connection's owning loop.
//
// An HTTP request/response server has no real analog for this kind of
// runtime, so the loop/shard/task-queue structure here is shaped after a
// classic reactor design: a driver posts readiness, a fixed number of
// loops each own a non-overlapping slice of connections, and everything
// that touches one connection's state runs on that connection's loop.
package endpoint

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"net"
	"time"

	"github.com/caozhiyi/quicx-go/cidreg"
	"github.com/caozhiyi/quicx-go/conn"
	"github.com/caozhiyi/quicx-go/metrics"
	"github.com/caozhiyi/quicx-go/netdrv"
	"github.com/caozhiyi/quicx-go/qcontext"
	"github.com/caozhiyi/quicx-go/qerrors"
)

// Config collects the runtime-wide settings the Endpoint surface needs
// beyond a single connection's transport parameters.
type Config struct {
	// NumLoops is the fixed worker count.
	NumLoops int
	// ShortCIDLen is the DCID length this endpoint assigns its own
	// short-header connection IDs; every loop must agree on it, since a
	// datagram's owning shard is computed before any per-connection
	// state is consulted.
	ShortCIDLen int
	Conn        conn.Config
}

// DefaultConfig mirrors conn.DefaultConfig with a small fixed worker pool.
func DefaultConfig() Config {
	return Config{
		NumLoops:    4,
		ShortCIDLen: 8,
		Conn:        conn.DefaultConfig(),
	}
}

// Endpoint owns a fixed ring of Loops and the listeners/dialers that feed
// them. It is the public listen/dial surface for the transport runtime.
type Endpoint struct {
	ctx   context.Context
	cfg   Config
	loops []*Loop
}

// New builds an Endpoint with cfg.NumLoops loops, each with its own
// driver instance (driverFactory lets tests substitute a mock netdrv.Driver).
func New(ctx context.Context, cfg Config, driverFactory func() netdrv.Driver) (*Endpoint, error) {
	if cfg.NumLoops < 1 {
		return nil, qerrors.New(qerrors.CodeProtocolViolation, "endpoint requires at least one loop")
	}
	if driverFactory == nil {
		driverFactory = func() netdrv.Driver { return netdrv.Default() }
	}

	e := &Endpoint{ctx: ctx, cfg: cfg}
	e.loops = make([]*Loop, cfg.NumLoops)
	for i := range e.loops {
		var secret [32]byte
		if _, err := rand.Read(secret[:]); err != nil {
			return nil, qerrors.Wrap(qerrors.CodeOutOfMemory, err)
		}
		e.loops[i] = newLoop(ctx, i, cfg, driverFactory(), secret)
	}
	for _, l := range e.loops {
		l.shards = e.loops
	}
	return e, nil
}

// Listen binds addr and starts serving new server-role connections, each
// configured from cfg.Conn (the Endpoint's transport parameters) and
// wired to a fresh EventSink from newSink. Returns once the socket is
// bound; serving runs on the loops' own goroutines until the Endpoint is
// closed.
func (e *Endpoint) Listen(addr string, tlsConfig *tls.Config, newSink func(remote net.Addr, localCID []byte) conn.EventSink) error {
	sock, err := net.ListenPacket("udp", addr)
	if err != nil {
		return qerrors.Wrap(qerrors.CodeSocketError, err)
	}

	acceptor := e.loops[0]
	acceptor.bindListener(sock, tlsConfig, newSink)
	e.logger().Infof("endpoint: listening on %s across %d loops", sock.LocalAddr(), len(e.loops))

	for _, l := range e.loops {
		l.start()
	}
	return nil
}

// Dial opens a client-role connection to addr. The returned Conn has
// already had StartHandshake called; the caller drives it forward purely
// by observing EventSink callbacks and calling Conn methods, same as any
// other connection on the loop that now owns it.
func (e *Endpoint) Dial(ctx context.Context, addr, serverName string, tlsConfig *tls.Config, sink conn.EventSink) (*conn.Conn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CodeSocketError, err)
	}
	sock, err := net.ListenPacket("udp", "0.0.0.0:0")
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CodeSocketError, err)
	}

	localCID, err := cidreg.Generate(e.cfg.ShortCIDLen)
	if err != nil {
		sock.Close()
		return nil, err
	}
	serverDCID, err := cidreg.Generate(e.cfg.ShortCIDLen)
	if err != nil {
		sock.Close()
		return nil, err
	}

	l := e.loops[shardIndex(localCID, len(e.loops))]
	qconn := tls.QUICClient(&tls.QUICConfig{TLSConfig: tlsClientConfigFor(tlsConfig, serverName)})
	c := conn.NewClient(ctx, e.cfg.Conn, qconn, localCID, serverDCID, sink)

	sess := &session{conn: c, sock: sock, remote: raddr, localCID: localCID}
	l.adoptDialedSession(sess)

	if err := c.StartHandshake(); err != nil {
		return nil, err
	}
	metrics.ConnectionOpened("client")

	l.start()
	l.EnqueueTask(func() { l.flushSession(sess, time.Now()) })
	return c, nil
}

// Close signals every loop to stop and closes its driver; in-flight
// connections are abandoned without a CONNECTION_CLOSE, matching an
// ungraceful process exit rather than a cooperative close.
func (e *Endpoint) Close() error {
	for _, l := range e.loops {
		l.stop()
	}
	return nil
}

func tlsClientConfigFor(base *tls.Config, serverName string) *tls.Config {
	cfg := base.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	cfg.ServerName = serverName
	return cfg
}

func (e *Endpoint) logger() qcontext.Logger { return qcontext.GetLogger(e.ctx) }
