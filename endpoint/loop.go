package endpoint

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"net"
	"sync"
	"time"

	"github.com/caozhiyi/quicx-go/cidreg"
	"github.com/caozhiyi/quicx-go/conn"
	"github.com/caozhiyi/quicx-go/metrics"
	"github.com/caozhiyi/quicx-go/netdrv"
	"github.com/caozhiyi/quicx-go/packet"
	"github.com/caozhiyi/quicx-go/qcontext"
)

const (
	maxDatagramsPerWakeup = 64
	readBufferSize        = 65537
	defaultWaitTimeoutMS  = 1000
)

// Loop is one event-loop worker: it owns zero or more UDP sockets
// registered with its Driver, a shard of this endpoint's connections
// keyed by connection ID, and a task queue other loops use to hand it
// work. A cross-thread wake enqueues onto the owning loop's task queue
// and wakes its event driver.
type Loop struct {
	ctx    context.Context
	id     int
	cfg    Config
	driver netdrv.Driver

	socks   map[netdrv.Token]net.PacketConn
	nextTok netdrv.Token

	cids     *cidreg.Registry[*session]
	sessions map[*conn.Conn]*session

	tasks chan func()
	done  chan struct{}

	shards []*Loop // the full ring; set once by Endpoint.New before any loop runs

	acceptorFor     *tls.Config // non-nil once bindListener has run on this loop
	acceptorNewSink func(remote net.Addr, localCID []byte) conn.EventSink

	nextWaitTimeoutMS int // recomputed each iteration from the soonest owned connection timer

	startOnce sync.Once
}

func newLoop(ctx context.Context, id int, cfg Config, driver netdrv.Driver, secret [32]byte) *Loop {
	return &Loop{
		ctx:               ctx,
		id:                id,
		cfg:               cfg,
		driver:            driver,
		socks:             map[netdrv.Token]net.PacketConn{},
		cids:              cidreg.New[*session](secret, cfg.ShortCIDLen),
		sessions:          map[*conn.Conn]*session{},
		tasks:             make(chan func(), 1024),
		done:              make(chan struct{}),
		nextWaitTimeoutMS: defaultWaitTimeoutMS,
	}
}

func (l *Loop) logger() qcontext.Logger { return qcontext.GetLogger(l.ctx) }

// bindListener registers sock with this loop (the acceptor) and records
// the TLS config and EventSink factory new server-side connections should
// use.
func (l *Loop) bindListener(sock net.PacketConn, tlsConfig *tls.Config, newSink func(remote net.Addr, localCID []byte) conn.EventSink) {
	if err := l.driver.Init(); err != nil {
		l.logger().Errorf("endpoint: loop %d driver init failed: %v", l.id, err)
		return
	}
	tok := l.nextTok
	l.nextTok++
	l.socks[tok] = sock
	l.acceptorFor = tlsConfig
	l.acceptorNewSink = newSink
	if err := l.driver.AddFD(sock, netdrv.EventReadable, tok); err != nil {
		l.logger().Errorf("endpoint: loop %d AddFD failed: %v", l.id, err)
	}
}

// adoptDialedSession registers a freshly dialed client session on its own
// loop, including binding its private socket to that same loop's driver:
// a dialed connection's socket is never shared, so no cross-loop hop is
// needed for its I/O.
func (l *Loop) adoptDialedSession(s *session) {
	s.sockLoop = l
	if err := l.driver.Init(); err != nil {
		l.logger().Errorf("endpoint: loop %d driver init failed: %v", l.id, err)
	}
	tok := l.nextTok
	l.nextTok++
	l.socks[tok] = s.sock
	l.driver.AddFD(s.sock, netdrv.EventReadable, tok)

	l.sessions[s.conn] = s
	l.cids.Register(s.localCID, s)
}

// Run is the event loop body: wait for readiness or a wake, drain ready
// sockets, drain the task queue, run due timers, then loop. Suspension
// points only ever occur at loop boundaries.
func (l *Loop) Run() {
	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-l.done:
			l.driver.Close()
			return
		default:
		}

		events, err := l.driver.Wait(l.nextWaitTimeoutMS)
		if err != nil {
			l.logger().Errorf("endpoint: loop %d driver wait failed: %v", l.id, err)
			return
		}
		for _, ev := range events {
			if ev.Events&netdrv.EventReadable == 0 {
				continue
			}
			if sock, ok := l.socks[ev.Token]; ok {
				l.drainSocket(sock, buf)
			}
		}

		l.drainTasks()
		l.nextWaitTimeoutMS = l.runTimersAndFlush(time.Now())
	}
}

// start launches Run on its own goroutine at most once, since a loop may
// be handed a socket by both Listen and Dial over its lifetime.
func (l *Loop) start() {
	l.startOnce.Do(func() { go l.Run() })
}

func (l *Loop) stop() {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	l.driver.Wake()
}

// drainSocket reads up to maxDatagramsPerWakeup datagrams from sock and
// routes each to its owning shard, bounding one socket's influence on a
// single wakeup so other registered sockets are not starved.
func (l *Loop) drainSocket(sock net.PacketConn, buf []byte) {
	for i := 0; i < maxDatagramsPerWakeup; i++ {
		n, remote, err := sock.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return
			}
			return
		}
		if n == 0 {
			continue
		}
		metrics.DatagramReceived()
		data := append([]byte(nil), buf[:n]...)
		owner := l.ownerFor(data)
		tlsCfg, newSink := l.acceptorFor, l.acceptorNewSink
		if owner == l {
			l.handleAcceptedDatagram(l, sock, remote, data, tlsCfg, newSink)
		} else {
			owner.EnqueueTask(func() { owner.handleAcceptedDatagram(l, sock, remote, data, tlsCfg, newSink) })
		}
	}
}

// ownerFor computes the shard a datagram's DCID belongs to without
// touching any registry: cross-shard lookups are avoided by sending
// each datagram to the owning loop before CID resolution.
func (l *Loop) ownerFor(data []byte) *Loop {
	if len(data) == 0 {
		return l
	}
	var dcid []byte
	var err error
	if packet.IsLongHeader(data[0]) {
		dcid, err = packet.PeekLongHeaderDCID(data)
	} else {
		dcid, err = packet.PeekShortHeaderDCID(data, l.cfg.ShortCIDLen)
	}
	if err != nil || len(l.shards) == 0 {
		return l
	}
	return l.shards[shardIndex(dcid, len(l.shards))]
}

// handleAcceptedDatagram is the shard-owning loop's half of routing: demux
// by this shard's own registry, dispatch to an existing session, mint a
// new server connection for an Initial with an unrecognized DCID, or drop.
// sockLoop is whichever loop physically
// owns sock (itself, unless this datagram arrived via a cross-loop
// handoff from a shared listening socket's acceptor).
func (l *Loop) handleAcceptedDatagram(sockLoop *Loop, sock net.PacketConn, remote net.Addr, data []byte, tlsConfig *tls.Config, newSink func(net.Addr, []byte) conn.EventSink) {
	res := l.cids.Demux(data)
	switch res.Disposition {
	case cidreg.DispositionMatched:
		now := time.Now()
		if err := res.Handle.conn.OnDatagram(now, data); err != nil {
			l.logger().Debugf("endpoint: loop %d datagram rejected: %v", l.id, err)
		}
		l.flushSession(res.Handle, now)

	case cidreg.DispositionNewConnectionCandidate:
		if tlsConfig == nil {
			return
		}
		l.acceptNewConnection(sockLoop, sock, remote, data, res.DCID, tlsConfig, newSink)

	case cidreg.DispositionStatelessReset:
		metrics.DatagramDropped("stateless_reset")

	case cidreg.DispositionUnroutable:
		// Drop silently; generating our own stateless reset for an
		// unroutable datagram is left to a future iteration.
		metrics.DatagramDropped("unroutable")
	}
}

// acceptNewConnection mints a server-role Conn for a client's first
// Initial, registers it under its own freshly-generated CID, and feeds it
// the triggering datagram.
func (l *Loop) acceptNewConnection(sockLoop *Loop, sock net.PacketConn, remote net.Addr, data, clientDCID []byte, tlsConfig *tls.Config, newSink func(net.Addr, []byte) conn.EventSink) {
	_, peerSCID, err := packet.PeekLongHeaderCIDs(data)
	if err != nil {
		return
	}
	localCID, err := cidreg.Generate(l.cfg.ShortCIDLen)
	for err == nil && len(l.shards) > 0 && l.shards[shardIndex(localCID, len(l.shards))] != l {
		localCID, err = cidreg.Generate(l.cfg.ShortCIDLen)
	}
	if err != nil {
		l.logger().Errorf("endpoint: loop %d CID generation failed: %v", l.id, err)
		return
	}

	var sink conn.EventSink
	if newSink != nil {
		sink = newSink(remote, localCID)
	}

	qconn := tls.QUICServer(&tls.QUICConfig{TLSConfig: tlsConfig})
	c := conn.NewServer(l.ctx, l.cfg.Conn, qconn, localCID, clientDCID, peerSCID, sink)

	s := &session{conn: c, sockLoop: sockLoop, sock: sock, remote: remote, localCID: localCID}
	l.sessions[c] = s
	if err := l.cids.Register(localCID, s); err != nil {
		l.logger().Warnf("endpoint: loop %d CID registration failed: %v", l.id, err)
		return
	}

	if err := c.StartHandshake(); err != nil {
		l.logger().Warnf("endpoint: loop %d handshake start failed: %v", l.id, err)
		return
	}
	metrics.ConnectionOpened("server")
	now := time.Now()
	if err := c.OnDatagram(now, data); err != nil {
		l.logger().Debugf("endpoint: loop %d initial datagram rejected: %v", l.id, err)
	}
	l.flushSession(s, now)
}

// flushSession builds any datagrams the connection now has pending and
// hands them to whichever loop owns the physical socket.
func (l *Loop) flushSession(s *session, now time.Time) {
	datagrams := s.conn.BuildDatagrams(now)
	if len(datagrams) == 0 {
		return
	}
	if s.sockLoop == l {
		for _, d := range datagrams {
			if _, err := s.sock.WriteTo(d, s.remote); err != nil {
				l.logger().Warnf("endpoint: loop %d write failed: %v", l.id, err)
				continue
			}
			metrics.DatagramSent()
		}
		return
	}
	s.sockLoop.EnqueueTask(func() {
		for _, d := range datagrams {
			if _, err := s.sock.WriteTo(d, s.remote); err != nil {
				s.sockLoop.logger().Warnf("endpoint: loop %d write failed: %v", s.sockLoop.id, err)
				continue
			}
			metrics.DatagramSent()
		}
	})
}

// runTimersAndFlush drives every owned connection's timer wheel, flushes
// whatever that produced (retransmissions, PTO probes, the idle drain
// transition), and returns how long Wait may safely block before the
// soonest remaining deadline needs servicing.
func (l *Loop) runTimersAndFlush(now time.Time) int {
	soonest := time.Duration(-1)
	for c, s := range l.sessions {
		deadline, ok := c.Tick(now)
		l.flushSession(s, now)

		label := hex.EncodeToString(s.localCID)
		if c.State() == conn.StateClosed {
			metrics.ForgetConn(label)
			metrics.ConnectionClosed(roleLabel(c))
			delete(l.sessions, c)
			l.cids.Retire(s.localCID)
			continue
		}

		stats := c.Stats()
		metrics.SampleConn(label, metrics.ConnStats{
			SmoothedRTTMillis: float64(stats.SmoothedRTT) / float64(time.Millisecond),
			Cwnd:              stats.Cwnd,
			BytesInFlight:     stats.BytesInFlight,
		})
		if !ok {
			continue
		}
		d := deadline.Sub(now)
		if d < 0 {
			d = 0
		}
		if soonest < 0 || d < soonest {
			soonest = d
		}
	}
	if soonest < 0 {
		return defaultWaitTimeoutMS
	}
	return int(soonest / time.Millisecond)
}

func roleLabel(c *conn.Conn) string {
	if c.Role() == conn.RoleClient {
		return "client"
	}
	return "server"
}

// EnqueueTask hands fn to this loop's task queue and wakes its driver,
// the only thread-safe entry point into a Loop besides stop. Wake is
// thread-safe; everything else is single-threaded on the owning loop.
func (l *Loop) EnqueueTask(fn func()) {
	select {
	case <-l.done:
		return
	default:
	}
	select {
	case l.tasks <- fn:
	case <-l.done:
		return
	}
	l.driver.Wake()
}

func (l *Loop) drainTasks() {
	for {
		select {
		case fn := <-l.tasks:
			fn()
		default:
			return
		}
	}
}
