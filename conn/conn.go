package conn

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/caozhiyi/quicx-go/congestion"
	"github.com/caozhiyi/quicx-go/flowcontrol"
	"github.com/caozhiyi/quicx-go/qcontext"
	"github.com/caozhiyi/quicx-go/qcrypto"
	"github.com/caozhiyi/quicx-go/qerrors"
	"github.com/caozhiyi/quicx-go/recovery"
	"github.com/caozhiyi/quicx-go/stream"
	"github.com/caozhiyi/quicx-go/timer"
	"github.com/caozhiyi/quicx-go/tlsadapter"
)

// Role identifies which side of the handshake this connection plays.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// Config collects the per-endpoint configuration options relevant to a
// single connection's initial transport parameters.
type Config struct {
	MaxIdleTimeout time.Duration

	InitialMaxData                 uint64
	InitialMaxStreamDataBidiLocal  uint64
	InitialMaxStreamDataBidiRemote uint64
	InitialMaxStreamDataUni        uint64
	InitialMaxStreamsBidi          uint64
	InitialMaxStreamsUni           uint64

	AckDelayExponent        uint8
	MaxAckDelay             time.Duration
	ActiveConnectionIDLimit uint64
	DisableActiveMigration  bool
	InitialRTT              time.Duration
}

// DefaultConfig returns this endpoint's documented default transport
// parameters.
func DefaultConfig() Config {
	return Config{
		MaxIdleTimeout:                 30 * time.Second,
		InitialMaxData:                 10 * 12 * 1024,
		InitialMaxStreamDataBidiLocal:  10 * 1200,
		InitialMaxStreamDataBidiRemote: 10 * 1200,
		InitialMaxStreamDataUni:        10 * 1200,
		InitialMaxStreamsBidi:          100,
		InitialMaxStreamsUni:           100,
		AckDelayExponent:               3,
		MaxAckDelay:                    25 * time.Millisecond,
		ActiveConnectionIDLimit:        4,
		InitialRTT:                     333 * time.Millisecond,
	}
}

// EventSink receives the application-visible connection callbacks:
// on-new-stream, on-connection-close, on-key-update. Typed callbacks
// rather than accumulated closures, so a caller can route each kind to
// its own handler.
type EventSink interface {
	OnNewStream(id stream.ID)
	OnConnectionClose(code uint64, appErr bool, reason string)
	OnKeyUpdate(phase bool)
}

// Conn is one QUIC connection: the state machine wired to the
// packet/frame codecs, per-space loss detection, flow control, the
// stream set, and the TLS adapter. A Conn belongs to exactly one event
// loop and is never touched concurrently.
type Conn struct {
	role  Role
	state State
	cfg   Config
	ctx   context.Context

	crypto *qcrypto.Cryptographer
	tls    *tlsadapter.Adapter

	spaces [3]*pnSpace // indexed via levelIndex: Initial=0, Handshake=1, OneRTT=2 (0-RTT shares the Application space with 1-RTT, so it gets no slot of its own)

	localCID  []byte
	peerCID   []byte
	origDCID  []byte // original_destination_connection_id, client-recorded for Retry validation
	localParams tlsadapter.Params
	peerParams  tlsadapter.Params
	havePeerParams bool

	streams          map[stream.ID]*stream.Stream
	nextStreamSeqOut [2]uint64 // [bidi, uni], sequence numbers this endpoint allocates
	peerStreamSeqIn  [2]uint64 // highest stream sequence the peer has opened, +1

	peerStreamLimits flowcontrol.StreamCounts // how many streams this endpoint may open, peer-granted
	localStreamCaps  [2]*flowcontrol.Incoming // how many streams the peer may open, reusing Incoming's auto-raising-limit shape over a count instead of bytes

	connFlowOut *flowcontrol.Outgoing
	connFlowIn  *flowcontrol.Incoming

	detector *recovery.Detector
	cc       *congestion.Reno
	pacer    *congestion.Pacer
	antiAmp  *congestion.AntiAmplification

	timers          *timer.Wheel
	idleTimerID     timer.ID
	haveIdleTimer   bool
	lastActivity    time.Time

	sink EventSink

	closeCode     uint64
	closeApp      bool
	closeReason   string
	closeLocal    bool
	drainDeadline time.Time
	haveDrain     bool

	queueHandshakeDone bool
	pendingPathResponse *[8]byte
}

func levelIndex(l qcrypto.Level) int {
	switch l {
	case qcrypto.LevelInitial:
		return 0
	case qcrypto.LevelHandshake:
		return 1
	default:
		return 2
	}
}

// newConn builds the shared scaffolding both NewClient and NewServer need.
func newConn(ctx context.Context, role Role, cfg Config, localCID, peerCID []byte, sink EventSink) *Conn {
	c := &Conn{
		role:        role,
		state:       StateNew,
		cfg:         cfg,
		ctx:         ctx,
		crypto:      qcrypto.New(),
		localCID:    localCID,
		peerCID:     peerCID,
		streams:     map[stream.ID]*stream.Stream{},
		connFlowOut: flowcontrol.NewOutgoing(0), // raised once peer params arrive
		connFlowIn:  flowcontrol.NewIncoming(cfg.InitialMaxData),
		detector:    recovery.NewDetector(cfg.InitialRTT),
		cc:          congestion.NewReno(),
		pacer:       congestion.NewPacer(),
		antiAmp:     congestion.NewAntiAmplification(),
		timers:      timer.New(),
		sink:        sink,
		localStreamCaps: [2]*flowcontrol.Incoming{
			flowcontrol.NewIncoming(cfg.InitialMaxStreamsBidi),
			flowcontrol.NewIncoming(cfg.InitialMaxStreamsUni),
		},
	}
	c.spaces[0] = newPNSpace(qcrypto.LevelInitial, cfg.AckDelayExponent, cfg.MaxAckDelay)
	c.spaces[1] = newPNSpace(qcrypto.LevelHandshake, cfg.AckDelayExponent, cfg.MaxAckDelay)
	c.spaces[2] = newPNSpace(qcrypto.LevelOneRTT, cfg.AckDelayExponent, cfg.MaxAckDelay)
	c.localParams = tlsadapter.Params{
		MaxIdleTimeoutMs:               uint64(cfg.MaxIdleTimeout / time.Millisecond),
		InitialMaxData:                 cfg.InitialMaxData,
		InitialMaxStreamDataBidiLocal:  cfg.InitialMaxStreamDataBidiLocal,
		InitialMaxStreamDataBidiRemote: cfg.InitialMaxStreamDataBidiRemote,
		InitialMaxStreamDataUni:        cfg.InitialMaxStreamDataUni,
		InitialMaxStreamsBidi:          cfg.InitialMaxStreamsBidi,
		InitialMaxStreamsUni:           cfg.InitialMaxStreamsUni,
		AckDelayExponent:               uint64(cfg.AckDelayExponent),
		MaxAckDelayMs:                  uint64(cfg.MaxAckDelay / time.Millisecond),
		ActiveConnectionIDLimit:        cfg.ActiveConnectionIDLimit,
		DisableActiveMigration:         cfg.DisableActiveMigration,
		InitialSourceConnectionID:      append([]byte(nil), localCID...),
	}
	return c
}

// NewClient builds a client-role connection that will dial qconn, a
// tls.QUICConn already configured with the server's ServerName.
func NewClient(ctx context.Context, cfg Config, qconn *tls.QUICConn, localCID, serverDCID []byte, sink EventSink) *Conn {
	c := newConn(ctx, RoleClient, cfg, localCID, serverDCID, sink)
	c.origDCID = append([]byte(nil), serverDCID...)
	c.crypto.InstallInitialKeys(serverDCID, true)
	c.antiAmp.MarkValidated() // the 3x cap applies to servers, not clients
	c.tls = tlsadapter.New(qconn, c, tlsadapter.Encode(c.localParams))
	c.state = StateWaitInitial
	return c
}

// NewServer builds a server-role connection from a client's first valid
// Initial packet. clientDCID is the DCID the client chose (used to derive
// Initial secrets); localCID is this connection's newly minted SCID.
func NewServer(ctx context.Context, cfg Config, qconn *tls.QUICConn, localCID, clientDCID, peerSCID []byte, sink EventSink) *Conn {
	c := newConn(ctx, RoleServer, cfg, localCID, peerSCID, sink)
	c.crypto.InstallInitialKeys(clientDCID, false)
	c.localParams.OriginalDestinationConnectionID = append([]byte(nil), clientDCID...)
	c.tls = tlsadapter.New(qconn, c, tlsadapter.Encode(c.localParams))
	c.state = StateWaitInitial
	return c
}

// StartHandshake drives the TLS engine's first flight (a do_handshake()
// call). Clients call this immediately; servers call it before the
// first Initial's CRYPTO bytes are fed in via OnDatagram.
func (c *Conn) StartHandshake() error {
	if err := c.tls.Start(c.ctx); err != nil {
		return err
	}
	c.state = StateHandshaking
	return nil
}

// State returns the current connection-lifecycle state.
func (c *Conn) State() State { return c.state }

// Role reports whether this Conn initiated the connection (RoleClient) or
// accepted it (RoleServer).
func (c *Conn) Role() Role { return c.role }

// Stats is a snapshot of a connection's recovery/congestion state.
type Stats struct {
	SmoothedRTT   time.Duration
	Cwnd          uint64
	BytesInFlight uint64
}

// Stats returns a snapshot of the connection's recovery/congestion state.
func (c *Conn) Stats() Stats {
	inFlight := 0
	for _, sp := range []recovery.SpaceID{recovery.SpaceInitial, recovery.SpaceHandshake, recovery.SpaceApplication} {
		inFlight += c.detector.Space(sp).InFlightBytes()
	}
	return Stats{
		SmoothedRTT:   c.detector.RTT.Smoothed(),
		Cwnd:          c.cc.Cwnd(),
		BytesInFlight: uint64(inFlight),
	}
}

// --- tlsadapter.Sink ---

// SetReadSecret installs an inbound key set, passing the ChaCha20/AES
// suite choice straight into the Cryptographer.
func (c *Conn) SetReadSecret(level qcrypto.Level, suite qcrypto.Suite, secret []byte) error {
	c.crypto.InstallSecret(level, qcrypto.DirectionRead, suite, secret)
	return nil
}

// SetWriteSecret installs an outbound key set.
func (c *Conn) SetWriteSecret(level qcrypto.Level, suite qcrypto.Suite, secret []byte) error {
	c.crypto.InstallSecret(level, qcrypto.DirectionWrite, suite, secret)
	if level == qcrypto.LevelOneRTT && c.role == RoleServer {
		// The server's 1-RTT write keys are usable as soon as they are
		// installed above; HANDSHAKE_DONE is queued separately, by
		// onCryptoFrame once TLS reports the handshake complete.
	}
	return nil
}

// WriteCrypto queues TLS handshake bytes for level's CRYPTO stream.
func (c *Conn) WriteCrypto(level qcrypto.Level, data []byte) error {
	c.spaces[levelIndex(level)].crypto.queue(data)
	return nil
}

// Flush is a no-op: the packetizer drains queued CRYPTO data on its own
// schedule rather than needing an explicit flush signal.
func (c *Conn) Flush() error { return nil }

// SendAlert maps a TLS alert to the matching CRYPTO_ERROR transport code
// and begins closing the connection.
func (c *Conn) SendAlert(level qcrypto.Level, alert uint8) error {
	code := uint64(qerrors.TransportCryptoErrorRangeStart) + uint64(alert)
	c.closeLocally(code, false, "tls alert")
	return nil
}

// onHandshakeConfirmed implements the Handshaking -> Connected transition:
// it installs the peer's max_ack_delay and drops the Initial keys, and the
// client also drops its Handshake keys. The server's HANDSHAKE_DONE is
// queued by onCryptoFrame, not here.
func (c *Conn) onHandshakeConfirmed(now time.Time) {
	if c.state != StateHandshaking {
		return
	}
	c.state = StateConnected
	c.detector.SetMaxAckDelay(time.Duration(c.peerParams.MaxAckDelayMs) * time.Millisecond)
	c.discardSpace(qcrypto.LevelInitial)
	if c.role == RoleClient {
		c.discardSpace(qcrypto.LevelHandshake)
	}
	c.armIdleTimer(now)
}

// discardSpace drops a packet-number space's keys and buffered state,
// crediting bytes_in_flight down exactly once.
func (c *Conn) discardSpace(level qcrypto.Level) {
	idx := levelIndex(level)
	if c.spaces[idx].discarded {
		return
	}
	c.spaces[idx].discarded = true
	c.spaces[idx].crypto.discard()
	discardedBytes := c.detector.DiscardSpace(spaceIDFor(level))
	c.cc.OnDiscard(uint64(discardedBytes))
	c.crypto.DiscardLevel(level)
}

// logger is a small convenience so call sites read cleanly.
func (c *Conn) logger() qcontext.Logger { return qcontext.GetLogger(c.ctx) }
