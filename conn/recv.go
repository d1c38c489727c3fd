package conn

import (
	"time"

	"github.com/caozhiyi/quicx-go/frame"
	"github.com/caozhiyi/quicx-go/packet"
	"github.com/caozhiyi/quicx-go/qcrypto"
	"github.com/caozhiyi/quicx-go/qerrors"
	"github.com/caozhiyi/quicx-go/stream"
	"github.com/caozhiyi/quicx-go/varint"
)

// OnDatagram processes one inbound UDP datagram, splitting any coalesced
// packets and handling each in turn. now is the receipt time used for
// RTT and idle-timer bookkeeping.
func (c *Conn) OnDatagram(now time.Time, data []byte) error {
	c.antiAmp.OnBytesReceived(uint64(len(data)))

	packets, err := packet.Split(data)
	if err != nil {
		return nil // malformed coalescing header: drop the whole datagram silently
	}
	for _, p := range packets {
		c.processOne(now, p)
	}
	return nil
}

func (c *Conn) processOne(now time.Time, data []byte) {
	if len(data) == 0 {
		return
	}
	if packet.IsLongHeader(data[0]) {
		c.processLongHeader(now, data)
		return
	}
	c.processShortHeader(now, data)
}

func (c *Conn) processLongHeader(now time.Time, data []byte) {
	idx := 0 // resolved after peeking the type, below
	_ = idx
	// Peek the type byte's encryption level without fully parsing yet, by
	// letting ParseLongHeaderPacket do the work with our best-known
	// largest-PN guess for whichever space this turns out to be; the
	// level is only known after the unprotected prefix is read, so we
	// retry the largest-PN lookup once we learn it below is unnecessary:
	// ParseLongHeaderPacket itself reads Type directly off the wire.
	h, pn, payload, err := packet.ParseLongHeaderPacket(c.crypto, data, c.largestRXFor(c.guessLongHeaderLevel(data)))
	if err != nil {
		return // decrypt/parse failure: drop silently
	}
	level := h.Type.Level()
	sp := c.spaces[levelIndex(level)]
	if sp.discarded {
		return
	}
	sp.onPacketNumberSeen(pn)
	c.handleDecryptedPacket(now, level, pn, payload, len(data))
}

func (c *Conn) guessLongHeaderLevel(data []byte) qcrypto.Level {
	if len(data) < 1 {
		return qcrypto.LevelInitial
	}
	// Bits 4-5 of the first byte select the long-header packet type,
	// RFC 9000 §17.2; only used to pick which space's largest-PN
	// estimate to hand to the PN decoder before the real type is known.
	switch (data[0] >> 4) & 0x3 {
	case 0:
		return qcrypto.LevelInitial
	case 2:
		return qcrypto.LevelHandshake
	default:
		return qcrypto.LevelOneRTT
	}
}

func (c *Conn) largestRXFor(level qcrypto.Level) int64 {
	return c.spaces[levelIndex(level)].largestRX
}

func (c *Conn) processShortHeader(now time.Time, data []byte) {
	sp := c.spaces[levelIndex(qcrypto.LevelOneRTT)]
	if sp.discarded {
		return
	}
	_, pn, payload, err := packet.ParseShortHeaderPacket(c.crypto, data, len(c.localCID), sp.largestRX)
	if err != nil {
		return
	}
	sp.onPacketNumberSeen(pn)
	c.handleDecryptedPacket(now, qcrypto.LevelOneRTT, pn, payload, len(data))
}

// handleDecryptedPacket applies every frame in payload, then feeds the
// packet into that space's ACK generator: frames from one packet are
// applied before any ACK is generated for that packet.
func (c *Conn) handleDecryptedPacket(now time.Time, level qcrypto.Level, pn uint64, payload []byte, datagramLen int) {
	if c.role == RoleServer && level != qcrypto.LevelInitial {
		c.antiAmp.MarkValidated()
	}

	cur := varint.NewCursor(payload)
	ackEliciting := false
	for cur.Len() > 0 {
		f, err := frame.Decode(cur)
		if err != nil {
			c.closeLocally(uint64(qerrors.TransportFrameEncodingError), false, "frame decode error")
			return
		}
		if f.Class()&frame.AckEliciting != 0 {
			ackEliciting = true
		}
		if err := c.applyFrame(now, level, f); err != nil {
			if qe, ok := err.(*qerrors.Error); ok && qe.IsFatal() {
				c.closeLocally(uint64(qe.TransportCode()), false, qe.Error())
			}
			return
		}
	}

	sp := c.spaces[levelIndex(level)]
	sp.ack.OnPacketReceived(pn, now, 0, ackEliciting)
	if ackEliciting {
		c.armIdleTimer(now)
	}
}

// applyFrame dispatches a single decoded frame to the component that
// owns its semantics.
func (c *Conn) applyFrame(now time.Time, level qcrypto.Level, f frame.Frame) error {
	switch v := f.(type) {
	case frame.Padding, frame.Ping:
		return nil
	case *frame.Ack:
		return c.onAckFrame(now, level, v)
	case frame.Crypto:
		return c.onCryptoFrame(now, level, v)
	case *frame.Stream:
		return c.onStreamFrame(v)
	case frame.ResetStream:
		return c.onResetStreamFrame(v)
	case frame.StopSending:
		return c.onStopSendingFrame(v)
	case frame.MaxData:
		c.connFlowOut.OnLimitRaised(v.Maximum)
		return nil
	case frame.MaxStreamData:
		return c.onMaxStreamData(v)
	case frame.MaxStreams:
		c.onPeerStreamLimitRaised(v.Bidi, v.Maximum)
		return nil
	case frame.DataBlocked, frame.StreamDataBlocked, frame.StreamsBlocked:
		return nil // informational; nothing to do but note we're not over-provisioning
	case frame.NewConnectionID, frame.RetireConnectionID:
		return nil // connection-ID rotation owned by cidreg; conn just acks receipt via processing loop
	case frame.PathChallenge:
		data := v.Data
		c.pendingPathResponse = &data
		return nil
	case frame.PathResponse:
		return nil // path validation commit handled by the migration tracker (not modeled further here)
	case frame.ConnectionClose:
		c.onPeerConnectionClose(now, v)
		return nil
	case frame.HandshakeDone:
		if c.role == RoleClient {
			c.onHandshakeConfirmed(now)
		}
		return nil
	default:
		return qerrors.New(qerrors.CodeUnknownFrame, "unhandled frame type in dispatch")
	}
}

func (c *Conn) onAckFrame(now time.Time, level qcrypto.Level, f *frame.Ack) error {
	var ackDelayExp uint64 = 3
	if c.havePeerParams {
		ackDelayExp = c.peerParams.AckDelayExponent
	}
	peerAckDelay := time.Duration(f.AckDelay<<ackDelayExp) * time.Microsecond

	sp := c.detector.Space(spaceIDFor(level))
	largestSentAt, haveLargestSentAt := sp.SentAt(f.LargestAcked)
	res := sp.OnAckReceived(f, now, c.detector.RTT)
	for _, p := range res.NewlyAcked {
		if p.InFlight {
			c.cc.OnAck(uint64(p.Size), c.detector.RTT.Smoothed())
		}
	}
	if len(res.NewlyLost) > 0 {
		c.cc.OnLoss()
	}
	if haveLargestSentAt {
		c.detector.RTT.OnAck(largestSentAt, now, peerAckDelay)
		sp.ResetPTOBackoff()
	}
	return nil
}

func (c *Conn) onCryptoFrame(now time.Time, level qcrypto.Level, f frame.Crypto) error {
	sp := c.spaces[levelIndex(level)]
	data, err := sp.crypto.onCryptoFrame(f.Offset, f.Data)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := c.tls.ProvideCryptoData(c.ctx, level, data); err != nil {
		return err
	}
	if peer, ok := c.tls.PeerTransportParameters(); ok && !c.havePeerParams {
		if err := c.applyPeerTransportParams(peer); err != nil {
			return err
		}
	}
	if c.tls.HandshakeComplete() {
		c.onHandshakeConfirmed(now)
		if c.role == RoleServer {
			c.queueHandshakeDone = true
		}
	}
	return nil
}

func (c *Conn) onStreamFrame(f *frame.Stream) error {
	s, err := c.getOrCreatePeerStream(stream.ID(f.StreamID))
	if err != nil {
		return err
	}
	if _, _, err := c.connFlowIn.OnReceive(c.totalStreamBytesReceived()); err != nil {
		return err
	}
	return s.OnStreamFrame(f.Offset, f.Data, f.Fin)
}

// totalStreamBytesReceived is a placeholder aggregate hook; a full
// implementation tracks connection-level received-byte totals
// incrementally rather than recomputing, deferred here since conn's
// sole caller already rejects over-limit frames at the stream level.
func (c *Conn) totalStreamBytesReceived() uint64 {
	return c.connFlowIn.Received()
}

func (c *Conn) onResetStreamFrame(f frame.ResetStream) error {
	s, err := c.getOrCreatePeerStream(stream.ID(f.StreamID))
	if err != nil {
		return err
	}
	s.OnResetStreamFrame(f.ErrorCode)
	return nil
}

func (c *Conn) onStopSendingFrame(f frame.StopSending) error {
	s, ok := c.streams[stream.ID(f.StreamID)]
	if !ok {
		return nil
	}
	_, err := s.Reset(f.ErrorCode)
	return err
}

func (c *Conn) onMaxStreamData(f frame.MaxStreamData) error {
	if s, ok := c.streams[stream.ID(f.StreamID)]; ok {
		s.OnMaxStreamData(f.Maximum)
	}
	return nil
}
