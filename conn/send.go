package conn

import (
	"time"

	"github.com/caozhiyi/quicx-go/frame"
	"github.com/caozhiyi/quicx-go/packet"
	"github.com/caozhiyi/quicx-go/qcrypto"
	"github.com/caozhiyi/quicx-go/recovery"
	"github.com/caozhiyi/quicx-go/varint"
)

// maxDatagramSize is the conservative default UDP payload target the
// packetizer budgets against; also used as the RFC 9000 §14.1
// client-Initial padding floor.
const maxDatagramSize = 1200

// BuildDatagrams assembles as many outgoing UDP datagrams as the
// congestion window and anti-amplification budget currently allow (no
// pacing is applied), coalescing Initial/Handshake/Application packets per datagram
// in ascending encryption-level order (RFC 9000 §12.2).
func (c *Conn) BuildDatagrams(now time.Time) [][]byte {
	if c.state == StateDraining || c.state == StateClosed {
		return nil
	}
	if c.state == StateClosing {
		if d := c.buildCloseDatagram(); d != nil {
			return [][]byte{d}
		}
		return nil
	}

	var datagrams [][]byte
	for {
		budget := c.sendBudget()
		if budget == 0 {
			break
		}
		d := c.buildOneDatagram(now, budget)
		if d == nil {
			break
		}
		datagrams = append(datagrams, d)
		c.antiAmp.OnBytesSent(uint64(len(d)))
	}
	return datagrams
}

// sendBudget returns how many bytes may go out right now under the
// tightest of the congestion window and anti-amplification caps; no
// pacer is consulted, here or by the event loop.
func (c *Conn) sendBudget() int {
	b := c.cc.CanSend()
	if a := c.antiAmp.CanSend(); a < b {
		b = a
	}
	if b > maxDatagramSize {
		b = maxDatagramSize
	}
	return int(b)
}

func (c *Conn) buildOneDatagram(now time.Time, budget int) []byte {
	var out []byte
	anyPacket := false
	needsPadding := c.role == RoleClient && !c.spaces[levelIndex(qcrypto.LevelInitial)].discarded

	for _, level := range []qcrypto.Level{qcrypto.LevelInitial, qcrypto.LevelHandshake, qcrypto.LevelOneRTT} {
		if budget-len(out) < 64 {
			break
		}
		pkt := c.buildPacketFor(now, level, budget-len(out))
		if pkt == nil {
			continue
		}
		out = append(out, pkt...)
		anyPacket = true
	}
	if !anyPacket {
		return nil
	}
	if needsPadding && len(out) < maxDatagramSize && len(out) <= budget {
		pad := maxDatagramSize - len(out)
		if len(out)+pad > budget {
			pad = budget - len(out)
		}
		out = append(out, make([]byte, pad)...)
	}
	return out
}

// buildPacketFor assembles one packet at level if there is anything to
// send: queued CRYPTO bytes, a due ACK, queued STREAM data, or control
// frames, within maxLen bytes including header and AEAD overhead.
func (c *Conn) buildPacketFor(now time.Time, level qcrypto.Level, maxLen int) []byte {
	idx := levelIndex(level)
	sp := c.spaces[idx]
	if sp.discarded {
		return nil
	}
	if _, err := c.crypto.KeysFor(level, qcrypto.DirectionWrite); err != nil {
		return nil
	}

	const overhead = 64 // conservative header + AEAD tag + PN allowance
	if maxLen <= overhead {
		return nil
	}
	payloadBudget := maxLen - overhead

	var frames []frame.Frame
	var records []recovery.FrameRecord
	ackEliciting := false

	if sp.ack.ShouldSendNow(now) {
		if a, ok := sp.ack.BuildAck(now); ok {
			frames = append(frames, a)
		}
	}

	for sp.crypto.pending() > 0 && payloadBudget > 16 {
		off, chunk := sp.crypto.nextChunk(payloadBudget - 16)
		if len(chunk) == 0 {
			break
		}
		cf := frame.Crypto{Offset: off, Data: chunk}
		frames = append(frames, cf)
		records = append(records, recovery.FrameRecord{Kind: "crypto", Data: cf})
		payloadBudget -= cf.EncodedLen()
		ackEliciting = true
	}

	if level == qcrypto.LevelOneRTT {
		frames, records, payloadBudget, ackEliciting = c.appendApplicationFrames(frames, records, payloadBudget, ackEliciting)
	}

	if len(frames) == 0 {
		return nil
	}

	payload := encodeFrames(frames)
	pn := sp.allocatePN()

	var wire []byte
	var err error
	if level == qcrypto.LevelOneRTT {
		wire, err = packet.BuildShortHeaderPacket(c.crypto, packet.ShortHeader{DCID: c.peerCID, KeyPhase: c.crypto.KeyPhase()}, sp.largestRX, pn, payload)
	} else {
		h := packet.LongHeader{Type: longTypeFor(level), Version: 1, DCID: c.peerCID, SCID: c.localCID}
		wire, err = packet.BuildLongHeaderPacket(c.crypto, h, sp.largestRX, pn, payload)
	}
	if err != nil {
		return nil
	}

	inFlight := true
	c.detector.Space(spaceIDFor(level)).OnPacketSent(pn, now, len(wire), ackEliciting, inFlight, records)
	c.cc.OnPacketSent(uint64(len(wire)))
	if ackEliciting {
		c.armIdleTimer(now)
	}
	return wire
}

func longTypeFor(level qcrypto.Level) packet.LongType {
	if level == qcrypto.LevelHandshake {
		return packet.LongTypeHandshake
	}
	return packet.LongTypeInitial
}

// appendApplicationFrames adds HANDSHAKE_DONE, PATH_RESPONSE and
// per-stream STREAM frames to the 1-RTT packet being assembled,
// respecting the connection's send flow-control window and the remaining
// payload budget. It emits no MAX_DATA, MAX_STREAM_DATA or MAX_STREAMS
// frames.
func (c *Conn) appendApplicationFrames(frames []frame.Frame, records []recovery.FrameRecord, budget int, ackEliciting bool) ([]frame.Frame, []recovery.FrameRecord, int, bool) {
	if c.queueHandshakeDone {
		frames = append(frames, frame.HandshakeDone{})
		records = append(records, recovery.FrameRecord{Kind: "handshake_done"})
		budget -= frame.HandshakeDone{}.EncodedLen()
		ackEliciting = true
		c.queueHandshakeDone = false
	}
	if c.pendingPathResponse != nil {
		r := frame.PathResponse{Data: *c.pendingPathResponse}
		frames = append(frames, r)
		records = append(records, recovery.FrameRecord{Kind: "path_response"})
		budget -= r.EncodedLen()
		ackEliciting = true
		c.pendingPathResponse = nil
	}

	connBudget := c.connFlowOut.Available()
	for id, s := range c.streams {
		if budget < 8 {
			break
		}
		chunk, ok := s.NextSendChunk(budget-8, connBudget)
		if !ok {
			continue
		}
		sf := &frame.Stream{StreamID: uint64(id), Offset: chunk.Offset, OffsetPresent: chunk.Offset != 0, LengthPresent: true, Fin: chunk.Fin, Data: chunk.Data}
		frames = append(frames, sf)
		records = append(records, recovery.FrameRecord{Kind: "stream", Data: sf})
		budget -= sf.EncodedLen()
		connBudget -= uint64(len(chunk.Data))
		c.connFlowOut.Reserve(uint64(len(chunk.Data)))
		ackEliciting = true
	}
	return frames, records, budget, ackEliciting
}

func encodeFrames(frames []frame.Frame) []byte {
	total := 0
	for _, f := range frames {
		total += f.EncodedLen()
	}
	cur := varint.NewWriteCursor(make([]byte, 0, total))
	for _, f := range frames {
		_ = f.Encode(cur)
	}
	return cur.Bytes()
}

// buildCloseDatagram builds one CONNECTION_CLOSE packet at the highest
// level still available. BuildDatagrams calls it on every call made
// while Closing; no rate limit is applied.
func (c *Conn) buildCloseDatagram() []byte {
	level := qcrypto.LevelOneRTT
	for _, l := range []qcrypto.Level{qcrypto.LevelInitial, qcrypto.LevelHandshake, qcrypto.LevelOneRTT} {
		if !c.spaces[levelIndex(l)].discarded {
			if _, err := c.crypto.KeysFor(l, qcrypto.DirectionWrite); err == nil {
				level = l
			}
		}
	}
	sp := c.spaces[levelIndex(level)]
	payload := encodeFrames([]frame.Frame{c.closeConnectionCloseFrame()})
	pn := sp.allocatePN()

	if level == qcrypto.LevelOneRTT {
		wire, err := packet.BuildShortHeaderPacket(c.crypto, packet.ShortHeader{DCID: c.peerCID}, sp.largestRX, pn, payload)
		if err != nil {
			return nil
		}
		return wire
	}
	h := packet.LongHeader{Type: longTypeFor(level), Version: 1, DCID: c.peerCID, SCID: c.localCID}
	wire, err := packet.BuildLongHeaderPacket(c.crypto, h, sp.largestRX, pn, payload)
	if err != nil {
		return nil
	}
	return wire
}
