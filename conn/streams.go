package conn

import (
	"github.com/caozhiyi/quicx-go/flowcontrol"
	"github.com/caozhiyi/quicx-go/frame"
	"github.com/caozhiyi/quicx-go/qerrors"
	"github.com/caozhiyi/quicx-go/stream"
	"github.com/caozhiyi/quicx-go/tlsadapter"
)

func classIndex(bidi bool) int {
	if bidi {
		return 0
	}
	return 1
}

func (c *Conn) peerGrantedLimit(bidi bool) *flowcontrol.Outgoing {
	if bidi {
		return c.peerStreamLimits.Bidi
	}
	return c.peerStreamLimits.Uni
}

// OpenStream allocates and returns a new locally-initiated stream,
// peeking the peer-granted stream-count limit before committing to a
// sequence number: a rejected creation must not consume an ID.
func (c *Conn) OpenStream(bidi bool) (*stream.Stream, error) {
	idx := classIndex(bidi)
	limit := c.peerGrantedLimit(bidi)
	if limit == nil || limit.Available() == 0 {
		return nil, qerrors.New(qerrors.CodeStreamLimitError, "peer-granted stream limit exhausted")
	}

	seq := c.nextStreamSeqOut[idx]
	id := stream.NewID(seq, c.role == RoleClient, bidi)

	var outInit, inInit uint64
	hasSend, hasRecv := true, bidi
	if bidi {
		outInit = c.peerParams.InitialMaxStreamDataBidiRemote
		inInit = c.cfg.InitialMaxStreamDataBidiLocal
	} else {
		outInit = c.peerParams.InitialMaxStreamDataUni
	}

	s := stream.New(id, outInit, inInit, hasSend, hasRecv)
	c.streams[id] = s
	c.nextStreamSeqOut[idx] = seq + 1
	limit.Reserve(1)
	return s, nil
}

// onPeerStreamLimitRaised applies a MAX_STREAMS frame to the peer-granted
// creation limit for the given class.
func (c *Conn) onPeerStreamLimitRaised(bidi bool, max uint64) {
	if limit := c.peerGrantedLimit(bidi); limit != nil {
		limit.OnLimitRaised(max)
	}
}

// getOrCreatePeerStream returns the stream for id, implicitly opening it
// (and every lower-sequence stream of the same class, per RFC 9000 §2.1)
// if id names a peer-initiated stream not seen before. Returns a
// StreamLimitError if id exceeds the limit this endpoint has granted.
func (c *Conn) getOrCreatePeerStream(id stream.ID) (*stream.Stream, error) {
	if s, ok := c.streams[id]; ok {
		return s, nil
	}
	bidi := id.IsBidi()
	idx := classIndex(bidi)
	seq := id.Sequence()

	limit := c.localStreamCaps[idx]
	if _, _, err := limit.OnReceive(seq + 1); err != nil {
		return nil, qerrors.New(qerrors.CodeStreamLimitError, "peer exceeded granted stream count")
	}

	for n := c.peerStreamSeqIn[idx]; n <= seq; n++ {
		newID := stream.NewID(n, id.IsClientInitiated(), bidi)
		var outInit, inInit uint64
		hasSend, hasRecv := bidi, true
		if bidi {
			outInit = c.peerParams.InitialMaxStreamDataBidiLocal
			inInit = c.cfg.InitialMaxStreamDataBidiRemote
		} else {
			inInit = c.cfg.InitialMaxStreamDataUni
		}
		c.streams[newID] = stream.New(newID, outInit, inInit, hasSend, hasRecv)
		if c.sink != nil {
			c.sink.OnNewStream(newID)
		}
	}
	c.peerStreamSeqIn[idx] = seq + 1
	return c.streams[id], nil
}

// applyPeerTransportParams decodes the TLS-delivered peer transport
// parameter extension and raises every limit it grants.
func (c *Conn) applyPeerTransportParams(raw []byte) error {
	p, err := tlsadapter.Decode(raw, c.role == RoleServer)
	if err != nil {
		return err
	}
	c.peerParams = p
	c.havePeerParams = true

	c.connFlowOut.OnLimitRaised(p.InitialMaxData)
	c.peerStreamLimits = flowcontrol.NewOutgoingStreamCounts(p.InitialMaxStreamsBidi, p.InitialMaxStreamsUni)
	return nil
}

// frameForStreamsBlocked builds a STREAMS_BLOCKED frame if this
// endpoint is currently limited on the given class and hasn't already
// notified the peer for the current limit value.
func (c *Conn) frameForStreamsBlocked(bidi bool) *frame.StreamsBlocked {
	limit := c.peerGrantedLimit(bidi)
	if limit == nil || !limit.ShouldEmitBlocked() {
		return nil
	}
	return &frame.StreamsBlocked{Bidi: bidi, Limit: limit.Limit()}
}
