package frame

import (
	"github.com/caozhiyi/quicx-go/qerrors"
	"github.com/caozhiyi/quicx-go/varint"
)

// Cursor is the shared cursor type frame encode/decode operates on.
type Cursor = varint.Cursor

const maxVarint = varint.MaxValue

func vlen(v uint64) int { return varint.Len(v) }

// ---- Padding ----

func (Padding) Encode(c *Cursor) error { c.WriteByte(0x00); return nil }

// ---- Ping ----

func (Ping) Encode(c *Cursor) error { c.WriteVarint(uint64(TypePing)); return nil }

// ---- Ack ----

func (a *Ack) EncodedLen() int {
	n := vlen(uint64(a.Type())) + vlen(a.LargestAcked) + vlen(a.AckDelay) +
		vlen(uint64(len(a.Ranges))) + vlen(a.FirstRange)
	for _, r := range a.Ranges {
		n += vlen(r.Gap) + vlen(r.RangeLen)
	}
	if a.ECN != nil {
		n += vlen(a.ECN.ECT0) + vlen(a.ECN.ECT1) + vlen(a.ECN.CE)
	}
	return n
}

func (a *Ack) Encode(c *Cursor) error {
	c.WriteVarint(uint64(a.Type()))
	c.WriteVarint(a.LargestAcked)
	c.WriteVarint(a.AckDelay)
	c.WriteVarint(uint64(len(a.Ranges)))
	c.WriteVarint(a.FirstRange)
	for _, r := range a.Ranges {
		c.WriteVarint(r.Gap)
		c.WriteVarint(r.RangeLen)
	}
	if a.ECN != nil {
		c.WriteVarint(a.ECN.ECT0)
		c.WriteVarint(a.ECN.ECT1)
		c.WriteVarint(a.ECN.CE)
	}
	return nil
}

func decodeAck(c *Cursor, ecn bool) (*Ack, error) {
	a := &Ack{}
	var err error
	if a.LargestAcked, err = c.ReadVarint(); err != nil {
		return nil, err
	}
	if a.AckDelay, err = c.ReadVarint(); err != nil {
		return nil, err
	}
	rangeCount, err := c.ReadVarint()
	if err != nil {
		return nil, err
	}
	if a.FirstRange, err = c.ReadVarint(); err != nil {
		return nil, err
	}
	if rangeCount > 0 {
		a.Ranges = make([]AckRange, rangeCount)
	}
	for i := range a.Ranges {
		if a.Ranges[i].Gap, err = c.ReadVarint(); err != nil {
			return nil, err
		}
		if a.Ranges[i].RangeLen, err = c.ReadVarint(); err != nil {
			return nil, err
		}
	}
	if ecn {
		a.ECN = &ECNCounts{}
		if a.ECN.ECT0, err = c.ReadVarint(); err != nil {
			return nil, err
		}
		if a.ECN.ECT1, err = c.ReadVarint(); err != nil {
			return nil, err
		}
		if a.ECN.CE, err = c.ReadVarint(); err != nil {
			return nil, err
		}
	}
	if _, ok := a.SmallestAcked(); !ok {
		return nil, qerrors.New(qerrors.CodeFrameEncodingErr, "ACK ranges imply a negative smallest-acked")
	}
	return a, nil
}

// ---- ResetStream ----

func (r ResetStream) EncodedLen() int {
	return vlen(uint64(TypeResetStream)) + vlen(r.StreamID) + vlen(r.ErrorCode) + vlen(r.FinalSize)
}

func (r ResetStream) Encode(c *Cursor) error {
	c.WriteVarint(uint64(TypeResetStream))
	c.WriteVarint(r.StreamID)
	c.WriteVarint(r.ErrorCode)
	c.WriteVarint(r.FinalSize)
	return nil
}

func decodeResetStream(c *Cursor) (ResetStream, error) {
	var r ResetStream
	var err error
	if r.StreamID, err = c.ReadVarint(); err != nil {
		return ResetStream{}, err
	}
	if r.ErrorCode, err = c.ReadVarint(); err != nil {
		return ResetStream{}, err
	}
	if r.FinalSize, err = c.ReadVarint(); err != nil {
		return ResetStream{}, err
	}
	return r, nil
}

// ---- StopSending ----

func (s StopSending) EncodedLen() int {
	return vlen(uint64(TypeStopSending)) + vlen(s.StreamID) + vlen(s.ErrorCode)
}

func (s StopSending) Encode(c *Cursor) error {
	c.WriteVarint(uint64(TypeStopSending))
	c.WriteVarint(s.StreamID)
	c.WriteVarint(s.ErrorCode)
	return nil
}

func decodeStopSending(c *Cursor) (StopSending, error) {
	var s StopSending
	var err error
	if s.StreamID, err = c.ReadVarint(); err != nil {
		return StopSending{}, err
	}
	if s.ErrorCode, err = c.ReadVarint(); err != nil {
		return StopSending{}, err
	}
	return s, nil
}

// ---- Crypto ----

func (cr Crypto) EncodedLen() int {
	return vlen(uint64(TypeCrypto)) + vlen(cr.Offset) + vlen(uint64(len(cr.Data))) + len(cr.Data)
}

func (cr Crypto) Encode(c *Cursor) error {
	c.WriteVarint(uint64(TypeCrypto))
	c.WriteVarint(cr.Offset)
	c.WriteVarint(uint64(len(cr.Data)))
	c.Write(cr.Data)
	return nil
}

func decodeCrypto(c *Cursor) (Crypto, error) {
	var cr Crypto
	var err error
	if cr.Offset, err = c.ReadVarint(); err != nil {
		return Crypto{}, err
	}
	length, err := c.ReadVarint()
	if err != nil {
		return Crypto{}, err
	}
	if cr.Offset+length > maxVarint {
		return Crypto{}, qerrors.New(qerrors.CodeFrameEncodingErr, "CRYPTO offset+length overflows 2^62-1")
	}
	data, err := c.ReadN(int(length))
	if err != nil {
		return Crypto{}, err
	}
	cr.Data = append([]byte(nil), data...)
	return cr, nil
}

// ---- NewToken ----

func (n NewToken) EncodedLen() int {
	return vlen(uint64(TypeNewToken)) + vlen(uint64(len(n.Token))) + len(n.Token)
}

func (n NewToken) Encode(c *Cursor) error {
	c.WriteVarint(uint64(TypeNewToken))
	c.WriteVarint(uint64(len(n.Token)))
	c.Write(n.Token)
	return nil
}

func decodeNewToken(c *Cursor) (NewToken, error) {
	length, err := c.ReadVarint()
	if err != nil {
		return NewToken{}, err
	}
	tok, err := c.ReadN(int(length))
	if err != nil {
		return NewToken{}, err
	}
	return NewToken{Token: append([]byte(nil), tok...)}, nil
}

// ---- Stream ----

func (s *Stream) EncodedLen() int {
	n := vlen(uint64(s.Type())) + vlen(s.StreamID)
	if s.OffsetPresent {
		n += vlen(s.Offset)
	}
	if s.LengthPresent {
		n += vlen(uint64(len(s.Data)))
	}
	return n + len(s.Data)
}

func (s *Stream) Encode(c *Cursor) error {
	c.WriteVarint(uint64(s.Type()))
	c.WriteVarint(s.StreamID)
	if s.OffsetPresent {
		c.WriteVarint(s.Offset)
	}
	if s.LengthPresent {
		c.WriteVarint(uint64(len(s.Data)))
	}
	c.Write(s.Data)
	return nil
}

func decodeStream(c *Cursor, tag Type) (*Stream, error) {
	s := &Stream{
		OffsetPresent: tag&0x04 != 0,
		LengthPresent: tag&0x02 != 0,
		Fin:           tag&0x01 != 0,
	}
	var err error
	if s.StreamID, err = c.ReadVarint(); err != nil {
		return nil, err
	}
	if s.OffsetPresent {
		if s.Offset, err = c.ReadVarint(); err != nil {
			return nil, err
		}
	}
	var length int
	if s.LengthPresent {
		l, err := c.ReadVarint()
		if err != nil {
			return nil, err
		}
		length = int(l)
	} else {
		length = c.Len()
	}
	if s.Offset+uint64(length) > maxVarint {
		return nil, qerrors.New(qerrors.CodeFrameEncodingErr, "STREAM offset+length overflows 2^62-1")
	}
	data, err := c.ReadN(length)
	if err != nil {
		return nil, err
	}
	s.Data = append([]byte(nil), data...)
	return s, nil
}

// ---- MaxData ----

func (m MaxData) EncodedLen() int { return vlen(uint64(TypeMaxData)) + vlen(m.Maximum) }
func (m MaxData) Encode(c *Cursor) error {
	c.WriteVarint(uint64(TypeMaxData))
	c.WriteVarint(m.Maximum)
	return nil
}
func decodeMaxData(c *Cursor) (MaxData, error) {
	v, err := c.ReadVarint()
	if err != nil {
		return MaxData{}, err
	}
	return MaxData{Maximum: v}, nil
}

// ---- MaxStreamData ----

func (m MaxStreamData) EncodedLen() int {
	return vlen(uint64(TypeMaxStreamData)) + vlen(m.StreamID) + vlen(m.Maximum)
}
func (m MaxStreamData) Encode(c *Cursor) error {
	c.WriteVarint(uint64(TypeMaxStreamData))
	c.WriteVarint(m.StreamID)
	c.WriteVarint(m.Maximum)
	return nil
}
func decodeMaxStreamData(c *Cursor) (MaxStreamData, error) {
	var m MaxStreamData
	var err error
	if m.StreamID, err = c.ReadVarint(); err != nil {
		return MaxStreamData{}, err
	}
	if m.Maximum, err = c.ReadVarint(); err != nil {
		return MaxStreamData{}, err
	}
	return m, nil
}

// ---- MaxStreams ----

func (m MaxStreams) EncodedLen() int { return vlen(uint64(m.Type())) + vlen(m.Maximum) }
func (m MaxStreams) Encode(c *Cursor) error {
	c.WriteVarint(uint64(m.Type()))
	c.WriteVarint(m.Maximum)
	return nil
}
func decodeMaxStreams(c *Cursor, bidi bool) (MaxStreams, error) {
	v, err := c.ReadVarint()
	if err != nil {
		return MaxStreams{}, err
	}
	return MaxStreams{Bidi: bidi, Maximum: v}, nil
}

// ---- DataBlocked ----

func (d DataBlocked) EncodedLen() int { return vlen(uint64(TypeDataBlocked)) + vlen(d.Limit) }
func (d DataBlocked) Encode(c *Cursor) error {
	c.WriteVarint(uint64(TypeDataBlocked))
	c.WriteVarint(d.Limit)
	return nil
}
func decodeDataBlocked(c *Cursor) (DataBlocked, error) {
	v, err := c.ReadVarint()
	if err != nil {
		return DataBlocked{}, err
	}
	return DataBlocked{Limit: v}, nil
}

// ---- StreamDataBlocked ----

func (d StreamDataBlocked) EncodedLen() int {
	return vlen(uint64(TypeStreamDataBlocked)) + vlen(d.StreamID) + vlen(d.Limit)
}
func (d StreamDataBlocked) Encode(c *Cursor) error {
	c.WriteVarint(uint64(TypeStreamDataBlocked))
	c.WriteVarint(d.StreamID)
	c.WriteVarint(d.Limit)
	return nil
}
func decodeStreamDataBlocked(c *Cursor) (StreamDataBlocked, error) {
	var d StreamDataBlocked
	var err error
	if d.StreamID, err = c.ReadVarint(); err != nil {
		return StreamDataBlocked{}, err
	}
	if d.Limit, err = c.ReadVarint(); err != nil {
		return StreamDataBlocked{}, err
	}
	return d, nil
}

// ---- StreamsBlocked ----

func (s StreamsBlocked) EncodedLen() int { return vlen(uint64(s.Type())) + vlen(s.Limit) }
func (s StreamsBlocked) Encode(c *Cursor) error {
	c.WriteVarint(uint64(s.Type()))
	c.WriteVarint(s.Limit)
	return nil
}
func decodeStreamsBlocked(c *Cursor, bidi bool) (StreamsBlocked, error) {
	v, err := c.ReadVarint()
	if err != nil {
		return StreamsBlocked{}, err
	}
	return StreamsBlocked{Bidi: bidi, Limit: v}, nil
}

// ---- NewConnectionID ----

func (n NewConnectionID) EncodedLen() int {
	return vlen(uint64(TypeNewConnectionID)) + vlen(n.SequenceNumber) + vlen(n.RetirePriorTo) +
		1 + len(n.ConnectionID) + 16
}
func (n NewConnectionID) Encode(c *Cursor) error {
	c.WriteVarint(uint64(TypeNewConnectionID))
	c.WriteVarint(n.SequenceNumber)
	c.WriteVarint(n.RetirePriorTo)
	c.WriteByte(byte(len(n.ConnectionID)))
	c.Write(n.ConnectionID)
	c.Write(n.StatelessResetToken[:])
	return nil
}
func decodeNewConnectionID(c *Cursor) (NewConnectionID, error) {
	var n NewConnectionID
	var err error
	if n.SequenceNumber, err = c.ReadVarint(); err != nil {
		return NewConnectionID{}, err
	}
	if n.RetirePriorTo, err = c.ReadVarint(); err != nil {
		return NewConnectionID{}, err
	}
	cidLen, err := c.ReadByte()
	if err != nil {
		return NewConnectionID{}, err
	}
	cid, err := c.ReadN(int(cidLen))
	if err != nil {
		return NewConnectionID{}, err
	}
	n.ConnectionID = append([]byte(nil), cid...)
	tok, err := c.ReadN(16)
	if err != nil {
		return NewConnectionID{}, err
	}
	copy(n.StatelessResetToken[:], tok)
	return n, nil
}

// ---- RetireConnectionID ----

func (r RetireConnectionID) EncodedLen() int {
	return vlen(uint64(TypeRetireConnectionID)) + vlen(r.SequenceNumber)
}
func (r RetireConnectionID) Encode(c *Cursor) error {
	c.WriteVarint(uint64(TypeRetireConnectionID))
	c.WriteVarint(r.SequenceNumber)
	return nil
}
func decodeRetireConnectionID(c *Cursor) (RetireConnectionID, error) {
	v, err := c.ReadVarint()
	if err != nil {
		return RetireConnectionID{}, err
	}
	return RetireConnectionID{SequenceNumber: v}, nil
}

// ---- PathChallenge / PathResponse ----

func (p PathChallenge) EncodedLen() int { return vlen(uint64(TypePathChallenge)) + 8 }
func (p PathChallenge) Encode(c *Cursor) error {
	c.WriteVarint(uint64(TypePathChallenge))
	c.Write(p.Data[:])
	return nil
}
func decodePathChallenge(c *Cursor) (PathChallenge, error) {
	var p PathChallenge
	b, err := c.ReadN(8)
	if err != nil {
		return PathChallenge{}, err
	}
	copy(p.Data[:], b)
	return p, nil
}

func (p PathResponse) EncodedLen() int { return vlen(uint64(TypePathResponse)) + 8 }
func (p PathResponse) Encode(c *Cursor) error {
	c.WriteVarint(uint64(TypePathResponse))
	c.Write(p.Data[:])
	return nil
}
func decodePathResponse(c *Cursor) (PathResponse, error) {
	var p PathResponse
	b, err := c.ReadN(8)
	if err != nil {
		return PathResponse{}, err
	}
	copy(p.Data[:], b)
	return p, nil
}

// ---- ConnectionClose ----

func (cc ConnectionClose) EncodedLen() int {
	n := vlen(uint64(cc.Type())) + vlen(cc.ErrorCode)
	if !cc.IsApplication {
		n += vlen(cc.FrameType)
	}
	return n + vlen(uint64(len(cc.Reason))) + len(cc.Reason)
}

func (cc ConnectionClose) Encode(c *Cursor) error {
	c.WriteVarint(uint64(cc.Type()))
	c.WriteVarint(cc.ErrorCode)
	if !cc.IsApplication {
		c.WriteVarint(cc.FrameType)
	}
	c.WriteVarint(uint64(len(cc.Reason)))
	c.Write([]byte(cc.Reason))
	return nil
}

func decodeConnectionClose(c *Cursor, isApp bool) (ConnectionClose, error) {
	cc := ConnectionClose{IsApplication: isApp}
	var err error
	if cc.ErrorCode, err = c.ReadVarint(); err != nil {
		return ConnectionClose{}, err
	}
	if !isApp {
		if cc.FrameType, err = c.ReadVarint(); err != nil {
			return ConnectionClose{}, err
		}
	}
	length, err := c.ReadVarint()
	if err != nil {
		return ConnectionClose{}, err
	}
	reason, err := c.ReadN(int(length))
	if err != nil {
		return ConnectionClose{}, err
	}
	cc.Reason = string(reason)
	return cc, nil
}

// ---- HandshakeDone ----

func (HandshakeDone) EncodedLen() int { return vlen(uint64(TypeHandshakeDone)) }
func (HandshakeDone) Encode(c *Cursor) error {
	c.WriteVarint(uint64(TypeHandshakeDone))
	return nil
}

// Decode reads one frame from the front of c, dispatching on its tag.
// An unrecognized tag is fatal to the connection.
func Decode(c *Cursor) (Frame, error) {
	tag, err := c.ReadVarint()
	if err != nil {
		return nil, err
	}
	t := Type(tag)

	switch {
	case t == TypePadding:
		return Padding{}, nil
	case t == TypePing:
		return Ping{}, nil
	case t == TypeAck:
		return decodeAck(c, false)
	case t == TypeAckECN:
		return decodeAck(c, true)
	case t == TypeResetStream:
		return decodeResetStream(c)
	case t == TypeStopSending:
		return decodeStopSending(c)
	case t == TypeCrypto:
		return decodeCrypto(c)
	case t == TypeNewToken:
		return decodeNewToken(c)
	case t >= TypeStream && t <= TypeStream+0x07:
		return decodeStream(c, t)
	case t == TypeMaxData:
		return decodeMaxData(c)
	case t == TypeMaxStreamData:
		return decodeMaxStreamData(c)
	case t == TypeMaxStreamsBidi:
		return decodeMaxStreams(c, true)
	case t == TypeMaxStreamsUni:
		return decodeMaxStreams(c, false)
	case t == TypeDataBlocked:
		return decodeDataBlocked(c)
	case t == TypeStreamDataBlocked:
		return decodeStreamDataBlocked(c)
	case t == TypeStreamsBlockedBidi:
		return decodeStreamsBlocked(c, true)
	case t == TypeStreamsBlockedUni:
		return decodeStreamsBlocked(c, false)
	case t == TypeNewConnectionID:
		return decodeNewConnectionID(c)
	case t == TypeRetireConnectionID:
		return decodeRetireConnectionID(c)
	case t == TypePathChallenge:
		return decodePathChallenge(c)
	case t == TypePathResponse:
		return decodePathResponse(c)
	case t == TypeConnectionClose:
		return decodeConnectionClose(c, false)
	case t == TypeConnectionCloseApp:
		return decodeConnectionClose(c, true)
	case t == TypeHandshakeDone:
		return HandshakeDone{}, nil
	default:
		return nil, qerrors.Newf(qerrors.CodeUnknownFrame, "unknown frame tag 0x%x", tag)
	}
}
