package stream

import (
	"github.com/caozhiyi/quicx-go/flowcontrol"
	"github.com/caozhiyi/quicx-go/frame"
	"github.com/caozhiyi/quicx-go/qerrors"
)

// sendChunk is one piece of queued send data (offset, bytes, FIN flag), the
// result Stream.NextSendChunk exports to the caller.
type sendChunk struct {
	Offset uint64
	Data   []byte
	Fin    bool
}

// Stream holds one stream's full state: both directional state machines,
// outgoing send queue, incoming reassembly buffer, and the per-stream
// flow-control windows.
type Stream struct {
	ID ID

	sendState SendState
	sendQueue []byte
	sendOff   uint64 // offset of sendQueue[0]
	sendFinAt uint64
	haveSendFin bool
	sendAcked uint64 // bytes acked (contiguous prefix)
	outFlow   *flowcontrol.Outgoing

	recvState RecvState
	recv      *Reassembly
	inFlow    *flowcontrol.Incoming

	resetErrorCode  uint64
	peerResetCode   uint64
}

// New builds a Stream with the given per-stream flow-control windows. A
// unidirectional stream passes nil for the side it doesn't have.
func New(id ID, outInitial, inInitial uint64, hasSend, hasRecv bool) *Stream {
	s := &Stream{ID: id, recv: NewReassembly()}
	if hasSend {
		s.outFlow = flowcontrol.NewOutgoing(outInitial)
	}
	if hasRecv {
		s.inFlow = flowcontrol.NewIncoming(inInitial)
	}
	return s
}

// SendState returns the current send-side state.
func (s *Stream) SendState() SendState { return s.sendState }

// RecvState returns the current recv-side state.
func (s *Stream) RecvState() RecvState { return s.recvState }

// Write queues app data for sending, transitioning Ready -> Send on the
// first call.
func (s *Stream) Write(data []byte) error {
	if s.sendState != SendReady && s.sendState != SendSend {
		return qerrors.New(qerrors.CodeStreamStateError, "write on a stream not in Ready/Send state")
	}
	if s.sendState == SendReady {
		s.sendState = SendSend
	}
	s.sendQueue = append(s.sendQueue, data...)
	return nil
}

// Close marks the send side finished, queuing FIN at the current end
// offset and transitioning Send -> DataSent.
func (s *Stream) Close() error {
	if s.sendState != SendSend && s.sendState != SendReady {
		return qerrors.New(qerrors.CodeStreamStateError, "close on a stream not in Ready/Send state")
	}
	s.haveSendFin = true
	s.sendFinAt = s.sendOff + uint64(len(s.sendQueue))
	s.sendState = SendDataSent
	return nil
}

// NextSendChunk returns the largest prefix of the queued send data that
// fits within maxLen and the available connection+stream flow-control
// budget, tagged with its offset and whether it carries FIN. Returns ok=
// false if there's nothing sendable right now.
func (s *Stream) NextSendChunk(maxLen int, connBudget uint64) (chunk sendChunk, ok bool) {
	if s.sendState != SendSend && s.sendState != SendDataSent {
		return sendChunk{}, false
	}
	avail := uint64(len(s.sendQueue))
	if s.outFlow != nil {
		if a := s.outFlow.Available(); a < avail {
			avail = a
		}
	}
	if connBudget < avail {
		avail = connBudget
	}
	if uint64(maxLen) < avail {
		avail = uint64(maxLen)
	}
	fin := s.haveSendFin && avail == uint64(len(s.sendQueue))
	if avail == 0 && !fin {
		return sendChunk{}, false
	}

	data := s.sendQueue[:avail]
	c := sendChunk{Offset: s.sendOff, Data: data, Fin: fin}

	s.sendQueue = s.sendQueue[avail:]
	s.sendOff += avail
	if s.outFlow != nil {
		s.outFlow.Reserve(avail)
	}
	return c, true
}

// OnFrameAcked advances the send-side acked watermark; once it reaches
// the FIN offset, DataSent -> DataRecvd.
func (s *Stream) OnFrameAcked(offset uint64, length uint64) {
	if offset+length > s.sendAcked {
		s.sendAcked = offset + length
	}
	if s.sendState == SendDataSent && s.haveSendFin && s.sendAcked >= s.sendFinAt {
		s.sendState = SendDataRecvd
	}
}

// Reset transitions the send side straight to ResetSent from any
// non-terminal state: an app reset or protocol-forced reset moves any
// non-terminal state directly to ResetSent.
func (s *Stream) Reset(errorCode uint64) (*frame.ResetStream, error) {
	if s.sendState.Terminal() {
		return nil, qerrors.New(qerrors.CodeStreamStateError, "reset on a terminal send state")
	}
	s.resetErrorCode = errorCode
	s.sendState = SendResetSent
	finalSize := s.sendOff + uint64(len(s.sendQueue))
	return &frame.ResetStream{StreamID: uint64(s.ID), ErrorCode: errorCode, FinalSize: finalSize}, nil
}

// OnResetAcked transitions ResetSent -> ResetRecvd.
func (s *Stream) OnResetAcked() {
	if s.sendState == SendResetSent {
		s.sendState = SendResetRecvd
	}
}

// OnStreamFrame applies an incoming STREAM frame's payload to the recv
// side, running the Recv -> SizeKnown -> DataRecvd transitions and the
// reassembly buffer's final-size checks.
func (s *Stream) OnStreamFrame(offset uint64, data []byte, fin bool) error {
	if s.recvState == RecvResetRecvd || s.recvState == RecvResetRead {
		return nil // stream already abandoned; stale frame, ignore
	}
	if s.inFlow != nil {
		if _, _, err := s.inFlow.OnReceive(offset + uint64(len(data))); err != nil {
			return err
		}
	}
	if err := s.recv.Insert(offset, data, fin); err != nil {
		return err
	}
	if s.recvState == RecvRecv {
		s.recvState = RecvRecv
	}
	if _, have := s.recv.FinalSize(); have && s.recvState == RecvRecv {
		s.recvState = RecvSizeKnown
	}
	if s.recv.AllDataBuffered() && (s.recvState == RecvSizeKnown || s.recvState == RecvRecv) {
		s.recvState = RecvDataRecvd
	}
	return nil
}

// Read drains buffered, in-order bytes to the app; once everything up to
// final_size has been read, DataRecvd -> DataRead.
func (s *Stream) Read(buf []byte) int {
	n := s.recv.Read(buf)
	if s.recvState == RecvDataRecvd && s.recv.AllDataRead() {
		s.recvState = RecvDataRead
	}
	return n
}

// OnResetStreamFrame applies a peer RESET_STREAM, abandoning the recv
// side from any non-terminal state.
func (s *Stream) OnResetStreamFrame(errorCode uint64) {
	if s.recvState.Terminal() {
		return
	}
	s.peerResetCode = errorCode
	s.recvState = RecvResetRecvd
}

// AckResetNotified transitions ResetRecvd -> ResetRead once the app has
// been notified of the reset.
func (s *Stream) AckResetNotified() {
	if s.recvState == RecvResetRecvd {
		s.recvState = RecvResetRead
	}
}

// PeerResetCode returns the error code the peer reset this stream with.
func (s *Stream) PeerResetCode() uint64 { return s.peerResetCode }

// OnMaxStreamData applies a peer MAX_STREAM_DATA frame to this stream's
// outgoing flow-control window.
func (s *Stream) OnMaxStreamData(max uint64) {
	if s.outFlow != nil {
		s.outFlow.OnLimitRaised(max)
	}
}

// StopSending asks the peer to abandon sending on this stream. Distinct
// from Reset: it acts on the recv side and does not itself transition
// local state, only the peer's answering RESET_STREAM does.
func (s *Stream) StopSending(errorCode uint64) *frame.StopSending {
	return &frame.StopSending{StreamID: uint64(s.ID), ErrorCode: errorCode}
}
