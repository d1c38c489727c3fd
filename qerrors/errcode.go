// Package qerrors implements the transport's error taxonomy: every fatal
// error is a registered ErrorCode carrying the RFC 9000 §20.1 numeric
// transport error code it maps to in a CONNECTION_CLOSE frame.
//
// The shape follows registry/api/errcode: a package-level registry of
// descriptors, and an Error value that pairs a code with call-site detail.
package qerrors

import (
	"fmt"
	"sync"
)

// Code identifies one error in the taxonomy.
type Code uint32

// TransportCode is the wire value carried in a CONNECTION_CLOSE (frame type
// 0x1c) error-code field, per RFC 9000 §20.1.
type TransportCode uint64

// Well-known transport error codes, RFC 9000 §20.1.
const (
	TransportNoError               TransportCode = 0x0
	TransportInternalError         TransportCode = 0x1
	TransportConnectionRefused     TransportCode = 0x2
	TransportFlowControlError      TransportCode = 0x3
	TransportStreamLimitError      TransportCode = 0x4
	TransportStreamStateError      TransportCode = 0x5
	TransportFinalSizeError        TransportCode = 0x6
	TransportFrameEncodingError    TransportCode = 0x7
	TransportTransportParamError   TransportCode = 0x8
	TransportConnectionIDLimitErr  TransportCode = 0x9
	TransportProtocolViolation     TransportCode = 0xa
	TransportInvalidToken          TransportCode = 0xb
	TransportApplicationError      TransportCode = 0xc
	TransportCryptoBufferExceeded  TransportCode = 0xd
	TransportKeyUpdateError        TransportCode = 0xe
	TransportAEADLimitReached      TransportCode = 0xf
	TransportNoViablePath          TransportCode = 0x10
	TransportCryptoErrorRangeStart TransportCode = 0x100 // + TLS alert
)

// Descriptor documents one registered error code.
type Descriptor struct {
	Code      Code
	Value     string // stable identifier, e.g. "FLOW_CONTROL_ERROR"
	Message   string
	Transport TransportCode // 0 when this error never maps to a wire code (operational signals)
}

var (
	mu          sync.Mutex
	descriptors = map[Code]Descriptor{}
	nextCode    Code = 1
)

func register(value, message string, transport TransportCode) Code {
	mu.Lock()
	defer mu.Unlock()
	c := nextCode
	nextCode++
	descriptors[c] = Descriptor{Code: c, Value: value, Message: message, Transport: transport}
	return c
}

// Descriptor for profile c's Code.
func DescriptorFor(c Code) Descriptor {
	mu.Lock()
	defer mu.Unlock()
	return descriptors[c]
}

// Codec errors: fatal to the connection on receive.
var (
	CodeShortBuffer       = register("SHORT_BUFFER", "buffer too short for operation", TransportFrameEncodingError)
	CodeVarintOverflow    = register("VARINT_OVERFLOW", "varint exceeds 62-bit range", TransportFrameEncodingError)
	CodeFrameEncodingErr  = register("FRAME_ENCODING_ERROR", "malformed frame", TransportFrameEncodingError)
	CodeUnknownFrame      = register("UNKNOWN_FRAME", "unrecognized frame type", TransportFrameEncodingError)
)

// Crypto errors.
var (
	CodeDecryptFailed   = register("DECRYPT_FAILED", "AEAD open failed", 0) // silent drop, never on the wire
	CodeKeyNotAvailable = register("KEY_NOT_AVAILABLE", "no keys installed for encryption level", 0)
	CodeHandshakeFailed = register("HANDSHAKE_FAILED", "TLS handshake failed", TransportCryptoErrorRangeStart)
)

// Protocol errors: fatal, CONNECTION_CLOSE with the specific code.
var (
	CodeFlowControlError    = register("FLOW_CONTROL_ERROR", "peer exceeded a flow control limit", TransportFlowControlError)
	CodeStreamLimitError    = register("STREAM_LIMIT_ERROR", "peer exceeded a stream count limit", TransportStreamLimitError)
	CodeStreamStateError    = register("STREAM_STATE_ERROR", "frame invalid for stream's current state", TransportStreamStateError)
	CodeFinalSizeError      = register("FINAL_SIZE_ERROR", "stream data conflicts with a known final size", TransportFinalSizeError)
	CodeProtocolViolation   = register("PROTOCOL_VIOLATION", "generic protocol invariant violated", TransportProtocolViolation)
	CodeTransportParamError = register("TRANSPORT_PARAMETER_ERROR", "invalid or forbidden transport parameter", TransportTransportParamError)
	CodeConnectionIDLimit   = register("CONNECTION_ID_LIMIT_ERROR", "too many connection IDs issued", TransportConnectionIDLimitErr)
	CodeInvalidToken        = register("INVALID_TOKEN", "Retry or NEW_TOKEN token failed validation", TransportInvalidToken)
)

// Resource errors: fatal to the affected connection only.
var (
	CodeOutOfMemory  = register("OUT_OF_MEMORY", "resource exhausted", TransportInternalError)
	CodeSocketError  = register("SOCKET_ERROR", "underlying socket I/O failed", TransportInternalError)
)

// Application errors: local to a stream, connection survives.
var (
	CodeStreamReset  = register("STREAM_RESET", "peer reset the stream", 0)
	CodeStopSending  = register("STOP_SENDING", "peer asked to stop sending", 0)
)

// Operational signals: expected control-flow outcomes, never CONNECTION_CLOSE.
var (
	CodeWouldBlock = register("WOULD_BLOCK", "operation would block", 0)
	CodeAgain      = register("AGAIN", "retry the operation", 0)
	CodeTimeout    = register("TIMEOUT", "operation timed out", 0)
)

// Error pairs a registered Code with call-site detail. It implements the
// standard error interface and Unwrap so callers can errors.Is/As against
// sentinel codes while still rendering a useful message.
type Error struct {
	Code    Code
	Detail  string
	Wrapped error
}

// New builds an Error for code with an optional detail message.
func New(code Code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

// Newf is New with fmt.Sprintf-style formatting for Detail.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches code to an underlying error, preserving it for errors.Unwrap.
func Wrap(code Code, err error) *Error {
	return &Error{Code: code, Wrapped: err}
}

func (e *Error) Error() string {
	d := DescriptorFor(e.Code)
	switch {
	case e.Wrapped != nil:
		return fmt.Sprintf("%s: %v", d.Value, e.Wrapped)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", d.Value, e.Detail)
	default:
		return d.Message
	}
}

func (e *Error) Unwrap() error { return e.Wrapped }

// TransportCode returns the RFC 9000 §20.1 error code this Error maps to
// for a CONNECTION_CLOSE frame. A result of TransportNoError with a
// non-nil descriptor indicates "this is not a wire-visible error" (decrypt
// failures, missing keys, operational signals, app-local stream errors) and callers
// must not build a CONNECTION_CLOSE from it directly.
func (e *Error) TransportCode() TransportCode {
	return DescriptorFor(e.Code).Transport
}

// IsFatal reports whether this error must transition the connection to
// Closing.
func (e *Error) IsFatal() bool {
	switch e.Code {
	case CodeDecryptFailed, CodeWouldBlock, CodeAgain, CodeTimeout,
		CodeStreamReset, CodeStopSending:
		return false
	default:
		return true
	}
}
