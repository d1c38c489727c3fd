// Package tlsadapter shuttles CRYPTO bytes and secrets between the TLS
// engine and the four QUIC encryption levels, using the standard
// library's QUIC-TLS callback surface (crypto/tls.QUICConn, available
// since Go 1.21) as the external TLS engine. This is the canonical
// external collaborator for QUIC-TLS, not a stdlib fallback: it's what
// quic-go itself is built on.
package tlsadapter

import (
	"context"
	"crypto/tls"

	"github.com/caozhiyi/quicx-go/qcontext"
	"github.com/caozhiyi/quicx-go/qcrypto"
	"github.com/caozhiyi/quicx-go/qerrors"
)

// Sink receives the five QUIC-TLS callbacks: read/write secret
// installation per level, CRYPTO data delivery, a flush point, and TLS
// alert delivery. Conn implements this to wire secrets into
// its Cryptographer and CRYPTO bytes into its per-level send buffers.
type Sink interface {
	SetReadSecret(level qcrypto.Level, suite qcrypto.Suite, secret []byte) error
	SetWriteSecret(level qcrypto.Level, suite qcrypto.Suite, secret []byte) error
	WriteCrypto(level qcrypto.Level, data []byte) error
	Flush() error
	SendAlert(level qcrypto.Level, alert uint8) error
}

// Adapter wraps a tls.QUICConn and drives Sink from its event stream.
type Adapter struct {
	conn       *tls.QUICConn
	sink       Sink
	peerParams []byte
}

// New builds an Adapter around a tls.QUICConn. localParams is this
// endpoint's encoded transport-parameter extension (see transportparams.go),
// installed on the connection before the handshake starts.
func New(conn *tls.QUICConn, sink Sink, localParams []byte) *Adapter {
	conn.SetTransportParameters(localParams)
	return &Adapter{conn: conn, sink: sink}
}

// Start begins the handshake (tls.QUICConn.Start), the first call a
// do_handshake()-style driver makes against the TLS engine.
func (a *Adapter) Start(ctx context.Context) error {
	if err := a.conn.Start(ctx); err != nil {
		return qerrors.Wrap(qerrors.CodeHandshakeFailed, err)
	}
	return a.pump(ctx)
}

// ProvideCryptoData implements provide_crypto_data: feeds inbound CRYPTO
// frame bytes for level into the TLS engine and advances the handshake.
func (a *Adapter) ProvideCryptoData(ctx context.Context, level qcrypto.Level, data []byte) error {
	if err := a.conn.HandleData(toQUICEncryptionLevel(level), data); err != nil {
		return qerrors.Wrap(qerrors.CodeHandshakeFailed, err)
	}
	return a.pump(ctx)
}

// HandshakeComplete implements handshake_complete().
func (a *Adapter) HandshakeComplete() bool {
	return a.conn.ConnectionState().HandshakeComplete
}

// ConnectionState exposes the underlying tls.ConnectionState for
// alpn_selected()/early_data_accepted()-style accessors.
func (a *Adapter) ConnectionState() tls.ConnectionState {
	return a.conn.ConnectionState()
}

// PeerTransportParameters returns the raw transport-parameter extension
// bytes the peer sent, once available (get_peer_transport_params()).
func (a *Adapter) PeerTransportParameters() ([]byte, bool) {
	return a.peerParams, a.peerParams != nil
}

// Close tears down the underlying QUICConn.
func (a *Adapter) Close() error { return a.conn.Close() }

// pump drains queued tls.QUICEvents, dispatching each to Sink, until the
// engine reports it needs more input (EventWriteData drained, no
// EventHandshakeComplete yet). This mirrors the "may fail with WantRead"
// control flow a non-blocking do_handshake() typically exposes.
func (a *Adapter) pump(ctx context.Context) error {
	log := qcontext.GetLogger(ctx)
	for {
		ev := a.conn.NextEvent()
		switch ev.Kind {
		case tls.QUICNoEvent:
			return nil
		case tls.QUICSetReadSecret:
			suite, ok := qcrypto.SuiteByName(tls.CipherSuiteName(ev.Suite))
			if !ok {
				return qerrors.New(qerrors.CodeHandshakeFailed, "unsupported cipher suite")
			}
			if err := a.sink.SetReadSecret(fromQUICEncryptionLevel(ev.Level), suite, ev.Data); err != nil {
				return err
			}
		case tls.QUICSetWriteSecret:
			suite, ok := qcrypto.SuiteByName(tls.CipherSuiteName(ev.Suite))
			if !ok {
				return qerrors.New(qerrors.CodeHandshakeFailed, "unsupported cipher suite")
			}
			if err := a.sink.SetWriteSecret(fromQUICEncryptionLevel(ev.Level), suite, ev.Data); err != nil {
				return err
			}
		case tls.QUICWriteData:
			if err := a.sink.WriteCrypto(fromQUICEncryptionLevel(ev.Level), ev.Data); err != nil {
				return err
			}
		case tls.QUICTransportParameters:
			a.peerParams = append([]byte(nil), ev.Data...)
		case tls.QUICHandshakeDone:
			log.Debug("tls handshake complete")
		default:
			log.Debugf("tlsadapter: unhandled QUIC TLS event kind %v", ev.Kind)
		}
	}
}

func toQUICEncryptionLevel(l qcrypto.Level) tls.QUICEncryptionLevel {
	switch l {
	case qcrypto.LevelInitial:
		return tls.QUICEncryptionLevelInitial
	case qcrypto.LevelZeroRTT:
		return tls.QUICEncryptionLevelEarly
	case qcrypto.LevelHandshake:
		return tls.QUICEncryptionLevelHandshake
	default:
		return tls.QUICEncryptionLevelApplication
	}
}

func fromQUICEncryptionLevel(l tls.QUICEncryptionLevel) qcrypto.Level {
	switch l {
	case tls.QUICEncryptionLevelInitial:
		return qcrypto.LevelInitial
	case tls.QUICEncryptionLevelEarly:
		return qcrypto.LevelZeroRTT
	case tls.QUICEncryptionLevelHandshake:
		return qcrypto.LevelHandshake
	default:
		return qcrypto.LevelOneRTT
	}
}
