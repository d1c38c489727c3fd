// Package cidreg implements the per-shard connection-ID registry and
// datagram demuxer. It maps destination connection IDs (4-20 bytes, RFC
// 9000 §17.2) to connection handles, tracks which CIDs have been retired
// so a later stray packet ending in one of their stateless-reset tokens is
// recognized, and
// classifies every inbound datagram into one of four outcomes: matched
// connection, stateless-reset probe, candidate new server connection, or
// unroutable drop.
//
// Shaped after a content-addressed blob registry (a key maps to a
// handle, looked up before any expensive work happens), generalized from
// digests to connection IDs.
package cidreg

import (
	"crypto/rand"

	"github.com/caozhiyi/quicx-go/qerrors"
)

// minCIDLen/maxCIDLen bound the connection-ID lengths this registry accepts.
const (
	minCIDLen = 4
	maxCIDLen = 20
)

// Registry is a process- or thread-local map from connection ID to a
// connection handle of type T (normally *conn.Conn; kept generic so this
// package never imports conn and can be unit-tested in isolation).
type Registry[T any] struct {
	byCID         map[string]T
	retiredTokens map[[16]byte]struct{}
	shortCIDLen   int
	secret        [32]byte
}

// New builds an empty registry. secret seeds this shard's stateless-reset
// token derivation; shortCIDLen is the length this socket assigns to its
// own short-header CIDs, since short headers carry no length of their
// own on the wire.
func New[T any](secret [32]byte, shortCIDLen int) *Registry[T] {
	return &Registry[T]{
		byCID:         map[string]T{},
		retiredTokens: map[[16]byte]struct{}{},
		shortCIDLen:   shortCIDLen,
		secret:        secret,
	}
}

// Generate mints a new random connection ID of length n (4-20 bytes).
func Generate(n int) ([]byte, error) {
	if n < minCIDLen || n > maxCIDLen {
		return nil, qerrors.New(qerrors.CodeProtocolViolation, "connection ID length out of RFC 9000 §17.2 bounds")
	}
	cid := make([]byte, n)
	if _, err := rand.Read(cid); err != nil {
		return nil, qerrors.Wrap(qerrors.CodeOutOfMemory, err)
	}
	return cid, nil
}

// Register binds cid to handle, rejecting a length outside RFC 9000
// §17.2's bounds or a collision with an already-registered CID (reported
// as a CodeConnectionIDLimit error).
func (r *Registry[T]) Register(cid []byte, handle T) error {
	if len(cid) < minCIDLen || len(cid) > maxCIDLen {
		return qerrors.New(qerrors.CodeProtocolViolation, "connection ID length out of RFC 9000 §17.2 bounds")
	}
	key := string(cid)
	if _, exists := r.byCID[key]; exists {
		return qerrors.New(qerrors.CodeConnectionIDLimit, "connection ID already registered")
	}
	r.byCID[key] = handle
	return nil
}

// Lookup returns the handle registered for cid, if any.
func (r *Registry[T]) Lookup(cid []byte) (T, bool) {
	h, ok := r.byCID[string(cid)]
	return h, ok
}

// Retire removes cid from the active table and records its stateless-reset
// token, so a later stray datagram ending in that token is recognized as
// referring to a connection this shard no longer tracks.
func (r *Registry[T]) Retire(cid []byte) {
	delete(r.byCID, string(cid))
	r.retiredTokens[r.StatelessResetToken(cid)] = struct{}{}
}

// ShortCIDLen returns the DCID length this shard's short-header packets
// use, for Demux to slice short headers without an on-wire length field.
func (r *Registry[T]) ShortCIDLen() int { return r.shortCIDLen }
