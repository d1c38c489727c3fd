package cidreg

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/opencontainers/go-digest"
)

// StatelessResetToken derives the 16-byte token RFC 9000 §10.3 carries in
// NEW_CONNECTION_ID and compares against a datagram's trailing bytes: an
// HMAC-SHA256 of cid under this shard's secret, truncated to 16 bytes.
// Deterministic per (secret, cid) so it never needs its own storage beyond
// the retired-CID set Retire maintains.
//
// Computed through the same digest.Digest-shaped API a content-addressed
// blob store uses for hashing (digest.NewDigest wraps an arbitrary
// hash.Hash, so HMAC slots in unchanged); the 16-byte wire token is the
// digest's first 16 raw bytes rather than its full hex string.
func (r *Registry[T]) StatelessResetToken(cid []byte) [16]byte {
	h := hmac.New(sha256.New, r.secret[:])
	h.Write(cid)
	d := digest.NewDigest(digest.SHA256, h)

	raw, err := hex.DecodeString(d.Hex())
	if err != nil {
		panic("cidreg: digest.NewDigest produced non-hex output: " + err.Error())
	}
	var token [16]byte
	copy(token[:], raw[:16])
	return token
}

// IsStatelessReset reports whether the final 16 bytes of datagram match a
// token this registry has recorded for a retired connection ID (RFC 9000
// §10.3).
func (r *Registry[T]) IsStatelessReset(datagram []byte) bool {
	if len(datagram) < 16 {
		return false
	}
	var tail [16]byte
	copy(tail[:], datagram[len(datagram)-16:])
	_, ok := r.retiredTokens[tail]
	return ok
}
