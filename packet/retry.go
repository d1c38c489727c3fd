package packet

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/caozhiyi/quicx-go/qerrors"
	"github.com/caozhiyi/quicx-go/varint"
)

// retryAEADKey and retryAEADNonce are the well-known values RFC 9001 §5.8
// defines for Retry integrity protection (QUIC v1).
var (
	retryAEADKey   = []byte{0xbe, 0x0c, 0x69, 0x0b, 0x9f, 0x66, 0x57, 0x5a, 0x1d, 0x76, 0x6b, 0x54, 0xe3, 0x68, 0xc8, 0x4e}
	retryAEADNonce = []byte{0x46, 0x15, 0x99, 0xd3, 0x5d, 0x63, 0x2b, 0xf2, 0x23, 0x98, 0x25, 0xbb}
)

// RetryIntegrityTag computes the 16-byte tag over the Retry pseudo-packet:
// originalDCID length-prefixed, then the Retry packet bytes without the
// tag itself (RFC 9001 §5.8).
func RetryIntegrityTag(originalDCID, retryPacketWithoutTag []byte) ([]byte, error) {
	block, err := aes.NewCipher(retryAEADKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	pseudo := buildRetryPseudoPacket(originalDCID, retryPacketWithoutTag)
	sealed := aead.Seal(nil, retryAEADNonce, nil, pseudo)
	return sealed, nil // GCM(plaintext="") output is exactly the 16-byte tag
}

// VerifyRetry reports whether a received Retry packet's trailing 16 bytes
// match the integrity tag computed from originalDCID. Clients must verify
// this before acting on a Retry.
func VerifyRetry(originalDCID, retryPacket []byte) (bool, error) {
	if len(retryPacket) < aeadTagLen {
		return false, qerrors.New(qerrors.CodeShortBuffer, "retry packet shorter than integrity tag")
	}
	body := retryPacket[:len(retryPacket)-aeadTagLen]
	gotTag := retryPacket[len(retryPacket)-aeadTagLen:]
	wantTag, err := RetryIntegrityTag(originalDCID, body)
	if err != nil {
		return false, err
	}
	if len(wantTag) != len(gotTag) {
		return false, nil
	}
	var diff byte
	for i := range wantTag {
		diff |= wantTag[i] ^ gotTag[i]
	}
	return diff == 0, nil
}

func buildRetryPseudoPacket(originalDCID, retryPacketWithoutTag []byte) []byte {
	cur := varint.NewWriteCursor(make([]byte, 0, 1+len(originalDCID)+len(retryPacketWithoutTag)))
	cur.WriteByte(byte(len(originalDCID)))
	cur.Write(originalDCID)
	cur.Write(retryPacketWithoutTag)
	return cur.Bytes()
}
