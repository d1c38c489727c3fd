package qcrypto

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"

	"golang.org/x/crypto/hkdf"
)

// hkdfExpandLabel implements TLS 1.3's HKDF-Expand-Label (RFC 8446 §7.1),
// as RFC 9001 §5.1 repurposes it for "quic key"/"quic iv"/"quic hp"/"quic ku".
func hkdfExpandLabel(newHash func() hash.Hash, secret []byte, label string, length int) []byte {
	fullLabel := "tls13 " + label
	hkdfLabel := make([]byte, 0, 2+1+len(fullLabel)+1)
	hkdfLabel = binary.BigEndian.AppendUint16(hkdfLabel, uint16(length))
	hkdfLabel = append(hkdfLabel, byte(len(fullLabel)))
	hkdfLabel = append(hkdfLabel, fullLabel...)
	hkdfLabel = append(hkdfLabel, 0) // empty Context

	out := make([]byte, length)
	r := hkdf.Expand(newHash, secret, hkdfLabel)
	if _, err := readFull(r, out); err != nil {
		panic("qcrypto: hkdf-expand-label: " + err.Error())
	}
	return out
}

func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// initialSalt is the RFC 9001 §5.2 salt for QUIC version 1.
var initialSalt = []byte{
	0x38, 0x76, 0x2c, 0xf7, 0xf5, 0x59, 0x34, 0xb3,
	0x4d, 0x17, 0x9a, 0xe6, 0xa4, 0xc8, 0x0c, 0xad,
	0xcc, 0xbb, 0x7f, 0x0a,
}

// deriveInitialSecrets derives the client and server Initial secrets from
// the client's original DCID, per RFC 9001 §5.2.
func deriveInitialSecrets(clientDCID []byte) (clientSecret, serverSecret []byte) {
	initialSecret := hkdf.Extract(sha256.New, clientDCID, initialSalt)
	clientSecret = hkdfExpandLabel(sha256.New, initialSecret, "client in", sha256.Size)
	serverSecret = hkdfExpandLabel(sha256.New, initialSecret, "server in", sha256.Size)
	return
}
