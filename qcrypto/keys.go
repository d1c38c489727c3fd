package qcrypto

// KeySet holds one direction's derived key material for one encryption
// level: the AEAD key, the AEAD IV, and the header-protection key.
type KeySet struct {
	Suite Suite
	Key   []byte
	IV    []byte
	HP    []byte
}

func deriveKeySet(suite Suite, secret []byte) KeySet {
	return KeySet{
		Suite: suite,
		Key:   hkdfExpandLabel(suite.NewHash, secret, "quic key", suite.KeyLen),
		IV:    hkdfExpandLabel(suite.NewHash, secret, "quic iv", suite.IVLen),
		HP:    hkdfExpandLabel(suite.NewHash, secret, "quic hp", suite.KeyLen),
	}
}

// nextSecret derives the next generation's secret for 1-RTT key update,
// per RFC 9001 §6 using the "quic ku" label.
func nextSecret(suite Suite, secret []byte) []byte {
	return hkdfExpandLabel(suite.NewHash, secret, "quic ku", len(secret))
}

// nonce XORs iv with the packet number, big-endian, in the low-order
// bytes, per RFC 9001 §5.3.
func nonce(iv []byte, pn uint64) []byte {
	out := make([]byte, len(iv))
	copy(out, iv)
	for i := 0; i < 8; i++ {
		out[len(out)-1-i] ^= byte(pn >> (8 * i))
	}
	return out
}
