package qcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
)

// Suite names one of the three AEAD+header-protection pairs RFC 9001 §5.3
// defines: AES-128-GCM, AES-256-GCM, or ChaCha20-Poly1305.
type Suite struct {
	Name    string
	KeyLen  int
	IVLen   int
	NewHash func() hash.Hash
	aead    func(key []byte) (cipher.AEAD, error)
	hpMask  func(hpKey, sample []byte) ([5]byte, error)
}

func aesGCMAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func aesHPMask(hpKey, sample []byte) ([5]byte, error) {
	var mask [5]byte
	block, err := aes.NewCipher(hpKey)
	if err != nil {
		return mask, err
	}
	var out [16]byte
	block.Encrypt(out[:], sample)
	copy(mask[:], out[:5])
	return mask, nil
}

func chachaHPMask(hpKey, sample []byte) ([5]byte, error) {
	var mask [5]byte
	// sample = counter(4 bytes LE) || nonce(12 bytes), per RFC 9001 §5.4.4.
	counter := uint32(sample[0]) | uint32(sample[1])<<8 | uint32(sample[2])<<16 | uint32(sample[3])<<24
	c, err := chacha20.NewUnauthenticatedCipher(hpKey, sample[4:16])
	if err != nil {
		return mask, err
	}
	c.SetCounter(counter)
	var zeroes [5]byte
	c.XORKeyStream(mask[:], zeroes[:])
	return mask, nil
}

// AEAD builds the AEAD for this suite under key.
func (s Suite) AEAD(key []byte) (cipher.AEAD, error) { return s.aead(key) }

// HPMask derives the 5-byte header-protection mask from the sample, per
// RFC 9001 §5.4.
func (s Suite) HPMask(hpKey, sample []byte) ([5]byte, error) { return s.hpMask(hpKey, sample) }

var (
	SuiteAES128GCM = Suite{
		Name: "TLS_AES_128_GCM_SHA256", KeyLen: 16, IVLen: 12,
		NewHash: sha256.New, aead: aesGCMAEAD, hpMask: aesHPMask,
	}
	SuiteAES256GCM = Suite{
		Name: "TLS_AES_256_GCM_SHA384", KeyLen: 32, IVLen: 12,
		NewHash: sha512.New384, aead: aesGCMAEAD, hpMask: aesHPMask,
	}
	SuiteChaCha20Poly1305 = Suite{
		Name: "TLS_CHACHA20_POLY1305_SHA256", KeyLen: chacha20poly1305.KeySize, IVLen: 12,
		NewHash: sha256.New,
		aead: func(key []byte) (cipher.AEAD, error) { return chacha20poly1305.New(key) },
		hpMask: chachaHPMask,
	}
)

// SuiteByName looks up a Suite by its TLS 1.3 cipher suite name, as reported
// by the TLS engine's set_read_secret/set_write_secret callbacks.
func SuiteByName(name string) (Suite, bool) {
	switch name {
	case SuiteAES128GCM.Name:
		return SuiteAES128GCM, true
	case SuiteAES256GCM.Name:
		return SuiteAES256GCM, true
	case SuiteChaCha20Poly1305.Name:
		return SuiteChaCha20Poly1305, true
	default:
		return Suite{}, false
	}
}
