package qcrypto

import (
	"github.com/caozhiyi/quicx-go/qerrors"
)

// levelKeys holds both directions' key sets for one encryption level.
type levelKeys struct {
	read, write *KeySet
}

// oneRTTKeys additionally tracks the previous generation's read keys, kept
// around briefly so a reordered packet encrypted under the old key phase
// still decrypts. Rotation is rate-limited to at most once per RTT by
// the caller; this type just tracks current vs. previous.
type oneRTTKeys struct {
	levelKeys
	keyPhase     bool // current write key-phase bit
	prevRead     *KeySet
	nextReadSeed []byte // secret the read side rotates TO, precomputed so a peer's flip is never a surprise
	nextWriteSeed []byte
}

// Cryptographer is the per-connection set of key schedules across all four
// encryption levels.
type Cryptographer struct {
	levels  [3]levelKeys // Initial, 0-RTT, Handshake
	oneRTT  oneRTTKeys
}

// New returns a Cryptographer with no keys installed.
func New() *Cryptographer { return &Cryptographer{} }

// InstallInitialKeys derives and installs both directions' Initial keys
// from the client's original DCID, per RFC 9001 §5.2. isClient selects
// which derived secret (client-in/server-in) becomes this side's write
// secret.
func (c *Cryptographer) InstallInitialKeys(clientDCID []byte, isClient bool) {
	clientSecret, serverSecret := deriveInitialSecrets(clientDCID)
	mine, peer := serverSecret, clientSecret
	if isClient {
		mine, peer = clientSecret, serverSecret
	}
	writeKeys := deriveKeySet(SuiteAES128GCM, mine)
	readKeys := deriveKeySet(SuiteAES128GCM, peer)
	c.levels[LevelInitial] = levelKeys{read: &readKeys, write: &writeKeys}
}

// InstallSecret implements install_secret(level, direction, secret): derives
// key/iv/hp for secret under suite and installs it for level and direction.
func (c *Cryptographer) InstallSecret(level Level, dir Direction, suite Suite, secret []byte) {
	ks := deriveKeySet(suite, secret)
	switch level {
	case LevelOneRTT:
		if dir == DirectionRead {
			c.oneRTT.read = &ks
			c.oneRTT.nextReadSeed = secret
		} else {
			c.oneRTT.write = &ks
			c.oneRTT.nextWriteSeed = secret
		}
	default:
		lk := &c.levels[level]
		if dir == DirectionRead {
			lk.read = &ks
		} else {
			lk.write = &ks
		}
	}
}

// DiscardLevel drops keys for a level once RFC 9001 §4.9 conditions are
// met (Initial after Handshake keys install; Handshake after the
// handshake is confirmed), bounding per-level CRYPTO buffer and key
// material lifetime.
func (c *Cryptographer) DiscardLevel(level Level) {
	if level == LevelOneRTT {
		return
	}
	c.levels[level] = levelKeys{}
}

func (c *Cryptographer) keysFor(level Level, dir Direction) (*KeySet, error) {
	var ks *KeySet
	if level == LevelOneRTT {
		if dir == DirectionRead {
			ks = c.oneRTT.read
		} else {
			ks = c.oneRTT.write
		}
	} else {
		lk := c.levels[level]
		if dir == DirectionRead {
			ks = lk.read
		} else {
			ks = lk.write
		}
	}
	if ks == nil {
		return nil, qerrors.New(qerrors.CodeKeyNotAvailable, level.String())
	}
	return ks, nil
}

// Protect implements protect(level, direction, pn, header, payload): AEAD
// seal with associated data = header (RFC 9001 §5). It does not apply
// header protection; ApplyHeaderProtection does that separately.
func (c *Cryptographer) Protect(level Level, pn uint64, header, payload []byte) ([]byte, error) {
	ks, err := c.keysFor(level, DirectionWrite)
	if err != nil {
		return nil, err
	}
	aead, err := ks.Suite.AEAD(ks.Key)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CodeKeyNotAvailable, err)
	}
	sealed := aead.Seal(nil, nonce(ks.IV, pn), payload, header)
	return sealed, nil
}

// ApplyHeaderProtection XORs the 5-byte mask derived from sample into
// header in place: the low 5 bits of the first byte for a short header (4
// for long), and the pnLen bytes at pnOffset, per RFC 9001 §5.4.1.
func ApplyHeaderProtection(ks *KeySet, header []byte, pnOffset, pnLen int, sample []byte, isLongHeader bool) error {
	mask, err := ks.Suite.HPMask(ks.HP, sample)
	if err != nil {
		return qerrors.Wrap(qerrors.CodeKeyNotAvailable, err)
	}
	firstByteMask := byte(0x1f)
	if isLongHeader {
		firstByteMask = 0x0f
	}
	header[0] ^= mask[0] & firstByteMask
	for i := 0; i < pnLen; i++ {
		header[pnOffset+i] ^= mask[1+i]
	}
	return nil
}

// KeysFor exposes the installed KeySet for level/dir so the packet codec
// can drive header protection and sampling without qcrypto knowing about
// packet layout.
func (c *Cryptographer) KeysFor(level Level, dir Direction) (*KeySet, error) {
	return c.keysFor(level, dir)
}

// Unprotect implements unprotect(level, pn, header, ciphertext): AEAD open
// with associated data = header. Decrypt failure is a silent drop per §7,
// never escalated.
func (c *Cryptographer) Unprotect(level Level, pn uint64, header, ciphertext []byte) ([]byte, error) {
	ks, err := c.keysFor(level, DirectionRead)
	if err != nil {
		return nil, err
	}
	aead, err := ks.Suite.AEAD(ks.Key)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CodeKeyNotAvailable, err)
	}
	plain, err := aead.Open(nil, nonce(ks.IV, pn), ciphertext, header)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CodeDecryptFailed, err)
	}
	return plain, nil
}

// UnprotectWithPreviousPhase retries Unprotect against the previous 1-RTT
// read generation, for a packet whose key-phase bit doesn't match the
// current generation but that arrived before the peer's flip was observed
// locally (reordering across a key update).
func (c *Cryptographer) UnprotectWithPreviousPhase(pn uint64, header, ciphertext []byte) ([]byte, error) {
	if c.oneRTT.prevRead == nil {
		return nil, qerrors.New(qerrors.CodeKeyNotAvailable, "no previous 1-RTT read keys")
	}
	ks := c.oneRTT.prevRead
	aead, err := ks.Suite.AEAD(ks.Key)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CodeKeyNotAvailable, err)
	}
	plain, err := aead.Open(nil, nonce(ks.IV, pn), ciphertext, header)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CodeDecryptFailed, err)
	}
	return plain, nil
}

// KeyPhase returns the current write key-phase bit to stamp onto outgoing
// 1-RTT short headers.
func (c *Cryptographer) KeyPhase() bool { return c.oneRTT.keyPhase }

// RotateOneRTTKeys implements rotate_1rtt_keys: derives the next secret
// generation for both directions via the "quic ku" label and promotes it
// to current, keeping the prior read generation around for reordered
// packets. Callers (conn) are responsible for enforcing the at-most-once-
// per-RTT policy; this method only performs the mechanical rotation.
func (c *Cryptographer) RotateOneRTTKeys() error {
	if c.oneRTT.read == nil || c.oneRTT.write == nil {
		return qerrors.New(qerrors.CodeKeyNotAvailable, "1-RTT keys not installed")
	}
	suite := c.oneRTT.read.Suite
	newReadSecret := nextSecret(suite, c.oneRTT.nextReadSeed)
	newWriteSecret := nextSecret(suite, c.oneRTT.nextWriteSeed)

	prevRead := c.oneRTT.read
	newRead := deriveKeySet(suite, newReadSecret)
	newWrite := deriveKeySet(suite, newWriteSecret)

	c.oneRTT.prevRead = prevRead
	c.oneRTT.read = &newRead
	c.oneRTT.write = &newWrite
	c.oneRTT.nextReadSeed = newReadSecret
	c.oneRTT.nextWriteSeed = newWriteSecret
	c.oneRTT.keyPhase = !c.oneRTT.keyPhase
	return nil
}
