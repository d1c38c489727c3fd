package conn

import "github.com/caozhiyi/quicx-go/stream"

// cryptoStream is a CRYPTO frame's reliable byte stream, scoped to one
// encryption level: CRYPTO frames exist independently per level, so the
// reassembly buffer must be scoped to the level too. It reuses
// stream.Reassembly for inbound reordering since CRYPTO shares STREAM's
// offset/dedup semantics without a final size or flow control.
type cryptoStream struct {
	recv   *stream.Reassembly
	toSend []byte
	sendOff uint64
}

func newCryptoStream() *cryptoStream {
	return &cryptoStream{recv: stream.NewReassembly()}
}

// onCryptoFrame feeds inbound bytes into the reassembly buffer and drains
// every contiguous byte currently available, since CRYPTO data must be
// handed to the TLS engine in order but has no end-of-stream marker to
// wait for.
func (c *cryptoStream) onCryptoFrame(offset uint64, data []byte) ([]byte, error) {
	if err := c.recv.Insert(offset, data, false); err != nil {
		return nil, err
	}
	var out []byte
	buf := make([]byte, 4096)
	for {
		n := c.recv.Read(buf)
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
	}
	return out, nil
}

// queue appends TLS-engine-produced bytes to the outgoing CRYPTO buffer.
func (c *cryptoStream) queue(data []byte) {
	c.toSend = append(c.toSend, data...)
}

// pending reports how many outgoing bytes are queued.
func (c *cryptoStream) pending() int { return len(c.toSend) }

// nextChunk returns up to maxLen bytes of outgoing CRYPTO data tagged
// with its stream offset, consuming them from the send queue.
func (c *cryptoStream) nextChunk(maxLen int) (offset uint64, data []byte) {
	n := len(c.toSend)
	if n > maxLen {
		n = maxLen
	}
	if n == 0 {
		return 0, nil
	}
	chunk := c.toSend[:n]
	c.toSend = c.toSend[n:]
	off := c.sendOff
	c.sendOff += uint64(n)
	return off, chunk
}

// discard drops buffered state once the level is no longer needed, so
// memory for a freed packet-number space doesn't linger.
func (c *cryptoStream) discard() {
	c.recv = stream.NewReassembly()
	c.toSend = nil
}
