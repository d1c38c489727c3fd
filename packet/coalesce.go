package packet

import (
	"github.com/caozhiyi/quicx-go/qerrors"
	"github.com/caozhiyi/quicx-go/varint"
)

// Split divides one UDP datagram into its constituent packets (RFC 9000
// §12.2): zero or more long-header packets, each self-delimited by its
// Length field, followed by at most one short-header packet running to
// the end of the datagram. It does not decrypt anything: Length is read
// directly off the wire, which is always unprotected.
func Split(datagram []byte) ([][]byte, error) {
	var packets [][]byte
	rest := datagram
	for len(rest) > 0 {
		if !IsLongHeader(rest[0]) {
			packets = append(packets, rest)
			break
		}
		n, err := longPacketLen(rest)
		if err != nil {
			return nil, err
		}
		if n > len(rest) {
			return nil, qerrors.New(qerrors.CodeShortBuffer, "coalesced packet length exceeds datagram")
		}
		packets = append(packets, rest[:n])
		rest = rest[n:]
	}
	return packets, nil
}

// longPacketLen computes the total wire length of the long-header packet
// at the front of data, without removing header protection: 1 (first
// byte) + 4 (version) + 1+dcidLen + 1+scidLen [+ token varint+bytes for
// Initial] + length-varint-size + Length.
func longPacketLen(data []byte) (int, error) {
	if len(data) < 6 {
		return 0, qerrors.New(qerrors.CodeShortBuffer, "long header truncated")
	}
	pos := 1
	pos += 4 // version
	if pos >= len(data) {
		return 0, qerrors.New(qerrors.CodeShortBuffer, "long header truncated")
	}
	dcidLen := int(data[pos])
	pos++
	pos += dcidLen
	if pos >= len(data) {
		return 0, qerrors.New(qerrors.CodeShortBuffer, "long header truncated")
	}
	scidLen := int(data[pos])
	pos++
	pos += scidLen
	if pos > len(data) {
		return 0, qerrors.New(qerrors.CodeShortBuffer, "long header truncated")
	}

	longType := LongType((data[0] >> 4) & 0x03)
	if longType == LongTypeInitial {
		tokenLen, n, err := decodeVarintAt(data, pos)
		if err != nil {
			return 0, err
		}
		pos += n + int(tokenLen)
	}
	if pos > len(data) {
		return 0, qerrors.New(qerrors.CodeShortBuffer, "long header truncated")
	}

	length, n, err := decodeVarintAt(data, pos)
	if err != nil {
		return 0, err
	}
	pos += n
	return pos + int(length), nil
}

func decodeVarintAt(data []byte, pos int) (uint64, int, error) {
	if pos >= len(data) {
		return 0, 0, qerrors.New(qerrors.CodeShortBuffer, "varint truncated")
	}
	return varint.Decode(data[pos:])
}
