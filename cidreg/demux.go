package cidreg

import "github.com/caozhiyi/quicx-go/packet"

// Disposition classifies one inbound datagram for the endpoint runtime:
// which of the four routing outcomes applies.
type Disposition int

const (
	// DispositionMatched: the DCID names a live connection; Handle is set.
	DispositionMatched Disposition = iota
	// DispositionStatelessReset: the trailing 16 bytes match a token bound
	// to a retired CID; the caller should not route this datagram further.
	DispositionStatelessReset
	// DispositionNewConnectionCandidate: a long-header Initial with an
	// unrecognized DCID; the caller may spin up a new server connection.
	DispositionNewConnectionCandidate
	// DispositionUnroutable: neither of the above; drop silently.
	DispositionUnroutable
)

// Result is what Demux resolves one datagram to.
type Result[T any] struct {
	Disposition Disposition
	DCID        []byte
	Handle      T // valid only when Disposition == DispositionMatched
}

// Demux classifies datagram: parse the first byte to tell long from
// short header; for long headers read the explicit DCID length
// off the wire, for short headers use this shard's configured length;
// look the DCID up; on a miss, check for a stateless-reset match before
// falling back to "maybe a new connection" or "drop".
func (r *Registry[T]) Demux(datagram []byte) Result[T] {
	if len(datagram) == 0 {
		return Result[T]{Disposition: DispositionUnroutable}
	}

	var dcid []byte
	var err error
	isLong := packet.IsLongHeader(datagram[0])
	if isLong {
		dcid, err = packet.PeekLongHeaderDCID(datagram)
	} else {
		dcid, err = packet.PeekShortHeaderDCID(datagram, r.shortCIDLen)
	}
	if err != nil {
		return Result[T]{Disposition: DispositionUnroutable}
	}

	if h, ok := r.Lookup(dcid); ok {
		return Result[T]{Disposition: DispositionMatched, DCID: dcid, Handle: h}
	}

	if r.IsStatelessReset(datagram) {
		return Result[T]{Disposition: DispositionStatelessReset, DCID: dcid}
	}

	if isLong {
		if v, ok := packet.PeekVersion(datagram); ok && v != 0 {
			longType := packet.LongType((datagram[0] >> 4) & 0x03)
			if longType == packet.LongTypeInitial {
				return Result[T]{Disposition: DispositionNewConnectionCandidate, DCID: dcid}
			}
		}
	}
	return Result[T]{Disposition: DispositionUnroutable}
}
