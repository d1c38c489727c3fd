package stream

import (
	"sort"

	"github.com/caozhiyi/quicx-go/qerrors"
)

// segment is a received, not-yet-released byte range [offset, offset+len).
type segment struct {
	offset uint64
	data   []byte
}

func (s segment) end() uint64 { return s.offset + uint64(len(s.data)) }

// Reassembly is a stream's recv buffer: out-of-order segments indexed by
// offset, deduplicated and overlap-trimmed on insert, with a contiguous
// prefix releasable to the application.
type Reassembly struct {
	segments  []segment // sorted ascending by offset, non-overlapping
	readUpTo  uint64    // bytes already released to the app
	finalSize uint64
	haveFinal bool
}

// NewReassembly builds an empty reassembly buffer.
func NewReassembly() *Reassembly { return &Reassembly{} }

// FinalSize returns the recorded final size, if a FIN has been seen.
func (r *Reassembly) FinalSize() (uint64, bool) { return r.finalSize, r.haveFinal }

// Insert records a STREAM frame's payload at offset, with fin indicating
// this frame closes the stream at offset+len(data). It enforces the
// final-size invariants from RFC 9000 §4.5: no byte past final_size may
// be inserted, and no frame may claim an end past a previously
// committed final_size.
func (r *Reassembly) Insert(offset uint64, data []byte, fin bool) error {
	end := offset + uint64(len(data))

	if r.haveFinal {
		if end > r.finalSize {
			return qerrors.New(qerrors.CodeFinalSizeError, "stream data extends past final size")
		}
		if fin && end != r.finalSize {
			return qerrors.New(qerrors.CodeFinalSizeError, "FIN offset disagrees with previously recorded final size")
		}
	}
	if fin {
		if end < r.readUpTo {
			return qerrors.New(qerrors.CodeFinalSizeError, "FIN offset below bytes already delivered")
		}
		r.finalSize = end
		r.haveFinal = true
	}

	if end <= r.readUpTo || len(data) == 0 {
		return nil // fully stale/duplicate; fin flag (if any) was already applied above
	}
	if offset < r.readUpTo {
		trim := r.readUpTo - offset
		offset = r.readUpTo
		data = data[trim:]
	}

	r.insertTrimmed(segment{offset: offset, data: data})
	return nil
}

// insertTrimmed inserts a segment known to start at/after readUpTo,
// merging away any overlap with existing segments so the set stays
// sorted and non-overlapping.
func (r *Reassembly) insertTrimmed(s segment) {
	i := sort.Search(len(r.segments), func(i int) bool { return r.segments[i].offset >= s.offset })

	// Trim the tail of the segment immediately before i, if it overlaps.
	if i > 0 {
		prev := r.segments[i-1]
		if prev.end() > s.offset {
			if prev.end() >= s.end() {
				return // s is fully covered by prev
			}
			skip := prev.end() - s.offset
			s.offset = prev.end()
			s.data = s.data[skip:]
		}
	}

	// Drop/trim segments after i that s now overlaps or fully covers.
	j := i
	for j < len(r.segments) && r.segments[j].offset <= s.end() {
		next := r.segments[j]
		if next.end() <= s.end() {
			j++
			continue
		}
		if next.offset <= s.end() {
			keep := s.end() - next.offset
			s.data = append(s.data, next.data[keep:]...)
			j++
		}
		break
	}

	merged := make([]segment, 0, len(r.segments)-j+i+1)
	merged = append(merged, r.segments[:i]...)
	merged = append(merged, s)
	merged = append(merged, r.segments[j:]...)
	r.segments = merged
}

// ReadableLen reports how many contiguous bytes starting at readUpTo are
// available to release to the app.
func (r *Reassembly) ReadableLen() int {
	if len(r.segments) == 0 || r.segments[0].offset != r.readUpTo {
		return 0
	}
	return len(r.segments[0].data)
}

// Read releases up to len(buf) contiguous bytes starting at readUpTo,
// returning the number copied.
func (r *Reassembly) Read(buf []byte) int {
	if len(r.segments) == 0 || r.segments[0].offset != r.readUpTo {
		return 0
	}
	n := copy(buf, r.segments[0].data)
	r.readUpTo += uint64(n)
	if n == len(r.segments[0].data) {
		r.segments = r.segments[1:]
	} else {
		r.segments[0].offset += uint64(n)
		r.segments[0].data = r.segments[0].data[n:]
	}
	return n
}

// AllDataRead reports whether every byte up to final_size has been
// released to the app, the SizeKnown -> DataRecvd -> DataRead transition
// condition.
func (r *Reassembly) AllDataRead() bool {
	return r.haveFinal && r.readUpTo >= r.finalSize
}

// AllDataBuffered reports whether [0, final_size) is fully buffered
// (possibly not yet read by the app), the SizeKnown -> DataRecvd
// transition condition.
func (r *Reassembly) AllDataBuffered() bool {
	if !r.haveFinal {
		return false
	}
	have := r.readUpTo
	for _, s := range r.segments {
		if s.offset != have {
			return false
		}
		have = s.end()
	}
	return have >= r.finalSize
}
