package packetnumber

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConcreteScenarioFromSpec(t *testing.T) {
	largestAcked := int64(0xa82e1b31)
	pn := uint64(0xa82e1b32)

	length := Encode(largestAcked, pn)
	require.Equal(t, 1, length)

	truncated := TruncatedBytes(pn, length)
	require.Equal(t, []byte{0x32}, truncated)

	got := Decode(largestAcked, truncated)
	require.Equal(t, pn, got)
}

func TestRoundTripAcrossDeltas(t *testing.T) {
	deltas := []uint64{0, 1, 2, 100, 1000, 1 << 10, 1 << 20, 1 << 30}
	for _, base := range []uint64{0, 1000, 1 << 20, 1 << 40} {
		for _, d := range deltas {
			largest := int64(base)
			pn := base + d + 1
			length := Encode(largest, pn)
			require.LessOrEqual(t, length, MaxLength)

			truncated := TruncatedBytes(pn, length)
			got := Decode(largest, truncated)
			require.Equal(t, pn, got, "base=%d delta=%d length=%d", base, d, length)
		}
	}
}

func TestDecodeWithNoPriorPacket(t *testing.T) {
	// largestPN = -1 means expected = 0.
	got := Decode(-1, []byte{0x00})
	require.Equal(t, uint64(0), got)
}

func TestEncodeGrowsWithGapSize(t *testing.T) {
	require.Equal(t, 1, Encode(0, 1))
	require.Equal(t, 2, Encode(0, 200))
	require.Equal(t, 3, Encode(0, 1<<17))
	require.Equal(t, 4, Encode(0, 1<<25))
}
