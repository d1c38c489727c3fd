package cidreg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeHandle struct{ name string }

func TestGenerateRejectsOutOfBoundsLength(t *testing.T) {
	_, err := Generate(3)
	require.Error(t, err)
	_, err = Generate(21)
	require.Error(t, err)

	cid, err := Generate(8)
	require.NoError(t, err)
	require.Len(t, cid, 8)
}

func TestRegisterAndLookupRoundTrip(t *testing.T) {
	r := New[*fakeHandle]([32]byte{1}, 8)
	cid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	h := &fakeHandle{name: "conn-a"}

	require.NoError(t, r.Register(cid, h))
	got, ok := r.Lookup(cid)
	require.True(t, ok)
	require.Same(t, h, got)
}

func TestRegisterRejectsCollision(t *testing.T) {
	r := New[*fakeHandle]([32]byte{1}, 8)
	cid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, r.Register(cid, &fakeHandle{name: "first"}))

	err := r.Register(cid, &fakeHandle{name: "second"})
	require.Error(t, err)
}

func TestRegisterRejectsOutOfBoundsLength(t *testing.T) {
	r := New[*fakeHandle]([32]byte{1}, 8)
	err := r.Register([]byte{1, 2}, &fakeHandle{})
	require.Error(t, err)
}

func TestStatelessResetTokenIsDeterministicPerSecretAndCID(t *testing.T) {
	r := New[*fakeHandle]([32]byte{9, 9, 9}, 8)
	cid := []byte{1, 2, 3, 4}

	t1 := r.StatelessResetToken(cid)
	t2 := r.StatelessResetToken(cid)
	require.Equal(t, t1, t2)

	other := New[*fakeHandle]([32]byte{8, 8, 8}, 8)
	require.NotEqual(t, t1, other.StatelessResetToken(cid))
}

func TestRetireRemovesFromActiveAndRecordsResetToken(t *testing.T) {
	r := New[*fakeHandle]([32]byte{1}, 8)
	cid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, r.Register(cid, &fakeHandle{name: "a"}))

	r.Retire(cid)
	_, ok := r.Lookup(cid)
	require.False(t, ok)

	token := r.StatelessResetToken(cid)
	datagram := append([]byte{0x40, 0xaa, 0xbb}, token[:]...)
	require.True(t, r.IsStatelessReset(datagram))
}

func TestIsStatelessResetFalseForUnrelatedTrailer(t *testing.T) {
	r := New[*fakeHandle]([32]byte{1}, 8)
	datagram := make([]byte, 32)
	require.False(t, r.IsStatelessReset(datagram))
}

func TestDemuxMatchesRegisteredShortHeaderCID(t *testing.T) {
	r := New[*fakeHandle]([32]byte{1}, 8)
	cid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	h := &fakeHandle{name: "conn-a"}
	require.NoError(t, r.Register(cid, h))

	datagram := append([]byte{0x40}, cid...)
	datagram = append(datagram, 0x00, 0x01, 0x02) // fake PN + payload bytes

	res := r.Demux(datagram)
	require.Equal(t, DispositionMatched, res.Disposition)
	require.Same(t, h, res.Handle)
}

func TestDemuxFlagsStatelessResetOnUnmatchedRetiredToken(t *testing.T) {
	r := New[*fakeHandle]([32]byte{1}, 8)
	cid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, r.Register(cid, &fakeHandle{}))
	r.Retire(cid)

	token := r.StatelessResetToken(cid)
	datagram := append([]byte{0x40}, cid...)
	datagram = append(datagram, make([]byte, 16-len(token)+len(token))...)
	copy(datagram[len(datagram)-16:], token[:])

	res := r.Demux(datagram)
	require.Equal(t, DispositionStatelessReset, res.Disposition)
}

func TestDemuxUnroutableOnUnknownShortHeaderCID(t *testing.T) {
	r := New[*fakeHandle]([32]byte{1}, 8)
	datagram := append([]byte{0x40}, make([]byte, 8+16)...)

	res := r.Demux(datagram)
	require.Equal(t, DispositionUnroutable, res.Disposition)
}
