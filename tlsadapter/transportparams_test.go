package tlsadapter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransportParamsRoundTrip(t *testing.T) {
	p := Params{
		InitialSourceConnectionID: []byte{1, 2, 3, 4},
		MaxIdleTimeoutMs:          30000,
		InitialMaxData:            1 << 20,
		InitialMaxStreamsBidi:     100,
		AckDelayExponent:          3,
		MaxAckDelayMs:             25,
		ActiveConnectionIDLimit:   4,
		DisableActiveMigration:    true,
	}
	encoded := Encode(p)
	got, err := Decode(encoded, false)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestServerOnlyParamFromClientIsFatal(t *testing.T) {
	p := Params{OriginalDestinationConnectionID: []byte{1, 2, 3, 4}}
	encoded := Encode(p)
	_, err := Decode(encoded, true)
	require.Error(t, err)
}

func TestAckDelayExponentOverMaxIsFatal(t *testing.T) {
	p := Params{AckDelayExponent: 21}
	encoded := Encode(p)
	_, err := Decode(encoded, false)
	require.Error(t, err)
}

func TestUnknownParameterIsIgnored(t *testing.T) {
	encoded := append(Encode(Params{InitialMaxData: 10}), 0x1b, 0x02, 0xaa, 0xbb)
	got, err := Decode(encoded, false)
	require.NoError(t, err)
	require.Equal(t, uint64(10), got.InitialMaxData)
}
