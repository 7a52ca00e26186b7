package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEther(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0.001", want: "1000000000000000"},
		{in: "1", want: "1000000000000000000"},
		{in: "0.0005", want: "500000000000000"},
		{in: "0.000000000000000001", want: "1"},
		{in: "0.0000000000000000001", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseEther(tc.in)
		if tc.wantErr {
			require.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got.String(), tc.in)
	}
}

func TestFormatEther(t *testing.T) {
	require.Equal(t, "0.001", FormatEther(big.NewInt(1_000_000_000_000_000)))
	require.Equal(t, "0", FormatEther(nil))
}

func TestGwei(t *testing.T) {
	require.Equal(t, "1000000000", Gwei(1).String())
	require.Zero(t, Gwei(0).Sign())
}
