package txsubmit

import "testing"

func TestParseExpectedNonce(t *testing.T) {
	cases := []struct {
		name   string
		msg    string
		want   uint64
		wantOK bool
	}{
		{
			name:   "CosmosEVMGotExpected",
			msg:    "rpc error: invalid nonce; got 5, expected 7: invalid sequence",
			want:   7,
			wantOK: true,
		},
		{
			name:   "CosmosEVMExpectedGot",
			msg:    "invalid nonce: expected 12, got 10",
			want:   12,
			wantOK: true,
		},
		{
			name:   "Geth",
			msg:    "nonce too low: next nonce 7, tx nonce 5",
			want:   7,
			wantOK: true,
		},
		{
			name:   "Hardhat",
			msg:    "Nonce too low. Expected nonce to be 7 but got 5. Note that transactions can't be queued when automining.",
			want:   7,
			wantOK: true,
		},
		{
			name:   "Generic",
			msg:    "bad nonce, expected nonce 31",
			want:   31,
			wantOK: true,
		},
		{
			name:   "NonceWithoutHint",
			msg:    "nonce too high",
			wantOK: false,
		},
		{
			name:   "NotANonceError",
			msg:    "insufficient funds for gas * price + value: expected 100",
			wantOK: false,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok := ParseExpectedNonce(tc.msg)
			if ok != tc.wantOK {
				t.Fatalf("unexpected ok, want: %v, got: %v", tc.wantOK, ok)
			}
			if got != tc.want {
				t.Errorf("unexpected nonce, want: %d, got: %d", tc.want, got)
			}
		})
	}
}
