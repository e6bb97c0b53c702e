package orderid

import (
	"testing"
)

func TestDeriveHex_GoldenVectors(t *testing.T) {
	tests := []struct {
		name      string
		brokerID  string
		accountID string
		seq       uint64
		want      string
	}{
		{
			name:      "reference vector b1/a1/1",
			brokerID:  "b1",
			accountID: "a1",
			seq:       1,
			want:      "0x8c0bdceee60a2841a04f19ecf4c0a5a4864d0d96d15f2c55e52e3dda19da647b",
		},
		{
			name:      "different sequence",
			brokerID:  "b1",
			accountID: "a1",
			seq:       2,
			want:      "0x168a00040ac8b4d9bd849b2f277dfffab6a90689dbc8b4c8e8c5dfb87d9f8bba",
		},
		{
			name:      "different broker",
			brokerID:  "b2",
			accountID: "a1",
			seq:       1,
			want:      "0xda8e2c89b8f0c6163c31462167940591aae71651cd394d5404d20c38c96aa1e9",
		},
		{
			name:      "different account",
			brokerID:  "b1",
			accountID: "a2",
			seq:       1,
			want:      "0x865f4b5bcaa9d5509c4c8aeae27efaac446691c1c89e0013aa25922c9c03e3b5",
		},
		{
			name:      "longer identifiers",
			brokerID:  "broker-7",
			accountID: "acct-42",
			seq:       12345,
			want:      "0xf1c94cdc069c8816d93ebd442c2ee1f8a8b7df05d01af8f44c0d7e4875f7541d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveHex(tt.brokerID, tt.accountID, tt.seq)
			if got != tt.want {
				t.Errorf("DeriveHex(%q, %q, %d) = %s, want %s",
					tt.brokerID, tt.accountID, tt.seq, got, tt.want)
			}
		})
	}
}

func TestDerive_Deterministic(t *testing.T) {
	a := Derive("broker", "account", 99)
	b := Derive("broker", "account", 99)
	if a != b {
		t.Errorf("independent invocations disagree: %x vs %x", a, b)
	}
}

func TestDerive_NoDelimiterButDistinct(t *testing.T) {
	// Concatenation has no delimiters, so shifting a byte between broker and
	// account changes the digest only via the keccak input ordering. These
	// two calls hash the same bytes and must collide by construction.
	same := Derive("ab", "c", 1) == Derive("a", "bc", 1)
	if !same {
		t.Error("expected identical digest for identical packed input")
	}

	// A sequence change must always produce a different digest.
	if Derive("ab", "c", 1) == Derive("ab", "c", 2) {
		t.Error("expected different digest for different sequence")
	}
}

func TestCanonicalize(t *testing.T) {
	id := Derive("b1", "a1", 1)
	if got, want := Canonicalize(id[:]), DeriveHex("b1", "a1", 1); got != want {
		t.Errorf("Canonicalize = %s, want %s", got, want)
	}
}
