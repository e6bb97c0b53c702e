// Package orderid derives the deterministic identifier binding a broker,
// account, and order sequence number to an on-chain deposit. Every component
// that derives this value (order creation, the vault contracts, reconciliation)
// must produce the identical 32-byte digest; a mismatch is a silent
// reconciliation failure rather than a crash.
package orderid

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"
)

// Derive computes keccak256(broker_id || account_id || big_endian_uint64(seq)).
// Fields are concatenated with no length delimiters; the sequence number is
// encoded as 8 big-endian bytes to match the contracts' packed encoding.
func Derive(brokerID, accountID string, seq uint64) [32]byte {
	buf := make([]byte, 0, len(brokerID)+len(accountID)+8)
	buf = append(buf, brokerID...)
	buf = append(buf, accountID...)
	buf = binary.BigEndian.AppendUint64(buf, seq)

	var id [32]byte
	copy(id[:], crypto.Keccak256(buf))
	return id
}

// DeriveHex returns the derived identifier in canonical storage form:
// lowercase hex with a 0x prefix.
func DeriveHex(brokerID, accountID string, seq uint64) string {
	id := Derive(brokerID, accountID, seq)
	return "0x" + hex.EncodeToString(id[:])
}

// Canonicalize normalizes a raw 32-byte order identifier (as decoded from a
// chain event) into the canonical storage form.
func Canonicalize(raw []byte) string {
	return "0x" + hex.EncodeToString(raw)
}
