// Package types carries the canonical event record shared by every chain
// family adapter.
package types

import (
	"time"
)

// CanonicalEvent is the output contract of every event source adapter: one
// observed vault deposit, normalized to the chain-agnostic shape. The amount
// is always a string of decimal digits; 18-decimal token amounts overflow
// fixed-width integers and must never pass through a float.
type CanonicalEvent struct {
	ChainID         string
	ContractAddress string
	Payer           string
	OrderID         string // 0x-prefixed 64-hex canonical form
	Amount          string // base-10 digits
	TxID            string
	EventIndex      int64
	Position        int64
	Timestamp       time.Time
}
