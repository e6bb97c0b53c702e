package entities

import (
	"time"
)

// ChainCursor tracks the last confirmed scan position for one
// (chain, vault contract) pair. The position is monotonically non-decreasing
// and only ever advanced past events that have been durably stored.
type ChainCursor struct {
	ChainID         string    `db:"chain_id"`
	ContractAddress string    `db:"contract_address"`
	Position        int64     `db:"position"`
	UpdatedAt       time.Time `db:"updated_at"`
}
