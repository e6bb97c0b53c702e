package entities

import (
	"strconv"
	"time"
)

// DepositEvent represents one on-chain vault deposit observed on one chain.
// The tuple (chain_id, tx_id, event_index) is globally unique and is the sole
// deduplication key.
type DepositEvent struct {
	ID              int64     `db:"id"`
	ChainID         string    `db:"chain_id"`
	ContractAddress string    `db:"contract_address"`
	Payer           string    `db:"payer"`
	OrderID         string    `db:"order_id"`
	Amount          string    `db:"amount"`
	TxID            string    `db:"tx_id"`
	EventIndex      int64     `db:"event_index"`
	Position        int64     `db:"position"`
	EventTime       time.Time `db:"event_time"`
	Processed       bool      `db:"processed"`
	MatchAttempts   int       `db:"match_attempts"`
	NeedsReview     bool      `db:"needs_review"`
	CreatedAt       time.Time `db:"created_at"`
}

// DedupKey returns the uniqueness key of the event
func (e *DepositEvent) DedupKey() string {
	return e.ChainID + "|" + e.TxID + "|" + strconv.FormatInt(e.EventIndex, 10)
}

// DepositEventFilter contains filters for querying deposit events
type DepositEventFilter struct {
	ChainID      *string
	OrderID      *string
	Payer        *string
	Processed    *bool
	NeedsReview  *bool
	FromPosition *int64
	ToPosition   *int64
	Limit        int
	Offset       int
}

// DefaultDepositEventFilter returns a filter with sensible defaults
func DefaultDepositEventFilter() DepositEventFilter {
	return DepositEventFilter{
		Limit:  100,
		Offset: 0,
	}
}
