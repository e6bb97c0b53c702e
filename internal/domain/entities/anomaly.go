package entities

import (
	"time"
)

// Anomaly reasons recorded by the reconciler
const (
	// AnomalyReasonNotPending marks an event whose order exists but is not
	// in the pending state (possible double-send)
	AnomalyReasonNotPending = "not_pending"

	// AnomalyReasonAmountMismatch marks an event whose amount differs from
	// the order's requested amount
	AnomalyReasonAmountMismatch = "amount_mismatch"

	// AnomalyReasonUnmatched marks an event that exhausted the
	// reconciliation retry window without a matching order appearing
	AnomalyReasonUnmatched = "unmatched"
)

// Anomaly records a structurally valid deposit event that could not be safely
// applied to an order. Anomalies are surfaced for manual review, never
// auto-resolved.
type Anomaly struct {
	ID         int64     `db:"id"`
	OrderID    string    `db:"order_id"`
	ChainID    string    `db:"chain_id"`
	TxID       string    `db:"tx_id"`
	EventIndex int64     `db:"event_index"`
	Reason     string    `db:"reason"`
	Detail     string    `db:"detail"`
	CreatedAt  time.Time `db:"created_at"`
}
