package entities

import (
	"math/big"
	"time"
)

// OrderStatus is the settlement state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusDeposited OrderStatus = "deposited"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order represents an off-chain payment intent awaiting an on-chain deposit
type Order struct {
	OrderID      string      `db:"order_id"`
	BrokerID     string      `db:"broker_id"`
	AccountID    string      `db:"account_id"`
	Amount       string      `db:"amount"`
	TokenAddress string      `db:"token_address"`
	ChainID      string      `db:"chain_id"`
	Status       OrderStatus `db:"status"`
	SettledTx    *string     `db:"settled_tx"`
	Notified     bool        `db:"notified"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

// IsTerminal reports whether no further transition is permitted
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled:
		return true
	}
	return false
}

// Valid reports whether the status is a known enumeration value
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusDeposited, OrderStatusCompleted,
		OrderStatusFailed, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status machine permits s -> next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusDeposited || next == OrderStatusFailed || next == OrderStatusCancelled
	case OrderStatusDeposited:
		return next == OrderStatusCompleted
	}
	return false
}

// SettlementOutcome is the reconciler's decision for one deposit event
type SettlementOutcome int

const (
	// OutcomeSettle applies the deposit: pending -> deposited -> completed
	OutcomeSettle SettlementOutcome = iota

	// OutcomeNoOrder means no order exists yet for the event's order id;
	// the event stays unprocessed and is retried on the sweep schedule
	OutcomeNoOrder

	// OutcomeNotPending means the order exists but is not pending
	// (possible duplicate payment); recorded as an anomaly, never applied
	OutcomeNotPending

	// OutcomeAmountMismatch means the deposited amount differs from the
	// order's requested amount; fails closed as an anomaly
	OutcomeAmountMismatch
)

// AnomalyReason returns the anomaly classification for non-settling outcomes
func (o SettlementOutcome) AnomalyReason() string {
	switch o {
	case OutcomeNotPending:
		return AnomalyReasonNotPending
	case OutcomeAmountMismatch:
		return AnomalyReasonAmountMismatch
	}
	return ""
}

// DecideSettlement applies the reconciliation rules to an order (nil if not
// found) and a deposit event, without touching storage. Amounts are compared
// as arbitrary-precision integers so representations like "0100" and "100"
// cannot diverge.
func DecideSettlement(order *Order, event *DepositEvent) SettlementOutcome {
	if order == nil {
		return OutcomeNoOrder
	}
	if order.Status != OrderStatusPending {
		return OutcomeNotPending
	}
	if !amountsEqual(order.Amount, event.Amount) {
		return OutcomeAmountMismatch
	}
	return OutcomeSettle
}

func amountsEqual(a, b string) bool {
	x, okX := new(big.Int).SetString(a, 10)
	y, okY := new(big.Int).SetString(b, 10)
	if !okX || !okY {
		return false
	}
	return x.Cmp(y) == 0
}
