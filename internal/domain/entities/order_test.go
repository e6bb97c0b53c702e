package entities

import (
	"testing"
	"time"
)

func TestOrderStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   OrderStatus
		terminal bool
	}{
		{OrderStatusPending, false},
		{OrderStatusDeposited, false},
		{OrderStatusCompleted, true},
		{OrderStatusFailed, true},
		{OrderStatusCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderStatusPending:   {OrderStatusDeposited, OrderStatusFailed, OrderStatusCancelled},
		OrderStatusDeposited: {OrderStatusCompleted},
	}

	all := []OrderStatus{
		OrderStatusPending, OrderStatusDeposited, OrderStatusCompleted,
		OrderStatusFailed, OrderStatusCancelled,
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s.CanTransitionTo(%s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestOrderStatus_TerminalStatesAllowNoTransitions(t *testing.T) {
	all := []OrderStatus{
		OrderStatusPending, OrderStatusDeposited, OrderStatusCompleted,
		OrderStatusFailed, OrderStatusCancelled,
	}

	for _, from := range []OrderStatus{OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled} {
		for _, to := range all {
			if from.CanTransitionTo(to) {
				t.Errorf("terminal %s permits transition to %s", from, to)
			}
		}
	}
}

func testOrder(status OrderStatus, amount string) *Order {
	return &Order{
		OrderID:   "0x8c0bdceee60a2841a04f19ecf4c0a5a4864d0d96d15f2c55e52e3dda19da647b",
		BrokerID:  "b1",
		AccountID: "a1",
		Amount:    amount,
		ChainID:   "ethereum",
		Status:    status,
		CreatedAt: time.Now(),
	}
}

func testEvent(amount string) *DepositEvent {
	return &DepositEvent{
		ChainID:    "ethereum",
		OrderID:    "0x8c0bdceee60a2841a04f19ecf4c0a5a4864d0d96d15f2c55e52e3dda19da647b",
		Amount:     amount,
		TxID:       "0xabc",
		EventIndex: 0,
		Position:   100,
	}
}

func TestDecideSettlement_Settle(t *testing.T) {
	outcome := DecideSettlement(testOrder(OrderStatusPending, "1000000"), testEvent("1000000"))
	if outcome != OutcomeSettle {
		t.Errorf("expected OutcomeSettle, got %v", outcome)
	}
}

func TestDecideSettlement_NoOrder(t *testing.T) {
	outcome := DecideSettlement(nil, testEvent("1000000"))
	if outcome != OutcomeNoOrder {
		t.Errorf("expected OutcomeNoOrder, got %v", outcome)
	}
}

func TestDecideSettlement_NotPending(t *testing.T) {
	for _, status := range []OrderStatus{
		OrderStatusDeposited, OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled,
	} {
		outcome := DecideSettlement(testOrder(status, "1000000"), testEvent("1000000"))
		if outcome != OutcomeNotPending {
			t.Errorf("status %s: expected OutcomeNotPending, got %v", status, outcome)
		}
	}
}

func TestDecideSettlement_AmountMismatch(t *testing.T) {
	outcome := DecideSettlement(testOrder(OrderStatusPending, "1000000"), testEvent("999999"))
	if outcome != OutcomeAmountMismatch {
		t.Errorf("expected OutcomeAmountMismatch, got %v", outcome)
	}
}

func TestDecideSettlement_AmountComparedNumerically(t *testing.T) {
	// Leading zeros must not defeat the comparison
	outcome := DecideSettlement(testOrder(OrderStatusPending, "1000000"), testEvent("01000000"))
	if outcome != OutcomeSettle {
		t.Errorf("expected OutcomeSettle for numerically equal amounts, got %v", outcome)
	}
}

func TestDecideSettlement_LargeAmounts(t *testing.T) {
	// Amounts beyond uint64 range must compare exactly
	huge := "123456789012345678901234567890123456789"
	if outcome := DecideSettlement(testOrder(OrderStatusPending, huge), testEvent(huge)); outcome != OutcomeSettle {
		t.Errorf("expected OutcomeSettle, got %v", outcome)
	}

	almost := "123456789012345678901234567890123456788"
	if outcome := DecideSettlement(testOrder(OrderStatusPending, huge), testEvent(almost)); outcome != OutcomeAmountMismatch {
		t.Errorf("expected OutcomeAmountMismatch, got %v", outcome)
	}
}

func TestSettlementOutcome_AnomalyReason(t *testing.T) {
	if got := OutcomeNotPending.AnomalyReason(); got != AnomalyReasonNotPending {
		t.Errorf("expected %q, got %q", AnomalyReasonNotPending, got)
	}
	if got := OutcomeAmountMismatch.AnomalyReason(); got != AnomalyReasonAmountMismatch {
		t.Errorf("expected %q, got %q", AnomalyReasonAmountMismatch, got)
	}
	if got := OutcomeSettle.AnomalyReason(); got != "" {
		t.Errorf("expected empty reason for settle, got %q", got)
	}
}

func TestDepositEvent_DedupKey(t *testing.T) {
	a := testEvent("1")
	b := testEvent("1")
	if a.DedupKey() != b.DedupKey() {
		t.Error("identical events must share a dedup key")
	}

	b.EventIndex = 1
	if a.DedupKey() == b.DedupKey() {
		t.Error("events at different indexes must not collide")
	}

	c := testEvent("1")
	c.ChainID = "polygon"
	if a.DedupKey() == c.DedupKey() {
		t.Error("events on different chains must not collide")
	}
}
