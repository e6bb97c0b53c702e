package services

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/config"
	"github.com/stablepay/vault-indexer/internal/domain/entities"
	"github.com/stablepay/vault-indexer/internal/testutil"
)

func setupReconcilerTest(maxAttempts int) (*ReconcilerService, *testutil.MockSettlementLedger) {
	ledger := testutil.NewMockSettlementLedger()
	cfg := config.IndexerConfig{
		MatchMaxAttempts:   maxAttempts,
		MatchRetryInterval: time.Millisecond,
		MatchBatchSize:     100,
	}
	return NewReconcilerService(ledger, cfg, zap.NewNop()), ledger
}

func storeUnmatchedEvent(t *testing.T, ledger *testutil.MockSettlementLedger, opts ...testutil.EventOption) entities.DepositEvent {
	t.Helper()
	event := testutil.CreateTestDepositEvent(opts...)
	_, err := ledger.ProcessBatch(context.Background(),
		event.ChainID, event.ContractAddress,
		[]entities.DepositEvent{event}, event.Position)
	if err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}
	return event
}

func TestReconciler_SweepOnce_SettlesLateOrder(t *testing.T) {
	service, ledger := setupReconcilerTest(20)
	ctx := context.Background()

	// Deposit observed before its order registration
	storeUnmatchedEvent(t, ledger)

	if err := service.SweepOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order := ledger.Order(testutil.TestOrderID(1)); order != nil {
		t.Fatal("no order should exist yet")
	}

	// Registration arrives, the next sweep settles
	ledger.AddOrder(testutil.CreateTestOrder())

	if err := service.SweepOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := ledger.Order(testutil.TestOrderID(1))
	if order == nil || order.Status != entities.OrderStatusCompleted {
		t.Fatalf("expected completed order, got %+v", order)
	}
}

func TestReconciler_SweepOnce_FlagsForReviewAfterMaxAttempts(t *testing.T) {
	service, ledger := setupReconcilerTest(3)
	ctx := context.Background()

	event := storeUnmatchedEvent(t, ledger)

	for i := 0; i < 3; i++ {
		if err := service.SweepOnce(ctx); err != nil {
			t.Fatalf("sweep %d: %v", i, err)
		}
	}

	stored := ledger.Events[event.DedupKey()]
	if stored == nil {
		t.Fatal("event must never be dropped")
	}
	if !stored.NeedsReview {
		t.Error("expected event flagged for review")
	}

	if len(ledger.Anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(ledger.Anomalies))
	}
	if ledger.Anomalies[0].Reason != entities.AnomalyReasonUnmatched {
		t.Errorf("expected unmatched, got %s", ledger.Anomalies[0].Reason)
	}

	// Flagged events leave the sweep's working set
	result, err := ledger.ReprocessUnmatched(ctx, 100, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Examined != 0 {
		t.Errorf("expected flagged event excluded from sweep, examined %d", result.Examined)
	}
}

func TestReconciler_SweepOnce_MismatchOnRetryIsAnomaly(t *testing.T) {
	service, ledger := setupReconcilerTest(20)
	ctx := context.Background()

	storeUnmatchedEvent(t, ledger)
	ledger.AddOrder(testutil.CreateTestOrder(testutil.WithOrderAmount("5")))

	if err := service.SweepOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := ledger.Order(testutil.TestOrderID(1))
	if order.Status != entities.OrderStatusPending {
		t.Errorf("mismatch must leave the order pending, got %s", order.Status)
	}
	if len(ledger.Anomalies) != 1 || ledger.Anomalies[0].Reason != entities.AnomalyReasonAmountMismatch {
		t.Errorf("expected one amount_mismatch anomaly, got %+v", ledger.Anomalies)
	}
}
