package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/config"
	"github.com/stablepay/vault-indexer/internal/domain/entities"
	"github.com/stablepay/vault-indexer/internal/infrastructure/source/types"
	"github.com/stablepay/vault-indexer/internal/testutil"
)

func scannerTestConfig() config.IndexerConfig {
	return config.IndexerConfig{
		BatchSize:          100,
		RequestTimeout:     time.Second,
		RetryMaxAttempts:   2,
		RetryBaseDelay:     time.Millisecond,
		RetryMaxDelay:      5 * time.Millisecond,
		ConfirmationDepths: map[string]int64{testutil.TestChainID: 12},
		StartPositions:     map[string]int64{testutil.TestChainID: 0},
	}
}

func setupScannerTest() (*Scanner, *testutil.MockEventSource, *testutil.MockSettlementLedger, *testutil.MockCursorRepository, *HealthRegistry) {
	src := testutil.NewMockEventSource(testutil.TestChainID, testutil.TestContract)
	ledger := testutil.NewMockSettlementLedger()
	cursorRepo := testutil.NewMockCursorRepository()
	health := NewHealthRegistry()

	scanner := NewScanner(src, ledger, cursorRepo, scannerTestConfig(), health, zap.NewNop())
	return scanner, src, ledger, cursorRepo, health
}

func TestScanner_ScanOnce_SettlesMatchingOrder(t *testing.T) {
	scanner, src, ledger, _, _ := setupScannerTest()
	ctx := context.Background()

	ledger.AddOrder(testutil.CreateTestOrder())

	src.Head = 120
	src.Events = []types.CanonicalEvent{
		testutil.CreateTestCanonicalEvent(testutil.WithEventPosition(50)),
	}

	if err := scanner.ScanOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := ledger.Order(testutil.TestOrderID(1))
	if order == nil {
		t.Fatal("expected order to exist")
	}
	if order.Status != entities.OrderStatusCompleted {
		t.Errorf("expected status completed, got %s", order.Status)
	}
	if order.SettledTx == nil {
		t.Error("expected settled tx to be recorded")
	}
}

func TestScanner_ScanOnce_RespectsConfirmationDepth(t *testing.T) {
	scanner, src, ledger, _, _ := setupScannerTest()
	ctx := context.Background()

	// Head 120 with depth 12 makes 108 the newest scannable position
	src.Head = 120
	src.Events = []types.CanonicalEvent{
		testutil.CreateTestCanonicalEvent(testutil.WithEventPosition(110)),
	}

	if err := scanner.ScanOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ledger.Events) != 0 {
		t.Errorf("expected no events inside the confirmation window, got %d", len(ledger.Events))
	}
	if got := ledger.Cursors[testutil.TestChainID+"|"+testutil.TestContract]; got != 108 {
		t.Errorf("expected cursor at 108, got %d", got)
	}

	for _, call := range src.FetchCalls {
		if call[1] > 108 {
			t.Errorf("fetched past the safe head: [%d, %d]", call[0], call[1])
		}
	}
}

func TestScanner_ScanOnce_ResumesFromCursor(t *testing.T) {
	scanner, src, _, cursorRepo, _ := setupScannerTest()
	ctx := context.Background()

	cursorRepo.SetCursor(testutil.TestChainID, testutil.TestContract, 50)
	src.Head = 120

	if err := scanner.ScanOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(src.FetchCalls) == 0 {
		t.Fatal("expected fetch calls")
	}
	if src.FetchCalls[0][0] != 51 {
		t.Errorf("expected first fetch to start at 51, got %d", src.FetchCalls[0][0])
	}
}

func TestScanner_ScanOnce_RescanIsIdempotent(t *testing.T) {
	scanner, src, ledger, _, _ := setupScannerTest()
	ctx := context.Background()

	ledger.AddOrder(testutil.CreateTestOrder())

	src.Head = 120
	src.Events = []types.CanonicalEvent{
		testutil.CreateTestCanonicalEvent(testutil.WithEventPosition(50)),
	}

	if err := scanner.ScanOnce(ctx); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	// Simulate a crash before the cursor write was observed: rescanning the
	// same range must not double-apply anything.
	delete(ledger.Cursors, testutil.TestChainID+"|"+testutil.TestContract)

	if err := scanner.ScanOnce(ctx); err != nil {
		t.Fatalf("second scan: %v", err)
	}

	if len(ledger.Events) != 1 {
		t.Errorf("expected 1 stored event after rescan, got %d", len(ledger.Events))
	}
	order := ledger.Order(testutil.TestOrderID(1))
	if order.Status != entities.OrderStatusCompleted {
		t.Errorf("expected completed, got %s", order.Status)
	}
	if len(ledger.Anomalies) != 0 {
		t.Errorf("rescan must not record anomalies, got %d", len(ledger.Anomalies))
	}
}

func TestScanner_ScanOnce_NothingNewBelowSafeHead(t *testing.T) {
	scanner, src, _, cursorRepo, _ := setupScannerTest()
	ctx := context.Background()

	cursorRepo.SetCursor(testutil.TestChainID, testutil.TestContract, 108)
	src.Head = 120

	if err := scanner.ScanOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(src.FetchCalls) != 0 {
		t.Errorf("expected no fetches when caught up, got %d", len(src.FetchCalls))
	}
}

func TestScanner_ScanOnce_DegradedAfterRetryExhaustion(t *testing.T) {
	scanner, src, _, _, health := setupScannerTest()
	ctx := context.Background()

	src.HeadPositionFunc = func(ctx context.Context) (int64, error) {
		return 0, errors.New("rpc unreachable")
	}

	if err := scanner.ScanOnce(ctx); err == nil {
		t.Fatal("expected error after retry exhaustion")
	}

	if src.HeadCalls != 2 {
		t.Errorf("expected 2 attempts, got %d", src.HeadCalls)
	}

	snapshot := health.Snapshot()
	if len(snapshot) != 1 || snapshot[0].Healthy {
		t.Error("expected chain marked degraded")
	}
}

func TestScanner_ScanOnce_RecoversAfterDegraded(t *testing.T) {
	scanner, src, _, _, health := setupScannerTest()
	ctx := context.Background()

	src.HeadPositionFunc = func(ctx context.Context) (int64, error) {
		return 0, errors.New("rpc unreachable")
	}
	_ = scanner.ScanOnce(ctx)

	src.HeadPositionFunc = nil
	src.Head = 120
	if err := scanner.ScanOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot := health.Snapshot()
	if len(snapshot) != 1 || !snapshot[0].Healthy {
		t.Error("expected chain healthy again")
	}
}

func TestScanner_ScanOnce_StaleAdvanceAborts(t *testing.T) {
	scanner, src, ledger, _, _ := setupScannerTest()
	ctx := context.Background()

	// Ledger already committed past what the scanner is about to write
	ledger.Cursors[testutil.TestChainID+"|"+testutil.TestContract] = 500
	src.Head = 120

	if err := scanner.ScanOnce(ctx); err == nil {
		t.Fatal("expected stale advance error")
	}
}

func TestScanner_ScanOnce_BatchesLargeRanges(t *testing.T) {
	scanner, src, ledger, _, _ := setupScannerTest()
	ctx := context.Background()

	src.Head = 512

	if err := scanner.ScanOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 1..500 in batches of 100
	if len(src.FetchCalls) != 5 {
		t.Fatalf("expected 5 fetch batches, got %d", len(src.FetchCalls))
	}
	if src.FetchCalls[4][1] != 500 {
		t.Errorf("expected last batch to end at 500, got %d", src.FetchCalls[4][1])
	}
	if got := ledger.Cursors[testutil.TestChainID+"|"+testutil.TestContract]; got != 500 {
		t.Errorf("expected cursor at 500, got %d", got)
	}
}

func TestSplitScanRange(t *testing.T) {
	tests := []struct {
		name      string
		from, to  int64
		batchSize int64
		want      []ScanRange
	}{
		{
			name: "empty when from exceeds to",
			from: 10, to: 5, batchSize: 100,
			want: nil,
		},
		{
			name: "single batch",
			from: 1, to: 50, batchSize: 100,
			want: []ScanRange{{1, 50}},
		},
		{
			name: "exact multiple",
			from: 1, to: 200, batchSize: 100,
			want: []ScanRange{{1, 100}, {101, 200}},
		},
		{
			name: "remainder batch",
			from: 1, to: 250, batchSize: 100,
			want: []ScanRange{{1, 100}, {101, 200}, {201, 250}},
		},
		{
			name: "single position",
			from: 7, to: 7, batchSize: 100,
			want: []ScanRange{{7, 7}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitScanRange(tt.from, tt.to, tt.batchSize)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d ranges, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("range %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestScanner_ScanOnce_AnomalyForMismatchedAmount(t *testing.T) {
	scanner, src, ledger, _, _ := setupScannerTest()
	ctx := context.Background()

	ledger.AddOrder(testutil.CreateTestOrder(testutil.WithOrderAmount("2000000")))

	src.Head = 120
	src.Events = []types.CanonicalEvent{
		testutil.CreateTestCanonicalEvent(testutil.WithEventPosition(50)),
	}

	if err := scanner.ScanOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := ledger.Order(testutil.TestOrderID(1))
	if order.Status != entities.OrderStatusPending {
		t.Errorf("mismatch must leave the order pending, got %s", order.Status)
	}
	if len(ledger.Anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(ledger.Anomalies))
	}
	if ledger.Anomalies[0].Reason != entities.AnomalyReasonAmountMismatch {
		t.Errorf("expected amount_mismatch, got %s", ledger.Anomalies[0].Reason)
	}
}
