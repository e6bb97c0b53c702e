package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/config"
	"github.com/stablepay/vault-indexer/internal/domain/entities"
	"github.com/stablepay/vault-indexer/internal/testutil"
)

func setupNotifierTest() (*NotifierService, *testutil.MockOrderRepository, *testutil.MockNotifier) {
	orderRepo := testutil.NewMockOrderRepository()
	notifier := testutil.NewMockNotifier()
	cfg := config.NotifyConfig{
		PollInterval: time.Millisecond,
		BatchSize:    50,
	}
	service := NewNotifierService(orderRepo, notifier, cfg, zap.NewNop())
	return service, orderRepo, notifier
}

func TestNotifier_DispatchOnce_DeliversTerminalOrders(t *testing.T) {
	service, orderRepo, notifier := setupNotifierTest()
	ctx := context.Background()

	orderRepo.AddOrder(testutil.CreateTestOrder(
		testutil.WithOrderStatus(entities.OrderStatusCompleted),
	))
	orderRepo.AddOrder(testutil.CreateTestOrder(
		testutil.WithOrderID(testutil.TestOrderID(2)),
		testutil.WithOrderStatus(entities.OrderStatusFailed),
	))

	if err := service.DispatchOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if notifier.DeliveryCount() != 2 {
		t.Fatalf("expected 2 deliveries, got %d", notifier.DeliveryCount())
	}

	for _, id := range []string{testutil.TestOrderID(1), testutil.TestOrderID(2)} {
		if order := orderRepo.Order(id); !order.Notified {
			t.Errorf("order %s not marked notified", id)
		}
	}
}

func TestNotifier_DispatchOnce_SkipsNonTerminalAndNotified(t *testing.T) {
	service, orderRepo, notifier := setupNotifierTest()
	ctx := context.Background()

	orderRepo.AddOrder(testutil.CreateTestOrder()) // pending
	orderRepo.AddOrder(testutil.CreateTestOrder(
		testutil.WithOrderID(testutil.TestOrderID(2)),
		testutil.WithOrderStatus(entities.OrderStatusCancelled),
	))
	orderRepo.AddOrder(testutil.CreateTestOrder(
		testutil.WithOrderID(testutil.TestOrderID(3)),
		testutil.WithOrderStatus(entities.OrderStatusCompleted),
		testutil.WithNotified(true),
	))

	if err := service.DispatchOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if notifier.DeliveryCount() != 0 {
		t.Errorf("expected no deliveries, got %d", notifier.DeliveryCount())
	}
}

func TestNotifier_DispatchOnce_RetriesUntilAcknowledged(t *testing.T) {
	service, orderRepo, notifier := setupNotifierTest()
	ctx := context.Background()

	orderRepo.AddOrder(testutil.CreateTestOrder(
		testutil.WithOrderStatus(entities.OrderStatusCompleted),
	))

	// Collaborator rejects the first delivery
	calls := 0
	notifier.NotifyFunc = func(ctx context.Context, orderID, status string) error {
		calls++
		if calls == 1 {
			return errors.New("503 unavailable")
		}
		return nil
	}

	if err := service.DispatchOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orderRepo.Order(testutil.TestOrderID(1)).Notified {
		t.Fatal("failed delivery must not mark the order notified")
	}

	if err := service.DispatchOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !orderRepo.Order(testutil.TestOrderID(1)).Notified {
		t.Fatal("acknowledged delivery must mark the order notified")
	}

	// Further polls send nothing
	if err := service.DispatchOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notifier.DeliveryCount() != 2 {
		t.Errorf("expected 2 total deliveries, got %d", notifier.DeliveryCount())
	}
}

func TestNotifier_DispatchOnce_MarkFailureCausesResend(t *testing.T) {
	service, orderRepo, notifier := setupNotifierTest()
	ctx := context.Background()

	orderRepo.AddOrder(testutil.CreateTestOrder(
		testutil.WithOrderStatus(entities.OrderStatusCompleted),
	))

	marks := 0
	orderRepo.MarkNotifiedFunc = func(ctx context.Context, orderID string) error {
		marks++
		if marks == 1 {
			return errors.New("connection reset")
		}
		orderRepo.Order(orderID).Notified = true
		return nil
	}

	_ = service.DispatchOnce(ctx)
	_ = service.DispatchOnce(ctx)

	// Delivered twice; the collaborator deduplicates by (order_id, status)
	if notifier.DeliveryCount() != 2 {
		t.Errorf("expected 2 deliveries, got %d", notifier.DeliveryCount())
	}
	if !orderRepo.Order(testutil.TestOrderID(1)).Notified {
		t.Error("expected order eventually marked notified")
	}
}

// End-to-end shape of a normal settlement: a pending order, one matching
// deposit, one notification.
func TestSettlementFlow_PendingOrderToSingleNotification(t *testing.T) {
	ctx := context.Background()

	ledger := testutil.NewMockSettlementLedger()
	orderRepo := testutil.NewMockOrderRepository()
	notifier := testutil.NewMockNotifier()

	src := testutil.NewMockEventSource(testutil.TestChainID, testutil.TestContract)
	cursorRepo := testutil.NewMockCursorRepository()
	scanner := NewScanner(src, ledger, cursorRepo, scannerTestConfig(), NewHealthRegistry(), zap.NewNop())

	order := testutil.CreateTestOrder(testutil.WithOrderAmount("1000000"))
	ledger.AddOrder(order)

	src.Head = 120
	src.Events = append(src.Events,
		testutil.CreateTestCanonicalEvent(testutil.WithEventPosition(50)))

	if err := scanner.ScanOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	settled := ledger.Order(order.OrderID)
	if settled.Status != entities.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", settled.Status)
	}

	// The dispatcher sees the terminal order and delivers exactly once
	orderRepo.AddOrder(*settled)
	notifierService := NewNotifierService(orderRepo, notifier,
		config.NotifyConfig{PollInterval: time.Millisecond, BatchSize: 10}, zap.NewNop())

	if err := notifierService.DispatchOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := notifierService.DispatchOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if notifier.DeliveryCount() != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", notifier.DeliveryCount())
	}
	if notifier.Deliveries[0].OrderID != order.OrderID || notifier.Deliveries[0].Status != "completed" {
		t.Errorf("unexpected delivery %+v", notifier.Deliveries[0])
	}
}
