package services

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/domain/entities"
	"github.com/stablepay/vault-indexer/internal/domain/repositories"
	"github.com/stablepay/vault-indexer/internal/testutil"
)

func setupOrderServiceTest() (*OrderService, *testutil.MockOrderRepository) {
	orderRepo := testutil.NewMockOrderRepository()
	return NewOrderService(orderRepo, zap.NewNop()), orderRepo
}

func validCreateRequest() CreateOrderRequest {
	return CreateOrderRequest{
		BrokerID:     testutil.TestBroker,
		AccountID:    testutil.TestAccount,
		Seq:          1,
		Amount:       "1000000",
		TokenAddress: testutil.TestToken,
		ChainID:      testutil.TestChainID,
	}
}

func TestOrderService_CreateOrder_DerivesCanonicalID(t *testing.T) {
	service, orderRepo := setupOrderServiceTest()
	ctx := context.Background()

	order, err := service.CreateOrder(ctx, validCreateRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order.OrderID != testutil.TestOrderID(1) {
		t.Errorf("expected derived id %s, got %s", testutil.TestOrderID(1), order.OrderID)
	}
	if order.Status != "pending" {
		t.Errorf("expected pending, got %s", order.Status)
	}

	stored := orderRepo.Order(order.OrderID)
	if stored == nil || stored.Status != entities.OrderStatusPending {
		t.Fatalf("expected stored pending order, got %+v", stored)
	}
}

func TestOrderService_CreateOrder_SameTripleConflicts(t *testing.T) {
	service, _ := setupOrderServiceTest()
	ctx := context.Background()

	if _, err := service.CreateOrder(ctx, validCreateRequest()); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := service.CreateOrder(ctx, validCreateRequest())
	if !errors.Is(err, repositories.ErrOrderExists) {
		t.Errorf("expected ErrOrderExists, got %v", err)
	}
}

func TestOrderService_CreateOrder_DifferentSeqDifferentID(t *testing.T) {
	service, _ := setupOrderServiceTest()
	ctx := context.Background()

	first, err := service.CreateOrder(ctx, validCreateRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := validCreateRequest()
	req.Seq = 2
	second, err := service.CreateOrder(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.OrderID == second.OrderID {
		t.Error("different sequence numbers must derive different ids")
	}
}

func TestOrderService_CreateOrder_Validation(t *testing.T) {
	service, _ := setupOrderServiceTest()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CreateOrderRequest)
	}{
		{"missing broker", func(r *CreateOrderRequest) { r.BrokerID = "" }},
		{"missing account", func(r *CreateOrderRequest) { r.AccountID = "" }},
		{"missing chain", func(r *CreateOrderRequest) { r.ChainID = "" }},
		{"missing token", func(r *CreateOrderRequest) { r.TokenAddress = "" }},
		{"non-numeric amount", func(r *CreateOrderRequest) { r.Amount = "12.5" }},
		{"empty amount", func(r *CreateOrderRequest) { r.Amount = "" }},
		{"zero amount", func(r *CreateOrderRequest) { r.Amount = "0" }},
		{"negative amount", func(r *CreateOrderRequest) { r.Amount = "-5" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)

			_, err := service.CreateOrder(ctx, req)
			var invalid *ErrInvalidOrder
			if !errors.As(err, &invalid) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestOrderService_GetOrder(t *testing.T) {
	service, orderRepo := setupOrderServiceTest()
	ctx := context.Background()

	orderRepo.AddOrder(testutil.CreateTestOrder())

	order, err := service.GetOrder(ctx, testutil.TestOrderID(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order == nil || order.OrderID != testutil.TestOrderID(1) {
		t.Fatalf("expected order, got %+v", order)
	}

	missing, err := service.GetOrder(ctx, testutil.TestOrderID(99))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown order")
	}
}

func TestOrderService_CancelOrder(t *testing.T) {
	service, orderRepo := setupOrderServiceTest()
	ctx := context.Background()

	orderRepo.AddOrder(testutil.CreateTestOrder())

	if err := service.CancelOrder(ctx, testutil.TestOrderID(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := orderRepo.Order(testutil.TestOrderID(1)).Status; got != entities.OrderStatusCancelled {
		t.Errorf("expected cancelled, got %s", got)
	}

	// Cancelling again fails: the order has left pending
	err := service.CancelOrder(ctx, testutil.TestOrderID(1))
	if !errors.Is(err, repositories.ErrOrderNotCancellable) {
		t.Errorf("expected ErrOrderNotCancellable, got %v", err)
	}
}

func TestOrderService_CancelOrder_CompletedNotCancellable(t *testing.T) {
	service, orderRepo := setupOrderServiceTest()
	ctx := context.Background()

	orderRepo.AddOrder(testutil.CreateTestOrder(
		testutil.WithOrderStatus(entities.OrderStatusCompleted),
	))

	err := service.CancelOrder(ctx, testutil.TestOrderID(1))
	if !errors.Is(err, repositories.ErrOrderNotCancellable) {
		t.Errorf("expected ErrOrderNotCancellable, got %v", err)
	}
}
