package services

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/domain/entities"
	"github.com/stablepay/vault-indexer/internal/domain/repositories"
	"github.com/stablepay/vault-indexer/internal/orderid"
)

// ErrInvalidOrder is wrapped around order validation failures
type ErrInvalidOrder struct {
	Reason string
}

func (e *ErrInvalidOrder) Error() string {
	return "invalid order: " + e.Reason
}

// OrderService provides business logic for order registration and lookup
type OrderService struct {
	orderRepo repositories.OrderRepository
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(orderRepo repositories.OrderRepository, logger *zap.Logger) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		logger:    logger,
	}
}

// CreateOrderRequest carries the fields needed to register a payment intent.
// The order id is derived, never supplied.
type CreateOrderRequest struct {
	BrokerID     string `json:"broker_id"`
	AccountID    string `json:"account_id"`
	Seq          uint64 `json:"seq"`
	Amount       string `json:"amount"`
	TokenAddress string `json:"token_address"`
	ChainID      string `json:"chain_id"`
}

// OrderDTO is the API representation of an order
type OrderDTO struct {
	OrderID      string  `json:"order_id"`
	BrokerID     string  `json:"broker_id"`
	AccountID    string  `json:"account_id"`
	Amount       string  `json:"amount"`
	TokenAddress string  `json:"token_address"`
	ChainID      string  `json:"chain_id"`
	Status       string  `json:"status"`
	SettledTx    *string `json:"settled_tx,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// CreateOrder derives the order id from (broker, account, seq) and registers
// a pending order under it. The same triple always produces the same id, so a
// resubmitted registration fails with ErrOrderExists instead of double
// registering.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderDTO, error) {
	if err := validateCreateOrder(req); err != nil {
		return nil, err
	}

	order := &entities.Order{
		OrderID:      orderid.DeriveHex(req.BrokerID, req.AccountID, req.Seq),
		BrokerID:     req.BrokerID,
		AccountID:    req.AccountID,
		Amount:       req.Amount,
		TokenAddress: strings.ToLower(req.TokenAddress),
		ChainID:      req.ChainID,
		Status:       entities.OrderStatusPending,
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("Order registered",
		zap.String("order_id", order.OrderID),
		zap.String("broker_id", order.BrokerID),
		zap.String("chain_id", order.ChainID),
	)

	return toOrderDTO(order), nil
}

// GetOrder retrieves one order by id, nil if absent
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*OrderDTO, error) {
	order, err := s.orderRepo.GetByID(ctx, strings.ToLower(orderID))
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, nil
	}
	return toOrderDTO(order), nil
}

// CancelOrder cancels a still-pending order. A deposit that lands for a
// cancelled order is recorded as an anomaly, not applied.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) error {
	if err := s.orderRepo.Cancel(ctx, strings.ToLower(orderID)); err != nil {
		return err
	}
	s.logger.Info("Order cancelled", zap.String("order_id", orderID))
	return nil
}

func validateCreateOrder(req CreateOrderRequest) error {
	if req.BrokerID == "" {
		return &ErrInvalidOrder{Reason: "broker_id is required"}
	}
	if req.AccountID == "" {
		return &ErrInvalidOrder{Reason: "account_id is required"}
	}
	if req.ChainID == "" {
		return &ErrInvalidOrder{Reason: "chain_id is required"}
	}
	if req.TokenAddress == "" {
		return &ErrInvalidOrder{Reason: "token_address is required"}
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		return &ErrInvalidOrder{Reason: "amount must be a base-10 integer"}
	}
	if amount.Sign() <= 0 {
		return &ErrInvalidOrder{Reason: "amount must be positive"}
	}

	return nil
}

func toOrderDTO(order *entities.Order) *OrderDTO {
	return &OrderDTO{
		OrderID:      order.OrderID,
		BrokerID:     order.BrokerID,
		AccountID:    order.AccountID,
		Amount:       order.Amount,
		TokenAddress: order.TokenAddress,
		ChainID:      order.ChainID,
		Status:       string(order.Status),
		SettledTx:    order.SettledTx,
		CreatedAt:    order.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    order.UpdatedAt.Format(time.RFC3339),
	}
}
