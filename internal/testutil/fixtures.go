package testutil

import (
	"time"

	"github.com/stablepay/vault-indexer/internal/domain/entities"
	"github.com/stablepay/vault-indexer/internal/infrastructure/source/types"
	"github.com/stablepay/vault-indexer/internal/orderid"
)

// Common test identities
const (
	TestChainID  = "ethereum"
	TestContract = "0x1111111111111111111111111111111111111111"
	TestToken    = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	TestPayer    = "0x2222222222222222222222222222222222222222"
	TestBroker   = "broker-7"
	TestAccount  = "acct-42"
)

// TestOrderID derives the canonical order id for the default test identity
func TestOrderID(seq uint64) string {
	return orderid.DeriveHex(TestBroker, TestAccount, seq)
}

// CreateTestOrder creates a pending order with default values
func CreateTestOrder(opts ...OrderOption) entities.Order {
	o := entities.Order{
		OrderID:      TestOrderID(1),
		BrokerID:     TestBroker,
		AccountID:    TestAccount,
		Amount:       "1000000",
		TokenAddress: TestToken,
		ChainID:      TestChainID,
		Status:       entities.OrderStatusPending,
		CreatedAt:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

type OrderOption func(*entities.Order)

func WithOrderID(id string) OrderOption {
	return func(o *entities.Order) {
		o.OrderID = id
	}
}

func WithOrderAmount(amount string) OrderOption {
	return func(o *entities.Order) {
		o.Amount = amount
	}
}

func WithOrderStatus(status entities.OrderStatus) OrderOption {
	return func(o *entities.Order) {
		o.Status = status
	}
}

func WithOrderChain(chainID string) OrderOption {
	return func(o *entities.Order) {
		o.ChainID = chainID
	}
}

func WithNotified(notified bool) OrderOption {
	return func(o *entities.Order) {
		o.Notified = notified
	}
}

// CreateTestDepositEvent creates a deposit event with default values matching
// the default test order
func CreateTestDepositEvent(opts ...EventOption) entities.DepositEvent {
	e := entities.DepositEvent{
		ChainID:         TestChainID,
		ContractAddress: TestContract,
		Payer:           TestPayer,
		OrderID:         TestOrderID(1),
		Amount:          "1000000",
		TxID:            "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		EventIndex:      0,
		Position:        12345678,
		EventTime:       time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC),
	}

	for _, opt := range opts {
		opt(&e)
	}

	return e
}

type EventOption func(*entities.DepositEvent)

func WithEventOrderID(id string) EventOption {
	return func(e *entities.DepositEvent) {
		e.OrderID = id
	}
}

func WithEventAmount(amount string) EventOption {
	return func(e *entities.DepositEvent) {
		e.Amount = amount
	}
}

func WithEventTxID(txID string) EventOption {
	return func(e *entities.DepositEvent) {
		e.TxID = txID
	}
}

func WithEventIndex(idx int64) EventOption {
	return func(e *entities.DepositEvent) {
		e.EventIndex = idx
	}
}

func WithEventPosition(pos int64) EventOption {
	return func(e *entities.DepositEvent) {
		e.Position = pos
	}
}

func WithEventChain(chainID string) EventOption {
	return func(e *entities.DepositEvent) {
		e.ChainID = chainID
	}
}

// CreateTestCanonicalEvent creates the source-side shape of a deposit event
func CreateTestCanonicalEvent(opts ...EventOption) types.CanonicalEvent {
	e := CreateTestDepositEvent(opts...)
	return types.CanonicalEvent{
		ChainID:         e.ChainID,
		ContractAddress: e.ContractAddress,
		Payer:           e.Payer,
		OrderID:         e.OrderID,
		Amount:          e.Amount,
		TxID:            e.TxID,
		EventIndex:      e.EventIndex,
		Position:        e.Position,
		Timestamp:       e.EventTime,
	}
}
