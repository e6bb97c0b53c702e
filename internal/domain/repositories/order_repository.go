package repositories

import (
	"context"
	"errors"

	"github.com/stablepay/vault-indexer/internal/domain/entities"
)

// ErrOrderExists is returned when creating an order whose id is already taken
var ErrOrderExists = errors.New("order already exists")

// ErrOrderNotCancellable is returned when cancelling an order that is no
// longer pending
var ErrOrderNotCancellable = errors.New("order is not pending and cannot be cancelled")

// OrderRepository defines the interface for order operations. Settlement
// transitions (pending -> deposited -> completed) are owned by
// SettlementLedger; this interface carries the order-creation collaborator's
// insert path, the explicit cancellation path, and the dispatcher's
// notification bookkeeping.
type OrderRepository interface {
	// Create inserts a new pending order
	Create(ctx context.Context, order *entities.Order) error

	// GetByID retrieves an order by its identifier, nil if absent
	GetByID(ctx context.Context, orderID string) (*entities.Order, error)

	// Cancel moves a pending order to cancelled, failing with
	// ErrOrderNotCancellable once the order has left pending
	Cancel(ctx context.Context, orderID string) error

	// GetUnnotified retrieves terminal completed/failed orders whose
	// notification has not yet been acknowledged
	GetUnnotified(ctx context.Context, limit int) ([]entities.Order, error)

	// MarkNotified records a delivered notification; the flag is only set
	// once, so a concurrent duplicate delivery is harmless
	MarkNotified(ctx context.Context, orderID string) error
}
