package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/stablepay/vault-indexer/internal/domain/entities"
	"github.com/stablepay/vault-indexer/internal/domain/repositories"
)

// Ensure OrderRepo implements OrderRepository
var _ repositories.OrderRepository = (*OrderRepo)(nil)

// OrderRepo implements OrderRepository using PostgreSQL
type OrderRepo struct {
	db *sqlx.DB
}

// NewOrderRepo creates a new order repository
func NewOrderRepo(db *sqlx.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

const orderColumns = `
	order_id, broker_id, account_id, amount::TEXT AS amount, token_address,
	chain_id, status, settled_tx, notified, created_at, updated_at
`

// Create inserts a new pending order
func (r *OrderRepo) Create(ctx context.Context, order *entities.Order) error {
	query := `
		INSERT INTO orders (order_id, broker_id, account_id, amount, token_address, chain_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		order.OrderID,
		order.BrokerID,
		order.AccountID,
		order.Amount,
		order.TokenAddress,
		order.ChainID,
		entities.OrderStatusPending,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return repositories.ErrOrderExists
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// GetByID retrieves an order by its identifier
func (r *OrderRepo) GetByID(ctx context.Context, orderID string) (*entities.Order, error) {
	var order entities.Order
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE order_id = $1`, orderColumns)

	if err := r.db.GetContext(ctx, &order, query, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &order, nil
}

// Cancel moves a pending order to cancelled. The status guard makes the
// update a no-op once the order has left pending, so cancellation can never
// clobber a settlement that raced ahead of it.
func (r *OrderRepo) Cancel(ctx context.Context, orderID string) error {
	query := `
		UPDATE orders SET
			status = $2,
			updated_at = NOW()
		WHERE order_id = $1 AND status = $3
	`

	result, err := r.db.ExecContext(ctx, query, orderID, entities.OrderStatusCancelled, entities.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return repositories.ErrOrderNotCancellable
	}

	return nil
}

// GetUnnotified retrieves terminal orders awaiting notification delivery
func (r *OrderRepo) GetUnnotified(ctx context.Context, limit int) ([]entities.Order, error) {
	var orders []entities.Order
	query := fmt.Sprintf(`
		SELECT %s FROM orders
		WHERE status IN ($1, $2) AND NOT notified
		ORDER BY updated_at
		LIMIT $3
	`, orderColumns)

	if err := r.db.SelectContext(ctx, &orders, query, entities.OrderStatusCompleted, entities.OrderStatusFailed, limit); err != nil {
		return nil, fmt.Errorf("failed to get unnotified orders: %w", err)
	}

	return orders, nil
}

// MarkNotified records an acknowledged notification delivery
func (r *OrderRepo) MarkNotified(ctx context.Context, orderID string) error {
	query := `
		UPDATE orders SET
			notified = TRUE,
			updated_at = NOW()
		WHERE order_id = $1 AND NOT notified
	`

	if _, err := r.db.ExecContext(ctx, query, orderID); err != nil {
		return fmt.Errorf("failed to mark order notified: %w", err)
	}

	return nil
}
