package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/stablepay/vault-indexer/internal/domain/entities"
	"github.com/stablepay/vault-indexer/internal/domain/repositories"
)

// Ensure DepositEventRepo implements DepositEventRepository
var _ repositories.DepositEventRepository = (*DepositEventRepo)(nil)

// DepositEventRepo implements DepositEventRepository using PostgreSQL
type DepositEventRepo struct {
	db *sqlx.DB
}

// NewDepositEventRepo creates a new deposit event repository
func NewDepositEventRepo(db *sqlx.DB) *DepositEventRepo {
	return &DepositEventRepo{db: db}
}

const depositEventColumns = `
	id, chain_id, contract_address, payer, order_id, amount::TEXT AS amount,
	tx_id, event_index, position, event_time, processed, match_attempts,
	needs_review, created_at
`

// GetByFilter retrieves deposit events matching the given filter
func (r *DepositEventRepo) GetByFilter(ctx context.Context, filter entities.DepositEventFilter) ([]entities.DepositEvent, error) {
	query, args := r.buildFilterQuery(filter, false)

	var events []entities.DepositEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get deposit events: %w", err)
	}

	return events, nil
}

// GetCount returns the count of deposit events matching the filter
func (r *DepositEventRepo) GetCount(ctx context.Context, filter entities.DepositEventFilter) (int64, error) {
	query, args := r.buildFilterQuery(filter, true)

	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to get deposit event count: %w", err)
	}

	return count, nil
}

// GetByDedupKey retrieves one event by its uniqueness tuple
func (r *DepositEventRepo) GetByDedupKey(ctx context.Context, chainID, txID string, eventIndex int64) (*entities.DepositEvent, error) {
	var event entities.DepositEvent
	query := fmt.Sprintf(`
		SELECT %s FROM deposit_events
		WHERE chain_id = $1 AND tx_id = $2 AND event_index = $3
	`, depositEventColumns)

	if err := r.db.GetContext(ctx, &event, query, chainID, txID, eventIndex); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get deposit event: %w", err)
	}

	return &event, nil
}

// CountUnprocessed returns the number of events awaiting reconciliation
func (r *DepositEventRepo) CountUnprocessed(ctx context.Context) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM deposit_events WHERE NOT processed AND NOT needs_review`

	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("failed to count unprocessed events: %w", err)
	}

	return count, nil
}

// CountNeedsReview returns the number of events surfaced for manual review
func (r *DepositEventRepo) CountNeedsReview(ctx context.Context) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM deposit_events WHERE needs_review`

	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("failed to count needs-review events: %w", err)
	}

	return count, nil
}

// buildFilterQuery builds the SQL query for filtering deposit events
func (r *DepositEventRepo) buildFilterQuery(filter entities.DepositEventFilter, countOnly bool) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	argIdx := 1

	if filter.ChainID != nil {
		conditions = append(conditions, fmt.Sprintf("chain_id = $%d", argIdx))
		args = append(args, *filter.ChainID)
		argIdx++
	}

	if filter.OrderID != nil {
		conditions = append(conditions, fmt.Sprintf("order_id = $%d", argIdx))
		args = append(args, *filter.OrderID)
		argIdx++
	}

	if filter.Payer != nil {
		conditions = append(conditions, fmt.Sprintf("payer = $%d", argIdx))
		args = append(args, *filter.Payer)
		argIdx++
	}

	if filter.Processed != nil {
		conditions = append(conditions, fmt.Sprintf("processed = $%d", argIdx))
		args = append(args, *filter.Processed)
		argIdx++
	}

	if filter.NeedsReview != nil {
		conditions = append(conditions, fmt.Sprintf("needs_review = $%d", argIdx))
		args = append(args, *filter.NeedsReview)
		argIdx++
	}

	if filter.FromPosition != nil {
		conditions = append(conditions, fmt.Sprintf("position >= $%d", argIdx))
		args = append(args, *filter.FromPosition)
		argIdx++
	}

	if filter.ToPosition != nil {
		conditions = append(conditions, fmt.Sprintf("position <= $%d", argIdx))
		args = append(args, *filter.ToPosition)
		argIdx++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	if countOnly {
		return fmt.Sprintf("SELECT COUNT(*) FROM deposit_events %s", whereClause), args
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM deposit_events
		%s
		ORDER BY position DESC, event_index DESC
		LIMIT $%d OFFSET $%d
	`, depositEventColumns, whereClause, argIdx, argIdx+1)

	args = append(args, filter.Limit, filter.Offset)

	return query, args
}
