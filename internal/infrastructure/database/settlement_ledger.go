package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/domain/entities"
	"github.com/stablepay/vault-indexer/internal/domain/repositories"
	"github.com/stablepay/vault-indexer/internal/metrics"
)

// Ensure SettlementLedger implements the domain interface
var _ repositories.SettlementLedger = (*SettlementLedger)(nil)

// SettlementLedger implements the transactional ingestion core: idempotent
// deposit-event inserts, order settlement, bookkeeping credits, anomaly
// records, and the cursor advance, all committed as one unit per batch.
type SettlementLedger struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSettlementLedger creates a new settlement ledger
func NewSettlementLedger(db *sqlx.DB, logger *zap.Logger) *SettlementLedger {
	return &SettlementLedger{db: db, logger: logger}
}

// ProcessBatch stores new events, reconciles them, and advances the cursor in
// one transaction. A failure anywhere rolls the whole batch back, so the
// scanner resumes from the previous cursor with no partial state.
func (l *SettlementLedger) ProcessBatch(ctx context.Context, chainID, contractAddress string, events []entities.DepositEvent, newPosition int64) (*repositories.BatchResult, error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result := &repositories.BatchResult{}

	for i := range events {
		ev := &events[i]

		inserted, id, err := insertEvent(ctx, tx, ev)
		if err != nil {
			return nil, err
		}
		if !inserted {
			result.Duplicates++
			continue
		}
		ev.ID = id
		result.Stored++

		outcome, err := l.reconcileEvent(ctx, tx, ev)
		if err != nil {
			return nil, err
		}

		switch outcome {
		case entities.OutcomeSettle:
			result.Settled++
		case entities.OutcomeNoOrder:
			result.Unmatched++
		default:
			result.Anomalies++
		}
	}

	if err := advanceCursor(ctx, tx, chainID, contractAddress, newPosition); err != nil {
		// ErrStaleAdvance aborts without commit; nothing from this batch
		// is persisted.
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}

	return result, nil
}

// ReprocessUnmatched retries reconciliation for events whose order was absent
// when they were stored. Each event runs in its own transaction so one bad
// row cannot wedge the sweep.
func (l *SettlementLedger) ReprocessUnmatched(ctx context.Context, batchSize, maxAttempts int) (*repositories.SweepResult, error) {
	events, err := l.openEvents(ctx, batchSize)
	if err != nil {
		return nil, err
	}

	result := &repositories.SweepResult{Examined: len(events)}

	for i := range events {
		ev := &events[i]

		if err := ctx.Err(); err != nil {
			return result, err
		}

		outcome, err := l.retryEvent(ctx, ev, maxAttempts)
		if err != nil {
			return result, err
		}

		switch outcome {
		case entities.OutcomeSettle:
			result.Settled++
		case entities.OutcomeNoOrder:
			if ev.MatchAttempts+1 >= maxAttempts {
				result.GivenUp++
			} else {
				result.StillOpen++
			}
		default:
			result.Anomalies++
		}
	}

	return result, nil
}

// reconcileEvent matches one newly stored event against its order inside the
// caller's transaction. The order row is locked FOR UPDATE so two chains
// racing on the same order id serialize here, and the status-guarded updates
// give the race exactly one winner.
func (l *SettlementLedger) reconcileEvent(ctx context.Context, tx *sqlx.Tx, ev *entities.DepositEvent) (entities.SettlementOutcome, error) {
	order, err := lockOrder(ctx, tx, ev.OrderID)
	if err != nil {
		return 0, err
	}

	outcome := entities.DecideSettlement(order, ev)

	switch outcome {
	case entities.OutcomeSettle:
		if err := settleOrder(ctx, tx, order, ev); err != nil {
			return 0, err
		}
		if err := markEventProcessed(ctx, tx, ev.ID); err != nil {
			return 0, err
		}

	case entities.OutcomeNoOrder:
		// Leave unprocessed; the sweep retries it. The order may simply
		// not have been created yet.

	default:
		if err := insertAnomaly(ctx, tx, ev, outcome.AnomalyReason(), anomalyDetail(order, ev)); err != nil {
			return 0, err
		}
		if err := markEventProcessed(ctx, tx, ev.ID); err != nil {
			return 0, err
		}
		l.logger.Warn("Deposit event recorded as anomaly",
			zap.String("order_id", ev.OrderID),
			zap.String("chain_id", ev.ChainID),
			zap.String("tx_id", ev.TxID),
			zap.String("reason", outcome.AnomalyReason()),
		)
	}

	return outcome, nil
}

// retryEvent re-runs reconciliation for one open event in its own transaction
func (l *SettlementLedger) retryEvent(ctx context.Context, ev *entities.DepositEvent, maxAttempts int) (entities.SettlementOutcome, error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	outcome, err := l.reconcileEvent(ctx, tx, ev)
	if err != nil {
		return 0, err
	}

	if outcome == entities.OutcomeNoOrder {
		attempts := ev.MatchAttempts + 1
		if attempts >= maxAttempts {
			// Retry window exhausted: flag for manual review and record
			// the unmatched anomaly so the event is surfaced, not dropped.
			if err := flagNeedsReview(ctx, tx, ev.ID, attempts); err != nil {
				return 0, err
			}
			if err := insertAnomaly(ctx, tx, ev, entities.AnomalyReasonUnmatched,
				fmt.Sprintf("no matching order after %d attempts", attempts)); err != nil {
				return 0, err
			}
			l.logger.Warn("Deposit event unmatched after retry window",
				zap.String("order_id", ev.OrderID),
				zap.String("chain_id", ev.ChainID),
				zap.String("tx_id", ev.TxID),
				zap.Int("attempts", attempts),
			)
		} else {
			if err := bumpMatchAttempts(ctx, tx, ev.ID, attempts); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit retry: %w", err)
	}

	return outcome, nil
}

// openEvents loads events awaiting reconciliation, oldest first
func (l *SettlementLedger) openEvents(ctx context.Context, limit int) ([]entities.DepositEvent, error) {
	var events []entities.DepositEvent
	query := fmt.Sprintf(`
		SELECT %s FROM deposit_events
		WHERE NOT processed AND NOT needs_review
		ORDER BY created_at
		LIMIT $1
	`, depositEventColumns)

	if err := l.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, fmt.Errorf("failed to load open events: %w", err)
	}

	return events, nil
}

// insertEvent appends a deposit event if its dedup key is new, returning
// whether a row was written and its id
func insertEvent(ctx context.Context, tx *sqlx.Tx, ev *entities.DepositEvent) (bool, int64, error) {
	query := `
		INSERT INTO deposit_events (chain_id, contract_address, payer, order_id,
			amount, tx_id, event_index, position, event_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (chain_id, tx_id, event_index) DO NOTHING
		RETURNING id
	`

	var id int64
	err := tx.QueryRowContext(ctx, query,
		ev.ChainID,
		ev.ContractAddress,
		ev.Payer,
		ev.OrderID,
		ev.Amount,
		ev.TxID,
		ev.EventIndex,
		ev.Position,
		ev.EventTime,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("failed to insert deposit event: %w", err)
	}

	return true, id, nil
}

// lockOrder loads the order row FOR UPDATE, nil if absent
func lockOrder(ctx context.Context, tx *sqlx.Tx, orderID string) (*entities.Order, error) {
	var order entities.Order
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE order_id = $1 FOR UPDATE`, orderColumns)

	if err := tx.GetContext(ctx, &order, query, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	return &order, nil
}

// settleOrder applies pending -> deposited -> completed and credits the
// account balance. The credit is the downstream settlement bookkeeping that
// distinguishes deposited from completed; both transitions fold into the
// caller's transaction because the credit commits with them.
func settleOrder(ctx context.Context, tx *sqlx.Tx, order *entities.Order, ev *entities.DepositEvent) error {
	deposit := `
		UPDATE orders SET
			status = $2,
			settled_tx = $3,
			updated_at = NOW()
		WHERE order_id = $1 AND status = $4
	`

	result, err := tx.ExecContext(ctx, deposit, order.OrderID, entities.OrderStatusDeposited, ev.TxID, entities.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark order deposited: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// The FOR UPDATE lock should make this unreachable; treat it as a
		// hard failure rather than guessing.
		return fmt.Errorf("order %s left pending state under lock", order.OrderID)
	}

	if err := creditBalance(ctx, tx, order, ev.Amount); err != nil {
		return err
	}

	complete := `
		UPDATE orders SET
			status = $2,
			updated_at = NOW()
		WHERE order_id = $1 AND status = $3
	`

	if _, err := tx.ExecContext(ctx, complete, order.OrderID, entities.OrderStatusCompleted, entities.OrderStatusDeposited); err != nil {
		return fmt.Errorf("failed to mark order completed: %w", err)
	}

	return nil
}

// creditBalance adds the deposited amount to the account's balance
func creditBalance(ctx context.Context, tx *sqlx.Tx, order *entities.Order, amount string) error {
	query := `
		INSERT INTO account_balances (broker_id, account_id, token_address, chain_id, balance)
		VALUES ($1, $2, $3, $4, $5::NUMERIC)
		ON CONFLICT (broker_id, account_id, token_address, chain_id) DO UPDATE SET
			balance = account_balances.balance + EXCLUDED.balance,
			updated_at = NOW()
	`

	if _, err := tx.ExecContext(ctx, query, order.BrokerID, order.AccountID, order.TokenAddress, order.ChainID, amount); err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}

	return nil
}

func markEventProcessed(ctx context.Context, tx *sqlx.Tx, eventID int64) error {
	query := `UPDATE deposit_events SET processed = TRUE WHERE id = $1`

	if _, err := tx.ExecContext(ctx, query, eventID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	return nil
}

func bumpMatchAttempts(ctx context.Context, tx *sqlx.Tx, eventID int64, attempts int) error {
	query := `UPDATE deposit_events SET match_attempts = $2 WHERE id = $1`

	if _, err := tx.ExecContext(ctx, query, eventID, attempts); err != nil {
		return fmt.Errorf("failed to update match attempts: %w", err)
	}

	return nil
}

func flagNeedsReview(ctx context.Context, tx *sqlx.Tx, eventID int64, attempts int) error {
	query := `UPDATE deposit_events SET needs_review = TRUE, match_attempts = $2 WHERE id = $1`

	if _, err := tx.ExecContext(ctx, query, eventID, attempts); err != nil {
		return fmt.Errorf("failed to flag event for review: %w", err)
	}

	return nil
}

func insertAnomaly(ctx context.Context, tx *sqlx.Tx, ev *entities.DepositEvent, reason, detail string) error {
	query := `
		INSERT INTO settlement_anomalies (order_id, chain_id, tx_id, event_index, reason, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := tx.ExecContext(ctx, query, ev.OrderID, ev.ChainID, ev.TxID, ev.EventIndex, reason, detail); err != nil {
		return fmt.Errorf("failed to insert anomaly: %w", err)
	}

	metrics.Anomalies.WithLabelValues(reason).Inc()
	return nil
}

func anomalyDetail(order *entities.Order, ev *entities.DepositEvent) string {
	if order == nil {
		return ""
	}
	if order.Status != entities.OrderStatusPending {
		return fmt.Sprintf("order status %s", order.Status)
	}
	return fmt.Sprintf("order amount %s, event amount %s", order.Amount, ev.Amount)
}
