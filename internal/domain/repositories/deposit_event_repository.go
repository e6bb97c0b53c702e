package repositories

import (
	"context"

	"github.com/stablepay/vault-indexer/internal/domain/entities"
)

// DepositEventRepository defines read access to the deposit-event ledger.
// Writes happen exclusively through SettlementLedger so they commit together
// with order transitions and cursor advances.
type DepositEventRepository interface {
	// GetByFilter retrieves deposit events matching the given filter
	GetByFilter(ctx context.Context, filter entities.DepositEventFilter) ([]entities.DepositEvent, error)

	// GetCount returns the count of deposit events matching the filter
	GetCount(ctx context.Context, filter entities.DepositEventFilter) (int64, error)

	// GetByDedupKey retrieves one event by its uniqueness tuple, nil if absent
	GetByDedupKey(ctx context.Context, chainID, txID string, eventIndex int64) (*entities.DepositEvent, error)

	// CountUnprocessed returns the number of events awaiting reconciliation
	CountUnprocessed(ctx context.Context) (int64, error)

	// CountNeedsReview returns the number of events surfaced for manual review
	CountNeedsReview(ctx context.Context) (int64, error)
}
