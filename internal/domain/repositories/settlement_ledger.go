package repositories

import (
	"context"

	"github.com/stablepay/vault-indexer/internal/domain/entities"
)

// BatchResult summarizes one committed scan batch
type BatchResult struct {
	Stored     int
	Duplicates int
	Settled    int
	Anomalies  int
	Unmatched  int
}

// SweepResult summarizes one reconciliation retry sweep
type SweepResult struct {
	Examined  int
	Settled   int
	Anomalies int
	StillOpen int
	GivenUp   int
}

// SettlementLedger is the transactional core of the indexer. Implementations
// must guarantee that within ProcessBatch the event inserts, the order
// transitions they trigger, the settlement bookkeeping, and the cursor
// advance commit together or not at all.
type SettlementLedger interface {
	// ProcessBatch stores each event if new, reconciles newly stored events
	// against their orders, and advances the cursor to newPosition, all in
	// one transaction. Duplicate events (by chain_id, tx_id, event_index)
	// are skipped without error. Returns ErrStaleAdvance without side
	// effects if newPosition does not move the cursor forward.
	ProcessBatch(ctx context.Context, chainID, contractAddress string, events []entities.DepositEvent, newPosition int64) (*BatchResult, error)

	// ReprocessUnmatched retries reconciliation for stored events that have
	// no matching order yet. Events exhausting maxAttempts are flagged for
	// manual review and recorded as unmatched anomalies; they are never
	// dropped. Each event is retried in its own transaction.
	ReprocessUnmatched(ctx context.Context, batchSize, maxAttempts int) (*SweepResult, error)
}
