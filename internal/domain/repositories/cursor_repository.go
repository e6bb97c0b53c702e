package repositories

import (
	"context"
	"errors"

	"github.com/stablepay/vault-indexer/internal/domain/entities"
)

// ErrStaleAdvance is returned when a cursor advance does not move the stored
// position forward. It indicates a misbehaving caller (attempted rewind) and
// aborts the scan iteration without commit.
var ErrStaleAdvance = errors.New("stale cursor advance: new position is not greater than stored position")

// CursorRepository defines the interface for chain cursor operations
type CursorRepository interface {
	// Get retrieves the cursor for a (chain, contract) pair, nil if absent
	Get(ctx context.Context, chainID, contractAddress string) (*entities.ChainCursor, error)

	// GetAll retrieves every stored cursor
	GetAll(ctx context.Context) ([]entities.ChainCursor, error)

	// Advance moves the cursor forward, failing with ErrStaleAdvance if
	// newPosition is not greater than the stored position. Batch processing
	// advances through SettlementLedger instead so the write commits with
	// the batch's event inserts; this standalone path serves operational
	// resets and first-time initialization.
	Advance(ctx context.Context, chainID, contractAddress string, newPosition int64) error
}
