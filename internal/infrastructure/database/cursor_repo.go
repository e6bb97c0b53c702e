package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/stablepay/vault-indexer/internal/domain/entities"
	"github.com/stablepay/vault-indexer/internal/domain/repositories"
)

// Ensure CursorRepo implements CursorRepository
var _ repositories.CursorRepository = (*CursorRepo)(nil)

// CursorRepo implements CursorRepository using PostgreSQL
type CursorRepo struct {
	db *sqlx.DB
}

// NewCursorRepo creates a new chain cursor repository
func NewCursorRepo(db *sqlx.DB) *CursorRepo {
	return &CursorRepo{db: db}
}

// Get retrieves the cursor for a (chain, contract) pair
func (r *CursorRepo) Get(ctx context.Context, chainID, contractAddress string) (*entities.ChainCursor, error) {
	var cursor entities.ChainCursor
	query := `SELECT * FROM chain_cursors WHERE chain_id = $1 AND contract_address = $2`

	if err := r.db.GetContext(ctx, &cursor, query, chainID, contractAddress); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get chain cursor: %w", err)
	}

	return &cursor, nil
}

// GetAll retrieves every stored cursor
func (r *CursorRepo) GetAll(ctx context.Context) ([]entities.ChainCursor, error) {
	var cursors []entities.ChainCursor
	query := `SELECT * FROM chain_cursors ORDER BY chain_id, contract_address`

	if err := r.db.SelectContext(ctx, &cursors, query); err != nil {
		return nil, fmt.Errorf("failed to list chain cursors: %w", err)
	}

	return cursors, nil
}

// Advance moves the cursor forward within its own transaction
func (r *CursorRepo) Advance(ctx context.Context, chainID, contractAddress string, newPosition int64) error {
	return advanceCursor(ctx, r.db, chainID, contractAddress, newPosition)
}

// execer covers *sqlx.DB and *sqlx.Tx so the guarded advance can run either
// standalone or inside the settlement ledger's batch transaction
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// advanceCursor performs the guarded, monotone cursor write. The WHERE clause
// on the upsert rejects any write that does not strictly increase the stored
// position, which surfaces as ErrStaleAdvance.
func advanceCursor(ctx context.Context, e execer, chainID, contractAddress string, newPosition int64) error {
	query := `
		INSERT INTO chain_cursors (chain_id, contract_address, position)
		VALUES ($1, $2, $3)
		ON CONFLICT (chain_id, contract_address) DO UPDATE SET
			position = EXCLUDED.position,
			updated_at = NOW()
		WHERE chain_cursors.position < EXCLUDED.position
	`

	result, err := e.ExecContext(ctx, query, chainID, contractAddress, newPosition)
	if err != nil {
		return fmt.Errorf("failed to advance cursor: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return repositories.ErrStaleAdvance
	}

	return nil
}
