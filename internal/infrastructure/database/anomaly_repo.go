package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/stablepay/vault-indexer/internal/domain/entities"
	"github.com/stablepay/vault-indexer/internal/domain/repositories"
)

// Ensure AnomalyRepo implements AnomalyRepository
var _ repositories.AnomalyRepository = (*AnomalyRepo)(nil)

// AnomalyRepo implements AnomalyRepository using PostgreSQL
type AnomalyRepo struct {
	db *sqlx.DB
}

// NewAnomalyRepo creates a new anomaly repository
func NewAnomalyRepo(db *sqlx.DB) *AnomalyRepo {
	return &AnomalyRepo{db: db}
}

// List retrieves anomalies, newest first
func (r *AnomalyRepo) List(ctx context.Context, limit, offset int) ([]entities.Anomaly, error) {
	var anomalies []entities.Anomaly
	query := `
		SELECT * FROM settlement_anomalies
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	if err := r.db.SelectContext(ctx, &anomalies, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list anomalies: %w", err)
	}

	return anomalies, nil
}

// Count returns the total number of recorded anomalies
func (r *AnomalyRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM settlement_anomalies`

	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("failed to count anomalies: %w", err)
	}

	return count, nil
}
