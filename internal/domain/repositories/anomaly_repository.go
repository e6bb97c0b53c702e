package repositories

import (
	"context"

	"github.com/stablepay/vault-indexer/internal/domain/entities"
)

// AnomalyRepository defines read access to recorded reconciliation anomalies
type AnomalyRepository interface {
	// List retrieves anomalies, newest first
	List(ctx context.Context, limit, offset int) ([]entities.Anomaly, error)

	// Count returns the total number of recorded anomalies
	Count(ctx context.Context) (int64, error)
}
