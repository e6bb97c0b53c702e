package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/config"
	"github.com/stablepay/vault-indexer/internal/domain/repositories"
	"github.com/stablepay/vault-indexer/internal/metrics"
)

// ReconcilerService periodically retries stored deposit events that arrived
// before their order was registered. Events that exhaust the retry budget are
// flagged for review, never dropped.
type ReconcilerService struct {
	ledger repositories.SettlementLedger
	cfg    config.IndexerConfig
	logger *zap.Logger
}

// NewReconcilerService creates the unmatched-event sweep
func NewReconcilerService(
	ledger repositories.SettlementLedger,
	cfg config.IndexerConfig,
	logger *zap.Logger,
) *ReconcilerService {
	return &ReconcilerService{
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
	}
}

// Run sweeps on a fixed interval until the stop channel closes
func (s *ReconcilerService) Run(ctx context.Context, stopCh <-chan struct{}) {
	s.logger.Info("Reconciler started",
		zap.Duration("interval", s.cfg.MatchRetryInterval),
		zap.Int("max_attempts", s.cfg.MatchMaxAttempts),
	)

	ticker := time.NewTicker(s.cfg.MatchRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			s.logger.Info("Reconciler stopped")
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce retries reconciliation for one batch of open events
func (s *ReconcilerService) SweepOnce(ctx context.Context) error {
	result, err := s.ledger.ReprocessUnmatched(ctx, s.cfg.MatchBatchSize, s.cfg.MatchMaxAttempts)
	if err != nil {
		return err
	}

	metrics.SweepSettled.Add(float64(result.Settled))
	metrics.SweepGivenUp.Add(float64(result.GivenUp))

	if result.Examined > 0 {
		s.logger.Info("Reconciliation sweep finished",
			zap.Int("examined", result.Examined),
			zap.Int("settled", result.Settled),
			zap.Int("anomalies", result.Anomalies),
			zap.Int("still_open", result.StillOpen),
			zap.Int("given_up", result.GivenUp),
		)
	}

	return nil
}
