package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/config"
)

// IndexerService supervises one scanner goroutine per watch target plus the
// reconciliation sweep. Each scanner polls independently, so one stalled
// chain never blocks the others.
type IndexerService struct {
	scanners   []*Scanner
	reconciler *ReconcilerService
	cfg        config.IndexerConfig
	logger     *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewIndexerService creates the scanning supervisor
func NewIndexerService(
	scanners []*Scanner,
	reconciler *ReconcilerService,
	cfg config.IndexerConfig,
	logger *zap.Logger,
) *IndexerService {
	return &IndexerService{
		scanners:   scanners,
		reconciler: reconciler,
		cfg:        cfg,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Start launches all scanner loops and the reconciliation sweep
func (s *IndexerService) Start(ctx context.Context) {
	s.logger.Info("Starting indexer",
		zap.Int("scanners", len(s.scanners)),
		zap.Duration("poll_interval", s.cfg.PollInterval),
	)

	for _, scanner := range s.scanners {
		s.wg.Add(1)
		go func(sc *Scanner) {
			defer s.wg.Done()
			sc.Run(ctx, s.cfg.PollInterval, s.stopCh)
		}(scanner)
	}

	if s.reconciler != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.reconciler.Run(ctx, s.stopCh)
		}()
	}
}

// Stop signals all loops to finish their current iteration and waits
func (s *IndexerService) Stop() {
	s.logger.Info("Stopping indexer")
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Indexer stopped")
}
