package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/config"
	"github.com/stablepay/vault-indexer/internal/domain/entities"
	"github.com/stablepay/vault-indexer/internal/domain/repositories"
	"github.com/stablepay/vault-indexer/internal/infrastructure/source"
	"github.com/stablepay/vault-indexer/internal/metrics"
)

// Scanner drives ingestion for one (chain, contract) pair. Scanners share no
// mutable state with each other except the backing store; within a scanner,
// batches are strictly sequential.
type Scanner struct {
	source            source.EventSource
	ledger            repositories.SettlementLedger
	cursorRepo        repositories.CursorRepository
	cfg               config.IndexerConfig
	confirmationDepth int64
	startPosition     int64
	health            *HealthRegistry
	logger            *zap.Logger
}

// NewScanner creates a scanner for one watch target
func NewScanner(
	src source.EventSource,
	ledger repositories.SettlementLedger,
	cursorRepo repositories.CursorRepository,
	cfg config.IndexerConfig,
	health *HealthRegistry,
	logger *zap.Logger,
) *Scanner {
	return &Scanner{
		source:            src,
		ledger:            ledger,
		cursorRepo:        cursorRepo,
		cfg:               cfg,
		confirmationDepth: cfg.ConfirmationDepth(src.ChainID()),
		startPosition:     cfg.StartPosition(src.ChainID()),
		health:            health,
		logger: logger.With(
			zap.String("chain_id", src.ChainID()),
			zap.String("contract", src.ContractAddress()),
		),
	}
}

// ScanOnce performs one full scan iteration: read the cursor, pull confirmed
// ranges, store + reconcile each batch atomically, and advance the cursor
// with the batch's commit. A failure leaves the cursor at the last committed
// position, so the next iteration resumes with no loss and no duplication.
func (s *Scanner) ScanOnce(ctx context.Context) error {
	start := time.Now()
	chainID := s.source.ChainID()
	contract := s.source.ContractAddress()

	head, err := s.headWithRetry(ctx)
	if err != nil {
		// If the head is unavailable the scanner idles and retries on its
		// next tick; the cursor is never advanced speculatively.
		s.health.SetDegraded(chainID, contract, err)
		metrics.ScanErrors.WithLabelValues(chainID).Inc()
		return err
	}

	// Positions inside the confirmation window may still be reorganized
	// away; they are never scanned.
	safe := head - s.confirmationDepth
	position, err := s.currentPosition(ctx)
	if err != nil {
		metrics.ScanErrors.WithLabelValues(chainID).Inc()
		return err
	}

	if position >= safe {
		s.health.SetHealthy(chainID, contract, position)
		return nil
	}

	for _, r := range SplitScanRange(position+1, safe, s.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}

		events, err := s.fetchWithRetry(ctx, r.From, r.To)
		if err != nil {
			s.health.SetDegraded(chainID, contract, err)
			metrics.ScanErrors.WithLabelValues(chainID).Inc()
			return err
		}

		batch := make([]entities.DepositEvent, len(events))
		for i, ev := range events {
			batch[i] = entities.DepositEvent{
				ChainID:         ev.ChainID,
				ContractAddress: ev.ContractAddress,
				Payer:           ev.Payer,
				OrderID:         ev.OrderID,
				Amount:          ev.Amount,
				TxID:            ev.TxID,
				EventIndex:      ev.EventIndex,
				Position:        ev.Position,
				EventTime:       ev.Timestamp,
			}
		}

		result, err := s.ledger.ProcessBatch(ctx, chainID, contract, batch, r.To)
		if err != nil {
			if errors.Is(err, repositories.ErrStaleAdvance) {
				// Attempted rewind is a programming or config error; abort
				// the iteration without commit and surface it loudly.
				s.logger.Error("Cursor advance rejected as stale",
					zap.Int64("from", r.From),
					zap.Int64("to", r.To),
				)
			}
			metrics.ScanErrors.WithLabelValues(chainID).Inc()
			return err
		}

		metrics.EventsStored.WithLabelValues(chainID).Add(float64(result.Stored))
		metrics.DuplicateEvents.WithLabelValues(chainID).Add(float64(result.Duplicates))
		metrics.OrdersSettled.WithLabelValues(chainID).Add(float64(result.Settled))
		metrics.CursorPosition.WithLabelValues(chainID, contract).Set(float64(r.To))

		s.logger.Debug("Processed scan batch",
			zap.Int64("from", r.From),
			zap.Int64("to", r.To),
			zap.Int("stored", result.Stored),
			zap.Int("duplicates", result.Duplicates),
			zap.Int("settled", result.Settled),
			zap.Int("anomalies", result.Anomalies),
			zap.Int("unmatched", result.Unmatched),
		)

		position = r.To
	}

	s.health.SetHealthy(chainID, contract, position)
	metrics.ScanLatency.WithLabelValues(chainID).Observe(time.Since(start).Seconds())

	return nil
}

// Run polls ScanOnce on a fixed interval until the stop channel closes or
// the context is cancelled. Scan errors are logged and the loop keeps going;
// the cursor guarantees the next tick resumes correctly.
func (s *Scanner) Run(ctx context.Context, interval time.Duration, stopCh <-chan struct{}) {
	s.logger.Info("Scanner started",
		zap.Int64("confirmation_depth", s.confirmationDepth),
		zap.Int64("start_position", s.startPosition),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.ScanOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("Scan iteration failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			s.logger.Info("Scanner stopped")
			return
		case <-ticker.C:
			if err := s.ScanOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Scan iteration failed", zap.Error(err))
			}
		}
	}
}

// currentPosition reads the committed cursor, falling back to the configured
// starting position for a never-scanned pair
func (s *Scanner) currentPosition(ctx context.Context) (int64, error) {
	cursor, err := s.cursorRepo.Get(ctx, s.source.ChainID(), s.source.ContractAddress())
	if err != nil {
		return 0, fmt.Errorf("failed to read cursor: %w", err)
	}
	if cursor == nil {
		return s.startPosition, nil
	}
	return cursor.Position, nil
}

func (s *Scanner) headWithRetry(ctx context.Context) (int64, error) {
	var head int64
	err := s.withRetry(ctx, "head position", func(ctx context.Context) error {
		var err error
		head, err = s.source.HeadPosition(ctx)
		return err
	})
	return head, err
}

func (s *Scanner) fetchWithRetry(ctx context.Context, from, to int64) ([]source.CanonicalEvent, error) {
	var events []source.CanonicalEvent
	err := s.withRetry(ctx, "fetch events", func(ctx context.Context) error {
		var err error
		events, err = s.source.FetchEvents(ctx, from, to)
		return err
	})
	return events, err
}

// withRetry runs a source call with bounded exponential backoff and jitter.
// Source failures are transient by classification; exhausting the budget
// degrades this chain only.
func (s *Scanner) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	delay := s.cfg.RetryBaseDelay
	var lastErr error

	for attempt := 1; attempt <= s.cfg.RetryMaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		lastErr = fn(callCtx)
		cancel()

		if lastErr == nil {
			return nil
		}

		if attempt == s.cfg.RetryMaxAttempts {
			break
		}

		sleep := delay + time.Duration(rand.Int63n(int64(delay)/2+1))
		if sleep > s.cfg.RetryMaxDelay {
			sleep = s.cfg.RetryMaxDelay
		}

		s.logger.Warn("Source call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", sleep),
			zap.Error(lastErr),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		delay *= 2
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, s.cfg.RetryMaxAttempts, lastErr)
}

// ScanRange represents a bounded range of positions to fetch
type ScanRange struct {
	From int64
	To   int64
}

// SplitScanRange splits [from, to] into batches of at most batchSize
func SplitScanRange(from, to, batchSize int64) []ScanRange {
	if from > to {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	var ranges []ScanRange
	for current := from; current <= to; current += batchSize {
		end := current + batchSize - 1
		if end > to {
			end = to
		}
		ranges = append(ranges, ScanRange{From: current, To: end})
	}

	return ranges
}
