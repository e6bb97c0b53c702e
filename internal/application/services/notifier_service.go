package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/config"
	"github.com/stablepay/vault-indexer/internal/domain/repositories"
	"github.com/stablepay/vault-indexer/internal/metrics"
)

// Notifier delivers one order transition to the external collaborator. A nil
// return means the delivery was acknowledged.
type Notifier interface {
	Notify(ctx context.Context, orderID, status string) error
}

// NotifierService dispatches notifications for orders that reached a terminal
// settlement state. Delivery is at-least-once: an order is only marked
// notified after the collaborator acknowledges, so a crash between delivery
// and mark resends on the next poll.
type NotifierService struct {
	orderRepo repositories.OrderRepository
	notifier  Notifier
	cfg       config.NotifyConfig
	logger    *zap.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewNotifierService creates the notification dispatcher
func NewNotifierService(
	orderRepo repositories.OrderRepository,
	notifier Notifier,
	cfg config.NotifyConfig,
	logger *zap.Logger,
) *NotifierService {
	return &NotifierService{
		orderRepo: orderRepo,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the dispatch loop
func (s *NotifierService) Start(ctx context.Context) {
	s.logger.Info("Starting notification dispatcher",
		zap.Duration("poll_interval", s.cfg.PollInterval),
	)

	go func() {
		defer close(s.doneCh)

		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				if err := s.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
					s.logger.Error("Notification dispatch failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop signals the loop to finish and waits for it
func (s *NotifierService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.logger.Info("Notification dispatcher stopped")
}

// DispatchOnce delivers pending notifications for one batch of terminal
// orders. A failed delivery leaves the order unnotified; it is retried on the
// next poll with no cap, since the collaborator deduplicates.
func (s *NotifierService) DispatchOnce(ctx context.Context) error {
	orders, err := s.orderRepo.GetUnnotified(ctx, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			return err
		}

		status := string(order.Status)
		if err := s.notifier.Notify(ctx, order.OrderID, status); err != nil {
			metrics.NotificationFailures.Inc()
			s.logger.Warn("Notification delivery failed",
				zap.String("order_id", order.OrderID),
				zap.String("status", status),
				zap.Error(err),
			)
			continue
		}

		if err := s.orderRepo.MarkNotified(ctx, order.OrderID); err != nil {
			// The delivery went out but the mark did not stick; the next poll
			// resends and the collaborator drops the duplicate.
			s.logger.Error("Failed to mark order notified",
				zap.String("order_id", order.OrderID),
				zap.Error(err),
			)
			continue
		}

		metrics.NotificationsSent.WithLabelValues(status).Inc()
	}

	return nil
}
