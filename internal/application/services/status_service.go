package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/domain/entities"
	"github.com/stablepay/vault-indexer/internal/domain/repositories"
)

// StatusService aggregates indexing progress and reconciliation state for the
// operational status endpoints
type StatusService struct {
	cursorRepo  repositories.CursorRepository
	eventRepo   repositories.DepositEventRepository
	anomalyRepo repositories.AnomalyRepository
	logger      *zap.Logger
}

// NewStatusService creates a new status service
func NewStatusService(
	cursorRepo repositories.CursorRepository,
	eventRepo repositories.DepositEventRepository,
	anomalyRepo repositories.AnomalyRepository,
	logger *zap.Logger,
) *StatusService {
	return &StatusService{
		cursorRepo:  cursorRepo,
		eventRepo:   eventRepo,
		anomalyRepo: anomalyRepo,
		logger:      logger,
	}
}

// CursorDTO is the API representation of one chain cursor
type CursorDTO struct {
	ChainID         string `json:"chain_id"`
	ContractAddress string `json:"contract_address"`
	Position        int64  `json:"position"`
	UpdatedAt       string `json:"updated_at"`
}

// StatusResponse summarizes indexing and reconciliation progress
type StatusResponse struct {
	Cursors           []CursorDTO `json:"cursors"`
	UnprocessedEvents int64       `json:"unprocessed_events"`
	NeedsReviewEvents int64       `json:"needs_review_events"`
	Anomalies         int64       `json:"anomalies"`
}

// GetStatus returns the current indexing state across all watched pairs
func (s *StatusService) GetStatus(ctx context.Context) (*StatusResponse, error) {
	cursors, err := s.cursorRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get cursors: %w", err)
	}

	unprocessed, err := s.eventRepo.CountUnprocessed(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count unprocessed events: %w", err)
	}

	needsReview, err := s.eventRepo.CountNeedsReview(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count review events: %w", err)
	}

	anomalies, err := s.anomalyRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count anomalies: %w", err)
	}

	dtos := make([]CursorDTO, len(cursors))
	for i, c := range cursors {
		dtos[i] = CursorDTO{
			ChainID:         c.ChainID,
			ContractAddress: c.ContractAddress,
			Position:        c.Position,
			UpdatedAt:       c.UpdatedAt.Format(time.RFC3339),
		}
	}

	return &StatusResponse{
		Cursors:           dtos,
		UnprocessedEvents: unprocessed,
		NeedsReviewEvents: needsReview,
		Anomalies:         anomalies,
	}, nil
}

// AnomalyDTO is the API representation of a recorded anomaly
type AnomalyDTO struct {
	ID         int64  `json:"id"`
	OrderID    string `json:"order_id"`
	ChainID    string `json:"chain_id"`
	TxID       string `json:"tx_id"`
	EventIndex int64  `json:"event_index"`
	Reason     string `json:"reason"`
	Detail     string `json:"detail,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// AnomalyResponse is the API response for anomaly listings
type AnomalyResponse struct {
	Anomalies []AnomalyDTO `json:"anomalies"`
	Total     int64        `json:"total"`
	Limit     int          `json:"limit"`
	Offset    int          `json:"offset"`
}

// GetAnomalies lists recorded reconciliation anomalies, newest first
func (s *StatusService) GetAnomalies(ctx context.Context, limit, offset int) (*AnomalyResponse, error) {
	anomalies, err := s.anomalyRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list anomalies: %w", err)
	}

	total, err := s.anomalyRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count anomalies: %w", err)
	}

	dtos := make([]AnomalyDTO, len(anomalies))
	for i, a := range anomalies {
		dtos[i] = toAnomalyDTO(&a)
	}

	return &AnomalyResponse{
		Anomalies: dtos,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	}, nil
}

func toAnomalyDTO(a *entities.Anomaly) AnomalyDTO {
	return AnomalyDTO{
		ID:         a.ID,
		OrderID:    a.OrderID,
		ChainID:    a.ChainID,
		TxID:       a.TxID,
		EventIndex: a.EventIndex,
		Reason:     a.Reason,
		Detail:     a.Detail,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
}
