package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/domain/entities"
	"github.com/stablepay/vault-indexer/internal/domain/repositories"
	"github.com/stablepay/vault-indexer/internal/infrastructure/cache"
)

// DepositService provides business logic for deposit-event queries
type DepositService struct {
	eventRepo repositories.DepositEventRepository
	cache     *cache.RedisCache
	logger    *zap.Logger
}

// NewDepositService creates a new deposit query service
func NewDepositService(
	eventRepo repositories.DepositEventRepository,
	cache *cache.RedisCache,
	logger *zap.Logger,
) *DepositService {
	return &DepositService{
		eventRepo: eventRepo,
		cache:     cache,
		logger:    logger,
	}
}

// DepositResponse is the API response for deposit queries
type DepositResponse struct {
	Deposits []DepositDTO `json:"deposits"`
	Total    int64        `json:"total"`
	Limit    int          `json:"limit"`
	Offset   int          `json:"offset"`
	HasMore  bool         `json:"has_more"`
}

// DepositDTO is the API representation of a deposit event
type DepositDTO struct {
	ChainID         string `json:"chain_id"`
	ContractAddress string `json:"contract_address"`
	Payer           string `json:"payer"`
	OrderID         string `json:"order_id"`
	Amount          string `json:"amount"`
	TxID            string `json:"tx_id"`
	EventIndex      int64  `json:"event_index"`
	Position        int64  `json:"position"`
	EventTime       string `json:"event_time"`
	Processed       bool   `json:"processed"`
	NeedsReview     bool   `json:"needs_review"`
}

// GetDeposits retrieves deposit events based on filter
func (s *DepositService) GetDeposits(ctx context.Context, filter entities.DepositEventFilter) (*DepositResponse, error) {
	cacheKey := s.generateCacheKey(filter)

	var cached DepositResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	events, err := s.eventRepo.GetByFilter(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposits: %w", err)
	}

	total, err := s.eventRepo.GetCount(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit count: %w", err)
	}

	dtos := make([]DepositDTO, len(events))
	for i, e := range events {
		dtos[i] = DepositDTO{
			ChainID:         e.ChainID,
			ContractAddress: e.ContractAddress,
			Payer:           e.Payer,
			OrderID:         e.OrderID,
			Amount:          e.Amount,
			TxID:            e.TxID,
			EventIndex:      e.EventIndex,
			Position:        e.Position,
			EventTime:       e.EventTime.Format("2006-01-02T15:04:05Z"),
			Processed:       e.Processed,
			NeedsReview:     e.NeedsReview,
		}
	}

	response := &DepositResponse{
		Deposits: dtos,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
		HasMore:  int64(filter.Offset+len(events)) < total,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, response); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

// GetDepositsByOrder retrieves deposit events for a specific order
func (s *DepositService) GetDepositsByOrder(ctx context.Context, orderID string, limit, offset int) (*DepositResponse, error) {
	orderID = strings.ToLower(orderID)
	filter := entities.DepositEventFilter{
		OrderID: &orderID,
		Limit:   limit,
		Offset:  offset,
	}
	return s.GetDeposits(ctx, filter)
}

// GetDepositsByPayer retrieves deposit events sent by a specific address
func (s *DepositService) GetDepositsByPayer(ctx context.Context, payer string, limit, offset int) (*DepositResponse, error) {
	payer = strings.ToLower(payer)
	filter := entities.DepositEventFilter{
		Payer:  &payer,
		Limit:  limit,
		Offset: offset,
	}
	return s.GetDeposits(ctx, filter)
}

// generateCacheKey generates a unique cache key for the filter
func (s *DepositService) generateCacheKey(filter entities.DepositEventFilter) string {
	var parts []string

	if filter.ChainID != nil {
		parts = append(parts, "chain:"+*filter.ChainID)
	}
	if filter.OrderID != nil {
		parts = append(parts, "order:"+*filter.OrderID)
	}
	if filter.Payer != nil {
		parts = append(parts, "payer:"+*filter.Payer)
	}
	if filter.Processed != nil {
		parts = append(parts, fmt.Sprintf("p:%t", *filter.Processed))
	}
	if filter.NeedsReview != nil {
		parts = append(parts, fmt.Sprintf("nr:%t", *filter.NeedsReview))
	}
	if filter.FromPosition != nil {
		parts = append(parts, fmt.Sprintf("fp:%d", *filter.FromPosition))
	}
	if filter.ToPosition != nil {
		parts = append(parts, fmt.Sprintf("tp:%d", *filter.ToPosition))
	}

	parts = append(parts, fmt.Sprintf("l:%d:o:%d", filter.Limit, filter.Offset))

	key := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(key))
	return "deposits:" + hex.EncodeToString(hash[:8])
}
