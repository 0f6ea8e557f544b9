package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aradit/smsc-gateway/internal/platform/cache"
	"github.com/aradit/smsc-gateway/internal/smsc/domain"
	"github.com/aradit/smsc-gateway/internal/smsc/repository"
)

const statsCacheTTL = time.Minute

// OperatorStats is the monitoring snapshot for one operator over the
// trailing hour.
type OperatorStats struct {
	OperatorID        int64                 `json:"operator_id"`
	Name              string                `json:"name"`
	CountryCode       string                `json:"country_code"`
	Status            domain.OperatorStatus `json:"status"`
	TotalMessages     int                   `json:"total_messages"`
	DeliveredMessages int                   `json:"delivered_messages"`
	FailedMessages    int                   `json:"failed_messages"`
	CurrentTPS        int                   `json:"current_tps"`
	MaxTPS            int                   `json:"max_tps"`
}

// StatsService aggregates per-operator counters for monitoring callers.
type StatsService struct {
	operatorRepo repository.OperatorRepository
	messageRepo  repository.MessageRepository
	gate         *CapacityGate
	cache        cache.Cache
	logger       *slog.Logger
}

// NewStatsService creates a StatsService.
func NewStatsService(
	operatorRepo repository.OperatorRepository,
	messageRepo repository.MessageRepository,
	gate *CapacityGate,
	c cache.Cache,
	logger *slog.Logger,
) *StatsService {
	return &StatsService{
		operatorRepo: operatorRepo,
		messageRepo:  messageRepo,
		gate:         gate,
		cache:        c,
		logger:       logger.With("component", "stats_service"),
	}
}

// OperatorStats returns the cached hourly snapshot for the operator,
// recomputing it at most once per minute.
func (s *StatsService) OperatorStats(ctx context.Context, operatorID int64) (*OperatorStats, error) {
	operator, err := s.operatorRepo.GetByID(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("operator_stats:%d", operatorID)
	if val, ok, cacheErr := s.cache.Get(ctx, cacheKey); cacheErr == nil && ok {
		var stats OperatorStats
		if json.Unmarshal([]byte(val), &stats) == nil {
			return &stats, nil
		}
	}

	hourAgo := time.Now().UTC().Add(-time.Hour)
	total, err := s.messageRepo.CountByOperatorSince(ctx, operatorID, hourAgo)
	if err != nil {
		return nil, err
	}
	delivered, err := s.messageRepo.CountByOperatorStatusSince(ctx, operatorID, domain.MessageStatusDelivered, hourAgo)
	if err != nil {
		return nil, err
	}
	failed, err := s.messageRepo.CountByOperatorStatusSince(ctx, operatorID, domain.MessageStatusFailed, hourAgo)
	if err != nil {
		return nil, err
	}
	currentTPS, err := s.gate.CurrentTPS(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	stats := &OperatorStats{
		OperatorID:        operator.ID,
		Name:              operator.Name,
		CountryCode:       operator.CountryCode,
		Status:            operator.Status,
		TotalMessages:     total,
		DeliveredMessages: delivered,
		FailedMessages:    failed,
		CurrentTPS:        currentTPS,
		MaxTPS:            operator.MaxTPS,
	}

	if encoded, err := json.Marshal(stats); err == nil {
		if cacheErr := s.cache.Set(ctx, cacheKey, string(encoded), statsCacheTTL); cacheErr != nil {
			s.logger.WarnContext(ctx, "failed to cache operator stats", "operator_id", operatorID, "error", cacheErr)
		}
	}
	return stats, nil
}
