package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aradit/smsc-gateway/internal/platform/cache"
	"github.com/aradit/smsc-gateway/internal/smsc/domain"
	"github.com/aradit/smsc-gateway/internal/smsc/repository"
)

// CapacityGate enforces the per-operator TPS ceiling. The sent-count for the
// trailing second is cached so frequent admission checks stay cheap; the
// count may therefore run up to one cache TTL stale, which is acceptable for
// advisory admission.
type CapacityGate struct {
	messageRepo repository.MessageRepository
	cache       cache.Cache
	cacheTTL    time.Duration
	logger      *slog.Logger
}

// NewCapacityGate creates a CapacityGate. cacheTTL bounds the staleness of
// the cached count; the reference configuration is one second.
func NewCapacityGate(messageRepo repository.MessageRepository, c cache.Cache, cacheTTL time.Duration, logger *slog.Logger) *CapacityGate {
	return &CapacityGate{
		messageRepo: messageRepo,
		cache:       c,
		cacheTTL:    cacheTTL,
		logger:      logger.With("component", "capacity_gate"),
	}
}

func tpsCacheKey(operatorID int64) string {
	return fmt.Sprintf("operator_tps:%d", operatorID)
}

// CurrentTPS returns the number of messages created for the operator within
// the trailing one-second window.
func (g *CapacityGate) CurrentTPS(ctx context.Context, operatorID int64) (int, error) {
	key := tpsCacheKey(operatorID)

	if val, ok, err := g.cache.Get(ctx, key); err == nil && ok {
		if count, convErr := strconv.Atoi(val); convErr == nil {
			return count, nil
		}
	} else if err != nil {
		g.logger.WarnContext(ctx, "TPS cache read failed, falling back to count query", "operator_id", operatorID, "error", err)
	}

	count, err := g.messageRepo.CountByOperatorSince(ctx, operatorID, time.Now().UTC().Add(-time.Second))
	if err != nil {
		return 0, fmt.Errorf("failed to compute current TPS for operator %d: %w", operatorID, err)
	}

	if err := g.cache.Set(ctx, key, strconv.Itoa(count), g.cacheTTL); err != nil {
		g.logger.WarnContext(ctx, "failed to cache TPS count", "operator_id", operatorID, "error", err)
	}
	return count, nil
}

// HasCapacity reports whether the operator is under its admission ceiling.
func (g *CapacityGate) HasCapacity(ctx context.Context, op *domain.Operator) (bool, error) {
	current, err := g.CurrentTPS(ctx, op.ID)
	if err != nil {
		return false, err
	}
	return current < op.MaxTPS, nil
}
