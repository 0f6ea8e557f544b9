package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aradit/smsc-gateway/internal/platform/cache"
	"github.com/aradit/smsc-gateway/internal/smsc/domain"
	"github.com/aradit/smsc-gateway/internal/smsc/repository"
)

const (
	routeBindingKeyPrefix = "route:"
	routePrefixesKey      = "route_prefixes"
)

// Router selects an operator for a destination number: normalize, longest
// matching prefix, then candidates in priority desc / cost asc order until
// one is active and under capacity. The caches are an optimization only;
// a cached binding is still re-checked against the operator's active flag.
type Router struct {
	routeRepo    repository.RouteRepository
	operatorRepo repository.OperatorRepository
	gate         *CapacityGate
	cache        cache.Cache
	cacheTTL     time.Duration
	logger       *slog.Logger
}

// NewRouter creates a Router. cacheTTL bounds both the route-binding cache
// and the prefix-set cache.
func NewRouter(
	routeRepo repository.RouteRepository,
	operatorRepo repository.OperatorRepository,
	gate *CapacityGate,
	c cache.Cache,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *Router {
	return &Router{
		routeRepo:    routeRepo,
		operatorRepo: operatorRepo,
		gate:         gate,
		cache:        c,
		cacheTTL:     cacheTTL,
		logger:       logger.With("component", "router"),
	}
}

// NormalizeRecipient strips every non-digit character and prefixes the
// result with '+'. The transform is idempotent.
func NormalizeRecipient(recipient string) string {
	var b strings.Builder
	b.Grow(len(recipient) + 1)
	b.WriteByte('+')
	for _, r := range recipient {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FindRoute returns the operator that should carry traffic to the recipient.
// It fails with domain.ErrRouteNotFound when no prefix matches and
// domain.ErrNoAvailableOperator when every candidate is inactive or
// saturated. Single-shot: no internal retries, no persisted mutation.
func (r *Router) FindRoute(ctx context.Context, recipient string) (*domain.Operator, error) {
	normalized := NormalizeRecipient(recipient)

	if op := r.cachedOperator(ctx, normalized); op != nil {
		return op, nil
	}

	prefix, err := r.longestMatchingPrefix(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		return nil, domain.ErrRouteNotFound
	}

	routes, err := r.routeRepo.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	for _, route := range routes {
		op, err := r.availableOperator(ctx, route.OperatorID)
		if err != nil {
			return nil, err
		}
		if op == nil {
			continue
		}

		r.cacheBinding(ctx, normalized, op.ID)
		r.logger.DebugContext(ctx, "route selected",
			"recipient", normalized, "prefix", prefix, "operator_id", op.ID)
		return op, nil
	}

	return nil, domain.ErrNoAvailableOperator
}

// cachedOperator resolves a cached binding, dropping it when the bound
// operator has gone inactive or away.
func (r *Router) cachedOperator(ctx context.Context, normalized string) *domain.Operator {
	val, ok, err := r.cache.Get(ctx, routeBindingKeyPrefix+normalized)
	if err != nil {
		r.logger.WarnContext(ctx, "route cache read failed", "error", err)
		return nil
	}
	if !ok {
		routingCacheCounter.WithLabelValues("miss").Inc()
		return nil
	}

	operatorID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		routingCacheCounter.WithLabelValues("stale").Inc()
		return nil
	}

	op, err := r.operatorRepo.GetByID(ctx, operatorID)
	if err != nil || !op.IsActive() {
		if err != nil && !errors.Is(err, domain.ErrOperatorNotFound) {
			r.logger.WarnContext(ctx, "cached operator lookup failed", "operator_id", operatorID, "error", err)
		}
		routingCacheCounter.WithLabelValues("stale").Inc()
		return nil
	}

	routingCacheCounter.WithLabelValues("hit").Inc()
	return op
}

// longestMatchingPrefix finds the longest configured prefix that literally
// prefixes the normalized number. Prefixes are matched on digits so routes
// configured with or without the leading '+' behave the same.
func (r *Router) longestMatchingPrefix(ctx context.Context, normalized string) (string, error) {
	prefixes, err := r.prefixes(ctx)
	if err != nil {
		return "", err
	}

	sorted := make([]string, len(prefixes))
	copy(sorted, prefixes)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	digits := strings.TrimPrefix(normalized, "+")
	for _, prefix := range sorted {
		if strings.HasPrefix(digits, strings.TrimPrefix(prefix, "+")) {
			return prefix, nil
		}
	}
	return "", nil
}

func (r *Router) prefixes(ctx context.Context) ([]string, error) {
	if val, ok, err := r.cache.Get(ctx, routePrefixesKey); err == nil && ok {
		var prefixes []string
		if jsonErr := json.Unmarshal([]byte(val), &prefixes); jsonErr == nil {
			return prefixes, nil
		}
	}

	prefixes, err := r.routeRepo.GetDistinctPrefixes(ctx)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(prefixes); err == nil {
		if cacheErr := r.cache.Set(ctx, routePrefixesKey, string(encoded), r.cacheTTL); cacheErr != nil {
			r.logger.WarnContext(ctx, "failed to cache prefix set", "error", cacheErr)
		}
	}
	return prefixes, nil
}

// availableOperator returns the operator when it is active and under
// capacity, nil when the candidate should be skipped.
func (r *Router) availableOperator(ctx context.Context, operatorID int64) (*domain.Operator, error) {
	op, err := r.operatorRepo.GetByID(ctx, operatorID)
	if err != nil {
		if errors.Is(err, domain.ErrOperatorNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !op.IsActive() {
		return nil, nil
	}

	hasCapacity, err := r.gate.HasCapacity(ctx, op)
	if err != nil {
		return nil, err
	}
	if !hasCapacity {
		r.logger.DebugContext(ctx, "operator at capacity, trying next candidate",
			"operator_id", op.ID, "max_tps", op.MaxTPS)
		return nil, nil
	}
	return op, nil
}

func (r *Router) cacheBinding(ctx context.Context, normalized string, operatorID int64) {
	err := r.cache.Set(ctx, routeBindingKeyPrefix+normalized,
		strconv.FormatInt(operatorID, 10), r.cacheTTL)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to cache route binding", "error", err)
	}
}
