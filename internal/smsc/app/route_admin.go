package app

import (
	"context"
	"log/slog"

	"github.com/aradit/smsc-gateway/internal/platform/cache"
	"github.com/aradit/smsc-gateway/internal/smsc/domain"
	"github.com/aradit/smsc-gateway/internal/smsc/repository"
)

// RouteAdminService applies route configuration changes and invalidates the
// routing caches. Per-recipient bindings are left to expire on their TTL;
// only the operator active-check guards correctness, so bounded staleness
// of a binding is tolerated.
type RouteAdminService struct {
	routeRepo repository.RouteRepository
	cache     cache.Cache
	logger    *slog.Logger
}

// NewRouteAdminService creates a RouteAdminService.
func NewRouteAdminService(routeRepo repository.RouteRepository, c cache.Cache, logger *slog.Logger) *RouteAdminService {
	return &RouteAdminService{
		routeRepo: routeRepo,
		cache:     c,
		logger:    logger.With("component", "route_admin"),
	}
}

// UpdateRoutes upserts the given (prefix, operator) routes and flushes the
// prefix-set cache so new prefixes take effect immediately.
func (s *RouteAdminService) UpdateRoutes(ctx context.Context, updates []domain.RouteUpdate) error {
	if err := s.routeRepo.Upsert(ctx, updates); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, routePrefixesKey); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate prefix cache", "error", err)
	}
	s.logger.InfoContext(ctx, "routes updated", "count", len(updates))
	return nil
}
