package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/aradit/smsc-gateway/internal/smsc/domain"
	"github.com/aradit/smsc-gateway/internal/smsc/repository"
)

type pgRouteRepository struct {
	db DB
}

// NewPgRouteRepository creates the PostgreSQL route repository.
func NewPgRouteRepository(db DB) repository.RouteRepository {
	return &pgRouteRepository{db: db}
}

func (r *pgRouteRepository) GetDistinctPrefixes(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT prefix FROM routes ORDER BY prefix`)
	if err != nil {
		return nil, fmt.Errorf("failed to query route prefixes: %w", err)
	}
	defer rows.Close()

	var prefixes []string
	for rows.Next() {
		var prefix string
		if err := rows.Scan(&prefix); err != nil {
			return nil, fmt.Errorf("failed to scan prefix: %w", err)
		}
		prefixes = append(prefixes, prefix)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prefixes: %w", err)
	}
	return prefixes, nil
}

func (r *pgRouteRepository) GetByPrefix(ctx context.Context, prefix string) ([]*domain.Route, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, prefix, operator_id, priority, cost, created_at, updated_at
		FROM routes WHERE prefix = $1
		ORDER BY priority DESC, cost ASC`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query routes for prefix %s: %w", prefix, err)
	}
	defer rows.Close()

	var routes []*domain.Route
	for rows.Next() {
		route := &domain.Route{}
		if err := rows.Scan(&route.ID, &route.Prefix, &route.OperatorID,
			&route.Priority, &route.Cost, &route.CreatedAt, &route.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		routes = append(routes, route)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read routes: %w", err)
	}
	return routes, nil
}

func (r *pgRouteRepository) Upsert(ctx context.Context, updates []domain.RouteUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	for _, update := range updates {
		_, err := tx.Exec(ctx, `
			INSERT INTO routes (prefix, operator_id, priority, cost, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT (prefix, operator_id)
			DO UPDATE SET priority = EXCLUDED.priority, cost = EXCLUDED.cost, updated_at = EXCLUDED.updated_at`,
			update.Prefix, update.OperatorID, update.Priority, update.Cost, now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert route %s -> operator %d: %w", update.Prefix, update.OperatorID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit route upsert: %w", err)
	}
	return nil
}
