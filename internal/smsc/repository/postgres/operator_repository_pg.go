package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aradit/smsc-gateway/internal/smsc/domain"
	"github.com/aradit/smsc-gateway/internal/smsc/repository"
)

type pgOperatorRepository struct {
	db DB
}

// NewPgOperatorRepository creates the PostgreSQL operator repository.
func NewPgOperatorRepository(db DB) repository.OperatorRepository {
	return &pgOperatorRepository{db: db}
}

func (r *pgOperatorRepository) GetByID(ctx context.Context, id int64) (*domain.Operator, error) {
	op := &domain.Operator{}
	var rawParams []byte
	err := r.db.QueryRow(ctx, `
		SELECT id, name, country_code, connection_params, status, priority, max_tps, created_at, updated_at
		FROM operators WHERE id = $1`, id,
	).Scan(
		&op.ID, &op.Name, &op.CountryCode, &rawParams, &op.Status,
		&op.Priority, &op.MaxTPS, &op.CreatedAt, &op.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOperatorNotFound
		}
		return nil, fmt.Errorf("failed to get operator %d: %w", id, err)
	}

	op.ConnectionParams, err = domain.ParseConnectionParams(rawParams)
	if err != nil {
		return nil, fmt.Errorf("operator %d: %w", id, err)
	}
	return op, nil
}
