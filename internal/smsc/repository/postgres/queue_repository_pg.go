package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/aradit/smsc-gateway/internal/smsc/domain"
	"github.com/aradit/smsc-gateway/internal/smsc/repository"
)

type pgQueueRepository struct {
	db DB
}

// NewPgQueueRepository creates the PostgreSQL queue repository.
func NewPgQueueRepository(db DB) repository.QueueRepository {
	return &pgQueueRepository{db: db}
}

func (r *pgQueueRepository) MarkSending(ctx context.Context, messageID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE message_queue SET status = $2, updated_at = $3 WHERE message_id = $1`,
		messageID, domain.QueueEntryStatusSending, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark queue entry %s sending: %w", messageID, err)
	}
	return nil
}

func (r *pgQueueRepository) Delete(ctx context.Context, messageID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM message_queue WHERE message_id = $1`, messageID)
	if err != nil {
		return fmt.Errorf("failed to delete queue entry %s: %w", messageID, err)
	}
	return nil
}

func (r *pgQueueRepository) ReclaimStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE message_queue SET status = $1, updated_at = $2
		WHERE status = $3 AND updated_at < $4
		RETURNING message_id`,
		domain.QueueEntryStatusPending, time.Now().UTC(),
		domain.QueueEntryStatusSending, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reclaim stale queue entries: %w", err)
	}
	defer rows.Close()

	var messageIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan reclaimed message id: %w", err)
		}
		messageIDs = append(messageIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reclaimed message ids: %w", err)
	}
	return messageIDs, nil
}
