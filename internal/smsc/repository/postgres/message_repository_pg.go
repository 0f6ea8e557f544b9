package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aradit/smsc-gateway/internal/smsc/domain"
	"github.com/aradit/smsc-gateway/internal/smsc/repository"
)

type pgMessageRepository struct {
	db DB
}

// NewPgMessageRepository creates the PostgreSQL message repository.
func NewPgMessageRepository(db DB) repository.MessageRepository {
	return &pgMessageRepository{db: db}
}

const messageColumns = `id, message_id, sender, recipient, content, status, error_message, operator_id, callback_url, created_at, updated_at`

func (r *pgMessageRepository) CreateWithQueueEntry(ctx context.Context, msg *domain.Message, entry *domain.QueueEntry) error {
	now := time.Now().UTC()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	if msg.Status == "" {
		msg.Status = domain.MessageStatusPending
	}
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if entry.Status == "" {
		entry.Status = domain.QueueEntryStatusPending
	}
	if entry.ScheduledAt.IsZero() {
		entry.ScheduledAt = now
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO messages (message_id, sender, recipient, content, status, error_message, operator_id, callback_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		msg.MessageID, msg.Sender, msg.Recipient, msg.Content, msg.Status,
		msg.ErrorMessage, msg.OperatorID, msg.CallbackURL, msg.CreatedAt, msg.UpdatedAt,
	).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO message_queue (message_id, operator_id, priority, scheduled_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		entry.MessageID, entry.OperatorID, entry.Priority, entry.ScheduledAt,
		entry.Status, entry.CreatedAt, entry.UpdatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert queue entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit message creation: %w", err)
	}
	return nil
}

func (r *pgMessageRepository) GetByMessageID(ctx context.Context, messageID string) (*domain.Message, error) {
	msg := &domain.Message{}
	err := r.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE message_id = $1`, messageID).Scan(
		&msg.ID, &msg.MessageID, &msg.Sender, &msg.Recipient, &msg.Content, &msg.Status,
		&msg.ErrorMessage, &msg.OperatorID, &msg.CallbackURL, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	return msg, nil
}

func (r *pgMessageRepository) TransitionStatus(ctx context.Context, messageID string, from, to domain.MessageStatus) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages SET status = $3, updated_at = $4
		WHERE message_id = $1 AND status = $2`,
		messageID, from, to, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition message %s from %s to %s: %w", messageID, from, to, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgMessageRepository) MarkFailed(ctx context.Context, messageID string, errorMessage string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE messages SET status = $2, error_message = $3, updated_at = $4
		WHERE message_id = $1 AND status IN ($5, $6, $7)`,
		messageID, domain.MessageStatusFailed, errorMessage, time.Now().UTC(),
		domain.MessageStatusPending, domain.MessageStatusQueued, domain.MessageStatusSending,
	)
	if err != nil {
		return fmt.Errorf("failed to mark message %s failed: %w", messageID, err)
	}
	return nil
}

func (r *pgMessageRepository) CancelIfCancellable(ctx context.Context, messageID string) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE messages SET status = $2, updated_at = $3
		WHERE message_id = $1 AND status IN ($4, $5)`,
		messageID, domain.MessageStatusCancelled, time.Now().UTC(),
		domain.MessageStatusPending, domain.MessageStatusQueued,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel message %s: %w", messageID, err)
	}
	if tag.RowsAffected() == 0 {
		// Absent, in flight or already terminal: the cancel loses the race.
		return false, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM message_queue WHERE message_id = $1`, messageID); err != nil {
		return false, fmt.Errorf("failed to delete queue entry for %s: %w", messageID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return true, nil
}

func (r *pgMessageRepository) CountByOperatorSince(ctx context.Context, operatorID int64, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages WHERE operator_id = $1 AND created_at >= $2`,
		operatorID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages for operator %d: %w", operatorID, err)
	}
	return count, nil
}

func (r *pgMessageRepository) CountByOperatorStatusSince(ctx context.Context, operatorID int64, status domain.MessageStatus, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages WHERE operator_id = $1 AND status = $2 AND created_at >= $3`,
		operatorID, status, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s messages for operator %d: %w", status, operatorID, err)
	}
	return count, nil
}
