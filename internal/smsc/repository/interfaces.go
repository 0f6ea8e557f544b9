package repository

import (
	"context"
	"time"

	"github.com/aradit/smsc-gateway/internal/smsc/domain"
)

// MessageRepository persists messages and owns the transactional pairing
// with queue entries.
type MessageRepository interface {
	// CreateWithQueueEntry inserts the message and its queue entry in one
	// transaction; either both rows are written or neither is.
	CreateWithQueueEntry(ctx context.Context, msg *domain.Message, entry *domain.QueueEntry) error
	GetByMessageID(ctx context.Context, messageID string) (*domain.Message, error)
	// TransitionStatus moves the message from one status to another and
	// reports whether the guarded update won. Used by both the accept path
	// and the worker so a cancel racing a pickup resolves on the status row.
	TransitionStatus(ctx context.Context, messageID string, from, to domain.MessageStatus) (bool, error)
	// MarkFailed records a failure with its error text. Only non-terminal
	// messages are touched.
	MarkFailed(ctx context.Context, messageID string, errorMessage string) error
	// CancelIfCancellable atomically deletes the queue entry and sets the
	// message cancelled when status is still pending or queued. Returns
	// false, not an error, when the message is absent or past cancelling.
	CancelIfCancellable(ctx context.Context, messageID string) (bool, error)
	CountByOperatorSince(ctx context.Context, operatorID int64, since time.Time) (int, error)
	CountByOperatorStatusSince(ctx context.Context, operatorID int64, status domain.MessageStatus, since time.Time) (int, error)
}

// OperatorRepository reads carrier configuration. Operators are administered
// outside the core; the core only reads them.
type OperatorRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Operator, error)
}

// RouteRepository reads and administers prefix routes.
type RouteRepository interface {
	GetDistinctPrefixes(ctx context.Context) ([]string, error)
	// GetByPrefix returns routes for the prefix ordered by
	// priority desc, cost asc.
	GetByPrefix(ctx context.Context, prefix string) ([]*domain.Route, error)
	Upsert(ctx context.Context, updates []domain.RouteUpdate) error
}

// QueueRepository manages the durable handoff records on the delivery path.
type QueueRepository interface {
	// MarkSending stamps the entry as leased by a worker.
	MarkSending(ctx context.Context, messageID string) error
	Delete(ctx context.Context, messageID string) error
	// ReclaimStale flips entries stuck in sending since before the cutoff
	// back to pending and returns their message IDs for republishing.
	ReclaimStale(ctx context.Context, cutoff time.Time) ([]string, error)
}
