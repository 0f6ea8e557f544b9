package domain

import "time"

// QueueEntryStatus is the delivery-path state of a queue entry.
// Entries are deleted outright once delivery resolves or the message is
// cancelled, so there is no terminal status.
type QueueEntryStatus string

const (
	QueueEntryStatusPending QueueEntryStatus = "pending"
	QueueEntryStatusSending QueueEntryStatus = "sending"
)

// QueueEntry is the durable handoff record between the synchronous accept
// path and the asynchronous delivery path. It is created in the same
// transaction as its Message and must never diverge from it in operator
// assignment.
type QueueEntry struct {
	ID          int64            `json:"id"`
	MessageID   string           `json:"message_id"`
	OperatorID  int64            `json:"operator_id"`
	Priority    int              `json:"priority"`
	ScheduledAt time.Time        `json:"scheduled_at"`
	Status      QueueEntryStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
