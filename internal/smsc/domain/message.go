package domain

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageStatus is the lifecycle state of a message. Transitions are a
// strict forward progression:
//
//	pending -> queued -> sending -> sent -> delivered
//	pending/queued -> cancelled
//	pending/queued/sending -> failed
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusSending   MessageStatus = "sending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusFailed    MessageStatus = "failed"
	MessageStatusCancelled MessageStatus = "cancelled"
)

// Value implements driver.Valuer.
func (ms MessageStatus) Value() (driver.Value, error) {
	return string(ms), nil
}

// Scan implements sql.Scanner.
func (ms *MessageStatus) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan MessageStatus: value is %T, not string or []byte", value)
		}
		strVal = string(bytesVal)
	}
	*ms = MessageStatus(strVal)
	switch *ms {
	case MessageStatusPending, MessageStatusQueued, MessageStatusSending,
		MessageStatusSent, MessageStatusDelivered, MessageStatusFailed, MessageStatusCancelled:
		return nil
	default:
		return fmt.Errorf("unknown MessageStatus value: %s", strVal)
	}
}

// IsTerminal reports whether no further transition is allowed. Sent is not
// terminal: a delivery receipt may still move it to delivered.
func (ms MessageStatus) IsTerminal() bool {
	switch ms {
	case MessageStatusDelivered, MessageStatusFailed, MessageStatusCancelled:
		return true
	}
	return false
}

// IsCancellable reports whether a cancel request may still win.
func (ms MessageStatus) IsCancellable() bool {
	return ms == MessageStatusPending || ms == MessageStatusQueued
}

// Message is one outbound SMS accepted by the gateway. MessageID is assigned
// once at creation and never reused; cancellation is a status transition,
// the row is never deleted.
type Message struct {
	ID           int64         `json:"id"`
	MessageID    string        `json:"message_id"`
	Sender       string        `json:"sender"`
	Recipient    string        `json:"recipient"`
	Content      string        `json:"content"`
	Status       MessageStatus `json:"status"`
	ErrorMessage *string       `json:"error_message,omitempty"`
	OperatorID   int64         `json:"operator_id"`
	CallbackURL  *string       `json:"callback_url,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewMessageID generates a globally unique message identifier.
func NewMessageID() string {
	return "MSG_" + uuid.NewString()
}
