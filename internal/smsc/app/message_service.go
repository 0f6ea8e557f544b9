package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aradit/smsc-gateway/internal/smsc/domain"
	"github.com/aradit/smsc-gateway/internal/smsc/repository"
)

const (
	// DeliveryJobSubject is the NATS lane carrying delivery jobs.
	DeliveryJobSubject = "sms.jobs.send"
	// DeliveryQueueGroup shares the lane across worker instances.
	DeliveryQueueGroup = "smsc_delivery_workers"

	// DefaultPriority applies when the caller does not specify one.
	DefaultPriority = 3
)

// DeliveryJob is the NATS payload handed from the accept path to workers.
type DeliveryJob struct {
	MessageID string `json:"message_id"`
}

// JobPublisher hands delivery jobs to the asynchronous path.
type JobPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// BulkItem is one message of a bulk send request.
type BulkItem struct {
	Sender    string
	Recipient string
	Content   string
	Priority  int
}

// BulkResult captures one item's outcome; items never affect each other.
type BulkResult struct {
	MessageID string `json:"message_id,omitempty"`
	Recipient string `json:"recipient"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// MessageService is the message lifecycle and queue coordinator: it routes,
// transactionally persists Message+QueueEntry, and hands committed messages
// to the delivery lane.
type MessageService struct {
	messageRepo repository.MessageRepository
	queueRepo   repository.QueueRepository
	router      *Router
	publisher   JobPublisher
	logger      *slog.Logger
}

// NewMessageService creates a MessageService.
func NewMessageService(
	messageRepo repository.MessageRepository,
	queueRepo repository.QueueRepository,
	router *Router,
	publisher JobPublisher,
	logger *slog.Logger,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		queueRepo:   queueRepo,
		router:      router,
		publisher:   publisher,
		logger:      logger.With("component", "message_service"),
	}
}

// Send accepts one message. Routing failures abort before anything is
// persisted. The Message and its QueueEntry are created in one transaction;
// after commit the message is marked queued and dispatched. A dispatch
// failure marks the message failed instead of leaving it ownerless in
// queued. Delivery completion is never awaited here.
func (s *MessageService) Send(ctx context.Context, sender, recipient, content string, priority int, callbackURL *string) (*domain.Message, error) {
	if priority <= 0 {
		priority = DefaultPriority
	}

	operator, err := s.router.FindRoute(ctx, recipient)
	if err != nil {
		messagesAcceptedCounter.WithLabelValues("routing_failed").Inc()
		return nil, err
	}

	msg := &domain.Message{
		MessageID:   domain.NewMessageID(),
		Sender:      sender,
		Recipient:   recipient,
		Content:     content,
		Status:      domain.MessageStatusPending,
		OperatorID:  operator.ID,
		CallbackURL: callbackURL,
	}
	entry := &domain.QueueEntry{
		MessageID:   msg.MessageID,
		OperatorID:  operator.ID,
		Priority:    priority,
		ScheduledAt: time.Now().UTC(),
		Status:      domain.QueueEntryStatusPending,
	}

	if err := s.messageRepo.CreateWithQueueEntry(ctx, msg, entry); err != nil {
		messagesAcceptedCounter.WithLabelValues("persist_failed").Inc()
		s.logger.ErrorContext(ctx, "failed to persist message", "message_id", msg.MessageID, "error", err)
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	s.dispatch(ctx, msg)
	return msg, nil
}

// dispatch transitions the committed message to queued and publishes the
// delivery job. Both failure modes resolve to a failed message so nothing
// sits in queued without a worker owning it.
func (s *MessageService) dispatch(ctx context.Context, msg *domain.Message) {
	ok, err := s.messageRepo.TransitionStatus(ctx, msg.MessageID, domain.MessageStatusPending, domain.MessageStatusQueued)
	if err != nil || !ok {
		s.failDispatch(ctx, msg, fmt.Sprintf("failed to queue message: %v", err))
		return
	}
	msg.Status = domain.MessageStatusQueued

	payload, err := json.Marshal(DeliveryJob{MessageID: msg.MessageID})
	if err != nil {
		s.failDispatch(ctx, msg, fmt.Sprintf("failed to encode delivery job: %v", err))
		return
	}

	if err := s.publisher.Publish(ctx, DeliveryJobSubject, payload); err != nil {
		s.failDispatch(ctx, msg, fmt.Sprintf("failed to dispatch delivery job: %v", err))
		return
	}

	messagesAcceptedCounter.WithLabelValues("queued").Inc()
	s.logger.InfoContext(ctx, "message queued for delivery",
		"message_id", msg.MessageID, "operator_id", msg.OperatorID)
}

func (s *MessageService) failDispatch(ctx context.Context, msg *domain.Message, reason string) {
	messagesAcceptedCounter.WithLabelValues("dispatch_failed").Inc()
	s.logger.ErrorContext(ctx, "failed to dispatch message", "message_id", msg.MessageID, "reason", reason)

	if err := s.messageRepo.MarkFailed(ctx, msg.MessageID, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark message failed after dispatch error",
			"message_id", msg.MessageID, "error", err)
		return
	}
	if err := s.queueRepo.Delete(ctx, msg.MessageID); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete queue entry after dispatch error",
			"message_id", msg.MessageID, "error", err)
	}
	msg.Status = domain.MessageStatusFailed
	msg.ErrorMessage = &reason
}

// SendBulk sends each item independently; one item's failure never aborts
// or rolls back its siblings, and result order follows input order.
func (s *MessageService) SendBulk(ctx context.Context, items []BulkItem, callbackURL *string) []BulkResult {
	results := make([]BulkResult, 0, len(items))
	for _, item := range items {
		msg, err := s.Send(ctx, item.Sender, item.Recipient, item.Content, item.Priority, callbackURL)
		if err != nil {
			results = append(results, BulkResult{
				Recipient: item.Recipient,
				Status:    "failed",
				Error:     err.Error(),
			})
			continue
		}
		results = append(results, BulkResult{
			MessageID: msg.MessageID,
			Recipient: item.Recipient,
			Status:    "queued",
		})
	}
	return results
}

// Cancel withdraws a message that has not been picked up yet. It returns
// false, not an error, when the message is unknown or already past the
// cancellable window; racing the worker is expected and the loser no-ops.
func (s *MessageService) Cancel(ctx context.Context, messageID string) (bool, error) {
	cancelled, err := s.messageRepo.CancelIfCancellable(ctx, messageID)
	if err != nil {
		return false, err
	}
	if cancelled {
		s.logger.InfoContext(ctx, "message cancelled", "message_id", messageID)
	}
	return cancelled, nil
}

// Status looks a message up by its public identifier.
func (s *MessageService) Status(ctx context.Context, messageID string) (*domain.Message, error) {
	return s.messageRepo.GetByMessageID(ctx, messageID)
}
