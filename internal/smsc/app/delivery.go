package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aradit/smsc-gateway/internal/platform/messagebroker"
	"github.com/aradit/smsc-gateway/internal/smsc/domain"
	"github.com/aradit/smsc-gateway/internal/smsc/repository"
)

// Deliverer pushes one message over the signaling stack and returns the
// protocol message reference used for correlation.
type Deliverer interface {
	Deliver(ctx context.Context, sender, recipient, content string, params domain.ConnectionParams) (string, error)
}

// DeliveryService is the asynchronous side of the lifecycle: it consumes
// delivery jobs from NATS, re-validates the operator, drives the protocol
// session manager and records the outcome on the message. Failures here
// never reach the original Send caller; they become a failed status with
// the error text attached.
type DeliveryService struct {
	messageRepo  repository.MessageRepository
	queueRepo    repository.QueueRepository
	operatorRepo repository.OperatorRepository
	deliverer    Deliverer
	natsClient   *messagebroker.NatsClient
	logger       *slog.Logger
	jobTimeout   time.Duration
	sub          *nats.Subscription
}

// NewDeliveryService creates a DeliveryService.
func NewDeliveryService(
	messageRepo repository.MessageRepository,
	queueRepo repository.QueueRepository,
	operatorRepo repository.OperatorRepository,
	deliverer Deliverer,
	natsClient *messagebroker.NatsClient,
	logger *slog.Logger,
) *DeliveryService {
	return &DeliveryService{
		messageRepo:  messageRepo,
		queueRepo:    queueRepo,
		operatorRepo: operatorRepo,
		deliverer:    deliverer,
		natsClient:   natsClient,
		logger:       logger.With("component", "delivery_service"),
		jobTimeout:   60 * time.Second,
	}
}

// StartConsuming subscribes to the delivery job lane in a queue group so
// concurrent workers share it.
func (s *DeliveryService) StartConsuming(ctx context.Context, subject, queueGroup string) error {
	if s.natsClient == nil {
		return errors.New("NATS client not initialized in DeliveryService")
	}
	s.logger.Info("starting delivery job consumer", "subject", subject, "queue_group", queueGroup)

	msgHandler := func(msg *nats.Msg) {
		var job DeliveryJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			s.logger.Error("failed to unmarshal delivery job payload", "error", err, "data", string(msg.Data))
			return
		}

		jobCtx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		if err := s.ProcessJob(jobCtx, job); err != nil {
			s.logger.Error("failed to process delivery job", "error", err, "message_id", job.MessageID)
		}
	}

	var err error
	s.sub, err = s.natsClient.Subscribe(ctx, subject, queueGroup, msgHandler)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %q: %w", subject, err)
	}
	return nil
}

// StopConsuming unsubscribes from the job lane.
func (s *DeliveryService) StopConsuming() {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			s.logger.Warn("failed to unsubscribe delivery consumer", "error", err)
		}
		s.sub = nil
	}
}

// ProcessJob executes one delivery attempt end to end.
func (s *DeliveryService) ProcessJob(ctx context.Context, job DeliveryJob) error {
	msg, err := s.messageRepo.GetByMessageID(ctx, job.MessageID)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			s.logger.WarnContext(ctx, "delivery job for unknown message", "message_id", job.MessageID)
			deliveryProcessedCounter.WithLabelValues("skipped").Inc()
			return nil
		}
		return err
	}

	// Anything but queued means a cancel or duplicate job got here first.
	if msg.Status != domain.MessageStatusQueued {
		s.logger.InfoContext(ctx, "skipping message not in queued state",
			"message_id", msg.MessageID, "status", msg.Status)
		deliveryProcessedCounter.WithLabelValues("skipped").Inc()
		return nil
	}

	operator, err := s.operatorRepo.GetByID(ctx, msg.OperatorID)
	if err != nil && !errors.Is(err, domain.ErrOperatorNotFound) {
		return err
	}
	// The operator may have changed since routing; re-check before sending.
	if err != nil || !operator.IsActive() {
		s.resolveFailed(ctx, msg.MessageID, "operator not available")
		return nil
	}

	ok, err := s.messageRepo.TransitionStatus(ctx, msg.MessageID, domain.MessageStatusQueued, domain.MessageStatusSending)
	if err != nil {
		return err
	}
	if !ok {
		// Lost the race against a cancel; nothing to do.
		deliveryProcessedCounter.WithLabelValues("skipped").Inc()
		return nil
	}
	if err := s.queueRepo.MarkSending(ctx, msg.MessageID); err != nil {
		s.logger.WarnContext(ctx, "failed to stamp queue entry lease", "message_id", msg.MessageID, "error", err)
	}

	timer := prometheus.NewTimer(deliveryDurationHist.WithLabelValues(operator.Name))
	messageRef, err := s.deliverer.Deliver(ctx, msg.Sender, msg.Recipient, msg.Content, operator.ConnectionParams)
	timer.ObserveDuration()

	if err != nil {
		s.resolveFailed(ctx, msg.MessageID, err.Error())
		return nil
	}

	if _, err := s.messageRepo.TransitionStatus(ctx, msg.MessageID, domain.MessageStatusSending, domain.MessageStatusSent); err != nil {
		return err
	}
	if err := s.queueRepo.Delete(ctx, msg.MessageID); err != nil {
		s.logger.WarnContext(ctx, "failed to delete queue entry after send", "message_id", msg.MessageID, "error", err)
	}

	deliveryProcessedCounter.WithLabelValues("sent").Inc()
	s.logger.InfoContext(ctx, "message delivered to operator",
		"message_id", msg.MessageID, "operator", operator.Name, "message_ref", messageRef)
	return nil
}

// resolveFailed records a terminal failure and releases the queue entry.
func (s *DeliveryService) resolveFailed(ctx context.Context, messageID, reason string) {
	deliveryProcessedCounter.WithLabelValues("failed").Inc()
	s.logger.WarnContext(ctx, "delivery failed", "message_id", messageID, "reason", reason)

	if err := s.messageRepo.MarkFailed(ctx, messageID, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to record delivery failure", "message_id", messageID, "error", err)
		return
	}
	if err := s.queueRepo.Delete(ctx, messageID); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete queue entry after failure", "message_id", messageID, "error", err)
	}
}
