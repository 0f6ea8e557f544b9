package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aradit/smsc-gateway/internal/smsc/domain"
	"github.com/aradit/smsc-gateway/internal/smsc/repository"
)

// QueueReclaimer periodically requeues entries whose worker lease expired:
// a worker that crashed after pickup leaves its message in sending and its
// queue entry leased; past the lease timeout the entry flips back to
// pending, the message back to queued, and the job is republished.
type QueueReclaimer struct {
	queueRepo   repository.QueueRepository
	messageRepo repository.MessageRepository
	publisher   JobPublisher
	lease       time.Duration
	interval    time.Duration
	logger      *slog.Logger
	stopChan    chan struct{}
}

// NewQueueReclaimer creates a QueueReclaimer.
func NewQueueReclaimer(
	queueRepo repository.QueueRepository,
	messageRepo repository.MessageRepository,
	publisher JobPublisher,
	lease, interval time.Duration,
	logger *slog.Logger,
) *QueueReclaimer {
	return &QueueReclaimer{
		queueRepo:   queueRepo,
		messageRepo: messageRepo,
		publisher:   publisher,
		lease:       lease,
		interval:    interval,
		logger:      logger.With("component", "queue_reclaimer"),
	}
}

// Start runs the reclaim loop until ctx is cancelled or Stop is called.
func (r *QueueReclaimer) Start(ctx context.Context) {
	r.stopChan = make(chan struct{})
	ticker := time.NewTicker(r.interval)

	go func() {
		defer ticker.Stop()
		r.logger.Info("queue reclaimer started", "lease", r.lease, "interval", r.interval)
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopChan:
				return
			case <-ticker.C:
				if err := r.ReclaimOnce(ctx); err != nil {
					r.logger.Error("queue reclaim cycle failed", "error", err)
				}
			}
		}
	}()
}

// Stop terminates the reclaim loop.
func (r *QueueReclaimer) Stop() {
	if r.stopChan != nil {
		close(r.stopChan)
		r.stopChan = nil
	}
}

// ReclaimOnce runs a single reclaim cycle.
func (r *QueueReclaimer) ReclaimOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.lease)
	messageIDs, err := r.queueRepo.ReclaimStale(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(messageIDs) == 0 {
		return nil
	}

	r.logger.Info("reclaiming stale queue entries", "count", len(messageIDs))
	for _, messageID := range messageIDs {
		ok, err := r.messageRepo.TransitionStatus(ctx, messageID, domain.MessageStatusSending, domain.MessageStatusQueued)
		if err != nil {
			r.logger.Error("failed to requeue message", "message_id", messageID, "error", err)
			continue
		}
		if !ok {
			// Message already resolved; the entry delete raced the reclaim.
			continue
		}

		payload, err := json.Marshal(DeliveryJob{MessageID: messageID})
		if err != nil {
			r.logger.Error("failed to encode reclaim job", "message_id", messageID, "error", err)
			continue
		}
		if err := r.publisher.Publish(ctx, DeliveryJobSubject, payload); err != nil {
			r.logger.Error("failed to republish reclaimed job", "message_id", messageID, "error", err)
			continue
		}
		queueReclaimedCounter.Inc()
	}
	return nil
}
