package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesAcceptedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smsc",
			Name:      "messages_accepted_total",
			Help:      "Total messages accepted on the send path.",
		},
		[]string{"status"}, // "queued", "routing_failed", "persist_failed", "dispatch_failed"
	)

	routingCacheCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smsc",
			Name:      "routing_cache_total",
			Help:      "Route binding cache lookups.",
		},
		[]string{"result"}, // "hit", "miss", "stale"
	)

	deliveryProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smsc",
			Name:      "delivery_jobs_processed_total",
			Help:      "Total delivery jobs processed by workers.",
		},
		[]string{"status"}, // "sent", "failed", "skipped"
	)

	deliveryDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "smsc",
			Name:      "delivery_duration_seconds",
			Help:      "Duration of one delivery attempt over the signaling stack.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operator"},
	)

	queueReclaimedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smsc",
			Name:      "queue_entries_reclaimed_total",
			Help:      "Queue entries re-queued after a worker lease expired.",
		},
	)
)
