package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_actions_total",
			Help: "Committed moderation actions by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	actionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moderation_action_duration_seconds",
			Help:    "Time spent committing a moderation action against the backend",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	confirmationsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_confirmations_opened_total",
			Help: "Moderation confirmations opened by action",
		},
		[]string{"action"},
	)
)
