// Package metrics defines the Prometheus instrumentation for the
// session coordinator and connection registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveGames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pokerhall_active_games",
		Help: "Number of games currently tracked by the coordinator.",
	})

	GamesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokerhall_games_created_total",
		Help: "Total number of games created.",
	})

	GamesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokerhall_games_completed_total",
		Help: "Total number of games that reached game_over.",
	})

	GamesCleanedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokerhall_games_cleaned_total",
		Help: "Total number of stale games removed by the sweeper.",
	})

	ActionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pokerhall_action_duration_seconds",
		Help:    "Time spent inside the coordinator's load-modify-save protocol per request kind.",
		Buckets: prometheus.DefBuckets,
	}, []string{"request_kind"})

	LockWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pokerhall_lock_wait_seconds",
		Help:    "Time a request waited for its game's ticket lock.",
		Buckets: prometheus.DefBuckets,
	})

	TimerFiringsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokerhall_timer_firings_total",
		Help: "Total number of timer-driven events (turn timeout, auto-deal).",
	}, []string{"timer_kind"})

	BroadcastFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokerhall_broadcast_failures_total",
		Help: "Total number of failed sends to a registered connection.",
	}, []string{"reason"})

	KVLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pokerhall_kv_operation_duration_seconds",
		Help:    "Latency of key-value store operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)
