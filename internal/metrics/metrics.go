// Package metrics exposes Prometheus collectors for the analysis pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OracleCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rabbit_oracle_calls_total",
			Help: "Total number of completion oracle calls",
		},
		[]string{"status"},
	)

	OracleCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rabbit_oracle_call_duration_seconds",
			Help:    "Duration of completion oracle calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rabbit_sandbox_executions_total",
			Help: "Total number of sandboxed code executions",
		},
		[]string{"status"},
	)

	RecoveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rabbit_figure_recoveries_total",
			Help: "Total number of figure recovery outcomes by strategy",
		},
		[]string{"strategy"},
	)

	ChatTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rabbit_chat_turns_total",
			Help: "Total number of chat turns processed",
		},
		[]string{"type"},
	)
)
