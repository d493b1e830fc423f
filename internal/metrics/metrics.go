// Package metrics provides Prometheus metrics for the persona service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts engine jobs by emotion and outcome kind ("ok" or an
	// error kind).
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "persona",
			Subsystem: "engine",
			Name:      "jobs_total",
			Help:      "Engine jobs by emotion and outcome",
		},
		[]string{"emotion", "outcome"},
	)

	// JobDuration tracks upload-to-publish time per emotion.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "persona",
			Subsystem: "engine",
			Name:      "job_duration_seconds",
			Help:      "Time from upload to publish for one emotion",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"emotion"},
	)

	// PollAttempts tracks how many history queries a job needed.
	PollAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "persona",
			Subsystem: "engine",
			Name:      "poll_attempts",
			Help:      "History queries made per job",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 45, 60},
		},
	)

	// LeaseWait tracks time spent waiting for the engine lease.
	LeaseWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "persona",
			Subsystem: "engine",
			Name:      "lease_wait_seconds",
			Help:      "Time spent waiting for exclusive engine access",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// BatchesTotal counts persona batches by aggregate status.
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "persona",
			Subsystem: "batch",
			Name:      "total",
			Help:      "Persona batches by aggregate status",
		},
		[]string{"status"}, // "complete", "partial", "failed"
	)

	// SocketSessions tracks open live connections.
	SocketSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "persona",
			Subsystem: "ws",
			Name:      "sessions_active",
			Help:      "Open WebSocket sessions",
		},
	)

	// HTTPRequests counts handled requests by route pattern and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "persona",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		},
		[]string{"route", "code"},
	)
)
