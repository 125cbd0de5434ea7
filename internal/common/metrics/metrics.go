// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineRunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_completed_total",
			Help: "Total number of pipeline runs completed",
		},
		[]string{"status"},
	)

	PipelineRunsDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_runs_degraded_total",
			Help: "Total number of runs finalized under the global time budget",
		},
	)

	NodeRunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_node_runs_completed_total",
			Help: "Total number of node executions completed",
		},
		[]string{"node"},
	)

	NodeRunsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_node_runs_failed_total",
			Help: "Total number of node executions failed",
		},
		[]string{"node", "error_code"},
	)

	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_node_duration_seconds",
			Help: "Duration of node execution in seconds",
		},
		[]string{"node"},
	)

	NodeRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_node_retries_total",
			Help: "Total number of node retries routed",
		},
		[]string{"node"},
	)

	QuestionsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_questions_returned",
			Help:    "Questions returned per run",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
		[]string{"source"},
	)
)
