// internal/common/metrics/metrics.go
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grain_provider_requests_total",
			Help: "Provider HTTP calls by provider, endpoint and outcome status",
		},
		[]string{"provider", "endpoint", "status"},
	)

	GenerationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grain_generation_attempts_total",
			Help: "Generation attempts by attempt index and outcome",
		},
		[]string{"attempt", "outcome"},
	)

	JSONRepairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grain_json_repair_total",
			Help: "Model outputs parsed, by the repair candidate that succeeded",
		},
		[]string{"candidate"},
	)

	CompletionPlaceholders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grain_completion_placeholders_total",
			Help: "Slots filled with placeholders, by kind",
		},
		[]string{"kind"},
	)
)

// ObserveProviderRequest counts one provider call. status is the HTTP status
// when a response arrived, otherwise 0 and the call is labeled "transport".
func ObserveProviderRequest(provider, endpoint string, status int) {
	label := "transport"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	ProviderRequests.WithLabelValues(provider, endpoint, label).Inc()
}

// ObserveGenerationAttempt counts one generation attempt (1-based index).
func ObserveGenerationAttempt(attempt int, outcome string) {
	GenerationAttempts.WithLabelValues(strconv.Itoa(attempt), outcome).Inc()
}

func ObserveJSONRepair(candidate string) {
	JSONRepairs.WithLabelValues(candidate).Inc()
}

func ObservePlaceholders(kind string, n int) {
	if n > 0 {
		CompletionPlaceholders.WithLabelValues(kind).Add(float64(n))
	}
}
