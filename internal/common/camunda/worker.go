// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"grain-workers/internal/common/config"
	"grain-workers/internal/common/errors"
	"grain-workers/internal/common/logger"
	"grain-workers/internal/common/metrics"
	"grain-workers/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler completes or fails the job itself and returns the error it
// failed with, so the wrapper can label the outcome.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job) error
}

const (
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// Instrument wraps handler with job metrics and panic recovery.
func Instrument(taskType string, handler JobHandler, obs *observability.Observability, log logger.Logger) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

		err := safeHandle(handler, client, job)

		elapsed := time.Since(start)
		status := statusCompleted
		if err != nil {
			status = statusFailed
			code := errors.ToStandardError(err).Code
			metrics.WorkerJobsFailed.WithLabelValues(taskType, string(code)).Inc()
			log.Warn("Job handler returned error", map[string]interface{}{
				"taskType":  taskType,
				"jobKey":    job.Key,
				"errorCode": string(code),
			})
		} else {
			metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		}
		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())

		ctx := context.Background()
		obs.RecordJobProcessed(ctx, taskType, status)
		obs.RecordJobDuration(ctx, taskType, elapsed, status)
	}
}

func safeHandle(handler JobHandler, client worker.JobClient, job entities.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewExternalServiceError("worker", panicError{r})
		}
	}()
	return handler.Handle(client, job)
}

type panicError struct{ v interface{} }

func (p panicError) Error() string {
	return fmt.Sprintf("handler panic: %v", p.v)
}

// StartWorker opens a job worker for taskType. It returns nil when the worker
// is disabled.
func StartWorker(
	client zbc.Client,
	taskType string,
	wcfg config.WorkerConfig,
	handler JobHandler,
	obs *observability.Observability,
	log logger.Logger,
) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, handler, obs, log)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return jobWorker
}
