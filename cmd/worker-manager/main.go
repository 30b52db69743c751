// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"grain-workers/internal/appstate"
	"grain-workers/internal/common/camunda"
	"grain-workers/internal/common/config"
	"grain-workers/internal/common/database"
	commonhttp "grain-workers/internal/common/http"
	"grain-workers/internal/common/logger"
	"grain-workers/internal/common/observability"
	"grain-workers/internal/generation"
	"grain-workers/internal/models"
	"grain-workers/internal/provider/openai"
	"grain-workers/pkg/registry"

	ca "grain-workers/internal/workers/grain/card-activity"
	fc "grain-workers/internal/workers/grain/fetch-coverage"
	gci "grain-workers/internal/workers/grain/generate-card-image"
	gc "grain-workers/internal/workers/grain/generate-content"
	ido "grain-workers/internal/workers/grain/identify-object"
	sf "grain-workers/internal/workers/grain/submit-feedback"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init Zeebe Client ---
	zeebe, err := camunda.NewClient(ctx, cfg.Camunda.BrokerAddress, log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully", zap.String("gateway", cfg.Camunda.BrokerAddress))

	// --- Init Redis with retry ---
	rdb := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	zapLog.Info("Redis connected successfully")

	store, err := appstate.NewStore(
		appstate.NewRedisKV(rdb.Client, time.Duration(cfg.State.TTL)*time.Second),
		appstate.Options{
			Prefix:         cfg.State.Prefix,
			ImageCacheSize: cfg.State.ImageCacheSize,
			MaxImageUsers:  cfg.State.MaxImageUsers,
		},
		log,
	)
	if err != nil {
		zapLog.Fatal("state store init failed", zap.Error(err))
	}

	httpClient := commonhttp.NewClient(config.GetDuration(cfg.HTTP.Timeout))
	checkProvider(ctx, cfg.Provider, httpClient, log)
	checkRegistry(cfg.Registry.Path, log)

	workers := startWorkers(cfg, zeebe, store, httpClient, obs, log)
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           healthMux(zeebe, rdb),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
		w.AwaitClose()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		zapLog.Error("Error closing Redis client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}

func startWorkers(
	cfg *config.Config,
	zeebe *camunda.Client,
	store *appstate.Store,
	doer commonhttp.Doer,
	obs *observability.Observability,
	log logger.Logger,
) []worker.JobWorker {
	client := zeebe.GetClient()
	timeout := func(taskType string) time.Duration {
		return config.GetDuration(config.GetWorkerConfig(cfg, taskType).Timeout)
	}

	handlers := []struct {
		taskType string
		handler  camunda.JobHandler
	}{
		{ido.TaskType, ido.NewHandler(&ido.Config{
			Timeout:         timeout(ido.TaskType),
			Locale:          cfg.App.Locale,
			DefaultProvider: cfg.Provider,
		}, store, doer, log)},
		{gc.TaskType, gc.NewHandler(&gc.Config{
			Timeout:         timeout(gc.TaskType),
			Locale:          cfg.App.Locale,
			DefaultProvider: cfg.Provider,
			Attempts:        attempts(cfg.Generation),
		}, store, doer, log)},
		{gci.TaskType, gci.NewHandler(&gci.Config{
			Timeout:         imageTimeout(timeout(gci.TaskType), cfg.Image),
			Locale:          cfg.App.Locale,
			DefaultProvider: cfg.Provider,
			PollInterval:    config.GetDuration(cfg.Image.PollInterval),
			MaxWait:         config.GetDuration(cfg.Image.MaxWait),
		}, store, doer, log)},
		{fc.TaskType, fc.NewHandler(&fc.Config{
			Timeout:         timeout(fc.TaskType),
			Locale:          cfg.App.Locale,
			DefaultProvider: cfg.Provider,
		}, store, doer, log)},
		{sf.TaskType, sf.NewHandler(&sf.Config{
			Timeout:         timeout(sf.TaskType),
			Locale:          cfg.App.Locale,
			DefaultProvider: cfg.Provider,
		}, store, doer, log)},
		{ca.TaskType, ca.NewHandler(&ca.Config{
			Timeout: timeout(ca.TaskType),
			Locale:  cfg.App.Locale,
		}, store, log)},
	}

	var started []worker.JobWorker
	for _, h := range handlers {
		wcfg := config.GetWorkerConfig(cfg, h.taskType)
		if w := camunda.StartWorker(client, h.taskType, wcfg, h.handler, obs, log); w != nil {
			started = append(started, w)
		}
	}
	return started
}

func attempts(gen config.GenerationConfig) []generation.Attempt {
	if len(gen.Attempts) == 0 {
		return nil
	}
	out := make([]generation.Attempt, 0, len(gen.Attempts))
	for _, a := range gen.Attempts {
		out = append(out, generation.Attempt{Compact: a.Compact, MaxTokens: a.MaxTokens})
	}
	return out
}

// imageTimeout keeps the job deadline above the async polling budget.
func imageTimeout(jobTimeout time.Duration, img config.ImageConfig) time.Duration {
	floor := config.GetDuration(img.MaxWait) + 15*time.Second
	if jobTimeout < floor {
		return floor
	}
	return jobTimeout
}

// checkProvider pings a configured general model once so a bad key shows up
// in the startup log instead of the first job.
func checkProvider(ctx context.Context, cfg models.APIConfig, doer commonhttp.Doer, log logger.Logger) {
	if !cfg.Configured() {
		log.Warn("No provider configured, content jobs will serve bundled data", nil)
		return
	}
	if cfg.Kind != models.ProviderOpenAICompatible || cfg.APIKey == "" {
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := openai.New(doer, cfg, log).Ping(pingCtx); err != nil {
		log.Warn("Provider ping failed", map[string]interface{}{
			"baseUrl": cfg.EffectiveBaseURL(),
			"error":   err.Error(),
		})
		return
	}
	log.Info("Provider ping ok", map[string]interface{}{"model": cfg.OpenAIModel})
}

func checkRegistry(path string, log logger.Logger) {
	if path == "" {
		return
	}
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		log.Warn("Activity registry not loaded", map[string]interface{}{"path": path, "error": err.Error()})
		return
	}
	for _, taskType := range reg.Missing(ido.TaskType, gc.TaskType, gci.TaskType, fc.TaskType, sf.TaskType, ca.TaskType) {
		log.Warn("Task type missing from activity registry", map[string]interface{}{"taskType": taskType})
	}
}

func healthMux(zeebe *camunda.Client, rdb *database.RedisClient) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"status": "ready"}
		code := http.StatusOK
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			checks["zeebe"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if err := rdb.Ping(r.Context()); err != nil {
			checks["redis"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if code != http.StatusOK {
			checks["status"] = "not ready"
		}
		writeStatus(w, code, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
