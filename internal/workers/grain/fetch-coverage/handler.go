// internal/workers/grain/fetch-coverage/handler.go
package fetchcoverage

import (
	"context"
	"encoding/json"

	"grain-workers/internal/appstate"
	"grain-workers/internal/catalog"
	"grain-workers/internal/common/errors"
	commonhttp "grain-workers/internal/common/http"
	"grain-workers/internal/common/logger"
	"grain-workers/internal/models"
	"grain-workers/internal/provider/grain"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "fetch-coverage"

type Handler struct {
	config *Config
	store  *appstate.Store
	doer   commonhttp.Doer
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, store *appstate.Store, doer commonhttp.Doer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		store:  store,
		doer:   doer,
		errors: errors.NewErrorHandler(log).WithLocale(config.Locale),
		logger: log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		h.errors.HandleJobError(context.Background(), client, job, err)
		return err
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.errors.HandleJobError(context.Background(), client, job, err)
		return err
	}

	h.completeJob(context.Background(), client, job, output)
	return nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	vars, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputValidationError(err.Error())
	}
	if err := inputSchema.Validate(vars); err != nil {
		return nil, err
	}
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewInputValidationError(err.Error())
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	categoryID := input.CategoryID
	if categoryID == "" {
		sess, err := h.store.Session(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
		categoryID = sess.CategoryID
	}

	cfg, err := h.store.ProviderConfig(ctx, input.UserID, input.APIConfig, h.config.DefaultProvider)
	if err != nil {
		return nil, err
	}

	if !cfg.Configured() {
		return catalogOutput(categoryID, ""), nil
	}

	if cfg.Kind == models.ProviderOpenAICompatible {
		ids := make([]string, 0, len(catalog.Countries))
		for _, c := range catalog.Countries {
			ids = append(ids, c.ID)
		}
		return &Output{CategoryID: categoryID, CoveredCountries: ids, AllCountries: true, Source: SourceModel}, nil
	}

	res, err := grain.New(h.doer, cfg, h.logger).Coverage(ctx, categoryID)
	if err != nil {
		// the picker still works offline
		h.logger.Warn("Coverage lookup failed, using bundled coverage", map[string]interface{}{
			"categoryId": categoryID,
			"errorClass": string(errors.Classify(err)),
		})
		return catalogOutput(categoryID, errors.Humanize(err, h.config.Locale)), nil
	}

	h.logger.Info("Coverage fetched", map[string]interface{}{
		"categoryId": categoryID,
		"covered":    len(res.CoveredCountries),
	})
	return &Output{
		CategoryID:       res.CategoryID,
		CoveredCountries: res.CoveredCountries,
		Source:           SourceBackend,
	}, nil
}

func catalogOutput(categoryID, reason string) *Output {
	res := catalog.Coverage(categoryID)
	return &Output{
		CategoryID:       res.CategoryID,
		CoveredCountries: res.CoveredCountries,
		Source:           SourceCatalog,
		FallbackReason:   reason,
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
