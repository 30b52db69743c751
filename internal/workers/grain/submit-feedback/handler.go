// internal/workers/grain/submit-feedback/handler.go
package submitfeedback

import (
	"context"
	"encoding/json"

	"grain-workers/internal/appstate"
	"grain-workers/internal/common/errors"
	commonhttp "grain-workers/internal/common/http"
	"grain-workers/internal/common/logger"
	"grain-workers/internal/models"
	"grain-workers/internal/provider/grain"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "submit-feedback"

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

// execute always keeps the feedback locally. It is also reported to the
// first-party backend when that is the configured provider; a failed report
// does not fail the job.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	req, err := h.buildRequest(ctx, input)
	if err != nil {
		return nil, err
	}

	rec, err := h.store.RecordFeedback(ctx, input.UserID, req)
	if err != nil {
		return nil, err
	}
	out := &Output{FeedbackID: rec.ID, CreatedAt: rec.CreatedAt}

	cfg, err := h.store.ProviderConfig(ctx, input.UserID, input.APIConfig, h.config.DefaultProvider)
	if err != nil {
		return nil, err
	}
	if !cfg.Configured() || cfg.Kind != models.ProviderGrainBackend {
		return out, nil
	}

	res, err := grain.New(h.doer, cfg, h.logger).Feedback(ctx, req)
	if err != nil {
		h.logger.Warn("Feedback report failed", map[string]interface{}{
			"cardId":     req.CardID,
			"errorClass": string(errors.Classify(err)),
		})
		out.ReportError = errors.Humanize(err, h.config.Locale)
		return out, nil
	}
	out.Reported = res.OK

	h.logger.Info("Feedback recorded", map[string]interface{}{
		"cardId":       req.CardID,
		"feedbackType": req.FeedbackType,
		"reported":     out.Reported,
	})
	return out, nil
}

func (h *Handler) buildRequest(ctx context.Context, input *Input) (models.FeedbackRequest, error) {
	req := models.FeedbackRequest{
		CardID:            input.CardID,
		CountryID:         input.CountryID,
		CategoryID:        input.CategoryID,
		NodeTypeID:        models.NormalizeNodeTypeID(input.NodeTypeID),
		FeedbackType:      input.FeedbackType,
		FactIDsUsed:       input.FactIDsUsed,
		SourceHintIDsUsed: input.SourceHintIDsUsed,
		Note:              input.Note,
	}
	if req.CountryID != "" && req.CategoryID != "" && req.NodeTypeID != "" {
		return req, nil
	}

	snap, err := h.store.Snapshot(ctx, input.UserID)
	if err != nil {
		return req, err
	}
	card, ok := snap.ResolveCard(input.CardID)
	if !ok {
		return req, errors.NewInputValidationError("unknown card " + input.CardID + "; countryId, categoryId and nodeTypeId are required")
	}
	if req.CountryID == "" {
		req.CountryID = card.CountryID
	}
	if req.CategoryID == "" {
		req.CategoryID = card.CategoryID
	}
	if req.NodeTypeID == "" {
		req.NodeTypeID = card.NodeTypeID
	}
	if req.FactIDsUsed == nil {
		req.FactIDsUsed = card.FactIDsUsed
	}
	if req.SourceHintIDsUsed == nil {
		req.SourceHintIDsUsed = card.SourceHintIDsUsed
	}
	return req, nil
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
