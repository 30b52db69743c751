package generatecardimage

import (
	"context"
	"encoding/json"

	"grain-workers/internal/appstate"
	"grain-workers/internal/common/errors"
	commonhttp "grain-workers/internal/common/http"
	"grain-workers/internal/common/logger"
	"grain-workers/internal/models"
	"grain-workers/internal/provider/dashscope"
	"grain-workers/internal/provider/grain"
	"grain-workers/internal/provider/openai"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "generate-card-image"

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
	if input.RequestedLocale == "" {
		input.RequestedLocale = "zh"
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	cfg, err := h.store.ProviderConfig(ctx, input.UserID, input.APIConfig, h.config.DefaultProvider)
	if err != nil {
		return nil, err
	}
	if !cfg.ImageEnabled {
		return nil, errors.NewImageDisabledError()
	}

	if !input.Force {
		if uri, ok := h.store.CardImage(input.UserID, input.CardID); ok {
			return &Output{CardID: input.CardID, ImageURI: uri, Cached: true}, nil
		}
	}

	snap, err := h.store.Snapshot(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	card, ok := snap.ResolveCard(input.CardID)
	if !ok {
		return nil, errors.NewResourceNotFoundError("cards", "card "+input.CardID)
	}
	categoryID := card.CategoryID
	if categoryID == "" {
		categoryID = snap.Session.CategoryID
	}
	chapter := snap.ResolveChapter(categoryID, card.NodeTypeID)

	target := cfg.ImageTarget()
	var res models.ImageResult
	switch target.Kind {
	case models.ProviderOpenAICompatible:
		res, err = openai.NewImageClient(h.doer, target, h.logger).
			Generate(ctx, englishPrompt(card, chapter, snap.Session), openAIImageSize)
	case models.ProviderDashScopeWanx:
		res, err = dashscope.New(h.doer, target, h.logger,
			dashscope.WithPollInterval(h.config.PollInterval),
			dashscope.WithMaxWait(h.config.MaxWait),
		).Generate(ctx, chinesePrompt(card, chapter, snap.Session), dashScopeImageSize)
	default:
		res, err = h.backendImage(ctx, target, backendRequest(input.RequestedLocale, card, chapter, snap.Session))
	}
	if err != nil {
		return nil, err
	}

	uri := res.URI()
	if uri == "" {
		return nil, errors.NewModelEmptyImageError()
	}
	h.store.SetCardImage(input.UserID, card.CardID, uri)

	h.logger.Info("Card image generated", map[string]interface{}{
		"cardId":   card.CardID,
		"provider": string(target.Kind),
		"inline":   res.ImageBase64 != "",
	})
	return &Output{CardID: card.CardID, ImageURI: uri, Provider: target.Kind}, nil
}

// backendImage sends the request to the image endpoint of the first-party
// backend, which may differ from the text endpoint.
func (h *Handler) backendImage(ctx context.Context, target models.ImageTarget, req models.ImageRequest) (models.ImageResult, error) {
	if target.BaseURL == "" {
		return models.ImageResult{}, errors.NewProviderConfigInvalidError("image base URL is required")
	}
	cfg := models.APIConfig{
		Enabled: true,
		Kind:    models.ProviderGrainBackend,
		BaseURL: target.BaseURL,
		APIKey:  target.APIKey,
	}
	return grain.New(h.doer, cfg, h.logger).Image(ctx, req)
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
