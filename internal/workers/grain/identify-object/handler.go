package identifyobject

import (
	"context"
	"encoding/json"
	"strings"

	"grain-workers/internal/appstate"
	"grain-workers/internal/catalog"
	"grain-workers/internal/common/errors"
	commonhttp "grain-workers/internal/common/http"
	"grain-workers/internal/common/logger"
	"grain-workers/internal/models"
	"grain-workers/internal/provider"
	"grain-workers/internal/provider/grain"
	"grain-workers/internal/provider/openai"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "identify-object"

	defaultMaxCandidates = 3
)

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
	if !cfg.Configured() {
		return nil, errors.NewProviderNotConfiguredError(string(cfg.Kind))
	}

	var res models.IdentifyResult
	switch cfg.Kind {
	case models.ProviderOpenAICompatible:
		res, err = h.identifyWithModel(ctx, cfg, input)
	default:
		res, err = h.identifyWithBackend(ctx, cfg, input)
	}
	if err != nil {
		return nil, err
	}

	sess, err := h.store.Session(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	out := resolve(res, sess)
	out.Provider = cfg.Kind

	if input.UpdateSession == nil || *input.UpdateSession {
		patch := appstate.SessionPatch{
			ObjectName:    &out.ObjectName,
			ObjectGeneric: &out.ObjectGeneric,
			CategoryID:    &out.CategoryID,
			CategoryName:  &out.CategoryName,
		}
		if input.PhotoURI != "" {
			patch.PhotoURI = &input.PhotoURI
		}
		next, err := h.store.SetSession(ctx, input.UserID, patch)
		if err != nil {
			return nil, err
		}
		out.Session = &next
	}

	h.logger.Info("Object identified", map[string]interface{}{
		"objectName": out.ObjectName,
		"categoryId": out.CategoryID,
		"candidates": len(res.CategoryCandidates),
		"provider":   string(cfg.Kind),
	})
	return out, nil
}

func (h *Handler) identifyWithModel(ctx context.Context, cfg models.APIConfig, input *Input) (models.IdentifyResult, error) {
	if cfg.APIKey == "" {
		return models.IdentifyResult{}, errors.NewProviderConfigInvalidError("api key is required")
	}
	ref := provider.ImageRef(input.Image)
	if !ref.IsRemote() && input.MimeType != "" && !strings.HasPrefix(strings.TrimSpace(input.Image), "data:") {
		ref = provider.ImageRef("data:" + input.MimeType + ";base64," + strings.TrimSpace(input.Image))
	}
	return openai.New(h.doer, cfg, h.logger).Identify(ctx, openai.IdentifyInput{
		Image:           ref,
		RequestedLocale: input.RequestedLocale,
		Categories:      catalog.AllowedCategories(),
	})
}

func (h *Handler) identifyWithBackend(ctx context.Context, cfg models.APIConfig, input *Input) (models.IdentifyResult, error) {
	data, mime, err := provider.LoadImage(ctx, h.doer, provider.ImageRef(input.Image))
	if err != nil {
		return models.IdentifyResult{}, err
	}
	if input.MimeType != "" {
		mime = input.MimeType
	}
	maxCandidates := input.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = h.config.MaxCandidates
	}
	if maxCandidates <= 0 {
		maxCandidates = defaultMaxCandidates
	}
	return grain.New(h.doer, cfg, h.logger).Identify(ctx, grain.IdentifyInput{
		Image:           data,
		FileName:        input.FileName,
		MimeType:        mime,
		RequestedLocale: input.RequestedLocale,
		MaxCandidates:   maxCandidates,
	})
}

// resolve picks the first candidate in an allowed category, in the order the
// provider returned them, and keeps the session's values for anything the
// provider left blank.
func resolve(res models.IdentifyResult, sess appstate.Session) *Output {
	allowed := map[string]bool{}
	for _, c := range catalog.AllowedCategories() {
		allowed[c.ID] = true
	}

	out := &Output{
		ObjectName:         strings.TrimSpace(res.ObjectName),
		ObjectGeneric:      strings.TrimSpace(res.ObjectGeneric),
		CategoryID:         sess.CategoryID,
		CategoryCandidates: res.CategoryCandidates,
	}
	if out.CategoryCandidates == nil {
		out.CategoryCandidates = []models.CategoryCandidate{}
	}
	if out.ObjectName == "" {
		out.ObjectName = sess.ObjectName
	}
	if out.ObjectGeneric == "" {
		out.ObjectGeneric = sess.ObjectGeneric
	}

	var best *models.CategoryCandidate
	for i := range res.CategoryCandidates {
		if allowed[res.CategoryCandidates[i].CategoryID] {
			best = &res.CategoryCandidates[i]
			break
		}
	}
	if best != nil {
		out.CategoryID = best.CategoryID
	}

	switch cat, ok := catalog.GetCategory(out.CategoryID); {
	case ok:
		out.CategoryName = cat.Name
	case best != nil && best.CategoryName != "":
		out.CategoryName = best.CategoryName
	default:
		out.CategoryName = sess.CategoryName
	}
	out.CategoryEnabled = catalog.IsCategoryEnabled(out.CategoryID)
	return out
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
