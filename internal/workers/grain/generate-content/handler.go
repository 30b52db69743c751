package generatecontent

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"grain-workers/internal/appstate"
	"grain-workers/internal/common/errors"
	commonhttp "grain-workers/internal/common/http"
	"grain-workers/internal/common/logger"
	"grain-workers/internal/common/metrics"
	"grain-workers/internal/completion"
	"grain-workers/internal/generation"
	"grain-workers/internal/models"
	"grain-workers/internal/provider/grain"
	"grain-workers/internal/provider/openai"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "generate-content"

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
	stages, err := stagesOf(input.NodeTypeIDs)
	if err != nil {
		return nil, err
	}

	sess, err := h.applyOverrides(ctx, input)
	if err != nil {
		return nil, err
	}
	if sess.CountryA == "" || sess.CountryB == "" {
		return nil, errors.NewInputValidationError("countryA and countryB are required")
	}
	if sess.CountryA == sess.CountryB {
		return nil, errors.NewInputValidationError(fmt.Sprintf("countryA and countryB must differ (both %s)", sess.CountryA))
	}
	var requested []models.NodeTypeID
	if len(input.NodeTypeIDs) > 0 {
		requested = stages
	}
	bc := appstate.ContextOf(sess, requested...)

	// a failed generation must not leave the previous answer in place
	if err := h.store.ClearRemoteBundle(ctx, input.UserID); err != nil {
		return nil, err
	}

	cfg, err := h.store.ProviderConfig(ctx, input.UserID, input.APIConfig, h.config.DefaultProvider)
	if err != nil {
		return nil, err
	}
	if !cfg.Configured() {
		h.logger.Info("No provider configured, serving bundled content", map[string]interface{}{
			"countryA": sess.CountryA,
			"countryB": sess.CountryB,
		})
		return h.output(ctx, input.UserID, &Output{Source: SourceDemo, Complete: true})
	}

	req := models.GenerateRequest{
		RequestedLocale: input.RequestedLocale,
		CategoryID:      sess.CategoryID,
		ObjectName:      sess.ObjectName,
		ObjectGeneric:   sess.ObjectGeneric,
		CountryA:        sess.CountryA,
		CountryB:        sess.CountryB,
		NodeTypeIDs:     stages,
	}

	out := &Output{}
	var res models.GenerateResult
	if cfg.Kind == models.ProviderOpenAICompatible {
		if cfg.APIKey == "" {
			return nil, errors.NewProviderConfigInvalidError("api key is required")
		}
		var report generation.Report
		controller := generation.NewController(openai.New(h.doer, cfg, h.logger), h.config.Attempts, h.logger)
		res, report, err = controller.GenerateWithReport(ctx, req)
		out.Source = SourceModel
		out.Attempts = report.Attempts
		out.Complete = report.Complete
	} else {
		res, err = grain.New(h.doer, cfg, h.logger).Generate(ctx, req)
		out.Source = SourceBackend
		out.Attempts = 1
		out.Complete = generation.IsCompleteEnough(res, generation.Expect(req))
	}
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.NewGenerationTimeoutError(TaskType)
		}
		return nil, err
	}

	bundle, stats, err := h.store.SetRemoteBundle(ctx, input.UserID, bc, res)
	switch {
	case stderrors.Is(err, appstate.ErrStaleBundle):
		out.Stale = true
	case err != nil:
		return nil, err
	}
	observe(stats)
	out.Result = &bundle.Data
	out.SessionID = bundle.Data.SessionID
	out.Placeholders = Placeholders{
		Cards:     stats.PlaceholderCards,
		Dialogues: stats.PlaceholderDialogues,
		Chapters:  stats.PlaceholderChapters,
	}

	h.logger.Info("Content generated", map[string]interface{}{
		"source":               out.Source,
		"sessionId":            out.SessionID,
		"attempts":             out.Attempts,
		"complete":             out.Complete,
		"stale":                out.Stale,
		"placeholderCards":     stats.PlaceholderCards,
		"placeholderDialogues": stats.PlaceholderDialogues,
	})
	return h.output(ctx, input.UserID, out)
}

// applyOverrides writes any session fields carried by the job and returns
// the resulting session.
func (h *Handler) applyOverrides(ctx context.Context, input *Input) (appstate.Session, error) {
	var patch appstate.SessionPatch
	set := false
	for _, f := range []struct {
		val string
		dst **string
	}{
		{input.CategoryID, &patch.CategoryID},
		{input.ObjectName, &patch.ObjectName},
		{input.ObjectGeneric, &patch.ObjectGeneric},
		{input.CountryA, &patch.CountryA},
		{input.CountryB, &patch.CountryB},
	} {
		if f.val != "" {
			v := f.val
			*f.dst = &v
			set = true
		}
	}
	if !set {
		return h.store.Session(ctx, input.UserID)
	}
	return h.store.SetSession(ctx, input.UserID, patch)
}

func (h *Handler) output(ctx context.Context, userID string, out *Output) (*Output, error) {
	snap, err := h.store.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	out.Session = snap.Session
	out.SessionCards = snap.SessionCards()
	return out, nil
}

func stagesOf(raw []string) ([]models.NodeTypeID, error) {
	if len(raw) == 0 {
		return models.AllNodeTypes, nil
	}
	out := make([]models.NodeTypeID, 0, len(raw))
	for _, r := range raw {
		n := models.NormalizeNodeTypeID(r)
		if !n.Valid() {
			return nil, errors.NewInputValidationError("unknown nodeTypeId " + r)
		}
		out = append(out, n)
	}
	return out, nil
}

func observe(stats completion.Stats) {
	metrics.ObservePlaceholders("card", stats.PlaceholderCards)
	metrics.ObservePlaceholders("dialogue", stats.PlaceholderDialogues)
	metrics.ObservePlaceholders("chapter", stats.PlaceholderChapters)
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
