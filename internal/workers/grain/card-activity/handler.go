package cardactivity

import (
	"context"
	"encoding/json"
	"sort"

	"grain-workers/internal/appstate"
	"grain-workers/internal/common/errors"
	"grain-workers/internal/common/logger"
	"grain-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "card-activity"

type Handler struct {
	config *Config
	store  *appstate.Store
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, store *appstate.Store, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		store:  store,
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
	h.logger.Debug("Executing action", map[string]interface{}{
		"action": input.Action,
		"userId": input.UserID,
	})

	out := &Output{Action: input.Action}
	var err error

	switch input.Action {
	case ActionCollect:
		err = h.collect(ctx, input, out)
	case ActionView:
		err = h.view(ctx, input, out)
	case ActionStats:
		var stats appstate.Stats
		stats, err = h.store.Stats(ctx, input.UserID)
		out.Stats = &stats
	case ActionCollection:
		out.Collection, err = h.collection(ctx, input.UserID)
	case ActionSession:
		var sess appstate.Session
		sess, err = h.store.Session(ctx, input.UserID)
		out.Session = &sess
	case ActionSetSession:
		err = h.setSession(ctx, input, out)
	case ActionSwapCountries:
		var sess appstate.Session
		sess, err = h.store.SwapCountries(ctx, input.UserID)
		out.Session = &sess
	case ActionSessionCards:
		err = h.sessionCards(ctx, input, out)
	case ActionDialogue:
		var snap *appstate.Snapshot
		snap, err = h.store.Snapshot(ctx, input.UserID)
		if err == nil {
			out.Dialogue = snap.ResolveDialogue(models.NormalizeNodeTypeID(input.NodeTypeID), input.CountryID)
		}
	case ActionSaveAPIConfig:
		var cfg models.APIConfig
		cfg, err = h.store.SaveAPIConfig(ctx, input.UserID, *input.APIConfig)
		out.APIConfig = &cfg
	case ActionResetAPIConfig:
		err = h.store.ResetAPIConfig(ctx, input.UserID)
	case ActionFeedbackLog:
		out.Feedback, err = h.store.Feedback(ctx, input.UserID)
	default:
		return nil, errors.NewUnknownActionError(input.Action)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (h *Handler) resolveCard(ctx context.Context, userID, cardID string) (models.KnowledgeCard, error) {
	snap, err := h.store.Snapshot(ctx, userID)
	if err != nil {
		return models.KnowledgeCard{}, err
	}
	card, ok := snap.ResolveCard(cardID)
	if !ok {
		return models.KnowledgeCard{}, errors.NewResourceNotFoundError("cards", "card "+cardID)
	}
	return card, nil
}

func (h *Handler) collect(ctx context.Context, input *Input, out *Output) error {
	card, err := h.resolveCard(ctx, input.UserID, input.CardID)
	if err != nil {
		return err
	}
	collected, err := h.store.ToggleCollect(ctx, input.UserID, card)
	if err != nil {
		return err
	}
	out.Collected = &collected

	h.logger.Info("Collection toggled", map[string]interface{}{
		"cardId":    card.CardID,
		"collected": collected,
	})
	return nil
}

func (h *Handler) view(ctx context.Context, input *Input, out *Output) error {
	card, err := h.resolveCard(ctx, input.UserID, input.CardID)
	if err != nil {
		return err
	}
	res, err := h.store.MarkViewed(ctx, input.UserID, card)
	if err != nil {
		return err
	}
	out.View = &res
	return nil
}

// collection lists collected cards ordered by id.
func (h *Handler) collection(ctx context.Context, userID string) ([]models.KnowledgeCard, error) {
	cards, err := h.store.CollectedCards(ctx, userID)
	if err != nil {
		return nil, err
	}
	list := make([]models.KnowledgeCard, 0, len(cards))
	for _, c := range cards {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CardID < list[j].CardID })
	return list, nil
}

func (h *Handler) setSession(ctx context.Context, input *Input, out *Output) error {
	sess, err := h.store.SetSession(ctx, input.UserID, *input.Session)
	if err != nil {
		return err
	}
	if sess.CountryA != "" && sess.CountryA == sess.CountryB {
		h.logger.Warn("Session compares a country with itself", map[string]interface{}{
			"country": sess.CountryA,
		})
	}
	out.Session = &sess
	return nil
}

func (h *Handler) sessionCards(ctx context.Context, input *Input, out *Output) error {
	snap, err := h.store.Snapshot(ctx, input.UserID)
	if err != nil {
		return err
	}
	hasBundle := snap.Bundle != nil
	out.Session = &snap.Session
	out.SessionCards = snap.SessionCards()
	out.HasBundle = &hasBundle
	return nil
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
