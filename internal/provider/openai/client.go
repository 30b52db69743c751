// Package openai talks to any OpenAI-compatible chat completions endpoint.
// Every chat call first asks for a strict JSON response mode and retries once
// without it when the server rejects the request shape.
package openai

import (
	"context"
	"net/http"
	"strings"

	"grain-workers/internal/catalog"
	"grain-workers/internal/coerce"
	apperrors "grain-workers/internal/common/errors"
	commonhttp "grain-workers/internal/common/http"
	"grain-workers/internal/common/logger"
	"grain-workers/internal/common/metrics"
	"grain-workers/internal/generation"
	"grain-workers/internal/jsonextract"
	"grain-workers/internal/models"
	"grain-workers/internal/provider"
)

const (
	identifyMaxTokens = 500
	pingMaxTokens     = 8
)

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	Messages       []message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type Client struct {
	doer   commonhttp.Doer
	cfg    models.APIConfig
	logger logger.Logger
}

var _ generation.Generator = (*Client)(nil)

func New(doer commonhttp.Doer, cfg models.APIConfig, log logger.Logger) *Client {
	return &Client{
		doer:   doer,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"provider": provider.OpenAICompatible}),
	}
}

func (c *Client) chatURL() (string, error) {
	base := c.cfg.EffectiveBaseURL()
	if base == "" {
		return "", apperrors.NewProviderNotConfiguredError(provider.OpenAICompatible)
	}
	return provider.JoinV1(base, "chat/completions"), nil
}

func (c *Client) model(vision bool) (string, error) {
	m := strings.TrimSpace(c.cfg.OpenAIModel)
	if vision {
		m = c.cfg.VisionModel()
	}
	if m == "" {
		return "", apperrors.NewProviderConfigInvalidError("model name is required")
	}
	return m, nil
}

// formatRejected reports whether a failed call should be retried without
// response_format.
func formatRejected(err error) bool {
	status := provider.Status(err)
	return status == http.StatusBadRequest || status == http.StatusUnprocessableEntity
}

func (c *Client) post(ctx context.Context, endpoint string, body chatRequest, parse provider.ParseFunc) (interface{}, error) {
	target, err := c.chatURL()
	if err != nil {
		return nil, err
	}
	req, err := provider.NewJSONRequest(ctx, http.MethodPost, target, body, c.cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return provider.Send(c.doer, provider.OpenAICompatible, endpoint, req, parse)
}

// chat negotiates the response format and returns the parsed completion.
func (c *Client) chat(ctx context.Context, endpoint string, body chatRequest) (interface{}, error) {
	body.ResponseFormat = &responseFormat{Type: "json_object"}
	v, err := c.post(ctx, endpoint, body, provider.ParseStrict)
	if err != nil && formatRejected(err) {
		c.logger.Warn("Server rejected response_format, retrying without it", map[string]interface{}{
			"endpoint": endpoint,
			"status":   provider.Status(err),
		})
		body.ResponseFormat = nil
		v, err = c.post(ctx, endpoint, body, provider.ParseStrict)
	}
	if err != nil {
		c.logger.Warn("Chat completion failed", map[string]interface{}{
			"endpoint": endpoint,
			"status":   provider.Status(err),
			"error":    err.Error(),
		})
		return nil, err
	}
	return v, nil
}

// MessageContent returns the model output of the first choice. Tool-call
// arguments take precedence over message content.
func MessageContent(completion interface{}) (string, error) {
	var msg interface{}
	choices := coerce.AsArray(coerce.Field(completion, "choices"))
	if len(choices) > 0 {
		msg = coerce.Field(choices[0], "message")
	}

	if calls := coerce.AsArray(coerce.Field(msg, "tool_calls")); len(calls) > 0 {
		args := coerce.AsString(coerce.Field(coerce.Field(calls[0], "function"), "arguments"), "")
		if strings.TrimSpace(args) != "" {
			return args, nil
		}
	}
	if content, ok := coerce.Field(msg, "content").(string); ok && strings.TrimSpace(content) != "" {
		return content, nil
	}
	return "", apperrors.NewModelEmptyResponseError()
}

func (c *Client) decode(endpoint string, completion interface{}) (interface{}, error) {
	content, err := MessageContent(completion)
	if err != nil {
		return nil, err
	}
	v, report, err := jsonextract.ExtractWithReport(content)
	if err != nil {
		c.logger.Warn("Model output is not usable JSON", map[string]interface{}{
			"endpoint":  endpoint,
			"truncated": !report.Complete,
			"error":     err.Error(),
		})
		return nil, err
	}
	metrics.ObserveJSONRepair(report.Candidate)
	if report.Candidate != jsonextract.CandidateRaw || !report.Complete {
		c.logger.Debug("Model output needed repair", map[string]interface{}{
			"endpoint":  endpoint,
			"candidate": report.Candidate,
			"complete":  report.Complete,
		})
	}
	return v, nil
}

// IdentifyInput is a photo plus the categories the model may choose from.
// Nil Categories means every catalog category.
type IdentifyInput struct {
	Image           provider.ImageRef
	RequestedLocale string
	Categories      []catalog.Category
}

// Identify asks a vision model to name the object and rank categories.
func (c *Client) Identify(ctx context.Context, in IdentifyInput) (models.IdentifyResult, error) {
	model, err := c.model(true)
	if err != nil {
		return models.IdentifyResult{}, err
	}
	locale := in.RequestedLocale
	if locale == "" {
		locale = "zh"
	}
	categories := in.Categories
	if categories == nil {
		categories = catalog.AllowedCategories()
	}
	msgs, err := identifyMessages(locale, in.Image.DataURL(), categories)
	if err != nil {
		return models.IdentifyResult{}, err
	}

	completion, err := c.chat(ctx, "identify", chatRequest{
		Model:     model,
		MaxTokens: identifyMaxTokens,
		Messages:  msgs,
	})
	if err != nil {
		return models.IdentifyResult{}, err
	}
	v, err := c.decode("identify", completion)
	if err != nil {
		return models.IdentifyResult{}, err
	}
	return coerce.Identify(v), nil
}

// GenerateOnce performs one generation attempt.
func (c *Client) GenerateOnce(ctx context.Context, req models.GenerateRequest, attempt generation.Attempt) (models.GenerateResult, error) {
	model, err := c.model(false)
	if err != nil {
		return models.GenerateResult{}, err
	}
	msgs, err := generateMessages(req, attempt.Compact)
	if err != nil {
		return models.GenerateResult{}, err
	}
	maxTokens := attempt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = generation.DefaultMaxTokens
	}

	completion, err := c.chat(ctx, "generate", chatRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  msgs,
	})
	if err != nil {
		return models.GenerateResult{}, err
	}
	v, err := c.decode("generate", completion)
	if err != nil {
		return models.GenerateResult{}, err
	}
	return coerce.Generate(v, req.RequestedLocale), nil
}

// Ping sends a tiny completion to check base URL, key and model together.
func (c *Client) Ping(ctx context.Context) error {
	model, err := c.model(false)
	if err != nil {
		return err
	}
	_, err = c.post(ctx, "ping", chatRequest{
		Model:     model,
		MaxTokens: pingMaxTokens,
		Messages:  []message{{Role: "user", Content: "ping"}},
	}, provider.ParseLenient)
	return err
}
