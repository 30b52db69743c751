// Package dashscope drives the native asynchronous text-to-image API of
// DashScope (Wanx models): create a task, then poll it until it settles.
package dashscope

import (
	"context"
	"net/http"
	"strings"
	"time"

	"grain-workers/internal/coerce"
	apperrors "grain-workers/internal/common/errors"
	commonhttp "grain-workers/internal/common/http"
	"grain-workers/internal/common/logger"
	"grain-workers/internal/models"
	"grain-workers/internal/provider"
)

const (
	DefaultBaseURL   = "https://dashscope.aliyuncs.com"
	DefaultImageSize = "1024x1024"

	synthesisPath = "/api/v1/services/aigc/text2image/image-synthesis"
	tasksPath     = "/api/v1/tasks/"

	defaultPollInterval = 2 * time.Second
	defaultMaxWait      = 90 * time.Second
)

// Task states reported in output.task_status.
const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusCanceled  = "CANCELED"
	StatusUnknown   = "UNKNOWN"
)

type Client struct {
	doer         commonhttp.Doer
	target       models.ImageTarget
	logger       logger.Logger
	pollInterval time.Duration
	maxWait      time.Duration
}

type Option func(*Client)

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func WithMaxWait(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.maxWait = d
		}
	}
}

// New returns a client for target. A blank base URL uses DefaultBaseURL.
func New(doer commonhttp.Doer, target models.ImageTarget, log logger.Logger, opts ...Option) *Client {
	target.BaseURL = Root(target.BaseURL)
	c := &Client{
		doer:         doer,
		target:       target,
		logger:       log.WithFields(map[string]interface{}{"provider": provider.DashScopeWanx, "model": target.Model}),
		pollInterval: defaultPollInterval,
		maxWait:      defaultMaxWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root strips API paths a user may have pasted into the base URL, including
// the OpenAI-compatible root shared with the text provider.
func Root(base string) string {
	b := strings.TrimRight(strings.TrimSpace(base), "/")
	if b == "" {
		return DefaultBaseURL
	}
	lower := strings.ToLower(b)
	for _, suffix := range []string{"/compatible-mode/v1", "/api/v1"} {
		if strings.HasSuffix(lower, suffix) {
			return b[:len(b)-len(suffix)]
		}
	}
	return b
}

// dashscope writes sizes as W*H.
func wireSize(size string) string {
	if size == "" {
		size = DefaultImageSize
	}
	return strings.ReplaceAll(strings.ToLower(size), "x", "*")
}

type synthesisRequest struct {
	Model string `json:"model"`
	Input struct {
		Prompt string `json:"prompt"`
	} `json:"input"`
	Parameters struct {
		Size string `json:"size"`
		N    int    `json:"n"`
	} `json:"parameters"`
}

// Generate creates a synthesis task and waits for its first image.
func (c *Client) Generate(ctx context.Context, prompt, size string) (models.ImageResult, error) {
	if err := provider.ValidateImageTarget(c.target); err != nil {
		return models.ImageResult{}, err
	}

	taskID, err := c.createTask(ctx, prompt, size)
	if err != nil {
		return models.ImageResult{}, err
	}
	c.logger.Info("Image task created", map[string]interface{}{"taskId": taskID})
	return c.wait(ctx, taskID)
}

func (c *Client) createTask(ctx context.Context, prompt, size string) (string, error) {
	var body synthesisRequest
	body.Model = c.target.Model
	body.Input.Prompt = prompt
	body.Parameters.Size = wireSize(size)
	body.Parameters.N = 1

	req, err := provider.NewJSONRequest(ctx, http.MethodPost, c.target.BaseURL+synthesisPath, body, c.target.APIKey)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-DashScope-Async", "enable")

	v, err := provider.Send(c.doer, provider.DashScopeWanx, "image-synthesis", req, provider.ParseStrict)
	if err != nil {
		return "", err
	}
	taskID := coerce.AsString(coerce.Field(coerce.Field(v, "output"), "task_id"), "")
	if taskID == "" {
		return "", apperrors.NewImageEmptyResponseError()
	}
	return taskID, nil
}

func (c *Client) wait(ctx context.Context, taskID string) (models.ImageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.maxWait)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Warn("Image task did not finish in time", map[string]interface{}{"taskId": taskID})
			return models.ImageResult{}, apperrors.NewGenerationTimeoutError("image task " + taskID)
		case <-ticker.C:
		}

		output, err := c.poll(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return models.ImageResult{}, err
		}

		status := coerce.AsString(coerce.Field(output, "task_status"), StatusUnknown)
		switch status {
		case StatusSucceeded:
			var first interface{}
			if results := coerce.AsArray(coerce.Field(output, "results")); len(results) > 0 {
				first = results[0]
			}
			url := coerce.AsString(coerce.Field(first, "url"), "")
			if url == "" {
				return models.ImageResult{}, apperrors.NewImageEmptyResponseError()
			}
			return models.ImageResult{ImageURL: url}, nil
		case StatusPending, StatusRunning:
		default:
			c.logger.Warn("Image task failed", map[string]interface{}{
				"taskId":  taskID,
				"status":  status,
				"code":    coerce.AsString(coerce.Field(output, "code"), ""),
				"message": coerce.AsString(coerce.Field(output, "message"), ""),
			})
			return models.ImageResult{}, apperrors.NewImageTaskFailedError(taskID, status)
		}
	}
}

func (c *Client) poll(ctx context.Context, taskID string) (interface{}, error) {
	req, err := provider.NewJSONRequest(ctx, http.MethodGet, c.target.BaseURL+tasksPath+taskID, nil, c.target.APIKey)
	if err != nil {
		return nil, err
	}
	v, err := provider.Send(c.doer, provider.DashScopeWanx, "tasks", req, provider.ParseStrict)
	if err != nil {
		return nil, err
	}
	return coerce.Field(v, "output"), nil
}
