package openai

import (
	"context"
	"net/http"

	"grain-workers/internal/coerce"
	apperrors "grain-workers/internal/common/errors"
	commonhttp "grain-workers/internal/common/http"
	"grain-workers/internal/common/logger"
	"grain-workers/internal/models"
	"grain-workers/internal/provider"
)

// DefaultImageSize is the size requested from /v1/images/generations.
const DefaultImageSize = "512x512"

// ImageClient calls the OpenAI images endpoint of an image target.
type ImageClient struct {
	doer   commonhttp.Doer
	target models.ImageTarget
	logger logger.Logger
}

func NewImageClient(doer commonhttp.Doer, target models.ImageTarget, log logger.Logger) *ImageClient {
	return &ImageClient{
		doer:   doer,
		target: target,
		logger: log.WithFields(map[string]interface{}{"provider": provider.OpenAICompatible, "model": target.Model}),
	}
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
	N      int    `json:"n"`
}

// Generate renders prompt. The reply may carry b64_json or a url; neither
// fails with MODEL_EMPTY_IMAGE.
func (c *ImageClient) Generate(ctx context.Context, prompt, size string) (models.ImageResult, error) {
	if err := provider.ValidateImageTarget(c.target); err != nil {
		return models.ImageResult{}, err
	}
	if size == "" {
		size = DefaultImageSize
	}

	req, err := provider.NewJSONRequest(ctx, http.MethodPost, provider.JoinV1(c.target.BaseURL, "images/generations"),
		imageRequest{Model: c.target.Model, Prompt: prompt, Size: size, N: 1}, c.target.APIKey)
	if err != nil {
		return models.ImageResult{}, err
	}
	v, err := provider.Send(c.doer, provider.OpenAICompatible, "images", req, provider.ParseStrict)
	if err != nil {
		c.logger.Warn("Image generation failed", map[string]interface{}{
			"status": provider.Status(err),
			"error":  err.Error(),
		})
		return models.ImageResult{}, err
	}

	var first interface{}
	if data := coerce.AsArray(coerce.Field(v, "data")); len(data) > 0 {
		first = data[0]
	}
	if b64 := coerce.AsString(coerce.Field(first, "b64_json"), ""); b64 != "" {
		return models.ImageResult{ImageBase64: b64, MimeType: "image/png"}, nil
	}
	if url := coerce.AsString(coerce.Field(first, "url"), ""); url != "" {
		return models.ImageResult{ImageURL: url}, nil
	}
	return models.ImageResult{}, apperrors.NewModelEmptyImageError()
}
