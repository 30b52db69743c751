// Package grain is the adapter for the first-party backend. The backend
// already speaks the domain schema, so requests carry domain values directly
// and replies are parsed leniently and coerced without repair.
package grain

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"grain-workers/internal/coerce"
	apperrors "grain-workers/internal/common/errors"
	commonhttp "grain-workers/internal/common/http"
	"grain-workers/internal/common/logger"
	"grain-workers/internal/models"
	"grain-workers/internal/provider"
)

type Client struct {
	doer   commonhttp.Doer
	cfg    models.APIConfig
	logger logger.Logger
}

func New(doer commonhttp.Doer, cfg models.APIConfig, log logger.Logger) *Client {
	return &Client{
		doer:   doer,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"provider": provider.GrainBackend}),
	}
}

func (c *Client) endpoint(path string) (string, error) {
	base := c.cfg.EffectiveBaseURL()
	if base == "" {
		return "", apperrors.NewProviderNotConfiguredError(provider.GrainBackend)
	}
	return provider.JoinV1(base, path), nil
}

func (c *Client) send(req *http.Request, endpoint string) (interface{}, error) {
	v, err := provider.Send(c.doer, provider.GrainBackend, endpoint, req, provider.ParseLenient)
	if err != nil {
		c.logger.Warn("Backend call failed", map[string]interface{}{
			"endpoint": endpoint,
			"status":   provider.Status(err),
			"error":    err.Error(),
		})
	}
	return v, err
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (interface{}, error) {
	target, err := c.endpoint(path)
	if err != nil {
		return nil, err
	}
	req, err := provider.NewJSONRequest(ctx, http.MethodPost, target, body, c.cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return c.send(req, path)
}

// IdentifyInput is the photo upload for POST /v1/identify.
type IdentifyInput struct {
	Image           []byte
	FileName        string
	MimeType        string
	RequestedLocale string
	MaxCandidates   int
}

// Identify uploads a photo as multipart form data.
func (c *Client) Identify(ctx context.Context, in IdentifyInput) (models.IdentifyResult, error) {
	target, err := c.endpoint("identify")
	if err != nil {
		return models.IdentifyResult{}, err
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	name := in.FileName
	if name == "" {
		name = "photo.jpg"
	}
	mime := in.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", mime)
	part, err := form.CreatePart(header)
	if err != nil {
		return models.IdentifyResult{}, err
	}
	if _, err := part.Write(in.Image); err != nil {
		return models.IdentifyResult{}, err
	}
	if in.RequestedLocale != "" {
		if err := form.WriteField("requestedLocale", in.RequestedLocale); err != nil {
			return models.IdentifyResult{}, err
		}
	}
	if in.MaxCandidates > 0 {
		if err := form.WriteField("maxCandidates", strconv.Itoa(in.MaxCandidates)); err != nil {
			return models.IdentifyResult{}, err
		}
	}
	if err := form.Close(); err != nil {
		return models.IdentifyResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, &body)
	if err != nil {
		return models.IdentifyResult{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	provider.SetBearer(req, c.cfg.APIKey)

	v, err := c.send(req, "identify")
	if err != nil {
		return models.IdentifyResult{}, err
	}
	return coerce.Identify(v), nil
}

// Coverage lists the countries with validated content for a category.
func (c *Client) Coverage(ctx context.Context, categoryID string) (models.CoverageResult, error) {
	target, err := c.endpoint("coverage")
	if err != nil {
		return models.CoverageResult{}, err
	}
	target += "?categoryId=" + url.QueryEscape(categoryID)

	req, err := provider.NewJSONRequest(ctx, http.MethodGet, target, nil, c.cfg.APIKey)
	if err != nil {
		return models.CoverageResult{}, err
	}
	v, err := c.send(req, "coverage")
	if err != nil {
		return models.CoverageResult{}, err
	}
	return coerce.Coverage(v, categoryID), nil
}

// Generate requests the full narrative for two countries.
func (c *Client) Generate(ctx context.Context, in models.GenerateRequest) (models.GenerateResult, error) {
	in.NodeTypeIDs = in.Stages()
	v, err := c.postJSON(ctx, "generate", in)
	if err != nil {
		return models.GenerateResult{}, err
	}
	return coerce.Generate(v, in.RequestedLocale), nil
}

// Feedback reports a problem with a card.
func (c *Client) Feedback(ctx context.Context, in models.FeedbackRequest) (models.FeedbackResult, error) {
	if in.FactIDsUsed == nil {
		in.FactIDsUsed = []string{}
	}
	if in.SourceHintIDsUsed == nil {
		in.SourceHintIDsUsed = []string{}
	}
	v, err := c.postJSON(ctx, "feedback", in)
	if err != nil {
		return models.FeedbackResult{}, err
	}
	return models.FeedbackResult{OK: coerce.AsBool(coerce.Field(v, "ok"), false)}, nil
}

// Image asks the backend to illustrate a card; the backend picks the image
// service. An empty reply fails with IMAGE_EMPTY_RESPONSE.
func (c *Client) Image(ctx context.Context, in models.ImageRequest) (models.ImageResult, error) {
	if in.Facts == nil {
		in.Facts = []string{}
	}
	if in.Keywords == nil {
		in.Keywords = []string{}
	}
	v, err := c.postJSON(ctx, "image", in)
	if err != nil {
		return models.ImageResult{}, err
	}
	img := coerce.Image(v)
	if img.URI() == "" {
		return models.ImageResult{}, apperrors.NewImageEmptyResponseError()
	}
	return img, nil
}
