// internal/provider/image.go
package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "grain-workers/internal/common/errors"
	commonhttp "grain-workers/internal/common/http"
	"grain-workers/internal/models"
)

// ImageRef is a photo supplied as raw base64, a data URL or an http(s) URL.
type ImageRef string

func (r ImageRef) IsRemote() bool {
	s := strings.ToLower(strings.TrimSpace(string(r)))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// DataURL returns r as something a vision model accepts inline: remote URLs
// and data URLs pass through, bare base64 is wrapped as JPEG.
func (r ImageRef) DataURL() string {
	s := strings.TrimSpace(string(r))
	if r.IsRemote() || strings.HasPrefix(s, "data:") {
		return s
	}
	return "data:image/jpeg;base64," + s
}

// Decode returns the bytes and MIME type of an inline image.
func (r ImageRef) Decode() ([]byte, string, error) {
	s := strings.TrimSpace(string(r))
	mime := "image/jpeg"
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, "", apperrors.NewInputValidationError("malformed data URL")
		}
		meta := s[len("data:"):comma]
		if semi := strings.IndexByte(meta, ';'); semi >= 0 {
			meta = meta[:semi]
		}
		if meta != "" {
			mime = meta
		}
		s = s[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", apperrors.NewInputValidationError(fmt.Sprintf("image is not valid base64: %v", err))
	}
	if len(data) == 0 {
		return nil, "", apperrors.NewInputValidationError("image is empty")
	}
	return data, mime, nil
}

// LoadImage resolves r to bytes, downloading remote URLs through doer.
func LoadImage(ctx context.Context, doer commonhttp.Doer, r ImageRef) ([]byte, string, error) {
	if !r.IsRemote() {
		return r.Decode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(string(r)), nil)
	if err != nil {
		return nil, "", apperrors.NewInputValidationError(fmt.Sprintf("invalid image URL: %v", err))
	}
	resp, err := doer.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if !ok(resp.StatusCode) {
		return nil, "", apperrors.NewHTTPStatusError(resp.StatusCode, "", "", nil)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("download image: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}
	return data, mime, nil
}

// ValidateImageTarget checks the fields every direct image service needs.
func ValidateImageTarget(t models.ImageTarget) error {
	switch {
	case t.BaseURL == "":
		return apperrors.NewProviderConfigInvalidError("image base URL is required")
	case t.APIKey == "":
		return apperrors.NewProviderConfigInvalidError("image key is required")
	case t.Model == "":
		return apperrors.NewProviderConfigInvalidError("image model is required")
	}
	return nil
}
