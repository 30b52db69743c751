// internal/models/api_config.go
package models

import "strings"

// ProviderKind selects the wire protocol used to reach a model.
type ProviderKind string

const (
	ProviderGrainBackend     ProviderKind = "grain_backend"
	ProviderOpenAICompatible ProviderKind = "openai_compatible"
	ProviderDashScopeWanx    ProviderKind = "dashscope_wanx"
)

// APIConfig is the per-user provider configuration. Image fields fall back to
// the text provider's values when empty.
type APIConfig struct {
	Enabled           bool         `json:"enabled" mapstructure:"enabled"`
	Kind              ProviderKind `json:"kind" mapstructure:"kind"`
	BaseURL           string       `json:"baseUrl" mapstructure:"base_url"`
	APIKey            string       `json:"apiKey" mapstructure:"api_key"`
	OpenAIModel       string       `json:"openaiModel,omitempty" mapstructure:"openai_model"`
	OpenAIVisionModel string       `json:"openaiVisionModel,omitempty" mapstructure:"openai_vision_model"`

	ImageEnabled     bool         `json:"imageEnabled,omitempty" mapstructure:"image_enabled"`
	ImageKind        ProviderKind `json:"imageKind,omitempty" mapstructure:"image_kind"`
	ImageBaseURL     string       `json:"imageBaseUrl,omitempty" mapstructure:"image_base_url"`
	ImageAPIKey      string       `json:"imageApiKey,omitempty" mapstructure:"image_api_key"`
	OpenAIImageModel string       `json:"openaiImageModel,omitempty" mapstructure:"openai_image_model"`
}

// EffectiveBaseURL returns the trimmed base URL, or "" when the config is
// disabled or blank.
func (c APIConfig) EffectiveBaseURL() string {
	if !c.Enabled {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
}

// Configured reports whether remote calls can be made with this config.
func (c APIConfig) Configured() bool {
	return c.EffectiveBaseURL() != ""
}

// VisionModel is the model used for identification.
func (c APIConfig) VisionModel() string {
	if m := strings.TrimSpace(c.OpenAIVisionModel); m != "" {
		return m
	}
	return strings.TrimSpace(c.OpenAIModel)
}

// ImageTarget is the resolved provider for card illustrations.
type ImageTarget struct {
	Kind    ProviderKind
	BaseURL string
	APIKey  string
	Model   string
}

// ImageTarget resolves image settings against the text provider settings.
func (c APIConfig) ImageTarget() ImageTarget {
	kind := c.ImageKind
	if kind == "" {
		kind = c.Kind
	}
	base := strings.TrimSpace(c.ImageBaseURL)
	if base == "" {
		base = strings.TrimSpace(c.BaseURL)
	}
	key := strings.TrimSpace(c.ImageAPIKey)
	if key == "" {
		key = strings.TrimSpace(c.APIKey)
	}
	return ImageTarget{
		Kind:    kind,
		BaseURL: strings.TrimRight(base, "/"),
		APIKey:  key,
		Model:   strings.TrimSpace(c.OpenAIImageModel),
	}
}

// NormalizeAPIConfig repairs a stored or user-supplied config: unknown kinds
// fall back to the first-party backend and strings are trimmed.
func NormalizeAPIConfig(c APIConfig) APIConfig {
	switch c.Kind {
	case ProviderGrainBackend, ProviderOpenAICompatible:
	default:
		c.Kind = ProviderGrainBackend
	}
	switch c.ImageKind {
	case "", ProviderGrainBackend, ProviderOpenAICompatible, ProviderDashScopeWanx:
	default:
		c.ImageKind = ""
	}
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.OpenAIModel = strings.TrimSpace(c.OpenAIModel)
	c.OpenAIVisionModel = strings.TrimSpace(c.OpenAIVisionModel)
	c.ImageBaseURL = strings.TrimSpace(c.ImageBaseURL)
	c.ImageAPIKey = strings.TrimSpace(c.ImageAPIKey)
	c.OpenAIImageModel = strings.TrimSpace(c.OpenAIImageModel)
	return c
}
