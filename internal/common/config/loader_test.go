package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"grain-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearGrainEnv(t *testing.T) {
	for _, name := range []string{
		"GRAIN_API_BASE_URL", "GRAIN_API_KEY", "GRAIN_API_KIND", "GRAIN_OPENAI_MODEL",
		"GRAIN_OPENAI_VISION_MODEL", "GRAIN_IMAGE_KIND", "GRAIN_IMAGE_BASE_URL",
		"GRAIN_IMAGE_API_KEY", "GRAIN_IMAGE_MODEL", "GRAIN_IMAGE_ENABLED", "REDIS_PASSWORD",
	} {
		t.Setenv(name, "")
	}
}

const minimal = `
camunda:
  broker_address: localhost:26500
database:
  redis:
    address: localhost:6379
workers:
  generate-content:
    enabled: true
`

// ==========================
// Defaults
// ==========================

func TestLoadFromFile_Defaults(t *testing.T) {
	clearGrainEnv(t)

	cfg, err := LoadFromFile(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, "grain-workers", cfg.App.Name)
	assert.Equal(t, "zh", cfg.App.Locale)
	assert.Equal(t, 10, cfg.Camunda.MaxJobsActive)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, models.ProviderGrainBackend, cfg.Provider.Kind)
	assert.False(t, cfg.Provider.Configured())
	assert.Equal(t, 60000, cfg.HTTP.Timeout)
	assert.Empty(t, cfg.Generation.Attempts)
	assert.Equal(t, 2000, cfg.Image.PollInterval)
	assert.Equal(t, 90000, cfg.Image.MaxWait)
	assert.Equal(t, "grain", cfg.State.Prefix)
	assert.Equal(t, 16, cfg.State.ImageCacheSize)
	assert.Equal(t, ":8080", cfg.Server.Addr)

	w := cfg.Workers["generate-content"]
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)
}

func TestLoadFromFile_ProviderSection(t *testing.T) {
	clearGrainEnv(t)

	cfg, err := LoadFromFile(writeConfig(t, minimal+`
provider:
  enabled: true
  kind: openai_compatible
  base_url: " https://llm.example.com/v1/ "
  api_key: sk-test
  openai_model: gpt-4o-mini
generation:
  attempts:
    - compact: false
    - compact: true
      max_tokens: 1800
`))
	require.NoError(t, err)

	assert.Equal(t, models.ProviderOpenAICompatible, cfg.Provider.Kind)
	assert.Equal(t, "https://llm.example.com/v1", cfg.Provider.EffectiveBaseURL())
	assert.Equal(t, "gpt-4o-mini", cfg.Provider.VisionModel())
	assert.Equal(t, []AttemptConfig{{Compact: false, MaxTokens: 2600}, {Compact: true, MaxTokens: 1800}}, cfg.Generation.Attempts)
}

func TestLoadFromFile_EnvFallbacks(t *testing.T) {
	clearGrainEnv(t)
	t.Setenv("GRAIN_API_BASE_URL", "https://grain.example.com")
	t.Setenv("GRAIN_API_KEY", "k-1")
	t.Setenv("GRAIN_IMAGE_KIND", "dashscope_wanx")
	t.Setenv("GRAIN_IMAGE_MODEL", "wanx-v1")
	t.Setenv("GRAIN_IMAGE_ENABLED", "true")

	cfg, err := LoadFromFile(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.True(t, cfg.Provider.Enabled)
	assert.Equal(t, "https://grain.example.com", cfg.Provider.EffectiveBaseURL())
	assert.Equal(t, "k-1", cfg.Provider.APIKey)
	assert.True(t, cfg.Provider.ImageEnabled)

	target := cfg.Provider.ImageTarget()
	assert.Equal(t, models.ProviderDashScopeWanx, target.Kind)
	assert.Equal(t, "k-1", target.APIKey)
	assert.Equal(t, "wanx-v1", target.Model)
}

func TestLoadFromFile_FileWinsOverEnv(t *testing.T) {
	clearGrainEnv(t)
	t.Setenv("GRAIN_API_KEY", "from-env")

	cfg, err := LoadFromFile(writeConfig(t, minimal+`
provider:
  api_key: from-file
`))
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Provider.APIKey)
}

func TestLoadFromFile_Validation(t *testing.T) {
	clearGrainEnv(t)

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing broker",
			body:    "database:\n  redis:\n    address: localhost:6379\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name:    "missing redis",
			body:    "camunda:\n  broker_address: localhost:26500\n",
			wantErr: "database.redis.address is required",
		},
		{
			name: "openai without model",
			body: minimal + `
provider:
  enabled: true
  kind: openai_compatible
  base_url: https://llm.example.com
`,
			wantErr: "provider.openai_model is required",
		},
		{
			name: "negative max tokens",
			body: minimal + `
generation:
  attempts:
    - max_tokens: -1
`,
			wantErr: "max_tokens must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

// ==========================
// Helpers
// ==========================

func TestResolveAPIConfig(t *testing.T) {
	def := models.APIConfig{Enabled: true, Kind: models.ProviderGrainBackend, BaseURL: "https://default.example.com"}

	t.Run("default applies without a per-call config", func(t *testing.T) {
		got := ResolveAPIConfig(nil, def)
		assert.Equal(t, "https://default.example.com", got.EffectiveBaseURL())
	})

	t.Run("per-call config replaces the default wholesale", func(t *testing.T) {
		got := ResolveAPIConfig(&models.APIConfig{Enabled: false, Kind: "bogus", BaseURL: " https://user.example.com "}, def)
		assert.Equal(t, models.ProviderGrainBackend, got.Kind)
		assert.Equal(t, "https://user.example.com", got.BaseURL)
		assert.False(t, got.Configured())
	})
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"fetch-coverage": {Enabled: false, MaxJobsActive: 2}}}

	assert.Equal(t, 2, GetWorkerConfig(cfg, "fetch-coverage").MaxJobsActive)
	assert.False(t, IsWorkerEnabled(cfg, "fetch-coverage"))
	assert.True(t, IsWorkerEnabled(cfg, "submit-feedback"))
	assert.Equal(t, 5, GetWorkerConfig(cfg, "submit-feedback").MaxJobsActive)
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}

func TestLoadFromFile_ShippedConfig(t *testing.T) {
	clearGrainEnv(t)
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)

	cfg, err := LoadFromFile(filepath.Join(filepath.Dir(file), "..", "..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	assert.False(t, cfg.Provider.Configured())
	assert.Len(t, cfg.Workers, 6)
	assert.Len(t, cfg.Generation.Attempts, 2)
	assert.True(t, cfg.Generation.Attempts[1].Compact)

	img := GetWorkerConfig(cfg, "generate-card-image")
	assert.Greater(t, img.Timeout, cfg.Image.MaxWait)
}
