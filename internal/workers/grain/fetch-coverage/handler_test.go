package fetchcoverage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"grain-workers/internal/appstate"
	"grain-workers/internal/catalog"
	apperrors "grain-workers/internal/common/errors"
	"grain-workers/internal/common/logger"
	"grain-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func newHandler(t *testing.T, def models.APIConfig) *Handler {
	t.Helper()
	log := logger.NewTestLogger(t)
	store, err := appstate.NewStore(appstate.NewMemoryKV(), appstate.Options{}, log)
	require.NoError(t, err)
	return NewHandler(&Config{Timeout: 5 * time.Second, Locale: "en", DefaultProvider: def}, store, http.DefaultClient, log)
}

func backend(t *testing.T, status int, body interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/coverage", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func createMockJob(variables map[string]interface{}) entities.Job {
	raw, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:       1,
		Type:      TaskType,
		Retries:   3,
		Variables: string(raw),
	}}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Sources(t *testing.T) {
	ok := backend(t, 200, map[string]interface{}{"categoryId": "food_drink", "coveredCountries": []string{"FR", "JP", "IT"}})
	broken := backend(t, 500, map[string]interface{}{"error": map[string]interface{}{"code": "INTERNAL_ERROR", "message": "down"}})

	tests := []struct {
		name       string
		def        models.APIConfig
		wantSource string
		wantIDs    []string
		wantAll    bool
		wantReason bool
	}{
		{
			name:       "not configured uses bundled coverage",
			def:        models.APIConfig{},
			wantSource: SourceCatalog,
			wantIDs:    []string{"FR", "JP"},
		},
		{
			name:       "backend answers",
			def:        models.APIConfig{Enabled: true, Kind: models.ProviderGrainBackend, BaseURL: ok.URL},
			wantSource: SourceBackend,
			wantIDs:    []string{"FR", "JP", "IT"},
		},
		{
			name:       "backend failure falls back",
			def:        models.APIConfig{Enabled: true, Kind: models.ProviderGrainBackend, BaseURL: broken.URL},
			wantSource: SourceCatalog,
			wantIDs:    []string{"FR", "JP"},
			wantReason: true,
		},
		{
			name:       "general model covers everything",
			def:        models.APIConfig{Enabled: true, Kind: models.ProviderOpenAICompatible, BaseURL: "https://llm.example.com", OpenAIModel: "m"},
			wantSource: SourceModel,
			wantAll:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(t, tt.def)

			out, err := h.Execute(context.Background(), &Input{UserID: "u1", CategoryID: "food_drink"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, out.Source)
			assert.Equal(t, "food_drink", out.CategoryID)
			assert.Equal(t, tt.wantAll, out.AllCountries)
			if tt.wantAll {
				assert.Len(t, out.CoveredCountries, len(catalog.Countries))
			} else {
				assert.Equal(t, tt.wantIDs, out.CoveredCountries)
			}
			assert.Equal(t, tt.wantReason, out.FallbackReason != "")
		})
	}
}

func TestHandler_Execute_DefaultsToSessionCategory(t *testing.T) {
	h := newHandler(t, models.APIConfig{})

	out, err := h.Execute(context.Background(), &Input{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "food_drink", out.CategoryID)
}

func TestHandler_Execute_DisabledCategoryHasNoCoverage(t *testing.T) {
	h := newHandler(t, models.APIConfig{})

	out, err := h.Execute(context.Background(), &Input{UserID: "u1", CategoryID: "kitchen"})
	require.NoError(t, err)
	assert.Empty(t, out.CoveredCountries)
}

func TestHandler_Execute_PerCallConfigWins(t *testing.T) {
	srv := backend(t, 200, map[string]interface{}{"coveredCountries": []string{"GR"}})
	h := newHandler(t, models.APIConfig{})

	out, err := h.Execute(context.Background(), &Input{
		UserID:     "u1",
		CategoryID: "food_drink",
		APIConfig:  &models.APIConfig{Enabled: true, Kind: models.ProviderGrainBackend, BaseURL: srv.URL},
	})
	require.NoError(t, err)
	assert.Equal(t, SourceBackend, out.Source)
	assert.Equal(t, []string{"GR"}, out.CoveredCountries)
}

// ==========================
// Input Validation Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := newHandler(t, models.APIConfig{})

	in, err := h.parseInput(createMockJob(map[string]interface{}{
		"userId":     "u1",
		"categoryId": "food_drink",
		"apiConfig":  map[string]interface{}{"enabled": true, "kind": "grain_backend", "baseUrl": "https://x"},
	}))
	require.NoError(t, err)
	assert.Equal(t, "u1", in.UserID)
	require.NotNil(t, in.APIConfig)
	assert.Equal(t, "https://x", in.APIConfig.BaseURL)

	_, err = h.parseInput(createMockJob(map[string]interface{}{"categoryId": 7}))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInputValidationFailed, apperrors.ToStandardError(err).Code)
}
