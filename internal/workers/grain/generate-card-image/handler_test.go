package generatecardimage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"grain-workers/internal/appstate"
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

func newHandler(t *testing.T, def models.APIConfig) (*Handler, *appstate.Store) {
	t.Helper()
	log := logger.NewTestLogger(t)
	store, err := appstate.NewStore(appstate.NewMemoryKV(), appstate.Options{}, log)
	require.NoError(t, err)
	cfg := &Config{
		Timeout:         5 * time.Second,
		Locale:          "en",
		DefaultProvider: def,
		PollInterval:    10 * time.Millisecond,
		MaxWait:         2 * time.Second,
	}
	return NewHandler(cfg, store, http.DefaultClient, log), store
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func imageConfig(kind models.ProviderKind, base string) models.APIConfig {
	return models.APIConfig{
		Enabled:          true,
		Kind:             models.ProviderGrainBackend,
		BaseURL:          "https://text.example.com",
		APIKey:           "text-key",
		ImageEnabled:     true,
		ImageKind:        kind,
		ImageBaseURL:     base,
		ImageAPIKey:      "img-key",
		OpenAIImageModel: "img-model",
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Disabled(t *testing.T) {
	h, _ := newHandler(t, models.APIConfig{Enabled: true, BaseURL: "https://x.example.com"})

	_, err := h.Execute(context.Background(), &Input{UserID: "u1", CardID: "FR_ORIGIN", RequestedLocale: "zh"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeImageDisabled, apperrors.ToStandardError(err).Code)
}

func TestHandler_Execute_CacheHit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, 200, map[string]interface{}{"imageUrl": "https://cdn.example.com/new.png"})
	}))
	t.Cleanup(srv.Close)

	h, store := newHandler(t, imageConfig(models.ProviderGrainBackend, srv.URL))
	store.SetCardImage("u1", "FR_ORIGIN", "https://cdn.example.com/old.png")

	out, err := h.Execute(context.Background(), &Input{UserID: "u1", CardID: "FR_ORIGIN", RequestedLocale: "zh"})
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Equal(t, "https://cdn.example.com/old.png", out.ImageURI)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	out, err = h.Execute(context.Background(), &Input{UserID: "u1", CardID: "FR_ORIGIN", RequestedLocale: "zh", Force: true})
	require.NoError(t, err)
	assert.False(t, out.Cached)
	assert.Equal(t, "https://cdn.example.com/new.png", out.ImageURI)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	uri, ok := store.CardImage("u1", "FR_ORIGIN")
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/new.png", uri)
}

func TestHandler_Execute_Backend(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/image", r.URL.Path)
		assert.Equal(t, "Bearer img-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, 200, map[string]interface{}{"imageBase64": "AAAA", "mimeType": "image/webp"})
	}))
	t.Cleanup(srv.Close)

	h, store := newHandler(t, imageConfig(models.ProviderGrainBackend, srv.URL))
	_, _, err := store.SetRemoteBundle(context.Background(), "u1", appstate.ContextOf(appstate.DefaultSession()), models.GenerateResult{
		Cards: []models.KnowledgeCard{{
			CardID:     "FR_ORIGIN",
			CountryID:  "FR",
			NodeTypeID: models.NodeOrigin,
			Title:      "long card",
			Facts:      []string{"1", "2", "3", "4", "5"},
			Keywords:   []string{"a", "b", "c", "d", "e", "f", "g", "h"},
		}},
	})
	require.NoError(t, err)

	out, err := h.Execute(context.Background(), &Input{UserID: "u1", CardID: "FR_ORIGIN", RequestedLocale: "zh"})
	require.NoError(t, err)
	assert.Equal(t, "data:image/webp;base64,AAAA", out.ImageURI)
	assert.Equal(t, models.ProviderGrainBackend, out.Provider)

	assert.Equal(t, "zh", body["requestedLocale"])
	assert.Equal(t, "long card", body["cardTitle"])
	assert.Equal(t, "food_drink", body["categoryId"])
	assert.Equal(t, "ORIGIN", body["nodeTypeId"])
	assert.Len(t, body["facts"], 3)
	assert.Len(t, body["keywords"], 6)
}

func TestHandler_Execute_BackendEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{})
	}))
	t.Cleanup(srv.Close)

	h, store := newHandler(t, imageConfig(models.ProviderGrainBackend, srv.URL))

	_, err := h.Execute(context.Background(), &Input{UserID: "u1", CardID: "FR_ORIGIN", RequestedLocale: "zh"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeImageEmptyResponse, apperrors.ToStandardError(err).Code)

	_, ok := store.CardImage("u1", "FR_ORIGIN")
	assert.False(t, ok)
}

func TestHandler_Execute_OpenAICompatible(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, 200, map[string]interface{}{
			"data": []interface{}{map[string]interface{}{"url": "https://cdn.example.com/fr.png"}},
		})
	}))
	t.Cleanup(srv.Close)

	h, _ := newHandler(t, imageConfig(models.ProviderOpenAICompatible, srv.URL))

	out, err := h.Execute(context.Background(), &Input{UserID: "u1", CardID: "FR_ORIGIN", RequestedLocale: "zh"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/fr.png", out.ImageURI)
	assert.Equal(t, models.ProviderOpenAICompatible, out.Provider)

	assert.Equal(t, "img-model", body["model"])
	assert.Equal(t, "512x512", body["size"])
	prompt, _ := body["prompt"].(string)
	assert.True(t, strings.HasPrefix(prompt, "Create a clean, modern illustration (no text, no logos). Topic: "))
	assert.Contains(t, prompt, "Culture/Country: 法国.")
	assert.Contains(t, prompt, "Object: "+appstate.DefaultSession().ObjectGeneric+".")
}

func TestHandler_Execute_DashScope(t *testing.T) {
	var polls int32
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/services/aigc/text2image/image-synthesis":
			assert.Equal(t, "enable", r.Header.Get("X-DashScope-Async"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writeJSON(w, 200, map[string]interface{}{"output": map[string]interface{}{"task_id": "t1", "task_status": "PENDING"}})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/tasks/t1":
			if atomic.AddInt32(&polls, 1) < 2 {
				writeJSON(w, 200, map[string]interface{}{"output": map[string]interface{}{"task_status": "RUNNING"}})
				return
			}
			writeJSON(w, 200, map[string]interface{}{"output": map[string]interface{}{
				"task_status": "SUCCEEDED",
				"results":     []interface{}{map[string]interface{}{"url": "https://oss.example.com/wanx.png"}},
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	h, _ := newHandler(t, imageConfig(models.ProviderDashScopeWanx, srv.URL+"/compatible-mode/v1"))

	out, err := h.Execute(context.Background(), &Input{UserID: "u1", CardID: "JP_RITUAL", RequestedLocale: "zh"})
	require.NoError(t, err)
	assert.Equal(t, "https://oss.example.com/wanx.png", out.ImageURI)
	assert.Equal(t, int32(2), atomic.LoadInt32(&polls))

	params, _ := body["parameters"].(map[string]interface{})
	assert.Equal(t, "1024*1024", params["size"])
	input, _ := body["input"].(map[string]interface{})
	prompt, _ := input["prompt"].(string)
	assert.True(t, strings.HasPrefix(prompt, "生成一张高质量插画：主题="))
	assert.Contains(t, prompt, "国家/文化=日本。")
}

func TestHandler_Execute_UnknownCard(t *testing.T) {
	h, _ := newHandler(t, imageConfig(models.ProviderGrainBackend, "https://img.example.com"))

	_, err := h.Execute(context.Background(), &Input{UserID: "u1", CardID: "nope", RequestedLocale: "zh"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeResourceMissing, apperrors.ToStandardError(err).Code)
}

func TestHandler_Execute_IncompleteImageTarget(t *testing.T) {
	cfg := imageConfig(models.ProviderOpenAICompatible, "https://img.example.com")
	cfg.OpenAIImageModel = ""
	h, _ := newHandler(t, cfg)

	_, err := h.Execute(context.Background(), &Input{UserID: "u1", CardID: "FR_ORIGIN", RequestedLocale: "zh"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeProviderInvalid, apperrors.ToStandardError(err).Code)
}

// ==========================
// Input Validation Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h, _ := newHandler(t, models.APIConfig{})

	job := func(vars map[string]interface{}) entities.Job {
		raw, _ := json.Marshal(vars)
		return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 4, Variables: string(raw)}}
	}

	tests := []struct {
		name    string
		vars    map[string]interface{}
		wantErr bool
	}{
		{name: "card only", vars: map[string]interface{}{"cardId": "FR_ORIGIN"}},
		{name: "forced", vars: map[string]interface{}{"cardId": "FR_ORIGIN", "force": true}},
		{name: "missing card", vars: map[string]interface{}{"userId": "u1"}, wantErr: true},
		{name: "force not bool", vars: map[string]interface{}{"cardId": "FR_ORIGIN", "force": "yes"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(job(tt.vars))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.ErrCodeInputValidationFailed, apperrors.ToStandardError(err).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "zh", input.RequestedLocale)
		})
	}
}
