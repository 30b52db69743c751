package identifyobject

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
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
	return NewHandler(&Config{Timeout: 5 * time.Second, Locale: "en", DefaultProvider: def}, store, http.DefaultClient, log), store
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var photo = base64.StdEncoding.EncodeToString([]byte("jpegbytes"))

func backend(t *testing.T, reply map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/identify", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "3", r.FormValue("maxCandidates"))
		assert.Equal(t, "zh", r.FormValue("requestedLocale"))
		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, []byte("jpegbytes"), data)
		writeJSON(w, 200, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func grainConfig(url string) models.APIConfig {
	return models.APIConfig{Enabled: true, Kind: models.ProviderGrainBackend, BaseURL: url}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Backend(t *testing.T) {
	srv := backend(t, map[string]interface{}{
		"objectName":    "茶杯",
		"objectGeneric": "杯子",
		"categoryCandidates": []interface{}{
			map[string]interface{}{"categoryId": "spaceships", "categoryName": "飞船", "confidence": 0.99},
			map[string]interface{}{"categoryId": "kitchen", "confidence": 0.4},
			map[string]interface{}{"categoryId": "food_drink", "confidence": 0.9},
		},
	})
	h, store := newHandler(t, grainConfig(srv.URL))

	out, err := h.Execute(context.Background(), &Input{UserID: "u1", Image: photo, RequestedLocale: "zh", PhotoURI: "file:///p.jpg"})
	require.NoError(t, err)

	assert.Equal(t, "茶杯", out.ObjectName)
	assert.Equal(t, "杯子", out.ObjectGeneric)
	assert.Equal(t, "kitchen", out.CategoryID, "first allowed candidate wins over higher confidence")
	assert.Equal(t, "餐厨器具（未开放）", out.CategoryName)
	assert.False(t, out.CategoryEnabled)
	assert.Len(t, out.CategoryCandidates, 3)
	assert.Equal(t, models.ProviderGrainBackend, out.Provider)

	sess, err := store.Session(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "茶杯", sess.ObjectName)
	assert.Equal(t, "kitchen", sess.CategoryID)
	assert.Equal(t, "file:///p.jpg", sess.PhotoURI)
	assert.Equal(t, *out.Session, sess)
}

func TestHandler_Execute_BlankFieldsKeepSession(t *testing.T) {
	srv := backend(t, map[string]interface{}{
		"objectName":         "  ",
		"categoryCandidates": []interface{}{map[string]interface{}{"categoryId": "unknown"}},
	})
	h, _ := newHandler(t, grainConfig(srv.URL))
	def := appstate.DefaultSession()

	out, err := h.Execute(context.Background(), &Input{UserID: "u1", Image: photo, RequestedLocale: "zh"})
	require.NoError(t, err)
	assert.Equal(t, def.ObjectName, out.ObjectName)
	assert.Equal(t, def.ObjectGeneric, out.ObjectGeneric)
	assert.Equal(t, def.CategoryID, out.CategoryID)
	assert.Equal(t, def.CategoryName, out.CategoryName)
	assert.True(t, out.CategoryEnabled)
}

func TestHandler_Execute_NoSessionUpdate(t *testing.T) {
	srv := backend(t, map[string]interface{}{"objectName": "杯子"})
	h, store := newHandler(t, grainConfig(srv.URL))
	no := false

	out, err := h.Execute(context.Background(), &Input{UserID: "u1", Image: photo, RequestedLocale: "zh", UpdateSession: &no})
	require.NoError(t, err)
	assert.Nil(t, out.Session)

	sess, err := store.Session(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, appstate.DefaultSession(), sess)
}

func TestHandler_Execute_OpenAICompatible(t *testing.T) {
	var seenModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-1", r.Header.Get("Authorization"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		seenModel, _ = body["model"].(string)
		raw, _ := json.Marshal(body["messages"])
		assert.True(t, strings.Contains(string(raw), "data:image/png;base64,"+photo))

		content := "```json\n{\"objectName\":\"鸡蛋\",\"objectGeneric\":\"蛋\",\"categoryCandidates\":[{\"categoryId\":\"food_drink\",\"confidence\":0.9}]}\n```"
		writeJSON(w, 200, map[string]interface{}{
			"choices": []interface{}{map[string]interface{}{"message": map[string]interface{}{"content": content}}},
		})
	}))
	t.Cleanup(srv.Close)

	h, _ := newHandler(t, models.APIConfig{})
	out, err := h.Execute(context.Background(), &Input{
		UserID:          "u1",
		Image:           photo,
		MimeType:        "image/png",
		RequestedLocale: "zh",
		APIConfig: &models.APIConfig{
			Enabled:           true,
			Kind:              models.ProviderOpenAICompatible,
			BaseURL:           srv.URL,
			APIKey:            "sk-1",
			OpenAIModel:       "text-model",
			OpenAIVisionModel: "vision-model",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "vision-model", seenModel)
	assert.Equal(t, "鸡蛋", out.ObjectName)
	assert.Equal(t, "food_drink", out.CategoryID)
	assert.Equal(t, models.ProviderOpenAICompatible, out.Provider)
}

func TestHandler_Execute_ProviderErrors(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *models.APIConfig
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "not configured",
			cfg:      &models.APIConfig{Enabled: false, BaseURL: "https://x.example.com"},
			wantCode: apperrors.ErrCodeProviderNotReady,
		},
		{
			name:     "openai without key",
			cfg:      &models.APIConfig{Enabled: true, Kind: models.ProviderOpenAICompatible, BaseURL: "https://x.example.com", OpenAIModel: "m"},
			wantCode: apperrors.ErrCodeProviderInvalid,
		},
		{
			name:     "openai without model",
			cfg:      &models.APIConfig{Enabled: true, Kind: models.ProviderOpenAICompatible, BaseURL: "https://x.example.com", APIKey: "k"},
			wantCode: apperrors.ErrCodeProviderInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newHandler(t, models.APIConfig{})
			_, err := h.Execute(context.Background(), &Input{UserID: "u1", Image: photo, RequestedLocale: "zh", APIConfig: tt.cfg})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.ToStandardError(err).Code)
		})
	}
}

func TestHandler_Execute_BadImage(t *testing.T) {
	h, _ := newHandler(t, grainConfig("https://unused.example.com"))

	_, err := h.Execute(context.Background(), &Input{UserID: "u1", Image: "***", RequestedLocale: "zh"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInputValidationFailed, apperrors.ToStandardError(err).Code)
}

// ==========================
// Input Validation Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h, _ := newHandler(t, models.APIConfig{})

	job := func(vars map[string]interface{}) entities.Job {
		raw, _ := json.Marshal(vars)
		return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Variables: string(raw)}}
	}

	tests := []struct {
		name    string
		vars    map[string]interface{}
		wantErr bool
	}{
		{name: "image only", vars: map[string]interface{}{"image": photo}},
		{name: "missing image", vars: map[string]interface{}{"userId": "u1"}, wantErr: true},
		{name: "empty image", vars: map[string]interface{}{"image": ""}, wantErr: true},
		{name: "unknown locale", vars: map[string]interface{}{"image": photo, "requestedLocale": "fr"}, wantErr: true},
		{name: "too many candidates", vars: map[string]interface{}{"image": photo, "maxCandidates": 50}, wantErr: true},
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
