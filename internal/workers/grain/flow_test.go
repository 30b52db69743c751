package grain_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"grain-workers/internal/appstate"
	"grain-workers/internal/common/logger"
	"grain-workers/internal/models"

	ca "grain-workers/internal/workers/grain/card-activity"
	gci "grain-workers/internal/workers/grain/generate-card-image"
	gc "grain-workers/internal/workers/grain/generate-content"
	ido "grain-workers/internal/workers/grain/identify-object"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type backend struct {
	srv        *httptest.Server
	generated  map[string]interface{}
	imageCalls int32
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/identify", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"objectName":    "茶杯",
			"objectGeneric": "杯子",
			"categoryCandidates": []interface{}{
				map[string]interface{}{"categoryId": "food_drink", "confidence": 0.8},
			},
		})
	})
	mux.HandleFunc("/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&b.generated))
		writeJSON(w, map[string]interface{}{
			"sessionId": "sess_flow",
			"chapters": []interface{}{
				map[string]interface{}{"nodeTypeId": "ORIGIN", "chapterTitle": "起源"},
			},
			"dialogues": []interface{}{
				map[string]interface{}{"nodeTypeId": "ORIGIN", "countryId": "FR", "text": "bonjour"},
			},
			"cards": []interface{}{
				map[string]interface{}{"cardId": "FR_ORIGIN", "countryId": "FR", "nodeTypeId": "ORIGIN", "title": "茶杯在法国"},
			},
		})
	})
	mux.HandleFunc("/v1/image", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.imageCalls, 1)
		writeJSON(w, map[string]interface{}{"imageBase64": "aW1n", "mimeType": "image/webp"})
	})
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func redisStore(t *testing.T, mr *miniredis.Miniredis) *appstate.Store {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store, err := appstate.NewStore(appstate.NewRedisKV(rdb, 0), appstate.Options{}, logger.NewTestLogger(t))
	require.NoError(t, err)
	return store
}

// ==========================
// Cross-Worker Flow
// ==========================

func TestFlow_IdentifyGenerateIllustrateCollect(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := redisStore(t, mr)
	b := newBackend(t)
	log := logger.NewTestLogger(t)

	def := models.APIConfig{
		Enabled:      true,
		Kind:         models.ProviderGrainBackend,
		BaseURL:      b.srv.URL,
		ImageEnabled: true,
	}
	doer := http.DefaultClient

	identify := ido.NewHandler(&ido.Config{Timeout: 5 * time.Second, Locale: "zh", DefaultProvider: def}, store, doer, log)
	generate := gc.NewHandler(&gc.Config{Timeout: 5 * time.Second, Locale: "zh", DefaultProvider: def}, store, doer, log)
	illustrate := gci.NewHandler(&gci.Config{Timeout: 5 * time.Second, Locale: "zh", DefaultProvider: def}, store, doer, log)
	activity := ca.NewHandler(&ca.Config{Timeout: 5 * time.Second, Locale: "zh"}, store, log)

	// identify writes the object into the session
	idOut, err := identify.Execute(ctx, &ido.Input{
		UserID:          "u1",
		Image:           base64.StdEncoding.EncodeToString([]byte("photo")),
		RequestedLocale: "zh",
	})
	require.NoError(t, err)
	assert.Equal(t, "茶杯", idOut.ObjectName)
	assert.Equal(t, "food_drink", idOut.CategoryID)

	// generate picks the object up from the session
	genOut, err := generate.Execute(ctx, &gc.Input{UserID: "u1", RequestedLocale: "zh", CountryB: "JP"})
	require.NoError(t, err)
	assert.Equal(t, gc.SourceBackend, genOut.Source)
	assert.Equal(t, "茶杯", b.generated["objectName"])
	assert.Equal(t, "sess_flow", genOut.SessionID)
	assert.Equal(t, "茶杯在法国", genOut.SessionCards[0].A.Title)

	// illustrate once, then serve from cache
	imgOut, err := illustrate.Execute(ctx, &gci.Input{UserID: "u1", CardID: "FR_ORIGIN", RequestedLocale: "zh"})
	require.NoError(t, err)
	assert.Equal(t, "data:image/webp;base64,aW1n", imgOut.ImageURI)
	assert.False(t, imgOut.Cached)

	imgOut, err = illustrate.Execute(ctx, &gci.Input{UserID: "u1", CardID: "FR_ORIGIN", RequestedLocale: "zh"})
	require.NoError(t, err)
	assert.True(t, imgOut.Cached)
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.imageCalls))

	// view and collect the generated card
	viewOut, err := activity.Execute(ctx, &ca.Input{UserID: "u1", Action: ca.ActionView, CardID: "FR_ORIGIN"})
	require.NoError(t, err)
	require.NotNil(t, viewOut.View)
	assert.True(t, viewOut.View.NewToday)

	colOut, err := activity.Execute(ctx, &ca.Input{UserID: "u1", Action: ca.ActionCollect, CardID: "FR_ORIGIN"})
	require.NoError(t, err)
	require.NotNil(t, colOut.Collected)
	assert.True(t, *colOut.Collected)

	// a fresh process over the same redis sees the persisted state
	restarted := redisStore(t, mr)
	bundle, err := restarted.ActiveBundle(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Equal(t, "sess_flow", bundle.Data.SessionID)

	collected, err := restarted.CollectedCards(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "茶杯在法国", collected["FR_ORIGIN"].Title)

	stats, err := restarted.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, appstate.Stats{DailyNewCards: 1, ExploredCountries: 1, CollectedCards: 1}, stats)

	_, ok := restarted.CardImage("u1", "FR_ORIGIN")
	assert.False(t, ok, "image cache is process-local")
}

func TestFlow_SessionChangeDropsBundle(t *testing.T) {
	ctx := context.Background()
	store := redisStore(t, miniredis.RunT(t))
	b := newBackend(t)
	log := logger.NewTestLogger(t)
	def := models.APIConfig{Enabled: true, Kind: models.ProviderGrainBackend, BaseURL: b.srv.URL}

	generate := gc.NewHandler(&gc.Config{Timeout: 5 * time.Second, Locale: "zh", DefaultProvider: def}, store, http.DefaultClient, log)
	activity := ca.NewHandler(&ca.Config{Timeout: 5 * time.Second, Locale: "zh"}, store, log)

	_, err := generate.Execute(ctx, &gc.Input{UserID: "u1", RequestedLocale: "zh"})
	require.NoError(t, err)

	out, err := activity.Execute(ctx, &ca.Input{UserID: "u1", Action: ca.ActionSessionCards})
	require.NoError(t, err)
	require.NotNil(t, out.HasBundle)
	assert.True(t, *out.HasBundle)

	_, err = activity.Execute(ctx, &ca.Input{UserID: "u1", Action: ca.ActionSwapCountries})
	require.NoError(t, err)

	out, err = activity.Execute(ctx, &ca.Input{UserID: "u1", Action: ca.ActionSessionCards})
	require.NoError(t, err)
	assert.False(t, *out.HasBundle)
}
