// internal/provider/dashscope/wanx_test.go
package dashscope

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "grain-workers/internal/common/errors"
	commonhttp "grain-workers/internal/common/http"
	"grain-workers/internal/common/logger"
	"grain-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func reply(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func task(status string, extra map[string]interface{}) map[string]interface{} {
	output := map[string]interface{}{"task_id": "t-1", "task_status": status}
	for k, v := range extra {
		output[k] = v
	}
	return map[string]interface{}{"request_id": "r", "output": output}
}

// wanxServer answers task creation and reports the given statuses on
// successive polls, repeating the last one.
func wanxServer(t *testing.T, statuses []map[string]interface{}) (*httptest.Server, *int32) {
	t.Helper()
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ds-key", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == synthesisPath:
			assert.Equal(t, "enable", r.Header.Get("X-DashScope-Async"))
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "wanx-v1", body["model"])
			assert.Equal(t, "蛋的插画", body["input"].(map[string]interface{})["prompt"])
			params := body["parameters"].(map[string]interface{})
			assert.Equal(t, "1024*1024", params["size"])
			assert.Equal(t, float64(1), params["n"])
			reply(w, 200, task(StatusPending, nil))
		case r.Method == http.MethodGet && r.URL.Path == tasksPath+"t-1":
			n := int(atomic.AddInt32(&polls, 1)) - 1
			if n >= len(statuses) {
				n = len(statuses) - 1
			}
			reply(w, 200, statuses[n])
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &polls
}

func newClient(t *testing.T, srv *httptest.Server, base string, opts ...Option) *Client {
	t.Helper()
	target := models.ImageTarget{Kind: models.ProviderDashScopeWanx, BaseURL: base, APIKey: "ds-key", Model: "wanx-v1"}
	opts = append([]Option{WithPollInterval(5 * time.Millisecond)}, opts...)
	return New(commonhttp.Wrap(srv.Client()), target, logger.NewTestLogger(t), opts...)
}

// ==========================
// Tests
// ==========================

func TestRoot(t *testing.T) {
	tests := []struct {
		base     string
		expected string
	}{
		{"", DefaultBaseURL},
		{"https://dashscope.aliyuncs.com/", "https://dashscope.aliyuncs.com"},
		{"https://dashscope.aliyuncs.com/api/v1", "https://dashscope.aliyuncs.com"},
		{"https://dashscope.aliyuncs.com/compatible-mode/v1/", "https://dashscope.aliyuncs.com"},
		{"https://proxy.local/ds", "https://proxy.local/ds"},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			assert.Equal(t, tt.expected, Root(tt.base))
		})
	}
}

func TestGenerate_PollsUntilSucceeded(t *testing.T) {
	srv, polls := wanxServer(t, []map[string]interface{}{
		task(StatusPending, nil),
		task(StatusRunning, nil),
		task(StatusSucceeded, map[string]interface{}{"results": []interface{}{map[string]interface{}{"url": "https://oss/egg.png"}}}),
	})

	out, err := newClient(t, srv, srv.URL+"/api/v1").Generate(context.Background(), "蛋的插画", "")
	require.NoError(t, err)
	assert.Equal(t, "https://oss/egg.png", out.URI())
	assert.Equal(t, int32(3), atomic.LoadInt32(polls))
}

func TestGenerate_TaskFailed(t *testing.T) {
	srv, _ := wanxServer(t, []map[string]interface{}{
		task(StatusFailed, map[string]interface{}{"code": "DataInspectionFailed", "message": "blocked"}),
	})

	_, err := newClient(t, srv, srv.URL).Generate(context.Background(), "蛋的插画", "1024x1024")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeImageTaskFailed, apperrors.ToStandardError(err).Code)
	assert.Equal(t, apperrors.CategoryImageProvider, apperrors.Classify(err))
}

func TestGenerate_SucceededWithoutURL(t *testing.T) {
	srv, _ := wanxServer(t, []map[string]interface{}{task(StatusSucceeded, nil)})

	_, err := newClient(t, srv, srv.URL).Generate(context.Background(), "蛋的插画", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.CategoryEmptyImage, apperrors.Classify(err))
}

func TestGenerate_TimesOut(t *testing.T) {
	srv, _ := wanxServer(t, []map[string]interface{}{task(StatusRunning, nil)})

	_, err := newClient(t, srv, srv.URL, WithMaxWait(40*time.Millisecond)).Generate(context.Background(), "蛋的插画", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.CategoryTimeout, apperrors.Classify(err))
}

func TestGenerate_RequiresModel(t *testing.T) {
	client := New(commonhttp.NewClient(0), models.ImageTarget{APIKey: "k"}, logger.NewNoOpLogger())

	_, err := client.Generate(context.Background(), "p", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.CategoryNotConfigured, apperrors.Classify(err))
}
