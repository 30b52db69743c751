// Package provider holds the response-parsing contract shared by the model
// transport adapters: URL joining, strict and lenient body parsing, and the
// instrumented request helper.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"grain-workers/internal/coerce"
	apperrors "grain-workers/internal/common/errors"
	commonhttp "grain-workers/internal/common/http"
	"grain-workers/internal/common/metrics"
)

// Provider labels used in metrics and logs.
const (
	GrainBackend     = "grain_backend"
	OpenAICompatible = "openai_compatible"
	DashScopeWanx    = "dashscope_wanx"
)

// maxBodyBytes bounds response reads; inline images make bodies large.
const maxBodyBytes = 32 << 20

// JoinV1 appends path under the /v1 prefix of base. A base that already ends
// in /v1 (any case) gets no second segment.
func JoinV1(base, path string) string {
	b := strings.TrimRight(strings.TrimSpace(base), "/")
	after := strings.TrimLeft(path, "/")
	if b == "" {
		return "/" + after
	}
	if strings.HasSuffix(strings.ToLower(b), "/v1") {
		return b + "/" + after
	}
	return b + "/v1/" + after
}

// NewJSONRequest builds a request with a JSON body and optional bearer auth.
func NewJSONRequest(ctx context.Context, method, url string, body interface{}, apiKey string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	SetBearer(req, apiKey)
	return req, nil
}

// SetBearer adds Authorization: Bearer <key> when key is non-blank.
func SetBearer(req *http.Request, apiKey string) {
	if key := strings.TrimSpace(apiKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}

// ParseFunc turns an HTTP response into a parsed JSON value or a typed error.
type ParseFunc func(resp *http.Response) (interface{}, error)

// Send performs req, counts it under provider/endpoint and parses the reply.
// Transport failures keep their cause so context deadlines stay detectable.
func Send(doer commonhttp.Doer, providerName, endpoint string, req *http.Request, parse ParseFunc) (interface{}, error) {
	resp, err := doer.Do(req)
	if err != nil {
		metrics.ObserveProviderRequest(providerName, endpoint, 0)
		return nil, fmt.Errorf("%s %s: %w", providerName, endpoint, err)
	}
	defer resp.Body.Close()
	metrics.ObserveProviderRequest(providerName, endpoint, resp.StatusCode)
	return parse(resp)
}

func readBody(resp *http.Response) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	return string(raw), nil
}

func ok(status int) bool {
	return status >= 200 && status < 300
}

// statusError builds the typed error for a non-2xx reply, reading code and
// message from an {error:{code,message}} body when present.
func statusError(status int, payload interface{}) *apperrors.APIError {
	body := coerce.Field(payload, "error")
	code := coerce.AsString(coerce.Field(body, "code"), "")
	message := coerce.AsString(coerce.Field(body, "message"), "")
	return apperrors.NewHTTPStatusError(status, code, message, payload)
}

// ParseStrict requires a JSON body. Invalid JSON fails with NON_JSON_RESPONSE
// before the status is considered, so a gateway's HTML error page still
// carries its status for response-format negotiation.
func ParseStrict(resp *http.Response) (interface{}, error) {
	text, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	var payload interface{}
	if text != "" {
		if err := json.Unmarshal([]byte(text), &payload); err != nil {
			return nil, apperrors.NewNonJSONResponseError(resp.StatusCode, err.Error(), text)
		}
	}

	if !ok(resp.StatusCode) {
		return nil, statusError(resp.StatusCode, payload)
	}
	if payload == nil {
		return nil, apperrors.NewNonJSONResponseError(resp.StatusCode, "empty body", "")
	}
	return payload, nil
}

// ParseLenient tolerates unparseable bodies: on 2xx it returns whatever
// parsed (possibly nil), otherwise a typed status error.
func ParseLenient(resp *http.Response) (interface{}, error) {
	text, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	var payload interface{}
	if text != "" {
		if err := json.Unmarshal([]byte(text), &payload); err != nil {
			payload = nil
		}
	}

	if !ok(resp.StatusCode) {
		return nil, statusError(resp.StatusCode, payload)
	}
	return payload, nil
}

// Status returns the HTTP status carried by err, or 0.
func Status(err error) int {
	var apiErr *apperrors.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
