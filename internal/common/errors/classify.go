// internal/common/errors/classify.go
package errors

import (
	"context"
	stderrors "errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Category is the user-facing failure class of a cloud call.
type Category string

const (
	CategoryUnauthorized  Category = "unauthorized"
	CategoryNotFound      Category = "not_found"
	CategoryRateLimited   Category = "rate_limited"
	CategoryNonJSON       Category = "non_json_response"
	CategoryNotJSON       Category = "model_output_not_json"
	CategoryTruncated     Category = "model_output_truncated"
	CategoryInvalidJSON   Category = "model_output_invalid_json"
	CategoryEmptyOutput   Category = "model_empty_response"
	CategoryEmptyImage    Category = "empty_image"
	CategoryImageProvider Category = "image_provider"
	CategoryNotConfigured Category = "not_configured"
	CategoryTimeout       Category = "timeout"
	CategoryOther         Category = "other"
)

var (
	unauthorizedRe = regexp.MustCompile(`(?i)HTTP 401|UNAUTHORIZED|invalid api key|api key`)
	notFoundRe     = regexp.MustCompile(`(?i)HTTP 404|NOT_FOUND`)
	rateLimitRe    = regexp.MustCompile(`(?i)HTTP 429|RATE_LIMIT|rate limit|Too Many Requests`)
	nonJSONRe      = regexp.MustCompile(`(?i)NON_JSON_RESPONSE`)
	notJSONRe      = regexp.MustCompile(`(?i)MODEL_OUTPUT_NOT_JSON`)
	notValidJSONRe = regexp.MustCompile(`(?i)MODEL_OUTPUT_NOT_VALID_JSON`)
	unexpectedEnd  = regexp.MustCompile(`(?i)Unexpected end of (JSON )?input`)
	emptyOutputRe  = regexp.MustCompile(`MODEL_EMPTY_RESPONSE`)
	emptyImageRe   = regexp.MustCompile(`MODEL_EMPTY_IMAGE|IMAGE_EMPTY_RESPONSE`)
)

type errorFacts struct {
	status    int
	code      string
	message   string
	truncated bool
}

func factsOf(err error) errorFacts {
	var f errorFacts

	var apiErr *APIError
	var extErr *ExtractionError
	var stdErr *StandardError
	switch {
	case stderrors.As(err, &apiErr):
		f.status = apiErr.Status
		f.code = apiErr.Code
		f.message = apiErr.Message
	case stderrors.As(err, &extErr):
		f.code = string(extErr.Code)
		f.message = extErr.Error()
		f.truncated = extErr.Truncated
	case stderrors.As(err, &stdErr):
		f.code = string(stdErr.Code)
		f.message = stdErr.Message
		if stdErr.Details != "" {
			f.message += ": " + stdErr.Details
		}
	default:
		f.message = err.Error()
	}
	return f
}

// Classify maps any error from a provider call onto the failure taxonomy.
// Rules are checked in order; the first match wins.
func Classify(err error) Category {
	if err == nil {
		return ""
	}
	f := factsOf(err)
	combined := strings.TrimSpace(f.code + " " + f.message)

	switch {
	case f.status == 401 || unauthorizedRe.MatchString(combined):
		return CategoryUnauthorized
	case f.status == 404 || notFoundRe.MatchString(combined):
		return CategoryNotFound
	case f.status == 429 || rateLimitRe.MatchString(combined):
		return CategoryRateLimited
	case nonJSONRe.MatchString(combined):
		return CategoryNonJSON
	case notJSONRe.MatchString(combined):
		return CategoryNotJSON
	case notValidJSONRe.MatchString(combined):
		if f.truncated || unexpectedEnd.MatchString(combined) {
			return CategoryTruncated
		}
		return CategoryInvalidJSON
	case emptyOutputRe.MatchString(combined):
		return CategoryEmptyOutput
	case emptyImageRe.MatchString(combined):
		return CategoryEmptyImage
	case f.code == string(ErrCodeImageTaskFailed):
		return CategoryImageProvider
	case f.code == string(ErrCodeProviderNotReady) || f.code == string(ErrCodeProviderInvalid):
		return CategoryNotConfigured
	case stderrors.Is(err, context.DeadlineExceeded) || f.code == string(ErrCodeGenerationTimeout):
		return CategoryTimeout
	default:
		return CategoryOther
	}
}

var humanMessages = map[string]map[Category]string{
	"zh": {
		CategoryUnauthorized:  "鉴权失败：API Key/Token 不正确或无权限，请检查 Base URL 与 Key。",
		CategoryNotFound:      "接口地址 404：Base URL 可能填错。请确保填到 OpenAI 兼容的 /v1（例如 https://dashscope.aliyuncs.com/compatible-mode/v1）。",
		CategoryRateLimited:   "触发限流/额度不足：请稍后重试，或检查账户额度与 QPS 限制。",
		CategoryNonJSON:       "接口返回的不是 JSON（可能是网关/HTML）。请检查 Base URL 是否直达 OpenAI 兼容接口。",
		CategoryNotJSON:       "模型没有按要求返回 JSON。建议更换文本模型或重试。",
		CategoryTruncated:     "模型输出被截断（不完整 JSON）。建议换更强文本模型（如 qwen-plus/qwen-max）或重试。",
		CategoryInvalidJSON:   "模型输出不是有效 JSON。建议更换文本模型或重试。",
		CategoryEmptyOutput:   "模型返回了空内容。建议更换文本模型或重试。",
		CategoryEmptyImage:    "图片接口没有返回图片。请检查图片模型配置或稍后重试。",
		CategoryImageProvider: "图片生成任务失败。请稍后重试或更换图片服务。",
		CategoryNotConfigured: "未配置云端接口：请先在设置中填写 Base URL 与 Key，或继续使用离线示例内容。",
		CategoryTimeout:       "请求超时：模型响应过慢，请稍后重试。",
	},
	"en": {
		CategoryUnauthorized:  "Authentication failed: the API key or token is wrong or lacks permission. Check the base URL and key.",
		CategoryNotFound:      "Endpoint returned 404: the base URL is probably wrong. Point it at an OpenAI-compatible /v1 root.",
		CategoryRateLimited:   "Rate limited or out of quota: retry later, or check account quota and QPS limits.",
		CategoryNonJSON:       "The endpoint did not return JSON (possibly a gateway or HTML page). Check that the base URL reaches the API directly.",
		CategoryNotJSON:       "The model did not return JSON. Try another text model or retry.",
		CategoryTruncated:     "The model output was cut off (incomplete JSON). Try a stronger text model or retry.",
		CategoryInvalidJSON:   "The model output is not valid JSON. Try another text model or retry.",
		CategoryEmptyOutput:   "The model returned an empty response. Try another text model or retry.",
		CategoryEmptyImage:    "The image endpoint returned no image. Check the image model settings or retry later.",
		CategoryImageProvider: "The image generation task failed. Retry later or switch image provider.",
		CategoryNotConfigured: "No cloud endpoint is configured. Add a base URL and key in settings, or keep using the offline demo content.",
		CategoryTimeout:       "The request timed out. Retry later.",
	},
}

var fallbackMessage = map[string]string{
	"zh": "请稍后重试",
	"en": "Please try again later.",
}

// Humanize renders a short localized explanation of err. Unknown locales
// use Chinese. Unclassified errors show their raw message cut to 240 runes.
func Humanize(err error, locale string) string {
	if err == nil {
		return ""
	}
	lang := "zh"
	if strings.HasPrefix(strings.ToLower(locale), "en") {
		lang = "en"
	}

	if msg, ok := humanMessages[lang][Classify(err)]; ok {
		return msg
	}

	raw := factsOf(err).message
	if utf8.RuneCountInString(raw) > 240 {
		return Truncate(raw, 240) + "…"
	}
	if raw == "" {
		return fallbackMessage[lang]
	}
	return raw
}

// ToStandardError normalizes any error into a StandardError so the job error
// handler can pick a retry budget and BPMN code for it.
func ToStandardError(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}

	category := Classify(err)
	meta := map[string]interface{}{"errorClass": string(category)}

	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		meta["status"] = apiErr.Status
		return &StandardError{
			Code:      ErrorCode(apiErr.Code),
			Message:   apiErr.Message,
			Details:   apiErr.PayloadText,
			Retryable: apiErr.Status == 429 || apiErr.Status >= 500,
			Metadata:  meta,
			Timestamp: time.Now().UTC(),
		}
	}

	var extErr *ExtractionError
	if stderrors.As(err, &extErr) {
		meta["truncated"] = extErr.Truncated
		return &StandardError{
			Code:      extErr.Code,
			Message:   string(extErr.Code),
			Details:   extErr.Error(),
			Retryable: false,
			Metadata:  meta,
			Timestamp: time.Now().UTC(),
		}
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		timeout := NewGenerationTimeoutError("model call")
		timeout.Metadata = meta
		return timeout
	}

	return &StandardError{
		Code:      ErrCodeUnexpected,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Metadata:  meta,
		Timestamp: time.Now().UTC(),
	}
}
