// internal/common/errors/api.go
package errors

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// APIError is a non-2xx or non-JSON HTTP response from a provider.
type APIError struct {
	Code        string      `json:"code"`
	Message     string      `json:"message"`
	Status      int         `json:"status"`
	Payload     interface{} `json:"payload,omitempty"`
	PayloadText string      `json:"payloadText,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// NewHTTPStatusError builds the error for a non-2xx response. code and message
// come from an {error:{code,message}} body when present.
func NewHTTPStatusError(status int, code, message string, payload interface{}) *APIError {
	if strings.TrimSpace(code) == "" {
		code = string(HTTPStatusCode(status))
	}
	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("HTTP %d", status)
	}
	return &APIError{Code: code, Message: message, Status: status, Payload: payload}
}

// NewNonJSONResponseError builds the error for a body that is empty or not JSON.
func NewNonJSONResponseError(status int, reason, body string) *APIError {
	return &APIError{
		Code:        string(ErrCodeNonJSONResponse),
		Message:     fmt.Sprintf("%s: %s", ErrCodeNonJSONResponse, reason),
		Status:      status,
		PayloadText: Truncate(body, 400),
	}
}

// ExtractionError reports model output that could not be turned into JSON.
type ExtractionError struct {
	Code      ErrorCode
	Cause     error
	Head      string
	Truncated bool
}

func (e *ExtractionError) Error() string {
	if e.Code == ErrCodeModelOutputNotJSON {
		return string(e.Code)
	}
	cause := "parse failed"
	if e.Cause != nil {
		cause = e.Cause.Error()
	}
	return fmt.Sprintf("%s: %s | head=%s", e.Code, cause, e.Head)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// NewModelOutputNotJSONError is returned when the text holds no '{' or '['.
func NewModelOutputNotJSONError() *ExtractionError {
	return &ExtractionError{Code: ErrCodeModelOutputNotJSON}
}

// NewModelOutputNotValidJSONError is returned when every parse candidate failed.
func NewModelOutputNotValidJSONError(cause error, head string, truncated bool) *ExtractionError {
	return &ExtractionError{
		Code:      ErrCodeModelOutputNotValidJSON,
		Cause:     cause,
		Head:      head,
		Truncated: truncated,
	}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
