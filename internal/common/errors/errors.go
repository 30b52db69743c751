// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Model output and transport errors
const (
	ErrCodeModelOutputNotJSON      ErrorCode = "MODEL_OUTPUT_NOT_JSON"
	ErrCodeModelOutputNotValidJSON ErrorCode = "MODEL_OUTPUT_NOT_VALID_JSON"
	ErrCodeModelEmptyResponse      ErrorCode = "MODEL_EMPTY_RESPONSE"
	ErrCodeNonJSONResponse         ErrorCode = "NON_JSON_RESPONSE"

	ErrCodeModelEmptyImage    ErrorCode = "MODEL_EMPTY_IMAGE"
	ErrCodeImageEmptyResponse ErrorCode = "IMAGE_EMPTY_RESPONSE"
	ErrCodeImageTaskFailed    ErrorCode = "IMAGE_TASK_FAILED"
	ErrCodeImageDisabled      ErrorCode = "IMAGE_DISABLED"
)

// First-party backend error codes, as sent in {error:{code,message}} bodies.
const (
	ErrCodeBadRequest       ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeCoverageMissing  ErrorCode = "COVERAGE_MISSING"
	ErrCodeRateLimited      ErrorCode = "RATE_LIMITED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeProviderNotReady ErrorCode = "GRAIN_API_NOT_CONFIGURED"
	ErrCodeProviderInvalid  ErrorCode = "PROVIDER_CONFIG_INVALID"
)

// Worker-level errors
const (
	ErrCodeInputValidationFailed ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrCodeGenerationTimeout     ErrorCode = "GENERATION_TIMEOUT"
	ErrCodeStateStoreFailed      ErrorCode = "STATE_STORE_FAILED"
	ErrCodeUnknownAction         ErrorCode = "UNKNOWN_ACTION"
	ErrCodeUnexpected            ErrorCode = "UNEXPECTED_ERROR"

	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceMissing ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeBusinessRule    ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeAuthentication  ErrorCode = "AUTHENTICATION_ERROR"
)

// HTTPStatusCode is the synthetic code used when a non-2xx body carries none.
func HTTPStatusCode(status int) ErrorCode {
	return ErrorCode(fmt.Sprintf("HTTP_%d", status))
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newStandard(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInputValidationError creates a non-retryable error for malformed job variables.
func NewInputValidationError(details string) *StandardError {
	return newStandard(ErrCodeInputValidationFailed, "Job input failed validation", details, false)
}

// NewProviderNotConfiguredError is returned when no base URL is available for a remote call.
func NewProviderNotConfiguredError(kind string) *StandardError {
	return newStandard(ErrCodeProviderNotReady, "Model provider is not configured",
		fmt.Sprintf("kind: %s", kind), false)
}

// NewProviderConfigInvalidError flags a config that names a provider it cannot drive.
func NewProviderConfigInvalidError(details string) *StandardError {
	return newStandard(ErrCodeProviderInvalid, "Model provider configuration is invalid", details, false)
}

// NewModelEmptyResponseError is returned when a completion has neither content nor tool-call arguments.
func NewModelEmptyResponseError() *StandardError {
	return newStandard(ErrCodeModelEmptyResponse, "MODEL_EMPTY_RESPONSE",
		"chat completion carried no content", true)
}

// NewModelEmptyImageError is returned when an image completion carries no image.
func NewModelEmptyImageError() *StandardError {
	return newStandard(ErrCodeModelEmptyImage, "MODEL_EMPTY_IMAGE", "image response carried no data", true)
}

// NewImageEmptyResponseError is the backend-side counterpart of NewModelEmptyImageError.
func NewImageEmptyResponseError() *StandardError {
	return newStandard(ErrCodeImageEmptyResponse, "IMAGE_EMPTY_RESPONSE", "image response carried no data", true)
}

// NewImageTaskFailedError reports an asynchronous image task that ended without output.
func NewImageTaskFailedError(taskID, status string) *StandardError {
	return newStandard(ErrCodeImageTaskFailed, "Image generation task failed",
		fmt.Sprintf("taskId: %s, status: %s", taskID, status), true)
}

// NewImageDisabledError is returned when image generation is switched off for the caller.
func NewImageDisabledError() *StandardError {
	return newStandard(ErrCodeImageDisabled, "Image generation is disabled", "", false)
}

// NewGenerationTimeoutError creates a retryable timeout error.
func NewGenerationTimeoutError(operation string) *StandardError {
	return newStandard(ErrCodeGenerationTimeout, "Model call timed out",
		fmt.Sprintf("operation: %s", operation), true)
}

// NewStateStoreError wraps a key-value store failure.
func NewStateStoreError(err error) *StandardError {
	return newStandard(ErrCodeStateStoreFailed, "State store operation failed", err.Error(), true)
}

// NewUnknownActionError rejects an action name the worker does not implement.
func NewUnknownActionError(action string) *StandardError {
	return newStandard(ErrCodeUnknownAction, "Unknown action", fmt.Sprintf("action: %s", action), false)
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return newStandard(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newStandard(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newStandard(ErrCodeResourceMissing, fmt.Sprintf("Resource not found in %s", service), details, false)
}

func NewAuthenticationError(details string) *StandardError {
	return newStandard(ErrCodeAuthentication, "Authentication failed", details, false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the BPMN error codes used in
// process models. Codes not listed are thrown as-is.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeModelOutputNotJSON:      "MODEL_OUTPUT_INVALID",
	ErrCodeModelOutputNotValidJSON: "MODEL_OUTPUT_INVALID",
	ErrCodeModelEmptyResponse:      "MODEL_OUTPUT_INVALID",
	ErrCodeNonJSONResponse:         "PROVIDER_MISROUTED",
	ErrCodeNotFound:                "PROVIDER_MISROUTED",
	ErrCodeUnauthorized:            "PROVIDER_UNAUTHORIZED",
	ErrCodeAuthentication:          "PROVIDER_UNAUTHORIZED",
	ErrCodeProviderNotReady:        "PROVIDER_NOT_CONFIGURED",
	ErrCodeProviderInvalid:         "PROVIDER_NOT_CONFIGURED",
	ErrCodeModelEmptyImage:         "IMAGE_UNAVAILABLE",
	ErrCodeImageEmptyResponse:      "IMAGE_UNAVAILABLE",
	ErrCodeImageTaskFailed:         "IMAGE_UNAVAILABLE",
	ErrCodeImageDisabled:           "IMAGE_UNAVAILABLE",
}

// GetRetryCount returns the job-level retry budget for a code. Output-shape
// errors get none: the generation controller has already retried them.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeRateLimited,
		ErrCodeInternal,
		ErrCodeExternalService,
		ErrCodeStateStoreFailed:
		return 3

	case ErrCodeTimeout,
		ErrCodeGenerationTimeout,
		ErrCodeImageTaskFailed:
		return 2

	case ErrCodeModelEmptyImage,
		ErrCodeImageEmptyResponse:
		return 1

	default:
		if strings.HasPrefix(string(code), "HTTP_5") {
			return 2
		}
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns a coarse bucket for dashboards and logs.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "MODEL_OUTPUT") || code == ErrCodeModelEmptyResponse:
		return "MODEL_OUTPUT"
	case strings.Contains(codeStr, "IMAGE"):
		return "IMAGE"
	case code == ErrCodeUnauthorized || code == ErrCodeAuthentication:
		return "AUTH"
	case code == ErrCodeProviderNotReady || code == ErrCodeProviderInvalid:
		return "CONFIG"
	case strings.HasPrefix(codeStr, "HTTP_") || code == ErrCodeNonJSONResponse ||
		code == ErrCodeNotFound || code == ErrCodeRateLimited || code == ErrCodeInternal ||
		code == ErrCodeBadRequest || code == ErrCodeCoverageMissing:
		return "TRANSPORT"
	case strings.Contains(codeStr, "TIMEOUT"):
		return "TIMEOUT"
	case strings.Contains(codeStr, "VALIDATION") || code == ErrCodeUnknownAction:
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
