// Package errors provides standardized error handling for the generation pipeline.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Soft collaborator failures: absorbed locally, never surfaced to the caller.
	ErrCodeSearchQueryFailed     ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout         ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeSearchEmptyResult     ErrorCode = "SEARCH_EMPTY_RESULT"
	ErrCodeCacheUnavailable      ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeCurriculumLookupError ErrorCode = "CURRICULUM_LOOKUP_ERROR"

	// Generation failures: retried up to the router budget, then fall back.
	ErrCodeGenerationTimeout   ErrorCode = "GENERATION_TIMEOUT"
	ErrCodeGenerationFailed    ErrorCode = "GENERATION_FAILED"
	ErrCodeResponseMalformed   ErrorCode = "RESPONSE_MALFORMED"
	ErrCodeResponseSchema      ErrorCode = "RESPONSE_SCHEMA_VIOLATION"
	ErrCodeAnswerNotInOptions  ErrorCode = "ANSWER_NOT_IN_OPTIONS"
	ErrCodeInsufficientOutput  ErrorCode = "INSUFFICIENT_OUTPUT"
	ErrCodeNodePanic           ErrorCode = "NODE_PANIC"
	ErrCodeInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrCodePipelineTimeout     ErrorCode = "PIPELINE_TIMEOUT"
	ErrCodeUnknownNode         ErrorCode = "UNKNOWN_NODE"
	ErrCodeInternalError       ErrorCode = "INTERNAL_ERROR"
)

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
// 2. Error Constructors
// ==========================

// NewSearchQueryFailedError creates a soft retrieval error. The retriever
// absorbs it and continues with empty context.
func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Vector search query error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchTimeoutError creates a soft retrieval timeout error.
func NewSearchTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchTimeout,
		Message:   "Vector search timeout",
		Details:   "search call exceeded its per-call timeout",
		Retryable: false, // return empty context, don't retry
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError creates a soft cache error; callers fall through
// to the backing store.
func NewCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Cache unavailable",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCurriculumLookupError creates a soft topic-registry error; the lookup
// degrades to pass-through.
func NewCurriculumLookupError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCurriculumLookupError,
		Message:   "Curriculum registry lookup error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationTimeoutError creates a retryable generation timeout error.
func NewGenerationTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationTimeout,
		Message:   "Text generation timeout",
		Details:   "generation call exceeded its per-call timeout",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationFailedError creates a retryable generation error.
func NewGenerationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationFailed,
		Message:   "Text generation API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewResponseMalformedError creates a retryable parse error for unusable
// collaborator output.
func NewResponseMalformedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResponseMalformed,
		Message:   "Generated text could not be parsed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewResponseSchemaError creates a retryable schema-violation error for a
// parsed candidate that fails the question schema.
func NewResponseSchemaError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResponseSchema,
		Message:   "Generated question failed schema validation",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAnswerNotInOptionsError flags a self-inconsistent candidate. The
// candidate is dropped, never returned with a fabricated answer.
func NewAnswerNotInOptionsError(questionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnswerNotInOptions,
		Message:   "Designated answer missing from options",
		Details:   fmt.Sprintf("questionId: %s", questionID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInsufficientOutputError flags a generation round that produced fewer
// valid candidates than requested.
func NewInsufficientOutputError(got, want int) *StandardError {
	return &StandardError{
		Code:      ErrCodeInsufficientOutput,
		Message:   "Generation produced fewer candidates than requested",
		Details:   fmt.Sprintf("got %d, want %d", got, want),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNodePanicError wraps a recovered node panic as a soft failure.
func NewNodePanicError(node string, recovered interface{}) *StandardError {
	return &StandardError{
		Code:      ErrCodeNodePanic,
		Message:   "Pipeline node panicked",
		Details:   fmt.Sprintf("node: %s, panic: %v", node, recovered),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError creates a non-retryable request validation error.
// This is the only error class surfaced to the caller.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Workflow request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPipelineTimeoutError marks a run that hit the global wall-clock budget.
func NewPipelineTimeoutError(elapsed time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodePipelineTimeout,
		Message:   "Pipeline exceeded global time budget",
		Details:   fmt.Sprintf("elapsed: %s", elapsed),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownNodeError flags a routing decision naming an unregistered node.
func NewUnknownNodeError(node string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownNode,
		Message:   "Router selected an unregistered node",
		Details:   fmt.Sprintf("node: %s", node),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Error Classification
// ==========================

// ErrorCategory groups codes by recovery strategy.
type ErrorCategory string

const (
	// CategorySoft failures are absorbed where they occur; the pipeline
	// continues with empty or fallback data.
	CategorySoft ErrorCategory = "soft"
	// CategoryRetry failures consume a bounded retry through the router.
	CategoryRetry ErrorCategory = "retry"
	// CategoryDegrade failures short-circuit to the finalizer with the
	// degraded flag set.
	CategoryDegrade ErrorCategory = "degrade"
	// CategoryReject failures are surfaced to the caller before a run starts.
	CategoryReject ErrorCategory = "reject"
)

// GetErrorCategory maps an error code to its recovery strategy.
func GetErrorCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeSearchQueryFailed,
		ErrCodeSearchTimeout,
		ErrCodeSearchEmptyResult,
		ErrCodeCacheUnavailable,
		ErrCodeCurriculumLookupError:
		return CategorySoft
	case ErrCodeGenerationTimeout,
		ErrCodeGenerationFailed,
		ErrCodeResponseMalformed,
		ErrCodeResponseSchema,
		ErrCodeAnswerNotInOptions,
		ErrCodeInsufficientOutput,
		ErrCodeNodePanic:
		return CategoryRetry
	case ErrCodePipelineTimeout:
		return CategoryDegrade
	case ErrCodeInvalidRequest:
		return CategoryReject
	default:
		return CategoryRetry
	}
}
