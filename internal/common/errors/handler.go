package errors

import (
	"time"
)

// NodeErrorHandler normalizes node errors into pipeline-level outcomes.
type NodeErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewNodeErrorHandler(logger Logger) *NodeErrorHandler {
	return &NodeErrorHandler{logger: logger}
}

// Outcome is the handler's verdict on a node error.
type Outcome string

const (
	// OutcomeAbsorb: continue with whatever partial output the node produced.
	OutcomeAbsorb Outcome = "absorb"
	// OutcomeRetry: the error may consume a bounded retry through the router.
	OutcomeRetry Outcome = "retry"
	// OutcomeDegrade: short-circuit to finalization with the degraded flag.
	OutcomeDegrade Outcome = "degrade"
)

// HandleNodeError normalizes err, logs it with node context, and returns
// both the verdict and the normalized error for the state's failure record.
func (h *NodeErrorHandler) HandleNodeError(node string, err error) (Outcome, *StandardError) {
	stdErr := h.normalizeError(node, err)
	outcome := outcomeFor(GetErrorCategory(stdErr.Code))
	h.logNodeError(node, stdErr, outcome)
	return outcome, stdErr
}

// normalizeError ensures we always have a StandardError
func (h *NodeErrorHandler) normalizeError(node string, err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternalError,
		Message:   "Unexpected node error",
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"node": node},
		Timestamp: time.Now().UTC(),
	}
}

func outcomeFor(category ErrorCategory) Outcome {
	switch category {
	case CategorySoft:
		return OutcomeAbsorb
	case CategoryDegrade:
		return OutcomeDegrade
	default:
		return OutcomeRetry
	}
}

func (h *NodeErrorHandler) logNodeError(node string, stdErr *StandardError, outcome Outcome) {
	fields := map[string]interface{}{
		"node":          node,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": string(GetErrorCategory(stdErr.Code)),
		"outcome":       string(outcome),
	}
	if outcome == OutcomeAbsorb {
		h.logger.Warn("Node soft failure", fields)
		return
	}
	h.logger.Error("Node failed", fields)
}
