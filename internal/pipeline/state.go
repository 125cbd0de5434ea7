// Package pipeline contains the question-generation state machine: the
// shared run state, the router that picks the next node, and the engine
// that executes nodes and merges their partial results.
package pipeline

import (
	"eduforge/internal/common/errors"
	"eduforge/internal/models"
)

// PipelineState is the single state object threaded through all nodes.
// Nodes never mutate it; they return a StateDelta the engine merges in.
type PipelineState struct {
	Request models.WorkflowRequest `json:"request"`

	Calibration      *models.Calibration        `json:"calibration,omitempty"`
	RetrievedContext []models.ContextSnippet    `json:"retrievedContext,omitempty"`
	RetrievalFailed  bool                       `json:"retrievalFailed,omitempty"`
	Candidates       []models.GeneratedQuestion `json:"candidates,omitempty"`
	Validation       *models.ValidationResult   `json:"validation,omitempty"`
	Enhanced         []models.GeneratedQuestion `json:"enhanced,omitempty"`

	CompletedNodes []string                `json:"completedNodes,omitempty"`
	RetryCount     int                     `json:"retryCount"`
	Deficit        int                     `json:"deficit,omitempty"`
	Timings        map[string]int64        `json:"timings,omitempty"`
	Failures       []*errors.StandardError `json:"failures,omitempty"`
	Degraded       bool                    `json:"degraded,omitempty"`
}

// StateDelta is a node's partial result. Nil and zero-length fields leave
// the previous state untouched. Merge rules: list fields concatenate, map
// fields merge-overwrite, scalar fields replace when set.
type StateDelta struct {
	Calibration      *models.Calibration
	RetrievedContext []models.ContextSnippet
	RetrievalFailed  *bool
	Candidates       []models.GeneratedQuestion
	// ReplaceCandidates swaps the candidate list instead of appending.
	// The generator uses it when a retry round re-issues the full set.
	ReplaceCandidates bool
	Validation        *models.ValidationResult
	Enhanced          []models.GeneratedQuestion
	CompletedNodes    []string
	RetryCount        *int
	Deficit           *int
	Timings           map[string]int64
	Failures          []*errors.StandardError
	Degraded          *bool
}

// NewState initializes the state for one run.
func NewState(request models.WorkflowRequest) *PipelineState {
	return &PipelineState{
		Request: request,
		Timings: make(map[string]int64),
	}
}

// Merge folds a delta into prev and returns the merged state. prev is not
// mutated, so concurrently running nodes can hold the same snapshot.
func Merge(prev *PipelineState, delta *StateDelta) *PipelineState {
	next := prev.Clone()
	if delta == nil {
		return next
	}

	if delta.Calibration != nil {
		next.Calibration = delta.Calibration
	}
	next.RetrievedContext = append(next.RetrievedContext, delta.RetrievedContext...)
	if delta.RetrievalFailed != nil {
		next.RetrievalFailed = *delta.RetrievalFailed
	}
	if delta.ReplaceCandidates {
		next.Candidates = append([]models.GeneratedQuestion(nil), delta.Candidates...)
	} else {
		next.Candidates = append(next.Candidates, delta.Candidates...)
	}
	if delta.Validation != nil {
		next.Validation = delta.Validation
	}
	next.Enhanced = append(next.Enhanced, delta.Enhanced...)
	next.CompletedNodes = append(next.CompletedNodes, delta.CompletedNodes...)
	if delta.RetryCount != nil {
		next.RetryCount = *delta.RetryCount
	}
	if delta.Deficit != nil {
		next.Deficit = *delta.Deficit
	}
	for node, ms := range delta.Timings {
		next.Timings[node] = ms
	}
	next.Failures = append(next.Failures, delta.Failures...)
	if delta.Degraded != nil {
		next.Degraded = *delta.Degraded
	}
	return next
}

// Clone returns a deep enough copy for concurrent node execution: all list
// and map containers are copied, element structs are shared read-only.
func (s *PipelineState) Clone() *PipelineState {
	c := &PipelineState{
		Request:         s.Request,
		Calibration:     s.Calibration,
		RetrievalFailed: s.RetrievalFailed,
		Validation:      s.Validation,
		RetryCount:      s.RetryCount,
		Deficit:         s.Deficit,
		Degraded:        s.Degraded,
	}
	c.RetrievedContext = append([]models.ContextSnippet(nil), s.RetrievedContext...)
	c.Candidates = append([]models.GeneratedQuestion(nil), s.Candidates...)
	c.Enhanced = append([]models.GeneratedQuestion(nil), s.Enhanced...)
	c.CompletedNodes = append([]string(nil), s.CompletedNodes...)
	c.Failures = append([]*errors.StandardError(nil), s.Failures...)
	c.Timings = make(map[string]int64, len(s.Timings))
	for node, ms := range s.Timings {
		c.Timings[node] = ms
	}
	return c
}

// LastCompleted returns the most recently completed node, or "" before the
// first node finishes.
func (s *PipelineState) LastCompleted() string {
	if len(s.CompletedNodes) == 0 {
		return ""
	}
	return s.CompletedNodes[len(s.CompletedNodes)-1]
}

// HasCompleted reports whether a node has completed at least once.
func (s *PipelineState) HasCompleted(node string) bool {
	for _, n := range s.CompletedNodes {
		if n == node {
			return true
		}
	}
	return false
}

// AcceptedCount returns how many candidates the validator accepted. Before
// validation runs, every self-consistent candidate counts.
func (s *PipelineState) AcceptedCount() int {
	if s.Validation == nil {
		count := 0
		for i := range s.Candidates {
			if s.Candidates[i].AnswerInOptions() {
				count++
			}
		}
		return count
	}
	return len(s.Validation.AcceptedIDs)
}

// IntPtr and BoolPtr build optional scalar fields for deltas.
func IntPtr(v int) *int    { return &v }
func BoolPtr(v bool) *bool { return &v }
