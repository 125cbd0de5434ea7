package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"eduforge/internal/models"
)

func TestRouter_LinearPath(t *testing.T) {
	router := NewRouter(2)

	tests := []struct {
		name      string
		completed []string
		expected  RoutingDecision
	}{
		{
			name:      "fresh run starts with calibration",
			completed: nil,
			expected:  Proceed(NodeCalibrate),
		},
		{
			name:      "calibration leads to retrieval",
			completed: []string{NodeCalibrate},
			expected:  Proceed(NodeRetrieve),
		},
		{
			name:      "retrieval leads to generation",
			completed: []string{NodeCalibrate, NodeRetrieve},
			expected:  Proceed(NodeGenerate),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewState(testRequest(3))
			state = Merge(state, &StateDelta{CompletedNodes: tt.completed})
			assert.Equal(t, tt.expected, router.Decide(state))
		})
	}
}

func TestRouter_AfterGenerate(t *testing.T) {
	router := NewRouter(2)

	tests := []struct {
		name       string
		candidates int
		retryCount int
		expected   RoutingDecision
	}{
		{
			name:       "full count proceeds to parallel stage",
			candidates: 3,
			retryCount: 0,
			expected:   ProceedParallel(NodeValidate, NodeEnhance),
		},
		{
			name:       "under count retries generation with the deficit",
			candidates: 1,
			retryCount: 0,
			expected:   Retry(NodeGenerate, 2),
		},
		{
			name:       "under count with exhausted budget proceeds anyway",
			candidates: 1,
			retryCount: 2,
			expected:   ProceedParallel(NodeValidate, NodeEnhance),
		},
		{
			name:       "zero candidates still retries first",
			candidates: 0,
			retryCount: 1,
			expected:   Retry(NodeGenerate, 3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewState(testRequest(3))
			var candidates []models.GeneratedQuestion
			for i := 0; i < tt.candidates; i++ {
				candidates = append(candidates, question(string(rune('a'+i)), "What is 3 + 4?"))
			}
			state = Merge(state, &StateDelta{
				CompletedNodes: []string{NodeCalibrate, NodeRetrieve, NodeGenerate},
				Candidates:     candidates,
				RetryCount:     IntPtr(tt.retryCount),
			})
			assert.Equal(t, tt.expected, router.Decide(state))
		})
	}
}

func TestRouter_SelfInconsistentCandidatesDoNotCount(t *testing.T) {
	router := NewRouter(2)
	state := NewState(testRequest(2))

	bad := question("bad", "What is 2 + 5?")
	bad.CorrectAnswer = "not an option"

	state = Merge(state, &StateDelta{
		CompletedNodes: []string{NodeCalibrate, NodeRetrieve, NodeGenerate},
		Candidates:     []models.GeneratedQuestion{question("ok", "What is 3 + 4?"), bad},
	})

	assert.Equal(t, Retry(NodeGenerate, 1), router.Decide(state))
}

func TestRouter_AfterParallelJoin(t *testing.T) {
	router := NewRouter(2)

	tests := []struct {
		name       string
		accepted   []string
		retryCount int
		expected   RoutingDecision
	}{
		{
			name:       "enough accepted candidates finalize",
			accepted:   []string{"q1", "q2", "q3"},
			retryCount: 0,
			expected:   Proceed(NodeFinalize),
		},
		{
			name:       "shortfall re-enters generation for the deficit",
			accepted:   []string{"q1"},
			retryCount: 1,
			expected:   Retry(NodeGenerate, 2),
		},
		{
			name:       "shortfall with spent budget finalizes",
			accepted:   []string{"q1"},
			retryCount: 2,
			expected:   Proceed(NodeFinalize),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewState(testRequest(3))
			state = Merge(state, &StateDelta{
				CompletedNodes: []string{NodeCalibrate, NodeRetrieve, NodeGenerate, NodeValidate, NodeEnhance},
				Validation:     &models.ValidationResult{AcceptedIDs: tt.accepted},
				RetryCount:     IntPtr(tt.retryCount),
			})
			assert.Equal(t, tt.expected, router.Decide(state))
		})
	}
}

func TestRouter_HalfJoinedForkReissuesParallel(t *testing.T) {
	router := NewRouter(2)
	state := NewState(testRequest(1))
	state = Merge(state, &StateDelta{
		CompletedNodes: []string{NodeCalibrate, NodeRetrieve, NodeGenerate, NodeValidate},
	})
	assert.Equal(t, ProceedParallel(NodeValidate, NodeEnhance), router.Decide(state))
}

func TestRouter_TerminalAfterFinalize(t *testing.T) {
	router := NewRouter(2)
	state := NewState(testRequest(1))
	state = Merge(state, &StateDelta{CompletedNodes: []string{NodeFinalize}})
	assert.Equal(t, Finalize(), router.Decide(state))
}

func TestRouter_ZeroRetryBudgetNeverRetries(t *testing.T) {
	router := NewRouter(0)
	state := NewState(testRequest(3))
	state = Merge(state, &StateDelta{
		CompletedNodes: []string{NodeCalibrate, NodeRetrieve, NodeGenerate},
	})
	assert.Equal(t, ProceedParallel(NodeValidate, NodeEnhance), router.Decide(state))
}
