// internal/nodes/validate/handler_test.go
package validate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduforge/internal/common/logger"
	"eduforge/internal/models"
	"eduforge/internal/pipeline"
)

// ==========================
// Test Helper Functions
// ==========================

type testLogger struct {
	logger.Logger
}

func (l testLogger) WithFields(fields map[string]interface{}) Logger {
	return testLogger{l.Logger.WithFields(fields)}
}

func createTestHandler(t *testing.T) *Handler {
	return NewHandler(LoadConfig(), testLogger{logger.NewTestLogger(t)})
}

func candidate(id, text, answer string) models.GeneratedQuestion {
	return models.GeneratedQuestion{
		ID:            id,
		QuestionText:  text,
		QuestionType:  models.QuestionMultipleChoice,
		Options:       []string{answer, "91", "92", "93"},
		CorrectAnswer: answer,
		Explanation:   "Work through the operation step by step.",
	}
}

func verdictFor(t *testing.T, result models.ValidationResult, id string) models.CandidateVerdict {
	t.Helper()
	for _, v := range result.Verdicts {
		if v.QuestionID == id {
			return v
		}
	}
	t.Fatalf("no verdict for %s", id)
	return models.CandidateVerdict{}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_AllPass(t *testing.T) {
	handler := createTestHandler(t)

	output, err := handler.Execute(context.Background(), &Input{
		Grade: 3,
		Candidates: []models.GeneratedQuestion{
			candidate("a", "What is 3 + 7?", "10"),
			candidate("b", "What is 12 - 4?", "8"),
			candidate("c", "If you share 12 apples among 4 friends, what is 12 / 4?", "3"),
		},
	})

	require.NoError(t, err)
	result := output.Result
	assert.Equal(t, []string{"a", "b", "c"}, result.AcceptedIDs)
	assert.Equal(t, 1.0, result.PassRate)
	assert.True(t, result.ArithmeticSound)
	assert.True(t, result.ReadabilityFit)
	for _, v := range result.Verdicts {
		assert.True(t, v.Accepted)
		assert.Empty(t, v.Reasons)
	}
}

func TestHandler_Execute_FailureReasons(t *testing.T) {
	tests := []struct {
		name       string
		candidate  models.GeneratedQuestion
		wantReason string
	}{
		{
			name: "arithmetic mismatch",
			candidate: candidate("q", "What is 3 + 7?", "11"),
			wantReason: "arithmetic mismatch: computed 10, answer says 11",
		},
		{
			name: "multiplication mismatch",
			candidate: candidate("q", "What is 6 × 7?", "41"),
			wantReason: "arithmetic mismatch: computed 42, answer says 41",
		},
		{
			name: "answer missing from options",
			candidate: models.GeneratedQuestion{
				ID: "q", QuestionText: "What is 3 + 7?", QuestionType: models.QuestionMultipleChoice,
				Options: []string{"11", "12", "13", "14"}, CorrectAnswer: "10",
				Explanation: "Add them.",
			},
			wantReason: "answer not among options",
		},
		{
			name: "empty question text",
			candidate: models.GeneratedQuestion{
				ID: "q", QuestionType: models.QuestionMultipleChoice,
				Options: []string{"10", "11"}, CorrectAnswer: "10", Explanation: "Add them.",
			},
			wantReason: "empty question text",
		},
		{
			name: "empty explanation",
			candidate: models.GeneratedQuestion{
				ID: "q", QuestionText: "What is 3 + 7?", QuestionType: models.QuestionMultipleChoice,
				Options: []string{"10", "11"}, CorrectAnswer: "10",
			},
			wantReason: "empty explanation",
		},
		{
			name: "too short",
			candidate: candidate("q", "Sum?", "10"),
			wantReason: "question too short",
		},
		{
			name: "too long for grade",
			candidate: candidate("q", "What is 3 + 7? "+strings.Repeat("really ", 60), "10"),
			wantReason: "question too long for grade 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := createTestHandler(t)
			output, err := handler.Execute(context.Background(), &Input{
				Grade:      3,
				Candidates: []models.GeneratedQuestion{tt.candidate},
			})

			require.NoError(t, err, "validation never fails the node")
			result := output.Result
			assert.Empty(t, result.AcceptedIDs)
			assert.Equal(t, 0.0, result.PassRate)

			verdict := verdictFor(t, result, "q")
			assert.False(t, verdict.Accepted)
			found := false
			for _, reason := range verdict.Reasons {
				if strings.Contains(reason, tt.wantReason) {
					found = true
				}
			}
			assert.True(t, found, "want reason %q in %v", tt.wantReason, verdict.Reasons)
		})
	}
}

func TestHandler_Execute_MixedVerdicts(t *testing.T) {
	handler := createTestHandler(t)

	output, err := handler.Execute(context.Background(), &Input{
		Grade: 4,
		Candidates: []models.GeneratedQuestion{
			candidate("good-1", "What is 5 + 9?", "14"),
			candidate("bad", "What is 5 + 9?", "15"),
			candidate("good-2", "What is 20 - 6?", "14"),
		},
	})

	require.NoError(t, err)
	result := output.Result
	assert.Equal(t, []string{"good-1", "good-2"}, result.AcceptedIDs)
	assert.InDelta(t, 2.0/3.0, result.PassRate, 1e-9)
	assert.True(t, result.AcceptedSet()["good-1"])
	assert.False(t, result.AcceptedSet()["bad"])
}

func TestHandler_Execute_RuleClassRollups(t *testing.T) {
	handler := createTestHandler(t)

	// An arithmetic breach flips the arithmetic rollup but not readability.
	output, err := handler.Execute(context.Background(), &Input{
		Grade: 3,
		Candidates: []models.GeneratedQuestion{
			candidate("a", "What is 3 + 7?", "10"),
			candidate("bad", "What is 5 + 9?", "15"),
		},
	})
	require.NoError(t, err)
	assert.False(t, output.Result.ArithmeticSound)
	assert.True(t, output.Result.ReadabilityFit)

	// A word-count breach flips readability but not arithmetic.
	output, err = handler.Execute(context.Background(), &Input{
		Grade: 3,
		Candidates: []models.GeneratedQuestion{
			candidate("a", "What is 3 + 7?", "10"),
			candidate("terse", "Name ten?", "10"),
		},
	})
	require.NoError(t, err)
	assert.True(t, output.Result.ArithmeticSound)
	assert.False(t, output.Result.ReadabilityFit)

	// A structural gap lowers the pass rate without blaming either class.
	output, err = handler.Execute(context.Background(), &Input{
		Grade: 3,
		Candidates: []models.GeneratedQuestion{
			candidate("a", "What is 3 + 7?", "10"),
			{ID: "hollow", QuestionText: "What is 4 + 4?", QuestionType: models.QuestionMultipleChoice,
				Options: []string{"8", "9"}, CorrectAnswer: "8"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.5, output.Result.PassRate)
	assert.True(t, output.Result.ArithmeticSound)
	assert.True(t, output.Result.ReadabilityFit)
}

func TestHandler_Execute_NonArithmeticTextIsNotRecomputed(t *testing.T) {
	handler := createTestHandler(t)

	q := models.GeneratedQuestion{
		ID:            "w",
		QuestionText:  "A word problem about sharing apples fairly between friends.",
		QuestionType:  models.QuestionWordProblem,
		CorrectAnswer: "four apples each",
		Explanation:   "Divide the apples evenly.",
	}
	output, err := handler.Execute(context.Background(), &Input{Grade: 5, Candidates: []models.GeneratedQuestion{q}})

	require.NoError(t, err)
	verdict := verdictFor(t, output.Result, "w")
	assert.True(t, verdict.Accepted, "reasons: %v", verdict.Reasons)
}

// ==========================
// Diversity Tests
// ==========================

func TestDiversityScore(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  float64
	}{
		{
			name:  "all distinct templates",
			texts: []string{"What is 3 + 7?", "Sam has 3 apples and buys 7 more, how many now?", "Which number is 10 more than 3?"},
			want:  1.0,
		},
		{
			name:  "operand changes are not diversity",
			texts: []string{"What is 3 + 7?", "What is 4 + 9?", "What is 12 + 5?"},
			want:  1.0 / 3.0,
		},
		{
			name:  "half duplicated",
			texts: []string{"What is 3 + 7?", "What is 9 + 2?", "Count up from 5 by 3.", "Count up from 7 by 2."},
			want:  0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates := make([]models.GeneratedQuestion, 0, len(tt.texts))
			for i, text := range tt.texts {
				candidates = append(candidates, candidate(string(rune('a'+i)), text, "10"))
			}
			assert.InDelta(t, tt.want, diversityScore(candidates), 1e-9)
		})
	}
}

// ==========================
// Edge Cases
// ==========================

func TestHandler_Execute_EmptyCandidateSet(t *testing.T) {
	handler := createTestHandler(t)

	output, err := handler.Execute(context.Background(), &Input{Grade: 3})

	require.NoError(t, err)
	assert.Empty(t, output.Result.Verdicts)
	assert.Empty(t, output.Result.AcceptedIDs)
	assert.Equal(t, 0.0, output.Result.PassRate)
	assert.Equal(t, 0.0, output.Result.DiversityScore)
}

func TestRecomputeArithmetic(t *testing.T) {
	tests := []struct {
		text string
		want int
		ok   bool
	}{
		{text: "What is 3 + 7?", want: 10, ok: true},
		{text: "What is 12 - 4?", want: 8, ok: true},
		{text: "What is 6 × 7?", want: 42, ok: true},
		{text: "What is 6 x 7?", want: 42, ok: true},
		{text: "What is 12 ÷ 4?", want: 3, ok: true},
		{text: "What is 12 / 5?", ok: false},
		{text: "What is 12 / 0?", ok: false},
		{text: "No numbers here at all.", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := recomputeArithmetic(tt.text)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// ==========================
// Node Adapter Tests
// ==========================

func TestNode_Run(t *testing.T) {
	node := NewNode(createTestHandler(t))
	assert.Equal(t, NodeName, node.Name())

	state := pipeline.NewState(models.WorkflowRequest{
		RequestID: "req-1", Subject: "math", Topic: "Addition", Grade: 3, Count: 2,
	})
	state = pipeline.Merge(state, &pipeline.StateDelta{
		Candidates: []models.GeneratedQuestion{
			candidate("a", "What is 3 + 7?", "10"),
			candidate("b", "What is 3 + 7?", "12"),
		},
	})

	delta, err := node.Run(context.Background(), state)

	require.NoError(t, err)
	require.NotNil(t, delta.Validation)
	assert.Equal(t, []string{"a"}, delta.Validation.AcceptedIDs)
	assert.Len(t, state.Candidates, 2, "snapshot is untouched")
}
