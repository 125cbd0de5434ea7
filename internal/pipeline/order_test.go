// internal/pipeline/order_test.go
package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduforge/internal/common/logger"
	"eduforge/internal/models"
	"eduforge/internal/nodes/enhance"
	"eduforge/internal/nodes/finalize"
	"eduforge/internal/nodes/validate"
	"eduforge/internal/pipeline"
)

// ==========================
// Test Helper Functions
// ==========================

type validateLogger struct {
	logger.Logger
}

func (l validateLogger) WithFields(fields map[string]interface{}) validate.Logger {
	return validateLogger{l.Logger.WithFields(fields)}
}

type enhanceLogger struct {
	logger.Logger
}

func (l enhanceLogger) WithFields(fields map[string]interface{}) enhance.Logger {
	return enhanceLogger{l.Logger.WithFields(fields)}
}

type finalizeLogger struct {
	logger.Logger
}

func (l finalizeLogger) WithFields(fields map[string]interface{}) finalize.Logger {
	return finalizeLogger{l.Logger.WithFields(fields)}
}

func parallelFixture(id, text, answer string) models.GeneratedQuestion {
	return models.GeneratedQuestion{
		ID:            id,
		QuestionText:  text,
		QuestionType:  models.QuestionMultipleChoice,
		Options:       []string{answer, "91", "92", "93"},
		CorrectAnswer: answer,
		Explanation:   "Work through the operation step by step.",
	}
}

// ==========================
// Fork/Join Order Tests
// ==========================

// The validator and the enhancer run concurrently over the same snapshot,
// and the engine merges their deltas in node-name order. Neither node may
// depend on seeing the other's output, so merging in either order must
// land on the same state and the same final result.
func TestParallelMergeIsOrderIndependent(t *testing.T) {
	state := pipeline.Merge(pipeline.NewState(models.WorkflowRequest{
		RequestID:  "order-check",
		Subject:    "math",
		Topic:      "addition",
		Grade:      3,
		Difficulty: models.DifficultyMedium,
		Count:      2,
		Persona: models.Persona{
			LearningStyle: "visual",
			Interests:     []string{"dinosaurs", "space"},
		},
	}), &pipeline.StateDelta{
		Candidates: []models.GeneratedQuestion{
			parallelFixture("a", "What is 3 + 7?", "10"),
			parallelFixture("bad", "What is 5 + 9?", "15"),
			parallelFixture("b", "If you count up from 6 by 8, what is 6 + 8?", "14"),
		},
	})

	vNode := validate.NewNode(validate.NewHandler(validate.LoadConfig(), validateLogger{logger.NewTestLogger(t)}))
	eNode := enhance.NewNode(enhance.NewHandler(enhance.LoadConfig(), enhanceLogger{logger.NewTestLogger(t)}))
	ctx := context.Background()

	vDelta, err := vNode.Run(ctx, state.Clone())
	require.NoError(t, err)
	eDelta, err := eNode.Run(ctx, state.Clone())
	require.NoError(t, err)

	validateFirst := pipeline.Merge(pipeline.Merge(state, vDelta), eDelta)
	enhanceFirst := pipeline.Merge(pipeline.Merge(state, eDelta), vDelta)

	assert.Equal(t, validateFirst.Validation, enhanceFirst.Validation)
	assert.Equal(t, validateFirst.Enhanced, enhanceFirst.Enhanced)
	assert.Equal(t, validateFirst.Candidates, enhanceFirst.Candidates)

	require.NotNil(t, validateFirst.Validation)
	assert.Equal(t, []string{"a", "b"}, validateFirst.Validation.AcceptedIDs)

	fin := finalize.NewHandler(finalize.LoadConfig(), finalizeLogger{logger.NewTestLogger(t)})
	assert.Equal(t, fin.Finalize(validateFirst), fin.Finalize(enhanceFirst),
		"the final result does not depend on which branch merged first")
}
