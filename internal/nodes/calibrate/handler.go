// internal/nodes/calibrate/handler.go
package calibrate

import (
	"context"

	"eduforge/internal/models"
	"eduforge/internal/pipeline"
)

const (
	NodeName = "calibrate"
)

// Logger interface definition
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
}

// Handler maps grade and difficulty tier to numeric generation constraints.
// It is pure: no collaborators, no failure modes. Out-of-range inputs clamp
// to the nearest valid tier.
type Handler struct {
	config *Config
	logger Logger
}

func NewHandler(config *Config, log Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"node": NodeName}),
	}
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	grade := clampGrade(input.Grade)
	tier := clampDifficulty(input.Difficulty)

	ceiling := h.config.BaseOperandCeiling * grade
	cal := models.Calibration{
		Grade:      grade,
		Difficulty: string(tier),
		MinOperand: 1,
	}

	switch tier {
	case models.DifficultyEasy:
		cal.MaxOperand = ceiling / 2
		cal.MaxSteps = 1
		cal.TargetWordCount = 12 + 2*grade
		cal.DifficultyScore = 0.25
	case models.DifficultyMedium:
		cal.MaxOperand = ceiling
		cal.MaxSteps = 2
		cal.AllowMultiStep = grade >= 3
		cal.TargetWordCount = 18 + 3*grade
		cal.DifficultyScore = 0.5
	case models.DifficultyHard:
		cal.MaxOperand = ceiling * 2
		cal.MaxSteps = 3
		cal.AllowMultiStep = grade >= 2
		cal.AllowNegatives = grade >= 6
		cal.AllowFractions = grade >= 4
		cal.TargetWordCount = 24 + 4*grade
		cal.DifficultyScore = 0.8
	}
	if cal.MaxOperand < 2 {
		cal.MaxOperand = 2
	}

	h.logger.Debug("calibration computed", map[string]interface{}{
		"grade":      grade,
		"difficulty": string(tier),
		"maxOperand": cal.MaxOperand,
		"maxSteps":   cal.MaxSteps,
	})

	return &Output{Calibration: cal}, nil
}

func clampGrade(grade int) int {
	if grade < 1 {
		return 1
	}
	if grade > 12 {
		return 12
	}
	return grade
}

func clampDifficulty(d models.Difficulty) models.Difficulty {
	switch d {
	case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
		return d
	default:
		return models.DifficultyMedium
	}
}

// Execute method for direct usage
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// Node adapts the handler to the pipeline engine.
type Node struct {
	handler *Handler
}

func NewNode(handler *Handler) *Node {
	return &Node{handler: handler}
}

func (n *Node) Name() string { return NodeName }

func (n *Node) Run(ctx context.Context, state *pipeline.PipelineState) (*pipeline.StateDelta, error) {
	output, err := n.handler.execute(ctx, &Input{
		Grade:      state.Request.Grade,
		Difficulty: state.Request.NormalizedDifficulty(),
	})
	if err != nil {
		return nil, err
	}
	cal := output.Calibration
	return &pipeline.StateDelta{Calibration: &cal}, nil
}
