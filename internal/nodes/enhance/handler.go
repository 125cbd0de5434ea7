// internal/nodes/enhance/handler.go
package enhance

import (
	"context"
	"fmt"
	"strings"

	"eduforge/internal/models"
	"eduforge/internal/pipeline"
)

const (
	NodeName = "enhance"
)

// Logger interface definition
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
}

// Handler weaves persona interests into the surface text of candidates.
// The numbers, the options and the correct answer never change; only the
// framing does. It runs concurrently with the validator over the same
// snapshot, producing its own copies.
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
	enhanced := make([]models.GeneratedQuestion, 0, len(input.Candidates))
	personalized := 0

	for i := range input.Candidates {
		q := input.Candidates[i] // copy, snapshot stays untouched
		score := h.config.BaseEngagement

		if interest := pickInterest(input.Persona, i); interest != "" {
			q.QuestionText = weaveInterest(q.QuestionText, interest)
			q.Tags = append(append([]string(nil), q.Tags...), models.TagPersonalized)
			score += h.config.InterestBoost
			personalized++
		}
		if styleHint := learningStyleHint(input.Persona.LearningStyle); styleHint != "" {
			q.Explanation = q.Explanation + " " + styleHint
			score += h.config.StyleBoost
		}

		if score > 1 {
			score = 1
		}
		q.EngagementScore = score
		enhanced = append(enhanced, q)
	}

	h.logger.Info("enhancement completed", map[string]interface{}{
		"candidates":   len(input.Candidates),
		"personalized": personalized,
	})
	return &Output{Enhanced: enhanced}, nil
}

// pickInterest cycles through the persona's interests so a multi-question
// set does not repeat the same theme.
func pickInterest(persona models.Persona, index int) string {
	if len(persona.Interests) == 0 {
		return strings.TrimSpace(persona.CulturalContext)
	}
	return strings.TrimSpace(persona.Interests[index%len(persona.Interests)])
}

// weaveInterest frames the question with the interest theme. The original
// text, and with it every number and operator, stays intact.
func weaveInterest(text, interest string) string {
	return fmt.Sprintf("While thinking about %s, try this one: %s", interest, text)
}

func learningStyleHint(style string) string {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case "visual":
		return "Try sketching the problem as a picture or number line."
	case "auditory":
		return "Try reading the problem out loud step by step."
	case "kinesthetic":
		return "Try acting the problem out with objects you can move."
	default:
		return ""
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
		Candidates: state.Candidates,
		Persona:    state.Request.Persona,
	})
	if err != nil {
		return nil, err
	}
	return &pipeline.StateDelta{Enhanced: output.Enhanced}, nil
}
