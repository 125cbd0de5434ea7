// internal/nodes/validate/handler.go
package validate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"eduforge/internal/models"
	"eduforge/internal/pipeline"
)

const (
	NodeName = "validate"
)

// Logger interface definition
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
}

// Handler applies deterministic quality checks to the candidate set. It
// never fails: every candidate gets a verdict and the accepted set may be
// empty. It runs concurrently with the enhancer over the same snapshot, so
// it must not mutate candidates.
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

var arithmeticPattern = regexp.MustCompile(`(\d+)\s*([+\-×x*÷/])\s*(\d+)`)

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	result := models.ValidationResult{}

	arithmeticSound, readabilityFit := true, true
	for i := range input.Candidates {
		q := &input.Candidates[i]
		verdict := models.CandidateVerdict{QuestionID: q.ID, Accepted: true}

		review := h.checkCandidate(q, input.Grade)
		for _, reason := range review.reasons {
			verdict.Accepted = false
			verdict.Reasons = append(verdict.Reasons, reason)
		}
		arithmeticSound = arithmeticSound && review.arithmeticOK
		readabilityFit = readabilityFit && review.readabilityOK

		if verdict.Accepted {
			result.AcceptedIDs = append(result.AcceptedIDs, q.ID)
		}
		result.Verdicts = append(result.Verdicts, verdict)
	}

	if len(input.Candidates) > 0 {
		result.PassRate = float64(len(result.AcceptedIDs)) / float64(len(input.Candidates))
		result.ArithmeticSound = arithmeticSound
		result.ReadabilityFit = readabilityFit
	}
	result.DiversityScore = diversityScore(input.Candidates)

	h.logger.Info("validation completed", map[string]interface{}{
		"candidates": len(input.Candidates),
		"accepted":   len(result.AcceptedIDs),
		"passRate":   result.PassRate,
		"diversity":  result.DiversityScore,
	})
	return &Output{Result: result}, nil
}

// candidateReview is one candidate's rule outcomes: the failure reasons
// plus per-class flags for the correctness and readability rule groups.
type candidateReview struct {
	reasons       []string
	arithmeticOK  bool
	readabilityOK bool
}

// checkCandidate applies all rules to one candidate. reasons is empty when
// it passes.
func (h *Handler) checkCandidate(q *models.GeneratedQuestion, grade int) candidateReview {
	review := candidateReview{arithmeticOK: true, readabilityOK: true}

	// Required fields.
	if strings.TrimSpace(q.QuestionText) == "" {
		review.reasons = append(review.reasons, "empty question text")
	}
	if strings.TrimSpace(q.CorrectAnswer) == "" {
		review.reasons = append(review.reasons, "empty correct answer")
	}
	if strings.TrimSpace(q.Explanation) == "" {
		review.reasons = append(review.reasons, "empty explanation")
	}

	// Answer containment.
	if !q.AnswerInOptions() {
		review.reasons = append(review.reasons, "answer not among options")
		review.arithmeticOK = false
	}

	// Numeric self-consistency: recompute the arithmetic embedded in the
	// question text and compare against the designated answer.
	if computed, ok := recomputeArithmetic(q.QuestionText); ok {
		if answer, err := strconv.Atoi(strings.TrimSpace(q.CorrectAnswer)); err == nil {
			if computed != answer {
				review.reasons = append(review.reasons, fmt.Sprintf("arithmetic mismatch: computed %d, answer says %d", computed, answer))
				review.arithmeticOK = false
			}
		}
	}

	// Readability for the target grade.
	words := len(strings.Fields(q.QuestionText))
	if words > 0 && words < h.config.MinQuestionWords {
		review.reasons = append(review.reasons, fmt.Sprintf("question too short: %d words", words))
		review.readabilityOK = false
	}
	maxWords := grade*h.config.MaxWordsPerGrade + h.config.ReadabilitySlack
	if words > maxWords {
		review.reasons = append(review.reasons, fmt.Sprintf("question too long for grade %d: %d words (max %d)", grade, words, maxWords))
		review.readabilityOK = false
	}

	return review
}

// recomputeArithmetic evaluates the first binary arithmetic expression
// found in the text. ok is false when no expression parses.
func recomputeArithmetic(text string) (int, bool) {
	match := arithmeticPattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	a, errA := strconv.Atoi(match[1])
	b, errB := strconv.Atoi(match[3])
	if errA != nil || errB != nil {
		return 0, false
	}

	switch match[2] {
	case "+":
		return a + b, true
	case "-":
		return a - b, true
	case "×", "x", "*":
		return a * b, true
	case "÷", "/":
		if b == 0 || a%b != 0 {
			return 0, false
		}
		return a / b, true
	}
	return 0, false
}

// diversityScore is 1 minus the fraction of candidates sharing a
// near-duplicate question template. Templates compare structure, not
// operands: digits collapse to a placeholder.
func diversityScore(candidates []models.GeneratedQuestion) float64 {
	if len(candidates) == 0 {
		return 0
	}
	seen := make(map[string]bool, len(candidates))
	duplicates := 0
	for i := range candidates {
		sig := templateSignature(candidates[i].QuestionText)
		if seen[sig] {
			duplicates++
			continue
		}
		seen[sig] = true
	}
	return 1 - float64(duplicates)/float64(len(candidates))
}

var digitRun = regexp.MustCompile(`\d+`)

func templateSignature(text string) string {
	sig := strings.ToLower(strings.TrimSpace(text))
	sig = digitRun.ReplaceAllString(sig, "#")
	return strings.Join(strings.Fields(sig), " ")
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
		Grade:      state.Request.Grade,
	})
	if err != nil {
		return nil, err
	}
	result := output.Result
	return &pipeline.StateDelta{Validation: &result}, nil
}
