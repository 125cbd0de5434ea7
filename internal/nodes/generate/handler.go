// internal/nodes/generate/handler.go
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	stderrors "eduforge/internal/common/errors"
	"eduforge/internal/common/validation"
	"eduforge/internal/models"
	"eduforge/internal/pipeline"
)

const (
	NodeName = "generate"
)

// Logger interface definition
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
}

// Handler calls the text-generation collaborator and parses its raw text
// into structured question candidates. Candidates whose designated answer
// is missing from their options are discarded, never patched. When the
// collaborator is unavailable on the last allowed attempt, the handler
// produces deterministic fallback questions instead of failing.
type Handler struct {
	config *Config
	client *http.Client
	logger Logger
}

func NewHandler(config *Config, log Logger) *Handler {
	return &Handler{
		config: config,
		// No client timeout; the per-call context deadline governs.
		client: &http.Client{},
		logger: log.WithFields(map[string]interface{}{"node": NodeName}),
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	callCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	raw, err := h.complete(callCtx, input)
	if err != nil {
		if input.LastResort {
			h.logger.Warn("collaborator unavailable, using fallback questions", map[string]interface{}{
				"topic": input.Topic,
				"count": input.Count,
				"error": err.Error(),
			})
			return &Output{
				Questions:    FallbackQuestions(input.Calibration, input.Subject, input.Topic, input.Count, 0),
				UsedFallback: true,
			}, nil
		}
		return nil, err
	}

	questions, discarded := h.parseQuestions(raw, input)
	if len(questions) == 0 {
		if input.LastResort {
			return &Output{
				Questions:    FallbackQuestions(input.Calibration, input.Subject, input.Topic, input.Count, 0),
				UsedFallback: true,
				Discarded:    discarded,
			}, nil
		}
		return nil, stderrors.NewResponseMalformedError("no usable question in response")
	}

	h.logger.Info("candidates generated", map[string]interface{}{
		"topic":     input.Topic,
		"requested": input.Count,
		"produced":  len(questions),
		"discarded": len(discarded),
	})
	return &Output{Questions: questions, Discarded: discarded}, nil
}

// complete posts the generation request with bounded in-call retries.
func (h *Handler) complete(ctx context.Context, input *Input) (string, error) {
	prompt := h.buildPrompt(input)
	requestBody := map[string]interface{}{
		"prompt":      prompt,
		"max_tokens":  h.config.MaxTokens,
		"temperature": h.config.Temperature,
		"constraints": map[string]interface{}{
			"count":      input.Count,
			"grade":      input.Calibration.Grade,
			"difficulty": input.Calibration.Difficulty,
			"format":     "json",
		},
	}
	body, _ := json.Marshal(requestBody)

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", stderrors.NewGenerationTimeoutError()
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", h.config.GenAIBaseURL+"/api/ai/generate", bytes.NewBuffer(body))
		if err != nil {
			return "", stderrors.NewGenerationFailedError(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if h.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+h.config.APIKey)
		}

		resp, lastErr = h.client.Do(req)
		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}

		if ctx.Err() != nil {
			return "", stderrors.NewGenerationTimeoutError()
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", stderrors.NewGenerationTimeoutError()
		}
		return "", stderrors.NewGenerationFailedError(lastErr)
	}
	if resp == nil {
		return "", stderrors.NewGenerationFailedError(fmt.Errorf("no successful response after retries"))
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", stderrors.NewResponseMalformedError(fmt.Sprintf("decode error: %v", err))
	}
	if strings.TrimSpace(envelope.Text) == "" {
		return "", stderrors.NewResponseMalformedError("empty completion text")
	}
	return envelope.Text, nil
}

// parseQuestions extracts structured questions from raw completion text.
// The collaborator may wrap the JSON in prose or code fences, return a
// partial array, or mix valid and invalid entries; everything salvageable
// is kept, the rest is discarded with a reason.
func (h *Handler) parseQuestions(raw string, input *Input) ([]models.GeneratedQuestion, []string) {
	payload := extractJSONArray(raw)
	if payload == "" {
		return nil, []string{"no JSON array in completion text"}
	}

	var rawQuestions []rawQuestion
	if err := json.Unmarshal([]byte(payload), &rawQuestions); err != nil {
		return nil, []string{fmt.Sprintf("array unmarshal failed: %v", err)}
	}

	contextTag := models.TagNoContext
	if len(input.Context) > 0 {
		contextTag = models.TagVectorContextUsed
	}

	var questions []models.GeneratedQuestion
	var discarded []string
	for i, rq := range rawQuestions {
		if reason := h.checkCandidate(rq); reason != "" {
			discarded = append(discarded, fmt.Sprintf("candidate %d: %s", i, reason))
			continue
		}
		confidence := rq.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 0.7
		}
		questions = append(questions, models.GeneratedQuestion{
			ID:            uuid.New().String(),
			QuestionText:  strings.TrimSpace(rq.QuestionText),
			QuestionType:  models.QuestionType(rq.QuestionType),
			Options:       rq.Options,
			CorrectAnswer: strings.TrimSpace(rq.CorrectAnswer),
			Explanation:   strings.TrimSpace(rq.Explanation),
			Tags:          []string{contextTag},
			Confidence:    confidence,
			Difficulty:    rq.Difficulty,
		})
		if len(questions) >= input.Count {
			break
		}
	}
	return questions, discarded
}

// checkCandidate returns a discard reason, or "" for a usable candidate.
func (h *Handler) checkCandidate(rq rawQuestion) string {
	doc := map[string]interface{}{
		"questionText":  rq.QuestionText,
		"questionType":  rq.QuestionType,
		"correctAnswer": rq.CorrectAnswer,
		"explanation":   rq.Explanation,
	}
	if rq.Options != nil {
		opts := make([]interface{}, len(rq.Options))
		for i, o := range rq.Options {
			opts[i] = o
		}
		doc["options"] = opts
	}
	if rq.Difficulty > 0 {
		doc["difficulty"] = rq.Difficulty
	}

	result, err := validation.ValidateAgainstSchema(doc, validation.QuestionSchema)
	if err != nil {
		return fmt.Sprintf("schema check error: %v", err)
	}
	if !result.Valid {
		return strings.Join(result.GetErrorMessages(), "; ")
	}

	// Self-consistency: a discrete-answer question must contain its own
	// answer. A candidate failing this is dropped, never patched.
	if len(rq.Options) > 0 {
		found := false
		for _, opt := range rq.Options {
			if strings.TrimSpace(opt) == strings.TrimSpace(rq.CorrectAnswer) {
				found = true
				break
			}
		}
		if !found {
			return "designated answer missing from options"
		}
	}
	return ""
}

// extractJSONArray locates the outermost JSON array in free-form text,
// tolerating markdown code fences around it.
func extractJSONArray(raw string) string {
	cleaned := raw
	if idx := strings.Index(cleaned, "```"); idx >= 0 {
		cleaned = strings.ReplaceAll(cleaned, "```json", "")
		cleaned = strings.ReplaceAll(cleaned, "```", "")
	}
	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end <= start {
		return ""
	}
	return cleaned[start : end+1]
}

func (h *Handler) buildPrompt(input *Input) string {
	var parts []string

	parts = append(parts, fmt.Sprintf(
		"You are a %s teacher writing practice questions for grade %d students.",
		input.Subject, input.Calibration.Grade))
	parts = append(parts, fmt.Sprintf(
		"\nWrite exactly %d %s questions about %q at %s difficulty.",
		input.Count, input.Subject, input.Topic, input.Calibration.Difficulty))

	parts = append(parts, "\nConstraints:")
	parts = append(parts, fmt.Sprintf("- Numeric operands between %d and %d",
		input.Calibration.MinOperand, input.Calibration.MaxOperand))
	parts = append(parts, fmt.Sprintf("- At most %d computation steps per question", input.Calibration.MaxSteps))
	if !input.Calibration.AllowNegatives {
		parts = append(parts, "- No negative numbers anywhere")
	}
	if !input.Calibration.AllowFractions {
		parts = append(parts, "- Whole numbers only, no fractions or decimals")
	}
	parts = append(parts, fmt.Sprintf("- Keep question text near %d words", input.Calibration.TargetWordCount))

	snippetCap := h.config.MaxContextSnippets
	if len(input.Context) > 0 {
		parts = append(parts, "\nReference material (ground your questions in it where possible):")
		for i, snippet := range input.Context {
			if i >= snippetCap {
				break
			}
			parts = append(parts, fmt.Sprintf("- %s", snippet.Text))
		}
	}

	parts = append(parts, "\nOutput format:")
	parts = append(parts, "Return ONLY a JSON array. Each element must have:")
	parts = append(parts, `- "questionText": the question`)
	parts = append(parts, `- "questionType": one of "multiple_choice", "word_problem", "open_ended"`)
	parts = append(parts, `- "options": 4 answer options for multiple_choice, omit otherwise`)
	parts = append(parts, `- "correctAnswer": must appear verbatim in options when options are present`)
	parts = append(parts, `- "explanation": a short solution walkthrough`)

	return strings.Join(parts, "\n")
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
	// A retry round carries the router's deficit, which accounts for
	// candidates the validator rejected. The first round has no deficit yet
	// and requests whatever the candidate set is short of.
	want := state.Deficit
	if want <= 0 {
		want = state.Request.Count - len(state.Candidates)
	}
	if want < 1 {
		want = 1
	}

	var cal models.Calibration
	if state.Calibration != nil {
		cal = *state.Calibration
	}

	output, err := n.handler.execute(ctx, &Input{
		Subject:     state.Request.Subject,
		Topic:       state.Request.Topic,
		Count:       want,
		Calibration: cal,
		Context:     state.RetrievedContext,
		Persona:     state.Request.Persona,
		// The last round inside the retry budget must yield something.
		LastResort: state.RetryCount >= n.handler.config.RouterRetries,
	})
	if err != nil {
		return nil, err
	}
	return &pipeline.StateDelta{Candidates: output.Questions}, nil
}
