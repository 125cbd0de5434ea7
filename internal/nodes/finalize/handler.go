// internal/nodes/finalize/handler.go
package finalize

import (
	"fmt"

	"eduforge/internal/models"
	"eduforge/internal/nodes/generate"
	"eduforge/internal/pipeline"
)

const (
	NodeName = "finalize"
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
}

// Handler assembles the caller-facing result from whatever state exists.
// It accepts any state, including one with zero candidates, and always
// returns exactly the requested number of questions: under-production is
// padded with offline fallback questions and over-production is truncated.
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

// Finalize implements pipeline.Finalizer.
func (h *Handler) Finalize(state *pipeline.PipelineState) *models.FinalResult {
	questions := h.mergeAccepted(state)

	padded := 0
	want := state.Request.Count
	if len(questions) < want {
		padded = want - len(questions)
		var cal models.Calibration
		if state.Calibration != nil {
			cal = *state.Calibration
		}
		// Seed past the produced set so padding never mirrors an earlier
		// fallback round.
		questions = append(questions, generate.FallbackQuestions(
			cal, state.Request.Subject, state.Request.Topic, padded, len(questions)+state.RetryCount*want)...)
	}
	if len(questions) > want {
		questions = questions[:want]
	}

	report := h.buildReport(state, questions, padded)

	timings := make(map[string]int64, len(state.Timings))
	for node, ms := range state.Timings {
		timings[node] = ms
	}

	if padded > 0 {
		h.logger.Warn("result padded with fallback questions", map[string]interface{}{
			"requestId": state.Request.RequestID,
			"padded":    padded,
			"want":      want,
		})
	}

	return &models.FinalResult{
		RequestID:  state.Request.RequestID,
		Questions:  questions,
		Report:     report,
		TimingsMS:  timings,
		RetryCount: state.RetryCount,
		Degraded:   state.Degraded,
	}
}

// mergeAccepted combines the validator's accepted set with the enhancer's
// rewrites. A candidate makes it through only when the validator accepted
// it; the enhanced version wins when one exists. Without a validation pass
// (a timed-out run), every self-consistent candidate counts as accepted.
func (h *Handler) mergeAccepted(state *pipeline.PipelineState) []models.GeneratedQuestion {
	enhancedByID := make(map[string]models.GeneratedQuestion, len(state.Enhanced))
	for i := range state.Enhanced {
		enhancedByID[state.Enhanced[i].ID] = state.Enhanced[i]
	}

	var accepted map[string]bool
	if state.Validation != nil {
		accepted = state.Validation.AcceptedSet()
	}

	var merged []models.GeneratedQuestion
	for i := range state.Candidates {
		q := state.Candidates[i]
		if accepted != nil {
			if !accepted[q.ID] {
				continue
			}
		} else if !q.AnswerInOptions() {
			continue
		}
		if enhanced, ok := enhancedByID[q.ID]; ok {
			q = enhanced
		}
		merged = append(merged, q)
	}
	return merged
}

// buildReport blends the three quality signals into the confidence score:
// the validation factor (pass rate with a diversity share folded in), mean
// retrieval relevance, and personalization strength. The weights come from
// configuration. Every reported check maps to its own rule class, so any
// check flipping to fail moves the confidence score down with it.
func (h *Handler) buildReport(state *pipeline.PipelineState, questions []models.GeneratedQuestion, padded int) models.QualityReport {
	passRate := 0.0
	diversity := 0.0
	if state.Validation != nil {
		passRate = state.Validation.PassRate
		diversity = state.Validation.DiversityScore
	}

	relevance := 0.0
	if len(state.RetrievedContext) > 0 {
		sum := 0.0
		for i := range state.RetrievedContext {
			sum += state.RetrievedContext[i].RelevanceScore
		}
		relevance = sum / float64(len(state.RetrievedContext))
	}

	personalization := 0.0
	if len(state.Enhanced) > 0 {
		sum := 0.0
		for i := range state.Enhanced {
			sum += state.Enhanced[i].EngagementScore
		}
		personalization = sum / float64(len(state.Enhanced))
	}

	validationFactor := (1-h.config.DiversityShare)*passRate + h.config.DiversityShare*diversity
	confidence := h.config.ValidationWeight*validationFactor +
		h.config.RetrievalWeight*relevance +
		h.config.PersonalizationWeight*personalization
	confidence = clamp01(confidence)

	checks := map[string]bool{
		"mathematical_correctness": state.Validation != nil && state.Validation.ArithmeticSound,
		"age_appropriateness":      state.Validation != nil && state.Validation.ReadabilityFit,
		"pedagogical_soundness":    state.Validation != nil && diversity > 0.5,
		"context_grounded":         len(state.RetrievedContext) > 0,
		"personalized":             len(state.Enhanced) > 0 && personalization > 0,
		"full_count_produced":      padded == 0,
	}

	var issues []string
	if state.Validation != nil {
		for _, verdict := range state.Validation.Verdicts {
			for _, reason := range verdict.Reasons {
				issues = append(issues, fmt.Sprintf("candidate %s: %s", verdict.QuestionID, reason))
			}
		}
	}
	if state.RetrievalFailed {
		issues = append(issues, "context retrieval failed, questions generated without reference material")
	}
	if padded > 0 {
		issues = append(issues, fmt.Sprintf("%d of %d questions padded from the fallback template", padded, state.Request.Count))
	}
	for _, failure := range state.Failures {
		issues = append(issues, fmt.Sprintf("%s: %s", failure.Code, failure.Message))
	}

	return models.QualityReport{
		Checks:          checks,
		DiversityScore:  diversity,
		Issues:          issues,
		ConfidenceScore: confidence,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
