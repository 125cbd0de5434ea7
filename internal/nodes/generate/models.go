// internal/nodes/generate/models.go
package generate

import "eduforge/internal/models"

type Input struct {
	Subject     string                  `json:"subject"`
	Topic       string                  `json:"topic"`
	Count       int                     `json:"count"`
	Calibration models.Calibration      `json:"calibration"`
	Context     []models.ContextSnippet `json:"context,omitempty"`
	Persona     models.Persona          `json:"persona"`
	// LastResort forces the offline fallback when the collaborator fails,
	// instead of returning a retryable error.
	LastResort bool `json:"lastResort"`
}

type Output struct {
	Questions    []models.GeneratedQuestion `json:"questions"`
	UsedFallback bool                       `json:"usedFallback"`
	Discarded    []string                   `json:"discarded,omitempty"`
}

// rawQuestion is the shape we expect inside the collaborator's raw text.
type rawQuestion struct {
	QuestionText  string   `json:"questionText"`
	QuestionType  string   `json:"questionType"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
	Difficulty    float64  `json:"difficulty"`
	Confidence    float64  `json:"confidence"`
}

// apiResponse is the collaborator's completion envelope.
type apiResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}
