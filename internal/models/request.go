// internal/models/request.go
package models

import (
	"fmt"
	"strings"
)

// Difficulty represents the requested difficulty tier
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// WorkflowRequest is the immutable input for one pipeline run
type WorkflowRequest struct {
	RequestID  string     `json:"requestId"`
	Subject    string     `json:"subject"`
	Topic      string     `json:"topic"`
	Grade      int        `json:"grade"`
	Difficulty Difficulty `json:"difficulty"`
	Count      int        `json:"count"`
	Persona    Persona    `json:"persona"`
}

// Persona carries the caller's personalization signal. Only the enhancer
// reads it.
type Persona struct {
	LearningStyle   string   `json:"learningStyle,omitempty"`
	Interests       []string `json:"interests,omitempty"`
	CulturalContext string   `json:"culturalContext,omitempty"`
	Language        string   `json:"language,omitempty"`
}

// Validate checks the request before a run starts. This is the only place
// a caller-visible error can originate.
func (r *WorkflowRequest) Validate() error {
	var problems []string
	if strings.TrimSpace(r.Subject) == "" {
		problems = append(problems, "subject is required")
	}
	if strings.TrimSpace(r.Topic) == "" {
		problems = append(problems, "topic is required")
	}
	if r.Grade < 1 || r.Grade > 12 {
		problems = append(problems, fmt.Sprintf("grade must be between 1 and 12, got %d", r.Grade))
	}
	if r.Count < 1 || r.Count > 20 {
		problems = append(problems, fmt.Sprintf("count must be between 1 and 20, got %d", r.Count))
	}
	switch r.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, "":
	default:
		problems = append(problems, fmt.Sprintf("unknown difficulty %q", r.Difficulty))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// NormalizedDifficulty returns the difficulty tier with the empty value
// clamped to medium.
func (r *WorkflowRequest) NormalizedDifficulty() Difficulty {
	switch r.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return r.Difficulty
	default:
		return DifficultyMedium
	}
}
