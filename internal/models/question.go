// internal/models/question.go
package models

// Provenance tags attached to generated questions
const (
	TagVectorContextUsed = "vector-context-used"
	TagNoContext         = "no-context"
	TagPersonalized      = "personalized"
	TagFallbackGenerated = "fallback-generated"
)

// QuestionType classifies the answer surface of a question
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionWordProblem    QuestionType = "word_problem"
	QuestionOpenEnded      QuestionType = "open_ended"
)

// GeneratedQuestion is one produced question candidate
type GeneratedQuestion struct {
	ID              string       `json:"id"`
	QuestionText    string       `json:"questionText"`
	QuestionType    QuestionType `json:"questionType"`
	Options         []string     `json:"options,omitempty"`
	CorrectAnswer   string       `json:"correctAnswer"`
	Explanation     string       `json:"explanation"`
	Tags            []string     `json:"tags,omitempty"`
	Confidence      float64      `json:"confidence"`
	EngagementScore float64      `json:"engagementScore,omitempty"`
	Difficulty      float64      `json:"difficulty,omitempty"`
}

// HasTag reports whether the question carries a provenance tag.
func (q *GeneratedQuestion) HasTag(tag string) bool {
	for _, t := range q.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AnswerInOptions reports whether the designated answer appears among the
// options. Questions without options pass trivially.
func (q *GeneratedQuestion) AnswerInOptions() bool {
	if len(q.Options) == 0 {
		return true
	}
	for _, opt := range q.Options {
		if opt == q.CorrectAnswer {
			return true
		}
	}
	return false
}

// ContextSnippet is one reference snippet returned by vector search
type ContextSnippet struct {
	Text           string  `json:"text"`
	Source         string  `json:"source,omitempty"`
	RelevanceScore float64 `json:"relevanceScore"`
}

// Calibration holds the numeric generation constraints derived from
// grade and difficulty
type Calibration struct {
	Grade           int     `json:"grade"`
	Difficulty      string  `json:"difficulty"`
	MinOperand      int     `json:"minOperand"`
	MaxOperand      int     `json:"maxOperand"`
	MaxSteps        int     `json:"maxSteps"`
	AllowNegatives  bool    `json:"allowNegatives"`
	AllowFractions  bool    `json:"allowFractions"`
	AllowMultiStep  bool    `json:"allowMultiStep"`
	TargetWordCount int     `json:"targetWordCount"`
	DifficultyScore float64 `json:"difficultyScore"`
}
