// internal/models/report.go
package models

// CandidateVerdict is the validator's per-candidate outcome
type CandidateVerdict struct {
	QuestionID string   `json:"questionId"`
	Accepted   bool     `json:"accepted"`
	Reasons    []string `json:"reasons,omitempty"`
}

// ValidationResult covers one validator pass over the candidate set.
// ArithmeticSound and ReadabilityFit roll the per-candidate rule outcomes
// up by rule class, so downstream reporting can tell a wrong answer from a
// question that is merely too long for the grade.
type ValidationResult struct {
	Verdicts        []CandidateVerdict `json:"verdicts"`
	AcceptedIDs     []string           `json:"acceptedIds"`
	PassRate        float64            `json:"passRate"`
	DiversityScore  float64            `json:"diversityScore"`
	ArithmeticSound bool               `json:"arithmeticSound"`
	ReadabilityFit  bool               `json:"readabilityFit"`
}

// AcceptedSet returns the accepted question IDs as a lookup set.
func (v *ValidationResult) AcceptedSet() map[string]bool {
	set := make(map[string]bool, len(v.AcceptedIDs))
	for _, id := range v.AcceptedIDs {
		set[id] = true
	}
	return set
}

// QualityReport aggregates quality signals over one run
type QualityReport struct {
	Checks          map[string]bool `json:"checks"`
	DiversityScore  float64         `json:"diversityScore"`
	Issues          []string        `json:"issues,omitempty"`
	ConfidenceScore float64         `json:"confidenceScore"`
}

// FinalResult is the caller-facing output of runWorkflow. It always holds
// exactly the requested number of questions.
type FinalResult struct {
	RequestID  string              `json:"requestId"`
	Questions  []GeneratedQuestion `json:"questions"`
	Report     QualityReport       `json:"report"`
	TimingsMS  map[string]int64    `json:"timingsMs"`
	RetryCount int                 `json:"retryCount"`
	Degraded   bool                `json:"degraded"`
	TotalMS    int64               `json:"totalMs"`
}
