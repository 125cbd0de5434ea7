// internal/nodes/retrieve/models.go
package retrieve

import (
	stderrors "eduforge/internal/common/errors"
	"eduforge/internal/models"
)

type Input struct {
	Subject string `json:"subject"`
	Topic   string `json:"topic"`
	Grade   int    `json:"grade"`
}

type Output struct {
	Snippets  []models.ContextSnippet `json:"snippets"`
	FromCache bool                    `json:"fromCache"`
	// SoftFailed marks that the collaborator failed and the empty snippet
	// list stands in for a result, not an error. Failure carries the
	// absorbed error for the run record.
	SoftFailed bool                     `json:"softFailed"`
	Failure    *stderrors.StandardError `json:"failure,omitempty"`
}

// searchResponse mirrors the slice of the search response we read.
type searchResponse struct {
	Hits struct {
		MaxScore float64 `json:"max_score"`
		Hits     []struct {
			Score  float64 `json:"_score"`
			Source struct {
				Text    string `json:"text"`
				Source  string `json:"source"`
				Subject string `json:"subject"`
				Topic   string `json:"topic"`
				Grade   int    `json:"grade"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}
