// internal/nodes/validate/models.go
package validate

import "eduforge/internal/models"

type Input struct {
	Candidates []models.GeneratedQuestion `json:"candidates"`
	Grade      int                        `json:"grade"`
}

type Output struct {
	Result models.ValidationResult `json:"result"`
}
