// internal/nodes/enhance/models.go
package enhance

import "eduforge/internal/models"

type Input struct {
	Candidates []models.GeneratedQuestion `json:"candidates"`
	Persona    models.Persona             `json:"persona"`
}

type Output struct {
	Enhanced []models.GeneratedQuestion `json:"enhanced"`
}
