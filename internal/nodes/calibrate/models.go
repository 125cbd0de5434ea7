// internal/nodes/calibrate/models.go
package calibrate

import "eduforge/internal/models"

type Input struct {
	Grade      int               `json:"grade"`
	Difficulty models.Difficulty `json:"difficulty"`
}

type Output struct {
	Calibration models.Calibration `json:"calibration"`
}
