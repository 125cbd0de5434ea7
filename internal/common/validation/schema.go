package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateAgainstSchema validates a document against a JSON schema map.
func ValidateAgainstSchema(document interface{}, schemaMap map[string]interface{}) (*ValidationResult, error) {
	schemaLoader := gojsonschema.NewGoLoader(schemaMap)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}

	vr := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		vr.Errors = append(vr.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	return vr, nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// QuestionSchema is the structural contract every generated question must
// satisfy before it enters the candidate list.
var QuestionSchema = map[string]interface{}{
	"type": "object",
	"required": []interface{}{
		"questionText", "questionType", "correctAnswer", "explanation",
	},
	"properties": map[string]interface{}{
		"questionText": map[string]interface{}{
			"type":      "string",
			"minLength": 10,
		},
		"questionType": map[string]interface{}{
			"type": "string",
			"enum": []interface{}{"multiple_choice", "word_problem", "open_ended"},
		},
		"options": map[string]interface{}{
			"type":     "array",
			"items":    map[string]interface{}{"type": "string"},
			"minItems": 2,
		},
		"correctAnswer": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
		"explanation": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
		"difficulty": map[string]interface{}{
			"type":    "number",
			"minimum": 0,
			"maximum": 1,
		},
	},
}
