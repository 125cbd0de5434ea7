// internal/nodes/generate/fallback.go
package generate

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"eduforge/internal/models"
)

// FallbackQuestions produces deterministic offline questions parameterized
// by the calibration. They keep the pipeline live when the collaborator is
// unavailable or under-delivers: the content is plain but always correct.
// seed offsets the operand sequence so padding never duplicates an earlier
// fallback round.
func FallbackQuestions(cal models.Calibration, subject, topic string, count, seed int) []models.GeneratedQuestion {
	if count <= 0 {
		return nil
	}
	if cal.MaxOperand < 2 {
		cal.MaxOperand = 10
	}
	if cal.MinOperand < 1 {
		cal.MinOperand = 1
	}

	op := operationForTopic(topic)
	questions := make([]models.GeneratedQuestion, 0, count)
	for i := 0; i < count; i++ {
		a, b := operands(cal, seed+i)
		q := buildArithmeticQuestion(op, a, b)
		q.ID = uuid.New().String()
		q.Tags = []string{models.TagFallbackGenerated}
		q.Confidence = 0.5
		q.Difficulty = cal.DifficultyScore
		questions = append(questions, q)
	}
	return questions
}

type operation struct {
	symbol string
	verb   string
	apply  func(a, b int) int
}

func operationForTopic(topic string) operation {
	lower := strings.ToLower(topic)
	switch {
	case strings.Contains(lower, "subtract") || strings.Contains(lower, "minus") || strings.Contains(lower, "difference"):
		return operation{symbol: "-", verb: "subtracting", apply: func(a, b int) int { return a - b }}
	case strings.Contains(lower, "multipl") || strings.Contains(lower, "times") || strings.Contains(lower, "product"):
		return operation{symbol: "×", verb: "multiplying", apply: func(a, b int) int { return a * b }}
	case strings.Contains(lower, "divi") || strings.Contains(lower, "quotient"):
		return operation{symbol: "÷", verb: "dividing", apply: func(a, b int) int { return a / b }}
	default:
		return operation{symbol: "+", verb: "adding", apply: func(a, b int) int { return a + b }}
	}
}

// operands derives a deterministic operand pair from the calibration range
// and a sequence index. Larger index never repeats the same pair within the
// range span.
func operands(cal models.Calibration, index int) (int, int) {
	span := cal.MaxOperand - cal.MinOperand + 1
	if span < 1 {
		span = 1
	}
	a := cal.MinOperand + (index*7+3)%span
	b := cal.MinOperand + (index*5+1)%span
	if b > a {
		a, b = b, a
	}
	if b < 1 {
		b = 1
	}
	return a, b
}

func buildArithmeticQuestion(op operation, a, b int) models.GeneratedQuestion {
	if op.symbol == "÷" {
		// Keep division exact: ask for a×b ÷ b.
		a = a * b
	}
	answer := op.apply(a, b)

	options := []string{
		fmt.Sprintf("%d", answer),
		fmt.Sprintf("%d", answer+1),
		fmt.Sprintf("%d", answer-1),
		fmt.Sprintf("%d", answer+2),
	}
	// Deterministic option order keyed on the operands.
	rotate := (a + b) % len(options)
	options = append(options[rotate:], options[:rotate]...)

	return models.GeneratedQuestion{
		QuestionText:  fmt.Sprintf("What is %d %s %d?", a, op.symbol, b),
		QuestionType:  models.QuestionMultipleChoice,
		Options:       options,
		CorrectAnswer: fmt.Sprintf("%d", answer),
		Explanation:   fmt.Sprintf("By %s %d and %d we get %d.", op.verb, a, b, answer),
	}
}
