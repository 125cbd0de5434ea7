// internal/nodes/validate/config.go
package validate

type Config struct {
	// MinQuestionWords rejects degenerate one-liner questions.
	MinQuestionWords int
	// MaxWordsPerGrade bounds readability: question word count must stay
	// under grade * MaxWordsPerGrade + ReadabilitySlack.
	MaxWordsPerGrade int
	ReadabilitySlack int
}

func LoadConfig() *Config {
	return &Config{
		MinQuestionWords: 3,
		MaxWordsPerGrade: 8,
		ReadabilitySlack: 20,
	}
}
