// internal/nodes/generate/config.go
package generate

import "time"

type Config struct {
	GenAIBaseURL string
	APIKey       string
	Timeout      time.Duration
	// MaxRetries bounds HTTP attempts inside one node run; the router's
	// retry loop is budgeted separately.
	MaxRetries  int
	MaxTokens   int
	Temperature float64
	// RouterRetries mirrors the pipeline retry budget so the handler knows
	// when a collaborator failure must fall back instead of erroring.
	RouterRetries int
	// MaxContextSnippets caps how much retrieved context the prompt embeds.
	MaxContextSnippets int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:            60 * time.Second,
		MaxRetries:         1,
		MaxTokens:          1500,
		Temperature:        0.7,
		RouterRetries:      2,
		MaxContextSnippets: 5,
	}
}
