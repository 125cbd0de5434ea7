// internal/nodes/retrieve/config.go
package retrieve

import "time"

type Config struct {
	Index    string
	TopK     int
	Timeout  time.Duration
	CacheTTL time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Index:    "curriculum-content",
		TopK:     5,
		Timeout:  10 * time.Second,
		CacheTTL: 10 * time.Minute,
	}
}
