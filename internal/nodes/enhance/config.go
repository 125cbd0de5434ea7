// internal/nodes/enhance/config.go
package enhance

type Config struct {
	// BaseEngagement is the score assigned when no persona signal applies.
	BaseEngagement float64
	// InterestBoost and StyleBoost reward candidates the enhancer managed
	// to personalize.
	InterestBoost float64
	StyleBoost    float64
}

func LoadConfig() *Config {
	return &Config{
		BaseEngagement: 0.4,
		InterestBoost:  0.35,
		StyleBoost:     0.15,
	}
}
