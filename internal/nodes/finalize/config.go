// internal/nodes/finalize/config.go
package finalize

type Config struct {
	// Confidence blend weights. They must sum to 1; the loader validates
	// that before a handler ever sees them.
	ValidationWeight      float64
	RetrievalWeight       float64
	PersonalizationWeight float64
	// DiversityShare is the slice of the validation factor carried by the
	// diversity score; the rest is the pass rate.
	DiversityShare float64
}

func LoadConfig() *Config {
	return &Config{
		ValidationWeight:      0.40,
		RetrievalWeight:       0.30,
		PersonalizationWeight: 0.30,
		DiversityShare:        0.20,
	}
}
