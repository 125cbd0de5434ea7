// internal/nodes/calibrate/config.go
package calibrate

type Config struct {
	// BaseOperandCeiling is the operand ceiling for grade 1 medium; higher
	// grades and tiers scale from it.
	BaseOperandCeiling int
}

func LoadConfig() *Config {
	return &Config{
		BaseOperandCeiling: 10,
	}
}
