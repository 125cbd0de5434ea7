// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig             `mapstructure:"app"`
	Pipeline PipelineConfig        `mapstructure:"pipeline"`
	Database DatabaseConfig        `mapstructure:"database"`
	Nodes    map[string]NodeConfig `mapstructure:"nodes"`
	APIs     APIsConfig            `mapstructure:"apis"`
	Scoring  ScoringConfig         `mapstructure:"scoring"`
	Logging  LoggingConfig         `mapstructure:"logging"`
	Registry RegistryConfig        `mapstructure:"registry"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	ListenAddr  string `mapstructure:"listen_addr"`
}

// PipelineConfig holds the engine-level execution budgets.
type PipelineConfig struct {
	MaxRetries    int `mapstructure:"max_retries"`    // bounded retry edge back to generation
	GlobalTimeout int `mapstructure:"global_timeout"` // milliseconds, whole-run wall clock
	TopK          int `mapstructure:"top_k"`          // context snippet cap
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	Index      string   `mapstructure:"index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NodeConfig holds the core settings applicable to every pipeline node.
type NodeConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Timeout    int  `mapstructure:"timeout"`     // milliseconds, per node invocation
	MaxRetries int  `mapstructure:"max_retries"` // external-call retries inside the node
	CacheTTL   int  `mapstructure:"cache_ttl"`   // seconds, for nodes that cache
}

// APIsConfig holds settings for external collaborator integrations.
type APIsConfig struct {
	GenAI struct {
		BaseURL     string  `mapstructure:"base_url"`
		APIKey      string  `mapstructure:"api_key"`
		Timeout     int     `mapstructure:"timeout"` // milliseconds
		MaxTokens   int     `mapstructure:"max_tokens"`
		Temperature float64 `mapstructure:"temperature"`
	} `mapstructure:"genai"`
}

// ScoringConfig holds the blended confidence-score weights. The 40/30/30
// split is a design default, not a derived optimum. DiversityShare is the
// portion of the validation factor carried by question diversity.
type ScoringConfig struct {
	ValidationWeight      float64 `mapstructure:"validation_weight"`
	RetrievalWeight       float64 `mapstructure:"retrieval_weight"`
	PersonalizationWeight float64 `mapstructure:"personalization_weight"`
	DiversityShare        float64 `mapstructure:"diversity_share"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// RegistryConfig points at the node registry manifest.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}
