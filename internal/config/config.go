package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the engine configuration. Values come from the environment
// (a .env file is loaded by main before processing).
type Config struct {
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"console"`

	// Lore bundle produced by the lore-generation collaborator.
	LorePath string `envconfig:"LORE_PATH" default:"lore.json"`

	// AI provider: openai, deepseek, ollama or dummy.
	AIProvider   string        `envconfig:"AI_PROVIDER" default:"dummy"`
	AIModel      string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AIBaseURL    string        `envconfig:"AI_BASE_URL" default:""`
	AITimeout    time.Duration `envconfig:"AI_TIMEOUT" default:"45s"`
	AIMaxRetries int           `envconfig:"AI_MAX_RETRIES" default:"1"`
	// Secret, no envconfig tag: read explicitly in LoadConfig.
	AIAPIKey string

	// Memory manager tunables.
	MemoryWindowSize    int     `envconfig:"MEMORY_WINDOW_SIZE" default:"10"`
	MemoryRecallCount   int     `envconfig:"MEMORY_RECALL_COUNT" default:"3"`
	MemoryRecallMinSim  float64 `envconfig:"MEMORY_RECALL_MIN_SIM" default:"0.2"`
	MemoryTokenBudget   int     `envconfig:"MEMORY_TOKEN_BUDGET" default:"3000"`
	MemoryTokenEncoding string  `envconfig:"MEMORY_TOKEN_ENCODING" default:"cl100k_base"`

	// Session persistence: memory, redis or postgres.
	SessionStore string `envconfig:"SESSION_STORE" default:"memory"`

	// PostgreSQL settings (used when SESSION_STORE=postgres).
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"neuroquest"`
	DBName     string `envconfig:"DB_NAME" default:"neuroquest"`
	DBSSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns int    `envconfig:"DB_MAX_CONNECTIONS" default:"4"`
	// Secret, no envconfig tag.
	DBPassword string

	// Redis settings (used when SESSION_STORE=redis).
	RedisAddr string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int           `envconfig:"REDIS_DB" default:"0"`
	RedisTTL  time.Duration `envconfig:"REDIS_SESSION_TTL" default:"720h"`

	// Optional Prometheus endpoint; disabled when empty.
	MetricsAddr string `envconfig:"METRICS_ADDR" default:""`
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig loads configuration from environment variables and secrets.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load engine configuration: %w", err)
	}

	// Secrets stay out of envconfig so they never land in defaults or
	// usage output.
	cfg.AIAPIKey = os.Getenv("AI_API_KEY")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")

	if cfg.MemoryWindowSize <= 0 {
		return nil, fmt.Errorf("MEMORY_WINDOW_SIZE must be positive, got %d", cfg.MemoryWindowSize)
	}
	if cfg.MemoryRecallCount < 0 {
		return nil, fmt.Errorf("MEMORY_RECALL_COUNT must be non-negative, got %d", cfg.MemoryRecallCount)
	}

	return &cfg, nil
}
