package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration for the story engine service.
type Config struct {
	// Server settings
	Port     string `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Story progression
	MaxSteps int `envconfig:"STORY_MAX_STEPS" default:"5"`

	// AI provider settings
	AIProvider         string        `envconfig:"AI_PROVIDER" default:"openai"` // openai or ollama
	AIModel            string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AIBaseURL          string        `envconfig:"AI_BASE_URL"`
	AIAPIKey           string        `envconfig:"AI_API_KEY"`
	AITimeout          time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	AITemperature      float64       `envconfig:"AI_TEMPERATURE" default:"0.7"`
	AIMaxTokens        int           `envconfig:"AI_MAX_TOKENS" default:"1024"`
	AITopP             float64       `envconfig:"AI_TOP_P" default:"0.8"`
	HistoryTokenBudget int           `envconfig:"HISTORY_TOKEN_BUDGET" default:"2000"`

	// Session store settings
	SessionStore string        `envconfig:"SESSION_STORE" default:"memory"` // memory, redis or postgres
	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"24h"`

	// Redis settings (SESSION_STORE=redis)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// PostgreSQL settings (SESSION_STORE=postgres)
	DBHost        string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBPassword    string        `envconfig:"DB_PASSWORD"`
	DBName        string        `envconfig:"DB_NAME" default:"storyengine"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`

	// RabbitMQ settings; session events are disabled when the URL is empty.
	RabbitMQURL        string `envconfig:"RABBITMQ_URL"`
	SessionEventsQueue string `envconfig:"SESSION_EVENTS_QUEUE" default:"session_events"`
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.MaxSteps < 1 {
		return nil, fmt.Errorf("STORY_MAX_STEPS must be at least 1, got %d", cfg.MaxSteps)
	}
	return &cfg, nil
}
