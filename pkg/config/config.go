package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Remote  RemoteConfig
	Redis   RedisConfig
	Sentry  SentryConfig
	Breaker BreakerConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// RemoteConfig holds remote scoring provider configuration
type RemoteConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      int // in seconds, applied per scoring request
	CacheTTL     int // in seconds, verdict cache lifetime
	MaxBatchSize int
	Enabled      bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// SentryConfig holds Sentry error reporting configuration
type SentryConfig struct {
	DSN     string
	Enabled bool
}

// BreakerConfig holds circuit breaker tuning for the remote gateway
type BreakerConfig struct {
	IntervalSeconds  int
	TimeoutSeconds   int
	FailureThreshold int
	SuccessThreshold int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Remote: RemoteConfig{
			APIKey:       getEnv("OPENROUTER_API_KEY", ""),
			BaseURL:      getEnv("OPENROUTER_API_URL", "https://openrouter.ai/api/v1/chat/completions"),
			Model:        getEnv("OPENROUTER_MODEL", "anthropic/claude-3.5-haiku"),
			Timeout:      getEnvAsInt("REMOTE_TIMEOUT", 20),
			CacheTTL:     getEnvAsInt("REMOTE_CACHE_TTL", 300),
			MaxBatchSize: getEnvAsInt("MAX_BATCH_SIZE", 50),
			Enabled:      getEnvAsBool("REMOTE_ENABLED", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Sentry: SentryConfig{
			DSN:     getEnv("SENTRY_DSN", ""),
			Enabled: getEnvAsBool("SENTRY_ENABLED", false),
		},
		Breaker: BreakerConfig{
			IntervalSeconds:  getEnvAsInt("BREAKER_INTERVAL", 60),
			TimeoutSeconds:   getEnvAsInt("BREAKER_TIMEOUT", 30),
			FailureThreshold: getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
			SuccessThreshold: getEnvAsInt("BREAKER_SUCCESS_THRESHOLD", 1),
		},
	}

	return cfg, nil
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// RequestTimeout returns the per-request remote scoring timeout
func (c *RemoteConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// CacheExpiration returns the remote verdict cache TTL
func (c *RemoteConfig) CacheExpiration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
