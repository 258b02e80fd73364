package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Storage
	StorageType   string // "file", "sqlite", "postgres" or "redis"
	StatePath     string
	SQLitePath    string
	PostgresURL   string
	RedisAddress  string
	RedisPassword string
	RedisDB       int

	// Marketplace
	AWSRegion          string
	CallDelay          time.Duration
	PremiumCatalogPath string

	// Task
	SettingsPath string

	// API Server
	APIPort string
	APIHost string

	// CLI
	APIEndpoint string
	LogLevel    string
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, &ConfigError{Field: "REDIS_DB", Message: "must be an integer"}
	}
	callDelay, err := time.ParseDuration(getEnv("CALL_DELAY", "500ms"))
	if err != nil {
		return nil, &ConfigError{Field: "CALL_DELAY", Message: "must be a duration such as 500ms"}
	}

	return &Config{
		StorageType:        getEnv("STORAGE_TYPE", "file"),
		StatePath:          getEnv("STATE_PATH", "hit-ids.json"),
		SQLitePath:         getEnv("SQLITE_PATH", "./hitbatch.db"),
		PostgresURL:        getEnv("POSTGRES_URL", ""),
		RedisAddress:       getEnv("REDIS_ADDRESS", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            redisDB,
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		CallDelay:          callDelay,
		PremiumCatalogPath: getEnv("PREMIUM_CATALOG_PATH", ""),
		SettingsPath:       getEnv("SETTINGS_PATH", "settings.yaml"),
		APIPort:            getEnv("API_PORT", "8080"),
		APIHost:            getEnv("API_HOST", "localhost"),
		APIEndpoint:        getEnv("API_ENDPOINT", "http://localhost:8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.StorageType {
	case "file", "sqlite", "postgres", "redis":
	default:
		return &ConfigError{Field: "STORAGE_TYPE", Message: "must be 'file', 'sqlite', 'postgres' or 'redis'"}
	}
	if c.StorageType == "postgres" && c.PostgresURL == "" {
		return &ConfigError{Field: "POSTGRES_URL", Message: "PostgreSQL URL is required when STORAGE_TYPE is 'postgres'"}
	}
	if c.StorageType == "redis" && c.RedisAddress == "" {
		return &ConfigError{Field: "REDIS_ADDRESS", Message: "Redis address is required when STORAGE_TYPE is 'redis'"}
	}
	if c.CallDelay < 0 {
		return &ConfigError{Field: "CALL_DELAY", Message: "must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
