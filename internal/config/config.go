// Package config provides configuration management for the dashboard service.
// It loads configuration from environment variables and .env files.
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
	Server    ServerConfig
	Database  DatabaseConfig
	API       APIConfig
	Crawler   CrawlerConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// APIConfig holds upstream contribution API configuration
type APIConfig struct {
	BaseURL         string
	Timeout         time.Duration
	TokensPerPeriod int
	PeriodSeconds   int
	MaxRetries      int
	ForbiddenWait   time.Duration
}

// CrawlerConfig holds batch crawler configuration
type CrawlerConfig struct {
	StartLandID         int
	EndLandID           int
	DailyRunAt          string // HH:MM, UTC
	RecoveryInterval    time.Duration
	QuarantineThreshold int // consecutive terminal failures before quarantine; 0 disables
}

// CacheConfig holds leaderboard cache configuration
type CacheConfig struct {
	LeaderboardTTL time.Duration
}

// RateLimitConfig holds inbound API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "lok_dashboard"),
				User:           getEnv("POSTGRES_USER", "dashboard"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		API: APIConfig{
			BaseURL:         getEnv("LOK_API_BASE_URL", "https://api-lok-live.leagueofkingdoms.com/api/stat/land/contribution"),
			Timeout:         getEnvAsDuration("LOK_API_TIMEOUT", 30*time.Second),
			TokensPerPeriod: getEnvAsInt("LOK_API_TOKENS_PER_PERIOD", 60),
			PeriodSeconds:   getEnvAsInt("LOK_API_PERIOD_SECONDS", 60),
			MaxRetries:      getEnvAsInt("LOK_API_MAX_RETRY_ATTEMPTS", 5),
			ForbiddenWait:   getEnvAsDuration("LOK_API_FORBIDDEN_WAIT", 60*time.Second),
		},
		Crawler: CrawlerConfig{
			StartLandID:         getEnvAsInt("CRAWLER_START_LAND_ID", 132768),
			EndLandID:           getEnvAsInt("CRAWLER_END_LAND_ID", 165535),
			DailyRunAt:          getEnv("CRAWLER_DAILY_RUN_AT", "06:30"),
			RecoveryInterval:    getEnvAsDuration("CRAWLER_RECOVERY_INTERVAL", 8*time.Hour),
			QuarantineThreshold: getEnvAsInt("CRAWLER_QUARANTINE_THRESHOLD", 0),
		},
		Cache: CacheConfig{
			LeaderboardTTL: getEnvAsDuration("CACHE_LEADERBOARD_TTL", 10*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks invariants the rest of the system depends on.
func (c *Config) validate() error {
	if c.API.TokensPerPeriod <= 0 {
		return fmt.Errorf("LOK_API_TOKENS_PER_PERIOD must be positive, got %d", c.API.TokensPerPeriod)
	}
	if c.API.PeriodSeconds <= 0 {
		return fmt.Errorf("LOK_API_PERIOD_SECONDS must be positive, got %d", c.API.PeriodSeconds)
	}
	if c.API.MaxRetries <= 0 {
		return fmt.Errorf("LOK_API_MAX_RETRY_ATTEMPTS must be positive, got %d", c.API.MaxRetries)
	}
	if c.Crawler.StartLandID > c.Crawler.EndLandID {
		return fmt.Errorf("crawler land range is inverted: %d > %d", c.Crawler.StartLandID, c.Crawler.EndLandID)
	}
	if _, _, err := ParseTimeOfDay(c.Crawler.DailyRunAt); err != nil {
		return err
	}
	return nil
}

// ParseTimeOfDay parses a HH:MM string into hour and minute components.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	if _, err := time.Parse("15:04", s); err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q (want HH:MM): %w", s, err)
	}
	t, _ := time.Parse("15:04", s)
	return t.Hour(), t.Minute(), nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
