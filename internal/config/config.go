// Package config loads the service configuration from environment variables
// and an optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/sonavox/mediad/internal/ratelimit"
)

// Store backends for job status.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// DBConfig holds the Postgres connection settings used when the postgres
// status backend is selected.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Config holds the application's configuration values.
type Config struct {
	ServerPort  string
	WorkerID    string
	BuildNumber string

	MaxQueueLength int // 0 = unbounded

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitBurstCap      int
	RateLimitIdentity      string
	GlobalRatePerSecond    float64
	GlobalRateBurst        int

	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Database      *DBConfig
	JobTTLHours   int

	WebhookTimeoutSeconds int
	MediaDir              string

	LogLevel  string
	LogFormat string
}

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates required fields. It uses the Viper
// library to handle configuration loading and precedence.
func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("WORKER_ID", "worker-1")
	viper.SetDefault("BUILD_NUMBER", "dev")
	viper.SetDefault("MAX_QUEUE_LENGTH", 0)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 60)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("RATE_LIMIT_BURST_CAP", 120)
	viper.SetDefault("RATE_LIMIT_IDENTITY", ratelimit.ModeByAddress)
	viper.SetDefault("GLOBAL_RATE_PER_SECOND", 100)
	viper.SetDefault("GLOBAL_RATE_BURST", 200)
	viper.SetDefault("STORE_BACKEND", StoreMemory)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "mediad")
	viper.SetDefault("DB_PASSWORD", "")
	viper.SetDefault("DB_NAME", "mediad")
	viper.SetDefault("JOB_TTL_HOURS", 24)
	viper.SetDefault("WEBHOOK_TIMEOUT_SECONDS", 15)
	viper.SetDefault("MEDIA_DIR", "downloads")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		slog.Debug("no .env file found, using environment only", "error", err)
	}

	cfg := &Config{
		ServerPort:             viper.GetString("SERVER_PORT"),
		WorkerID:               viper.GetString("WORKER_ID"),
		BuildNumber:            viper.GetString("BUILD_NUMBER"),
		MaxQueueLength:         viper.GetInt("MAX_QUEUE_LENGTH"),
		RateLimitRequests:      viper.GetInt("RATE_LIMIT_REQUESTS"),
		RateLimitWindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		RateLimitBurstCap:      viper.GetInt("RATE_LIMIT_BURST_CAP"),
		RateLimitIdentity:      viper.GetString("RATE_LIMIT_IDENTITY"),
		GlobalRatePerSecond:    viper.GetFloat64("GLOBAL_RATE_PER_SECOND"),
		GlobalRateBurst:        viper.GetInt("GLOBAL_RATE_BURST"),
		StoreBackend:           viper.GetString("STORE_BACKEND"),
		RedisAddr:              viper.GetString("REDIS_ADDR"),
		RedisPassword:          viper.GetString("REDIS_PASSWORD"),
		RedisDB:                viper.GetInt("REDIS_DB"),
		JobTTLHours:            viper.GetInt("JOB_TTL_HOURS"),
		WebhookTimeoutSeconds:  viper.GetInt("WEBHOOK_TIMEOUT_SECONDS"),
		MediaDir:               viper.GetString("MEDIA_DIR"),
		LogLevel:               viper.GetString("LOG_LEVEL"),
		LogFormat:              viper.GetString("LOG_FORMAT"),
		Database: &DBConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			Username:        viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Database:        viper.GetString("DB_NAME"),
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the dispatch engine cannot run with.
func (c *Config) Validate() error {
	if c.MaxQueueLength < 0 {
		return fmt.Errorf("MAX_QUEUE_LENGTH must be >= 0, got %d", c.MaxQueueLength)
	}
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0, got %d", c.RateLimitRequests)
	}
	if c.RateLimitWindowSeconds <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_SECONDS must be > 0, got %d", c.RateLimitWindowSeconds)
	}
	if c.RateLimitBurstCap < c.RateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_BURST_CAP must be >= RATE_LIMIT_REQUESTS, got %d < %d",
			c.RateLimitBurstCap, c.RateLimitRequests)
	}
	switch c.RateLimitIdentity {
	case ratelimit.ModeByAddress, ratelimit.ModeByCredential:
	default:
		return fmt.Errorf("RATE_LIMIT_IDENTITY must be %q or %q, got %q",
			ratelimit.ModeByAddress, ratelimit.ModeByCredential, c.RateLimitIdentity)
	}
	switch c.StoreBackend {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of memory, redis, postgres, got %q", c.StoreBackend)
	}
	if c.WebhookTimeoutSeconds <= 0 {
		return fmt.Errorf("WEBHOOK_TIMEOUT_SECONDS must be > 0, got %d", c.WebhookTimeoutSeconds)
	}
	return nil
}

// RateLimitWindow returns the sliding window as a duration.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

// WebhookTimeout returns the per-delivery webhook timeout as a duration.
func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeoutSeconds) * time.Second
}
