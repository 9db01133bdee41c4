// Package config loads application configuration from the environment with
// an optional YAML file overlay. Environment variables always win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment constants
const (
	EnvProduction = "production"
)

// Config holds all application configuration.
type Config struct {
	App          AppConfig
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Log          LogConfig
	RateLimit    RateLimitConfig
	Worker       WorkerConfig
	Notification NotificationConfig
	Review       ReviewConfig
	Ingest       IngestConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// WorkerConfig holds background worker configuration.
type WorkerConfig struct {
	Concurrency int
	Queues      map[string]int
}

// NotificationConfig holds webhook notification configuration.
type NotificationConfig struct {
	WebhookURL string
	Timeout    time.Duration
	MaxRetries int
}

// ReviewConfig controls the stale review sweep.
type ReviewConfig struct {
	SweepSchedule string
	StaleAfter    time.Duration
}

// IngestConfig holds scan report import configuration.
type IngestConfig struct {
	MaxReportSize int64
}

// fileConfig mirrors the YAML overlay file. Only a subset of settings can be
// set from the file; secrets stay in the environment.
type fileConfig struct {
	App struct {
		Name  string `yaml:"name"`
		Env   string `yaml:"env"`
		Debug *bool  `yaml:"debug"`
	} `yaml:"app"`
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	RateLimit struct {
		Enabled *bool   `yaml:"enabled"`
		RPS     float64 `yaml:"rps"`
		Burst   int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	Review struct {
		SweepSchedule string `yaml:"sweep_schedule"`
		StaleAfter    string `yaml:"stale_after"`
	} `yaml:"review"`
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:  "vulndeck",
			Env:   "development",
			Debug: false,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     1 << 20,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "vulndeck",
			Password:        "secret",
			Name:            "vulndeck",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Host:         "localhost",
			Port:         6379,
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     50,
			Burst:   100,
		},
		Worker: WorkerConfig{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
		Notification: NotificationConfig{
			Timeout:    10 * time.Second,
			MaxRetries: 5,
		},
		Review: ReviewConfig{
			SweepSchedule: "0 * * * *",
			StaleAfter:    7 * 24 * time.Hour,
		},
		Ingest: IngestConfig{
			MaxReportSize: 32 << 20,
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	if fc.App.Name != "" {
		c.App.Name = fc.App.Name
	}
	if fc.App.Env != "" {
		c.App.Env = fc.App.Env
	}
	if fc.App.Debug != nil {
		c.App.Debug = *fc.App.Debug
	}
	if fc.Server.Host != "" {
		c.Server.Host = fc.Server.Host
	}
	if fc.Server.Port != 0 {
		c.Server.Port = fc.Server.Port
	}
	if fc.Log.Level != "" {
		c.Log.Level = fc.Log.Level
	}
	if fc.Log.Format != "" {
		c.Log.Format = fc.Log.Format
	}
	if fc.RateLimit.Enabled != nil {
		c.RateLimit.Enabled = *fc.RateLimit.Enabled
	}
	if fc.RateLimit.RPS != 0 {
		c.RateLimit.RPS = fc.RateLimit.RPS
	}
	if fc.RateLimit.Burst != 0 {
		c.RateLimit.Burst = fc.RateLimit.Burst
	}
	if fc.Review.SweepSchedule != "" {
		c.Review.SweepSchedule = fc.Review.SweepSchedule
	}
	if fc.Review.StaleAfter != "" {
		d, err := time.ParseDuration(fc.Review.StaleAfter)
		if err != nil {
			return fmt.Errorf("review.stale_after: %w", err)
		}
		c.Review.StaleAfter = d
	}

	return nil
}

func (c *Config) applyEnv() {
	c.App.Name = getEnv("APP_NAME", c.App.Name)
	c.App.Env = getEnv("APP_ENV", c.App.Env)
	c.App.Debug = getEnvBool("APP_DEBUG", c.App.Debug)

	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("SERVER_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.RequestTimeout = getEnvDuration("SERVER_REQUEST_TIMEOUT", c.Server.RequestTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.MaxBodySize = getEnvInt64("SERVER_MAX_BODY_SIZE", c.Server.MaxBodySize)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)

	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnvInt("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)
	c.Redis.PoolSize = getEnvInt("REDIS_POOL_SIZE", c.Redis.PoolSize)
	c.Redis.MinIdleConns = getEnvInt("REDIS_MIN_IDLE_CONNS", c.Redis.MinIdleConns)
	c.Redis.DialTimeout = getEnvDuration("REDIS_DIAL_TIMEOUT", c.Redis.DialTimeout)
	c.Redis.ReadTimeout = getEnvDuration("REDIS_READ_TIMEOUT", c.Redis.ReadTimeout)
	c.Redis.WriteTimeout = getEnvDuration("REDIS_WRITE_TIMEOUT", c.Redis.WriteTimeout)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.RateLimit.Enabled = getEnvBool("RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.RPS = getEnvFloat("RATE_LIMIT_RPS", c.RateLimit.RPS)
	c.RateLimit.Burst = getEnvInt("RATE_LIMIT_BURST", c.RateLimit.Burst)

	c.Worker.Concurrency = getEnvInt("WORKER_CONCURRENCY", c.Worker.Concurrency)

	c.Notification.WebhookURL = getEnv("NOTIFICATION_WEBHOOK_URL", c.Notification.WebhookURL)
	c.Notification.Timeout = getEnvDuration("NOTIFICATION_TIMEOUT", c.Notification.Timeout)
	c.Notification.MaxRetries = getEnvInt("NOTIFICATION_MAX_RETRIES", c.Notification.MaxRetries)

	c.Review.SweepSchedule = getEnv("REVIEW_SWEEP_SCHEDULE", c.Review.SweepSchedule)
	c.Review.StaleAfter = getEnvDuration("REVIEW_STALE_AFTER", c.Review.StaleAfter)

	c.Ingest.MaxReportSize = getEnvInt64("INGEST_MAX_REPORT_SIZE", c.Ingest.MaxReportSize)
}

// Validate checks the configuration for invalid or unsafe values.
func (c *Config) Validate() error {
	if err := c.validateBasic(); err != nil {
		return err
	}
	if c.IsProduction() {
		if err := c.validateProduction(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateBasic() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if err := c.validateLog(); err != nil {
		return err
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			return fmt.Errorf("RATE_LIMIT_RPS must be positive, got %f", c.RateLimit.RPS)
		}
		if c.RateLimit.Burst < 1 {
			return fmt.Errorf("RATE_LIMIT_BURST must be at least 1, got %d", c.RateLimit.Burst)
		}
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.Worker.Concurrency)
	}
	if c.Review.StaleAfter < time.Hour {
		return fmt.Errorf("REVIEW_STALE_AFTER too short: %v (min 1h)", c.Review.StaleAfter)
	}
	if c.Ingest.MaxReportSize < 1<<10 {
		return fmt.Errorf("INGEST_MAX_REPORT_SIZE too small: %d", c.Ingest.MaxReportSize)
	}
	return nil
}

func (c *Config) validateLog() error {
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %s (must be json or text)", c.Log.Format)
	}
	return nil
}

func (c *Config) validateProduction() error {
	if c.Database.SSLMode == "disable" {
		return fmt.Errorf("database SSL must be enabled in production (use 'require' or 'verify-full')")
	}
	if !c.RateLimit.Enabled {
		return fmt.Errorf("rate limiting must be enabled in production")
	}
	if c.App.Debug {
		return fmt.Errorf("debug mode must be disabled in production")
	}
	if c.Log.Level == "debug" {
		return fmt.Errorf("log level should not be 'debug' in production")
	}
	if c.Redis.Password == "" {
		return fmt.Errorf("redis password must be set in production")
	}
	return nil
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the HTTP server address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment returns true if the application is in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction returns true if the application is in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
