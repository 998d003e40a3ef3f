// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidConfig wraps every field-level validation failure.
	ErrInvalidConfig = errors.New("config: invalid configuration")
	// ErrS3Incomplete is returned when only one of S3_BUCKET and S3_REGION is set.
	ErrS3Incomplete = errors.New("config: S3_BUCKET and S3_REGION must be set together")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port            int      `env:"PORT, default=8080" json:"port" validate:"min=1,max=65535"`
	AllowedOrigins  []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`
	ShutdownTimeout int      `env:"SHUTDOWN_TIMEOUT_SEC, default=30" json:"shutdown_timeout_sec" validate:"min=1"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/trimtofit" json:"temp_dir" validate:"required"`
	// DataDir confines the server's input and output paths when set.
	DataDir string `env:"DATA_DIR" json:"data_dir,omitempty" validate:"omitempty,dir"`

	// Media settings
	FFmpegPath     string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath    string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	HideWindow     bool   `env:"HIDE_CONSOLE_WINDOW, default=true" json:"hide_console_window"`
	DefaultBitrate string `env:"DEFAULT_BITRATE, default=192k" json:"default_bitrate" validate:"required"`

	// Processing settings
	MaxConcurrentJobs int `env:"MAX_CONCURRENT_JOBS, default=2" json:"max_concurrent_jobs" validate:"min=1"`
	MergeConcurrency  int `env:"MERGE_DECODE_CONCURRENCY, default=4" json:"merge_decode_concurrency" validate:"min=1"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Optional Redis job store
	RedisAddr     string `env:"REDIS_ADDR" json:"redis_addr,omitempty" validate:"omitempty,hostname_port"`
	RedisPassword string `env:"REDIS_PASSWORD" json:"-"` // Masked in JSON
	RedisDB       int    `env:"REDIS_DB, default=0" json:"redis_db" validate:"min=0"`
	JobTTLHours   int    `env:"JOB_TTL_HOURS, default=24" json:"job_ttl_hours" validate:"min=0"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"` // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// RedisEnabled returns true if jobs should be persisted in Redis.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// JobTTL returns how long Redis keeps a job record. Zero means forever.
func (c *Config) JobTTL() time.Duration {
	return time.Duration(c.JobTTLHours) * time.Hour
}

// ShutdownGrace returns the time the server waits for in-flight work on exit.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	return load(envconfig.OsLookuper())
}

func load(lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if (c.S3Bucket == "") != (c.S3Region == "") {
		return ErrS3Incomplete
	}
	return nil
}

// NewLogger creates a structured logger writing to stdout.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, DataDir: %s, FFmpegPath: %s, FFprobePath: %s, DefaultBitrate: %s, MaxConcurrentJobs: %d, MergeConcurrency: %d, S3Bucket: %s, S3Region: %s, RedisAddr: %s, RedisDB: %d, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.DataDir,
		c.FFmpegPath,
		c.FFprobePath,
		c.DefaultBitrate,
		c.MaxConcurrentJobs,
		c.MergeConcurrency,
		c.S3Bucket,
		c.S3Region,
		c.RedisAddr,
		c.RedisDB,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
