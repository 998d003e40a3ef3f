package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "/tmp/trimtofit", cfg.TempDir)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "ffprobe", cfg.FFprobePath)
	assert.True(t, cfg.HideWindow)
	assert.Equal(t, "192k", cfg.DefaultBitrate)
	assert.Equal(t, 2, cfg.MaxConcurrentJobs)
	assert.Equal(t, 4, cfg.MergeConcurrency)
	assert.Equal(t, 24*time.Hour, cfg.JobTTL())
	assert.Equal(t, 30*time.Second, cfg.ShutdownGrace())
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())
	assert.False(t, cfg.RedisEnabled())
}

func TestLoad_CustomValues(t *testing.T) {
	cfg, err := load(envconfig.MapLookuper(map[string]string{
		"PORT":                     "3000",
		"ALLOWED_ORIGINS":          "https://a.example,https://b.example",
		"TEMP_DIR":                 "/custom/temp",
		"FFMPEG_PATH":              "/opt/ffmpeg/bin/ffmpeg",
		"HIDE_CONSOLE_WINDOW":      "false",
		"DEFAULT_BITRATE":          "320k",
		"MAX_CONCURRENT_JOBS":      "8",
		"MERGE_DECODE_CONCURRENCY": "2",
		"S3_BUCKET":                "my-bucket",
		"S3_REGION":                "us-east-1",
		"S3_ENDPOINT":              "http://localhost:9000",
		"AWS_ACCESS_KEY_ID":        "access-key",
		"AWS_SECRET_ACCESS_KEY":    "secret-key",
		"REDIS_ADDR":               "localhost:6379",
		"REDIS_DB":                 "3",
		"JOB_TTL_HOURS":            "0",
		"LOG_FORMAT":               "json",
		"LOG_LEVEL":                "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpegPath)
	assert.False(t, cfg.HideWindow)
	assert.Equal(t, "320k", cfg.DefaultBitrate)
	assert.Equal(t, 8, cfg.MaxConcurrentJobs)
	assert.Equal(t, 2, cfg.MergeConcurrency)
	assert.True(t, cfg.S3Enabled())
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, time.Duration(0), cfg.JobTTL())
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TEMP_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
}

func TestLoad_DataDir(t *testing.T) {
	dir := t.TempDir()
	cfg, err := load(envconfig.MapLookuper(map[string]string{"DATA_DIR": dir}))
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)

	cfg, err = load(envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)
	assert.Empty(t, cfg.DataDir)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr error
	}{
		{"port not a number", map[string]string{"PORT": "not-a-number"}, nil},
		{"port out of range", map[string]string{"PORT": "70000"}, ErrInvalidConfig},
		{"zero concurrency", map[string]string{"MAX_CONCURRENT_JOBS": "0"}, ErrInvalidConfig},
		{"unknown log format", map[string]string{"LOG_FORMAT": "xml"}, ErrInvalidConfig},
		{"bad redis addr", map[string]string{"REDIS_ADDR": "no-port"}, ErrInvalidConfig},
		{"bad s3 endpoint", map[string]string{"S3_ENDPOINT": "::"}, ErrInvalidConfig},
		{"bucket without region", map[string]string{"S3_BUCKET": "b"}, ErrS3Incomplete},
		{"region without bucket", map[string]string{"S3_REGION": "eu-west-1"}, ErrS3Incomplete},
		{"missing data dir", map[string]string{"DATA_DIR": "/nonexistent/trimtofit-data"}, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(envconfig.MapLookuper(tt.env))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:               8080,
		TempDir:            "/tmp/test",
		S3Bucket:           "bucket",
		S3Region:           "region",
		AWSSecretAccessKey: "secret-key",
		RedisAddr:          "redis:6379",
		RedisPassword:      "hunter2",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "/tmp/test")
	assert.Contains(t, str, "redis:6379")
	assert.NotContains(t, str, "secret-key")
	assert.NotContains(t, str, "hunter2")
}

func TestConfig_NewLoggerTo(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := (&Config{LogFormat: "json", LogLevel: "info"}).NewLoggerTo(&buf)
		logger.Info("test message")
		logger.Debug("hidden")

		assert.Contains(t, buf.String(), `"msg":"test message"`)
		assert.NotContains(t, buf.String(), "hidden")
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := (&Config{LogFormat: "text", LogLevel: "debug"}).NewLoggerTo(&buf)
		logger.Debug("visible")

		assert.Contains(t, buf.String(), "msg=visible")
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
