// Package bootstrap wires configuration into the services used by the
// HTTP server and the command-line tool.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/trimtofit/internal/audio"
	"github.com/maauso/trimtofit/internal/config"
	"github.com/maauso/trimtofit/internal/job"
	"github.com/maauso/trimtofit/internal/media"
	"github.com/maauso/trimtofit/internal/storage"
)

// Dependencies holds all initialized dependencies.
type Dependencies struct {
	Service    *job.Service
	Repository job.Repository
	Processor  *media.FFmpegProcessor
	Storage    storage.Storage

	closers []func() error
}

// Close releases connections held by the dependencies.
func (d *Dependencies) Close() error {
	var firstErr error
	for _, c := range d.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{Storage: store}

	repo, err := initRepository(cfg, logger, deps)
	if err != nil {
		return nil, err
	}
	deps.Repository = repo

	launch := media.LaunchConfig{HideWindow: cfg.HideWindow}
	processor := media.NewFFmpegProcessor(cfg.FFmpegPath,
		media.WithFFprobePath(cfg.FFprobePath),
		media.WithLaunchConfig(launch),
	)
	if !processor.Available() {
		logger.Warn("ffmpeg not found, only WAV input and output will work",
			slog.String("ffmpeg_path", cfg.FFmpegPath),
		)
	}
	deps.Processor = processor

	codec := audio.NewFileCodec(processor, cfg.TempDir)

	deps.Service = job.NewService(repo, codec, processor, store, job.Config{
		DefaultBitrate:    cfg.DefaultBitrate,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		MergeConcurrency:  cfg.MergeConcurrency,
	}, logger)

	return deps, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}

// initRepository picks Redis when REDIS_ADDR is set, memory otherwise.
func initRepository(cfg *config.Config, logger *slog.Logger, deps *Dependencies) (job.Repository, error) {
	if !cfg.RedisEnabled() {
		logger.Info("in-memory job repository configured")
		return job.NewMemoryRepository(job.WithTTL(cfg.JobTTL())), nil
	}

	repo, err := job.NewRedisRepository(job.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.JobTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create redis repository: %w", err)
	}
	deps.closers = append(deps.closers, repo.Close)
	logger.Info("redis job repository configured",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)
	return repo, nil
}
