package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/maauso/trimtofit/internal/audio"
	"github.com/maauso/trimtofit/internal/media"
	"github.com/maauso/trimtofit/internal/progress"
	"github.com/maauso/trimtofit/internal/storage"
	"github.com/maauso/trimtofit/internal/timeline"
)

// Default service settings.
const (
	DefaultBitrate           = "192k"
	DefaultMaxConcurrentJobs = 2
	DefaultMergeConcurrency  = 4
)

// Codec decodes audio files into PCM buffers and encodes them back.
type Codec interface {
	Load(ctx context.Context, path string) (*audio.PCMBuffer, error)
	Save(ctx context.Context, buf *audio.PCMBuffer, path string, opts media.EncodeOpts) error
	LoadAll(ctx context.Context, paths []string, limit int, onLoaded func(done, total int)) ([]audio.LoadResult, error)
}

// Config holds the tunables of a Service.
type Config struct {
	// DefaultBitrate is used when the source bitrate cannot be probed.
	DefaultBitrate string
	// MaxConcurrentJobs bounds the jobs run in the background by Submit.
	MaxConcurrentJobs int
	// MergeConcurrency bounds the inputs a merge decodes at once.
	MergeConcurrency int
}

// Service runs audio jobs and keeps their state in a Repository.
type Service struct {
	repo      Repository
	codec     Codec
	processor media.Processor
	store     storage.Storage
	assembler *audio.Assembler
	logger    *slog.Logger
	cfg       Config

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewService creates a new Service. Zero config values fall back to defaults.
func NewService(repo Repository, codec Codec, processor media.Processor, store storage.Storage, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultBitrate == "" {
		cfg.DefaultBitrate = DefaultBitrate
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = DefaultMaxConcurrentJobs
	}
	if cfg.MergeConcurrency <= 0 {
		cfg.MergeConcurrency = DefaultMergeConcurrency
	}
	return &Service{
		repo:      repo,
		codec:     codec,
		processor: processor,
		store:     store,
		assembler: audio.NewAssembler(audio.WithLogger(logger)),
		logger:    logger,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs)),
	}
}

// Trim runs a trim job synchronously, reporting progress to sink.
func (s *Service) Trim(ctx context.Context, req TrimRequest, sink progress.Sink) (*Job, error) {
	return s.runRequest(ctx, req, sink)
}

// ChangeSpeed runs a speed job synchronously, reporting progress to sink.
func (s *Service) ChangeSpeed(ctx context.Context, req SpeedRequest, sink progress.Sink) (*Job, error) {
	return s.runRequest(ctx, req, sink)
}

// Convert runs a convert job synchronously, reporting progress to sink.
func (s *Service) Convert(ctx context.Context, req ConvertRequest, sink progress.Sink) (*Job, error) {
	return s.runRequest(ctx, req, sink)
}

// Merge runs a merge job synchronously, reporting progress to sink.
func (s *Service) Merge(ctx context.Context, req MergeRequest, sink progress.Sink) (*Job, error) {
	return s.runRequest(ctx, req, sink)
}

// Submit persists a QUEUED job for req and runs it in the background once a
// worker slot is free. The returned job is a snapshot; poll GetJob for updates.
func (s *Service) Submit(ctx context.Context, req Request) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	j := req.newJob()
	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("job queued",
		slog.String("job_id", j.ID),
		slog.String("kind", string(j.Kind)),
	)

	snapshot := j.Clone()
	runCtx := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := s.sem.Acquire(runCtx, 1); err != nil {
			s.fail(runCtx, j, err)
			return
		}
		defer s.sem.Release(1)

		// Errors are recorded on the job.
		_ = s.Run(runCtx, j, nil)
	}()

	return snapshot, nil
}

// Wait blocks until every job started by Submit has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// GetJob retrieves a job by ID.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns every job, oldest first.
func (s *Service) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// DeleteJob forgets a finished job. Output files are left in place.
func (s *Service) DeleteJob(ctx context.Context, id string) error {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !j.IsTerminal() {
		return fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, id, j.GetStatus())
	}
	return s.repo.Delete(ctx, id)
}

// Run executes the pipeline of j, persisting every state change. The final
// progress value reported to sink on success is exactly 1. On failure the job
// is marked FAILED and the error is returned.
func (s *Service) Run(ctx context.Context, j *Job, sink progress.Sink) error {
	sink = progress.OrNop(sink)
	report := progress.Monotonic(func(f float64) {
		j.UpdateProgress(f)
		s.persist(ctx, j)
		sink(f)
	})

	logger := s.logger.With(slog.String("job_id", j.ID), slog.String("kind", string(j.Kind)))
	logger.Info("job started", slog.Any("inputs", j.InputPaths))

	var err error
	switch j.Kind {
	case KindTrim:
		err = s.runTrim(ctx, j, report)
	case KindSpeed:
		err = s.runSpeed(ctx, j, report)
	case KindConvert:
		err = s.runConvert(ctx, j, report)
	case KindMerge:
		err = s.runMerge(ctx, j, report)
	default:
		err = fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, j.Kind)
	}
	if err != nil {
		s.fail(ctx, j, err)
		return err
	}

	if err := j.Complete(); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	s.persist(ctx, j)

	logger.Info("job completed",
		slog.String("output", j.OutputPath),
		slog.Int64("output_ms", j.OutputDurationMs),
	)
	return nil
}

// Plan resolves ranges against a duration without touching any audio.
func (s *Service) Plan(ranges []timeline.Range, totalMs int64, mode timeline.Mode) (Plan, error) {
	return NewPlan(ranges, totalMs, mode)
}

func (s *Service) runRequest(ctx context.Context, req Request, sink progress.Sink) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	j := req.newJob()
	if err := s.repo.Save(ctx, j); err != nil {
		return nil, err
	}
	err := s.Run(ctx, j, sink)
	return j.Clone(), err
}

func (s *Service) runTrim(ctx context.Context, j *Job, report progress.Sink) error {
	input := j.InputPaths[0]

	if err := s.advance(ctx, j, StatusLoading); err != nil {
		return err
	}
	progress.Report(report, progress.LoadStarted)

	src, err := s.codec.Load(ctx, input)
	if err != nil {
		return err
	}
	progress.Report(report, progress.Loaded)

	if err := s.advance(ctx, j, StatusResolving); err != nil {
		return err
	}
	keep, err := timeline.Resolve(j.Ranges, src.DurationMs(), j.Mode)
	if err != nil {
		return err
	}
	j.SetKeepRanges(keep, src.DurationMs())
	s.logger.Info("ranges resolved",
		slog.String("job_id", j.ID),
		slog.String("mode", string(j.Mode)),
		slog.Int("keep", len(keep)),
		slog.Int64("kept_ms", timeline.Sum(keep)),
		slog.Int64("source_ms", src.DurationMs()),
	)

	if err := s.advance(ctx, j, StatusAssembling); err != nil {
		return err
	}
	out, err := s.assembler.Assemble(src, keep, report)
	if err != nil {
		return err
	}
	pcm, ok := out.(*audio.PCMBuffer)
	if !ok {
		return fmt.Errorf("%w: assembled %T", audio.ErrIncompatibleBuffer, out)
	}

	if err := s.advance(ctx, j, StatusExporting); err != nil {
		return err
	}
	opts := media.EncodeOpts{Bitrate: s.bitrateFor(ctx, input)}
	return s.export(ctx, j, pcm, opts, report)
}

func (s *Service) runSpeed(ctx context.Context, j *Job, report progress.Sink) error {
	input := j.InputPaths[0]

	if err := s.advance(ctx, j, StatusLoading); err != nil {
		return err
	}
	progress.Report(report, progress.LoadStarted)

	if err := s.advance(ctx, j, StatusExporting); err != nil {
		return err
	}
	progress.Report(report, progress.Loaded)

	path, err := storage.PrepareOutput(j.OutputPath)
	if err != nil {
		return err
	}
	if err := s.processor.ChangeSpeed(ctx, input, path, j.SpeedFactor); err != nil {
		return err
	}

	var durationMs int64
	if info, err := s.processor.Probe(ctx, path); err == nil {
		durationMs = int64(info.DurationSeconds() * 1000)
	}

	url, err := s.publish(ctx, j, path)
	if err != nil {
		return err
	}
	j.SetOutput(path, durationMs, url)
	progress.Report(report, progress.Done)
	return nil
}

func (s *Service) runConvert(ctx context.Context, j *Job, report progress.Sink) error {
	input := j.InputPaths[0]

	if err := s.advance(ctx, j, StatusLoading); err != nil {
		return err
	}
	progress.Report(report, progress.LoadStarted)

	src, err := s.codec.Load(ctx, input)
	if err != nil {
		return err
	}
	progress.Report(report, progress.Decoded)

	if err := s.advance(ctx, j, StatusExporting); err != nil {
		return err
	}
	opts := media.EncodeOpts{Format: j.Format, Bitrate: s.bitrateFor(ctx, input)}
	return s.export(ctx, j, src, opts, report)
}

func (s *Service) runMerge(ctx context.Context, j *Job, report progress.Sink) error {
	if err := s.advance(ctx, j, StatusLoading); err != nil {
		return err
	}

	loadBand := progress.NewBand(0, progress.MergeLoaded)
	results, err := s.codec.LoadAll(ctx, j.InputPaths, s.cfg.MergeConcurrency, func(done, total int) {
		progress.Report(report, loadBand.At(done, total))
	})
	if err != nil {
		return err
	}

	var buffers []*audio.PCMBuffer
	for _, res := range results {
		if res.Err != nil {
			s.logger.Warn("skipping merge input",
				slog.String("job_id", j.ID),
				slog.String("path", res.Path),
				slog.String("error", res.Err.Error()),
			)
			j.SkipInput(res.Path)
			continue
		}
		buffers = append(buffers, res.Buffer)
	}
	if len(buffers) == 0 {
		return fmt.Errorf("%w: %d inputs failed to load", ErrNoInputs, len(results))
	}
	progress.Report(report, progress.MergeLoaded)

	if err := s.advance(ctx, j, StatusAssembling); err != nil {
		return err
	}
	target := buffers[0].Format()
	merged := audio.NewPCMBuffer(target)
	for i, buf := range buffers {
		conformed, err := buf.Conform(target)
		if err != nil {
			return fmt.Errorf("%w: input %d: %w", audio.ErrBufferOperation, i, err)
		}
		if err := merged.Append(conformed); err != nil {
			return fmt.Errorf("%w: input %d: %w", audio.ErrBufferOperation, i, err)
		}
	}
	progress.Report(report, progress.MergeAssembled)

	if err := s.advance(ctx, j, StatusExporting); err != nil {
		return err
	}
	opts := media.EncodeOpts{Format: j.Format, Bitrate: s.cfg.DefaultBitrate}
	return s.export(ctx, j, merged, opts, report)
}

// export writes buf to a free path derived from the job's output path.
func (s *Service) export(ctx context.Context, j *Job, buf *audio.PCMBuffer, opts media.EncodeOpts, report progress.Sink) error {
	path, err := storage.PrepareOutput(j.OutputPath)
	if err != nil {
		return err
	}
	if err := s.codec.Save(ctx, buf, path, opts); err != nil {
		return err
	}

	url, err := s.publish(ctx, j, path)
	if err != nil {
		return err
	}
	j.SetOutput(path, buf.DurationMs(), url)
	progress.Report(report, progress.Done)
	return nil
}

func (s *Service) publish(ctx context.Context, j *Job, path string) (string, error) {
	if !j.PushToS3 {
		return "", nil
	}
	url, err := s.store.Publish(ctx, j.ID+"/"+filepath.Base(path), path)
	if err != nil {
		return "", err
	}
	s.logger.Info("output published", slog.String("job_id", j.ID), slog.String("url", url))
	return url, nil
}

// bitrateFor returns the bitrate of path, or the configured default when it
// cannot be determined.
func (s *Service) bitrateFor(ctx context.Context, path string) string {
	info, err := s.processor.Probe(ctx, path)
	if err != nil {
		s.logger.Warn("bitrate probe failed, using default",
			slog.String("path", path),
			slog.String("default", s.cfg.DefaultBitrate),
			slog.String("error", err.Error()),
		)
		return s.cfg.DefaultBitrate
	}
	if b := info.BitrateArg(); b != "" {
		return b
	}
	s.logger.Warn("bitrate unknown, using default",
		slog.String("path", path),
		slog.String("default", s.cfg.DefaultBitrate),
	)
	return s.cfg.DefaultBitrate
}

func (s *Service) advance(ctx context.Context, j *Job, status Status) error {
	from := j.GetStatus()
	if err := j.TransitionTo(status); err != nil {
		return fmt.Errorf("%w: %s to %s", err, from, status)
	}
	s.persist(ctx, j)
	s.logger.Debug("job state changed",
		slog.String("job_id", j.ID),
		slog.String("from", string(from)),
		slog.String("to", string(status)),
	)
	return nil
}

func (s *Service) fail(ctx context.Context, j *Job, err error) {
	s.logger.Error("job failed",
		slog.String("job_id", j.ID),
		slog.String("status", string(j.GetStatus())),
		slog.String("error", err.Error()),
	)
	if ferr := j.Fail(err.Error()); ferr != nil && !errors.Is(ferr, ErrInvalidTransition) {
		s.logger.Warn("failed to mark job failed", slog.String("job_id", j.ID), slog.String("error", ferr.Error()))
	}
	s.persist(ctx, j)
}

// persist saves j. Repository errors are logged; they do not stop the pipeline.
func (s *Service) persist(ctx context.Context, j *Job) {
	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
}
