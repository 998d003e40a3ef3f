package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInvalidSpeed is returned when the speed factor is outside the atempo range.
	ErrInvalidSpeed = errors.New("speed factor must be between 0.5 and 2.0")
	// ErrInputNotFound is returned when the source file does not exist.
	ErrInputNotFound = errors.New("input file not found")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
)

// FFmpegProcessor implements Processor using the ffmpeg and ffprobe CLIs.
type FFmpegProcessor struct {
	ffmpegPath  string
	ffprobePath string
	launch      LaunchConfig
}

// Option configures an FFmpegProcessor.
type Option func(*FFmpegProcessor)

// WithFFprobePath sets the ffprobe binary. Defaults to "ffprobe" (found via PATH).
func WithFFprobePath(path string) Option {
	return func(p *FFmpegProcessor) {
		if path != "" {
			p.ffprobePath = path
		}
	}
}

// WithLaunchConfig sets how child processes are started.
func WithLaunchConfig(cfg LaunchConfig) Option {
	return func(p *FFmpegProcessor) {
		p.launch = cfg
	}
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegProcessor(ffmpegPath string, opts ...Option) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	p := &FFmpegProcessor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: "ffprobe",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Available reports whether the ffmpeg binary can be found.
func (p *FFmpegProcessor) Available() bool {
	_, err := exec.LookPath(p.ffmpegPath)
	return err == nil
}

// Transcode writes the audio of src to dst in the requested format.
func (p *FFmpegProcessor) Transcode(ctx context.Context, src, dst string, opts EncodeOpts) error {
	if err := checkInput(src); err != nil {
		return err
	}

	format := opts.Format
	if format == "" {
		format = FormatFromPath(dst)
	}
	container, err := LookupContainer(format)
	if err != nil {
		return err
	}

	args := []string{
		"-y",                    // Overwrite output file
		"-i", src,               // Input file
		"-vn",                   // Drop any video stream
		"-c:a", container.Codec, // Audio codec
	}
	if opts.Bitrate != "" && !container.Lossless {
		args = append(args, "-b:a", opts.Bitrate)
	}
	args = append(args, "-f", container.Muxer, dst)

	return p.runFFmpeg(ctx, args)
}

// ChangeSpeed retimes src with the atempo filter, which preserves pitch.
func (p *FFmpegProcessor) ChangeSpeed(ctx context.Context, src, dst string, factor float64) error {
	if factor < MinSpeedFactor || factor > MaxSpeedFactor {
		return fmt.Errorf("%w: got %.2f", ErrInvalidSpeed, factor)
	}
	if err := checkInput(src); err != nil {
		return err
	}

	args := []string{
		"-y",
		"-i", src,
		"-filter:a", "atempo=" + strconv.FormatFloat(factor, 'f', -1, 64),
		"-vn",
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// Probe runs ffprobe against path and decodes its JSON report.
func (p *FFmpegProcessor) Probe(ctx context.Context, path string) (ProbeResult, error) {
	if err := checkInput(path); err != nil {
		return ProbeResult{}, err
	}

	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := p.launch.Apply(exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-of", "json",
		"--", path,
	))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ProbeResult{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return ProbeResult{}, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, strings.TrimSpace(stderr.String()))
	}

	return parseProbe(stdout.Bytes())
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	if len(args) > 0 {
		if dir := filepath.Dir(args[len(args)-1]); dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
		}
	}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := p.launch.Apply(exec.CommandContext(ctx, p.ffmpegPath, append([]string{"-hide_banner", "-loglevel", "error"}, args...)...))

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

func checkInput(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return fmt.Errorf("stat input: %w", err)
	}
	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Verify interface implementation at compile time.
var _ Processor = (*FFmpegProcessor)(nil)
