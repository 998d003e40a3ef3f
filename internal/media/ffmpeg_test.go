package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// skipIfNoFFmpeg skips the test if ffmpeg or ffprobe is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH, skipping test", bin)
		}
	}
}

// createTestTone writes a mono sine tone of the given duration.
func createTestTone(t *testing.T, path string, durationSec float64) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("sine=frequency=440:duration=%.3f", durationSec),
		"-ar", "44100", "-ac", "1",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test tone: %v\noutput: %s", err, output)
	}
}

func TestNewFFmpegProcessor(t *testing.T) {
	t.Run("default paths", func(t *testing.T) {
		p := NewFFmpegProcessor("")
		if p.ffmpegPath != "ffmpeg" {
			t.Errorf("expected default path 'ffmpeg', got %q", p.ffmpegPath)
		}
		if p.ffprobePath != "ffprobe" {
			t.Errorf("expected default path 'ffprobe', got %q", p.ffprobePath)
		}
	})

	t.Run("custom paths", func(t *testing.T) {
		p := NewFFmpegProcessor("/usr/local/bin/ffmpeg",
			WithFFprobePath("/usr/local/bin/ffprobe"),
			WithLaunchConfig(LaunchConfig{HideWindow: true}),
		)
		if p.ffmpegPath != "/usr/local/bin/ffmpeg" {
			t.Errorf("expected custom path, got %q", p.ffmpegPath)
		}
		if p.ffprobePath != "/usr/local/bin/ffprobe" {
			t.Errorf("expected custom ffprobe path, got %q", p.ffprobePath)
		}
		if !p.launch.HideWindow {
			t.Error("expected launch config to be applied")
		}
	})
}

func TestTranscode_Validation(t *testing.T) {
	p := NewFFmpegProcessor("")
	ctx := context.Background()
	tmpDir := t.TempDir()

	t.Run("missing input", func(t *testing.T) {
		err := p.Transcode(ctx, filepath.Join(tmpDir, "missing.wav"), filepath.Join(tmpDir, "out.mp3"), EncodeOpts{})
		if !errors.Is(err, ErrInputNotFound) {
			t.Errorf("expected ErrInputNotFound, got %v", err)
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		src := filepath.Join(tmpDir, "in.wav")
		if err := os.WriteFile(src, []byte("RIFF"), 0600); err != nil {
			t.Fatal(err)
		}
		err := p.Transcode(ctx, src, filepath.Join(tmpDir, "out.xyz"), EncodeOpts{})
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("expected ErrUnsupportedFormat, got %v", err)
		}
	})
}

func TestTranscode(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "tone.wav")
	createTestTone(t, src, 2)

	p := NewFFmpegProcessor("")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, format := range []string{"mp3", "flac", "m4a", "wav"} {
		t.Run(format, func(t *testing.T) {
			dst := filepath.Join(tmpDir, "nested", "out."+format)
			if err := p.Transcode(ctx, src, dst, EncodeOpts{Bitrate: "128k"}); err != nil {
				t.Fatalf("Transcode failed: %v", err)
			}

			info, err := p.Probe(ctx, dst)
			if err != nil {
				t.Fatalf("Probe failed: %v", err)
			}
			if info.AudioStreamCount() != 1 {
				t.Errorf("expected 1 audio stream, got %d", info.AudioStreamCount())
			}
			if d := info.DurationSeconds(); d < 1.9 || d > 2.2 {
				t.Errorf("expected ~2s duration, got %.3f", d)
			}
		})
	}
}

func TestChangeSpeed(t *testing.T) {
	p := NewFFmpegProcessor("")
	ctx := context.Background()

	t.Run("rejects factor out of range", func(t *testing.T) {
		for _, f := range []float64{0.49, 2.01, 0, -1} {
			err := p.ChangeSpeed(ctx, "in.wav", "out.wav", f)
			if !errors.Is(err, ErrInvalidSpeed) {
				t.Errorf("factor %v: expected ErrInvalidSpeed, got %v", f, err)
			}
		}
	})

	t.Run("doubles speed", func(t *testing.T) {
		skipIfNoFFmpeg(t)

		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "tone.wav")
		dst := filepath.Join(tmpDir, "fast.wav")
		createTestTone(t, src, 4)

		if err := p.ChangeSpeed(ctx, src, dst, 2.0); err != nil {
			t.Fatalf("ChangeSpeed failed: %v", err)
		}

		info, err := p.Probe(ctx, dst)
		if err != nil {
			t.Fatalf("Probe failed: %v", err)
		}
		if d := info.DurationSeconds(); d < 1.9 || d > 2.1 {
			t.Errorf("expected ~2s duration, got %.3f", d)
		}
	})
}

func TestProbe_MissingInput(t *testing.T) {
	p := NewFFmpegProcessor("")
	_, err := p.Probe(context.Background(), "/non/existent/file.mp3")
	if !errors.Is(err, ErrInputNotFound) {
		t.Errorf("expected ErrInputNotFound, got %v", err)
	}
}

func TestFFmpegError(t *testing.T) {
	err := &FFmpegError{
		Args:   []string{"-i", "input.mp3", "-c:a", "aac", "output.m4a"},
		Stderr: "Error opening input file",
		Err:    fmt.Errorf("exit status 1"),
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "exit status 1") {
		t.Error("Error() should contain underlying error")
	}
	if !strings.Contains(errStr, "Error opening input file") {
		t.Error("Error() should contain stderr")
	}

	unwrapped := err.Unwrap()
	if unwrapped == nil || unwrapped.Error() != "exit status 1" {
		t.Errorf("Unwrap() returned wrong error: %v", unwrapped)
	}
}
