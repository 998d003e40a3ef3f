package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/trimtofit/internal/media"
)

// Transcoder converts audio files between containers.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string, opts media.EncodeOpts) error
}

// FileCodec loads audio files into PCM buffers and writes them back.
// WAV is handled in-process; every other container goes through a
// temporary WAV and the transcoder.
type FileCodec struct {
	transcoder Transcoder
	tempDir    string
}

// NewFileCodec creates a FileCodec that keeps intermediate WAV files in tempDir.
func NewFileCodec(transcoder Transcoder, tempDir string) *FileCodec {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &FileCodec{
		transcoder: transcoder,
		tempDir:    tempDir,
	}
}

// LoadResult is the outcome of decoding one input of LoadAll.
type LoadResult struct {
	Path   string
	Buffer *PCMBuffer
	Err    error
}

// Load decodes the file at path.
func (c *FileCodec) Load(ctx context.Context, path string) (*PCMBuffer, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", media.ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("stat input: %w", err)
	}

	if media.FormatFromPath(path) == "wav" {
		buf, err := readWAV(path)
		if err == nil {
			return buf, nil
		}
		// Not every WAV is 8/16/24-bit PCM; let ffmpeg normalize it.
	}

	tmp, err := c.tempWAV("decode-*.wav")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	if err := c.transcoder.Transcode(ctx, path, tmp, media.EncodeOpts{Format: "wav"}); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return readWAV(tmp)
}

// Save writes buf to path in the requested container.
// The format defaults to the extension of path.
func (c *FileCodec) Save(ctx context.Context, buf *PCMBuffer, path string, opts media.EncodeOpts) error {
	if opts.Format == "" {
		opts.Format = media.FormatFromPath(path)
	}
	if _, err := media.LookupContainer(opts.Format); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if opts.Format == "wav" {
		return writeWAV(buf, path)
	}

	tmp, err := c.tempWAV("encode-*.wav")
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if err := writeWAV(buf, tmp); err != nil {
		return err
	}
	if err := c.transcoder.Transcode(ctx, tmp, path, opts); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

// LoadAll decodes paths concurrently, at most limit at a time, and returns
// one result per path in input order. A failing input is recorded in its
// result and does not stop the others. onLoaded, if set, is called
// serially after each input finishes with the number finished so far.
func (c *FileCodec) LoadAll(ctx context.Context, paths []string, limit int, onLoaded func(done, total int)) ([]LoadResult, error) {
	results := make([]LoadResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	var (
		mu   sync.Mutex
		done int
	)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			buf, err := c.Load(gctx, path)
			results[i] = LoadResult{Path: path, Buffer: buf, Err: err}

			mu.Lock()
			defer mu.Unlock()
			done++
			if onLoaded != nil {
				onLoaded(done, len(paths))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *FileCodec) tempWAV(pattern string) (string, error) {
	if err := os.MkdirAll(c.tempDir, 0750); err != nil {
		return "", fmt.Errorf("create temp directory: %w", err)
	}
	f, err := os.CreateTemp(c.tempDir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return name, nil
}

func readWAV(path string) (*PCMBuffer, error) {
	// #nosec G304 - path is provided by the job owner
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return DecodeWAV(f)
}

func writeWAV(buf *PCMBuffer, path string) error {
	// #nosec G304 - path is provided by the job owner
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := buf.EncodeWAV(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
