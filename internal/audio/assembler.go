package audio

import (
	"fmt"
	"log/slog"

	"github.com/maauso/trimtofit/internal/progress"
	"github.com/maauso/trimtofit/internal/timeline"
)

// Assembler joins the keep ranges of a source buffer into one continuous buffer.
type Assembler struct {
	band   progress.Band
	logger *slog.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithBand sets the progress band the assembler animates across.
func WithBand(b progress.Band) AssemblerOption {
	return func(a *Assembler) {
		a.band = b
	}
}

// WithLogger sets the logger used for per-range debug output.
func WithLogger(logger *slog.Logger) AssemblerOption {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAssembler creates an Assembler reporting across [Loaded, Assembled].
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		band:   progress.NewBand(progress.Loaded, progress.Assembled),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Band returns the progress band of the assembler.
func (a *Assembler) Band() progress.Band {
	return a.band
}

// Assemble slices src at each keep range in order and concatenates the slices.
// keep must already be resolved. An empty keep list yields an empty buffer.
// On failure no partial output is returned.
func (a *Assembler) Assemble(src Buffer, keep []timeline.Range, sink progress.Sink) (Buffer, error) {
	sink = progress.OrNop(sink)
	out := src.Empty()

	n := len(keep)
	if n == 0 {
		progress.Report(sink, a.band.Hi)
		return out, nil
	}

	total := src.DurationMs()
	for i, r := range keep {
		if r.Start < 0 || r.End < r.Start || r.End > total {
			return nil, fmt.Errorf("%w: range %d %s exceeds [0, %d]", ErrRangeOutOfBounds, i, r, total)
		}

		part, err := src.Slice(r.Start, r.End)
		if err != nil {
			return nil, fmt.Errorf("%w: slice %s: %w", ErrBufferOperation, r, err)
		}
		if err := out.Append(part); err != nil {
			return nil, fmt.Errorf("%w: append %s: %w", ErrBufferOperation, r, err)
		}

		a.logger.Debug("range assembled", "index", i+1, "of", n, "range", r.String())
		progress.Report(sink, a.band.At(i+1, n))
	}

	return out, nil
}
