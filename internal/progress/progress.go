// Package progress reports the completion of a processing pipeline as a
// fraction in [0, 1].
//
// Values are computed in basis points (1/10000) so that stepping through a
// band never regresses because of floating point error.
package progress

import "sync"

// Scale is the number of basis points in a complete operation.
const Scale = 10000

// Pipeline marks shared by the processing operations.
const (
	LoadStarted = 1000  // 0.10
	Loaded      = 3000  // 0.30
	Assembled   = 8000  // 0.80
	Done        = Scale // 1.00
)

// Marks used by the convert and merge pipelines.
const (
	Decoded        = 5000 // 0.50, convert: input decoded
	MergeLoaded    = 7000 // 0.70, merge: every input decoded
	MergeAssembled = 7500 // 0.75, merge: inputs concatenated
)

// Sink receives progress fractions. Sinks are called synchronously and must
// not block for long.
type Sink func(fraction float64)

// Nop discards progress.
func Nop(float64) {}

// OrNop returns s, or Nop when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop
	}
	return s
}

// Fraction converts basis points to a fraction clamped to [0, 1].
func Fraction(bp int) float64 {
	if bp <= 0 {
		return 0
	}
	if bp >= Scale {
		return 1
	}
	return float64(bp) / Scale
}

// Band is the slice of the overall progress owned by one stage, in basis points.
type Band struct {
	Lo int
	Hi int
}

// NewBand returns a band between lo and hi basis points. Values are clamped
// to [0, Scale] and swapped if reversed.
func NewBand(lo, hi int) Band {
	lo, hi = clampBP(lo), clampBP(hi)
	if hi < lo {
		lo, hi = hi, lo
	}
	return Band{Lo: lo, Hi: hi}
}

// At returns the position after completing step i of n.
// At(0, n) is Lo and At(n, n) is exactly Hi.
func (b Band) At(i, n int) int {
	if n <= 0 || i >= n {
		return b.Hi
	}
	if i <= 0 {
		return b.Lo
	}
	return b.Lo + (b.Hi-b.Lo)*i/n
}

// Report emits bp to sink as a fraction.
func Report(sink Sink, bp int) {
	OrNop(sink)(Fraction(bp))
}

// Monotonic wraps sink so that the values it receives are clamped to [0, 1]
// and never decrease. Regressions are dropped rather than forwarded.
func Monotonic(sink Sink) Sink {
	sink = OrNop(sink)
	var (
		mu   sync.Mutex
		last = -1.0
	)
	return func(f float64) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}

		mu.Lock()
		if f < last {
			mu.Unlock()
			return
		}
		last = f
		mu.Unlock()

		sink(f)
	}
}

func clampBP(bp int) int {
	if bp < 0 {
		return 0
	}
	if bp > Scale {
		return Scale
	}
	return bp
}
