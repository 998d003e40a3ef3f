// Package timeline resolves user-selected time ranges into the ordered set of
// ranges to retain from an audio recording.
//
// All offsets are integer milliseconds. The package performs no audio work;
// it only computes which parts of the source the assembler should copy.
package timeline

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidRange is returned when a range ends before it starts.
var ErrInvalidRange = errors.New("invalid range: end before start")

// ErrUnknownMode is returned by Resolve for a mode other than keep or remove.
var ErrUnknownMode = errors.New("unknown mode")

// Mode selects how input ranges are interpreted.
type Mode string

const (
	// ModeRemove treats input ranges as audio to excise.
	ModeRemove Mode = "remove"
	// ModeKeep treats input ranges as the only audio to retain.
	ModeKeep Mode = "keep"
)

// IsValid returns true if the mode is known.
func (m Mode) IsValid() bool {
	return m == ModeRemove || m == ModeKeep
}

// Range is a half-open interval [Start, End) in milliseconds.
type Range struct {
	Start int64 `json:"start_ms"`
	End   int64 `json:"end_ms"`
}

// Len returns the length of the range in milliseconds.
func (r Range) Len() int64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// IsEmpty reports whether the range covers no time.
func (r Range) IsEmpty() bool {
	return r.End <= r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", FormatTimestamp(r.Start), FormatTimestamp(r.End))
}

// Normalize prepares ranges for resolution against a source of totalMs.
//
// Inverted ranges (End < Start) are rejected with ErrInvalidRange. Negative
// offsets are clamped to 0 and offsets past totalMs are clamped to totalMs.
// Ranges left empty after clamping are dropped. The result is sorted by
// start and the input slice is not modified.
func Normalize(ranges []Range, totalMs int64) ([]Range, error) {
	if totalMs < 0 {
		totalMs = 0
	}

	out := make([]Range, 0, len(ranges))
	for i, r := range ranges {
		if r.End < r.Start {
			return nil, fmt.Errorf("%w: range %d (%d-%d)", ErrInvalidRange, i, r.Start, r.End)
		}
		r.Start = clamp(r.Start, 0, totalMs)
		r.End = clamp(r.End, 0, totalMs)
		if r.IsEmpty() {
			continue
		}
		out = append(out, r)
	}

	sortByStart(out)
	return out, nil
}

// Resolve returns the ranges to keep for the given mode.
//
// In ModeKeep the normalized input is returned sorted; overlapping ranges are
// left as they are. In ModeRemove the input is inverted against totalMs.
// An empty result means nothing is kept and is not an error.
func Resolve(ranges []Range, totalMs int64, mode Mode) ([]Range, error) {
	normalized, err := Normalize(ranges, totalMs)
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeKeep:
		return normalized, nil
	case ModeRemove:
		return Invert(normalized, totalMs), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// Invert returns the complement of remove within [0, totalMs].
// remove does not have to be sorted or disjoint.
func Invert(remove []Range, totalMs int64) []Range {
	if totalMs <= 0 {
		return []Range{}
	}

	sorted := make([]Range, len(remove))
	copy(sorted, remove)
	sortByStart(sorted)

	keep := make([]Range, 0, len(sorted)+1)
	var cursor int64
	for _, r := range sorted {
		if r.Start > cursor {
			keep = append(keep, Range{Start: cursor, End: min(r.Start, totalMs)})
		}
		cursor = max(cursor, r.End)
		if cursor >= totalMs {
			break
		}
	}

	if cursor < totalMs {
		keep = append(keep, Range{Start: cursor, End: totalMs})
	}
	return keep
}

// Merge returns the union of ranges as a sorted, disjoint list.
// Adjacent ranges are joined.
func Merge(ranges []Range) []Range {
	sorted := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if !r.IsEmpty() {
			sorted = append(sorted, r)
		}
	}
	sortByStart(sorted)

	merged := make([]Range, 0, len(sorted))
	for _, r := range sorted {
		if n := len(merged); n > 0 && r.Start <= merged[n-1].End {
			merged[n-1].End = max(merged[n-1].End, r.End)
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// Measure returns the total time covered by the union of ranges.
func Measure(ranges []Range) int64 {
	return Sum(Merge(ranges))
}

// Sum returns the sum of range lengths. Overlaps are counted twice.
func Sum(ranges []Range) int64 {
	var total int64
	for _, r := range ranges {
		total += r.Len()
	}
	return total
}

func sortByStart(ranges []Range) {
	sort.SliceStable(ranges, func(i, j int) bool {
		if ranges[i].Start == ranges[j].Start {
			return ranges[i].End < ranges[j].End
		}
		return ranges[i].Start < ranges[j].Start
	})
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
