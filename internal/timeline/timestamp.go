package timeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTimestamp is returned when a timestamp cannot be parsed.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// ParseTimestamp converts a timestamp to milliseconds.
//
// Accepted forms: "hh:mm:ss", "mm:ss", "ss", each with an optional fractional
// part separated by "." or "," (e.g. "01:02:03.250"), and a raw millisecond
// count with an "ms" suffix ("1500ms").
func ParseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}

	if raw, ok := strings.CutSuffix(s, "ms"); ok {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
		}
		return ms, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}

	secPart := parts[len(parts)-1]
	var fracPart string
	if i := strings.IndexAny(secPart, ".,"); i >= 0 {
		secPart, fracPart = secPart[:i], secPart[i+1:]
	}

	var total int64
	units := []int64{3600, 60}
	for i, p := range parts[:len(parts)-1] {
		v, err := parseField(p)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
		}
		total += v * units[i+3-len(parts)] * 1000
	}

	sec, err := parseField(secPart)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	total += sec * 1000

	if fracPart != "" {
		ms, err := parseFraction(fracPart)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
		}
		total += ms
	}

	return total, nil
}

// ParseRange parses "<start>-<end>" where both sides are timestamps accepted
// by ParseTimestamp. The range is not validated beyond parsing.
func ParseRange(s string) (Range, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return Range{}, fmt.Errorf("%w: range %q must be <start>-<end>", ErrInvalidTimestamp, s)
	}

	startMs, err := ParseTimestamp(start)
	if err != nil {
		return Range{}, err
	}
	endMs, err := ParseTimestamp(end)
	if err != nil {
		return Range{}, err
	}

	return Range{Start: startMs, End: endMs}, nil
}

// FormatTimestamp renders milliseconds as "hh:mm:ss.mmm".
func FormatTimestamp(ms int64) string {
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	sec := ms / 1000 % 60
	return fmt.Sprintf("%s%02d:%02d:%02d.%03d", sign, h, m, sec, ms%1000)
}

func parseField(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("empty field")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.New("negative field")
	}
	return v, nil
}

// parseFraction reads up to millisecond precision; extra digits are truncated.
func parseFraction(s string) (int64, error) {
	if len(s) > 3 {
		s = s[:3]
	}
	for len(s) < 3 {
		s += "0"
	}
	return parseField(s)
}
