package timeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"45", 45000},
		{"1:30", 90000},
		{"01:02:03", 3723000},
		{"00:00:01.5", 1500},
		{"00:00:01,25", 1250},
		{"00:00:01.2345", 1234},
		{"1500ms", 1500},
		{" 2:00 ", 120000},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "1:2:3:4", "-5", "1:-2", "1::2", "xms", "-10ms", "1.x"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseTimestamp(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTimestamp))
		})
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("1:30-2:00")
	require.NoError(t, err)
	assert.Equal(t, Range{Start: 90000, End: 120000}, r)

	_, err = ParseRange("1:30")
	assert.ErrorIs(t, err, ErrInvalidTimestamp)

	_, err = ParseRange("1:30-zz")
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:00.000", FormatTimestamp(0))
	assert.Equal(t, "01:02:03.045", FormatTimestamp(3723045))
	assert.Equal(t, "00:01:30.000-00:02:00.000", Range{Start: 90000, End: 120000}.String())
}
