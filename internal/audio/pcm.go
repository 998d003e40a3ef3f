package audio

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/wav"
)

// resampleQuality is the interpolation quality passed to beep.Resample.
const resampleQuality = 4

// PCMBuffer is an in-memory Buffer backed by a beep.Buffer.
type PCMBuffer struct {
	buf *beep.Buffer
}

// NewPCMBuffer creates an empty buffer. Missing channel count and precision
// default to stereo 16-bit.
func NewPCMBuffer(format beep.Format) *PCMBuffer {
	if format.NumChannels <= 0 {
		format.NumChannels = 2
	}
	if format.Precision <= 0 {
		format.Precision = 2
	}
	return &PCMBuffer{buf: beep.NewBuffer(format)}
}

// FromStreamer drains s into a new buffer.
func FromStreamer(format beep.Format, s beep.Streamer) (*PCMBuffer, error) {
	b := NewPCMBuffer(format)
	b.buf.Append(s)
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	return b, nil
}

// DecodeWAV reads a PCM WAV stream into memory.
func DecodeWAV(r io.Reader) (*PCMBuffer, error) {
	s, format, err := wav.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	defer s.Close()

	if gain := decodeGain(format.Precision); gain != 0 {
		return FromStreamer(format, &effects.Gain{Streamer: s, Gain: gain})
	}
	return FromStreamer(format, s)
}

// decodeGain returns the effects.Gain that maps samples read by wav.Decode
// back onto the scale wav.Encode wrote them with. The decoder divides signed
// samples by 2^bits-1 while the encoder multiplies by 2^(bits-1)-1; 8-bit
// samples are unsigned and already symmetric.
func decodeGain(precision int) float64 {
	if precision < 2 {
		return 0
	}
	bits := float64(precision * 8)
	full := math.Exp2(bits) - 1
	half := math.Exp2(bits-1) - 1
	return full/half - 1
}

// EncodeWAV writes the buffer as a PCM WAV stream.
func (b *PCMBuffer) EncodeWAV(w io.WriteSeeker) error {
	if err := wav.Encode(w, b.stream(), b.buf.Format()); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return nil
}

// Format returns the sample format of the buffer.
func (b *PCMBuffer) Format() beep.Format {
	return b.buf.Format()
}

// SampleRate returns the sample rate of the buffer.
func (b *PCMBuffer) SampleRate() beep.SampleRate {
	return b.buf.Format().SampleRate
}

// Len returns the number of samples in the buffer.
func (b *PCMBuffer) Len() int {
	return b.buf.Len()
}

// DurationMs implements Buffer.
func (b *PCMBuffer) DurationMs() int64 {
	return b.SampleRate().D(b.buf.Len()).Milliseconds()
}

// Slice implements Buffer. An end equal to DurationMs includes the trailing
// samples that do not fill a whole millisecond.
func (b *PCMBuffer) Slice(startMs, endMs int64) (Buffer, error) {
	total := b.DurationMs()
	if startMs < 0 || endMs < startMs || endMs > total {
		return nil, fmt.Errorf("%w: [%d, %d) of %d ms", ErrSliceBounds, startMs, endMs, total)
	}

	from := b.samplesAt(startMs)
	to := b.samplesAt(endMs)
	if endMs == total && startMs < endMs {
		to = b.buf.Len()
	}

	out := NewPCMBuffer(b.buf.Format())
	out.buf.Append(b.buf.Streamer(from, to))
	return out, nil
}

// Append implements Buffer. other must be a *PCMBuffer with the same sample
// rate and channel count.
func (b *PCMBuffer) Append(other Buffer) error {
	o, ok := other.(*PCMBuffer)
	if !ok {
		return fmt.Errorf("%w: %T is not a PCM buffer", ErrIncompatibleBuffer, other)
	}

	f, of := b.buf.Format(), o.buf.Format()
	if f.SampleRate != of.SampleRate || f.NumChannels != of.NumChannels {
		return fmt.Errorf("%w: %d Hz/%d ch onto %d Hz/%d ch",
			ErrIncompatibleBuffer, of.SampleRate, of.NumChannels, f.SampleRate, f.NumChannels)
	}

	b.buf.Append(o.stream())
	return nil
}

// Empty implements Buffer.
func (b *PCMBuffer) Empty() Buffer {
	return NewPCMBuffer(b.buf.Format())
}

// Resample returns a copy converted to rate. The receiver is returned
// unchanged when it already has that rate.
func (b *PCMBuffer) Resample(rate beep.SampleRate) (*PCMBuffer, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrIncompatibleBuffer, rate)
	}
	if rate == b.SampleRate() {
		return b, nil
	}

	format := b.buf.Format()
	s := beep.Resample(resampleQuality, format.SampleRate, rate, b.stream())
	format.SampleRate = rate
	return FromStreamer(format, s)
}

// Conform returns a buffer with the sample rate and channel count of format,
// so that it can be appended to a buffer of that format.
func (b *PCMBuffer) Conform(format beep.Format) (*PCMBuffer, error) {
	out, err := b.Resample(format.SampleRate)
	if err != nil {
		return nil, err
	}
	if format.NumChannels <= 0 || out.Format().NumChannels == format.NumChannels {
		return out, nil
	}

	f := out.Format()
	f.NumChannels = format.NumChannels
	return FromStreamer(f, out.stream())
}

// Samples copies the decoded samples out of the buffer.
func (b *PCMBuffer) Samples() [][2]float64 {
	out := make([][2]float64, b.buf.Len())
	s := b.stream()
	for filled := 0; filled < len(out); {
		n, ok := s.Stream(out[filled:])
		filled += n
		if !ok {
			break
		}
	}
	return out
}

func (b *PCMBuffer) stream() beep.StreamSeeker {
	return b.buf.Streamer(0, b.buf.Len())
}

func (b *PCMBuffer) samplesAt(ms int64) int {
	n := b.SampleRate().N(time.Duration(ms) * time.Millisecond)
	return min(n, b.buf.Len())
}

var _ Buffer = (*PCMBuffer)(nil)
