// Package audio slices and concatenates decoded audio addressed by
// millisecond offsets.
package audio

import "errors"

// Static errors for buffer operations.
var (
	// ErrBufferOperation wraps any failure reported by a Buffer while assembling.
	ErrBufferOperation = errors.New("buffer operation failed")
	// ErrRangeOutOfBounds is returned when a keep range leaves the source buffer.
	ErrRangeOutOfBounds = errors.New("range out of bounds")
	// ErrSliceBounds is returned by Slice for offsets outside the buffer.
	ErrSliceBounds = errors.New("slice bounds out of range")
	// ErrIncompatibleBuffer is returned by Append when the buffers cannot be joined.
	ErrIncompatibleBuffer = errors.New("incompatible buffer")
)

// Buffer is decoded audio owned by a single operation.
type Buffer interface {
	// DurationMs returns the length of the buffer in milliseconds.
	DurationMs() int64
	// Slice returns a new buffer holding exactly the audio in [startMs, endMs).
	Slice(startMs, endMs int64) (Buffer, error)
	// Append extends the receiver in place with the content of other.
	Append(other Buffer) error
	// Empty returns a zero-length buffer with the receiver's format.
	Empty() Buffer
}
