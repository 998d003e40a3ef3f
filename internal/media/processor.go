// Package media wraps the ffmpeg and ffprobe command line tools used to
// decode, encode, retime, and inspect audio files.
package media

import "context"

// Speed factor bounds accepted by the atempo filter in a single pass.
const (
	MinSpeedFactor = 0.5
	MaxSpeedFactor = 2.0
)

// EncodeOpts configures an encode or container conversion.
type EncodeOpts struct {
	// Format is the target extension without the dot (e.g. "mp3", "m4a").
	// When empty it is derived from the destination path.
	Format string
	// Bitrate is passed to the encoder as-is (e.g. "192k", "128000").
	// It is ignored for lossless formats.
	Bitrate string
}

// Processor defines the audio operations delegated to an external tool.
type Processor interface {
	// Transcode reads any audio (or video) file ffmpeg understands and writes
	// its audio stream to dst in the requested format.
	Transcode(ctx context.Context, src, dst string, opts EncodeOpts) error

	// ChangeSpeed writes src to dst played back factor times faster without
	// changing pitch. factor must be within [MinSpeedFactor, MaxSpeedFactor].
	ChangeSpeed(ctx context.Context, src, dst string, factor float64) error

	// Probe returns container and stream metadata for path.
	Probe(ctx context.Context, path string) (ProbeResult, error)
}
