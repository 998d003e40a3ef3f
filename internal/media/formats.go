package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupportedFormat is returned for target formats without an encoder mapping.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Container describes how ffmpeg writes one target extension.
type Container struct {
	// Muxer is the value passed to -f.
	Muxer string
	// Codec is the value passed to -c:a.
	Codec string
	// Lossless formats ignore the bitrate.
	Lossless bool
}

// containers maps file extensions to the muxer/codec pair ffmpeg needs.
// m4a and aac are not muxer names, so they are mapped explicitly.
var containers = map[string]Container{
	"mp3":  {Muxer: "mp3", Codec: "libmp3lame"},
	"wav":  {Muxer: "wav", Codec: "pcm_s16le", Lossless: true},
	"flac": {Muxer: "flac", Codec: "flac", Lossless: true},
	"ogg":  {Muxer: "ogg", Codec: "libvorbis"},
	"opus": {Muxer: "ogg", Codec: "libopus"},
	"m4a":  {Muxer: "mp4", Codec: "aac"},
	"aac":  {Muxer: "adts", Codec: "aac"},
}

// LookupContainer returns the container settings for a format name or extension.
func LookupContainer(format string) (Container, error) {
	c, ok := containers[normalizeFormat(format)]
	if !ok {
		return Container{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return c, nil
}

// FormatFromPath returns the lower-case extension of path without the dot.
func FormatFromPath(path string) string {
	return normalizeFormat(filepath.Ext(path))
}

// SupportedFormats lists the target formats in alphabetical order.
func SupportedFormats() []string {
	out := make([]string, 0, len(containers))
	for f := range containers {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func normalizeFormat(format string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
}
