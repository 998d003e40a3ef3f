// Package storage places audio files on disk and optionally publishes
// finished outputs to S3.
package storage

import (
	"context"
	"io"
)

// Storage holds intermediate inputs and publishes finished outputs.
type Storage interface {
	// SaveTemp copies data into a new temporary file named after name and
	// returns its path. Streams such as stdin become addressable inputs this way.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Publish uploads the file at path under key and returns its URL.
	// Returns ErrS3NotConfigured when no bucket is configured.
	Publish(ctx context.Context, key, path string) (url string, err error)
}
