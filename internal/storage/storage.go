// Package storage provides file access for media inputs and rendered
// outputs. It defines the Store port for reading and writing named blobs
// under the media root, scratch space for in-progress renders, and an
// optional S3 backend for final video delivery.
package storage

import (
	"context"
	"io"
)

// Store defines the interface for media blob access.
// Paths passed to media-root operations are relative references such as
// "audio/song.wav" or "generated_videos/generated_vid-1.mp4".
type Store interface {
	// Exists reports whether a media-root blob exists.
	Exists(rel string) bool

	// Abs resolves a media-root reference to a filesystem path.
	Abs(rel string) string

	// SaveNamed writes data to the named media-root blob, creating parent
	// directories as needed.
	SaveNamed(ctx context.Context, rel string, data io.Reader) error

	// SizeOf returns the byte length of a media-root blob.
	SizeOf(rel string) (int64, error)

	// Remove deletes a media-root blob. Missing blobs are not an error.
	Remove(rel string) error

	// ScratchPath returns a unique path in the scratch directory for an
	// in-progress render. The file is not created.
	ScratchPath(name string) string

	// CleanupScratch removes the specified scratch files.
	// It continues cleanup even if some files fail to delete.
	CleanupScratch(ctx context.Context, paths []string) error

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
