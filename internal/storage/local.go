package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrS3NotConfigured is returned when S3 operations are attempted
// without proper configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// Compile-time check that MediaStore implements Store.
var _ Store = (*MediaStore)(nil)

// MediaStore implements the Store interface on the local filesystem.
// Media blobs live under a media root directory; scratch files for
// in-progress renders live in a separate temp directory so partial output
// never lands next to finished artifacts.
type MediaStore struct {
	mediaRoot string
	tempDir   string
}

// NewMediaStore creates a new MediaStore rooted at mediaRoot.
// If tempDir is empty, a subdirectory of os.TempDir() is used.
// Both directories are created if they don't exist.
func NewMediaStore(mediaRoot, tempDir string) (*MediaStore, error) {
	if mediaRoot == "" {
		return nil, errors.New("media root is required")
	}
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "musicvideo")
	}

	if err := os.MkdirAll(mediaRoot, 0750); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &MediaStore{mediaRoot: mediaRoot, tempDir: tempDir}, nil
}

// MediaRoot returns the media root directory path.
func (s *MediaStore) MediaRoot() string {
	return s.mediaRoot
}

// TempDir returns the scratch directory path.
func (s *MediaStore) TempDir() string {
	return s.tempDir
}

// Exists reports whether a media-root blob exists.
func (s *MediaStore) Exists(rel string) bool {
	if rel == "" {
		return false
	}
	info, err := os.Stat(s.Abs(rel))
	return err == nil && !info.IsDir()
}

// Abs resolves a media-root reference to a filesystem path.
func (s *MediaStore) Abs(rel string) string {
	return filepath.Join(s.mediaRoot, filepath.FromSlash(rel))
}

// SaveNamed writes data to the named media-root blob.
func (s *MediaStore) SaveNamed(ctx context.Context, rel string, data io.Reader) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dst := s.Abs(rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}

	f, err := os.Create(dst) // #nosec G304 - dst is rooted under the media root
	if err != nil {
		return fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("close blob: %w", err)
	}
	return nil
}

// SizeOf returns the byte length of a media-root blob.
func (s *MediaStore) SizeOf(rel string) (int64, error) {
	info, err := os.Stat(s.Abs(rel))
	if err != nil {
		return 0, fmt.Errorf("stat blob %s: %w", rel, err)
	}
	return info.Size(), nil
}

// Remove deletes a media-root blob. Missing blobs are not an error.
func (s *MediaStore) Remove(rel string) error {
	if err := os.Remove(s.Abs(rel)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob %s: %w", rel, err)
	}
	return nil
}

// ScratchPath returns a unique path in the scratch directory.
func (s *MediaStore) ScratchPath(name string) string {
	return filepath.Join(s.tempDir, fmt.Sprintf("%s_%s", uuid.NewString()[:8], name))
}

// CleanupScratch removes the specified scratch files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (s *MediaStore) CleanupScratch(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove scratch file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// UploadToS3 is not supported by MediaStore and returns ErrS3NotConfigured.
func (s *MediaStore) UploadToS3(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}
