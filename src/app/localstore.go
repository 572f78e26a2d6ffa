package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalBlobStore keeps profile images under <root>/profile-images, where
// root is the publicly served directory.
type LocalBlobStore struct {
	root string
}

func NewLocalBlobStore(root string) (*LocalBlobStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &LocalBlobStore{root: abs}, nil
}

// Dir is the directory blobs are written to.
func (s *LocalBlobStore) Dir() string {
	return filepath.Join(s.root, ProfileImagesDir)
}

// Save writes content to a temp file in the target directory and renames
// it into place, so readers never observe a partial blob.
func (s *LocalBlobStore) Save(ctx context.Context, content io.Reader, size int64, kind ImageKind) (ImagePath, error) {
	if err := ctx.Err(); err != nil {
		return ImagePath{}, err
	}
	name, err := randomBlobName(kind)
	if err != nil {
		return ImagePath{}, fmt.Errorf("generate blob name: %w", err)
	}
	dir := s.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ImagePath{}, fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return ImagePath{}, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	written, err := io.Copy(tmp, content)
	if err != nil {
		cleanup()
		return ImagePath{}, fmt.Errorf("write blob: %w", err)
	}
	if size >= 0 && written != size {
		cleanup()
		return ImagePath{}, fmt.Errorf("write blob: got %d bytes, want %d", written, size)
	}
	if err := tmp.Chmod(0o644); err != nil {
		cleanup()
		return ImagePath{}, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return ImagePath{}, err
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpPath)
		return ImagePath{}, fmt.Errorf("commit blob: %w", err)
	}
	return newImagePath(name), nil
}

// Remove deletes a blob. A missing file is not an error.
func (s *LocalBlobStore) Remove(ctx context.Context, path ImagePath) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path.IsZero() {
		return fmt.Errorf("empty image path")
	}
	if err := os.Remove(filepath.Join(s.Dir(), path.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

var _ BlobStore = (*LocalBlobStore)(nil)
