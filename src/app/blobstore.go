package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"

	"go.uber.org/zap"
)

const blobNameBytes = 32

// BlobStore holds profile image content. Implementations choose the blob
// name themselves; callers never supply one. size is the exact content
// length, or -1 when it is unknown.
type BlobStore interface {
	Save(ctx context.Context, content io.Reader, size int64, kind ImageKind) (ImagePath, error)
	Remove(ctx context.Context, path ImagePath) error
}

// CleanupResult is the outcome of a best-effort blob removal.
type CleanupResult struct {
	Path ImagePath
	Err  error
}

// Discard drops the outcome. Failures are logged, never returned.
func (r CleanupResult) Discard(logger *zap.Logger) {
	if r.Err != nil {
		logger.Warn("best-effort blob cleanup failed",
			zap.String("path", r.Path.String()),
			zap.Error(r.Err))
	}
}

func removeBestEffort(ctx context.Context, blobs BlobStore, path ImagePath) CleanupResult {
	return CleanupResult{Path: path, Err: blobs.Remove(ctx, path)}
}

func randomBlobName(kind ImageKind) (string, error) {
	b := make([]byte, blobNameBytes)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b) + "." + kind.Extension(), nil
}
