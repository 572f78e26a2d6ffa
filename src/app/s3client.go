package app

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// minPartSize is the smallest multipart part S3 accepts.
const minPartSize = 5 << 20

// ClientMinio is the subset of *minio.Client the blob store uses.
type ClientMinio interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (info minio.UploadInfo, err error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinioS3Client stores profile images as objects keyed by their ImagePath.
type MinioS3Client struct {
	endpoint   string
	bucketName string
	client     ClientMinio
	logger     *zap.Logger
}

// NewMinioS3Client creates a new MinioS3Client instance.
func NewMinioS3Client(endpoint, accessKeyID, secretAccessKey, bucketName string, useSSL bool, logger *zap.Logger) (*MinioS3Client, error) {
	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio s3 client for %s: %w", endpoint, err)
	}
	return newMinioS3Client(endpoint, bucketName, minioClient, logger), nil
}

func newMinioS3Client(endpoint, bucketName string, client ClientMinio, logger *zap.Logger) *MinioS3Client {
	return &MinioS3Client{
		endpoint:   endpoint,
		bucketName: bucketName,
		client:     client,
		logger:     logger,
	}
}

// CheckBucket fails fast when the configured bucket is missing.
func (s3 *MinioS3Client) CheckBucket(ctx context.Context) error {
	exists, err := s3.client.BucketExists(ctx, s3.bucketName)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s3.bucketName, err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s3.bucketName)
	}
	return nil
}

// Save uploads content under a fresh random key. An unknown size is sent as
// a multipart upload in minimum-size parts.
func (s3 *MinioS3Client) Save(ctx context.Context, content io.Reader, size int64, kind ImageKind) (ImagePath, error) {
	name, err := randomBlobName(kind)
	if err != nil {
		return ImagePath{}, fmt.Errorf("generate blob name: %w", err)
	}
	path := newImagePath(name)
	opts := minio.PutObjectOptions{ContentType: kind.MimeType()}
	if size < 0 {
		size = -1
		opts.PartSize = minPartSize
	}
	_, err = s3.client.PutObject(ctx,
		s3.bucketName,
		path.String(),
		content,
		size,
		opts)
	if err != nil {
		return ImagePath{}, fmt.Errorf("upload %s: %w", path, err)
	}
	s3.logger.Debug("uploaded object", zap.String("bucket", s3.bucketName), zap.String("key", path.String()))
	return path, nil
}

func (s3 *MinioS3Client) Remove(ctx context.Context, path ImagePath) error {
	if path.IsZero() {
		return fmt.Errorf("empty image path")
	}
	if err := s3.client.RemoveObject(ctx, s3.bucketName, path.String(), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	s3.logger.Debug("removed object", zap.String("bucket", s3.bucketName), zap.String("key", path.String()))
	return nil
}

var _ BlobStore = (*MinioS3Client)(nil)
