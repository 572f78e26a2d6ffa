package app

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	minio_mock "wadserv/src/app/mock"
)

func TestMinioS3Client(t *testing.T) {
	ctx := context.Background()

	t.Run("Save", func(t *testing.T) {
		client := new(minio_mock.MockClient)
		s3 := newMinioS3Client("mockEndpoint", "mockBucket", client, zap.NewNop())
		content := bytes.NewReader([]byte("png bytes"))

		client.On("PutObject", ctx, "mockBucket", mock.MatchedBy(func(key string) bool {
			return imageRefPattern.MatchString(key)
		}), content, int64(content.Len()), minio.PutObjectOptions{ContentType: "image/png"}).
			Return(minio.UploadInfo{}, nil).Once()

		path, err := s3.Save(ctx, content, int64(content.Len()), ImagePNG)
		require.NoError(t, err)
		assert.Regexp(t, imageRefPattern, path.String())
		client.AssertExpectations(t)
	})

	t.Run("SaveError", func(t *testing.T) {
		client := new(minio_mock.MockClient)
		s3 := newMinioS3Client("mockEndpoint", "mockBucket", client, zap.NewNop())
		client.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(minio.UploadInfo{}, errors.New("connection refused"))

		path, err := s3.Save(ctx, bytes.NewReader(nil), 0, ImageJPEG)
		assert.Error(t, err)
		assert.True(t, path.IsZero())
	})

	t.Run("SaveUnknownSizeUsesSmallParts", func(t *testing.T) {
		client := new(minio_mock.MockClient)
		s3 := newMinioS3Client("mockEndpoint", "mockBucket", client, zap.NewNop())
		content := bytes.NewReader([]byte("gif"))

		client.On("PutObject", ctx, "mockBucket", mock.Anything, content, int64(-1),
			minio.PutObjectOptions{ContentType: "image/gif", PartSize: 5 << 20}).
			Return(minio.UploadInfo{}, nil).Once()

		_, err := s3.Save(ctx, content, -1, ImageGIF)
		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("Remove", func(t *testing.T) {
		client := new(minio_mock.MockClient)
		s3 := newMinioS3Client("mockEndpoint", "mockBucket", client, zap.NewNop())
		path, err := ParseImagePath("/profile-images/aa.jpg")
		require.NoError(t, err)

		client.On("RemoveObject", ctx, "mockBucket", "profile-images/aa.jpg", minio.RemoveObjectOptions{}).Return(nil).Once()

		assert.NoError(t, s3.Remove(ctx, path))
		assert.Error(t, s3.Remove(ctx, ImagePath{}))
		client.AssertExpectations(t)
	})

	t.Run("CheckBucket", func(t *testing.T) {
		client := new(minio_mock.MockClient)
		s3 := newMinioS3Client("mockEndpoint", "mockBucket", client, zap.NewNop())
		client.On("BucketExists", ctx, "mockBucket").Return(false, nil).Once()
		client.On("BucketExists", ctx, "mockBucket").Return(true, nil).Once()

		assert.ErrorContains(t, s3.CheckBucket(ctx), "does not exist")
		assert.NoError(t, s3.CheckBucket(ctx))
	})
}
