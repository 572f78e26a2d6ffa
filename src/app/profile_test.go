package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wadserv/src/auth"
	db "wadserv/src/repository"
)

const testSecret = "profile-test-secret"

type profileFixture struct {
	manager *ProfileImages
	users   *db.InMemoryDB
	blobs   *LocalBlobStore
	issuer  *auth.Issuer
}

func newProfileFixture(t *testing.T) *profileFixture {
	t.Helper()
	blobs, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)
	users := db.NewInMemoryDB()
	return &profileFixture{
		manager: NewProfileImages(auth.NewVerifier(testSecret, "token"), users, blobs, zap.NewNop()),
		users:   users,
		blobs:   blobs,
		issuer:  auth.NewIssuer(testSecret, time.Hour),
	}
}

// seedUser creates a user and returns its id and a bearer token for it.
func (f *profileFixture) seedUser(t *testing.T, email string, ref *string) (string, string) {
	t.Helper()
	ctx := context.Background()
	id, err := f.users.CreateUser(ctx, db.User{Email: email, Username: "u"})
	require.NoError(t, err)
	if ref != nil {
		_, err = f.users.SetProfileImage(ctx, db.ByID(id), ref)
		require.NoError(t, err)
	}
	token, err := f.issuer.Issue(auth.Identity{ID: id, Email: email, Username: "u"})
	require.NoError(t, err)
	return id, token
}

func (f *profileFixture) reference(t *testing.T, id string) *string {
	t.Helper()
	u, err := f.users.FindUser(context.Background(), db.ByID(id))
	require.NoError(t, err)
	return u.ProfileImage
}

func (f *profileFixture) blobExists(path string) bool {
	p, err := ParseImagePath(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(f.blobs.Dir(), p.Name()))
	return err == nil
}

func (f *profileFixture) blobCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.blobs.Dir())
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return len(entries)
}

func uploadRequest(t *testing.T, token, mimeType string, content []byte) *http.Request {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="avatar"`)
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/user/profile/image", body)
	r.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func deleteRequest(token string) *http.Request {
	r := httptest.NewRequest(http.MethodDelete, "/api/user/profile/image", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestUploadReturnsRandomReference(t *testing.T) {
	f := newProfileFixture(t)
	id, token := f.seedUser(t, "john@example.com", nil)

	for _, kind := range imageKinds {
		path, err := f.manager.Upload(uploadRequest(t, token, kind.MimeType(), []byte("img")), Self())
		require.NoError(t, err)
		assert.Regexp(t, imageRefPattern, path.String())
		assert.Equal(t, "."+kind.Extension(), filepath.Ext(path.Name()))

		ref := f.reference(t, id)
		require.NotNil(t, ref)
		assert.Equal(t, path.String(), *ref)
	}
}

func TestUploadReplaceRemovesPreviousBlob(t *testing.T) {
	f := newProfileFixture(t)
	id, token := f.seedUser(t, "john@example.com", nil)

	first, err := f.manager.Upload(uploadRequest(t, token, "image/png", []byte("one")), UserID(id))
	require.NoError(t, err)
	second, err := f.manager.Upload(uploadRequest(t, token, "image/jpeg", []byte("two")), UserID(id))
	require.NoError(t, err)

	assert.Equal(t, second.String(), *f.reference(t, id))
	assert.False(t, f.blobExists(first.String()), "first blob is cleaned up")
	assert.True(t, f.blobExists(second.String()))
	assert.Equal(t, 1, f.blobCount(t))
}

func TestUploadRejectsUnsupportedMediaType(t *testing.T) {
	f := newProfileFixture(t)
	id, token := f.seedUser(t, "john@example.com", nil)

	_, err := f.manager.Upload(uploadRequest(t, token, "text/plain", []byte("hello")), Self())
	assert.Equal(t, UnsupportedMediaType, KindOf(err))
	assert.Equal(t, http.StatusBadRequest, KindOf(err).Status())
	assert.Equal(t, 0, f.blobCount(t))
	assert.Nil(t, f.reference(t, id))
}

func TestUploadUnauthenticated(t *testing.T) {
	f := newProfileFixture(t)
	id, _ := f.seedUser(t, "john@example.com", nil)

	_, err := f.manager.Upload(uploadRequest(t, "", "image/png", []byte("img")), Self())
	var mediaErr *Error
	require.ErrorAs(t, err, &mediaErr)
	assert.Equal(t, Unauthorized, mediaErr.Kind)
	assert.Equal(t, "Unauthorized", mediaErr.Message)
	assert.Equal(t, 0, f.blobCount(t))
	assert.Nil(t, f.reference(t, id))
}

func TestUploadBadInput(t *testing.T) {
	f := newProfileFixture(t)
	_, token := f.seedUser(t, "john@example.com", nil)

	t.Run("NotMultipart", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"file":"x"}`))
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Authorization", "Bearer "+token)
		_, err := f.manager.Upload(r, Self())
		assert.Equal(t, BadInput, KindOf(err))
	})

	t.Run("FileAsPlainField", func(t *testing.T) {
		body := new(bytes.Buffer)
		writer := multipart.NewWriter(body)
		require.NoError(t, writer.WriteField("file", "not a file"))
		require.NoError(t, writer.Close())
		r := httptest.NewRequest(http.MethodPost, "/", body)
		r.Header.Set("Content-Type", writer.FormDataContentType())
		r.Header.Set("Authorization", "Bearer "+token)

		_, err := f.manager.Upload(r, Self())
		var mediaErr *Error
		require.ErrorAs(t, err, &mediaErr)
		assert.Equal(t, BadInput, mediaErr.Kind)
		assert.Equal(t, "No file uploaded", mediaErr.Message)
	})
	assert.Equal(t, 0, f.blobCount(t))
}

func TestUploadByIDChecksUserBeforeWriting(t *testing.T) {
	f := newProfileFixture(t)
	_, token := f.seedUser(t, "john@example.com", nil)

	_, err := f.manager.Upload(uploadRequest(t, token, "image/png", []byte("img")), UserID("6f1c5a8e-3b2d-4c6e-9f00-1a2b3c4d5e6f"))
	assert.Equal(t, NotFound, KindOf(err))

	_, err = f.manager.Upload(uploadRequest(t, token, "image/png", []byte("img")), UserID("not-an-id"))
	assert.Equal(t, BadInput, KindOf(err))

	assert.Equal(t, 0, f.blobCount(t))
}

func TestUploadSelfWithoutRecordLeavesNoOrphan(t *testing.T) {
	f := newProfileFixture(t)
	token, err := f.issuer.Issue(auth.Identity{ID: "ghost", Email: "ghost@example.com"})
	require.NoError(t, err)

	_, err = f.manager.Upload(uploadRequest(t, token, "image/png", []byte("img")), Self())
	assert.Equal(t, NotFound, KindOf(err))
	assert.Equal(t, 0, f.blobCount(t))
}

func TestDeleteScenario(t *testing.T) {
	f := newProfileFixture(t)
	ref := "profile-images/aa.jpg"
	id, token := f.seedUser(t, "john@example.com", &ref)
	require.NoError(t, os.MkdirAll(f.blobs.Dir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.blobs.Dir(), "aa.jpg"), []byte("x"), 0o644))

	require.NoError(t, f.manager.Delete(deleteRequest(token), Self()))
	assert.False(t, f.blobExists(ref))
	assert.Nil(t, f.reference(t, id))

	assert.NoError(t, f.manager.Delete(deleteRequest(token), Self()), "second delete is a no-op")
	assert.Nil(t, f.reference(t, id))
}

func TestDeleteSelfWithoutReference(t *testing.T) {
	f := newProfileFixture(t)
	id, token := f.seedUser(t, "john@example.com", nil)

	assert.NoError(t, f.manager.Delete(deleteRequest(token), Self()))
	assert.Nil(t, f.reference(t, id))

	ghost, err := f.issuer.Issue(auth.Identity{Email: "ghost@example.com"})
	require.NoError(t, err)
	assert.NoError(t, f.manager.Delete(deleteRequest(ghost), Self()), "missing self record is not an error")
}

func TestDeleteByIDMissingUser(t *testing.T) {
	f := newProfileFixture(t)
	_, token := f.seedUser(t, "john@example.com", nil)

	err := f.manager.Delete(deleteRequest(token), UserID("6f1c5a8e-3b2d-4c6e-9f00-1a2b3c4d5e6f"))
	assert.Equal(t, NotFound, KindOf(err))
	assert.Equal(t, http.StatusNotFound, KindOf(err).Status())
}

func TestDeleteRejectsReferenceOutsidePrefix(t *testing.T) {
	f := newProfileFixture(t)
	ref := "../../etc/passwd"
	id, token := f.seedUser(t, "john@example.com", &ref)

	err := f.manager.Delete(deleteRequest(token), UserID(id))
	var mediaErr *Error
	require.ErrorAs(t, err, &mediaErr)
	assert.Equal(t, BadState, mediaErr.Kind)
	assert.Equal(t, "Invalid profile image path", mediaErr.Message)

	got := f.reference(t, id)
	require.NotNil(t, got)
	assert.Equal(t, ref, *got, "metadata is not mutated")
}

func TestDeleteUnauthenticated(t *testing.T) {
	f := newProfileFixture(t)
	err := f.manager.Delete(deleteRequest("garbage"), Self())
	assert.Equal(t, Unauthorized, KindOf(err))
}

// flakyBlobStore wraps a real store and fails selected operations.
type flakyBlobStore struct {
	BlobStore
	saveErr   error
	removeErr error
	removed   []ImagePath
	sizes     []int64
}

func (s *flakyBlobStore) Save(ctx context.Context, content io.Reader, size int64, kind ImageKind) (ImagePath, error) {
	if s.saveErr != nil {
		return ImagePath{}, s.saveErr
	}
	s.sizes = append(s.sizes, size)
	return s.BlobStore.Save(ctx, content, size, kind)
}

func (s *flakyBlobStore) Remove(ctx context.Context, path ImagePath) error {
	s.removed = append(s.removed, path)
	if s.removeErr != nil {
		return s.removeErr
	}
	return s.BlobStore.Remove(ctx, path)
}

func TestCleanupFailuresNeverPropagate(t *testing.T) {
	f := newProfileFixture(t)
	flaky := &flakyBlobStore{BlobStore: f.blobs, removeErr: errors.New("permission denied")}
	f.manager = NewProfileImages(auth.NewVerifier(testSecret, "token"), f.users, flaky, zap.NewNop())
	id, token := f.seedUser(t, "john@example.com", nil)

	first, err := f.manager.Upload(uploadRequest(t, token, "image/png", []byte("one")), Self())
	require.NoError(t, err)
	second, err := f.manager.Upload(uploadRequest(t, token, "image/png", []byte("two")), Self())
	require.NoError(t, err)
	assert.Equal(t, second.String(), *f.reference(t, id))
	assert.Equal(t, []ImagePath{first}, flaky.removed)

	require.NoError(t, f.manager.Delete(deleteRequest(token), Self()))
	assert.Nil(t, f.reference(t, id))
}

func TestSaveFailureKeepsOldReference(t *testing.T) {
	f := newProfileFixture(t)
	flaky := &flakyBlobStore{BlobStore: f.blobs, saveErr: fmt.Errorf("disk full")}
	f.manager = NewProfileImages(auth.NewVerifier(testSecret, "token"), f.users, flaky, zap.NewNop())
	ref := "profile-images/aa.jpg"
	id, token := f.seedUser(t, "john@example.com", &ref)

	_, err := f.manager.Upload(uploadRequest(t, token, "image/png", []byte("img")), Self())
	assert.Equal(t, StorageFailure, KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, KindOf(err).Status())
	assert.Equal(t, ref, *f.reference(t, id))
	assert.Empty(t, flaky.removed)
}

// failingUserStore reads through to a real store but fails every commit.
type failingUserStore struct {
	UserStore
	setErr error
}

func (s *failingUserStore) SetProfileImage(context.Context, db.UserKey, *string) (int64, error) {
	return 0, s.setErr
}

func TestCommitFailureDiscardsNewBlob(t *testing.T) {
	f := newProfileFixture(t)
	ref := "profile-images/aa.jpg"
	id, token := f.seedUser(t, "john@example.com", &ref)
	users := &failingUserStore{UserStore: f.users, setErr: errors.New("write conflict")}
	f.manager = NewProfileImages(auth.NewVerifier(testSecret, "token"), users, f.blobs, zap.NewNop())

	path, err := f.manager.Upload(uploadRequest(t, token, "image/png", []byte("img")), Self())

	assert.Equal(t, StorageFailure, KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, KindOf(err).Status())
	assert.True(t, path.IsZero())
	assert.Equal(t, 0, f.blobCount(t), "the uploaded blob is removed again")
	assert.Equal(t, ref, *f.reference(t, id))
}

func TestUploadPassesContentSize(t *testing.T) {
	f := newProfileFixture(t)
	flaky := &flakyBlobStore{BlobStore: f.blobs}
	f.manager = NewProfileImages(auth.NewVerifier(testSecret, "token"), f.users, flaky, zap.NewNop())
	_, token := f.seedUser(t, "john@example.com", nil)

	_, err := f.manager.Upload(uploadRequest(t, token, "image/webp", []byte("riff-webp")), Self())
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, flaky.sizes)
}
