package app

import (
	"context"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"wadserv/src/auth"
	db "wadserv/src/repository"
)

const (
	formFileField      = "file"
	multipartMaxMemory = 8 << 20
	multipartFormType  = "multipart/form-data"
)

type (
	TokenVerifier interface {
		Verify(r *http.Request) (*auth.Identity, bool)
	}

	// UserStore is the part of the metadata store profile images need.
	UserStore interface {
		FindUser(ctx context.Context, key db.UserKey) (*db.User, error)
		SetProfileImage(ctx context.Context, key db.UserKey, ref *string) (int64, error)
	}

	// Target selects whose profile image an operation acts on.
	Target struct {
		userID string
		self   bool
	}

	// ProfileImages keeps a user's profileImage reference and the blob it
	// names in step. Every operation runs verify, resolve-old, commit-new,
	// cleanup-old in that order and holds no state between requests.
	ProfileImages struct {
		verifier TokenVerifier
		users    UserStore
		blobs    BlobStore
		logger   *zap.Logger
	}
)

// Self targets the record of the authenticated caller, looked up by email.
// A missing record or image on delete is a silent success.
func Self() Target {
	return Target{self: true}
}

// UserID targets a record by id. A missing record is NotFound.
func UserID(id string) Target {
	return Target{userID: id}
}

func (t Target) key(identity *auth.Identity) db.UserKey {
	if t.self {
		return db.ByEmail(identity.Email)
	}
	return db.ByID(t.userID)
}

func NewProfileImages(verifier TokenVerifier, users UserStore, blobs BlobStore, logger *zap.Logger) *ProfileImages {
	return &ProfileImages{
		verifier: verifier,
		users:    users,
		blobs:    blobs,
		logger:   logger,
	}
}

// Upload stores the request's image and makes it the target's profile
// image. The previous image, if any, is removed after the new reference is
// committed.
func (m *ProfileImages) Upload(r *http.Request, target Target) (ImagePath, error) {
	identity, ok := m.verifier.Verify(r)
	if !ok {
		return ImagePath{}, newError(Unauthorized, "Unauthorized", nil)
	}

	file, size, contentType, err := readUploadedFile(r)
	if err != nil {
		return ImagePath{}, err
	}
	defer file.Close()

	kind, err := ParseImageKind(contentType)
	if err != nil {
		return ImagePath{}, err
	}

	// Stores run to completion once started, even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	key := target.key(identity)
	logger := m.logger.With(zap.String("user", key.String()))

	current, err := m.resolve(ctx, key, target)
	if err != nil {
		return ImagePath{}, err
	}
	var previous *string
	if current != nil {
		previous = current.ProfileImage
	}

	path, err := m.blobs.Save(ctx, file, size, kind)
	if err != nil {
		return ImagePath{}, newError(StorageFailure, "Failed to save image", err)
	}

	ref := path.String()
	matched, err := m.users.SetProfileImage(ctx, key, &ref)
	if err != nil {
		removeBestEffort(ctx, m.blobs, path).Discard(logger)
		return ImagePath{}, newError(StorageFailure, "Failed to update user", err)
	}
	if matched == 0 {
		removeBestEffort(ctx, m.blobs, path).Discard(logger)
		return ImagePath{}, newError(NotFound, "User not found", nil)
	}

	if previous != nil && *previous != "" && *previous != ref {
		m.cleanupReference(ctx, *previous, logger)
	}

	logger.Info("profile image uploaded", zap.String("path", ref), zap.Stringer("kind", kind))
	return path, nil
}

// Delete removes the target's profile image and clears the reference.
func (m *ProfileImages) Delete(r *http.Request, target Target) error {
	identity, ok := m.verifier.Verify(r)
	if !ok {
		return newError(Unauthorized, "Unauthorized", nil)
	}

	ctx := context.WithoutCancel(r.Context())
	key := target.key(identity)
	logger := m.logger.With(zap.String("user", key.String()))

	current, err := m.resolve(ctx, key, target)
	if err != nil {
		return err
	}
	if current == nil || current.ProfileImage == nil || *current.ProfileImage == "" {
		return nil
	}

	path, err := ParseImagePath(*current.ProfileImage)
	if err != nil {
		return newError(BadState, "Invalid profile image path", err)
	}

	removeBestEffort(ctx, m.blobs, path).Discard(logger)

	matched, err := m.users.SetProfileImage(ctx, key, nil)
	if err != nil {
		return newError(StorageFailure, "Failed to update user", err)
	}
	if matched == 0 && !target.self {
		return newError(NotFound, "User not found", nil)
	}

	logger.Info("profile image removed", zap.String("path", path.String()))
	return nil
}

// resolve loads the target record. For Self targets a missing record is
// reported as nil without error.
func (m *ProfileImages) resolve(ctx context.Context, key db.UserKey, target Target) (*db.User, error) {
	user, err := m.users.FindUser(ctx, key)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, db.ErrInvalidID):
		return nil, newError(BadInput, "Invalid user id", err)
	case errors.Is(err, db.ErrNotFound):
		if target.self {
			return nil, nil
		}
		return nil, newError(NotFound, "User not found", err)
	}
	return nil, newError(StorageFailure, "Failed to load user", err)
}

// cleanupReference removes the blob behind a replaced reference. References
// that fail validation are never handed to the blob store.
func (m *ProfileImages) cleanupReference(ctx context.Context, ref string, logger *zap.Logger) {
	path, err := ParseImagePath(ref)
	if err != nil {
		logger.Warn("skipping cleanup of invalid image reference", zap.String("ref", ref), zap.Error(err))
		return
	}
	removeBestEffort(ctx, m.blobs, path).Discard(logger)
}

// readUploadedFile returns the "file" part with its exact size and declared
// content type.
func readUploadedFile(r *http.Request) (multipart.File, int64, string, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != multipartFormType {
		return nil, 0, "", newError(BadInput, "Invalid form data", err)
	}
	if err := r.ParseMultipartForm(multipartMaxMemory); err != nil {
		return nil, 0, "", newError(BadInput, "Invalid form data", err)
	}
	file, header, err := r.FormFile(formFileField)
	if err != nil {
		return nil, 0, "", newError(BadInput, "No file uploaded", err)
	}
	return file, header.Size, header.Header.Get("Content-Type"), nil
}
