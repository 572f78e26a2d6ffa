package app

import (
	"fmt"
	"path"
	"strings"
)

// ProfileImagesDir is the only namespace profile images may live in.
const ProfileImagesDir = "profile-images"

const profileImagesPrefix = ProfileImagesDir + "/"

// ImagePath is a blob reference confined to ProfileImagesDir. The zero
// value is not a valid path; values come from ParseImagePath or a
// BlobStore.Save.
type ImagePath struct {
	name string
}

// ParseImagePath validates a stored reference. Leading slashes are
// stripped; the remainder must be "profile-images/<name>" where name is a
// single plain file name.
func ParseImagePath(raw string) (ImagePath, error) {
	rel := strings.TrimLeft(raw, "/")
	if !strings.HasPrefix(rel, profileImagesPrefix) {
		return ImagePath{}, fmt.Errorf("image path %q is outside %s", raw, ProfileImagesDir)
	}
	name := strings.TrimPrefix(rel, profileImagesPrefix)
	if !validImageName(name) {
		return ImagePath{}, fmt.Errorf("image path %q has an invalid file name", raw)
	}
	return ImagePath{name: name}, nil
}

func newImagePath(name string) ImagePath {
	return ImagePath{name: name}
}

func validImageName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return false
	}
	return path.Clean(name) == name
}

// Name is the file name inside ProfileImagesDir.
func (p ImagePath) Name() string {
	return p.name
}

// String returns the relative reference stored on user records.
func (p ImagePath) String() string {
	if p.name == "" {
		return ""
	}
	return profileImagesPrefix + p.name
}

func (p ImagePath) IsZero() bool {
	return p.name == ""
}
