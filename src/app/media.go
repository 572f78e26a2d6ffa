package app

import "strings"

// ImageKind is the closed set of image formats accepted for profile images.
type ImageKind int

const (
	ImageJPEG ImageKind = iota + 1
	ImagePNG
	ImageGIF
	ImageWEBP
)

var imageKinds = [...]ImageKind{ImageJPEG, ImagePNG, ImageGIF, ImageWEBP}

// ParseImageKind maps a declared MIME type onto a supported kind. MIME
// parameters such as "; charset=binary" are ignored.
func ParseImageKind(mimeType string) (ImageKind, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	for _, kind := range imageKinds {
		if kind.MimeType() == mimeType {
			return kind, nil
		}
	}
	return 0, newError(UnsupportedMediaType, "Only image files allowed", nil)
}

func (k ImageKind) MimeType() string {
	switch k {
	case ImageJPEG:
		return "image/jpeg"
	case ImagePNG:
		return "image/png"
	case ImageGIF:
		return "image/gif"
	case ImageWEBP:
		return "image/webp"
	}
	return ""
}

func (k ImageKind) Extension() string {
	switch k {
	case ImageJPEG:
		return "jpg"
	case ImagePNG:
		return "png"
	case ImageGIF:
		return "gif"
	case ImageWEBP:
		return "webp"
	}
	return ""
}

func (k ImageKind) String() string {
	if ext := k.Extension(); ext != "" {
		return ext
	}
	return "unknown"
}
