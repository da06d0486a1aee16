package storage

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// AllowedContentTypes are the photo formats accepted for upload, mapped to
// the file extension used in object keys. Every entry must be decodable by
// the detection providers, which report locations in source pixels.
var AllowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// NormalizeContentType strips parameters and lowercases the media type.
func NormalizeContentType(contentType string) string {
	normalized := strings.Split(contentType, ";")[0]
	return strings.TrimSpace(strings.ToLower(normalized))
}

// ValidateContentType checks if the content type is an accepted photo format.
func ValidateContentType(contentType string) error {
	if _, ok := AllowedContentTypes[NormalizeContentType(contentType)]; !ok {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

// ValidateFileSize checks if the file size is within limits.
func ValidateFileSize(sizeBytes, maxFileSize int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("file size must be greater than 0")
	}
	if sizeBytes > maxFileSize {
		return fmt.Errorf("file size %d bytes exceeds maximum allowed size of %d bytes", sizeBytes, maxFileSize)
	}
	return nil
}

// ObjectKey builds a unique key "<folder>/<baseName>_<uuid8><ext>" so that a
// replacement upload never overwrites the object it replaces.
func ObjectKey(folder, baseName, contentType string) string {
	ext := AllowedContentTypes[NormalizeContentType(contentType)]
	if ext == "" {
		ext = ".bin"
	}
	unique := fmt.Sprintf("%s_%s%s", baseName, uuid.New().String()[:8], ext)
	return path.Join(folder, unique)
}

// IsImageContentType checks if the content type is an image.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(NormalizeContentType(contentType), "image/")
}
