// Package photostore keeps the normalized photos of archived diagnoses.
package photostore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no photo exists under a storage key.
var ErrNotFound = errors.New("photo not found")

type PhotoStore interface {
	// Save writes the photo under a new key beginning with prefix.
	Save(ctx context.Context, prefix, mimeType string, r io.Reader) (storageKey string, err error)
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, storageKey string) error
}

// ExtForMIME maps an image content type to the file extension used in keys.
func ExtForMIME(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// MIMEForKey is the inverse of ExtForMIME.
func MIMEForKey(key string) string {
	for _, mt := range []string{"image/png", "image/gif", "image/webp"} {
		ext := ExtForMIME(mt)
		if len(key) >= len(ext) && key[len(key)-len(ext):] == ext {
			return mt
		}
	}
	return "image/jpeg"
}
