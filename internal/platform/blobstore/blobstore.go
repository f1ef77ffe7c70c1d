// Package blobstore stores uploaded incident media (photos and short videos)
// on local disk or in a MinIO bucket and serves the upload endpoint.
package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	ErrNotFound           = errors.New("object not found")
	ErrFileTooLarge       = errors.New("File too large. Max 10MB")
	ErrInvalidContentType = errors.New("Invalid file type. Allowed: jpeg, png, webp, mp4, webm")
	ErrMissingFile        = errors.New("No file uploaded")
)

// MaxFileSize is the largest accepted upload (10 MB).
const MaxFileSize = 10 * 1024 * 1024

// allowedTypes maps each accepted MIME type to the extension used for the
// stored object name.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

// Allowed reports whether mimeType may be uploaded. Parameters such as
// "; charset=" are ignored.
func Allowed(mimeType string) bool {
	_, ok := allowedTypes[baseType(mimeType)]
	return ok
}

// Extension returns the stored-object extension for an allowed type.
func Extension(mimeType string) string {
	return allowedTypes[baseType(mimeType)]
}

func baseType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// Store is a flat key/value object store addressed by generated keys.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// URL is the address clients use to fetch key.
	URL(key string) string
}

// Object is the upload response.
type Object struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	Name string `json:"name"`
}
