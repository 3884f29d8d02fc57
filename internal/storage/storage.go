// Package storage stores generated documents and template files and
// issues URLs for them. Backends: local filesystem, MinIO or any
// S3-compatible service, and Google Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// Sentinel errors.
var (
	ErrNotFound           = errors.New("object not found")
	ErrInvalidKey         = errors.New("invalid object key")
	ErrUnsupportedBackend = errors.New("unsupported storage backend")
	ErrNotSignable        = errors.New("backend cannot sign URLs")
)

// Backend names.
const (
	BackendFilesystem = "filesystem"
	BackendMinIO      = "minio"
	BackendGCS        = "gcs"
)

// Storage is an object store addressed by slash-separated keys.
type Storage interface {
	Upload(ctx context.Context, data []byte, key, mimeType string) (string, error)
	URL(ctx context.Context, key string) (string, error)
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// DocumentKey is the storage key of a generated document:
// documents/{job}/{template}/{row:04d}-{document}.{ext}.
func DocumentKey(jobID, templateID string, row int, documentID, ext string) string {
	return fmt.Sprintf("documents/%s/%s/%04d-%s.%s", jobID, templateID, row, documentID, strings.TrimPrefix(ext, "."))
}

// CleanKey validates and normalizes a key. Keys are relative, use forward
// slashes and never climb above the root.
func CleanKey(key string) (string, error) {
	if key == "" || strings.ContainsRune(key, 0) || strings.Contains(key, `\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != key {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return clean, nil
}

// MIMEType returns the content type for a generated file extension.
func MIMEType(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
