package storage

import (
	"context"
	"fmt"
)

// Config selects and configures a backend.
type Config struct {
	Backend string

	// filesystem
	Root    string
	BaseURL string
	Secret  string

	// minio
	MinIO MinIOConfig

	// gcs
	GCSBucket          string
	GCSCredentialsFile string
}

// Open builds the configured backend. An empty Backend means filesystem.
func Open(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Backend {
	case "", BackendFilesystem:
		return NewFilesystem(cfg.Root, cfg.BaseURL, cfg.Secret)
	case BackendMinIO:
		m, err := NewMinIO(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		if err := m.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return m, nil
	case BackendGCS:
		return NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, cfg.Backend)
	}
}
