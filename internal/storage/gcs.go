package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSPublicHost serves unsigned object URLs.
const GCSPublicHost = "https://storage.googleapis.com"

// GCS stores objects in a Google Cloud Storage bucket.
type GCS struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	name   string
}

// NewGCS creates a client with application default credentials, or with
// credentialsFile when set.
func NewGCS(ctx context.Context, bucket, credentialsFile string) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}
	return &GCS{client: client, bucket: client.Bucket(bucket), name: bucket}, nil
}

// Upload implements Storage.
func (g *GCS) Upload(ctx context.Context, data []byte, key, mimeType string) (string, error) {
	if _, err := CleanKey(key); err != nil {
		return "", err
	}
	w := g.bucket.Object(key).NewWriter(ctx)
	w.ContentType = mimeType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing %s: %w", key, err)
	}
	return key, nil
}

// URL implements Storage.
func (g *GCS) URL(_ context.Context, key string) (string, error) {
	if _, err := CleanKey(key); err != nil {
		return "", err
	}
	u, _ := url.Parse(GCSPublicHost)
	return u.JoinPath(g.name, key).String(), nil
}

// SignedURL implements Storage with a V4 signed GET.
func (g *GCS) SignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	if _, err := CleanKey(key); err != nil {
		return "", err
	}
	u, err := g.bucket.SignedURL(key, &gcs.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(expiry),
		Scheme:  gcs.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotSignable, err)
	}
	return u, nil
}

// Get implements Storage.
func (g *GCS) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := g.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return nil, g.wrap(key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Exists implements Storage.
func (g *GCS) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.bucket.Object(key).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, g.wrap(key, err)
	}
	return true, nil
}

// Delete implements Storage.
func (g *GCS) Delete(ctx context.Context, key string) error {
	err := g.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return g.wrap(key, err)
	}
	return nil
}

// Close releases the client.
func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) wrap(key string, err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("%s: %w", key, err)
}

var _ Storage = (*GCS)(nil)
