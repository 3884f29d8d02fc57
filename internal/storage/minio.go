package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig configures an S3-compatible backend.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL, when set, replaces the endpoint in unsigned URLs
	// (a CDN or reverse proxy in front of the bucket).
	PublicURL string
}

// MinIO stores objects in an S3-compatible bucket.
type MinIO struct {
	client *minio.Client
	cfg    MinIOConfig
}

// NewMinIO connects to the endpoint. The bucket is not checked; call
// EnsureBucket at startup.
func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return &MinIO{client: client, cfg: cfg}, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	ok, err := m.client.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", m.cfg.Bucket, err)
	}
	if ok {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", m.cfg.Bucket, err)
	}
	return nil
}

// Upload implements Storage.
func (m *MinIO) Upload(ctx context.Context, data []byte, key, mimeType string) (string, error) {
	if _, err := CleanKey(key); err != nil {
		return "", err
	}
	_, err := m.client.PutObject(ctx, m.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: mimeType})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	return key, nil
}

// URL implements Storage.
func (m *MinIO) URL(_ context.Context, key string) (string, error) {
	if _, err := CleanKey(key); err != nil {
		return "", err
	}
	if m.cfg.PublicURL != "" {
		u, err := url.Parse(m.cfg.PublicURL)
		if err != nil {
			return "", fmt.Errorf("invalid public URL: %w", err)
		}
		return u.JoinPath(key).String(), nil
	}
	return m.client.EndpointURL().JoinPath(m.cfg.Bucket, key).String(), nil
}

// SignedURL implements Storage with a presigned GET.
func (m *MinIO) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if _, err := CleanKey(key); err != nil {
		return "", err
	}
	u, err := m.client.PresignedGetObject(ctx, m.cfg.Bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presigning %s: %w", key, err)
	}
	return u.String(), nil
}

// Get implements Storage.
func (m *MinIO) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.wrap(key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, m.wrap(key, err)
	}
	return data, nil
}

// Exists implements Storage.
func (m *MinIO) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.cfg.Bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, m.wrap(key, err)
}

// Delete implements Storage.
func (m *MinIO) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return m.wrap(key, err)
	}
	return nil
}

func (m *MinIO) wrap(key string, err error) error {
	if isNoSuchKey(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("%s: %w", key, err)
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

var _ Storage = (*MinIO)(nil)
