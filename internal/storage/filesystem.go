package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Filesystem stores objects under a root directory. URLs are built from
// BaseURL; signed URLs carry an expiry and an HMAC of key and expiry.
type Filesystem struct {
	root    string
	baseURL string
	secret  []byte
	now     func() time.Time
}

// NewFilesystem creates the root directory if needed. secret may be empty,
// in which case SignedURL fails with ErrNotSignable.
func NewFilesystem(root, baseURL, secret string) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	if baseURL == "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		baseURL = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	}
	return &Filesystem{root: root, baseURL: baseURL, secret: []byte(secret), now: time.Now}, nil
}

func (f *Filesystem) path(key string) (string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.root, filepath.FromSlash(clean)), nil
}

// Upload writes data atomically through a temporary file.
func (f *Filesystem) Upload(_ context.Context, data []byte, key, _ string) (string, error) {
	p, err := f.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return "", fmt.Errorf("creating object dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	return key, nil
}

// URL returns the public URL of key.
func (f *Filesystem) URL(_ context.Context, key string) (string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	return u.JoinPath(clean).String(), nil
}

// SignedURL returns URL(key) with expires and signature query parameters.
func (f *Filesystem) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if len(f.secret) == 0 {
		return "", ErrNotSignable
	}
	raw, err := f.URL(ctx, key)
	if err != nil {
		return "", err
	}
	u, _ := url.Parse(raw)
	expires := f.now().Add(expiry).Unix()
	q := u.Query()
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", f.sign(key, expires))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Verify checks a signature produced by SignedURL.
func (f *Filesystem) Verify(key, expires, signature string, now time.Time) bool {
	if len(f.secret) == 0 {
		return false
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || now.Unix() > exp {
		return false
	}
	return hmac.Equal([]byte(f.sign(key, exp)), []byte(signature))
}

func (f *Filesystem) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, f.secret)
	mac.Write([]byte(key + "\n" + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Get reads an object.
func (f *Filesystem) Get(_ context.Context, key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p) // #nosec G304 -- key validated by CleanKey
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}

// Exists reports whether key is stored.
func (f *Filesystem) Exists(_ context.Context, key string) (bool, error) {
	p, err := f.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Delete removes key. Deleting a missing key is not an error.
func (f *Filesystem) Delete(_ context.Context, key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

var _ Storage = (*Filesystem)(nil)
