// Package qrcode resolves the text encoded in a template's QR codes and
// rasterizes it.
package qrcode

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/akannigil/oxygen-documentor-sub000/internal/certificate"
	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

// Sentinel errors for content resolution.
var (
	ErrEmptyContent  = errors.New("qr content is empty")
	ErrNoSigner      = errors.New("certificate signing is not configured")
	ErrNoURLProvider = errors.New("storage URL provider is not configured")
	ErrStorageURL    = errors.New("storage URL unavailable")
	ErrCertificateQR = errors.New("cannot build certificate payload")
)

// StorageURLToken is replaced by the row's storage URL in content patterns.
const StorageURLToken = "storage_url"

// DefaultURLExpiry applies to signed storage URLs without an explicit expiry.
const DefaultURLExpiry = time.Hour

var tokenRe = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// URLProvider issues URLs for stored objects.
type URLProvider interface {
	URL(ctx context.Context, key string) (string, error)
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Request carries what a QR code may draw on for one row.
type Request struct {
	Config model.QRCodeConfig
	Row    model.Row
	// Values are the row's formatted values, preferred over raw row values.
	Values map[string]string
	// StorageKey is where the row's document will be uploaded.
	StorageKey string
	// Document is the rendered document so far, hashed when the
	// certificate binds the document.
	Document []byte
}

// Content is a resolved QR payload.
type Content struct {
	Text        string
	Certificate *certificate.Authenticated
}

// Builder resolves QR content.
type Builder struct {
	signer   *certificate.Signer
	resolver *certificate.Resolver
	urls     URLProvider
	logger   *zap.Logger
}

// NewBuilder creates a Builder. signer and urls may be nil when the
// corresponding directives are never used.
func NewBuilder(signer *certificate.Signer, urls URLProvider, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		signer:   signer,
		resolver: certificate.NewResolver(logger),
		urls:     urls,
		logger:   logger,
	}
}

// Build resolves the content of one QR code. Authentication takes
// precedence over a storage URL, which takes precedence over the plain
// pattern.
func (b *Builder) Build(ctx context.Context, req Request) (Content, error) {
	cfg := req.Config

	if cfg.Auth != nil && cfg.Auth.Enabled {
		return b.buildCertificate(req)
	}

	if cfg.StorageURL != nil {
		u, err := b.storageURL(ctx, req.StorageKey, cfg.StorageURL)
		if err != nil {
			return Content{}, err
		}
		if !strings.Contains(cfg.Pattern, StorageURLToken) {
			return Content{Text: u}, nil
		}
		values := withValue(req.Values, StorageURLToken, u)
		return shape(cfg.ContentType, substitute(cfg.Pattern, values, req.Row))
	}

	return shape(cfg.ContentType, substitute(cfg.Pattern, req.Values, req.Row))
}

func (b *Builder) buildCertificate(req Request) (Content, error) {
	if b.signer == nil {
		return Content{}, ErrNoSigner
	}
	dir := req.Config.Auth

	data := b.resolver.Resolve(req.Row, dir)
	opts := certificate.SignOptions{
		Expiry:        dir.Expiry,
		VerifyBaseURL: dir.VerifyBaseURL,
		Algorithm:     certificate.Algorithm(dir.Algorithm),
	}
	if dir.BindDocument {
		opts.Document = req.Document
		if opts.Document == nil {
			opts.Document = []byte{}
		}
	}

	auth, err := b.signer.Sign(data, opts)
	if err != nil {
		return Content{}, fmt.Errorf("%w: %v", ErrCertificateQR, err)
	}
	return Content{Text: auth.Content, Certificate: auth}, nil
}

func (b *Builder) storageURL(ctx context.Context, key string, dir *model.StorageURLDirective) (string, error) {
	if b.urls == nil {
		return "", ErrNoURLProvider
	}
	if key == "" {
		return "", fmt.Errorf("%w: no storage key", ErrStorageURL)
	}

	var (
		u   string
		err error
	)
	if dir.Signed {
		expiry := DefaultURLExpiry
		if dir.ExpirySeconds > 0 {
			expiry = time.Duration(dir.ExpirySeconds) * time.Second
		}
		u, err = b.urls.SignedURL(ctx, key, expiry)
	} else {
		u, err = b.urls.URL(ctx, key)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageURL, err)
	}
	return u, nil
}

// substitute replaces {{name}} tokens with the formatted value, falling
// back to the raw row value. Unknown names become empty.
func substitute(pattern string, values map[string]string, row model.Row) string {
	return tokenRe.ReplaceAllStringFunc(pattern, func(tok string) string {
		name := tokenRe.FindStringSubmatch(tok)[1]
		if v, ok := values[name]; ok {
			return v
		}
		for k, v := range values {
			if strings.EqualFold(k, name) {
				return v
			}
		}
		if v, ok := row.Lookup(name); ok && v != nil {
			return fmt.Sprint(v)
		}
		return ""
	})
}

func withValue(values map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(values)+1)
	for k, v := range values {
		out[k] = v
	}
	out[key] = value
	return out
}

// shape adapts text to the scheme its content type expects.
func shape(kind model.QRContentType, text string) (Content, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Content{}, ErrEmptyContent
	}

	switch kind {
	case model.QREmail:
		if !strings.HasPrefix(strings.ToLower(text), "mailto:") {
			text = "mailto:" + text
		}
	case model.QRPhone:
		if !strings.HasPrefix(strings.ToLower(text), "tel:") {
			text = "tel:" + strings.ReplaceAll(text, " ", "")
		}
	case model.QRVCard:
		if !strings.HasPrefix(strings.ToUpper(text), "BEGIN:VCARD") {
			text = "BEGIN:VCARD\nVERSION:3.0\nFN:" + text + "\nEND:VCARD"
		}
	}
	return Content{Text: text}, nil
}
