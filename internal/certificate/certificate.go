// Package certificate signs certificate claims for QR codes and verifies
// scanned payloads.
//
// The signature is an HMAC over a canonical JSON projection of the claims
// plus the issuance timestamp, optional expiry and optional document hash.
// Verification recomputes it independently and compares in constant time.
package certificate

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors for signing.
var (
	ErrMissingSecret         = errors.New("certificate secret is not configured")
	ErrUnsupportedAlgorithm  = errors.New("unsupported signature algorithm")
	ErrIncompleteCertificate = errors.New("incomplete certificate data")
)

// Algorithm names the HMAC hash.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// PayloadType and PayloadVersion tag encoded payloads.
const (
	PayloadType    = "certificate"
	PayloadVersion = 1
)

func (a Algorithm) hash() (func() hash.Hash, error) {
	switch Algorithm(strings.ToLower(string(a))) {
	case SHA256, "":
		return sha256.New, nil
	case SHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(a))
	}
}

// Data holds the claims of a certificate. Metadata travels in the payload
// but is not covered by the signature.
type Data struct {
	CertificateID string            `json:"certificateId"`
	HolderName    string            `json:"holderName"`
	Title         string            `json:"title"`
	IssueDate     string            `json:"issueDate"`
	Issuer        string            `json:"issuer"`
	Grade         string            `json:"grade,omitempty"`
	ExpiryDate    string            `json:"expiryDate,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Authenticated is a signed certificate. It is computed once and never
// re-signed.
type Authenticated struct {
	Data         Data
	Algorithm    Algorithm
	Timestamp    int64 // Unix milliseconds
	ExpiresAt    int64 // Unix milliseconds, 0 when the signature does not expire
	DocumentHash string
	Signature    string
	VerifyURL    string
	// Content is the exact string to encode in the QR code.
	Content string
}

// Payload is the structure encoded in the QR code.
type Payload struct {
	Type         string    `json:"type"`
	Version      int       `json:"version"`
	Algorithm    Algorithm `json:"alg,omitempty"`
	Certificate  Data      `json:"certificate"`
	Signature    string    `json:"signature"`
	Timestamp    int64     `json:"timestamp"`
	ExpiresAt    int64     `json:"expiresAt,omitempty"`
	DocumentHash string    `json:"documentHash,omitempty"`
	VerifyURL    string    `json:"verifyUrl,omitempty"`
}

// canonical is the signed projection. Field order is the serialization order.
type canonical struct {
	CertificateID string `json:"certificateId"`
	HolderName    string `json:"holderName"`
	Title         string `json:"title"`
	IssueDate     string `json:"issueDate"`
	Issuer        string `json:"issuer"`
	Grade         string `json:"grade,omitempty"`
	ExpiryDate    string `json:"expiryDate,omitempty"`
	Timestamp     int64  `json:"timestamp"`
	ExpiresAt     int64  `json:"expiresAt,omitempty"`
	DocumentHash  string `json:"documentHash,omitempty"`
}

func canonicalBytes(d Data, timestamp, expiresAt int64, documentHash string) []byte {
	b, _ := json.Marshal(canonical{
		CertificateID: d.CertificateID,
		HolderName:    d.HolderName,
		Title:         d.Title,
		IssueDate:     d.IssueDate,
		Issuer:        d.Issuer,
		Grade:         d.Grade,
		ExpiryDate:    d.ExpiryDate,
		Timestamp:     timestamp,
		ExpiresAt:     expiresAt,
		DocumentHash:  documentHash,
	})
	return b
}

func computeSignature(secret []byte, alg Algorithm, msg []byte) (string, error) {
	h, err := alg.hash()
	if err != nil {
		return "", err
	}
	mac := hmac.New(h, secret)
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// DocumentHash returns the hex SHA-256 of a document.
func DocumentHash(document []byte) string {
	sum := sha256.Sum256(document)
	return hex.EncodeToString(sum[:])
}

// Signer issues authenticated certificates.
type Signer struct {
	secret    []byte
	algorithm Algorithm
	baseURL   string
	now       func() time.Time
}

// Option configures a Signer.
type Option func(*Signer)

// WithAlgorithm selects the HMAC hash.
func WithAlgorithm(a Algorithm) Option {
	return func(s *Signer) { s.algorithm = a }
}

// WithVerifyBaseURL sets the default verification base URL.
func WithVerifyBaseURL(u string) Option {
	return func(s *Signer) { s.baseURL = u }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// NewSigner creates a Signer. The secret must not be empty.
func NewSigner(secret string, opts ...Option) (*Signer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	s := &Signer{secret: []byte(secret), algorithm: SHA256, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.algorithm.hash(); err != nil {
		return nil, err
	}
	return s, nil
}

// SignOptions tune one signature.
type SignOptions struct {
	// Expiry bounds the signature's validity; zero means no expiry.
	Expiry time.Duration
	// Document, when set, is hashed and bound into the signature.
	Document []byte
	// VerifyBaseURL overrides the signer's default.
	VerifyBaseURL string
	// Algorithm overrides the signer's default.
	Algorithm Algorithm
}

// Sign creates an Authenticated certificate.
func (s *Signer) Sign(d Data, opts SignOptions) (*Authenticated, error) {
	if d.CertificateID == "" {
		return nil, fmt.Errorf("%w: certificate id is required", ErrIncompleteCertificate)
	}
	if d.HolderName == "" {
		return nil, fmt.Errorf("%w: holder name is required", ErrIncompleteCertificate)
	}

	alg := s.algorithm
	if opts.Algorithm != "" {
		alg = opts.Algorithm
	}

	now := s.now()
	auth := &Authenticated{
		Data:      d,
		Algorithm: alg,
		Timestamp: now.UnixMilli(),
	}
	if opts.Expiry > 0 {
		auth.ExpiresAt = now.Add(opts.Expiry).UnixMilli()
	}
	if opts.Document != nil {
		auth.DocumentHash = DocumentHash(opts.Document)
	}

	sig, err := computeSignature(s.secret, alg, canonicalBytes(d, auth.Timestamp, auth.ExpiresAt, auth.DocumentHash))
	if err != nil {
		return nil, err
	}
	auth.Signature = sig

	base := s.baseURL
	if opts.VerifyBaseURL != "" {
		base = opts.VerifyBaseURL
	}
	if base != "" {
		u, err := verificationURL(base, d.CertificateID, sig, auth.Timestamp)
		if err != nil {
			return nil, err
		}
		auth.VerifyURL = u
	}

	content, err := json.Marshal(auth.Payload())
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	auth.Content = string(content)
	return auth, nil
}

// Payload returns the structure encoded in the QR code.
func (a *Authenticated) Payload() Payload {
	return Payload{
		Type:         PayloadType,
		Version:      PayloadVersion,
		Algorithm:    a.Algorithm,
		Certificate:  a.Data,
		Signature:    a.Signature,
		Timestamp:    a.Timestamp,
		ExpiresAt:    a.ExpiresAt,
		DocumentHash: a.DocumentHash,
		VerifyURL:    a.VerifyURL,
	}
}

// verificationURL builds <base>/<id>?sig=<signature>&ts=<timestamp>.
func verificationURL(base, id, sig string, ts int64) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid verification base URL: %w", err)
	}
	u = u.JoinPath(id)
	q := u.Query()
	q.Set("sig", sig)
	q.Set("ts", strconv.FormatInt(ts, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
