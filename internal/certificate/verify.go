package certificate

import (
	"crypto/subtle"
	"encoding/json"
	"time"
)

// Reason explains a rejected payload.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonMalformed         Reason = "malformed_payload"
	ReasonUnsupported       Reason = "unsupported_algorithm"
	ReasonSignatureMismatch Reason = "signature_mismatch"
	ReasonExpired           Reason = "expired"
	ReasonDocumentMismatch  Reason = "document_mismatch"
)

// VerificationResult is the outcome of Verify. Rejections are values, not errors.
type VerificationResult struct {
	Valid       bool   `json:"valid"`
	Reason      Reason `json:"reason,omitempty"`
	Certificate *Data  `json:"certificate,omitempty"`
	IssuedAt    int64  `json:"issuedAt,omitempty"`
	ExpiresAt   int64  `json:"expiresAt,omitempty"`
	// DocumentChecked is true when a bound hash was compared with a
	// presented document.
	DocumentChecked bool `json:"documentChecked"`
}

// Verify checks a scanned payload against secret. When the payload binds a
// document hash and document is non-nil, the document is hashed and
// compared too.
func Verify(content, secret string, document []byte, now time.Time) VerificationResult {
	var p Payload
	if err := json.Unmarshal([]byte(content), &p); err != nil || p.Type != PayloadType || p.Signature == "" {
		return VerificationResult{Reason: ReasonMalformed}
	}
	return VerifyPayload(p, secret, document, now)
}

// VerifyPayload is Verify for an already decoded payload.
func VerifyPayload(p Payload, secret string, document []byte, now time.Time) VerificationResult {
	res := VerificationResult{
		Certificate: &p.Certificate,
		IssuedAt:    p.Timestamp,
		ExpiresAt:   p.ExpiresAt,
	}

	expected, err := computeSignature([]byte(secret), p.Algorithm,
		canonicalBytes(p.Certificate, p.Timestamp, p.ExpiresAt, p.DocumentHash))
	if err != nil {
		res.Reason = ReasonUnsupported
		return res
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(p.Signature)) != 1 {
		res.Reason = ReasonSignatureMismatch
		return res
	}
	if p.ExpiresAt != 0 && now.UnixMilli() > p.ExpiresAt {
		res.Reason = ReasonExpired
		return res
	}
	if p.DocumentHash != "" && document != nil {
		res.DocumentChecked = true
		if subtle.ConstantTimeCompare([]byte(DocumentHash(document)), []byte(p.DocumentHash)) != 1 {
			res.Reason = ReasonDocumentMismatch
			return res
		}
	}

	res.Valid = true
	return res
}
