package certificate

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

var testData = Data{
	CertificateID: "C-1",
	HolderName:    "Jane Doe",
	Title:         "Data Science",
	IssueDate:     "2024-03-01",
	Issuer:        "Oxygen Academy",
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// ---------------------------------------------------------------------------
// TestNewSigner
// ---------------------------------------------------------------------------

func TestNewSigner(t *testing.T) {
	t.Parallel()

	if _, err := NewSigner(""); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("empty secret: got %v", err)
	}
	if _, err := NewSigner("k", WithAlgorithm("md5")); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("md5: got %v", err)
	}
}

// ---------------------------------------------------------------------------
// TestSign
// ---------------------------------------------------------------------------

func TestSign_RequiresIdentity(t *testing.T) {
	t.Parallel()

	s, _ := NewSigner("k")
	if _, err := s.Sign(Data{HolderName: "x"}, SignOptions{}); !errors.Is(err, ErrIncompleteCertificate) {
		t.Errorf("missing id: got %v", err)
	}
	if _, err := s.Sign(Data{CertificateID: "x"}, SignOptions{}); !errors.Is(err, ErrIncompleteCertificate) {
		t.Errorf("missing holder: got %v", err)
	}
}

func TestSign_PayloadContent(t *testing.T) {
	t.Parallel()

	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s, _ := NewSigner("k", WithClock(fixedClock(issued)), WithVerifyBaseURL("https://verify.example/certificates"))

	auth, err := s.Sign(testData, SignOptions{Expiry: 24 * time.Hour, Document: []byte("doc")})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	var p Payload
	if err := json.Unmarshal([]byte(auth.Content), &p); err != nil {
		t.Fatalf("content is not JSON: %v", err)
	}
	if p.Type != PayloadType || p.Version != PayloadVersion {
		t.Errorf("type/version = %q/%d", p.Type, p.Version)
	}
	if p.Timestamp != issued.UnixMilli() || p.ExpiresAt != issued.Add(24*time.Hour).UnixMilli() {
		t.Errorf("timestamps = %d/%d", p.Timestamp, p.ExpiresAt)
	}
	if p.DocumentHash != DocumentHash([]byte("doc")) {
		t.Error("document hash not bound")
	}
	if !strings.HasPrefix(auth.VerifyURL, "https://verify.example/certificates/C-1?") ||
		!strings.Contains(auth.VerifyURL, "sig="+auth.Signature) {
		t.Errorf("verify URL = %q", auth.VerifyURL)
	}
	if p.VerifyURL != auth.VerifyURL {
		t.Error("verify URL missing from payload")
	}
}

func TestSign_SHA512SignatureLength(t *testing.T) {
	t.Parallel()

	s, _ := NewSigner("k", WithAlgorithm(SHA512))
	auth, err := s.Sign(testData, SignOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(auth.Signature) != 128 {
		t.Errorf("signature length = %d, want 128 hex chars", len(auth.Signature))
	}
}

// ---------------------------------------------------------------------------
// TestVerify
// ---------------------------------------------------------------------------

func TestVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	first := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(time.Second)

	s1, _ := NewSigner("k", WithClock(fixedClock(first)))
	s2, _ := NewSigner("k", WithClock(fixedClock(second)))

	a1, err := s1.Sign(testData, SignOptions{})
	if err != nil {
		t.Fatal(err)
	}
	a2, err := s2.Sign(testData, SignOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if a1.Signature == a2.Signature {
		t.Error("signatures at different timestamps must differ")
	}
	for i, a := range []*Authenticated{a1, a2} {
		if res := Verify(a.Content, "k", nil, second); !res.Valid {
			t.Errorf("payload %d rejected: %s", i, res.Reason)
		}
		if res := Verify(a.Content, "other", nil, second); res.Valid || res.Reason != ReasonSignatureMismatch {
			t.Errorf("payload %d with wrong secret: %+v", i, res)
		}
	}
}

func TestVerify_FieldMutation(t *testing.T) {
	t.Parallel()

	s, _ := NewSigner("k")
	auth, err := s.Sign(Data{
		CertificateID: "C-1", HolderName: "Jane Doe", Title: "T", IssueDate: "2024-03-01",
		Issuer: "I", Grade: "A", ExpiryDate: "2030-01-01",
	}, SignOptions{Expiry: time.Hour, Document: []byte("doc")})
	if err != nil {
		t.Fatal(err)
	}

	mutations := map[string]func(p *Payload){
		"certificateId": func(p *Payload) { p.Certificate.CertificateID = "C-2" },
		"holderName":    func(p *Payload) { p.Certificate.HolderName = "John Doe" },
		"title":         func(p *Payload) { p.Certificate.Title = "U" },
		"issueDate":     func(p *Payload) { p.Certificate.IssueDate = "2024-03-02" },
		"issuer":        func(p *Payload) { p.Certificate.Issuer = "J" },
		"grade":         func(p *Payload) { p.Certificate.Grade = "A+" },
		"expiryDate":    func(p *Payload) { p.Certificate.ExpiryDate = "2040-01-01" },
		"timestamp":     func(p *Payload) { p.Timestamp++ },
		"expiresAt":     func(p *Payload) { p.ExpiresAt += 1000 },
		"documentHash":  func(p *Payload) { p.DocumentHash = DocumentHash([]byte("other")) },
		"signature":     func(p *Payload) { p.Signature = strings.Repeat("0", len(p.Signature)) },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p := auth.Payload()
			mutate(&p)
			if res := VerifyPayload(p, "k", nil, time.Now()); res.Valid {
				t.Errorf("mutated %s still verifies", name)
			}
		})
	}

	if res := VerifyPayload(auth.Payload(), "k", nil, time.Now()); !res.Valid {
		t.Errorf("unmodified payload rejected: %s", res.Reason)
	}
}

func TestSign_MetadataIsCarriedUnsigned(t *testing.T) {
	t.Parallel()

	s, _ := NewSigner("k")
	auth, err := s.Sign(Data{
		CertificateID: "C-1", HolderName: "Jane Doe",
		Metadata: map[string]string{"cohort": "2024-B"},
	}, SignOptions{})
	if err != nil {
		t.Fatal(err)
	}

	res := Verify(auth.Content, "k", nil, time.Now())
	if !res.Valid || res.Certificate.Metadata["cohort"] != "2024-B" {
		t.Fatalf("Verify() = %+v, want valid with metadata", res)
	}

	p := auth.Payload()
	p.Certificate.Metadata = map[string]string{"cohort": "other"}
	if res := VerifyPayload(p, "k", nil, time.Now()); !res.Valid {
		t.Errorf("metadata change rejected: %s", res.Reason)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s, _ := NewSigner("k", WithClock(fixedClock(issued)))
	auth, _ := s.Sign(testData, SignOptions{Expiry: time.Hour})

	if res := Verify(auth.Content, "k", nil, issued.Add(59*time.Minute)); !res.Valid {
		t.Errorf("before expiry: %s", res.Reason)
	}
	if res := Verify(auth.Content, "k", nil, issued.Add(61*time.Minute)); res.Reason != ReasonExpired {
		t.Errorf("after expiry: %+v", res)
	}
}

func TestVerify_Document(t *testing.T) {
	t.Parallel()

	s, _ := NewSigner("k")
	auth, _ := s.Sign(testData, SignOptions{Document: []byte("original")})

	res := Verify(auth.Content, "k", []byte("original"), time.Now())
	if !res.Valid || !res.DocumentChecked {
		t.Errorf("matching document: %+v", res)
	}
	res = Verify(auth.Content, "k", []byte("tampered"), time.Now())
	if res.Valid || res.Reason != ReasonDocumentMismatch {
		t.Errorf("tampered document: %+v", res)
	}
	res = Verify(auth.Content, "k", nil, time.Now())
	if !res.Valid || res.DocumentChecked {
		t.Errorf("no document presented: %+v", res)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	for _, content := range []string{"", "https://example.com", `{"type":"other","signature":"x"}`, `{"type":"certificate"}`} {
		if res := Verify(content, "k", nil, time.Now()); res.Valid || res.Reason != ReasonMalformed {
			t.Errorf("Verify(%q) = %+v", content, res)
		}
	}
}
