package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/akannigil/oxygen-documentor-sub000/internal/storage"
)

type fakeHealth struct{ ready bool }

func (f fakeHealth) Ready() bool { return f.ready }

var okMetrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("documentor_jobs_total 1\n"))
})

func newFilesystem(t *testing.T, secret string) *storage.Filesystem {
	t.Helper()
	fs, err := storage.NewFilesystem(t.TempDir(), "http://localhost/files", secret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Upload(context.Background(), []byte("%PDF-1.7"), "documents/j/t/0000-d.pdf", "application/pdf"); err != nil {
		t.Fatal(err)
	}
	return fs
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

// ---------------------------------------------------------------------------
// TestRouter_Health - Queue readiness
// ---------------------------------------------------------------------------

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ready    bool
		wantCode int
		want     string
	}{
		{true, http.StatusOK, "ready"},
		{false, http.StatusServiceUnavailable, "inline"},
	}
	for _, tt := range tests {
		h := newRouter(fakeHealth{tt.ready}, okMetrics, newFilesystem(t, ""), nil, time.Now)
		rec := get(t, h, "/healthz")
		if rec.Code != tt.wantCode {
			t.Errorf("ready=%v: code = %d, want %d", tt.ready, rec.Code, tt.wantCode)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("body is not JSON: %v", err)
		}
		if body["queue"] != tt.want {
			t.Errorf("ready=%v: queue = %q, want %q", tt.ready, body["queue"], tt.want)
		}
	}
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()

	h := newRouter(fakeHealth{true}, okMetrics, newFilesystem(t, ""), nil, time.Now)
	rec := get(t, h, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "documentor_jobs_total") {
		t.Errorf("metrics = %d %q", rec.Code, rec.Body.String())
	}
}

// ---------------------------------------------------------------------------
// TestRouter_Files - Stored document downloads
// ---------------------------------------------------------------------------

func TestRouter_Files_Signed(t *testing.T) {
	t.Parallel()

	fs := newFilesystem(t, "secret")
	h := newRouter(fakeHealth{true}, okMetrics, fs, fs, time.Now)

	signed, err := fs.SignedURL(context.Background(), "documents/j/t/0000-d.pdf", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	u, err := url.Parse(signed)
	if err != nil {
		t.Fatal(err)
	}

	rec := get(t, h, u.RequestURI())
	if rec.Code != http.StatusOK {
		t.Fatalf("signed download = %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != "%PDF-1.7" {
		t.Errorf("body = %q", rec.Body.String())
	}

	tampered := u.Query()
	tampered.Set("signature", strings.Repeat("0", 64))
	rec = get(t, h, u.Path+"?"+tampered.Encode())
	if rec.Code != http.StatusForbidden {
		t.Errorf("tampered signature = %d, want 403", rec.Code)
	}

	rec = get(t, h, u.Path)
	if rec.Code != http.StatusForbidden {
		t.Errorf("unsigned request = %d, want 403", rec.Code)
	}
}

func TestRouter_Files_Expired(t *testing.T) {
	t.Parallel()

	fs := newFilesystem(t, "secret")
	later := func() time.Time { return time.Now().Add(2 * time.Hour) }
	h := newRouter(fakeHealth{true}, okMetrics, fs, fs, later)

	signed, err := fs.SignedURL(context.Background(), "documents/j/t/0000-d.pdf", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(signed)
	if rec := get(t, h, u.RequestURI()); rec.Code != http.StatusForbidden {
		t.Errorf("expired URL = %d, want 403", rec.Code)
	}
}

func TestRouter_Files_Public(t *testing.T) {
	t.Parallel()

	h := newRouter(fakeHealth{true}, okMetrics, newFilesystem(t, ""), nil, time.Now)

	tests := []struct {
		target   string
		wantCode int
	}{
		{"/files/documents/j/t/0000-d.pdf", http.StatusOK},
		{"/files/documents/j/t/missing.pdf", http.StatusNotFound},
		{"/files/documents/j/../../etc/passwd", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := get(t, h, tt.target); rec.Code != tt.wantCode {
			t.Errorf("GET %s = %d, want %d", tt.target, rec.Code, tt.wantCode)
		}
	}
}
