package convert

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

// ---------------------------------------------------------------------------
// Mock Strategy
// ---------------------------------------------------------------------------

type mockStrategy struct {
	name      string
	available bool
	out       []byte
	err       error

	mu     sync.Mutex
	calls  int
	opts   *model.ConversionOptions
	closed bool
}

func (m *mockStrategy) Name() string { return m.name }
func (m *mockStrategy) Available(context.Context) bool { return m.available }

func (m *mockStrategy) Convert(_ context.Context, _ []byte, opts *model.ConversionOptions) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.opts = opts
	return m.out, m.err
}

func (m *mockStrategy) Close() error {
	m.closed = true
	return nil
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingObserver) ObserveConversion(strategy, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, strategy+":"+outcome)
}

// ---------------------------------------------------------------------------
// TestConverter_Convert - Strategy Selection
// ---------------------------------------------------------------------------

func TestConverter_Convert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		primary       *mockStrategy
		fallback      *mockStrategy
		want          string
		wantErr       bool
		wantFallback  int
		wantEvents    []string
		wantWarnCount int
	}{
		{
			name:       "primary succeeds",
			primary:    &mockStrategy{name: "office", available: true, out: []byte("P")},
			fallback:   &mockStrategy{name: "browser", out: []byte("F")},
			want:       "P",
			wantEvents: []string{"office:success"},
		},
		{
			name:          "primary unavailable",
			primary:       &mockStrategy{name: "office"},
			fallback:      &mockStrategy{name: "browser", out: []byte("F")},
			want:          "F",
			wantFallback:  1,
			wantEvents:    []string{"office:unavailable", "browser:success"},
			wantWarnCount: 1,
		},
		{
			name:          "primary fails",
			primary:       &mockStrategy{name: "office", available: true, err: errors.New("crash")},
			fallback:      &mockStrategy{name: "browser", out: []byte("F")},
			want:          "F",
			wantFallback:  1,
			wantEvents:    []string{"office:failure", "browser:success"},
			wantWarnCount: 1,
		},
		{
			name:          "both fail",
			primary:       &mockStrategy{name: "office", available: true, err: errors.New("crash")},
			fallback:      &mockStrategy{name: "browser", err: errors.New("no chrome")},
			wantErr:       true,
			wantFallback:  1,
			wantEvents:    []string{"office:failure", "browser:failure"},
			wantWarnCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.WarnLevel)
			obs := &recordingObserver{}
			c := New(tt.primary, tt.fallback, WithLogger(zap.New(core)), WithObserver(obs))

			out, err := c.Convert(context.Background(), []byte("docx"), nil)
			if tt.wantErr {
				if !errors.Is(err, ErrConversionFailed) {
					t.Fatalf("err = %v, want ErrConversionFailed", err)
				}
				if !strings.Contains(err.Error(), "no chrome") || strings.Contains(err.Error(), "crash") {
					t.Errorf("only the fallback error should surface: %v", err)
				}
			} else {
				if err != nil {
					t.Fatalf("Convert: %v", err)
				}
				if string(out) != tt.want {
					t.Errorf("out = %q, want %q", out, tt.want)
				}
			}

			if tt.fallback.calls != tt.wantFallback {
				t.Errorf("fallback calls = %d, want %d", tt.fallback.calls, tt.wantFallback)
			}
			if strings.Join(obs.events, ",") != strings.Join(tt.wantEvents, ",") {
				t.Errorf("events = %v, want %v", obs.events, tt.wantEvents)
			}
			if logs.Len() != tt.wantWarnCount {
				t.Errorf("warnings = %d, want %d", logs.Len(), tt.wantWarnCount)
			}
		})
	}
}

func TestConverter_Convert_AppliesDefaults(t *testing.T) {
	t.Parallel()

	fb := &mockStrategy{name: "browser", out: []byte("F")}
	if _, err := New(nil, fb).Convert(context.Background(), nil, nil); err != nil {
		t.Fatal(err)
	}
	if fb.opts == nil || fb.opts.PageSize != model.PageSizeA4 || fb.opts.Margins == nil {
		t.Errorf("opts = %+v, want defaults", fb.opts)
	}
}

func TestConverter_Convert_InvalidOptions(t *testing.T) {
	t.Parallel()

	fb := &mockStrategy{name: "browser", out: []byte("F")}
	_, err := New(nil, fb).Convert(context.Background(), nil, &model.ConversionOptions{PageSize: "b9"})
	if !errors.Is(err, ErrConversionFailed) || fb.calls != 0 {
		t.Errorf("err = %v, calls = %d", err, fb.calls)
	}
}

func TestConverter_Convert_NoStrategies(t *testing.T) {
	t.Parallel()

	_, err := New(nil, nil).Convert(context.Background(), nil, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestConverter_Close(t *testing.T) {
	t.Parallel()

	p, f := &mockStrategy{name: "a"}, &mockStrategy{name: "b"}
	if err := New(p, f).Close(); err != nil {
		t.Fatal(err)
	}
	if !p.closed || !f.closed {
		t.Error("strategies not closed")
	}
}

// ---------------------------------------------------------------------------
// TestOfficeConverter - Fake Office Binary
// ---------------------------------------------------------------------------

// fakeOffice writes a shell script standing in for soffice. It copies the
// input (last argument) to <outdir>/document.pdf.
func fakeOffice(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "soffice")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o700); err != nil { // #nosec G306 -- test executable
		t.Fatal(err)
	}
	return path
}

const copyScript = `outdir=""
prev=""
for a in "$@"; do
  if [ "$prev" = "--outdir" ]; then outdir="$a"; fi
  prev="$a"
  last="$a"
done
cp "$last" "$outdir/document.pdf"`

func TestOfficeConverter_Convert(t *testing.T) {
	t.Parallel()

	o := NewOfficeConverter(fakeOffice(t, copyScript), time.Minute)
	if !o.Available(context.Background()) {
		t.Fatal("fake binary should be available")
	}

	out, err := o.Convert(context.Background(), []byte("%PDF-fake"), nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if string(out) != "%PDF-fake" {
		t.Errorf("out = %q", out)
	}
}

func TestOfficeConverter_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		script  string
		timeout time.Duration
		wantErr error
		wantMsg string
	}{
		{name: "timeout", script: "sleep 30", timeout: 200 * time.Millisecond, wantErr: ErrTimeout},
		{name: "no output", script: "exit 0", timeout: time.Minute, wantErr: ErrEmptyOutput},
		{name: "exit status", script: "echo broken >&2; exit 3", timeout: time.Minute, wantMsg: "broken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o := NewOfficeConverter(fakeOffice(t, tt.script), tt.timeout)
			_, err := o.Convert(context.Background(), []byte("x"), nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("err = %v, want message %q", err, tt.wantMsg)
			}
		})
	}
}

func TestOfficeConverter_CleansUpTempDir(t *testing.T) {
	t.Parallel()

	marker := filepath.Join(t.TempDir(), "outdir")
	script := `prev=""
for a in "$@"; do
  if [ "$prev" = "--outdir" ]; then echo "$a" > "` + marker + `"; fi
  prev="$a"
done
exit 1`
	o := NewOfficeConverter(fakeOffice(t, script), time.Minute)
	if _, err := o.Convert(context.Background(), []byte("x"), nil); err == nil {
		t.Fatal("expected error")
	}

	dir, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("script did not record its outdir: %v", err)
	}
	if _, err := os.Stat(strings.TrimSpace(string(dir))); !os.IsNotExist(err) {
		t.Errorf("temp dir %s survived a failed conversion", dir)
	}
}

func TestOfficeConverter_Missing(t *testing.T) {
	t.Parallel()

	o := NewOfficeConverter(filepath.Join(t.TempDir(), "nope"), 0)
	if o.Available(context.Background()) {
		t.Error("missing binary reported available")
	}
	if _, err := o.Convert(context.Background(), nil, nil); err == nil {
		t.Error("expected error")
	}
}
