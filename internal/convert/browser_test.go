package convert

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockHTML struct {
	html string
	err  error
}

func (m *mockHTML) DocxToHTML(context.Context, []byte, string) (string, error) {
	return m.html, m.err
}

type mockRenderer struct {
	content string
	opts    *model.ConversionOptions
	out     []byte
	err     error
	closed  bool
}

func (m *mockRenderer) RenderFromFile(_ context.Context, path string, opts *model.ConversionOptions) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m.content = string(b)
	m.opts = opts
	return m.out, m.err
}

func (m *mockRenderer) Close() error {
	m.closed = true
	return nil
}

// ---------------------------------------------------------------------------
// TestBrowserConverter
// ---------------------------------------------------------------------------

func TestBrowserConverter_Convert(t *testing.T) {
	t.Parallel()

	r := &mockRenderer{out: []byte("%PDF")}
	b := &BrowserConverter{html: &mockHTML{html: "<p>Jane</p>"}, renderer: r}

	opts := &model.ConversionOptions{PageSize: "letter"}
	out, err := b.Convert(context.Background(), []byte("docx"), opts)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if string(out) != "%PDF" {
		t.Errorf("out = %q", out)
	}
	if r.content != "<p>Jane</p>" {
		t.Errorf("renderer saw %q", r.content)
	}
	if r.opts != opts {
		t.Error("options not forwarded")
	}

	if err := b.Close(); err != nil || !r.closed {
		t.Errorf("Close: %v, closed = %v", err, r.closed)
	}
}

func TestBrowserConverter_HTMLError(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("bad docx")
	r := &mockRenderer{}
	b := &BrowserConverter{html: &mockHTML{err: sentinel}, renderer: r}
	if _, err := b.Convert(context.Background(), nil, nil); !errors.Is(err, sentinel) {
		t.Errorf("err = %v", err)
	}
	if r.content != "" {
		t.Error("renderer should not run")
	}
}

// ---------------------------------------------------------------------------
// TestPrintOptions
// ---------------------------------------------------------------------------

func TestPrintOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		opts         *model.ConversionOptions
		wantW, wantH float64
		wantTop      float64
	}{
		{"defaults", nil, 8.27, 11.69, model.DefaultMargin},
		{"letter landscape", &model.ConversionOptions{PageSize: "letter", Orientation: "landscape"}, 11, 8.5, model.DefaultMargin},
		{"custom margins", &model.ConversionOptions{Margins: &model.Margins{Top: 1, Right: 0, Bottom: 0, Left: 0}}, 8.27, 11.69, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := printOptions(tt.opts)
			if *p.PaperWidth != tt.wantW || *p.PaperHeight != tt.wantH {
				t.Errorf("paper = %vx%v, want %vx%v", *p.PaperWidth, *p.PaperHeight, tt.wantW, tt.wantH)
			}
			if *p.MarginTop != tt.wantTop {
				t.Errorf("top margin = %v, want %v", *p.MarginTop, tt.wantTop)
			}
			if !p.PrintBackground {
				t.Error("backgrounds must print")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestRodRenderer - Integration
// ---------------------------------------------------------------------------

func TestRodRenderer_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("browser test")
	}
	if _, ok := BrowserPath(); !ok {
		t.Skip("no browser available")
	}

	r := newRodRenderer(0)
	defer func() { _ = r.Close() }()

	path := t.TempDir() + "/doc.html"
	if err := os.WriteFile(path, []byte("<html><body><p>Jane Doe</p></body></html>"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := r.RenderFromFile(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("RenderFromFile: %v", err)
	}
	if len(out) < 4 || string(out[:4]) != "%PDF" {
		t.Error("output is not a PDF")
	}
}
