package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/akannigil/oxygen-documentor-sub000/internal/fileutil"
	"github.com/akannigil/oxygen-documentor-sub000/internal/hints"
	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
	"github.com/akannigil/oxygen-documentor-sub000/internal/process"
)

// DefaultBrowserTimeout bounds page load and printing.
const DefaultBrowserTimeout = 30 * time.Second

// HTMLBuilder renders a docx package to a printable HTML document.
type HTMLBuilder interface {
	DocxToHTML(ctx context.Context, docx []byte, title string) (string, error)
}

// pdfRenderer prints a local HTML file. It is the seam that lets tests
// run without a browser.
type pdfRenderer interface {
	RenderFromFile(ctx context.Context, path string, opts *model.ConversionOptions) ([]byte, error)
	Close() error
}

// BrowserConverter prints an HTML approximation of the document with
// headless Chrome. The browser is launched on first use and reused.
type BrowserConverter struct {
	html     HTMLBuilder
	renderer pdfRenderer
}

// NewBrowserConverter creates a BrowserConverter.
func NewBrowserConverter(html HTMLBuilder, timeout time.Duration) *BrowserConverter {
	return &BrowserConverter{html: html, renderer: newRodRenderer(timeout)}
}

// Name implements Strategy.
func (b *BrowserConverter) Name() string { return StrategyBrowser }

// Available implements Strategy.
func (b *BrowserConverter) Available(context.Context) bool {
	_, ok := BrowserPath()
	return ok
}

// BrowserPath returns the browser binary from ROD_BROWSER_BIN or a system
// lookup.
func BrowserPath() (string, bool) {
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		return bin, fileutil.FileExists(bin)
	}
	return launcher.LookPath()
}

// Convert implements Strategy.
func (b *BrowserConverter) Convert(ctx context.Context, docx []byte, opts *model.ConversionOptions) ([]byte, error) {
	doc, err := b.html.DocxToHTML(ctx, docx, "document")
	if err != nil {
		return nil, err
	}

	path, cleanup, err := fileutil.WriteTempFile([]byte(doc), "html")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return b.renderer.RenderFromFile(ctx, path, opts)
}

// Close releases the browser.
func (b *BrowserConverter) Close() error {
	return b.renderer.Close()
}

var _ Strategy = (*BrowserConverter)(nil)

// rodRenderer implements pdfRenderer with go-rod.
type rodRenderer struct {
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	timeout  time.Duration
}

func newRodRenderer(timeout time.Duration) *rodRenderer {
	if timeout <= 0 {
		timeout = DefaultBrowserTimeout
	}
	return &rodRenderer{timeout: timeout}
}

// ensureBrowser lazily launches and connects to the browser.
func (r *rodRenderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New()
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}
	if os.Getenv("CI") == "true" || os.Getenv("ROD_NO_SANDBOX") == "1" || os.Getenv("ROD_BROWSER_BIN") != "" {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v%s", ErrBrowserConnect, err, hints.ForBrowserConnect())
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: %v%s", ErrBrowserConnect, err, hints.ForBrowserConnect())
	}
	r.browser = browser
	r.launcher = l
	return browser, nil
}

// Close closes the browser and kills its process group.
func (r *rodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	if pid := r.launcher.PID(); pid > 0 {
		process.KillProcessGroup(pid)
	}
	r.launcher.Cleanup()
	r.browser = nil
	r.launcher = nil
	return err
}

// RenderFromFile opens a local HTML file and prints it to PDF.
func (r *rodRenderer) RenderFromFile(ctx context.Context, path string, opts *model.ConversionOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	browser, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "file://" + path})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	defer func() { _ = page.Close() }()

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if timeout = time.Until(deadline); timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %v%s", ErrPageLoad, err, hints.ForTimeout())
	}

	reader, err := page.PDF(printOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}
	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrPDFGeneration, err)
	}
	if len(out) == 0 {
		return nil, ErrEmptyOutput
	}
	return out, nil
}

// printOptions maps page settings onto Chrome's print parameters.
func printOptions(opts *model.ConversionOptions) *proto.PagePrintToPDF {
	opts = opts.WithDefaults()
	w, h := opts.PaperInches()
	m := opts.Margins
	return &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(w),
		PaperHeight:     floatPtr(h),
		MarginTop:       floatPtr(m.Top),
		MarginBottom:    floatPtr(m.Bottom),
		MarginLeft:      floatPtr(m.Left),
		MarginRight:     floatPtr(m.Right),
		PrintBackground: true,
	}
}

func floatPtr(v float64) *float64 {
	return &v
}
