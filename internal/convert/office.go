package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/akannigil/oxygen-documentor-sub000/internal/fileutil"
	"github.com/akannigil/oxygen-documentor-sub000/internal/hints"
	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
	"github.com/akannigil/oxygen-documentor-sub000/internal/process"
)

// DefaultOfficeTimeout bounds one office-suite conversion.
const DefaultOfficeTimeout = 30 * time.Second

// OfficeBinaries are looked up in PATH when no binary is configured.
var OfficeBinaries = []string{"soffice", "libreoffice"}

// OfficeConverter converts with an office suite in headless mode. Page
// options are ignored: the document carries its own layout.
type OfficeConverter struct {
	binary  string
	timeout time.Duration
}

// NewOfficeConverter creates an OfficeConverter. An empty binary means
// the first of OfficeBinaries found in PATH.
func NewOfficeConverter(binary string, timeout time.Duration) *OfficeConverter {
	if timeout <= 0 {
		timeout = DefaultOfficeTimeout
	}
	return &OfficeConverter{binary: binary, timeout: timeout}
}

// Name implements Strategy.
func (o *OfficeConverter) Name() string { return StrategyOffice }

// LookPath resolves the office binary.
func (o *OfficeConverter) LookPath() (string, error) {
	if o.binary != "" {
		return exec.LookPath(o.binary)
	}
	for _, b := range OfficeBinaries {
		if p, err := exec.LookPath(b); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: none of %s in PATH%s", ErrUnavailable, strings.Join(OfficeBinaries, ", "), hints.ForOfficeMissing())
}

// Available implements Strategy.
func (o *OfficeConverter) Available(context.Context) bool {
	_, err := o.LookPath()
	return err == nil
}

// Convert implements Strategy. Each call works in its own temporary
// directory, including a private user profile so that concurrent calls do
// not contend for the suite's profile lock. The directory is removed on
// every exit path.
func (o *OfficeConverter) Convert(ctx context.Context, docx []byte, _ *model.ConversionOptions) ([]byte, error) {
	bin, err := o.LookPath()
	if err != nil {
		return nil, err
	}

	dir, cleanup, err := fileutil.TempDir("office")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	input := filepath.Join(dir, "document.docx")
	if err := os.WriteFile(input, docx, 0o600); err != nil {
		return nil, fmt.Errorf("writing input: %w", err)
	}
	profile := (&url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(dir, "profile"))}).String()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	// #nosec G204 -- binary comes from configuration or PATH lookup
	cmd := exec.CommandContext(ctx, bin,
		"--headless", "--norestore", "--nolockcheck", "--nodefault",
		"-env:UserInstallation="+profile,
		"--convert-to", "pdf",
		"--outdir", dir,
		input,
	)
	var stderr bytes.Buffer
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr
	process.Configure(cmd)

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s%s", ErrTimeout, o.timeout, hints.ForTimeout())
		}
		return nil, fmt.Errorf("%s: %v: %s", filepath.Base(bin), err, strings.TrimSpace(stderr.String()))
	}

	out, err := os.ReadFile(filepath.Join(dir, "document.pdf"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEmptyOutput, strings.TrimSpace(stderr.String()))
	}
	if len(out) == 0 {
		return nil, ErrEmptyOutput
	}
	return out, nil
}

// Close implements Strategy.
func (o *OfficeConverter) Close() error { return nil }

var _ Strategy = (*OfficeConverter)(nil)
