package main

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Test Infrastructure
// ---------------------------------------------------------------------------

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type testIO struct {
	env    *Environment
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestEnv() testIO {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	return testIO{
		env: &Environment{
			Now:    func() time.Time { return fixedNow },
			Stdout: stdout,
			Stderr: stderr,
		},
		stdout: stdout,
		stderr: stderr,
	}
}

// writeConfig writes a config isolated in a temp directory with both
// converters disabled. extra is appended verbatim and must not repeat a
// section already written.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	return writeConfigConverters(t, false, extra)
}

// writeConfigConverters is writeConfig with the converters enabled or
// disabled.
func writeConfigConverters(t *testing.T, enabled bool, extra string) string {
	t.Helper()
	dir := t.TempDir()
	disabled := strconv.FormatBool(!enabled)
	content := `log:
  level: error
database:
  driver: sqlite
  dsn: ` + filepath.Join(dir, "documentor.db") + `
storage:
  backend: filesystem
  root: ` + filepath.Join(dir, "files") + `
converter:
  disableOffice: ` + disabled + `
  disableBrowser: ` + disabled + `
` + extra
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

// buildDocx returns a minimal docx with one paragraph per line.
func buildDocx(t *testing.T, lines ...string) []byte {
	t.Helper()

	var body strings.Builder
	for _, l := range lines {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + l + `</w:t></w:r></w:p>`)
	}
	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`</Types>`,
		"_rels/.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
			`</Relationships>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
			`<w:body>` + body.String() + `</w:body></w:document>`,
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// ---------------------------------------------------------------------------
// TestRunMain - Command dispatch and exit codes
// ---------------------------------------------------------------------------

func TestRunMain(t *testing.T) {
	t.Parallel()

	disabledQueue := writeConfig(t, "queue:\n  disabled: true\n")

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{"no args", nil, ExitUsage, "", "Usage: documentor"},
		{"version", []string{"version"}, ExitSuccess, "documentor dev", ""},
		{"version flag", []string{"--version"}, ExitSuccess, "documentor dev", ""},
		{"help", []string{"help"}, ExitSuccess, "Commands:", ""},
		{"help generate", []string{"help", "generate"}, ExitSuccess, "--template", ""},
		{"help unknown", []string{"help", "nope"}, ExitSuccess, "", "Unknown command: nope"},
		{"unknown command", []string{"nope"}, ExitUsage, "", "Unknown command: nope"},
		{"generate without flags", []string{"generate"}, ExitUsage, "", "--template and --rows are required"},
		{"generate help flag", []string{"generate", "--help"}, ExitSuccess, "", ""},
		{"generate bad flag", []string{"generate", "--bogus"}, ExitUsage, "", "unknown flag"},
		{"status without id", []string{"status", "-c", disabledQueue}, ExitUsage, "", "expected one job ID"},
		{"status with disabled queue", []string{"status", "-c", disabledQueue, "42"}, ExitBroker, "", "job queue unavailable"},
		{"detect missing file", []string{"detect", "/nonexistent/template.docx"}, ExitIO, "", "reading input"},
		{"missing config", []string{"verify", "-c", "/nonexistent/config.yaml", "{}"}, ExitUsage, "", "config file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tio := newTestEnv()
			code := runMain(context.Background(), tt.args, tio.env)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tt.wantCode, tio.stderr.String())
			}
			if tt.wantStdout != "" && !strings.Contains(tio.stdout.String(), tt.wantStdout) {
				t.Errorf("stdout = %q, want substring %q", tio.stdout.String(), tt.wantStdout)
			}
			if tt.wantStderr != "" && !strings.Contains(tio.stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want substring %q", tio.stderr.String(), tt.wantStderr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestRunDetect - Variable listing
// ---------------------------------------------------------------------------

func TestRunDetect(t *testing.T) {
	t.Parallel()

	tpl := writeFile(t, t.TempDir(), "t.docx", buildDocx(t, "Dear {{name}},", "Issued {{date}} to {{ name }}"))

	t.Run("lines", func(t *testing.T) {
		t.Parallel()
		tio := newTestEnv()
		if code := runMain(context.Background(), []string{"detect", tpl}, tio.env); code != ExitSuccess {
			t.Fatalf("exit code = %d, stderr: %s", code, tio.stderr.String())
		}
		if got := tio.stdout.String(); got != "name\ndate\n" {
			t.Errorf("stdout = %q, want %q", got, "name\ndate\n")
		}
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		tio := newTestEnv()
		if code := runMain(context.Background(), []string{"detect", "--json", tpl}, tio.env); code != ExitSuccess {
			t.Fatalf("exit code = %d", code)
		}
		if got := strings.Join(strings.Fields(tio.stdout.String()), ""); got != `["name","date"]` {
			t.Errorf("stdout = %q", got)
		}
	})

	t.Run("not a docx", func(t *testing.T) {
		t.Parallel()
		bad := writeFile(t, t.TempDir(), "bad.docx", []byte("plain text"))
		tio := newTestEnv()
		if code := runMain(context.Background(), []string{"detect", bad}, tio.env); code != ExitGeneral {
			t.Errorf("exit code = %d, want %d", code, ExitGeneral)
		}
	})
}
