package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// TestWriteTempFile
// ---------------------------------------------------------------------------

func TestWriteTempFile(t *testing.T) {
	t.Parallel()

	path, cleanup, err := WriteTempFile([]byte("<html></html>"), "html")
	if err != nil {
		t.Fatalf("WriteTempFile: %v", err)
	}
	if !strings.HasSuffix(path, ".html") || !strings.HasPrefix(filepath.Base(path), TempPrefix) {
		t.Errorf("unexpected path %q", path)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "<html></html>" {
		t.Errorf("content = %q, %v", got, err)
	}

	cleanup()
	if FileExists(path) {
		t.Error("cleanup did not remove the file")
	}
}

func TestWriteTempFile_InvalidExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext     string
		wantErr error
	}{
		{"", ErrExtensionEmpty},
		{"../x", ErrExtensionPathTraversal},
		{`a\b`, ErrExtensionPathTraversal},
		{"a\x00", ErrExtensionPathTraversal},
	}
	for _, tt := range tests {
		if _, _, err := WriteTempFile(nil, tt.ext); !errors.Is(err, tt.wantErr) {
			t.Errorf("WriteTempFile(%q) err = %v, want %v", tt.ext, err, tt.wantErr)
		}
	}
}

// ---------------------------------------------------------------------------
// TestTempDir
// ---------------------------------------------------------------------------

func TestTempDir(t *testing.T) {
	t.Parallel()

	dir, cleanup, err := TempDir("office")
	if err != nil {
		t.Fatalf("TempDir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "in.docx"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := DirWritable(dir); err != nil {
		t.Errorf("DirWritable: %v", err)
	}

	cleanup()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("cleanup did not remove the directory")
	}

	if _, _, err := TempDir("a/b"); !errors.Is(err, ErrExtensionPathTraversal) {
		t.Errorf("TempDir(a/b) err = %v", err)
	}
}

func TestTempDir_Distinct(t *testing.T) {
	t.Parallel()

	a, ca, err := TempDir("x")
	if err != nil {
		t.Fatal(err)
	}
	defer ca()
	b, cb, err := TempDir("x")
	if err != nil {
		t.Fatal(err)
	}
	defer cb()
	if a == b {
		t.Error("concurrent invocations must not share a directory")
	}
}

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if !FileExists(file) {
		t.Error("FileExists(file) = false")
	}
	if FileExists(dir) {
		t.Error("FileExists(dir) = true")
	}
	if FileExists(filepath.Join(dir, "missing")) {
		t.Error("FileExists(missing) = true")
	}
}
