package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
)

// Sentinel errors for archive handling.
var (
	ErrInvalidArchive = errors.New("invalid docx archive")
	ErrMissingPart    = errors.New("missing document part")
)

// MaxPartSize bounds a single decompressed part.
const MaxPartSize = 64 << 20

const (
	documentPart     = "word/document.xml"
	contentTypesPart = "[Content_Types].xml"
)

// contentPartRe matches the parts that carry user-visible text.
var contentPartRe = regexp.MustCompile(`^word/(document|header\d*|footer\d*|footnotes|endnotes)\.xml$`)

// Archive is an in-memory docx package. File order is preserved on write.
type Archive struct {
	names []string
	files map[string][]byte
}

// Open reads a docx package from bytes.
func Open(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	a := &Archive{files: make(map[string][]byte, len(zr.File))}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		content, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, f.Name, err)
		}
		a.names = append(a.names, f.Name)
		a.files[f.Name] = content
	}

	if _, ok := a.files[documentPart]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingPart, documentPart)
	}
	return a, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, MaxPartSize+1))
	if err != nil {
		return nil, err
	}
	if len(content) > MaxPartSize {
		return nil, fmt.Errorf("part exceeds %d bytes", MaxPartSize)
	}
	return content, nil
}

// Bytes serializes the archive.
func (a *Archive) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range a.names {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("writing %s: %w", name, err)
		}
		if _, err := w.Write(a.files[name]); err != nil {
			return nil, fmt.Errorf("writing %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Clone returns a shallow copy. Part contents are shared, which is safe
// because passes replace part slices rather than writing into them.
func (a *Archive) Clone() *Archive {
	c := &Archive{
		names: append([]string(nil), a.names...),
		files: make(map[string][]byte, len(a.files)),
	}
	for k, v := range a.files {
		c.files[k] = v
	}
	return c
}

// File returns the content of a part.
func (a *Archive) File(name string) ([]byte, bool) {
	b, ok := a.files[name]
	return b, ok
}

// SetFile adds or replaces a part.
func (a *Archive) SetFile(name string, content []byte) {
	if _, ok := a.files[name]; !ok {
		a.names = append(a.names, name)
	}
	a.files[name] = content
}

// Names lists the parts in archive order.
func (a *Archive) Names() []string {
	return append([]string(nil), a.names...)
}

// ContentParts lists the body, header, footer and note parts, body first.
func (a *Archive) ContentParts() []string {
	var parts []string
	for _, name := range a.names {
		if contentPartRe.MatchString(name) {
			parts = append(parts, name)
		}
	}
	sort.SliceStable(parts, func(i, j int) bool {
		return parts[i] == documentPart && parts[j] != documentPart
	})
	return parts
}
