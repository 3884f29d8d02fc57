package docx

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/beevik/etree"
)

const testContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const testRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const testDocRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

// wrapBody wraps paragraphs in a document part.
func wrapBody(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
		`xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" ` +
		`xmlns:wps="http://schemas.microsoft.com/office/word/2010/wordprocessingShape" ` +
		`xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006" ` +
		`xmlns:v="urn:schemas-microsoft-com:vml">` +
		`<w:body>` + body + `</w:body></w:document>`
}

// buildDocx assembles a minimal package. extra parts are added verbatim.
func buildDocx(t *testing.T, body string, extra map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := []struct{ name, content string }{
		{"[Content_Types].xml", testContentTypes},
		{"_rels/.rels", testRootRels},
		{"word/document.xml", wrapBody(body)},
		{"word/_rels/document.xml.rels", testDocRels},
	}
	for name, content := range extra {
		files = append(files, struct{ name, content string }{name, content})
	}
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(f.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func openFixture(t *testing.T, body string, extra map[string]string) *Archive {
	t.Helper()
	a, err := Open(buildDocx(t, body, extra))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return a
}

func partString(t *testing.T, a *Archive, name string) string {
	t.Helper()
	b, ok := a.File(name)
	if !ok {
		t.Fatalf("missing part %s", name)
	}
	return string(b)
}

// texts returns the content of every w:t in the part, in order.
func texts(t *testing.T, a *Archive, name string) []string {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(partString(t, a, name)); err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	var out []string
	for _, e := range doc.FindElements("//w:t") {
		out = append(out, e.Text())
	}
	return out
}

// roundTrip serializes and reopens an archive to prove it is a valid package.
func roundTrip(t *testing.T, a *Archive) *Archive {
	t.Helper()
	b, err := a.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	re, err := Open(b)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	return re
}

func run(text string) string {
	return `<w:r><w:t xml:space="preserve">` + text + `</w:t></w:r>`
}

func para(runs ...string) string {
	return `<w:p>` + strings.Join(runs, "") + `</w:p>`
}
