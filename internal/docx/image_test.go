package docx

import (
	"errors"
	"strings"
	"testing"
)

var testPNG = []byte("\x89PNG\r\n\x1a\nfake")

func TestInsertImage_ExactRun(t *testing.T) {
	t.Parallel()

	a := openFixture(t, para(run("Scan: [QR] to verify")), nil)
	out, err := InsertImage(a, "[QR]", Image{PNG: testPNG, Width: 200, Height: 200})
	if err != nil {
		t.Fatalf("InsertImage: %v", err)
	}
	out = roundTrip(t, out)

	doc := partString(t, out, documentPart)
	if strings.Contains(doc, "[QR]") {
		t.Error("placeholder still present")
	}
	if got := strings.Join(texts(t, out, documentPart), "|"); got != "Scan: | to verify" {
		t.Errorf("surrounding text = %q", got)
	}
	if !strings.Contains(doc, `cx="1905000"`) {
		t.Error("extent not converted to EMU")
	}

	media, ok := out.File("word/media/image_qr1.png")
	if !ok || string(media) != string(testPNG) {
		t.Error("media part missing")
	}

	rels := partString(t, out, "word/_rels/document.xml.rels")
	if !strings.Contains(rels, `Id="rId2"`) || !strings.Contains(rels, `Target="media/image_qr1.png"`) {
		t.Errorf("relationship not registered: %s", rels)
	}
	if !strings.Contains(doc, `r:embed="rId2"`) {
		t.Error("drawing does not reference the relationship")
	}
	if !strings.Contains(partString(t, out, contentTypesPart), `Extension="png"`) {
		t.Error("png content type not registered")
	}
}

func TestInsertImage_FragmentedPlaceholderReplacesParagraph(t *testing.T) {
	t.Parallel()

	body := `<w:p><w:pPr><w:jc w:val="center"/></w:pPr>` + run("{{qr") + run("_code}}") + `</w:p>`
	a := openFixture(t, body, nil)

	out, err := InsertImage(a, "{{qr_code}}", Image{PNG: testPNG, Width: 100, Height: 100})
	if err != nil {
		t.Fatalf("InsertImage: %v", err)
	}

	doc := partString(t, out, documentPart)
	if strings.Contains(doc, "qr_code}}") || strings.Contains(doc, "{{qr") {
		t.Error("placeholder fragments remain")
	}
	if !strings.Contains(doc, `<w:jc w:val="center"/>`) {
		t.Error("paragraph properties lost")
	}
	if strings.Count(doc, "<w:drawing>") != 1 {
		t.Error("expected one drawing")
	}
}

func TestInsertImage_HeaderGetsOwnRelationships(t *testing.T) {
	t.Parallel()

	a := openFixture(t, para(run("body")), map[string]string{
		"word/header1.xml": wrapBody(para(run("[QR]"))),
	})
	out, err := InsertImage(a, "[QR]", Image{PNG: testPNG, Width: 50, Height: 50})
	if err != nil {
		t.Fatalf("InsertImage: %v", err)
	}

	rels := partString(t, out, "word/_rels/header1.xml.rels")
	if !strings.Contains(rels, `Id="rId1"`) {
		t.Errorf("header relationships = %s", rels)
	}
}

func TestInsertImage_NotFound(t *testing.T) {
	t.Parallel()

	a := openFixture(t, para(run("no placeholder here")), nil)
	out, err := InsertImage(a, "[QR]", Image{PNG: testPNG, Width: 50, Height: 50})
	if !errors.Is(err, ErrPlaceholderNotFound) {
		t.Fatalf("err = %v, want ErrPlaceholderNotFound", err)
	}
	if out != a {
		t.Error("archive should be returned unchanged")
	}
}
