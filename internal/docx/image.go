package docx

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// ErrPlaceholderNotFound indicates an image placeholder absent from every part.
var ErrPlaceholderNotFound = errors.New("placeholder not found")

// emuPerPixel converts 96 DPI pixels to English Metric Units.
const emuPerPixel = 9525

// Image is a PNG raster to splice into a document.
type Image struct {
	PNG    []byte
	Width  int // pixels
	Height int // pixels
	Name   string
}

// InsertImage replaces every occurrence of placeholder with img. When a
// single text fragment holds the placeholder only that fragment's run is
// replaced, otherwise the whole paragraph is. It returns
// ErrPlaceholderNotFound with the unchanged archive when nothing matched.
func InsertImage(a *Archive, placeholder string, img Image) (*Archive, error) {
	if placeholder == "" {
		return a, fmt.Errorf("%w: empty placeholder", ErrPlaceholderNotFound)
	}

	out := a.Clone()
	media := uniqueName(out, "word/media/image_qr", ".png")
	out.SetFile(media, img.PNG)

	inserted := 0
	for _, part := range out.ContentParts() {
		content, _ := out.File(part)
		if !strings.Contains(paragraphTextRaw(content), placeholder) {
			continue
		}
		doc, err := parsePart(content)
		if err != nil {
			return a, fmt.Errorf("%s: %w", part, err)
		}

		targets := matchingParagraphs(doc, placeholder)
		if len(targets) == 0 {
			continue
		}

		relID, err := addRelationship(out, part, relImage, strings.TrimPrefix(media, "word/"))
		if err != nil {
			return a, err
		}

		nextID := maxDocPrID(doc) + 1
		for _, p := range targets {
			n, err := spliceParagraph(p, placeholder, func() (*etree.Element, error) {
				run, err := drawingRun(relID, nextID, img)
				nextID++
				return run, err
			})
			if err != nil {
				return a, err
			}
			inserted += n
		}

		b, err := doc.WriteToBytes()
		if err != nil {
			return a, err
		}
		out.SetFile(part, b)
	}

	if inserted == 0 {
		return a, fmt.Errorf("%w: %q", ErrPlaceholderNotFound, placeholder)
	}
	if err := ensureContentType(out, "png", "", "image/png"); err != nil {
		return a, err
	}
	return out, nil
}

// paragraphTextRaw strips markup for a cheap containment check.
func paragraphTextRaw(content []byte) string {
	return html.UnescapeString(string(tagRe.ReplaceAll(content, nil)))
}

func matchingParagraphs(doc *etree.Document, placeholder string) []*etree.Element {
	var out []*etree.Element
	for _, p := range doc.FindElements("//w:p") {
		if strings.Contains(paragraphText(p), placeholder) {
			out = append(out, p)
		}
	}
	return out
}

// spliceParagraph replaces placeholder occurrences in p and returns how
// many images were inserted.
func spliceParagraph(p *etree.Element, placeholder string, newRun func() (*etree.Element, error)) (int, error) {
	n := 0
	for _, t := range paragraphFragments(p) {
		if t == nil || !strings.Contains(t.Text(), placeholder) {
			continue
		}
		run := enclosingRun(t)
		if run == nil || t.Parent() != run {
			continue
		}
		drawing, err := newRun()
		if err != nil {
			return n, err
		}
		replaceInRun(run, t, placeholder, drawing)
		n++
	}
	if n > 0 || !strings.Contains(paragraphText(p), placeholder) {
		return n, nil
	}

	// The placeholder spans fragments: replace the paragraph's content.
	drawing, err := newRun()
	if err != nil {
		return 0, err
	}
	for _, c := range p.ChildElements() {
		if !isW(c, "pPr") {
			p.RemoveChild(c)
		}
	}
	p.AddChild(drawing)
	return 1, nil
}

// replaceInRun splits run around the first placeholder in t and puts
// drawing in between.
func replaceInRun(run, t *etree.Element, placeholder string, drawing *etree.Element) {
	parent := run.Parent()
	text := t.Text()
	idx := strings.Index(text, placeholder)
	before, after := text[:idx], text[idx+len(placeholder):]
	pos := run.Index()

	parent.InsertChildAt(pos+1, drawing)
	if after != "" {
		afterRun := run.Copy()
		for _, c := range afterRun.ChildElements() {
			if !isW(c, "rPr") && !isW(c, "t") {
				afterRun.RemoveChild(c)
			}
		}
		setText(afterRun.SelectElement("w:t"), after)
		parent.InsertChildAt(pos+2, afterRun)
	}
	if before != "" {
		setText(t, before)
	} else {
		removeFragment(t)
	}
}

func maxDocPrID(doc *etree.Document) int {
	maxID := 0
	for _, e := range doc.FindElements("//wp:docPr") {
		if n, err := strconv.Atoi(e.SelectAttrValue("id", "")); err == nil && n > maxID {
			maxID = n
		}
	}
	if maxID < 1000 {
		maxID = 1000
	}
	return maxID
}

// drawingRun builds an inline picture run. Namespaces are declared on the
// run so it is valid wherever it lands.
func drawingRun(relID string, id int, img Image) (*etree.Element, error) {
	cx := img.Width * emuPerPixel
	cy := img.Height * emuPerPixel
	name := img.Name
	if name == "" {
		name = "QR Code " + strconv.Itoa(id)
	}

	src := fmt.Sprintf(`<w:r xmlns:w="%s" xmlns:r="%s" xmlns:wp="%s" xmlns:a="%s" xmlns:pic="%s">`+
		`<w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">`+
		`<wp:extent cx="%d" cy="%d"/><wp:effectExtent l="0" t="0" r="0" b="0"/>`+
		`<wp:docPr id="%d" name="%s"/>`+
		`<wp:cNvGraphicFramePr><a:graphicFrameLocks noChangeAspect="1"/></wp:cNvGraphicFramePr>`+
		`<a:graphic><a:graphicData uri="%s"><pic:pic>`+
		`<pic:nvPicPr><pic:cNvPr id="0" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`+
		`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r>`,
		nsW, nsR, nsWP, nsA, nsPic,
		cx, cy, id, escapeAttr(name), nsPic, escapeAttr(name), relID, cx, cy)

	doc := etree.NewDocument()
	if err := doc.ReadFromString(src); err != nil {
		return nil, fmt.Errorf("building drawing: %w", err)
	}
	run := doc.Root()
	doc.RemoveChild(run)
	return run, nil
}

func escapeAttr(s string) string {
	return strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;", `"`, "&quot;").Replace(s)
}
