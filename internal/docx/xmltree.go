package docx

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// ErrParse indicates a part that is not well-formed XML.
var ErrParse = errors.New("cannot parse document part")

// Namespaces used when creating parts and elements.
const (
	nsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsWP  = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPic = "http://schemas.openxmlformats.org/drawingml/2006/picture"
	nsPkg = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsCT  = "http://schemas.openxmlformats.org/package/2006/content-types"

	relImage     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	relFont      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/font"
	relFontTable = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/fontTable"
)

func parsePart(content []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%w: no root element", ErrParse)
	}
	return doc, nil
}

// transformParts applies fn to every content part. Parts that fail to parse
// are left as they were; their errors are joined into the returned error.
// fn reports whether it changed the tree.
func transformParts(a *Archive, fn func(doc *etree.Document) bool) (*Archive, error) {
	out := a.Clone()
	var errs []error
	for _, part := range out.ContentParts() {
		content, _ := out.File(part)
		doc, err := parsePart(content)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", part, err))
			continue
		}
		if !fn(doc) {
			continue
		}
		b, err := doc.WriteToBytes()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", part, err))
			continue
		}
		out.SetFile(part, b)
	}
	return out, errors.Join(errs...)
}

// isW reports whether e is the WordprocessingML element tag.
func isW(e *etree.Element, tag string) bool {
	return e != nil && e.Space == "w" && e.Tag == tag
}

// fragment is a w:t element or a barrier (nil) that text may not be moved across.
type fragment = *etree.Element

// paragraphFragments returns the text fragments owned by p in document
// order. Nested paragraphs (text boxes) are skipped; they are visited on
// their own. Breaks, tabs and drawings become barriers.
func paragraphFragments(p *etree.Element) []fragment {
	var out []fragment
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		for _, c := range e.ChildElements() {
			switch {
			case isW(c, "p"), isW(c, "txbxContent"):
				out = append(out, nil)
			case isW(c, "t"):
				out = append(out, c)
			case isW(c, "br"), isW(c, "tab"), isW(c, "cr"), isW(c, "drawing"), isW(c, "pict"),
				isW(c, "fldChar"), isW(c, "instrText"):
				out = append(out, nil)
			default:
				walk(c)
			}
		}
	}
	walk(p)
	return out
}

// paragraphText joins the text of p's own fragments.
func paragraphText(p *etree.Element) string {
	var b strings.Builder
	for _, f := range paragraphFragments(p) {
		if f != nil {
			b.WriteString(f.Text())
		}
	}
	return b.String()
}

// enclosingRun returns the w:r holding e, or nil.
func enclosingRun(e *etree.Element) *etree.Element {
	for p := e.Parent(); p != nil; p = p.Parent() {
		if isW(p, "r") {
			return p
		}
		if isW(p, "p") {
			return nil
		}
	}
	return nil
}

// removeFragment deletes a w:t and, when its run is left with nothing but
// run properties, the run itself.
func removeFragment(t *etree.Element) {
	run := enclosingRun(t)
	if parent := t.Parent(); parent != nil {
		parent.RemoveChild(t)
	}
	if run == nil {
		return
	}
	for _, c := range run.ChildElements() {
		if !isW(c, "rPr") {
			return
		}
	}
	if parent := run.Parent(); parent != nil {
		parent.RemoveChild(run)
	}
}

func setText(t *etree.Element, s string) {
	t.SetText(s)
	if s != strings.TrimSpace(s) {
		t.CreateAttr("xml:space", "preserve")
	}
}

// childOrdered returns the w:<tag> child of parent, creating it after every
// existing child listed before tag in order. Schema order matters to Word.
func childOrdered(parent *etree.Element, tag string, order []string) *etree.Element {
	if c := parent.SelectElement("w:" + tag); c != nil {
		return c
	}

	rank := make(map[string]int, len(order))
	for i, t := range order {
		rank[t] = i
	}
	want := rank[tag]

	insertAt := 0
	for _, c := range parent.ChildElements() {
		if r, ok := rank[c.Tag]; ok && c.Space == "w" && r < want {
			insertAt = c.Index() + 1
		}
	}

	el := etree.NewElement("w:" + tag)
	parent.InsertChildAt(insertAt, el)
	return el
}

// child returns the w:<tag> child of parent, or nil.
func child(parent *etree.Element, tag string) *etree.Element {
	return parent.SelectElement("w:" + tag)
}

// firstChild returns the w:<tag> child of parent, creating it as the first
// element child.
func firstChild(parent *etree.Element, tag string) *etree.Element {
	if c := parent.SelectElement("w:" + tag); c != nil {
		return c
	}
	el := etree.NewElement("w:" + tag)
	insertAt := 0
	if kids := parent.ChildElements(); len(kids) > 0 {
		insertAt = kids[0].Index()
	}
	parent.InsertChildAt(insertAt, el)
	return el
}

// relsPath returns the relationships part for a part.
func relsPath(part string) string {
	dir, file := path.Split(part)
	return dir + "_rels/" + file + ".rels"
}

// addRelationship registers target in the relationships part of owner and
// returns the new relationship id.
func addRelationship(a *Archive, owner, relType, target string) (string, error) {
	rp := relsPath(owner)
	var doc *etree.Document
	if content, ok := a.File(rp); ok {
		d, err := parsePart(content)
		if err != nil {
			return "", fmt.Errorf("%s: %w", rp, err)
		}
		doc = d
	} else {
		doc = etree.NewDocument()
		doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
		root := doc.CreateElement("Relationships")
		root.CreateAttr("xmlns", nsPkg)
	}

	root := doc.Root()
	maxID := 0
	for _, rel := range root.SelectElements("Relationship") {
		id := rel.SelectAttrValue("Id", "")
		if n, err := strconv.Atoi(strings.TrimPrefix(id, "rId")); err == nil && n > maxID {
			maxID = n
		}
	}
	id := "rId" + strconv.Itoa(maxID+1)

	rel := root.CreateElement("Relationship")
	rel.CreateAttr("Id", id)
	rel.CreateAttr("Type", relType)
	rel.CreateAttr("Target", target)

	b, err := doc.WriteToBytes()
	if err != nil {
		return "", err
	}
	a.SetFile(rp, b)
	return id, nil
}

// hasRelationshipType reports whether owner's relationships include relType.
func hasRelationshipType(a *Archive, owner, relType string) bool {
	content, ok := a.File(relsPath(owner))
	if !ok {
		return false
	}
	doc, err := parsePart(content)
	if err != nil {
		return false
	}
	for _, rel := range doc.Root().SelectElements("Relationship") {
		if rel.SelectAttrValue("Type", "") == relType {
			return true
		}
	}
	return false
}

// ensureContentType registers a Default (by extension) or Override (by part
// name) entry in [Content_Types].xml.
func ensureContentType(a *Archive, ext, partName, contentType string) error {
	content, ok := a.File(contentTypesPart)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingPart, contentTypesPart)
	}
	doc, err := parsePart(content)
	if err != nil {
		return fmt.Errorf("%s: %w", contentTypesPart, err)
	}
	root := doc.Root()

	if ext != "" {
		for _, d := range root.SelectElements("Default") {
			if strings.EqualFold(d.SelectAttrValue("Extension", ""), ext) {
				return nil
			}
		}
		el := etree.NewElement("Default")
		el.CreateAttr("Extension", ext)
		el.CreateAttr("ContentType", contentType)
		root.InsertChildAt(0, el)
	} else {
		for _, o := range root.SelectElements("Override") {
			if o.SelectAttrValue("PartName", "") == partName {
				return nil
			}
		}
		el := root.CreateElement("Override")
		el.CreateAttr("PartName", partName)
		el.CreateAttr("ContentType", contentType)
	}

	b, err := doc.WriteToBytes()
	if err != nil {
		return err
	}
	a.SetFile(contentTypesPart, b)
	return nil
}
