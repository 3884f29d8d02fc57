package docx

import (
	"encoding/base64"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

var (
	headingStyleRe = regexp.MustCompile(`(?i)^(?:heading|titre)\s*([1-6])$`)
	mdSpecial      = strings.NewReplacer(
		`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`,
		"<", `\<`, ">", `\>`, "#", `\#`, "|", `\|`,
	)
)

var imageMIME = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ToMarkdown renders the body of a as GitHub-flavored Markdown: headings,
// lists, tables, bold and italic runs, and inline images embedded as data
// URIs. Headers, footers and positioning are not represented.
func ToMarkdown(a *Archive) (string, error) {
	content, _ := a.File(documentPart)
	doc, err := parsePart(content)
	if err != nil {
		return "", err
	}
	body := doc.FindElement("//w:body")
	if body == nil {
		return "", fmt.Errorf("%w: no body", ErrParse)
	}

	w := &mdWriter{archive: a, rels: relationships(a, documentPart)}
	for _, el := range body.ChildElements() {
		switch {
		case isW(el, "p"):
			w.paragraph(el)
		case isW(el, "tbl"):
			w.table(el)
		}
	}
	return strings.TrimSpace(w.b.String()) + "\n", nil
}

type mdWriter struct {
	b       strings.Builder
	archive *Archive
	rels    map[string]string
}

func (w *mdWriter) paragraph(p *etree.Element) {
	text := w.inline(p)
	if strings.TrimSpace(text) == "" {
		return
	}

	prefix := ""
	if pPr := child(p, "pPr"); pPr != nil {
		if style := child(pPr, "pStyle"); style != nil {
			val := style.SelectAttrValue("w:val", "")
			if m := headingStyleRe.FindStringSubmatch(val); m != nil {
				n, _ := strconv.Atoi(m[1])
				prefix = strings.Repeat("#", n) + " "
			} else if strings.EqualFold(val, "title") {
				prefix = "# "
			}
		}
		if numPr := child(pPr, "numPr"); numPr != nil && prefix == "" {
			level := 0
			if ilvl := child(numPr, "ilvl"); ilvl != nil {
				level, _ = strconv.Atoi(ilvl.SelectAttrValue("w:val", "0"))
			}
			prefix = strings.Repeat("  ", level) + "- "
		}
	}

	list := strings.HasSuffix(prefix, "- ")
	if !list {
		w.blankLine()
	}
	w.b.WriteString(prefix + text + "\n")
	if !list {
		w.b.WriteString("\n")
	}
}

// blankLine ends a preceding list so the next block is not folded into it.
func (w *mdWriter) blankLine() {
	if out := w.b.String(); out != "" && !strings.HasSuffix(out, "\n\n") {
		w.b.WriteString("\n")
	}
}

// inline renders the runs of p, including images, on one line. Nested
// text-box paragraphs are flattened into it.
func (w *mdWriter) inline(p *etree.Element) string {
	var sb strings.Builder
	for _, r := range p.FindElements(".//w:r") {
		if inFallback(r) {
			continue
		}
		var run strings.Builder
		for _, c := range r.ChildElements() {
			switch {
			case isW(c, "t"):
				run.WriteString(mdSpecial.Replace(c.Text()))
			case isW(c, "tab"):
				run.WriteString(" ")
			case isW(c, "br"), isW(c, "cr"):
				run.WriteString("  \n")
			case isW(c, "drawing"), c.Space == "mc":
				run.WriteString(w.images(c))
			}
		}
		sb.WriteString(emphasis(r, run.String()))
	}
	return sb.String()
}

// inFallback reports whether e sits in the legacy branch of an
// mc:AlternateContent, which duplicates the preferred branch.
func inFallback(e *etree.Element) bool {
	for p := e.Parent(); p != nil; p = p.Parent() {
		if p.Space == "mc" && p.Tag == "Fallback" {
			return true
		}
	}
	return false
}

func emphasis(r *etree.Element, s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	rPr := child(r, "rPr")
	if rPr == nil {
		return s
	}
	mark := ""
	if on(child(rPr, "b")) {
		mark += "**"
	}
	if on(child(rPr, "i")) {
		mark += "*"
	}
	if mark == "" {
		return s
	}
	lead := s[:strings.Index(s, trimmed)]
	trail := s[len(lead)+len(trimmed):]
	return lead + mark + trimmed + reverse(mark) + trail
}

func on(e *etree.Element) bool {
	if e == nil {
		return false
	}
	switch e.SelectAttrValue("w:val", "true") {
	case "0", "false", "off":
		return false
	}
	return true
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// images renders every blip under e as a Markdown image with a data URI.
func (w *mdWriter) images(e *etree.Element) string {
	var sb strings.Builder
	seen := map[string]bool{}
	for _, blip := range e.FindElements(".//a:blip") {
		id := blip.SelectAttrValue("r:embed", "")
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		target, ok := w.rels[id]
		if !ok {
			continue
		}
		mime, ok := imageMIME[strings.ToLower(path.Ext(target))]
		if !ok {
			continue
		}
		data, ok := w.archive.File(target)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "![](data:%s;base64,%s)", mime, base64.StdEncoding.EncodeToString(data))
	}
	return sb.String()
}

func (w *mdWriter) table(tbl *etree.Element) {
	var rows [][]string
	width := 0
	for _, tr := range tbl.ChildElements() {
		if !isW(tr, "tr") {
			continue
		}
		var cells []string
		for _, tc := range tr.ChildElements() {
			if !isW(tc, "tc") {
				continue
			}
			var parts []string
			for _, p := range tc.ChildElements() {
				if isW(p, "p") {
					if s := strings.TrimSpace(strings.ReplaceAll(w.inline(p), "  \n", " ")); s != "" {
						parts = append(parts, s)
					}
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		if len(cells) > width {
			width = len(cells)
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return
	}

	w.blankLine()
	line := func(cells []string) {
		for len(cells) < width {
			cells = append(cells, "")
		}
		w.b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	line(rows[0])
	sep := make([]string, width)
	for i := range sep {
		sep[i] = "---"
	}
	line(sep)
	for _, r := range rows[1:] {
		line(r)
	}
	w.b.WriteString("\n")
}

// relationships maps relationship ids of part to archive paths.
func relationships(a *Archive, part string) map[string]string {
	out := map[string]string{}
	content, ok := a.File(relsPath(part))
	if !ok {
		return out
	}
	doc, err := parsePart(content)
	if err != nil {
		return out
	}
	dir := path.Dir(part)
	for _, rel := range doc.Root().SelectElements("Relationship") {
		if rel.SelectAttrValue("TargetMode", "") == "External" {
			continue
		}
		target := rel.SelectAttrValue("Target", "")
		if strings.HasPrefix(target, "/") {
			target = strings.TrimPrefix(target, "/")
		} else {
			target = path.Join(dir, target)
		}
		out[rel.SelectAttrValue("Id", "")] = target
	}
	return out
}
