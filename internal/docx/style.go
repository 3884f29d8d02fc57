package docx

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

// rPrOrder is the schema order of run property children.
var rPrOrder = []string{
	"rStyle", "rFonts", "b", "bCs", "i", "iCs", "caps", "smallCaps", "strike",
	"dstrike", "outline", "shadow", "emboss", "imprint", "noProof", "snapToGrid",
	"vanish", "webHidden", "color", "spacing", "w", "kern", "position", "sz",
	"szCs", "highlight", "u", "effect", "bdr", "shd", "fitText", "vertAlign",
	"rtl", "cs", "em", "lang", "eastAsianLayout", "specVanish", "oMath",
}

// StyledValue pairs a substituted value with the style to put on it.
type StyledValue struct {
	Value string
	Style model.Style
}

// ApplyStyles puts each style on the runs whose text is exactly its value.
// A run holding the value among other text is first split so the value
// sits in a run of its own.
func ApplyStyles(a *Archive, styled []StyledValue) (*Archive, error) {
	var todo []StyledValue
	for _, s := range styled {
		if s.Value != "" {
			todo = append(todo, s)
		}
	}
	if len(todo) == 0 {
		return a, nil
	}

	return transformParts(a, func(doc *etree.Document) bool {
		changed := false
		for _, p := range doc.FindElements("//w:p") {
			for _, s := range todo {
				for _, t := range isolateValue(p, s.Value) {
					if run := enclosingRun(t); run != nil {
						applyRunStyle(run, s.Style)
						changed = true
					}
				}
			}
		}
		return changed
	})
}

// isolateValue returns the fragments of p whose text equals v, splitting
// single-fragment runs that contain v inside longer text.
func isolateValue(p *etree.Element, v string) []*etree.Element {
	var out []*etree.Element
	for _, t := range paragraphFragments(p) {
		if t == nil {
			continue
		}
		text := t.Text()
		if text == v {
			out = append(out, t)
			continue
		}
		idx := strings.Index(text, v)
		if idx < 0 {
			continue
		}
		if split := splitRun(t, idx, len(v)); split != nil {
			out = append(out, split)
		}
	}
	return out
}

// splitRun turns the run holding t into up to three runs (before, value,
// after) sharing its properties and returns the value's w:t. Runs carrying
// anything besides properties and this fragment are left alone.
func splitRun(t *etree.Element, idx, n int) *etree.Element {
	run := enclosingRun(t)
	if run == nil || t.Parent() != run {
		return nil
	}
	for _, c := range run.ChildElements() {
		if c != t && !isW(c, "rPr") {
			return nil
		}
	}
	parent := run.Parent()
	if parent == nil {
		return nil
	}

	text := t.Text()
	before, value, after := text[:idx], text[idx:idx+n], text[idx+n:]
	pos := run.Index()

	valueRun := run.Copy()
	setText(valueRun.SelectElement("w:t"), value)
	parent.InsertChildAt(pos+1, valueRun)

	if after != "" {
		afterRun := run.Copy()
		setText(afterRun.SelectElement("w:t"), after)
		parent.InsertChildAt(pos+2, afterRun)
	}

	if before != "" {
		setText(t, before)
	} else {
		parent.RemoveChild(run)
	}
	return valueRun.SelectElement("w:t")
}

func applyRunStyle(run *etree.Element, s model.Style) {
	rPr := firstChild(run, "rPr")

	if s.FontFamily != "" {
		fonts := childOrdered(rPr, "rFonts", rPrOrder)
		for _, key := range []string{"w:ascii", "w:hAnsi", "w:cs", "w:eastAsia"} {
			fonts.CreateAttr(key, s.FontFamily)
		}
		fonts.RemoveAttr("w:asciiTheme")
		fonts.RemoveAttr("w:hAnsiTheme")
	}
	if s.Bold {
		childOrdered(rPr, "b", rPrOrder)
	}
	if s.Italic {
		childOrdered(rPr, "i", rPrOrder)
	}
	if c := normalizeColor(s.Color); c != "" {
		childOrdered(rPr, "color", rPrOrder).CreateAttr("w:val", c)
	}
	if s.FontSize > 0 {
		halfPoints := strconv.Itoa(int(s.FontSize*2 + 0.5))
		childOrdered(rPr, "sz", rPrOrder).CreateAttr("w:val", halfPoints)
		childOrdered(rPr, "szCs", rPrOrder).CreateAttr("w:val", halfPoints)
	}
	if s.Underline {
		childOrdered(rPr, "u", rPrOrder).CreateAttr("w:val", "single")
	}
}

// normalizeColor returns an upper-case RRGGBB string, or "" when c is not a
// six-digit hex color.
func normalizeColor(c string) string {
	c = strings.TrimPrefix(strings.TrimSpace(c), "#")
	if len(c) != 6 {
		return ""
	}
	if _, err := strconv.ParseUint(c, 16, 32); err != nil {
		return ""
	}
	return strings.ToUpper(c)
}
