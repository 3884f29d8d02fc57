package docx

import (
	"strings"

	"github.com/beevik/etree"
)

// Line spacing written on normalized paragraphs: single line height
// (240 twentieths of a point, auto rule) and no extra space before or after.
const (
	spacingLine     = "240"
	spacingLineRule = "auto"
	spacingZero     = "0"
)

// pPrOrder is the schema order of paragraph property children.
var pPrOrder = []string{
	"pStyle", "keepNext", "keepLines", "pageBreakBefore", "framePr", "widowControl",
	"numPr", "suppressLineNumbers", "pBdr", "shd", "tabs", "suppressAutoHyphens",
	"kinsoku", "wordWrap", "overflowPunct", "topLinePunct", "autoSpaceDE", "autoSpaceDN",
	"bidi", "adjustRightInd", "snapToGrid", "spacing", "ind", "contextualSpacing",
	"mirrorIndents", "suppressOverlap", "jc", "textDirection", "textAlignment",
	"textboxTightWrap", "outlineLvl", "divId", "cnfStyle", "rPr", "sectPr", "pPrChange",
}

// NormalizeSpacing gives every paragraph holding one of values explicit
// line spacing so the substituted text keeps the template's vertical
// rhythm. Attributes the template already sets are kept.
func NormalizeSpacing(a *Archive, values []string) (*Archive, error) {
	var nonEmpty []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			nonEmpty = append(nonEmpty, v)
		}
	}
	if len(nonEmpty) == 0 {
		return a, nil
	}

	return transformParts(a, func(doc *etree.Document) bool {
		changed := false
		for _, p := range doc.FindElements("//w:p") {
			if !containsAny(paragraphText(p), nonEmpty) {
				continue
			}
			if setSpacing(p) {
				changed = true
			}
		}
		return changed
	})
}

func setSpacing(p *etree.Element) bool {
	pPr := firstChild(p, "pPr")
	spacing := childOrdered(pPr, "spacing", pPrOrder)

	changed := false
	for _, attr := range []struct{ key, val string }{
		{"w:before", spacingZero},
		{"w:after", spacingZero},
		{"w:line", spacingLine},
		{"w:lineRule", spacingLineRule},
	} {
		if spacing.SelectAttr(attr.key) == nil {
			spacing.CreateAttr(attr.key, attr.val)
			changed = true
		}
	}
	return changed
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
