package docx

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
)

// Repair merges substituted values that ended up spread over several text
// fragments back into the first fragment, then drops the fragments left
// empty by substitution. It visits every paragraph, including those inside
// text boxes.
//
// The returned archive is always usable. A part that cannot be parsed is
// kept exactly as Substitute produced it and its error is returned.
func Repair(a *Archive, values []string) (*Archive, error) {
	candidates := make([]string, 0, len(values))
	for _, v := range values {
		if utf8.RuneCountInString(v) > 1 {
			candidates = append(candidates, v)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i]) > len(candidates[j])
	})

	return transformParts(a, func(doc *etree.Document) bool {
		changed := false
		for _, p := range doc.FindElements("//w:p") {
			if repairParagraph(p, candidates) {
				changed = true
			}
		}
		return changed
	})
}

func repairParagraph(p *etree.Element, values []string) bool {
	changed := false
	frags := paragraphFragments(p)

	for i := 0; i < len(frags); i++ {
		if frags[i] == nil {
			continue
		}
		for _, v := range values {
			if m, ok := spell(frags, i, v); ok {
				m.apply(frags, v)
				changed = true
				break
			}
		}
	}

	for _, f := range paragraphFragments(p) {
		if f != nil && f.Text() == "" {
			removeFragment(f)
			changed = true
		}
	}
	return changed
}

// merge describes a value found across fragments first..last. The value
// starts at byte off of the first fragment and ends at byte cut of the last.
type merge struct {
	first, last int
	off, cut    int
}

// spell looks for v starting inside frags[first] and ending in a later
// fragment. Only adjacent fragments with no barrier between them qualify.
func spell(frags []fragment, first int, v string) (merge, bool) {
	head := frags[first].Text()
	for off := 0; off < len(head); off++ {
		if !utf8.RuneStart(head[off]) {
			continue
		}
		acc := head[off:]
		if len(acc) >= len(v) || !strings.HasPrefix(v, acc) {
			continue
		}
		for k := first + 1; k < len(frags) && frags[k] != nil; k++ {
			text := frags[k].Text()
			need := v[len(acc):]
			if strings.HasPrefix(text, need) {
				return merge{first: first, last: k, off: off, cut: len(need)}, true
			}
			if !strings.HasPrefix(need, text) {
				break
			}
			acc += text
		}
	}
	return merge{}, false
}

func (m merge) apply(frags []fragment, v string) {
	head := frags[m.first]
	setText(head, head.Text()[:m.off]+v)

	for k := m.first + 1; k < m.last; k++ {
		frags[k].SetText("")
	}
	tail := frags[m.last]
	setText(tail, tail.Text()[m.cut:])
}
