package docx

import (
	"bytes"
	"encoding/xml"
	"html"
	"regexp"
	"strings"
)

// placeholderRe matches {{name}} even when the editor scattered run markup
// between the braces or inside the name. Matches spanning a paragraph
// boundary are rejected by withinParagraph.
var placeholderRe = regexp.MustCompile(`\{(?:<[^>]*>)*\{((?:<[^>]*>|[^{}<])*?)\}(?:<[^>]*>)*\}`)

var (
	tagRe          = regexp.MustCompile(`<[^>]*>`)
	paragraphTagRe = regexp.MustCompile(`</?w:p[\s/>]`)
	varNameRe      = regexp.MustCompile(`^[\p{L}\p{N}_.\- ]+$`)
)

// withinParagraph reports whether a placeholder match stays inside one
// paragraph.
func withinParagraph(match []byte) bool {
	return !paragraphTagRe.Match(match)
}

// Substitute replaces every {{name}} in the body, headers and footers with
// values[name]. Unknown names render as the empty string. Tokens listed in
// keep are left verbatim so later passes can find them.
//
// The value is written where the opening brace was and any markup that sat
// inside the placeholder is kept in order, so the XML stays well-formed and
// the fragments that held the rest of the placeholder are left empty for
// Repair to collect.
func Substitute(a *Archive, values map[string]string, keep []string) *Archive {
	out := a.Clone()
	lookup := newValueLookup(values)

	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		if sub := placeholderRe.FindStringSubmatch(k); sub != nil {
			if name, ok := placeholderName([]byte(sub[1])); ok {
				keepSet[name] = true
			}
		}
	}

	for _, part := range out.ContentParts() {
		content, _ := out.File(part)
		out.SetFile(part, substitutePart(content, lookup, keepSet))
	}
	return out
}

func substitutePart(content []byte, lookup valueLookup, keep map[string]bool) []byte {
	return placeholderRe.ReplaceAllFunc(content, func(match []byte) []byte {
		if !withinParagraph(match) {
			return match
		}
		sub := placeholderRe.FindSubmatch(match)
		name, ok := placeholderName(sub[1])
		if !ok {
			return match
		}
		if keep[name] {
			return match
		}

		var buf bytes.Buffer
		_ = xml.EscapeText(&buf, []byte(lookup.get(name)))
		for _, tag := range tagRe.FindAll(match, -1) {
			buf.Write(tag)
		}
		return buf.Bytes()
	})
}

// placeholderName extracts the variable name from the inner part of a match.
func placeholderName(inner []byte) (string, bool) {
	name := strings.TrimSpace(html.UnescapeString(string(tagRe.ReplaceAll(inner, nil))))
	if name == "" || !varNameRe.MatchString(name) {
		return "", false
	}
	return name, true
}

// DetectVariables lists the distinct variable names in the body, headers and
// footers, in order of first appearance.
func DetectVariables(a *Archive) []string {
	seen := make(map[string]bool)
	var names []string
	for _, part := range a.ContentParts() {
		content, _ := a.File(part)
		for _, sub := range placeholderRe.FindAllSubmatch(content, -1) {
			if !withinParagraph(sub[0]) {
				continue
			}
			name, ok := placeholderName(sub[1])
			if !ok || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// valueLookup resolves names exactly, then case-insensitively.
type valueLookup struct {
	exact  map[string]string
	folded map[string]string
}

func newValueLookup(values map[string]string) valueLookup {
	l := valueLookup{exact: values, folded: make(map[string]string, len(values))}
	for k, v := range values {
		l.folded[strings.ToLower(k)] = v
	}
	return l
}

func (l valueLookup) get(name string) string {
	if v, ok := l.exact[name]; ok {
		return v
	}
	return l.folded[strings.ToLower(name)]
}
