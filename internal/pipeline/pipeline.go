package pipeline

import (
	"context"
	"fmt"

	"github.com/akannigil/oxygen-documentor-sub000/internal/docx"
)

// Builder renders docx archives to printable HTML.
type Builder struct {
	html HTMLConverter
	css  string
}

// NewBuilder creates a Builder that injects css into every document.
func NewBuilder(css string) *Builder {
	return &Builder{html: NewGoldmarkConverter(), css: css}
}

// DocxToHTML converts a docx package to a standalone HTML document.
func (b *Builder) DocxToHTML(ctx context.Context, data []byte, title string) (string, error) {
	a, err := docx.Open(data)
	if err != nil {
		return "", err
	}
	md, err := docx.ToMarkdown(a)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHTMLConversion, err)
	}
	out, err := b.html.ToHTML(ctx, title, NormalizeMarkdown(md))
	if err != nil {
		return "", err
	}
	return InjectCSS(out, b.css), nil
}
