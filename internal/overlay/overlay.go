// Package overlay renders row values onto fixed-layout templates: text and
// images stamped at absolute positions on PDF pages or raster images.
//
// Coordinates are measured from the top-left corner. PDF positions are in
// points, image positions in pixels.
package overlay

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors.
var (
	ErrInvalidPDF      = errors.New("invalid PDF template")
	ErrInvalidImage    = errors.New("invalid image template")
	ErrPageOutOfRange  = errors.New("page out of range")
	ErrInvalidColor    = errors.New("invalid color")
	ErrOverlayFailed   = errors.New("overlay failed")
	ErrUnsupportedFont = errors.New("unsupported font")
)

// DefaultFontSize applies to text without an explicit size.
const DefaultFontSize = 12.0

// Text is a value drawn at a position.
type Text struct {
	Value    string
	X, Y     float64
	Page     int // 1-based; 0 means the first page
	FontSize float64
	Color    string // #RRGGBB, black when empty
}

// Picture is a PNG drawn at a position. Width is the drawn edge length;
// zero keeps the PNG's own size.
type Picture struct {
	PNG   []byte
	X, Y  float64
	Page  int
	Width float64
}

// Layer is everything stamped onto one document.
type Layer struct {
	Texts    []Text
	Pictures []Picture
}

// Empty reports whether the layer draws nothing.
func (l Layer) Empty() bool {
	return len(l.Texts) == 0 && len(l.Pictures) == 0
}

func (t Text) size() float64 {
	if t.FontSize <= 0 {
		return DefaultFontSize
	}
	return t.FontSize
}

func page(p int) int {
	if p < 1 {
		return 1
	}
	return p
}

// rgb parses #RRGGBB or #RGB. An empty string is black.
func rgb(s string) (r, g, b uint8, err error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if h == "" {
		return 0, 0, 0, nil
	}
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), nil
}
