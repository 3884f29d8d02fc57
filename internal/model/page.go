package model

import (
	"errors"
	"fmt"
	"strings"
)

// Page size constants.
const (
	PageSizeLetter = "letter"
	PageSizeA4     = "a4"
	PageSizeA3     = "a3"
	PageSizeA5     = "a5"
	PageSizeLegal  = "legal"
)

// Orientation constants.
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

// Margin bounds in inches.
const (
	MinMargin     = 0.0
	MaxMargin     = 3.0
	DefaultMargin = 0.5
)

// Sentinel errors for conversion options.
var (
	ErrInvalidPageSize    = errors.New("invalid page size")
	ErrInvalidOrientation = errors.New("invalid orientation")
	ErrInvalidMargin      = errors.New("invalid margin")
)

// paperSizes holds portrait dimensions in inches.
var paperSizes = map[string][2]float64{
	PageSizeLetter: {8.5, 11},
	PageSizeLegal:  {8.5, 14},
	PageSizeA3:     {11.69, 16.54},
	PageSizeA4:     {8.27, 11.69},
	PageSizeA5:     {5.83, 8.27},
}

// Margins are per-side page margins in inches.
type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// ConversionOptions configures format conversion of a rendered document.
type ConversionOptions struct {
	PageSize    string   `json:"pageSize,omitempty"`    // "a4", "letter", ...
	Orientation string   `json:"orientation,omitempty"` // "portrait", "landscape"
	Margins     *Margins `json:"margins,omitempty"`
}

// DefaultConversionOptions returns A4 portrait with uniform default margins.
func DefaultConversionOptions() *ConversionOptions {
	return &ConversionOptions{
		PageSize:    PageSizeA4,
		Orientation: OrientationPortrait,
		Margins:     &Margins{DefaultMargin, DefaultMargin, DefaultMargin, DefaultMargin},
	}
}

// WithDefaults returns a copy with empty fields filled in. A nil receiver
// yields the defaults.
func (o *ConversionOptions) WithDefaults() *ConversionOptions {
	d := DefaultConversionOptions()
	if o == nil {
		return d
	}
	out := *o
	if out.PageSize == "" {
		out.PageSize = d.PageSize
	}
	if out.Orientation == "" {
		out.Orientation = d.Orientation
	}
	if out.Margins == nil {
		out.Margins = d.Margins
	}
	return &out
}

// Validate checks that options are valid.
// Returns nil if o is nil (nil means "use defaults").
func (o *ConversionOptions) Validate() error {
	if o == nil {
		return nil
	}
	if o.PageSize != "" {
		if _, ok := paperSizes[strings.ToLower(o.PageSize)]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidPageSize, o.PageSize)
		}
	}
	switch strings.ToLower(o.Orientation) {
	case "", OrientationPortrait, OrientationLandscape:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOrientation, o.Orientation)
	}
	if m := o.Margins; m != nil {
		for _, v := range []float64{m.Top, m.Right, m.Bottom, m.Left} {
			if v < MinMargin || v > MaxMargin {
				return fmt.Errorf("%w: %.2f (must be between %.2f and %.2f)", ErrInvalidMargin, v, MinMargin, MaxMargin)
			}
		}
	}
	return nil
}

// PaperInches returns width and height in inches, orientation applied.
func (o *ConversionOptions) PaperInches() (width, height float64) {
	o = o.WithDefaults()
	dims, ok := paperSizes[strings.ToLower(o.PageSize)]
	if !ok {
		dims = paperSizes[PageSizeA4]
	}
	width, height = dims[0], dims[1]
	if strings.EqualFold(o.Orientation, OrientationLandscape) {
		width, height = height, width
	}
	return width, height
}
