package qrcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"

	goqrcode "github.com/skip2/go-qrcode"

	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

// ErrRasterize indicates the content could not be encoded.
var ErrRasterize = errors.New("qr rasterization failed")

// Raster defaults.
const (
	DefaultWidth  = 200
	DefaultMargin = 1
	maxWidth      = 4096
)

// Options control rasterization.
type Options struct {
	Width      int
	Margin     int
	Level      goqrcode.RecoveryLevel
	Foreground color.Color
	Background color.Color
}

// OptionsFor derives raster options from a QR configuration. Signed
// payloads default to level Q because they are larger.
func OptionsFor(cfg model.QRCodeConfig, signed bool) (Options, error) {
	opts := Options{
		Width:      cfg.Width,
		Margin:     DefaultMargin,
		Level:      goqrcode.Medium,
		Foreground: color.Black,
		Background: color.White,
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Width > maxWidth {
		opts.Width = maxWidth
	}
	if cfg.Margin != nil && *cfg.Margin >= 0 {
		opts.Margin = *cfg.Margin
	}
	if signed {
		opts.Level = goqrcode.High
	}

	switch strings.ToUpper(cfg.ErrorCorrection) {
	case "":
	case "L":
		opts.Level = goqrcode.Low
	case "M":
		opts.Level = goqrcode.Medium
	case "Q":
		opts.Level = goqrcode.High
	case "H":
		opts.Level = goqrcode.Highest
	default:
		return opts, fmt.Errorf("%w: unknown error correction level %q", ErrRasterize, cfg.ErrorCorrection)
	}

	var err error
	if cfg.Foreground != "" {
		if opts.Foreground, err = parseHexColor(cfg.Foreground); err != nil {
			return opts, err
		}
	}
	if cfg.Background != "" {
		if opts.Background, err = parseHexColor(cfg.Background); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// Rasterize encodes content as a square PNG of opts.Width pixels. The
// symbol is scaled by a whole number of pixels per module and centred,
// with opts.Margin modules of quiet zone.
func Rasterize(content string, opts Options) ([]byte, image.Image, error) {
	q, err := goqrcode.New(content, opts.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRasterize, err)
	}
	q.DisableBorder = true
	bitmap := q.Bitmap()

	modules := len(bitmap) + 2*opts.Margin
	scale := opts.Width / modules
	if scale < 1 {
		scale = 1
	}
	size := opts.Width
	if modules*scale > size {
		size = modules * scale
	}
	offset := (size - len(bitmap)*scale) / 2

	img := image.NewPaletted(image.Rect(0, 0, size, size), color.Palette{opts.Background, opts.Foreground})
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetColorIndex(offset+x*scale+dx, offset+y*scale+dy, 1)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRasterize, err)
	}
	return buf.Bytes(), img, nil
}

func parseHexColor(s string) (color.Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return nil, fmt.Errorf("%w: invalid color %q", ErrRasterize, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid color %q", ErrRasterize, s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
