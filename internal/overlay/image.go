package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // template decoders
	"image/png"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

var (
	regularOnce sync.Once
	regular     *opentype.Font
	regularErr  error
)

func regularFont() (*opentype.Font, error) {
	regularOnce.Do(func() {
		regular, regularErr = opentype.Parse(goregular.TTF)
	})
	return regular, regularErr
}

// Image draws layer onto a PNG, JPEG or WebP template and returns a PNG.
// Page numbers are ignored.
func Image(src []byte, layer Layer) ([]byte, error) {
	base, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	dst := image.NewRGBA(base.Bounds())
	draw.Draw(dst, dst.Bounds(), base, base.Bounds().Min, draw.Src)
	origin := dst.Bounds().Min

	faces := map[float64]font.Face{}
	defer func() {
		for _, f := range faces {
			_ = f.Close()
		}
	}()

	for _, t := range layer.Texts {
		if t.Value == "" {
			continue
		}
		face, err := faceFor(faces, t.size())
		if err != nil {
			return nil, err
		}
		r, g, b, err := rgb(t.Color)
		if err != nil {
			return nil, err
		}
		d := font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(color.RGBA{R: r, G: g, B: b, A: 0xff}),
			Face: face,
			Dot: fixed.Point26_6{
				X: fixed.I(origin.X) + floatToFixed(t.X),
				Y: fixed.I(origin.Y) + floatToFixed(t.Y) + face.Metrics().Ascent,
			},
		}
		d.DrawString(t.Value)
	}

	for _, pic := range layer.Pictures {
		img, err := png.Decode(bytes.NewReader(pic.PNG))
		if err != nil {
			return nil, fmt.Errorf("%w: picture is not a PNG: %v", ErrOverlayFailed, err)
		}
		w, h := img.Bounds().Dx(), img.Bounds().Dy()
		if pic.Width > 0 {
			h = int(float64(h) * pic.Width / float64(w))
			w = int(pic.Width)
		}
		at := image.Pt(origin.X+int(pic.X), origin.Y+int(pic.Y))
		rect := image.Rectangle{Min: at, Max: at.Add(image.Pt(w, h))}
		draw.NearestNeighbor.Scale(dst, rect, img, img.Bounds(), draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOverlayFailed, err)
	}
	return buf.Bytes(), nil
}

func faceFor(cache map[float64]font.Face, size float64) (font.Face, error) {
	if f, ok := cache[size]; ok {
		return f, nil
	}
	ft, err := regularFont()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFont, err)
	}
	face, err := opentype.NewFace(ft, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFont, err)
	}
	cache[size] = face
	return face, nil
}

func floatToFixed(f float64) fixed.Int26_6 {
	return fixed.Int26_6(f * 64)
}

func pngWidth(data []byte) (int, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: picture is not a PNG: %v", ErrOverlayFailed, err)
	}
	if cfg.Width == 0 {
		return 0, fmt.Errorf("%w: empty picture", ErrOverlayFailed)
	}
	return cfg.Width, nil
}
