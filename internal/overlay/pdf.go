package overlay

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PDFFont is the standard font used for PDF text stamps.
const PDFFont = "Helvetica"

func pdfConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the number of pages in a PDF.
func PageCount(src []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(src), pdfConfig())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	return n, nil
}

// PDF stamps layer onto src and returns the new document.
func PDF(src []byte, layer Layer) ([]byte, error) {
	pages, err := PageCount(src)
	if err != nil {
		return nil, err
	}
	if layer.Empty() {
		return src, nil
	}

	doc := src
	for _, t := range layer.Texts {
		if t.Value == "" {
			continue
		}
		p := page(t.Page)
		if p > pages {
			return nil, fmt.Errorf("%w: field on page %d of %d", ErrPageOutOfRange, p, pages)
		}
		r, g, b, err := rgb(t.Color)
		if err != nil {
			return nil, err
		}
		desc := fmt.Sprintf("font:%s, points:%s, fillcolor:#%02X%02X%02X, rot:0, scale:1 abs, pos:tl, off:%s %s, opacity:1",
			PDFFont, num(t.size()), r, g, b, num(t.X), num(-t.Y))
		wm, err := api.TextWatermark(t.Value, desc, true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("%w: text stamp: %v", ErrOverlayFailed, err)
		}
		if doc, err = stamp(doc, p, wm); err != nil {
			return nil, err
		}
	}

	for _, pic := range layer.Pictures {
		p := page(pic.Page)
		if p > pages {
			return nil, fmt.Errorf("%w: image on page %d of %d", ErrPageOutOfRange, p, pages)
		}
		scale := 1.0
		if pic.Width > 0 {
			w, err := pngWidth(pic.PNG)
			if err != nil {
				return nil, err
			}
			scale = pic.Width / float64(w)
		}
		desc := fmt.Sprintf("rot:0, scale:%s abs, pos:tl, off:%s %s, opacity:1", num(scale), num(pic.X), num(-pic.Y))
		wm, err := api.ImageWatermarkForReader(bytes.NewReader(pic.PNG), desc, true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("%w: image stamp: %v", ErrOverlayFailed, err)
		}
		if doc, err = stamp(doc, p, wm); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func stamp(doc []byte, p int, wm *model.Watermark) ([]byte, error) {
	var out bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(doc), &out, []string{strconv.Itoa(p)}, wm, pdfConfig()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOverlayFailed, err)
	}
	return out.Bytes(), nil
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
