package generation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/akannigil/oxygen-documentor-sub000/internal/docx"
	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
	"github.com/akannigil/oxygen-documentor-sub000/internal/overlay"
	"github.com/akannigil/oxygen-documentor-sub000/internal/qrcode"
)

type rowContext struct {
	prep  *prepared
	row   model.Row
	key   string
	index int
}

// values formats every row value and every known template variable.
// Variables without a row value render empty.
func (p *Processor) values(tpl *model.Template, row model.Row) (map[string]string, error) {
	out := make(map[string]string, len(row)+len(tpl.Variables))
	for name, raw := range row {
		v, err := p.formatter.Value(raw, tpl.Formats[name])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, name, err)
		}
		out[name] = v
	}
	for _, name := range tpl.Variables {
		if _, ok := out[name]; ok {
			continue
		}
		raw, _ := row.Lookup(name)
		v, err := p.formatter.Value(raw, tpl.Formats[name])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, name, err)
		}
		out[name] = v
	}
	return out, nil
}

func (p *Processor) renderStructured(ctx context.Context, rc rowContext) ([]byte, error) {
	tpl := rc.prep.tpl
	log := p.logger.With(zap.Int("row", rc.index))

	values, err := p.values(tpl, rc.row)
	if err != nil {
		return nil, err
	}

	keep := make([]string, 0, len(tpl.QRCodes))
	for _, qr := range tpl.QRCodes {
		keep = append(keep, qr.Placeholder)
	}
	a := docx.Substitute(rc.prep.docx, values, keep)

	list := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			list = append(list, v)
		}
	}
	if repaired, err := docx.Repair(a, list); err != nil {
		log.Debug("structural repair skipped", zap.Error(err))
	} else {
		a = repaired
	}
	if spaced, err := docx.NormalizeSpacing(a, list); err != nil {
		log.Debug("spacing normalization skipped", zap.Error(err))
	} else {
		a = spaced
	}

	if len(tpl.Styles) > 0 {
		a = p.applyStyles(ctx, a, tpl.Styles, values, log)
	}

	if len(tpl.QRCodes) > 0 {
		pre, err := a.Bytes()
		if err != nil {
			return nil, err
		}
		for _, cfg := range tpl.QRCodes {
			a, err = p.spliceQR(ctx, a, cfg, rc, values, pre, log)
			if err != nil {
				return nil, err
			}
		}
	}

	out, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	if rc.prep.pdf {
		return p.converter.Convert(ctx, out, rc.prep.conv)
	}
	return out, nil
}

func (p *Processor) applyStyles(ctx context.Context, a *docx.Archive, styles map[string]model.Style, values map[string]string, log *zap.Logger) *docx.Archive {
	styled := make([]docx.StyledValue, 0, len(styles))
	for name, style := range styles {
		v := values[name]
		if v == "" {
			continue
		}
		if style.FontFamily != "" && p.fonts != nil {
			a, style.FontFamily = p.fonts.Embed(ctx, a, style.FontFamily)
		}
		styled = append(styled, docx.StyledValue{Value: v, Style: style})
	}
	out, err := docx.ApplyStyles(a, styled)
	if err != nil {
		log.Debug("style overlay skipped", zap.Error(err))
		return a
	}
	return out
}

// qrImage resolves and rasterizes one QR code.
func (p *Processor) qrImage(ctx context.Context, cfg model.QRCodeConfig, rc rowContext, values map[string]string, document []byte) ([]byte, int, error) {
	content, err := p.qr.Build(ctx, qrcode.Request{
		Config:     cfg,
		Row:        rc.row,
		Values:     values,
		StorageKey: rc.key,
		Document:   document,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("qr %s: %w", cfg.Placeholder, err)
	}
	opts, err := qrcode.OptionsFor(cfg, content.Certificate != nil)
	if err != nil {
		return nil, 0, fmt.Errorf("qr %s: %w", cfg.Placeholder, err)
	}
	png, img, err := qrcode.Rasterize(content.Text, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("qr %s: %w", cfg.Placeholder, err)
	}
	return png, img.Bounds().Dx(), nil
}

func (p *Processor) spliceQR(ctx context.Context, a *docx.Archive, cfg model.QRCodeConfig, rc rowContext, values map[string]string, pre []byte, log *zap.Logger) (*docx.Archive, error) {
	png, width, err := p.qrImage(ctx, cfg, rc, values, pre)
	if err != nil {
		return nil, err
	}
	out, err := docx.InsertImage(a, cfg.Placeholder, docx.Image{PNG: png, Width: width, Height: width})
	if errors.Is(err, docx.ErrPlaceholderNotFound) {
		if cfg.Required {
			return nil, fmt.Errorf("%w: %s", ErrQRMissing, cfg.Placeholder)
		}
		log.Warn("qr placeholder not found, skipping", zap.String("placeholder", cfg.Placeholder))
		return a, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Processor) renderFixed(ctx context.Context, rc rowContext) ([]byte, error) {
	tpl := rc.prep.tpl

	values, err := p.values(tpl, rc.row)
	if err != nil {
		return nil, err
	}

	var texts overlay.Layer
	for _, f := range tpl.Fields {
		raw, _ := rc.row.Lookup(f.Name)
		v, err := p.formatter.Value(raw, f.Format)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, f.Name, err)
		}
		texts.Texts = append(texts.Texts, overlay.Text{
			Value:    v,
			X:        f.X,
			Y:        f.Y,
			Page:     f.Page,
			FontSize: f.FontSize,
			Color:    f.Color,
		})
	}

	stamp := overlay.Image
	if tpl.Kind == model.KindPDF {
		stamp = overlay.PDF
	}

	out, err := stamp(rc.prep.source, texts)
	if err != nil {
		return nil, err
	}
	if len(tpl.QRCodes) == 0 {
		return out, nil
	}

	var pictures overlay.Layer
	for _, cfg := range tpl.QRCodes {
		png, width, err := p.qrImage(ctx, cfg, rc, values, out)
		if err != nil {
			return nil, err
		}
		pictures.Pictures = append(pictures.Pictures, overlay.Picture{
			PNG:   png,
			X:     cfg.X,
			Y:     cfg.Y,
			Page:  cfg.Page,
			Width: float64(width),
		})
	}
	return stamp(out, pictures)
}
