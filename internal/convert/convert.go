// Package convert turns rendered docx documents into PDF.
//
// Two strategies exist: an office suite run headless (OfficeConverter),
// which keeps the layout, and a headless browser printing an HTML
// approximation (BrowserConverter). Converter prefers the first whenever
// it is detectable and falls back to the second.
package convert

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

// Sentinel errors for conversion failures.
var (
	ErrConversionFailed = errors.New("conversion failed")
	ErrUnavailable      = errors.New("converter unavailable")
	ErrTimeout          = errors.New("conversion timed out")
	ErrEmptyOutput      = errors.New("converter produced no output")
	ErrBrowserConnect   = errors.New("failed to connect to browser")
	ErrPageLoad         = errors.New("failed to load page")
	ErrPDFGeneration    = errors.New("PDF generation failed")
)

// Strategy names reported to observers and logs.
const (
	StrategyOffice  = "office"
	StrategyBrowser = "browser"
)

// Strategy converts a docx document to PDF.
type Strategy interface {
	Name() string
	// Available reports whether the strategy can run on this host.
	Available(ctx context.Context) bool
	Convert(ctx context.Context, docx []byte, opts *model.ConversionOptions) ([]byte, error)
	Close() error
}

// Observer is told the outcome of each strategy attempt.
type Observer interface {
	ObserveConversion(strategy, outcome string)
}

// Conversion outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeUnavailable = "unavailable"
)

// Converter runs a primary strategy with a fallback.
type Converter struct {
	primary  Strategy
	fallback Strategy
	logger   *zap.Logger
	observer Observer
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver reports attempts to o.
func WithObserver(o Observer) Option {
	return func(c *Converter) { c.observer = o }
}

// New creates a Converter. Either strategy may be nil.
func New(primary, fallback Strategy, opts ...Option) *Converter {
	c := &Converter{primary: primary, fallback: fallback, logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Convert returns the PDF rendition of docx. The primary strategy is used
// when available; if it is missing or fails, the fallback runs and only
// the fallback's error is returned. The fallback is attempted even when
// its probe fails, since the browser can be fetched on first use.
func (c *Converter) Convert(ctx context.Context, docx []byte, opts *model.ConversionOptions) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	opts = opts.WithDefaults()

	if c.primary != nil {
		if c.primary.Available(ctx) {
			out, err := c.primary.Convert(ctx, docx, opts)
			if err == nil {
				c.observe(c.primary, OutcomeSuccess)
				return out, nil
			}
			c.observe(c.primary, OutcomeFailure)
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrConversionFailed, ctx.Err())
			}
			c.logger.Warn("primary converter failed, falling back",
				zap.String("primary", c.primary.Name()), zap.Error(err))
		} else {
			c.observe(c.primary, OutcomeUnavailable)
			c.logger.Warn("primary converter unavailable, falling back",
				zap.String("primary", c.primary.Name()))
		}
	}

	if c.fallback == nil {
		return nil, fmt.Errorf("%w: %w", ErrConversionFailed, ErrUnavailable)
	}
	out, err := c.fallback.Convert(ctx, docx, opts)
	if err != nil {
		c.observe(c.fallback, OutcomeFailure)
		return nil, fmt.Errorf("%w: %s: %w", ErrConversionFailed, c.fallback.Name(), err)
	}
	c.observe(c.fallback, OutcomeSuccess)
	return out, nil
}

// Close releases both strategies.
func (c *Converter) Close() error {
	var errs []error
	for _, s := range []Strategy{c.primary, c.fallback} {
		if s != nil {
			if err := s.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Converter) observe(s Strategy, outcome string) {
	if c.observer != nil {
		c.observer.ObserveConversion(s.Name(), outcome)
	}
}
