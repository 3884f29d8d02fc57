package generation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/akannigil/oxygen-documentor-sub000/internal/docx"
	"github.com/akannigil/oxygen-documentor-sub000/internal/format"
	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
	"github.com/akannigil/oxygen-documentor-sub000/internal/overlay"
	"github.com/akannigil/oxygen-documentor-sub000/internal/qrcode"
	"github.com/akannigil/oxygen-documentor-sub000/internal/storage"
	"github.com/akannigil/oxygen-documentor-sub000/internal/store"
)

// Job-level errors. These abort the job before any row runs.
var (
	ErrTemplateNotFound    = errors.New("template not found")
	ErrTemplateUnavailable = errors.New("template could not be loaded")
	ErrTemplateUnreadable  = errors.New("template file unreadable")
	ErrUnsupportedKind    = errors.New("unsupported template kind")
	ErrConverterRequired  = errors.New("output format requires a converter")
	ErrUnsupportedOutput  = errors.New("unsupported output format")
)

// Row-level errors.
var (
	ErrRowPanic     = errors.New("row processing panicked")
	ErrQRMissing    = errors.New("required QR placeholder not found")
	ErrInvalidValue = errors.New("invalid field value")
	ErrUploadFailed = errors.New("upload failed")
	ErrRecordFailed = errors.New("document record update failed")
)

// Store is the subset of the persistence collaborator used here.
type Store interface {
	CreateDocument(ctx context.Context, jobID, templateID string, rowIndex int, data model.Row) (string, error)
	UpdateDocument(ctx context.Context, id string, u model.DocumentUpdate) error
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
}

// Storage is the subset of the storage collaborator used here.
type Storage interface {
	qrcode.URLProvider
	Upload(ctx context.Context, data []byte, key, mimeType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// Converter turns a rendered docx into PDF.
type Converter interface {
	Convert(ctx context.Context, docx []byte, opts *model.ConversionOptions) ([]byte, error)
}

// ProgressFunc receives the job's progress percentage after every row.
// Implementations must return promptly.
type ProgressFunc func(percent int)

// Observer is notified of row outcomes.
type Observer interface {
	ObserveRow(status model.DocumentStatus)
}

// Processor runs generation jobs.
type Processor struct {
	store     Store
	storage   Storage
	converter Converter
	qr        *qrcode.Builder
	fonts     *docx.FontEmbedder
	formatter format.Formatter
	observer  Observer
	logger    *zap.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithConverter enables PDF output for docx templates.
func WithConverter(c Converter) Option {
	return func(p *Processor) { p.converter = c }
}

// WithQRBuilder sets the QR content builder. Without it QR codes support
// patterns and storage URLs but not certificates.
func WithQRBuilder(b *qrcode.Builder) Option {
	return func(p *Processor) { p.qr = b }
}

// WithFontEmbedder enables web-font embedding for styled variables.
func WithFontEmbedder(e *docx.FontEmbedder) Option {
	return func(p *Processor) { p.fonts = e }
}

// WithFormatter overrides value formatting defaults.
func WithFormatter(f format.Formatter) Option {
	return func(p *Processor) { p.formatter = f }
}

// WithObserver registers an outcome observer.
func WithObserver(o Observer) Option {
	return func(p *Processor) { p.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Processor.
func New(store Store, st Storage, opts ...Option) *Processor {
	p := &Processor{
		store:   store,
		storage: st,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.qr == nil {
		p.qr = qrcode.NewBuilder(nil, st, p.logger)
	}
	return p
}

// prepared is the per-job state shared by every row.
type prepared struct {
	tpl    *model.Template
	source []byte
	docx   *docx.Archive // structured templates only
	ext    string
	mime   string
	pdf    bool // convert docx output to PDF
	conv   *model.ConversionOptions
}

// Process runs job. The returned error is non-nil only for job-level
// failures; row failures are reported in the result.
func (p *Processor) Process(ctx context.Context, job model.GenerationJob, progress ProgressFunc) (*model.JobResult, error) {
	start := time.Now()
	log := p.logger.With(zap.String("job", job.ID), zap.String("template", job.TemplateID))

	prep, err := p.prepare(ctx, job)
	if err != nil {
		log.Error("job setup failed", zap.Error(err))
		return nil, err
	}

	total := len(job.Rows)
	result := &model.JobResult{
		Total:       total,
		DocumentIDs: make([]string, 0, total),
		Errors:      []model.RowError{},
	}

	for i, row := range job.Rows {
		id, err := p.processRow(ctx, prep, job, i, row)
		if err != nil {
			log.Error("row failed", zap.Int("row", i), zap.Error(err))
			result.Errors = append(result.Errors, model.RowError{RowIndex: i, Message: err.Error()})
			p.observe(model.StatusFailed)
		} else {
			result.DocumentIDs = append(result.DocumentIDs, id)
			p.observe(model.StatusGenerated)
		}
		if progress != nil {
			progress(Percent(i+1, total))
		}
	}

	log.Info("job completed",
		zap.Int("total", total),
		zap.Int("generated", len(result.DocumentIDs)),
		zap.Int("failed", len(result.Errors)),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

// Percent is round(100 * done / total).
func Percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

func (p *Processor) prepare(ctx context.Context, job model.GenerationJob) (*prepared, error) {
	tpl, err := p.store.GetTemplate(ctx, job.TemplateID)
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		return nil, fmt.Errorf("%w: %s: %w", ErrTemplateNotFound, job.TemplateID, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %s: %w", ErrTemplateUnavailable, job.TemplateID, err)
	}
	src, err := p.storage.Get(ctx, tpl.FileKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateUnreadable, tpl.FileKey, err)
	}

	prep := &prepared{tpl: tpl, source: src, conv: job.Conversion}
	switch tpl.Kind {
	case model.KindDOCX:
		a, err := docx.Open(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTemplateUnreadable, err)
		}
		prep.docx = a
		switch job.OutputFormat {
		case model.OutputNative, model.OutputDOCX:
			prep.ext = "docx"
		case model.OutputPDF:
			if p.converter == nil {
				return nil, ErrConverterRequired
			}
			prep.ext, prep.pdf = "pdf", true
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedOutput, job.OutputFormat)
		}
	case model.KindPDF:
		if _, err := overlay.PageCount(src); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTemplateUnreadable, err)
		}
		prep.ext = "pdf"
	case model.KindImage:
		if _, _, err := image.DecodeConfig(bytes.NewReader(src)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTemplateUnreadable, err)
		}
		prep.ext = "png"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, tpl.Kind)
	}
	prep.mime = storage.MIMEType(prep.ext)
	return prep, nil
}

// processRow runs the per-row procedure. A record that was created is
// always left generated or failed.
func (p *Processor) processRow(ctx context.Context, prep *prepared, job model.GenerationJob, index int, row model.Row) (id string, err error) {
	id, err = p.store.CreateDocument(ctx, job.ID, prep.tpl.ID, index, row)
	if err != nil {
		return "", fmt.Errorf("creating document record: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRowPanic, r)
		}
		if err != nil {
			p.markFailed(ctx, id, err)
		}
	}()

	key := storage.DocumentKey(job.ID, prep.tpl.ID, index, id, prep.ext)
	rc := rowContext{prep: prep, row: row, key: key, index: index}

	var out []byte
	if prep.tpl.Kind.Structured() {
		out, err = p.renderStructured(ctx, rc)
	} else {
		out, err = p.renderFixed(ctx, rc)
	}
	if err != nil {
		return id, err
	}

	if _, err := p.storage.Upload(ctx, out, key, prep.mime); err != nil {
		return id, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	err = p.store.UpdateDocument(ctx, id, model.DocumentUpdate{
		Status:   model.StatusGenerated,
		FilePath: key,
		MimeType: prep.mime,
	})
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrRecordFailed, err)
	}
	return id, nil
}

func (p *Processor) markFailed(ctx context.Context, id string, cause error) {
	ctx = context.WithoutCancel(ctx)
	err := p.store.UpdateDocument(ctx, id, model.DocumentUpdate{
		Status:       model.StatusFailed,
		ErrorMessage: cause.Error(),
	})
	if err != nil {
		p.logger.Error("cannot mark document failed", zap.String("document", id), zap.Error(err))
	}
}

func (p *Processor) observe(s model.DocumentStatus) {
	if p.observer != nil {
		p.observer.ObserveRow(s)
	}
}
