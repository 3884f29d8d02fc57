package documentor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akannigil/oxygen-documentor-sub000/internal/assets"
	"github.com/akannigil/oxygen-documentor-sub000/internal/certificate"
	"github.com/akannigil/oxygen-documentor-sub000/internal/convert"
	"github.com/akannigil/oxygen-documentor-sub000/internal/delivery"
	"github.com/akannigil/oxygen-documentor-sub000/internal/docx"
	"github.com/akannigil/oxygen-documentor-sub000/internal/events"
	"github.com/akannigil/oxygen-documentor-sub000/internal/format"
	"github.com/akannigil/oxygen-documentor-sub000/internal/generation"
	"github.com/akannigil/oxygen-documentor-sub000/internal/log"
	"github.com/akannigil/oxygen-documentor-sub000/internal/metrics"
	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
	"github.com/akannigil/oxygen-documentor-sub000/internal/pipeline"
	"github.com/akannigil/oxygen-documentor-sub000/internal/qrcode"
	"github.com/akannigil/oxygen-documentor-sub000/internal/queue"
	"github.com/akannigil/oxygen-documentor-sub000/internal/storage"
	"github.com/akannigil/oxygen-documentor-sub000/internal/store"
)

// Service is the generation and delivery pipeline: persistence, storage,
// converters, the job queue and the email sender, wired from a Config.
type Service struct {
	cfg       *Config
	logger    *zap.Logger
	store     store.Store
	storage   storage.Storage
	converter generation.Converter
	signer    *certificate.Signer
	processor *generation.Processor
	runtime   *queue.Runtime
	publisher events.Publisher
	metrics   *metrics.Collector
	assets    assets.Loader
	now       func() time.Time

	mailer  delivery.Mailer
	closers []func() error
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the logger instead of building one from Config.Log.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithStore sets the persistence collaborator instead of opening
// Config.Database.
func WithStore(st store.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithStorage sets the storage backend instead of opening Config.Storage.
func WithStorage(st storage.Storage) Option {
	return func(s *Service) { s.storage = st }
}

// WithConverter sets the docx-to-PDF converter instead of the converter
// pool built from Config.Converter.
func WithConverter(c generation.Converter) Option {
	return func(s *Service) { s.converter = c }
}

// WithMailer sets the email transport instead of SMTP from Config.Email.
func WithMailer(m delivery.Mailer) Option {
	return func(s *Service) { s.mailer = m }
}

// WithPublisher sets the event publisher instead of NATS from
// Config.Events.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides the time source used for verification.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New builds a Service. Collaborators not supplied as options are created
// from cfg. The job queue is not connected until Start.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	s := &Service{cfg: cfg, metrics: metrics.New(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		l, err := log.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return nil, err
		}
		s.logger = l
	}

	resolver, err := assets.NewResolver(cfg.Assets.Dir)
	if err != nil {
		return nil, err
	}
	s.assets = resolver

	if err := s.openCollaborators(ctx); err != nil {
		_ = s.closeAll()
		return nil, err
	}

	if cfg.Certificate.Secret != "" {
		signer, err := certificate.NewSigner(cfg.Certificate.Secret,
			certificate.WithAlgorithm(certificate.Algorithm(cfg.Certificate.Algorithm)),
			certificate.WithVerifyBaseURL(cfg.Certificate.VerifyBaseURL))
		if err != nil {
			_ = s.closeAll()
			return nil, err
		}
		s.signer = signer
	}

	genOpts := []generation.Option{
		generation.WithQRBuilder(qrcode.NewBuilder(s.signer, s.storage, s.logger)),
		generation.WithFontEmbedder(docx.NewFontEmbedder(
			docx.NewHTTPFontFetcher(cfg.Fonts.BaseURL, cfg.Fonts.Timeout), cfg.Fonts.Fallback, s.logger)),
		generation.WithFormatter(format.Formatter{DefaultDateFormat: cfg.Format.DateFormat}),
		generation.WithObserver(s.metrics),
		generation.WithLogger(s.logger),
	}
	if s.converter != nil {
		genOpts = append(genOpts, generation.WithConverter(s.converter))
	}
	s.processor = generation.New(s.store, s.storage, genOpts...)

	var deliverer queue.Deliverer = noMailer{}
	if s.mailer != nil {
		deliverer = delivery.NewSender(s.store, s.storage, s.mailer, cfg.Email.From,
			delivery.WithObserver(s.metrics), delivery.WithAssets(s.assets), delivery.WithLogger(s.logger))
	}

	qcfg := cfg.QueueOptions()
	qcfg.Migrate = true
	s.runtime = queue.NewRuntime(qcfg, s.processor, deliverer,
		queue.WithLogger(s.logger),
		queue.WithPublisher(s.publisher),
		queue.WithObserver(s.metrics))

	return s, nil
}

// openCollaborators opens whatever was not injected.
func (s *Service) openCollaborators(ctx context.Context) error {
	cfg := s.cfg

	if s.store == nil {
		db, err := store.InitDB(cfg.Database.Driver, cfg.Database.DSN, s.logger)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		ds := store.NewStore(db)
		s.store = ds
		s.closers = append(s.closers, ds.Close)
	}

	if s.storage == nil {
		st, err := storage.Open(ctx, cfg.StorageOptions())
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		s.storage = st
		if c, ok := st.(interface{ Close() error }); ok {
			s.closers = append(s.closers, c.Close)
		}
	}

	if s.converter == nil && !(cfg.Converter.DisableOffice && cfg.Converter.DisableBrowser) {
		pool := convert.NewPool(convert.ResolvePoolSize(cfg.Converter.PoolSize), s.newConverter)
		s.converter = pool
		s.closers = append(s.closers, pool.Close)
	}

	if s.mailer == nil && cfg.Email.Host != "" {
		s.mailer = delivery.NewSMTPMailer(delivery.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
		})
	}

	if s.publisher == nil {
		s.publisher = events.Nop{}
		if cfg.Events.NATSURL != "" {
			p, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Prefix, s.logger)
			if err != nil {
				s.logger.Warn("events disabled", zap.Error(err))
			} else {
				s.publisher = p
			}
		}
	}
	return nil
}

// newConverter builds one pool member.
func (s *Service) newConverter() *convert.Converter {
	cfg := s.cfg.Converter
	var primary, fallback convert.Strategy
	if !cfg.DisableOffice {
		primary = convert.NewOfficeConverter(cfg.OfficeBinary, cfg.Timeout)
	}
	if !cfg.DisableBrowser {
		css, err := s.assets.LoadStyle(assets.PrintStyle)
		if err != nil {
			s.logger.Warn("print stylesheet unavailable", zap.Error(err))
		}
		fallback = convert.NewBrowserConverter(pipeline.NewBuilder(css), cfg.BrowserTimeout)
	}
	return convert.New(primary, fallback, convert.WithLogger(s.logger), convert.WithObserver(s.metrics))
}

// Start connects the job queue. A returned error wrapping ErrUnavailable
// is not fatal: jobs then run inline.
func (s *Service) Start(ctx context.Context) error {
	return s.runtime.Connect(ctx)
}

// Ready reports whether jobs go through the durable queue.
func (s *Service) Ready() bool {
	return s.runtime.Ready()
}

// Close drains the queue and releases every collaborator the service
// opened.
func (s *Service) Close(ctx context.Context) error {
	err := s.runtime.Close(ctx)
	s.publisher.Close()
	return errors.Join(err, s.closeAll())
}

func (s *Service) closeAll() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// MetricsHandler serves the Prometheus metrics of this service.
func (s *Service) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

// Storage returns the storage backend.
func (s *Service) Storage() storage.Storage {
	return s.storage
}

// ---------------------------------------------------------------------------
// Templates and documents
// ---------------------------------------------------------------------------

// RegisterTemplate uploads the template file and saves tpl. An empty ID
// is assigned; docx variables are detected when not listed.
func (s *Service) RegisterTemplate(ctx context.Context, tpl *Template, fileName string, file []byte) error {
	if len(file) == 0 {
		return ErrTemplateFile
	}
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	if tpl.Kind == model.KindDOCX && len(tpl.Variables) == 0 {
		a, err := docx.Open(file)
		if err != nil {
			return fmt.Errorf("%w: %v", generation.ErrTemplateUnreadable, err)
		}
		tpl.Variables = docx.DetectVariables(a)
	}

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), ".")
	key := path.Join("templates", tpl.ID, "template."+ext)
	stored, err := s.storage.Upload(ctx, file, key, storage.MIMEType(ext))
	if err != nil {
		return fmt.Errorf("uploading template: %w", err)
	}
	tpl.FileKey = stored
	return s.store.SaveTemplate(ctx, tpl)
}

// Documents lists the document records of a job in row order.
func (s *Service) Documents(ctx context.Context, jobID string) ([]DocumentRecord, error) {
	return s.store.ListDocuments(ctx, jobID)
}

// ---------------------------------------------------------------------------
// Jobs
// ---------------------------------------------------------------------------

// Submit enqueues a generation job and returns its handle.
func (s *Service) Submit(ctx context.Context, job GenerationJob) (string, error) {
	return s.runtime.Submit(ctx, job)
}

// Status returns the state, progress and result of a job.
func (s *Service) Status(ctx context.Context, id string) (*JobStatus, error) {
	return s.runtime.Status(ctx, id)
}

// Cancel prevents a queued job from starting.
func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.runtime.Cancel(ctx, id)
}

// SendEmail enqueues delivery of a generated document.
func (s *Service) SendEmail(ctx context.Context, job EmailJob) (string, error) {
	if s.mailer == nil {
		return "", ErrNoMailer
	}
	return s.runtime.SendEmail(ctx, job)
}

// Verify checks a scanned certificate payload with the configured secret.
// document, when non-nil, is compared with a bound document hash.
// Rejections are reported in the result, not as errors.
func (s *Service) Verify(payload string, document []byte) (VerificationResult, error) {
	if s.cfg.Certificate.Secret == "" {
		return VerificationResult{}, ErrNoSecret
	}
	return certificate.Verify(payload, s.cfg.Certificate.Secret, document, s.now()), nil
}

// noMailer fails every email job.
type noMailer struct{}

func (noMailer) Send(context.Context, model.EmailJob) (model.EmailResult, error) {
	return model.EmailResult{}, ErrNoMailer
}
