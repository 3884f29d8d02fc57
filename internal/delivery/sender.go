package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akannigil/oxygen-documentor-sub000/internal/assets"
	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

// Errors that no retry can fix.
var (
	ErrInvalidRecipient = errors.New("invalid recipient address")
	ErrDocumentNotReady = errors.New("document is not generated")
	ErrInvalidTemplate  = errors.New("invalid email template")
)

// DefaultSubject is used when a job has no subject.
const DefaultSubject = "Your document is ready"

// DefaultLinkExpiry is the lifetime of download links in emails.
const DefaultLinkExpiry = 7 * 24 * time.Hour

// Store is the persistence used by the sender.
type Store interface {
	GetDocument(ctx context.Context, id string) (*model.DocumentRecord, error)
	UpdateDocument(ctx context.Context, id string, u model.DocumentUpdate) error
}

// Storage is the object store used by the sender.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	URL(ctx context.Context, key string) (string, error)
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Observer is notified of delivery outcomes.
type Observer interface {
	ObserveEmail(success bool)
}

// Sender delivers generated documents by email.
type Sender struct {
	store      Store
	storage    Storage
	mailer     Mailer
	from       string
	domain     string
	linkExpiry time.Duration
	observer   Observer
	assets     assets.Loader
	logger     *zap.Logger
}

// Option configures a Sender.
type Option func(*Sender)

// WithLinkExpiry sets the lifetime of signed download links.
func WithLinkExpiry(d time.Duration) Option {
	return func(s *Sender) { s.linkExpiry = d }
}

// WithObserver registers an outcome observer.
func WithObserver(o Observer) Option {
	return func(s *Sender) { s.observer = o }
}

// WithAssets sets the loader of the built-in email template.
func WithAssets(l assets.Loader) Option {
	return func(s *Sender) { s.assets = l }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sender) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSender creates a Sender. from is the envelope and header sender; its
// domain qualifies message ids.
func NewSender(store Store, st Storage, mailer Mailer, from string, opts ...Option) *Sender {
	s := &Sender{
		store:      store,
		storage:    st,
		mailer:     mailer,
		from:       from,
		domain:     "localhost",
		linkExpiry: DefaultLinkExpiry,
		assets:     assets.NewEmbeddedLoader(),
		logger:     zap.NewNop(),
	}
	if addr, err := mail.ParseAddress(from); err == nil {
		if i := strings.LastIndex(addr.Address, "@"); i >= 0 {
			s.domain = addr.Address[i+1:]
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// bodyData is the data available to email templates.
type bodyData struct {
	DocumentID string
	FileName   string
	URL        string
	Attached   bool
	Data       model.Row
}

// Send delivers the document of job and marks it sent.
func (s *Sender) Send(ctx context.Context, job model.EmailJob) (model.EmailResult, error) {
	res, err := s.send(ctx, job)
	if s.observer != nil {
		s.observer.ObserveEmail(err == nil)
	}
	return res, err
}

func (s *Sender) send(ctx context.Context, job model.EmailJob) (model.EmailResult, error) {
	log := s.logger.With(zap.String("document", job.DocumentID))

	to, err := mail.ParseAddress(job.RecipientEmail)
	if err != nil {
		return model.EmailResult{}, fmt.Errorf("%w: %q", ErrInvalidRecipient, job.RecipientEmail)
	}

	doc, err := s.store.GetDocument(ctx, job.DocumentID)
	if err != nil {
		return model.EmailResult{}, fmt.Errorf("loading document: %w", err)
	}
	if doc.Status != model.StatusGenerated && doc.Status != model.StatusSent {
		return model.EmailResult{}, fmt.Errorf("%w: %s is %s", ErrDocumentNotReady, doc.ID, doc.Status)
	}

	data := bodyData{
		DocumentID: doc.ID,
		FileName:   path.Base(doc.FilePath),
		Data:       doc.Data,
	}
	if u, err := s.link(ctx, doc.FilePath); err != nil {
		log.Warn("no download link for email", zap.Error(err))
	} else {
		data.URL = u
	}

	msg := Message{
		ID:      uuid.NewString() + "@" + s.domain,
		From:    s.from,
		To:      to.Address,
		Subject: job.Subject,
	}
	if msg.Subject == "" {
		msg.Subject = DefaultSubject
	}
	if job.AttachDocument {
		file, err := s.storage.Get(ctx, doc.FilePath)
		if err != nil {
			return model.EmailResult{}, fmt.Errorf("loading attachment: %w", err)
		}
		msg.Attachments = []Attachment{{Name: data.FileName, ContentType: doc.MimeType, Data: file}}
		data.Attached = true
	}

	msg.HTML, err = s.renderBody(job.HTMLTemplate, data)
	if err != nil {
		return model.EmailResult{}, err
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		return model.EmailResult{}, err
	}

	if err := s.store.UpdateDocument(ctx, doc.ID, model.DocumentUpdate{Status: model.StatusSent}); err != nil {
		// The message is out; report success and leave the record for an operator.
		log.Error("email sent but document not marked sent", zap.Error(err))
	}
	log.Info("email sent", zap.String("message_id", msg.ID))
	return model.EmailResult{Success: true, MessageID: msg.ID}, nil
}

func (s *Sender) link(ctx context.Context, key string) (string, error) {
	u, err := s.storage.SignedURL(ctx, key, s.linkExpiry)
	if err == nil {
		return u, nil
	}
	return s.storage.URL(ctx, key)
}

// renderBody executes tmpl, or the configured email template when empty.
func (s *Sender) renderBody(tmpl string, data bodyData) (string, error) {
	if tmpl == "" {
		builtin, err := s.assets.LoadTemplate(assets.EmailTemplate)
		if err != nil {
			return "", err
		}
		tmpl = builtin
	}
	t, err := template.New("email").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return buf.String(), nil
}
