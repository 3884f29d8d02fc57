// Package events publishes job lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

// Event types.
const (
	JobStarted   = "job.started"
	JobProgress  = "job.progress"
	JobCompleted = "job.completed"
	JobFailed    = "job.failed"
	EmailSent    = "email.sent"
)

// DefaultPrefix prefixes every subject.
const DefaultPrefix = "documentor"

// Event is the JSON body of a published message.
type Event struct {
	Type       string           `json:"type"`
	JobID      string           `json:"jobId,omitempty"`
	DocumentID string           `json:"documentId,omitempty"`
	Progress   int              `json:"progress,omitempty"`
	Result     *model.JobResult `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	Time       time.Time        `json:"time"`
}

// Publisher publishes events. Publishing is best effort.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() {}

// conn is the part of *nats.Conn used by NATSPublisher.
type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// NATSPublisher publishes events on <prefix>.<type> subjects.
type NATSPublisher struct {
	conn   conn
	prefix string
	logger *zap.Logger
}

// NewNATSPublisher connects to url. The connection reconnects forever in
// the background; publishing while disconnected is buffered by the client.
func NewNATSPublisher(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("documentor"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("connected to NATS", zap.String("url", url))
	return newNATSPublisher(nc, prefix, logger), nil
}

func newNATSPublisher(c conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{conn: c, prefix: prefix, logger: logger}
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(_ context.Context, e Event) error {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(e.Type), data); err != nil {
		p.logger.Warn("failed to publish event", zap.String("type", e.Type), zap.String("job", e.JobID), zap.Error(err))
		return fmt.Errorf("failed to publish %s: %w", e.Type, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("NATS drain failed", zap.Error(err))
	}
}
