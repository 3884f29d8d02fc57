// Package queue runs generation and email jobs on a durable river queue
// backed by Postgres, and falls back to running them inline when the
// broker is disabled or unreachable.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"
	"go.uber.org/zap"

	"github.com/akannigil/oxygen-documentor-sub000/internal/events"
	"github.com/akannigil/oxygen-documentor-sub000/internal/generation"
	"github.com/akannigil/oxygen-documentor-sub000/internal/hints"
	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

// Sentinel errors.
var (
	ErrUnavailable  = errors.New("job queue unavailable")
	ErrJobNotFound  = errors.New("job not found")
	ErrJobStarted   = errors.New("job already started")
	ErrJobFinished  = errors.New("job already finished")
	ErrInvalidJob   = errors.New("invalid job")
	ErrRuntimeState = errors.New("runtime already connected or closed")
)

// Defaults.
const (
	DefaultGenerationWorkers = 5
	DefaultEmailWorkers      = 10
	DefaultMaxAttempts       = 3
	DefaultJobTimeout        = 30 * time.Minute
	DefaultRetention         = 24 * time.Hour
	DefaultConnectBackoff    = time.Second
	stopTimeout              = 30 * time.Second
)

// State is the lifecycle state of a Runtime.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateReady
	StateUnavailable
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config configures the broker connection and worker pools.
type Config struct {
	DSN               string
	Disabled          bool
	GenerationWorkers int
	EmailWorkers      int
	MaxAttempts       int
	JobTimeout        time.Duration
	Retention         time.Duration
	ConnectRetries    int
	ConnectBackoff    time.Duration
	// Migrate applies river's schema migrations on connect.
	Migrate bool
	// ClientOnly connects without starting workers. Such a runtime can
	// enqueue, inspect and cancel jobs but never runs them.
	ClientOnly bool
}

func (c Config) withDefaults() Config {
	if c.GenerationWorkers <= 0 {
		c.GenerationWorkers = DefaultGenerationWorkers
	}
	if c.EmailWorkers <= 0 {
		c.EmailWorkers = DefaultEmailWorkers
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = DefaultJobTimeout
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.ConnectBackoff <= 0 {
		c.ConnectBackoff = DefaultConnectBackoff
	}
	return c
}

// Generator runs a generation job. Implemented by *generation.Processor.
type Generator interface {
	Process(ctx context.Context, job model.GenerationJob, progress generation.ProgressFunc) (*model.JobResult, error)
}

// Deliverer sends one email. Implemented by *delivery.Sender.
type Deliverer interface {
	Send(ctx context.Context, job model.EmailJob) (model.EmailResult, error)
}

// JobObserver records finished jobs.
type JobObserver interface {
	ObserveJob(state model.JobState, d time.Duration)
}

// Runtime owns the broker connection and the workers. Its lifecycle is
// Connect, then use, then Close. Until Connect succeeds, and after it
// fails, jobs run inline when the fallback is enabled.
type Runtime struct {
	cfg       Config
	gen       Generator
	mail      Deliverer
	logger    *zap.Logger
	publisher events.Publisher
	observer  JobObserver
	inlineOK  bool

	state atomic.Int32

	mu       sync.Mutex
	pool     *pgxpool.Pool
	client   *river.Client[pgx.Tx]
	progress *progressReporter

	inline *inlineJobs
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(r *Runtime) { r.publisher = p }
}

// WithObserver sets the job observer.
func WithObserver(o JobObserver) Option {
	return func(r *Runtime) { r.observer = o }
}

// WithInlineFallback enables or disables running jobs synchronously when
// the broker is not ready. Enabled by default.
func WithInlineFallback(enabled bool) Option {
	return func(r *Runtime) { r.inlineOK = enabled }
}

// NewRuntime creates an idle runtime.
func NewRuntime(cfg Config, gen Generator, mail Deliverer, opts ...Option) *Runtime {
	cfg = cfg.withDefaults()
	r := &Runtime{
		cfg:       cfg,
		gen:       gen,
		mail:      mail,
		publisher: events.Nop{},
		inlineOK:  true,
		inline:    newInlineJobs(cfg.Retention),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.logger = r.logger.Named("queue")
	return r
}

// State returns the current lifecycle state.
func (r *Runtime) State() State {
	return State(r.state.Load())
}

// Ready reports whether jobs are sent to the broker.
func (r *Runtime) Ready() bool {
	return r.State() == StateReady
}

// Connect establishes the broker connection, retrying with backoff, and
// starts the workers. On failure the runtime becomes unavailable and the
// error wraps ErrUnavailable; the host process keeps running.
func (r *Runtime) Connect(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return ErrRuntimeState
	}

	if r.cfg.Disabled {
		r.logger.Info("job queue disabled, jobs run inline")
		r.state.Store(int32(StateUnavailable))
		return nil
	}
	if r.cfg.DSN == "" {
		r.state.Store(int32(StateUnavailable))
		return fmt.Errorf("%w: no database URL configured", ErrUnavailable)
	}

	pool, err := r.connectWithRetry(ctx)
	if err == nil {
		err = r.start(ctx, pool)
		if err != nil {
			pool.Close()
		}
	}
	if err != nil {
		r.logger.Error("job queue unavailable", zap.Error(err), zap.String("hint", hints.ForBrokerUnavailable()))
		r.state.Store(int32(StateUnavailable))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	r.state.Store(int32(StateReady))
	if r.cfg.ClientOnly {
		r.logger.Debug("job queue connected without workers")
		return nil
	}
	r.logger.Info("job queue ready",
		zap.Int("generation_workers", r.cfg.GenerationWorkers),
		zap.Int("email_workers", r.cfg.EmailWorkers))
	return nil
}

func (r *Runtime) connectWithRetry(ctx context.Context) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(r.cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(r.cfg.GenerationWorkers + r.cfg.EmailWorkers + 5) // #nosec G115 -- bounded by config validation
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	backoff := r.cfg.ConnectBackoff
	for attempt := 0; ; attempt++ {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		if attempt >= r.cfg.ConnectRetries {
			return nil, err
		}

		r.logger.Warn("broker connection failed, retrying",
			zap.Int("attempt", attempt+1), zap.Duration("backoff", backoff), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (r *Runtime) start(ctx context.Context, pool *pgxpool.Pool) error {
	driver := riverpgxv5.New(pool)

	if r.cfg.Migrate {
		migrator, err := rivermigrate.New(driver, nil)
		if err != nil {
			return fmt.Errorf("creating migrator: %w", err)
		}
		if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
			return fmt.Errorf("migrating job tables: %w", err)
		}
	}

	if r.cfg.ClientOnly {
		client, err := river.NewClient(driver, &river.Config{})
		if err != nil {
			return fmt.Errorf("creating river client: %w", err)
		}
		r.mu.Lock()
		r.pool, r.client = pool, client
		r.mu.Unlock()
		return nil
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &generationWorker{rt: r})
	river.AddWorker(workers, &emailWorker{rt: r})

	client, err := river.NewClient(driver, &river.Config{
		Queues: map[string]river.QueueConfig{
			GenerationQueue: {MaxWorkers: r.cfg.GenerationWorkers},
			EmailQueue:      {MaxWorkers: r.cfg.EmailWorkers},
		},
		Workers:                     workers,
		MaxAttempts:                 r.cfg.MaxAttempts,
		JobTimeout:                  r.cfg.JobTimeout,
		CompletedJobRetentionPeriod: r.cfg.Retention,
		CancelledJobRetentionPeriod: r.cfg.Retention,
		DiscardedJobRetentionPeriod: r.cfg.Retention,
	})
	if err != nil {
		return fmt.Errorf("creating river client: %w", err)
	}

	progress := newProgressReporter(pool, r.logger)
	// The client outlives the connect context; Close stops it.
	if err := client.Start(context.WithoutCancel(ctx)); err != nil {
		progress.Close()
		return fmt.Errorf("starting river: %w", err)
	}

	r.mu.Lock()
	r.pool, r.client, r.progress = pool, client, progress
	r.mu.Unlock()
	return nil
}

// Close waits for running jobs to finish (bounded by ctx), then releases
// the connection. Safe to call in any state.
func (r *Runtime) Close(ctx context.Context) error {
	prev := State(r.state.Swap(int32(StateClosed)))
	if prev == StateClosed {
		return nil
	}

	r.mu.Lock()
	client, pool, progress := r.client, r.pool, r.progress
	r.client, r.pool, r.progress = nil, nil, nil
	r.mu.Unlock()

	var err error
	if client != nil && !r.cfg.ClientOnly {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, stopTimeout)
			defer cancel()
		}
		if stopErr := client.Stop(ctx); stopErr != nil {
			err = fmt.Errorf("stopping workers: %w", stopErr)
		}
	}
	if progress != nil {
		progress.Close()
	}
	if pool != nil {
		pool.Close()
	}
	r.logger.Info("job queue closed")
	return err
}

func (r *Runtime) riverClient() *river.Client[pgx.Tx] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client
}

// ---------------------------------------------------------------------------
// Submission
// ---------------------------------------------------------------------------

// Submit enqueues a generation job and returns its handle. When the
// broker is not ready the job runs inline before Submit returns.
func (r *Runtime) Submit(ctx context.Context, job model.GenerationJob) (string, error) {
	if job.TemplateID == "" {
		return "", fmt.Errorf("%w: template ID is required", ErrInvalidJob)
	}

	if client := r.readyClient(); client != nil {
		res, err := client.Insert(ctx, GenerationArgs{Job: job}, &river.InsertOpts{
			Queue:       GenerationQueue,
			MaxAttempts: r.cfg.MaxAttempts,
		})
		if err != nil {
			return "", fmt.Errorf("enqueueing job: %w", err)
		}
		return strconv.FormatInt(res.Job.ID, 10), nil
	}

	if !r.inlineOK {
		return "", ErrUnavailable
	}
	return r.generateInline(ctx, job), nil
}

// SendEmail enqueues an email job and returns its handle.
func (r *Runtime) SendEmail(ctx context.Context, job model.EmailJob) (string, error) {
	if job.DocumentID == "" || job.RecipientEmail == "" {
		return "", fmt.Errorf("%w: document ID and recipient are required", ErrInvalidJob)
	}

	if client := r.readyClient(); client != nil {
		res, err := client.Insert(ctx, EmailArgs{Email: job}, &river.InsertOpts{
			Queue:       EmailQueue,
			MaxAttempts: r.cfg.MaxAttempts,
		})
		if err != nil {
			return "", fmt.Errorf("enqueueing email: %w", err)
		}
		return strconv.FormatInt(res.Job.ID, 10), nil
	}

	if !r.inlineOK {
		return "", ErrUnavailable
	}
	return r.emailInline(ctx, job), nil
}

func (r *Runtime) readyClient() *river.Client[pgx.Tx] {
	if !r.Ready() {
		return nil
	}
	return r.riverClient()
}

func (r *Runtime) generateInline(ctx context.Context, job model.GenerationJob) string {
	id := uuid.NewString()
	st := model.JobStatus{ID: id, State: model.JobActive}
	r.inline.put(st)

	res, err := r.runGeneration(ctx, id, job, true, func(p int) {
		st.Progress = p
		r.inline.put(st)
	})
	if err != nil {
		st.State = model.JobFailed
		st.FailureReason = err.Error()
	} else {
		st.State = model.JobCompleted
		st.Progress = 100
		st.Result = res
	}
	r.inline.put(st)
	return id
}

func (r *Runtime) emailInline(ctx context.Context, job model.EmailJob) string {
	id := uuid.NewString()
	st := model.JobStatus{ID: id, State: model.JobCompleted, Progress: 100}
	if _, err := r.runEmail(ctx, id, job); err != nil {
		st.State = model.JobFailed
		st.Progress = 0
		st.FailureReason = err.Error()
	}
	r.inline.put(st)
	return id
}

// ---------------------------------------------------------------------------
// Status and cancellation
// ---------------------------------------------------------------------------

// Status returns the poll view of a job.
func (r *Runtime) Status(ctx context.Context, id string) (*model.JobStatus, error) {
	if st, ok := r.inline.get(id); ok {
		return st, nil
	}
	row, err := r.jobRow(ctx, id)
	if err != nil {
		return nil, err
	}
	return statusFromRow(row), nil
}

// Cancel prevents a queued job from starting. Jobs already claimed by a
// worker cannot be cancelled.
func (r *Runtime) Cancel(ctx context.Context, id string) error {
	if _, ok := r.inline.get(id); ok {
		return ErrJobFinished
	}
	row, err := r.jobRow(ctx, id)
	if err != nil {
		return err
	}
	if row.State == rivertype.JobStateRunning {
		return ErrJobStarted
	}
	if isFinalized(row.State) {
		return ErrJobFinished
	}

	cancelled, err := r.riverClient().JobCancel(ctx, row.ID)
	if err != nil {
		return fmt.Errorf("cancelling job: %w", err)
	}
	// A worker may have claimed the job between the read and the cancel.
	if cancelled.State == rivertype.JobStateRunning {
		return ErrJobStarted
	}
	r.logger.Info("job cancelled", zap.String("job", id))
	return nil
}

func (r *Runtime) jobRow(ctx context.Context, id string) (*rivertype.JobRow, error) {
	client := r.readyClient()
	if client == nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	row, err := client.JobGet(ctx, n)
	if err != nil {
		if errors.Is(err, river.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("loading job: %w", err)
	}
	return row, nil
}

// ---------------------------------------------------------------------------
// Hooks
// ---------------------------------------------------------------------------

func (r *Runtime) publish(ctx context.Context, e events.Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if err := r.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		r.logger.Debug("event not published", zap.String("type", e.Type), zap.Error(err))
	}
}

func (r *Runtime) observeJob(state model.JobState, d time.Duration) {
	if r.observer != nil {
		r.observer.ObserveJob(state, d)
	}
}
