package queue

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"github.com/akannigil/oxygen-documentor-sub000/internal/delivery"
	"github.com/akannigil/oxygen-documentor-sub000/internal/events"
	"github.com/akannigil/oxygen-documentor-sub000/internal/generation"
	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
	"github.com/akannigil/oxygen-documentor-sub000/internal/store"
)

// Retry backoff bounds.
const (
	RetryBase = 5 * time.Second
	RetryMax  = 10 * time.Minute
)

// Backoff returns the delay before retrying after the given attempt
// (1-based): RetryBase doubled per attempt, capped at RetryMax.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= RetryMax {
			return RetryMax
		}
	}
	return d
}

// permanent reports whether no retry can fix err.
func permanent(err error) bool {
	for _, target := range []error{
		generation.ErrTemplateNotFound,
		generation.ErrUnsupportedKind,
		generation.ErrConverterRequired,
		generation.ErrUnsupportedOutput,
		delivery.ErrInvalidRecipient,
		delivery.ErrDocumentNotReady,
		delivery.ErrInvalidTemplate,
		store.ErrRecordNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Generation
// ---------------------------------------------------------------------------

type generationWorker struct {
	river.WorkerDefaults[GenerationArgs]
	rt *Runtime
}

func (w *generationWorker) Timeout(*river.Job[GenerationArgs]) time.Duration {
	return w.rt.cfg.JobTimeout
}

func (w *generationWorker) NextRetry(job *river.Job[GenerationArgs]) time.Time {
	return time.Now().Add(Backoff(job.Attempt))
}

func (w *generationWorker) Work(ctx context.Context, job *river.Job[GenerationArgs]) error {
	id := strconv.FormatInt(job.ID, 10)
	final := job.Attempt >= job.MaxAttempts
	res, err := w.rt.runGeneration(ctx, id, job.Args.Job, final, func(p int) {
		if w.rt.progress != nil {
			w.rt.progress.Report(job.ID, p)
		}
	})
	if err != nil {
		if permanent(err) {
			return river.JobCancel(err)
		}
		return err
	}
	return river.RecordOutput(ctx, res)
}

// runGeneration processes one generation job and reports its lifecycle.
// final marks the last attempt: only then is a job-level error reported
// as a job failure.
func (r *Runtime) runGeneration(ctx context.Context, id string, job model.GenerationJob, final bool, progress generation.ProgressFunc) (*model.JobResult, error) {
	job.ID = id
	log := r.logger.With(zap.String("job", id), zap.String("template", job.TemplateID))
	start := time.Now()

	r.publish(ctx, events.Event{Type: events.JobStarted, JobID: id})
	res, err := r.gen.Process(ctx, job, func(p int) {
		progress(p)
		r.publish(ctx, events.Event{Type: events.JobProgress, JobID: id, Progress: p})
	})
	if err != nil {
		if !final && !permanent(err) {
			log.Warn("job attempt failed, will retry", zap.Error(err))
			return nil, err
		}
		log.Error("job failed", zap.Error(err))
		r.observeJob(model.JobFailed, time.Since(start))
		r.publish(ctx, events.Event{Type: events.JobFailed, JobID: id, Error: err.Error()})
		return nil, err
	}

	r.observeJob(model.JobCompleted, time.Since(start))
	r.publish(ctx, events.Event{Type: events.JobCompleted, JobID: id, Result: res})
	return res, nil
}

// ---------------------------------------------------------------------------
// Email
// ---------------------------------------------------------------------------

type emailWorker struct {
	river.WorkerDefaults[EmailArgs]
	rt *Runtime
}

func (w *emailWorker) NextRetry(job *river.Job[EmailArgs]) time.Time {
	return time.Now().Add(Backoff(job.Attempt))
}

func (w *emailWorker) Work(ctx context.Context, job *river.Job[EmailArgs]) error {
	res, err := w.rt.runEmail(ctx, strconv.FormatInt(job.ID, 10), job.Args.Email)
	if err != nil {
		if permanent(err) {
			return river.JobCancel(err)
		}
		return err
	}
	return river.RecordOutput(ctx, res)
}

func (r *Runtime) runEmail(ctx context.Context, id string, job model.EmailJob) (model.EmailResult, error) {
	res, err := r.mail.Send(ctx, job)
	if err != nil {
		r.logger.Warn("email delivery failed",
			zap.String("job", id), zap.String("document", job.DocumentID), zap.Error(err))
		return res, err
	}
	r.publish(ctx, events.Event{Type: events.EmailSent, JobID: id, DocumentID: job.DocumentID})
	return res, nil
}
