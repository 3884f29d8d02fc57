package queue

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const progressSQL = `UPDATE river_job SET metadata = jsonb_set(metadata, '{progress}', to_jsonb($2::int)) WHERE id = $1`

const progressWriteTimeout = 5 * time.Second

// execer is the part of *pgxpool.Pool used by the progress reporter.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// progressReporter writes job progress into river_job.metadata from a
// single goroutine. Report never blocks; for each job only the latest
// value is written.
type progressReporter struct {
	db     execer
	logger *zap.Logger

	mu      sync.Mutex
	pending map[int64]int

	wake     chan struct{}
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newProgressReporter(db execer, logger *zap.Logger) *progressReporter {
	p := &progressReporter{
		db:      db,
		logger:  logger,
		pending: make(map[int64]int),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.loop()
	return p
}

// Report records percent for job id.
func (p *progressReporter) Report(id int64, percent int) {
	p.mu.Lock()
	p.pending[id] = percent
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Close flushes pending values and stops the writer.
func (p *progressReporter) Close() {
	p.stopOnce.Do(func() { close(p.quit) })
	<-p.done
}

func (p *progressReporter) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.flush()
		case <-p.quit:
			p.flush()
			return
		}
	}
}

func (p *progressReporter) flush() {
	p.mu.Lock()
	batch := p.pending
	p.pending = make(map[int64]int, len(batch))
	p.mu.Unlock()

	for id, percent := range batch {
		ctx, cancel := context.WithTimeout(context.Background(), progressWriteTimeout)
		if _, err := p.db.Exec(ctx, progressSQL, id, percent); err != nil {
			p.logger.Debug("progress update failed", zap.Int64("job", id), zap.Error(err))
		}
		cancel()
	}
}
