package convert

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

// Pool sizing.
const (
	MinPoolSize = 1
	// MaxPoolSize caps browser instances (~200MB each).
	MaxPoolSize = 8
	cpuDivisor  = 2
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("converter pool closed")

// Pool hands out Converters, each owning its own browser, to concurrent
// rows. Members are created on first demand.
type Pool struct {
	size    int
	factory func() *Converter
	members []*Converter
	idle    chan *Converter
	mu      sync.Mutex
	created int
	closed  bool
}

// NewPool creates a pool of at most n converters built by factory.
func NewPool(n int, factory func() *Converter) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{
		size:    n,
		factory: factory,
		members: make([]*Converter, 0, n),
		idle:    make(chan *Converter, n),
	}
}

// Acquire returns an idle converter, creates one if the pool is not full,
// or waits for a release.
func (p *Pool) Acquire(ctx context.Context) (*Converter, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	select {
	case c, ok := <-p.idle:
		if !ok {
			return nil, ErrPoolClosed
		}
		return c, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.created < p.size {
		p.created++
		p.mu.Unlock()

		c := p.factory()

		p.mu.Lock()
		p.members = append(p.members, c)
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	select {
	case c, ok := <-p.idle:
		if !ok {
			return nil, ErrPoolClosed
		}
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns c to the pool.
func (p *Pool) Release(c *Converter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.idle <- c
}

// Convert acquires a converter, converts and releases it.
func (p *Pool) Convert(ctx context.Context, docx []byte, opts *model.ConversionOptions) ([]byte, error) {
	c, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(c)
	return c.Convert(ctx, docx, opts)
}

// Close closes every converter created by the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.idle)
	members := p.members
	p.mu.Unlock()

	var errs []error
	for _, c := range members {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *Pool) Size() int {
	return p.size
}

// ResolvePoolSize returns workers when positive, else GOMAXPROCS/2
// clamped to [MinPoolSize, MaxPoolSize].
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}
	n := runtime.GOMAXPROCS(0) / cpuDivisor
	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
