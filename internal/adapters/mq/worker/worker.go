// Package worker resolves queued character lookups and replies to their batch.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/armory/internal/adapters/mq/queue"
	"github.com/okian/armory/internal/domain/model"
	"github.com/okian/armory/pkg/logger"
	"github.com/okian/armory/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
	workerStopTimeout       = 5 * time.Second
)

// Lookup is what workers read off the queue.
type Lookup = queue.Lookup

// Resolver builds the overview for one character.
type Resolver interface {
	CharacterOverview(ctx context.Context, realm, name, region string) (model.CharacterOverview, error)
}

// Queue defines how workers receive lookups.
type Queue interface {
	Dequeue() <-chan Lookup
}

// InMemoryWorker resolves lookups from a queue until the queue closes or it
// is shut down.
type InMemoryWorker struct {
	queue    Queue
	resolver Resolver
	name     string
	active   *atomic.Int64

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, resolver Resolver, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		resolver: resolver,
		name:     "worker",
		active:   &atomic.Int64{},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = logger.Get().Named("worker")
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	lookups := w.queue.Dequeue()
	for {
		select {
		case <-w.shutdown:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case l, ok := <-lookups:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			w.process(ctx, l)
		}
	}
}

// Shutdown stops the worker after the lookup in progress. Lookups still
// queued are left unanswered. Safe to call more than once.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process resolves a single lookup and always sends exactly one reply.
func (w *InMemoryWorker) process(ctx context.Context, l Lookup) { //nolint:gocritic // hugeParam: Lookup is passed by value for channel semantics
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	res := model.LookupResult{ID: l.ID, Index: l.Index}

	lctx := ctx
	if !l.Deadline.IsZero() {
		var cancel context.CancelFunc
		lctx, cancel = context.WithDeadline(ctx, l.Deadline)
		defer cancel()
	}

	if err := lctx.Err(); err != nil {
		res.Err = err
	} else {
		res.Overview, res.Err = w.resolver.CharacterOverview(lctx, l.Identifier.Realm, l.Identifier.Name, l.Region)
	}

	if res.Err != nil {
		metrics.RecordWorkerError()
		kind := "resolve_error"
		if errors.Is(res.Err, context.DeadlineExceeded) {
			kind = "deadline_exceeded"
		}
		metrics.RecordErrorByComponent("worker", kind)
		w.logger.Warn(ctx, "lookup failed",
			logger.String("lookup_id", l.ID.String()),
			logger.String("character", l.Identifier.String()),
			logger.Error(res.Err))
	}

	select {
	case l.Reply <- res:
	default:
		w.logger.Error(ctx, "reply dropped, batch no longer listening", logger.String("lookup_id", l.ID.String()))
	}
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  atomic.Int64
	logger  logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, q Queue, resolver Resolver, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(q, resolver, wopts...)
		w.active = &pool.active
		pool.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Active returns the number of workers currently resolving a lookup.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and waits for workers to drain it. If draining
// outlasts ctx (or poolShutdownTimeout), the remaining workers are stopped
// after their current lookup and the drain error is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "drain timed out, stopping workers", logger.Int("worker_id", i))
			p.stop(ctx, p.workers[i:])
			return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
		}
	}
	return nil
}

func (p *Pool) stop(ctx context.Context, workers []*InMemoryWorker) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), workerStopTimeout)
	defer cancel()
	for _, w := range workers {
		if err := w.Shutdown(stopCtx); err != nil {
			p.logger.Error(ctx, "worker did not stop", logger.String("worker", w.name), logger.Error(err))
		}
	}
}
