// Package worker runs the mirror workers: each change taken off the queue is
// persisted to the store and then published to live subscribers.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/biggame/internal/domain/model"
	"github.com/okian/biggame/pkg/logger"
	"github.com/okian/biggame/pkg/metrics"
)

const poolShutdownTimeout = 10 * time.Second

// Change abstracts what workers read off the queue.
type Change = model.Change

// Persister writes a change to durable storage. It reports false, without
// error, for a change older than one it already wrote.
type Persister interface {
	Persist(ctx context.Context, c Change) (bool, error)
}

// Publisher hands a change to live subscribers.
type Publisher interface {
	Publish(c Change)
}

// Queue defines how workers receive changes.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Change
}

// Worker processes changes until its queue is drained or it is stopped.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	persister Persister
	publisher Publisher
	name      string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker. A nil persister or publisher skips that step.
func NewInMemoryWorker(queue Queue, persister Persister, publisher Publisher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		persister: persister,
		publisher: publisher,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run consumes changes until the queue closes, ctx is cancelled or Shutdown is called.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	changes := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if err := w.process(ctx, c); err != nil {
				w.logger.Error(ctx, "error processing change", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker without draining the queue.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// process persists c and publishes it. A persist failure is logged and
// counted; subscribers still get the change since the ledger already holds it.
func (w *InMemoryWorker) process(ctx context.Context, c Change) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	var persistErr error
	if w.persister != nil {
		fresh, err := w.persister.Persist(ctx, c)
		switch {
		case err != nil:
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "persist_error")
			persistErr = fmt.Errorf("persist change %s (seq %d): %w", c.ID, c.Seq, err)
		case !fresh:
			metrics.RecordStaleChange()
			w.logger.Debug(ctx, "skipping stale change", logger.Uint64("seq", c.Seq))
			return nil
		}
	}

	if w.publisher != nil {
		w.publisher.Publish(c)
		metrics.RecordChangePublished()
	}
	return persistErr
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers (at least one).
func NewPool(workerCount int, queue Queue, persister Persister, publisher Publisher) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range workerCount {
		p.workers[i] = NewInMemoryWorker(queue, persister, publisher,
			WithName("worker-"+strconv.Itoa(i)))
	}
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.workers))
}

// Shutdown closes the queue and waits for the workers to drain it. Workers
// still running when ctx (or the pool timeout) expires are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	drainCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-drainCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			_ = w.Shutdown(context.Background())
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool drain: %w", drainCtx.Err())
	}
	return nil
}
