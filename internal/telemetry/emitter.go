package telemetry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avolkhin/revgate/internal/observability"
	"github.com/avolkhin/revgate/internal/retry"
	"github.com/avolkhin/revgate/internal/util"
)

// Default pipeline settings.
const (
	DefaultQueueCapacity = 1024
	DefaultBatchSize     = 64
	DefaultFlushInterval = 1 * time.Second
)

// Emitter accepts access records without blocking and delivers them to
// a Sink from a single background worker. Delivery failures are
// retried with bounded exponential backoff; a batch that exhausts its
// retries is dropped and counted, never allowed to stall newer
// records.
type Emitter struct {
	queue         *Queue
	sink          Sink
	logger        observability.Logger
	batchSize     int
	flushInterval time.Duration
	retryConfig   *retry.Config
	delivered     atomic.Uint64

	startOnce sync.Once
	started   atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// EmitterOption is a functional option for configuring the emitter.
type EmitterOption func(*Emitter)

// WithQueueCapacity sets the pending-record queue capacity.
func WithQueueCapacity(n int) EmitterOption {
	return func(e *Emitter) {
		e.queue = NewQueue(n)
	}
}

// WithBatchSize sets the maximum records per delivery call.
func WithBatchSize(n int) EmitterOption {
	return func(e *Emitter) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithFlushInterval sets the periodic flush interval.
func WithFlushInterval(d time.Duration) EmitterOption {
	return func(e *Emitter) {
		if d > 0 {
			e.flushInterval = d
		}
	}
}

// WithRetryConfig sets the delivery retry policy.
func WithRetryConfig(cfg *retry.Config) EmitterOption {
	return func(e *Emitter) {
		e.retryConfig = cfg
	}
}

// WithEmitterLogger sets the logger for the emitter.
func WithEmitterLogger(logger observability.Logger) EmitterOption {
	return func(e *Emitter) {
		e.logger = logger
	}
}

// NewEmitter creates an emitter delivering to the given sink.
func NewEmitter(sink Sink, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		sink:          sink,
		logger:        observability.NopLogger(),
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		retryConfig: &retry.Config{
			MaxRetries:     retry.DefaultMaxRetries,
			InitialBackoff: retry.DefaultInitialBackoff,
			MaxBackoff:     5 * time.Second,
		},
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.queue == nil {
		e.queue = NewQueue(DefaultQueueCapacity)
	}

	return e
}

// Emit enqueues a record and returns immediately. It is safe to call
// from any goroutine and never blocks on queue fullness or backend
// state.
func (e *Emitter) Emit(rec *Record) {
	e.queue.Push(rec)
}

// Start launches the delivery worker.
func (e *Emitter) Start() {
	e.startOnce.Do(func() {
		e.started.Store(true)
		go e.run()
	})
}

// Close stops the worker and attempts a final flush bounded by the
// context deadline. Records that cannot be flushed are counted dropped
// and reported through an error wrapping util.ErrTelemetryDropped.
func (e *Emitter) Close(ctx context.Context) error {
	e.stopOnce.Do(func() {
		close(e.stopCh)
	})

	if e.started.Load() {
		select {
		case <-e.doneCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Final flush of anything still pending.
	for {
		batch := e.queue.PopBatch(e.batchSize)
		if batch == nil {
			return nil
		}
		if err := e.sink.Write(ctx, batch); err != nil {
			e.queue.CountDropped(len(batch))
			return fmt.Errorf("final flush of %d records failed: %w: %w",
				len(batch), util.ErrTelemetryDropped, err)
		}
		e.delivered.Add(uint64(len(batch)))
	}
}

// Queue exposes the underlying queue for metrics and tests.
func (e *Emitter) Queue() *Queue {
	return e.queue
}

// Delivered returns the total number of records delivered.
func (e *Emitter) Delivered() uint64 {
	return e.delivered.Load()
}

// run is the delivery loop: it wakes on pushes and on the periodic
// flush tick, draining the queue in FIFO batches.
func (e *Emitter) run() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-e.queue.Notify():
			e.drain()
		case <-ticker.C:
			e.drain()
		}
	}
}

// drain delivers pending records until the queue is empty.
func (e *Emitter) drain() {
	for {
		batch := e.queue.PopBatch(e.batchSize)
		if batch == nil {
			return
		}
		e.deliver(batch)
	}
}

// deliver writes one batch with retries. After the retry ceiling the
// batch is dropped so later records are not blocked behind a dead
// backend.
func (e *Emitter) deliver(batch []*Record) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Abort in-flight retries on shutdown.
	go func() {
		select {
		case <-e.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := retry.Do(ctx, e.retryConfig, func() error {
		return e.sink.Write(ctx, batch)
	}, &retry.Options{
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			e.logger.Warn("telemetry delivery failed, retrying",
				observability.Int("attempt", attempt),
				observability.Duration("backoff", backoff),
				observability.Error(err),
			)
		},
	})
	if err != nil {
		e.queue.CountDropped(len(batch))
		e.logger.Error("telemetry batch dropped after retries",
			observability.Int("records", len(batch)),
			observability.Error(err),
		)
		return
	}

	e.delivered.Add(uint64(len(batch)))
}
