package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AsyncOptions configures batching and buffering of the AsyncWriter.
type AsyncOptions struct {
	BufferSize     int           `env:"AUDIT_BUFFER_SIZE" envDefault:"1000"`    // Max events queued in memory; further events are dropped
	BatchSize      int           `env:"AUDIT_BATCH_SIZE" envDefault:"100"`      // Target events per batch
	BatchTimeout   time.Duration `env:"AUDIT_BATCH_TIMEOUT" envDefault:"100ms"` // Max time a partial batch waits
	StorageTimeout time.Duration `env:"AUDIT_STORAGE_TIMEOUT" envDefault:"5s"`  // Per-batch storage deadline
}

func (o AsyncOptions) withDefaults() AsyncOptions {
	if o.BufferSize <= 0 {
		o.BufferSize = 1000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = 100 * time.Millisecond
	}
	if o.StorageTimeout <= 0 {
		o.StorageTimeout = 5 * time.Second
	}
	return o
}

// AsyncOption configures an AsyncWriter.
type AsyncOption func(*AsyncWriter)

// WithAsyncLogger sets the logger used to report failed batches.
func WithAsyncLogger(l *slog.Logger) AsyncOption {
	return func(aw *AsyncWriter) {
		if l != nil {
			aw.log = l
		}
	}
}

// AsyncWriter queues events in memory and writes them in batches from a
// single background goroutine. Store never waits for the storage: it
// enqueues or fails with ErrBufferFull. Batch failures are logged.
type AsyncWriter struct {
	storage BatchStorage
	events  chan Event
	done    chan struct{}
	stopped chan struct{}
	options AsyncOptions
	log     *slog.Logger

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewAsyncWriter starts the background worker. Call Close to flush and stop it.
func NewAsyncWriter(storage BatchStorage, opts AsyncOptions, aopts ...AsyncOption) *AsyncWriter {
	if storage == nil {
		panic("audit: batch storage cannot be nil")
	}

	opts = opts.withDefaults()
	aw := &AsyncWriter{
		storage: storage,
		events:  make(chan Event, opts.BufferSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		options: opts,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range aopts {
		opt(aw)
	}

	go aw.worker()

	return aw
}

// Store enqueues event for the next batch.
func (aw *AsyncWriter) Store(_ context.Context, event Event) error {
	aw.mu.RLock()
	defer aw.mu.RUnlock()

	if aw.closed {
		return ErrStorageNotAvailable
	}

	select {
	case aw.events <- event:
		return nil
	default:
		return ErrBufferFull
	}
}

// Pending returns the number of queued events not yet handed to the storage.
func (aw *AsyncWriter) Pending() int {
	return len(aw.events)
}

func (aw *AsyncWriter) worker() {
	defer close(aw.stopped)

	batch := make([]Event, 0, aw.options.BatchSize)
	ticker := time.NewTicker(aw.options.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		// Request contexts are long gone by now; the batch gets its own deadline.
		ctx, cancel := context.WithTimeout(context.Background(), aw.options.StorageTimeout)
		defer cancel()

		if err := aw.storage.StoreBatch(ctx, batch); err != nil {
			aw.log.LogAttrs(ctx, slog.LevelError, "audit batch dropped",
				slog.Int("events", len(batch)),
				slog.String("error", err.Error()),
			)
		}

		clear(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e := <-aw.events:
			batch = append(batch, e)
			if len(batch) >= aw.options.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-aw.done:
			// No sender can be active once done is closed.
			for {
				select {
				case e := <-aw.events:
					batch = append(batch, e)
					if len(batch) >= aw.options.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops accepting events, flushes what is queued and waits for the
// worker until ctx expires. It is safe to call more than once.
func (aw *AsyncWriter) Close(ctx context.Context) error {
	aw.once.Do(func() {
		aw.mu.Lock()
		aw.closed = true
		aw.mu.Unlock()
		close(aw.done)
	})

	select {
	case <-aw.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
