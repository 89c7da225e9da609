package metering

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// BatchInserter is the interface used by Collector to persist calls.
// It exists to allow testing without a real database.
type BatchInserter interface {
	BatchInsert(ctx context.Context, calls []Call) error
}

// CollectorMetrics is an optional sink for collector health metrics.
type CollectorMetrics interface {
	SetCollectorBufferSize(n int)
	IncCollectorFlush(status string)
	ObserveCollectorFlushDuration(seconds float64)
	IncCollectorCalls()
}

// Collector buffers calls in memory and periodically flushes them to the
// store in batches. It is safe for concurrent use.
type Collector struct {
	store         BatchInserter
	buffer        []Call
	mu            sync.Mutex
	batchSize     int
	flushInterval time.Duration
	metrics       CollectorMetrics

	done     chan struct{}
	stopOnce sync.Once
	finished chan struct{}
	started  bool
}

// NewCollector creates a new Collector that flushes to the given store when the
// buffer reaches batchSize or every flushInterval, whichever comes first.
func NewCollector(store BatchInserter, batchSize int, flushInterval time.Duration) *Collector {
	if batchSize <= 0 {
		batchSize = 1
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		store:         store,
		buffer:        make([]Call, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
		finished:      make(chan struct{}),
	}
}

// SetMetrics sets the optional metrics sink.
func (c *Collector) SetMetrics(m CollectorMetrics) {
	c.metrics = m
}

// Start begins flushing buffered calls on a timer. It blocks until Stop is
// called or the context is cancelled.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	defer close(c.finished)

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-ctx.Done():
			c.flush()
			return
		case <-c.done:
			c.flush()
			return
		}
	}
}

// Record adds a call to the buffer. If the buffer reaches batchSize, a flush
// is triggered immediately.
func (c *Collector) Record(call Call) {
	c.mu.Lock()
	c.buffer = append(c.buffer, call)
	size := len(c.buffer)
	shouldFlush := size >= c.batchSize
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.IncCollectorCalls()
		c.metrics.SetCollectorBufferSize(size)
	}

	if shouldFlush {
		c.flush()
	}
}

// flush drains all buffered calls and writes them to the store. It logs
// errors rather than returning them so callers are not blocked.
func (c *Collector) flush() {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]Call, 0, c.batchSize)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	err := c.store.BatchInsert(ctx, batch)

	if c.metrics != nil {
		c.metrics.ObserveCollectorFlushDuration(time.Since(start).Seconds())
		c.metrics.SetCollectorBufferSize(0)
		if err != nil {
			c.metrics.IncCollectorFlush("error")
		} else {
			c.metrics.IncCollectorFlush("ok")
		}
	}

	if err != nil {
		slog.Error("failed to flush call log", "count", len(batch), "error", err)
	}
}

// Stop signals the background goroutine to exit and waits for its final
// flush. Without a running Start it flushes synchronously.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		started := c.started
		c.mu.Unlock()

		if started {
			<-c.finished
			return
		}
		c.flush()
	})
}
