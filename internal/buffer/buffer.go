package buffer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tinytelemetry/logwatch/internal/metrics"
	"github.com/tinytelemetry/logwatch/internal/model"
)

// DefaultFlushQueueSize is the number of queued batches above which the
// buffer warns that the store is falling behind.
const DefaultFlushQueueSize = 64

type batch struct {
	tenant  string
	records []model.LogRecord
}

// Config holds tunable parameters for the buffer.
type Config struct {
	Threshold      int
	FlushInterval  time.Duration
	FlushQueueSize int
	// Retries is the number of extra append attempts before a batch is dropped.
	Retries    int
	RetryDelay time.Duration
	Metrics    *metrics.Counters
}

// Buffer stages accepted records per tenant and flushes them to the store
// when a tenant reaches the threshold or the flush interval elapses.
// Push never blocks on store IO. A single flush worker owns every write, so
// batches reach the store in the order they were cut.
type Buffer struct {
	writer model.LogWriter

	mu      sync.Mutex
	pending map[string][]model.LogRecord
	closed  bool

	// queue is FIFO; it is appended to only while mu is held.
	qmu         sync.Mutex
	queue       []batch
	queueClosed bool
	wake        chan struct{}
	workerDone  chan struct{}
	queueLimit  int

	threshold     int
	flushInterval time.Duration
	retries       int
	retryDelay    time.Duration
	counters      *metrics.Counters

	done     chan struct{}
	stopOnce sync.Once
	tickWg   sync.WaitGroup

	dropped atomic.Int64
	flushed atomic.Int64

	// backpressureCount tracks enqueues past the queue limit for throttled logging.
	backpressureCount atomic.Int64
	lastBPLog         atomic.Int64
}

// New creates a buffer that flushes to writer and starts its goroutines.
func New(writer model.LogWriter, conf ...Config) *Buffer {
	threshold := model.DefaultFlushThreshold
	flushInterval := model.DefaultFlushInterval
	flushQueueSize := DefaultFlushQueueSize
	retryDelay := 100 * time.Millisecond
	var c Config
	if len(conf) > 0 {
		c = conf[0]
		if c.Threshold > 0 {
			threshold = c.Threshold
		}
		if c.FlushInterval > 0 {
			flushInterval = c.FlushInterval
		}
		if c.FlushQueueSize > 0 {
			flushQueueSize = c.FlushQueueSize
		}
		if c.RetryDelay > 0 {
			retryDelay = c.RetryDelay
		}
	}
	counters := c.Metrics
	if counters == nil {
		counters = metrics.NewTestCounters()
	}

	b := &Buffer{
		writer:        writer,
		pending:       make(map[string][]model.LogRecord),
		wake:          make(chan struct{}, 1),
		workerDone:    make(chan struct{}),
		queueLimit:    flushQueueSize,
		threshold:     threshold,
		flushInterval: flushInterval,
		retries:       max(c.Retries, 0),
		retryDelay:    retryDelay,
		counters:      counters,
		done:          make(chan struct{}),
	}

	go b.flushWorker()

	b.tickWg.Add(1)
	go b.tickLoop()

	return b
}

// Push stages one record for tenant. Reaching the threshold hands the
// tenant's batch to the flush worker immediately.
func (b *Buffer) Push(tenant string, record model.LogRecord) {
	b.mu.Lock()
	if b.closed {
		bt := batch{tenant: tenant, records: []model.LogRecord{record}}
		queued := b.enqueue(bt)
		b.mu.Unlock()
		if !queued {
			// The worker is draining its last batches; write after it.
			<-b.workerDone
			b.flushBatch(bt)
		}
		return
	}
	b.pending[tenant] = append(b.pending[tenant], record)
	if len(b.pending[tenant]) >= b.threshold {
		b.enqueue(batch{tenant: tenant, records: b.pending[tenant]})
		delete(b.pending, tenant)
	}
	b.mu.Unlock()
}

// Occupancy returns the tenant's pending records as a percentage of the threshold.
func (b *Buffer) Occupancy(tenant string) float64 {
	return float64(b.Pending(tenant)) / float64(b.threshold) * 100
}

// Pending returns the number of unflushed records for tenant.
func (b *Buffer) Pending(tenant string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending[tenant])
}

// Discard drops the tenant's unflushed records and returns how many there
// were. Batches already handed to the flush worker are not recalled.
func (b *Buffer) Discard(tenant string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.pending[tenant])
	delete(b.pending, tenant)
	return n
}

// DroppedEvents returns how many accepted records were lost to failed flushes.
func (b *Buffer) DroppedEvents() int64 {
	return b.dropped.Load()
}

// Flushed returns how many records were written to the store.
func (b *Buffer) Flushed() int64 {
	return b.flushed.Load()
}

// Threshold returns the per-tenant flush threshold.
func (b *Buffer) Threshold() int {
	return b.threshold
}

// QueueDepth returns the number of batches waiting for the flush worker.
func (b *Buffer) QueueDepth() int {
	b.qmu.Lock()
	defer b.qmu.Unlock()
	return len(b.queue)
}

// tickLoop periodically drains every tenant's pending records.
func (b *Buffer) tickLoop() {
	defer b.tickWg.Done()
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.drainPending()
		case <-b.done:
			return
		}
	}
}

// drainPending swaps out the pending map so pushes during the flush land
// in a fresh one, then queues each tenant's batch.
func (b *Buffer) drainPending() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drainPendingLocked()
}

func (b *Buffer) drainPendingLocked() {
	if len(b.pending) == 0 {
		return
	}
	all := b.pending
	b.pending = make(map[string][]model.LogRecord, len(all))
	for tenant, records := range all {
		b.enqueue(batch{tenant: tenant, records: records})
	}
}

// enqueue appends bt to the worker queue. Callers hold b.mu so queue order
// matches the order batches were cut. It reports false once the queue is
// closed.
func (b *Buffer) enqueue(bt batch) bool {
	b.qmu.Lock()
	if b.queueClosed {
		b.qmu.Unlock()
		return false
	}
	b.queue = append(b.queue, bt)
	depth := len(b.queue)
	b.qmu.Unlock()

	if depth > b.queueLimit {
		b.logBackpressure(depth)
	}
	select {
	case b.wake <- struct{}{}:
	default:
	}
	return true
}

// logBackpressure emits a throttled warning (at most once per 10 seconds)
// when more batches wait than the configured queue size.
func (b *Buffer) logBackpressure(depth int) {
	count := b.backpressureCount.Add(1)
	now := time.Now().Unix()
	last := b.lastBPLog.Load()
	if now-last >= 10 && b.lastBPLog.CompareAndSwap(last, now) {
		log.Warn().Int("queued_batches", depth).Int64("overflows", count).Msg("buffer: flush queue over limit, store falling behind")
	}
}

func (b *Buffer) flushWorker() {
	defer close(b.workerDone)
	for {
		b.qmu.Lock()
		if len(b.queue) == 0 {
			closed := b.queueClosed
			b.qmu.Unlock()
			if closed {
				return
			}
			<-b.wake
			continue
		}
		bt := b.queue[0]
		b.queue[0] = batch{}
		b.queue = b.queue[1:]
		b.qmu.Unlock()

		b.flushBatch(bt)
	}
}

// flushBatch appends the batch, retrying up to the configured count.
// A batch that still fails is dropped and counted.
func (b *Buffer) flushBatch(bt batch) {
	if len(bt.records) == 0 {
		return
	}

	var err error
	for attempt := 0; attempt <= b.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(b.retryDelay)
		}
		if err = b.writer.AppendBatch(bt.tenant, bt.records); err == nil {
			b.flushed.Add(int64(len(bt.records)))
			return
		}
	}

	n := len(bt.records)
	b.dropped.Add(int64(n))
	b.counters.EventsDropped.Add(float64(n))
	log.Error().Err(err).Str("tenant", bt.tenant).Int("records", n).Msg("buffer: flush failed, batch dropped")
}

// Stop flushes remaining records and waits for all writes to complete.
// Records pushed after Stop are written synchronously, after everything
// queued before them.
func (b *Buffer) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.tickWg.Wait()

		b.mu.Lock()
		b.closed = true
		b.drainPendingLocked()
		b.mu.Unlock()

		b.qmu.Lock()
		b.queueClosed = true
		b.qmu.Unlock()
		select {
		case b.wake <- struct{}{}:
		default:
		}

		<-b.workerDone
	})
}
