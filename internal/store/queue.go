package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Write queue defaults.
const (
	DefaultBatchSize  = 50
	DefaultBatchDelay = 200 * time.Millisecond
)

// DefaultRetrySchedule is the backoff between attempts of one batch.
var DefaultRetrySchedule = []time.Duration{
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
}

// Upserter writes a batch of records with conflict resolution on RecordKey.
type Upserter interface {
	UpsertOdds(ctx context.Context, records []OddsRecord) error
	Close() error
}

// QueueOptions configures a WriteQueue.
type QueueOptions struct {
	BatchSize     int
	BatchDelay    time.Duration
	RetrySchedule []time.Duration

	// OnWritten is called after a batch is persisted.
	OnWritten func(batch []OddsRecord)

	// OnDrop is called when a batch is abandoned after a permanent error or
	// exhausted retries.
	OnDrop func(batch []OddsRecord)
}

// QueueStats is a point-in-time view of the queue.
type QueueStats struct {
	Depth          int   `json:"depth"`
	Draining       bool  `json:"draining"`
	BatchesWritten int64 `json:"batches_written"`
	BatchesDropped int64 `json:"batches_dropped"`
	RecordsWritten int64 `json:"records_written"`
	RecordsDropped int64 `json:"records_dropped"`
	Retries        int64 `json:"retries"`
}

// WriteQueue is an in-process FIFO drained by at most one goroutine at a time.
type WriteQueue struct {
	ctx      context.Context
	upserter Upserter
	opts     QueueOptions

	mu       sync.Mutex
	items    []OddsRecord
	draining bool
	stats    QueueStats

	wg sync.WaitGroup
}

// NewWriteQueue creates a queue bound to ctx. Cancelling ctx stops the drain
// without writing what is still queued.
func NewWriteQueue(ctx context.Context, upserter Upserter, opts QueueOptions) *WriteQueue {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchDelay <= 0 {
		opts.BatchDelay = DefaultBatchDelay
	}
	if opts.RetrySchedule == nil {
		opts.RetrySchedule = DefaultRetrySchedule
	}

	return &WriteQueue{
		ctx:      ctx,
		upserter: upserter,
		opts:     opts,
	}
}

// Enqueue appends records and wakes the drain loop if it is idle.
func (q *WriteQueue) Enqueue(records []OddsRecord) {
	if len(records) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, records...)
	slog.Debug("records_queued", "count", len(records), "queue_size", len(q.items))

	if q.draining || q.ctx.Err() != nil {
		return
	}
	q.draining = true
	q.wg.Add(1)
	go q.drain()
}

// Len returns the number of records waiting to be written.
func (q *WriteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns a snapshot of queue counters.
func (q *WriteQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.Depth = len(q.items)
	stats.Draining = q.draining
	return stats
}

// Stop waits for the drain goroutine to exit. Call after cancelling the
// queue context; records still queued are abandoned.
func (q *WriteQueue) Stop() {
	q.wg.Wait()

	q.mu.Lock()
	abandoned := len(q.items)
	q.items = nil
	q.mu.Unlock()

	if abandoned > 0 {
		slog.Warn("write_queue_abandoned", "records", abandoned)
	}
}

// drain writes batches until the queue is empty or the context is done.
func (q *WriteQueue) drain() {
	defer q.wg.Done()

	for {
		batch, ok := q.next()
		if !ok {
			return
		}

		q.writeBatch(batch)

		if !sleepCtx(q.ctx, q.opts.BatchDelay) {
			q.mu.Lock()
			q.draining = false
			q.mu.Unlock()
			return
		}
	}
}

// next pops the head batch, or flips the queue back to idle when empty.
func (q *WriteQueue) next() ([]OddsRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || q.ctx.Err() != nil {
		q.draining = false
		return nil, false
	}

	n := q.opts.BatchSize
	if n > len(q.items) {
		n = len(q.items)
	}

	batch := make([]OddsRecord, n)
	copy(batch, q.items[:n])
	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return batch, true
}

// writeBatch upserts one batch with bounded retries.
func (q *WriteQueue) writeBatch(batch []OddsRecord) {
	batch = DedupeLatest(batch)
	batchID := uuid.New().String()

	for attempt := 0; ; attempt++ {
		err := q.upserter.UpsertOdds(q.ctx, batch)
		if err == nil {
			q.recordWritten(batch)
			slog.Info("batch_saved",
				"batch_id", batchID,
				"records", len(batch),
				"attempt", attempt+1,
				"by_bookmaker", countByBookmaker(batch),
			)
			if q.opts.OnWritten != nil {
				q.opts.OnWritten(batch)
			}
			return
		}

		if q.ctx.Err() != nil {
			slog.Warn("batch_abandoned", "batch_id", batchID, "records", len(batch), "reason", "shutdown")
			return
		}

		if !IsRetryable(err) {
			q.dropBatch(batchID, batch, err, "permanent_error", attempt+1)
			return
		}

		if attempt >= len(q.opts.RetrySchedule) {
			q.dropBatch(batchID, batch, err, "retries_exhausted", attempt+1)
			return
		}

		wait := q.opts.RetrySchedule[attempt]
		q.mu.Lock()
		q.stats.Retries++
		q.mu.Unlock()

		slog.Warn("batch_retry",
			"batch_id", batchID,
			"records", len(batch),
			"attempt", attempt+1,
			"backoff", wait,
			"error", truncateError(err),
		)

		if !sleepCtx(q.ctx, wait) {
			slog.Warn("batch_abandoned", "batch_id", batchID, "records", len(batch), "reason", "shutdown")
			return
		}
	}
}

func (q *WriteQueue) recordWritten(batch []OddsRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stats.BatchesWritten++
	q.stats.RecordsWritten += int64(len(batch))
}

func (q *WriteQueue) dropBatch(batchID string, batch []OddsRecord, err error, reason string, attempts int) {
	q.mu.Lock()
	q.stats.BatchesDropped++
	q.stats.RecordsDropped += int64(len(batch))
	q.mu.Unlock()

	first := batch[0].Key()
	slog.Error("batch_dropped",
		"batch_id", batchID,
		"reason", reason,
		"records", len(batch),
		"attempts", attempts,
		"first_key", first.String(),
		"error", truncateError(err),
	)

	if q.opts.OnDrop != nil {
		q.opts.OnDrop(batch)
	}
}

// countByBookmaker summarizes a batch for the saved-batch log line.
func countByBookmaker(batch []OddsRecord) map[string]int {
	counts := make(map[string]int)
	for _, r := range batch {
		counts[r.BookmakerName]++
	}
	return counts
}

// truncateError keeps gateway HTML bodies from flooding the log.
func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > 300 {
		return msg[:300] + "..."
	}
	return msg
}

// sleepCtx waits for d, returning false if ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
