package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeUpserter records calls and tracks how many run at once.
type fakeUpserter struct {
	mu       sync.Mutex
	batches  [][]OddsRecord
	errs     []error
	calls    int
	inFlight int32
	maxSeen  int32
	delay    time.Duration
}

func (f *fakeUpserter) UpsertOdds(ctx context.Context, records []OddsRecord) error {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxSeen)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxSeen, max, n) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	batch := make([]OddsRecord, len(records))
	copy(batch, records)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeUpserter) Close() error { return nil }

func (f *fakeUpserter) written() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, b := range f.batches {
		total += len(b)
	}
	return total
}

func (f *fakeUpserter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testRecord(eventID string, selection string, odds float64) OddsRecord {
	return OddsRecord{
		EventID:       eventID,
		EventName:     "Napoli - Juventus",
		DisplayName:   "Napoli - Juventus",
		League:        "Serie A",
		SportID:       7,
		BookmakerID:   BookmakerOneXBet,
		BookmakerName: "1xbet",
		MarketType:    "CORNERS_MATCH_H2H",
		Selection:     selection,
		Odds:          odds,
		UpdatedAt:     time.Now(),
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWriteQueueSingleFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	up := &fakeUpserter{delay: 2 * time.Millisecond}
	q := NewWriteQueue(ctx, up, QueueOptions{
		BatchSize:     5,
		BatchDelay:    time.Millisecond,
		RetrySchedule: []time.Duration{},
	})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				q.Enqueue([]OddsRecord{testRecord(fmt.Sprintf("ev-%d-%d", g, i), "1", 1.9)})
			}
		}(g)
	}
	wg.Wait()

	waitFor(t, func() bool { return up.written() == 200 })

	if got := atomic.LoadInt32(&up.maxSeen); got != 1 {
		t.Errorf("expected at most one concurrent upsert, saw %d", got)
	}

	waitFor(t, func() bool { return !q.Stats().Draining })
	if q.Len() != 0 {
		t.Errorf("expected empty queue, got %d", q.Len())
	}
}

func TestWriteQueueBatchesBySize(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	up := &fakeUpserter{}
	q := NewWriteQueue(ctx, up, QueueOptions{BatchSize: 50, RetrySchedule: []time.Duration{}})

	records := make([]OddsRecord, 0, 120)
	for i := 0; i < 120; i++ {
		records = append(records, testRecord(fmt.Sprintf("ev-%d", i), "1", 2.0))
	}
	q.Enqueue(records)

	waitFor(t, func() bool { return up.written() == 120 })

	up.mu.Lock()
	defer up.mu.Unlock()
	if len(up.batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(up.batches))
	}
	if len(up.batches[0]) != 50 || len(up.batches[2]) != 20 {
		t.Errorf("unexpected batch sizes: %d, %d, %d", len(up.batches[0]), len(up.batches[1]), len(up.batches[2]))
	}
}

func TestWriteQueueRetriesGatewayPage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gateway := errors.New("unexpected status 502: <!DOCTYPE html><html><head><title>502 Bad Gateway</title></head></html>")
	up := &fakeUpserter{errs: []error{gateway, gateway, gateway, gateway}}

	var dropped atomic.Int32
	q := NewWriteQueue(ctx, up, QueueOptions{
		BatchSize:     10,
		RetrySchedule: []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond},
		OnDrop: func(batch []OddsRecord) {
			dropped.Add(int32(len(batch)))
		},
	})

	q.Enqueue([]OddsRecord{testRecord("ev-1", "1", 1.5)})

	waitFor(t, func() bool { return dropped.Load() == 1 })

	if calls := up.callCount(); calls != 4 {
		t.Errorf("expected 1 attempt + 3 retries, got %d calls", calls)
	}
	stats := q.Stats()
	if stats.BatchesDropped != 1 || stats.RecordsDropped != 1 {
		t.Errorf("unexpected drop stats: %+v", stats)
	}
	if stats.Retries != 3 {
		t.Errorf("expected 3 retries, got %d", stats.Retries)
	}
}

func TestWriteQueueRecoversAfterTransientError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	up := &fakeUpserter{errs: []error{errors.New("read tcp: connection reset by peer")}}

	var written atomic.Int32
	q := NewWriteQueue(ctx, up, QueueOptions{
		RetrySchedule: []time.Duration{time.Millisecond},
		OnWritten: func(batch []OddsRecord) {
			written.Add(int32(len(batch)))
		},
	})

	q.Enqueue([]OddsRecord{testRecord("ev-1", "1", 1.5), testRecord("ev-2", "X", 3.1)})

	waitFor(t, func() bool { return written.Load() == 2 })
	if calls := up.callCount(); calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestWriteQueuePermanentErrorNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	up := &fakeUpserter{errs: []error{errors.New(`pq: column "foo" does not exist`)}}

	var dropped atomic.Int32
	q := NewWriteQueue(ctx, up, QueueOptions{
		RetrySchedule: []time.Duration{time.Millisecond, time.Millisecond},
		OnDrop: func(batch []OddsRecord) {
			dropped.Add(1)
		},
	})

	q.Enqueue([]OddsRecord{testRecord("ev-1", "1", 1.5)})
	waitFor(t, func() bool { return dropped.Load() == 1 })

	if calls := up.callCount(); calls != 1 {
		t.Errorf("permanent error should not be retried, got %d calls", calls)
	}

	// The queue keeps working after a dropped batch.
	q.Enqueue([]OddsRecord{testRecord("ev-2", "2", 4.2)})
	waitFor(t, func() bool { return up.written() == 1 })
}

func TestWriteQueueDedupesWithinBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	up := &fakeUpserter{delay: 20 * time.Millisecond}
	q := NewWriteQueue(ctx, up, QueueOptions{BatchSize: 10, RetrySchedule: []time.Duration{}})

	// Hold the drain inside the first upsert so the next two land in one batch.
	q.Enqueue([]OddsRecord{testRecord("ev-0", "1", 1.5)})
	waitFor(t, func() bool { return q.Len() == 0 })
	q.Enqueue([]OddsRecord{testRecord("ev-1", "1", 1.5)})
	q.Enqueue([]OddsRecord{testRecord("ev-1", "1", 1.7)})

	waitFor(t, func() bool { return up.callCount() == 2 })

	up.mu.Lock()
	defer up.mu.Unlock()
	last := up.batches[len(up.batches)-1]
	if len(last) != 1 || last[0].Odds != 1.7 {
		t.Errorf("expected one deduplicated record with the latest odds, got %+v", last)
	}
}

func TestWriteQueueStopAbandonsPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	up := &fakeUpserter{}
	q := NewWriteQueue(ctx, up, QueueOptions{BatchSize: 1, BatchDelay: time.Hour, RetrySchedule: []time.Duration{}})

	q.Enqueue([]OddsRecord{
		testRecord("ev-1", "1", 1.5),
		testRecord("ev-2", "1", 1.5),
		testRecord("ev-3", "1", 1.5),
	})
	waitFor(t, func() bool { return up.written() == 1 })

	cancel()
	q.Stop()

	if up.written() != 1 {
		t.Errorf("expected pending records to be abandoned, %d written", up.written())
	}
	if q.Len() != 0 {
		t.Errorf("expected queue cleared after stop, got %d", q.Len())
	}
}

func TestWriteQueueAlwaysPausesBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, delay := range []time.Duration{0, -time.Second} {
		q := NewWriteQueue(ctx, &fakeUpserter{}, QueueOptions{BatchDelay: delay})
		if q.opts.BatchDelay != DefaultBatchDelay {
			t.Errorf("BatchDelay %s: expected default %s, got %s", delay, DefaultBatchDelay, q.opts.BatchDelay)
		}
	}
}
