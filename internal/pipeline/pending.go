package pipeline

import (
	"sync"

	"github.com/oddsbridge/engine/internal/ingest"
)

// DefaultPendingSize bounds the pending outcome buffer.
const DefaultPendingSize = 500

// PendingBuffer holds outcomes that arrived before their event definition.
type PendingBuffer struct {
	capacity int

	mu      sync.Mutex
	items   []ingest.Outcome
	dropped int64
}

// NewPendingBuffer creates a buffer. A non-positive capacity selects the
// default.
func NewPendingBuffer(capacity int) *PendingBuffer {
	if capacity <= 0 {
		capacity = DefaultPendingSize
	}
	return &PendingBuffer{capacity: capacity}
}

// Add buffers o, or drops it and returns false when the buffer is full.
func (b *PendingBuffer) Add(o ingest.Outcome) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) >= b.capacity {
		b.dropped++
		return false
	}
	b.items = append(b.items, o)
	return true
}

// Drain removes and returns everything buffered, oldest first.
func (b *PendingBuffer) Drain() []ingest.Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.items
	b.items = nil
	return items
}

// Len returns the number of buffered outcomes.
func (b *PendingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Dropped returns how many outcomes overflowed the buffer.
func (b *PendingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
