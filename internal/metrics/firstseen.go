package metrics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultFirstSeenBuffer is the channel size of a FirstSeen recorder.
	DefaultFirstSeenBuffer = 256

	// MaxFirstSeenEntries bounds the distinct keys a recorder keeps. Keys
	// beyond it are counted as dropped.
	MaxFirstSeenEntries = 1000
)

// FirstSeenEntry is one distinct key observed by a FirstSeen recorder.
type FirstSeenEntry struct {
	Key       string    `json:"key"`
	Detail    string    `json:"detail"`
	Count     int64     `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

type observation struct {
	key    string
	detail string
	at     time.Time
}

// FirstSeen collects distinct diagnostic keys (unmapped market codes, unknown
// team names) off the hot path. Record never blocks; when the buffer is full
// or the key table is at MaxFirstSeenEntries the observation is counted as
// dropped.
type FirstSeen struct {
	name string
	ch   chan observation

	mu      sync.RWMutex
	entries map[string]*FirstSeenEntry
	limit   int

	dropped atomic.Int64
}

// NewFirstSeen creates a recorder. name labels its log lines.
func NewFirstSeen(name string, buffer int) *FirstSeen {
	if buffer <= 0 {
		buffer = DefaultFirstSeenBuffer
	}
	return &FirstSeen{
		name:    name,
		ch:      make(chan observation, buffer),
		entries: make(map[string]*FirstSeenEntry),
		limit:   MaxFirstSeenEntries,
	}
}

// Record queues an observation.
func (f *FirstSeen) Record(key, detail string) {
	select {
	case f.ch <- observation{key: key, detail: detail, at: time.Now()}:
	default:
		f.dropped.Add(1)
	}
}

// Run consumes observations and logs a summary every reportEvery until ctx
// is done. A non-positive reportEvery disables the summary.
func (f *FirstSeen) Run(ctx context.Context, reportEvery time.Duration) {
	var tick <-chan time.Time
	if reportEvery > 0 {
		ticker := time.NewTicker(reportEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case obs := <-f.ch:
			f.apply(obs)
		case <-tick:
			f.report()
		}
	}
}

func (f *FirstSeen) apply(obs observation) {
	f.mu.Lock()
	entry, exists := f.entries[obs.key]
	if !exists && len(f.entries) >= f.limit {
		f.mu.Unlock()
		f.dropped.Add(1)
		return
	}
	if !exists {
		entry = &FirstSeenEntry{Key: obs.key, Detail: obs.detail, FirstSeen: obs.at}
		f.entries[obs.key] = entry
	}
	entry.Count++
	entry.LastSeen = obs.at
	f.mu.Unlock()

	if !exists {
		slog.Warn("first_seen", "kind", f.name, "key", obs.key, "detail", obs.detail)
	}
}

func (f *FirstSeen) report() {
	entries := f.Entries()
	if len(entries) == 0 {
		return
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	slog.Info("first_seen_report", "kind", f.name, "distinct", len(keys), "keys", keys, "dropped", f.dropped.Load())
}

// Entries returns all observed keys, oldest first.
func (f *FirstSeen) Entries() []FirstSeenEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]FirstSeenEntry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstSeen.Equal(out[j].FirstSeen) {
			return out[i].Key < out[j].Key
		}
		return out[i].FirstSeen.Before(out[j].FirstSeen)
	})
	return out
}

// Len returns the number of distinct keys.
func (f *FirstSeen) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Dropped returns how many observations were lost to a full buffer or a full
// key table.
func (f *FirstSeen) Dropped() int64 {
	return f.dropped.Load()
}

