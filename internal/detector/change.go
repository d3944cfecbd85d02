// Package detector suppresses writes of odds that have not moved.
package detector

import (
	"sync"
	"time"

	"github.com/oddsbridge/engine/internal/store"
)

// DefaultTTL is how long an unchanged price stays suppressed.
const DefaultTTL = 5 * time.Minute

type fingerprint struct {
	odds float64
	seen time.Time
}

// ChangeDetector remembers the last written odds per record key. It is
// advisory: a miss only costs a redundant upsert.
type ChangeDetector struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	last map[store.RecordKey]fingerprint
}

// NewChangeDetector creates a detector. A non-positive ttl selects DefaultTTL.
func NewChangeDetector(ttl time.Duration) *ChangeDetector {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ChangeDetector{
		ttl:  ttl,
		now:  time.Now,
		last: make(map[store.RecordKey]fingerprint),
	}
}

// HasChanged reports whether rec should be written. Identical odds for the
// same key within the TTL return false; anything else is stored and returns
// true.
func (d *ChangeDetector) HasChanged(rec store.OddsRecord) bool {
	key := rec.Key()
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	prev, exists := d.last[key]
	if exists && prev.odds == rec.Odds && now.Sub(prev.seen) < d.ttl {
		return false
	}

	d.last[key] = fingerprint{odds: rec.Odds, seen: now}
	return true
}

// Forget drops the fingerprints of records that never reached storage so the
// next update for them is written.
func (d *ChangeDetector) Forget(records []store.OddsRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, r := range records {
		key := r.Key()
		if fp, ok := d.last[key]; ok && fp.odds == r.Odds {
			delete(d.last, key)
		}
	}
}

// Len returns the number of tracked keys.
func (d *ChangeDetector) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.last)
}
