package detector

import (
	"context"
	"log/slog"
	"time"
)

// Sweep removes fingerprints older than twice the TTL and returns how many
// were removed.
func (d *ChangeDetector) Sweep() int {
	cutoff := d.now().Add(-2 * d.ttl)

	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for key, fp := range d.last {
		if fp.seen.Before(cutoff) {
			delete(d.last, key)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every TTL until ctx is done.
func (d *ChangeDetector) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(d.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := d.Sweep(); removed > 0 {
				slog.Debug("change_cache_swept", "removed", removed, "remaining", d.Len())
			}
		}
	}
}
