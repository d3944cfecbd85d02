// Package metrics provides real-time metrics tracking for the system.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/oddsbridge/engine/internal/ingest"
	"github.com/oddsbridge/engine/internal/store"
)

const (
	// recentCapacity is how many written records the tracker keeps for display
	recentCapacity = 100

	// coverageRetention drops matches with no writes for this long
	coverageRetention = 60 * time.Minute

	// rateWindow is the window of the write rate
	rateWindow = 60 * time.Second
)

// Gauge names registered by the engine.
const (
	GaugeEventsCache = "events_cache"
	GaugeWriteQueue  = "write_queue"
	GaugePending     = "pending_outcomes"
	GaugeChangeKeys  = "change_keys"
)

// MatchCoverage tracks which bookmakers have written odds for one match key.
type MatchCoverage struct {
	MatchKey    string           `json:"match_key"`
	DisplayName string           `json:"display_name"`
	Bookmakers  map[string]int64 `json:"bookmakers"`
	Records     int64            `json:"records"`
	LastUpdate  time.Time        `json:"last_update"`
}

// RecentRecord is a written record kept for the live view.
type RecentRecord struct {
	WrittenAt     time.Time `json:"written_at"`
	DisplayName   string    `json:"display_name"`
	BookmakerName string    `json:"bookmaker_name"`
	MarketType    string    `json:"market_type"`
	Selection     string    `json:"selection"`
	Odds          float64   `json:"odds"`
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	FramesByCommand   map[string]int64 `json:"frames_by_command"`
	SkippedItems      int64            `json:"skipped_items"`
	EventsAccepted    int64            `json:"events_accepted"`
	EventsRejected    int64            `json:"events_rejected"`
	OutcomesMapped    int64            `json:"outcomes_mapped"`
	DropsByReason     map[string]int64 `json:"drops_by_reason"`
	RecordsQueued     int64            `json:"records_queued"`
	RecordsSuppressed int64            `json:"records_suppressed"`
	RecordsWritten    int64            `json:"records_written"`
	RecordsDropped    int64            `json:"records_dropped"`
	WriteRate         float64          `json:"write_rate"` // records per second
	Coverage          []MatchCoverage  `json:"coverage"`
	Recent            []RecentRecord   `json:"recent"`
	Gauges            map[string]int   `json:"gauges"`
	Uptime            time.Duration    `json:"uptime"`
	FeedStatus        string           `json:"feed_status"`
	Reconnects        int64            `json:"reconnects"`
	LastFrame         time.Time        `json:"last_frame"`
}

// MetricsTracker provides thread-safe metrics tracking.
type MetricsTracker struct {
	mu                sync.RWMutex
	framesByCommand   map[string]int64
	skippedItems      int64
	eventsAccepted    int64
	eventsRejected    int64
	outcomesMapped    int64
	dropsByReason     map[string]int64
	recordsQueued     int64
	recordsSuppressed int64
	recordsWritten    int64
	recordsDropped    int64
	writeTimestamps   []time.Time // for rate calculation
	coverage          map[string]*MatchCoverage
	recent            []RecentRecord
	gauges            map[string]func() int
	startTime         time.Time
	feedStatus        string
	reconnects        int64
	lastFrame         time.Time
}

// NewMetricsTracker creates a new MetricsTracker.
func NewMetricsTracker() *MetricsTracker {
	return &MetricsTracker{
		framesByCommand: make(map[string]int64),
		dropsByReason:   make(map[string]int64),
		writeTimestamps: make([]time.Time, 0, 1000),
		coverage:        make(map[string]*MatchCoverage),
		recent:          make([]RecentRecord, 0, recentCapacity),
		gauges:          make(map[string]func() int),
		startTime:       time.Now(),
		feedStatus:      string(ingest.FeedDisconnected),
	}
}

// SetFeedStatus sets the feed connection status.
func (m *MetricsTracker) SetFeedStatus(status ingest.FeedStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedStatus = string(status)
}

// RecordFrame counts a received frame by command.
func (m *MetricsTracker) RecordFrame(command string, skipped int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if command == "" {
		command = "unknown"
	}
	m.framesByCommand[command]++
	m.skippedItems += int64(skipped)
	m.lastFrame = time.Now()
}

// RecordReconnect counts a reconnect attempt.
func (m *MetricsTracker) RecordReconnect(attempt int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects++
}

// RecordEvents counts event definitions by filter outcome.
func (m *MetricsTracker) RecordEvents(accepted, rejected int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsAccepted += int64(accepted)
	m.eventsRejected += int64(rejected)
}

// RecordMapped counts outcomes that became records.
func (m *MetricsTracker) RecordMapped(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomesMapped += int64(n)
}

// RecordDrop counts a dropped outcome by reason.
func (m *MetricsTracker) RecordDrop(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropsByReason[reason]++
}

// RecordQueued counts records handed to the write queue and those suppressed
// as unchanged.
func (m *MetricsTracker) RecordQueued(queued, suppressed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordsQueued += int64(queued)
	m.recordsSuppressed += int64(suppressed)
}

// RecordWritten updates counters, match coverage and the recent list from a
// persisted batch.
func (m *MetricsTracker) RecordWritten(batch []store.OddsRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.recordsWritten += int64(len(batch))

	for _, r := range batch {
		m.writeTimestamps = append(m.writeTimestamps, now)

		if r.MatchKey != nil {
			cov, exists := m.coverage[*r.MatchKey]
			if !exists {
				cov = &MatchCoverage{
					MatchKey:    *r.MatchKey,
					DisplayName: r.DisplayName,
					Bookmakers:  make(map[string]int64),
				}
				m.coverage[*r.MatchKey] = cov
			}
			cov.Bookmakers[r.BookmakerName]++
			cov.Records++
			cov.LastUpdate = now
		}

		m.recent = append(m.recent, RecentRecord{
			WrittenAt:     now,
			DisplayName:   r.DisplayName,
			BookmakerName: r.BookmakerName,
			MarketType:    r.MarketType,
			Selection:     r.Selection,
			Odds:          r.Odds,
		})
	}

	if over := len(m.recent) - recentCapacity; over > 0 {
		m.recent = append(m.recent[:0], m.recent[over:]...)
	}

	// Keep only the rate window of timestamps
	cutoff := now.Add(-rateWindow)
	validIdx := 0
	for i, ts := range m.writeTimestamps {
		if ts.After(cutoff) {
			validIdx = i
			break
		}
	}
	if validIdx > 0 {
		m.writeTimestamps = m.writeTimestamps[validIdx:]
	}
}

// RecordDropped counts records abandoned by the write queue.
func (m *MetricsTracker) RecordDropped(batch []store.OddsRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordsDropped += int64(len(batch))
}

// RegisterGauge adds a named value read on every snapshot. fn must not call
// back into the tracker.
func (m *MetricsTracker) RegisterGauge(name string, fn func() int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = fn
}

// Gauge reads one registered gauge.
func (m *MetricsTracker) Gauge(name string) (int, bool) {
	m.mu.RLock()
	fn, ok := m.gauges[name]
	m.mu.RUnlock()

	if !ok {
		return 0, false
	}
	return fn(), true
}

// FeedStatus returns the current feed status.
func (m *MetricsTracker) FeedStatus() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.feedStatus
}

// Snapshot returns a point-in-time snapshot of metrics.
func (m *MetricsTracker) Snapshot() MetricsSnapshot {
	m.mu.RLock()

	// Calculate write rate (records per second over the window)
	writeRate := 0.0
	if len(m.writeTimestamps) > 0 {
		duration := time.Since(m.writeTimestamps[0]).Seconds()
		if duration < 1 {
			duration = 1
		}
		writeRate = float64(len(m.writeTimestamps)) / duration
	}

	coverage := make([]MatchCoverage, 0, len(m.coverage))
	for _, c := range m.coverage {
		cp := *c
		cp.Bookmakers = copyCounts(c.Bookmakers)
		coverage = append(coverage, cp)
	}
	sort.Slice(coverage, func(i, j int) bool {
		return coverage[i].LastUpdate.After(coverage[j].LastUpdate)
	})

	snap := MetricsSnapshot{
		FramesByCommand:   copyCounts(m.framesByCommand),
		SkippedItems:      m.skippedItems,
		EventsAccepted:    m.eventsAccepted,
		EventsRejected:    m.eventsRejected,
		OutcomesMapped:    m.outcomesMapped,
		DropsByReason:     copyCounts(m.dropsByReason),
		RecordsQueued:     m.recordsQueued,
		RecordsSuppressed: m.recordsSuppressed,
		RecordsWritten:    m.recordsWritten,
		RecordsDropped:    m.recordsDropped,
		WriteRate:         writeRate,
		Coverage:          coverage,
		Recent:            append([]RecentRecord(nil), m.recent...),
		Uptime:            time.Since(m.startTime),
		FeedStatus:        m.feedStatus,
		Reconnects:        m.reconnects,
		LastFrame:         m.lastFrame,
	}

	gauges := make(map[string]func() int, len(m.gauges))
	for k, fn := range m.gauges {
		gauges[k] = fn
	}
	m.mu.RUnlock()

	// Gauges read other components' locks; call them outside ours.
	snap.Gauges = make(map[string]int, len(gauges))
	for k, fn := range gauges {
		snap.Gauges[k] = fn()
	}

	return snap
}

// Cleanup removes stale coverage entries from the tracker.
func (m *MetricsTracker) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-coverageRetention)
	for key, c := range m.coverage {
		if c.LastUpdate.Before(cutoff) {
			delete(m.coverage, key)
		}
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
