// Package pipeline turns decoded feed batches into canonical odds records and
// hands the changed ones to the write queue.
package pipeline

import (
	"log/slog"
	"time"

	"github.com/oddsbridge/engine/internal/detector"
	"github.com/oddsbridge/engine/internal/ingest"
	"github.com/oddsbridge/engine/internal/markets"
	"github.com/oddsbridge/engine/internal/matching"
	"github.com/oddsbridge/engine/internal/store"
)

// Drop reasons reported to the Recorder.
const (
	DropRejectedEvent   = "rejected_event"
	DropUnknownProvider = "unknown_provider"
	DropUnmappedMarket  = "unmapped_market"
	DropInvalidOdds     = "invalid_odds"
	DropBufferFull      = "buffer_full"
)

// rejectedCacheSize bounds the ids remembered as filtered out.
const rejectedCacheSize = 5000

// Enqueuer accepts records for persistence.
type Enqueuer interface {
	Enqueue(records []store.OddsRecord)
}

// Recorder receives pipeline counters. Implementations must not block.
type Recorder interface {
	RecordEvents(accepted, rejected int)
	RecordMapped(n int)
	RecordDrop(reason string)
	RecordQueued(queued, suppressed int)
}

// Options configures a Pipeline.
type Options struct {
	SportID         int
	DefaultLeague   string
	EventCacheSize  int
	EventCacheEvict int
	PendingSize     int
	Leagues         *LeagueFilter
}

// Deps are the collaborators of a Pipeline. Metrics and Teams may be nil.
type Deps struct {
	Mapper  *markets.Mapper
	Keys    *matching.KeyBuilder
	Changes *detector.ChangeDetector
	Queue   Enqueuer
	Metrics Recorder

	// Teams receives normalized team names missing from the alias table.
	Teams markets.Recorder
}

// Stats is a point-in-time view of pipeline state.
type Stats struct {
	EventsCached   int   `json:"events_cached"`
	EventsEvicted  int64 `json:"events_evicted"`
	RejectedEvents int   `json:"rejected_events"`
	Pending        int   `json:"pending"`
	PendingDropped int64 `json:"pending_dropped"`
	ChangeKeys     int   `json:"change_keys"`
}

// Pipeline owns the event cache, the pending buffer and the change filter.
// Handlers are called from the feed read goroutine one frame at a time; the
// state they touch is also read by status goroutines and is lock-guarded.
type Pipeline struct {
	opts Options
	deps Deps
	now  func() time.Time

	events   *EventCache
	rejected *EventCache
	pending  *PendingBuffer
}

// New creates a Pipeline.
func New(opts Options, deps Deps) *Pipeline {
	if opts.Leagues == nil {
		opts.Leagues = NewLeagueFilter(DefaultLeaguePatterns)
	}
	if opts.DefaultLeague == "" {
		opts.DefaultLeague = "Serie A"
	}

	return &Pipeline{
		opts:     opts,
		deps:     deps,
		now:      time.Now,
		events:   NewEventCache(opts.EventCacheSize, opts.EventCacheEvict),
		rejected: NewEventCache(rejectedCacheSize, rejectedCacheSize/4),
		pending:  NewPendingBuffer(opts.PendingSize),
	}
}

// HandleEvents caches accepted event definitions and replays the pending
// buffer when at least one new event was added.
func (p *Pipeline) HandleEvents(events []ingest.EventDefinition) {
	added, accepted, rejected := 0, 0, 0

	for _, ev := range events {
		meta := EventMetadata{
			Name:         ev.Name,
			RawStartTime: ev.RawStartTime,
			League:       ev.League,
			ProviderID:   ev.ProviderID,
		}

		if !p.opts.Leagues.Accept(ev.League) {
			p.rejected.Upsert(ev.EventID, meta)
			p.events.Delete(ev.EventID)
			rejected++
			continue
		}

		p.rejected.Delete(ev.EventID)
		if p.events.Upsert(ev.EventID, meta) {
			added++
			p.reportTeams(ev.Name)
		}
		accepted++
	}

	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordEvents(accepted, rejected)
	}
	if accepted > 0 {
		slog.Debug("events_cached",
			"accepted", accepted,
			"added", added,
			"rejected", rejected,
			"cache_size", p.events.Len(),
		)
	}

	if added > 0 && p.pending.Len() > 0 {
		p.replayPending()
	}
}

// HandleOutcomes maps outcomes to records and saves them. Outcomes for
// unknown events are buffered until their definition arrives.
func (p *Pipeline) HandleOutcomes(outcomes []ingest.Outcome) {
	records := p.resolveAll(outcomes)
	if len(records) > 0 {
		p.SaveRecords(records)
	}
}

// SaveRecords deduplicates records by conflict key (first position, last
// value), drops unchanged odds, and enqueues the rest. It returns the number
// of records enqueued.
func (p *Pipeline) SaveRecords(records []store.OddsRecord) int {
	deduped := store.DedupeLatest(records)

	changed := make([]store.OddsRecord, 0, len(deduped))
	for _, r := range deduped {
		if p.deps.Changes == nil || p.deps.Changes.HasChanged(r) {
			changed = append(changed, r)
		}
	}
	suppressed := len(deduped) - len(changed)

	if len(changed) > 0 {
		p.deps.Queue.Enqueue(changed)
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordQueued(len(changed), suppressed)
	}

	slog.Debug("records_saved", "received", len(records), "queued", len(changed), "suppressed", suppressed)
	return len(changed)
}

// Stats returns cache and buffer sizes.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		EventsCached:   p.events.Len(),
		EventsEvicted:  p.events.Evicted(),
		RejectedEvents: p.rejected.Len(),
		Pending:        p.pending.Len(),
		PendingDropped: p.pending.Dropped(),
	}
	if p.deps.Changes != nil {
		s.ChangeKeys = p.deps.Changes.Len()
	}
	return s
}

// replayPending re-attempts every buffered outcome.
func (p *Pipeline) replayPending() {
	items := p.pending.Drain()
	records := p.resolveAll(items)

	slog.Debug("pending_replayed", "outcomes", len(items), "resolved", len(records), "still_pending", p.pending.Len())

	if len(records) > 0 {
		p.SaveRecords(records)
	}
}

func (p *Pipeline) resolveAll(outcomes []ingest.Outcome) []store.OddsRecord {
	records := make([]store.OddsRecord, 0, len(outcomes))
	mapped := 0

	for _, o := range outcomes {
		rec, reason, ok := p.resolve(o)
		if !ok {
			if reason != "" && p.deps.Metrics != nil {
				p.deps.Metrics.RecordDrop(reason)
			}
			continue
		}
		records = append(records, rec)
		mapped++
	}

	if mapped > 0 && p.deps.Metrics != nil {
		p.deps.Metrics.RecordMapped(mapped)
	}
	return records
}

// resolve builds a record for o. A false result with an empty reason means
// the outcome was buffered.
func (p *Pipeline) resolve(o ingest.Outcome) (store.OddsRecord, string, bool) {
	if p.rejected.Contains(o.EventID) {
		return store.OddsRecord{}, DropRejectedEvent, false
	}

	meta, ok := p.events.Get(o.EventID)
	if !ok {
		if !p.pending.Add(o) {
			return store.OddsRecord{}, DropBufferFull, false
		}
		return store.OddsRecord{}, "", false
	}

	// The info string names the provider only when the event carries none;
	// a known provider is never overridden.
	providerID := meta.ProviderID
	if providerID == 0 {
		detected, ok := markets.DetectProvider(o.Info)
		if !ok {
			return store.OddsRecord{}, DropUnknownProvider, false
		}
		providerID = detected
	}
	if !p.deps.Mapper.Supports(providerID) {
		return store.OddsRecord{}, DropUnknownProvider, false
	}

	mapping, ok := p.deps.Mapper.Map(providerID, o.Info)
	if !ok {
		return store.OddsRecord{}, DropUnmappedMarket, false
	}

	if !store.ValidOdds(o.Price) {
		return store.OddsRecord{}, DropInvalidOdds, false
	}

	return p.buildRecord(o, meta, providerID, mapping), "", true
}

func (p *Pipeline) buildRecord(o ingest.Outcome, meta EventMetadata, providerID int, mapping markets.Mapping) store.OddsRecord {
	league := meta.League
	if league == "" {
		league = p.opts.DefaultLeague
	}

	rec := store.OddsRecord{
		EventID:       o.EventID,
		EventName:     meta.Name,
		DisplayName:   matching.DisplayName(meta.Name),
		League:        league,
		SportID:       p.opts.SportID,
		BookmakerID:   providerID,
		BookmakerName: store.BookmakerName(providerID),
		MarketType:    mapping.MarketType(),
		Selection:     mapping.Selection,
		Odds:          o.Price,
		UpdatedAt:     p.now().UTC(),
	}

	if meta.RawStartTime != "" {
		start := meta.RawStartTime
		rec.RawStartTime = &start
	}
	if key, ok := p.deps.Keys.MatchKey(meta.Name, meta.RawStartTime); ok {
		rec.MatchKey = &key
	}
	return rec
}

// reportTeams flags team names the alias table does not know.
func (p *Pipeline) reportTeams(name string) {
	if p.deps.Teams == nil {
		return
	}
	home, away, ok := matching.ParseEventName(name)
	if !ok {
		return
	}

	normalizer := p.deps.Keys.Normalizer()
	for _, raw := range []string{home, away} {
		n := normalizer.Normalize(raw)
		if n != "" && !normalizer.Known(n) {
			p.deps.Teams.Record(n, raw)
		}
	}
}
