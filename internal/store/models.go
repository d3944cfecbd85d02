// Package store provides the canonical odds record and its persistence path.
package store

import (
	"fmt"
	"time"
)

// Known bookmaker ids on the feed.
const (
	BookmakerOneXBet = 21
	BookmakerSisal   = 103
)

// OddsRecord is the unit of persistence. One row exists per Key().
type OddsRecord struct {
	// EventID is the provider-internal event identity
	EventID string `json:"event_id"`

	// EventName is the raw event name from the feed
	EventName string `json:"event_name"`

	// RawStartTime is the untrusted feed start time, used for matching only
	RawStartTime *string `json:"raw_start_time"`

	// DisplayName is the cleaned "home - away" label for UIs
	DisplayName string `json:"display_name"`

	League        string `json:"league"`
	SportID       int    `json:"sport_id"`
	BookmakerID   int    `json:"bookmaker_id"`
	BookmakerName string `json:"bookmaker_name"`

	// MarketType is FAMILY_SCOPE_KIND, e.g. CORNERS_TOTAL_OU
	MarketType string `json:"market_type"`

	// Selection is 1, 2, X, or "Over <line>" / "Under <line>"
	Selection string `json:"selection"`

	// Odds is the decimal price, 1 < odds < 1000
	Odds float64 `json:"odds"`

	// MatchKey is the cross-provider identity, nil when the name is unparseable
	MatchKey *string `json:"match_key"`

	UpdatedAt time.Time `json:"updated_at"`
}

// RecordKey is the natural conflict key of an OddsRecord.
type RecordKey struct {
	EventID     string
	BookmakerID int
	MarketType  string
	Selection   string
}

// String renders the key for logs and key-value stores.
func (k RecordKey) String() string {
	return fmt.Sprintf("%s:%d:%s:%s", k.EventID, k.BookmakerID, k.MarketType, k.Selection)
}

// Key returns the conflict key (event_id, bookmaker_id, market_type, selection).
func (r OddsRecord) Key() RecordKey {
	return RecordKey{
		EventID:     r.EventID,
		BookmakerID: r.BookmakerID,
		MarketType:  r.MarketType,
		Selection:   r.Selection,
	}
}

// ValidOdds reports whether a price satisfies 1 < odds < 1000.
func ValidOdds(odds float64) bool {
	return odds > 1 && odds < 1000
}

// BookmakerName returns the display name for a bookmaker id.
func BookmakerName(id int) string {
	switch id {
	case BookmakerOneXBet:
		return "1xbet"
	case BookmakerSisal:
		return "Sisal"
	default:
		return fmt.Sprintf("Bookmaker_%d", id)
	}
}

// DedupeLatest collapses records sharing a conflict key. The surviving record
// keeps the position of the first occurrence and the value of the last.
func DedupeLatest(records []OddsRecord) []OddsRecord {
	if len(records) < 2 {
		return records
	}

	index := make(map[RecordKey]int, len(records))
	out := make([]OddsRecord, 0, len(records))
	for _, r := range records {
		key := r.Key()
		if i, ok := index[key]; ok {
			out[i] = r
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	return out
}

// nullable returns the pointed-to string or nil for database drivers.
func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
