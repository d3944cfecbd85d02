package matching

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeBucket is the start-time rounding granularity.
const DefaultTimeBucket = 30 * time.Minute

// keyTimeFormat is ISO 8601 truncated to minutes.
const keyTimeFormat = "2006-01-02T15:04"

// minPlausibleYear rejects placeholder timestamps such as the unix epoch.
const minPlausibleYear = 2020

var startTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// KeyBuilder builds match keys of the form home_away_roundedTime.
type KeyBuilder struct {
	normalizer *Normalizer
	bucket     time.Duration
	now        func() time.Time
}

// NewKeyBuilder creates a builder. A non-positive bucket selects
// DefaultTimeBucket.
func NewKeyBuilder(normalizer *Normalizer, bucket time.Duration) *KeyBuilder {
	if bucket <= 0 {
		bucket = DefaultTimeBucket
	}
	return &KeyBuilder{
		normalizer: normalizer,
		bucket:     bucket,
		now:        time.Now,
	}
}

// Normalizer returns the team normalizer used for keys.
func (b *KeyBuilder) Normalizer() *Normalizer {
	return b.normalizer
}

// Teams returns the normalized sides of an event name.
func (b *KeyBuilder) Teams(name string) (home, away string, ok bool) {
	rawHome, rawAway, ok := ParseEventName(name)
	if !ok {
		return "", "", false
	}
	home = b.normalizer.Normalize(rawHome)
	away = b.normalizer.Normalize(rawAway)
	if home == "" || away == "" {
		return "", "", false
	}
	return home, away, true
}

// MatchKey derives the cross-provider key. It fails only when the name cannot
// be split into two non-empty normalized sides; a bad start time falls back
// to the current bucket.
func (b *KeyBuilder) MatchKey(name, rawStart string) (string, bool) {
	home, away, ok := b.Teams(name)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s_%s_%s", home, away, b.RoundTime(rawStart)), true
}

// RoundTime floors a raw start time to the bucket. Empty, unparseable, or
// pre-2020 values use the current time instead.
func (b *KeyBuilder) RoundTime(raw string) string {
	t, ok := parseStartTime(raw)
	if !ok || t.Year() < minPlausibleYear {
		t = b.now()
	}
	return t.UTC().Truncate(b.bucket).Format(keyTimeFormat)
}

func parseStartTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		if v <= 0 {
			return time.Time{}, false
		}
		if v >= 1e12 {
			return time.UnixMilli(int64(v)).UTC(), true
		}
		return time.Unix(int64(v), 0).UTC(), true
	}

	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
