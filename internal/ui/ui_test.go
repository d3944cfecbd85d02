package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/oddsbridge/engine/internal/metrics"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{12 * time.Minute, "12m"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatTimeAgo(t *testing.T) {
	if got := formatTimeAgo(time.Time{}); got != "never" {
		t.Errorf("zero time = %q", got)
	}
	if got := formatTimeAgo(time.Now().Add(-3 * time.Hour)); got != "3h ago" {
		t.Errorf("3h = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Manchester United - Juventus", 12); got != "Mancheste..." {
		t.Errorf("got %q", got)
	}
	if got := truncate("Ювентус", 10); got != "Ювентус" {
		t.Errorf("got %q", got)
	}
}

func TestBookmakerLabel(t *testing.T) {
	got := bookmakerLabel(map[string]int64{"Sisal": 3, "1xbet": 1})
	if got != "1xbet+Sisal" {
		t.Errorf("got %q", got)
	}
}

func TestSortedCounts(t *testing.T) {
	got := sortedCounts(map[string]int64{"invalid_odds": 2, "unmapped_market": 9, "buffer_full": 2})
	order := []string{"unmapped_market", "buffer_full", "invalid_odds"}
	for i, name := range order {
		if got[i].name != name {
			t.Errorf("position %d = %s, want %s", i, got[i].name, name)
		}
	}
}

func TestRenderStats(t *testing.T) {
	snap := metrics.MetricsSnapshot{
		FeedStatus:     "subscribed",
		RecordsWritten: 12,
		Gauges:         map[string]int{metrics.GaugeWriteQueue: 4},
	}
	text := renderStats(snap)
	for _, want := range []string{"[green]subscribed", "Written: 12", "Queue Depth: 4"} {
		if !strings.Contains(text, want) {
			t.Errorf("stats text missing %q", want)
		}
	}
}
