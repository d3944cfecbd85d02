package ui

import (
	"fmt"
	"time"

	"github.com/oddsbridge/engine/internal/metrics"
	"github.com/rivo/tview"
)

// StatsDashboardView displays system health and throughput.
type StatsDashboardView struct {
	textView *tview.TextView
}

// NewStatsDashboardView creates a new stats dashboard view.
func NewStatsDashboardView() *StatsDashboardView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)

	textView.SetTitle(" Stats Dashboard ").SetBorder(true)

	return &StatsDashboardView{
		textView: textView,
	}
}

// Widget returns the tview primitive.
func (v *StatsDashboardView) Widget() tview.Primitive {
	return v.textView
}

// Update refreshes the stats display.
func (v *StatsDashboardView) Update(snapshot metrics.MetricsSnapshot) {
	v.textView.Clear()
	fmt.Fprint(v.textView, renderStats(snapshot))
}

func renderStats(snapshot metrics.MetricsSnapshot) string {
	return fmt.Sprintf(`[yellow]System Status[-]
Uptime: %s
Feed: [%s]%s[-]
Last Frame: %s
Reconnects: %d

[yellow]Pipeline[-]
Events: %d accepted / %d rejected
Outcomes Mapped: %d
Records Queued: %d
Suppressed (unchanged): %d

[yellow]Writes[-]
Written: %d
Dropped: %d
Rate: %.2f records/sec
Queue Depth: %d
Event Cache: %d
Pending Outcomes: %d
`,
		formatDuration(snapshot.Uptime),
		feedColor(snapshot.FeedStatus), snapshot.FeedStatus,
		formatTimeAgo(snapshot.LastFrame),
		snapshot.Reconnects,
		snapshot.EventsAccepted, snapshot.EventsRejected,
		snapshot.OutcomesMapped,
		snapshot.RecordsQueued,
		snapshot.RecordsSuppressed,
		snapshot.RecordsWritten,
		snapshot.RecordsDropped,
		snapshot.WriteRate,
		snapshot.Gauges[metrics.GaugeWriteQueue],
		snapshot.Gauges[metrics.GaugeEventsCache],
		snapshot.Gauges[metrics.GaugePending],
	)
}

func feedColor(status string) string {
	switch status {
	case "subscribed":
		return "green"
	case "connected", "authorized", "connecting":
		return "yellow"
	}
	return "red"
}

// formatDuration formats a duration in human-readable form.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// formatTimeAgo formats a time as "X ago".
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	elapsed := time.Since(t)

	if elapsed < time.Minute {
		return fmt.Sprintf("%.0fs ago", elapsed.Seconds())
	}
	if elapsed < time.Hour {
		return fmt.Sprintf("%.0fm ago", elapsed.Minutes())
	}
	if elapsed < 24*time.Hour {
		return fmt.Sprintf("%.0fh ago", elapsed.Hours())
	}
	return fmt.Sprintf("%.0fd ago", elapsed.Hours()/24)
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
