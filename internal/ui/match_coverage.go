package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oddsbridge/engine/internal/metrics"
	"github.com/rivo/tview"
)

var coverageHeaders = []string{"Match", "Bookmakers", "Records", "Updated"}

// MatchCoverageView shows which bookmakers are quoting each match.
type MatchCoverageView struct {
	table *tview.Table
}

// NewMatchCoverageView creates a new match coverage view.
func NewMatchCoverageView() *MatchCoverageView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Match Coverage ").SetBorder(true)
	setHeader(table, coverageHeaders)

	return &MatchCoverageView{
		table: table,
	}
}

// Widget returns the tview primitive.
func (v *MatchCoverageView) Widget() tview.Primitive {
	return v.table
}

// Update refreshes the view with new metrics data.
func (v *MatchCoverageView) Update(snapshot metrics.MetricsSnapshot) {
	v.table.Clear()
	setHeader(v.table, coverageHeaders)

	// Show the 15 most recently updated matches
	limit := 15
	if len(snapshot.Coverage) < limit {
		limit = len(snapshot.Coverage)
	}

	paired := 0
	for _, c := range snapshot.Coverage {
		if len(c.Bookmakers) > 1 {
			paired++
		}
	}

	for i, c := range snapshot.Coverage[:limit] {
		row := i + 1

		name := c.DisplayName
		if name == "" {
			name = c.MatchKey
		}

		cells := []string{
			truncate(name, 30),
			bookmakerLabel(c.Bookmakers),
			fmt.Sprintf("%d", c.Records),
			formatTimeAgo(c.LastUpdate),
		}

		for col, text := range cells {
			cell := tview.NewTableCell(text).
				SetAlign(tview.AlignLeft).
				SetExpansion(1)
			if len(c.Bookmakers) > 1 {
				cell.SetTextColor(tview.Styles.TertiaryTextColor)
			}
			v.table.SetCell(row, col, cell)
		}
	}

	v.table.SetTitle(fmt.Sprintf(" Match Coverage (%d matches, %d cross-book) ", len(snapshot.Coverage), paired))
}

// bookmakerLabel lists bookmaker names in a stable order.
func bookmakerLabel(counts map[string]int64) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "+")
}
