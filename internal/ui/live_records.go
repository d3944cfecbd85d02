package ui

import (
	"fmt"

	"github.com/oddsbridge/engine/internal/metrics"
	"github.com/rivo/tview"
)

var liveRecordHeaders = []string{"Time", "Match", "Bookmaker", "Market", "Selection", "Odds"}

// LiveRecordsView displays the most recently written odds records.
type LiveRecordsView struct {
	table   *tview.Table
	maxRows int
}

// NewLiveRecordsView creates a new live records view.
func NewLiveRecordsView() *LiveRecordsView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Live Odds ").SetBorder(true)
	setHeader(table, liveRecordHeaders)

	return &LiveRecordsView{
		table:   table,
		maxRows: 100,
	}
}

// Widget returns the tview primitive.
func (v *LiveRecordsView) Widget() tview.Primitive {
	return v.table
}

// Update redraws the table, newest first.
func (v *LiveRecordsView) Update(snapshot metrics.MetricsSnapshot) {
	v.table.Clear()
	setHeader(v.table, liveRecordHeaders)

	row := 1
	for i := len(snapshot.Recent) - 1; i >= 0 && row <= v.maxRows; i-- {
		r := snapshot.Recent[i]
		cells := []string{
			r.WrittenAt.Format("15:04:05"),
			truncate(r.DisplayName, 32),
			r.BookmakerName,
			r.MarketType,
			r.Selection,
			fmt.Sprintf("%.2f", r.Odds),
		}
		for col, text := range cells {
			v.table.SetCell(row, col, tview.NewTableCell(text).SetAlign(tview.AlignLeft))
		}
		row++
	}

	v.table.SetTitle(fmt.Sprintf(" Live Odds (%d written) ", snapshot.RecordsWritten))
}

// setHeader writes the header row of a table.
func setHeader(table *tview.Table, headers []string) {
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false)
		table.SetCell(0, col, cell)
	}
}
