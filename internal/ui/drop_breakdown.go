package ui

import (
	"fmt"
	"sort"

	"github.com/gdamore/tcell/v2"
	"github.com/oddsbridge/engine/internal/metrics"
	"github.com/rivo/tview"
)

var dropHeaders = []string{"Counter", "Count"}

// DropBreakdownView shows frame counts by command and outcome drops by reason.
type DropBreakdownView struct {
	table *tview.Table
}

// NewDropBreakdownView creates a new drop breakdown view.
func NewDropBreakdownView() *DropBreakdownView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Frames & Drops ").SetBorder(true)
	setHeader(table, dropHeaders)

	return &DropBreakdownView{
		table: table,
	}
}

// Widget returns the tview primitive.
func (v *DropBreakdownView) Widget() tview.Primitive {
	return v.table
}

// Update refreshes the counters.
func (v *DropBreakdownView) Update(snapshot metrics.MetricsSnapshot) {
	v.table.Clear()
	setHeader(v.table, dropHeaders)

	row := 1
	for _, c := range sortedCounts(snapshot.FramesByCommand) {
		v.setRow(row, "frame "+c.name, c.count, tcell.ColorWhite)
		row++
	}
	for _, c := range sortedCounts(snapshot.DropsByReason) {
		v.setRow(row, "drop "+c.name, c.count, tcell.ColorRed)
		row++
	}

	if row == 1 {
		cell := tview.NewTableCell("No data yet...").
			SetAlign(tview.AlignCenter).
			SetExpansion(1)
		v.table.SetCell(1, 0, cell)
	}
}

func (v *DropBreakdownView) setRow(row int, label string, count int64, color tcell.Color) {
	v.table.SetCell(row, 0, tview.NewTableCell(label).SetAlign(tview.AlignLeft).SetTextColor(color))
	v.table.SetCell(row, 1, tview.NewTableCell(fmt.Sprintf("%d", count)).SetAlign(tview.AlignRight))
}

type namedCount struct {
	name  string
	count int64
}

// sortedCounts orders counters by count, highest first.
func sortedCounts(m map[string]int64) []namedCount {
	out := make([]namedCount, 0, len(m))
	for name, count := range m {
		out = append(out, namedCount{name, count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count == out[j].count {
			return out[i].name < out[j].name
		}
		return out[i].count > out[j].count
	})
	return out
}
