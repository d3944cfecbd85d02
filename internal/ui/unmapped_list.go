package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/oddsbridge/engine/internal/metrics"
	"github.com/rivo/tview"
)

// UnmappedListView lists team names and market codes that could not be
// resolved, so the alias and market tables can be extended.
type UnmappedListView struct {
	list     *tview.List
	maxItems int
}

// NewUnmappedListView creates a new unmapped list view.
func NewUnmappedListView() *UnmappedListView {
	list := tview.NewList().
		ShowSecondaryText(true)

	list.SetTitle(" Unmapped ").SetBorder(true)
	list.SetMainTextColor(tcell.ColorWhite)
	list.SetSecondaryTextColor(tcell.ColorGray)

	return &UnmappedListView{
		list:     list,
		maxItems: 50,
	}
}

// Widget returns the tview primitive.
func (v *UnmappedListView) Widget() tview.Primitive {
	return v.list
}

// Update rebuilds the list, newest sightings first.
func (v *UnmappedListView) Update(teams, codes []metrics.FirstSeenEntry) {
	v.list.Clear()

	if len(teams) == 0 && len(codes) == 0 {
		v.list.AddItem("Nothing unmapped yet", "", 0, nil)
		v.list.SetTitle(" Unmapped ")
		return
	}

	shown := 0
	add := func(kind string, entries []metrics.FirstSeenEntry) {
		for i := len(entries) - 1; i >= 0 && shown < v.maxItems; i-- {
			e := entries[i]
			mainText := fmt.Sprintf("%s %s", kind, e.Key)
			secondary := fmt.Sprintf("%s | seen %d | %s", truncate(e.Detail, 40), e.Count, formatTimeAgo(e.LastSeen))
			v.list.AddItem(mainText, secondary, 0, nil)
			shown++
		}
	}
	add("team", teams)
	add("code", codes)

	v.list.SetTitle(fmt.Sprintf(" Unmapped (%d teams, %d codes) ", len(teams), len(codes)))
}
