// Package ui provides terminal user interface components.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/oddsbridge/engine/internal/metrics"
	"github.com/rivo/tview"
)

// DefaultRefreshRate is used when the configured rate is not positive.
const DefaultRefreshRate = 500 * time.Millisecond

// App is the main TUI application.
type App struct {
	app    *tview.Application
	layout *tview.Flex

	// Views
	matchCoverage  *MatchCoverageView
	unmappedList   *UnmappedListView
	liveRecords    *LiveRecordsView
	statsDashboard *StatsDashboardView
	dropBreakdown  *DropBreakdownView

	// Data sources
	metricsTracker *metrics.MetricsTracker
	unmappedTeams  *metrics.FirstSeen
	unmappedCodes  *metrics.FirstSeen
	refreshRate    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates a new TUI application.
func NewApp(tracker *metrics.MetricsTracker, teams, codes *metrics.FirstSeen, refreshRate time.Duration) *App {
	ctx, cancel := context.WithCancel(context.Background())
	if refreshRate <= 0 {
		refreshRate = DefaultRefreshRate
	}

	app := &App{
		app:            tview.NewApplication(),
		metricsTracker: tracker,
		unmappedTeams:  teams,
		unmappedCodes:  codes,
		refreshRate:    refreshRate,
		ctx:            ctx,
		cancel:         cancel,
	}

	// Initialize views
	app.matchCoverage = NewMatchCoverageView()
	app.unmappedList = NewUnmappedListView()
	app.liveRecords = NewLiveRecordsView()
	app.statsDashboard = NewStatsDashboardView()
	app.dropBreakdown = NewDropBreakdownView()

	app.setupLayout()
	app.setupKeyboard()

	return app
}

// setupLayout creates the 5-panel layout.
func (a *App) setupLayout() {
	// Top row: Match Coverage (left) | Unmapped (right)
	topRow := tview.NewFlex().
		AddItem(a.matchCoverage.Widget(), 0, 2, false).
		AddItem(a.unmappedList.Widget(), 0, 1, false)

	// Middle row: Live Records (full width)
	middleRow := a.liveRecords.Widget()

	// Bottom row: Stats Dashboard (left) | Drops (right)
	bottomRow := tview.NewFlex().
		AddItem(a.statsDashboard.Widget(), 0, 1, false).
		AddItem(a.dropBreakdown.Widget(), 0, 1, false)

	a.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 2, false).
		AddItem(middleRow, 0, 3, false).
		AddItem(bottomRow, 0, 2, false)

	a.app.SetRoot(a.layout, true)
}

// setupKeyboard configures keyboard shortcuts.
func (a *App) setupKeyboard() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			a.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q', 'Q':
				a.Stop()
				return nil
			case 'r', 'R':
				a.refresh()
				return nil
			}
		}
		return event
	})
}

// Run starts the TUI application (blocking).
func (a *App) Run() error {
	go a.updateLoop()

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("app run failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// updateLoop periodically refreshes views with metrics data.
func (a *App) updateLoop() {
	ticker := time.NewTicker(a.refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.refresh()
		}
	}
}

// refresh redraws all views from a fresh snapshot.
func (a *App) refresh() {
	snapshot := a.metricsTracker.Snapshot()
	teams := a.unmappedTeams.Entries()
	codes := a.unmappedCodes.Entries()

	a.app.QueueUpdateDraw(func() {
		a.matchCoverage.Update(snapshot)
		a.unmappedList.Update(teams, codes)
		a.liveRecords.Update(snapshot)
		a.statsDashboard.Update(snapshot)
		a.dropBreakdown.Update(snapshot)
	})
}
