// Package ui provides a terminal browser for batch run results.
package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyedge/engine/internal/metrics"
	"github.com/polyedge/engine/internal/pipeline"
)

// App is the results browser shown after a batch run completes.
type App struct {
	app    *tview.Application
	layout *tview.Flex

	// Views
	rankedTable *RankedTableView
	signalsView *SignalsView
	runSummary  *RunSummaryView

	result   *pipeline.Result
	snapshot metrics.RunSnapshot
}

// NewApp creates the results browser for one completed run.
func NewApp(result *pipeline.Result, snapshot metrics.RunSnapshot) *App {
	app := &App{
		app:      tview.NewApplication(),
		result:   result,
		snapshot: snapshot,
	}

	app.rankedTable = NewRankedTableView()
	app.signalsView = NewSignalsView()
	app.runSummary = NewRunSummaryView()

	app.setupLayout()
	app.setupKeyboard()

	app.rankedTable.Update(result.Profiles)
	app.signalsView.Update(result.Signals)
	app.runSummary.Update(snapshot)

	return app
}

// setupLayout creates the 3-panel layout: ranked traders on top, signals and
// run summary below.
func (a *App) setupLayout() {
	bottomRow := tview.NewFlex().
		AddItem(a.signalsView.Widget(), 0, 2, false).
		AddItem(a.runSummary.Widget(), 0, 1, false)

	a.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.rankedTable.Widget(), 0, 3, true).
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
			case 'f', 'F':
				// Toggle flagged-only filter
				a.rankedTable.ToggleFlaggedOnly()
				a.rankedTable.Update(a.result.Profiles)
				return nil
			}
		}
		return event
	})
}

// Run starts the results browser (blocking).
func (a *App) Run() error {
	if err := a.app.Run(); err != nil {
		return fmt.Errorf("app run failed: %w", err)
	}
	return nil
}

// Stop closes the browser.
func (a *App) Stop() {
	a.app.Stop()
}
