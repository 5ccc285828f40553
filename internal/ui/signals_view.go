package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyedge/engine/internal/store"
)

// SignalsView lists the signals emitted during the run.
type SignalsView struct {
	list     *tview.List
	maxItems int
}

// NewSignalsView creates a new signals view.
func NewSignalsView() *SignalsView {
	list := tview.NewList().
		ShowSecondaryText(true)

	list.SetTitle(" Signals ").SetBorder(true)
	list.SetMainTextColor(tcell.ColorWhite)

	return &SignalsView{
		list:     list,
		maxItems: 200,
	}
}

// Widget returns the tview primitive.
func (v *SignalsView) Widget() tview.Primitive {
	return v.list
}

// Update rebuilds the list from the run's signals.
func (v *SignalsView) Update(signals []store.Signal) {
	v.list.Clear()

	if len(signals) == 0 {
		v.list.AddItem("No signals emitted", "", 0, nil)
		v.list.SetTitle(" Signals (0) ")
		return
	}

	limit := len(signals)
	if limit > v.maxItems {
		limit = v.maxItems
	}

	for _, sig := range signals[:limit] {
		main, secondary := formatSignal(sig)
		v.list.AddItem(main, secondary, 0, nil)
	}

	v.list.SetTitle(fmt.Sprintf(" Signals (%d) ", len(signals)))
}

// formatSignal formats one signal for display.
func formatSignal(sig store.Signal) (string, string) {
	var icon string
	switch sig.Kind {
	case store.SignalContrarianWin:
		icon = "⚡"
	case store.SignalLateEntry:
		icon = "⏰"
	case store.SignalHedge:
		icon = "⚖"
	case store.SignalDuplicate:
		icon = "⧉"
	default:
		icon = "•"
	}

	main := fmt.Sprintf("%s %s  %s", icon, sig.Kind, truncateID(sig.TraderID))
	secondary := fmt.Sprintf("    market %s", truncateID(sig.MarketID))
	return main, secondary
}

// truncateID shortens an ID for display.
func truncateID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:6] + "..." + id[len(id)-4:]
}
