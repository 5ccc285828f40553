package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyedge/engine/internal/store"
)

// RankedTableView displays the ranked trader profile table.
type RankedTableView struct {
	table       *tview.Table
	flaggedOnly bool
}

// NewRankedTableView creates a new ranked traders view.
func NewRankedTableView() *RankedTableView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0).
		SetSelectable(true, false)

	table.SetTitle(" Ranked Traders ").SetBorder(true)

	return &RankedTableView{
		table: table,
	}
}

// Widget returns the tview primitive.
func (v *RankedTableView) Widget() tview.Primitive {
	return v.table
}

// ToggleFlaggedOnly switches between all traders and flagged traders only.
func (v *RankedTableView) ToggleFlaggedOnly() {
	v.flaggedOnly = !v.flaggedOnly
}

// Update refreshes the table from the ranked profiles.
func (v *RankedTableView) Update(profiles []*store.TraderProfile) {
	v.table.Clear()

	headers := []string{"#", "Trader", "Score", "Co-occur", "ROI", "Win Rate", "Volume", "Trades", "Flagged"}
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false)
		v.table.SetCell(0, col, cell)
	}

	row := 1
	shown := 0
	for i, p := range profiles {
		if v.flaggedOnly && !p.Flagged {
			continue
		}
		shown++

		name := p.TraderID
		if p.Name != "" {
			name = p.Name
		}
		if len(name) > 20 {
			name = name[:17] + "..."
		}

		flaggedStr := "-"
		flaggedColor := tcell.ColorWhite
		if p.Flagged {
			flaggedStr = "FLAGGED"
			flaggedColor = tcell.ColorRed
		}

		roiColor := tcell.ColorWhite
		if p.ROI > 0 {
			roiColor = tcell.ColorGreen
		} else if p.ROI < 0 {
			roiColor = tcell.ColorRed
		}

		v.table.SetCell(row, 0, tview.NewTableCell(fmt.Sprintf("%d", i+1)).SetAlign(tview.AlignRight))
		v.table.SetCell(row, 1, tview.NewTableCell(name).SetAlign(tview.AlignLeft))
		v.table.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("%.4f", p.Score)).SetAlign(tview.AlignRight))
		v.table.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%d", p.CoOccurrence)).SetAlign(tview.AlignRight))
		v.table.SetCell(row, 4, tview.NewTableCell(fmt.Sprintf("%+.2f%%", p.ROI*100)).
			SetAlign(tview.AlignRight).SetTextColor(roiColor))
		v.table.SetCell(row, 5, tview.NewTableCell(fmt.Sprintf("%.0f%%", p.WinRate*100)).SetAlign(tview.AlignRight))
		v.table.SetCell(row, 6, tview.NewTableCell("$"+p.Volume.StringFixed(0)).SetAlign(tview.AlignRight))
		v.table.SetCell(row, 7, tview.NewTableCell(fmt.Sprintf("%d", p.TradeCount)).SetAlign(tview.AlignRight))
		v.table.SetCell(row, 8, tview.NewTableCell(flaggedStr).
			SetAlign(tview.AlignLeft).SetTextColor(flaggedColor))

		row++
	}

	title := fmt.Sprintf(" Ranked Traders (%d) ", shown)
	if v.flaggedOnly {
		title = fmt.Sprintf(" Ranked Traders (flagged only, %d) ", shown)
	}
	v.table.SetTitle(title)

	if shown == 0 {
		cell := tview.NewTableCell("No traders to show").
			SetAlign(tview.AlignCenter).
			SetExpansion(1)
		v.table.SetCell(1, 0, cell)
	}
}
