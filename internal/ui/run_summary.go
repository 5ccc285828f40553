package ui

import (
	"fmt"
	"sort"
	"time"

	"github.com/rivo/tview"

	"github.com/polyedge/engine/internal/metrics"
)

// RunSummaryView displays the run metadata: what was processed, what was
// skipped, and the signal tallies.
type RunSummaryView struct {
	textView *tview.TextView
}

// NewRunSummaryView creates a new run summary view.
func NewRunSummaryView() *RunSummaryView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)

	textView.SetTitle(" Run Summary ").SetBorder(true)

	return &RunSummaryView{
		textView: textView,
	}
}

// Widget returns the tview primitive.
func (v *RunSummaryView) Widget() tview.Primitive {
	return v.textView
}

// Update refreshes the summary display.
func (v *RunSummaryView) Update(snapshot metrics.RunSnapshot) {
	v.textView.Clear()

	fmt.Fprintf(v.textView, "[yellow]Run:[white] %s\n", snapshot.RunID)
	fmt.Fprintf(v.textView, "[yellow]Duration:[white] %s\n\n", formatDuration(snapshot.Duration))

	fmt.Fprintf(v.textView, "[yellow]Trades:[white] %d normalized, %d skipped\n",
		snapshot.TradesNormalized, snapshot.RecordsSkipped)
	fmt.Fprintf(v.textView, "[yellow]Dedup:[white] %d kept, %d collapsed\n",
		snapshot.TradesDeduped, snapshot.DuplicatesFound)
	fmt.Fprintf(v.textView, "[yellow]Markets:[white] %d/%d processed, %d skipped\n\n",
		snapshot.MarketsProcessed, snapshot.MarketsTotal, snapshot.MarketsSkipped)

	kinds := make([]string, 0, len(snapshot.SignalsByKind))
	for kind := range snapshot.SignalsByKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(v.textView, "  %s: %d\n", kind, snapshot.SignalsByKind[kind])
	}

	fmt.Fprintf(v.textView, "\n[yellow]Traders:[white] %d evaluated, [red]%d flagged[white]\n",
		snapshot.TradersEvaluated, snapshot.TradersFlagged)
}

// formatDuration renders a duration as a compact human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
