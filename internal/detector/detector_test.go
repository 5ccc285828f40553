package detector

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyedge/engine/internal/store"
)

var resolution = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func resolvedMarket(winner string) store.Market {
	return store.Market{
		ID:             "m1",
		Question:       "Will it happen?",
		ResolutionTime: resolution,
		Resolved:       true,
		Winner:         winner,
	}
}

func snapshot(at time.Time, yes, no float64) store.PositionSnapshot {
	return store.PositionSnapshot{
		MarketID:  "m1",
		Timestamp: at,
		Volumes: map[string]decimal.Decimal{
			"YES": decimal.NewFromFloat(yes),
			"NO":  decimal.NewFromFloat(no),
		},
	}
}

func trade(id, trader, outcome string, amount float64, at time.Time) store.Trade {
	return store.Trade{
		ID:        id,
		MarketID:  "m1",
		TraderID:  trader,
		Outcome:   outcome,
		Amount:    decimal.NewFromFloat(amount),
		Timestamp: at,
	}
}

func hasSignal(signals []store.Signal, kind, trader string) bool {
	for _, s := range signals {
		if s.Kind == kind && s.TraderID == trader {
			return true
		}
	}
	return false
}

func TestContrarianLateWinner(t *testing.T) {
	// Trader bets $100 on NO 8h before resolution while YES leads 70/30;
	// market resolves NO.
	d := New(24*time.Hour, 1.0)

	m := resolvedMarket("NO")
	snaps := []store.PositionSnapshot{snapshot(resolution.Add(-48*time.Hour), 700, 300)}
	trades := []store.Trade{trade("t1", "0xabc", "NO", 100, resolution.Add(-8*time.Hour))}

	analysis, err := d.Analyze(m, trades, snaps)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	rec := analysis.Records["0xabc"]
	if rec == nil {
		t.Fatal("Expected record for 0xabc")
	}
	if !rec.ContrarianWin {
		t.Error("Expected ContrarianWin=true")
	}
	if !rec.LateEntry {
		t.Error("Expected LateEntry=true")
	}
	if !hasSignal(analysis.Signals, store.SignalContrarianWin, "0xabc") {
		t.Error("Expected a ContrarianWin signal")
	}
	if !hasSignal(analysis.Signals, store.SignalLateEntry, "0xabc") {
		t.Error("Expected a LateEntry signal")
	}
	if !rec.Won {
		t.Error("Expected Won=true for winning position")
	}
	// Winning $100 stake at payout ratio 1.0 pays $100 profit
	if rec.PnL.Cmp(decimal.NewFromInt(100)) != 0 {
		t.Errorf("Expected PnL 100, got %s", rec.PnL)
	}
}

func TestLateEntryBoundaryIsNotLate(t *testing.T) {
	// Exactly at the threshold is classified as NOT late (open interval)
	d := New(24*time.Hour, 1.0)

	m := resolvedMarket("NO")
	snaps := []store.PositionSnapshot{snapshot(resolution.Add(-72*time.Hour), 700, 300)}
	trades := []store.Trade{trade("t1", "0xabc", "NO", 100, resolution.Add(-24*time.Hour))}

	analysis, err := d.Analyze(m, trades, snaps)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if analysis.Records["0xabc"].LateEntry {
		t.Error("Expected trade exactly at threshold to be NOT late")
	}

	// One second inside the threshold is late
	trades = []store.Trade{trade("t2", "0xdef", "NO", 100, resolution.Add(-24*time.Hour).Add(time.Second))}
	analysis, err = d.Analyze(m, trades, snaps)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !analysis.Records["0xdef"].LateEntry {
		t.Error("Expected trade inside threshold to be late")
	}
}

func TestOnlyFirstTradeDeterminesEntry(t *testing.T) {
	// Repeated late bets do not multiply the signal; the first trade sets
	// the entry time, and here it is early.
	d := New(24*time.Hour, 1.0)

	m := resolvedMarket("NO")
	snaps := []store.PositionSnapshot{snapshot(resolution.Add(-72*time.Hour), 700, 300)}
	trades := []store.Trade{
		trade("t1", "0xabc", "NO", 100, resolution.Add(-48*time.Hour)),
		trade("t2", "0xabc", "NO", 100, resolution.Add(-2*time.Hour)),
	}

	analysis, err := d.Analyze(m, trades, snaps)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if analysis.Records["0xabc"].LateEntry {
		t.Error("Expected no LateEntry when the first trade is early")
	}
	if hasSignal(analysis.Signals, store.SignalLateEntry, "0xabc") {
		t.Error("Expected no LateEntry signal")
	}
}

func TestNoContrarianFlagOnMajoritySide(t *testing.T) {
	// Trader bets with the majority; even if they win, this is never
	// contrarian.
	d := New(24*time.Hour, 1.0)

	m := resolvedMarket("YES")
	snaps := []store.PositionSnapshot{snapshot(resolution.Add(-48*time.Hour), 700, 300)}
	trades := []store.Trade{trade("t1", "0xabc", "YES", 100, resolution.Add(-8*time.Hour))}

	analysis, err := d.Analyze(m, trades, snaps)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if analysis.Records["0xabc"].ContrarianWin {
		t.Error("Expected no ContrarianWin for majority-side trade")
	}
}

func TestTiedVolumesAreNonContrarian(t *testing.T) {
	d := New(24*time.Hour, 1.0)

	m := resolvedMarket("NO")
	snaps := []store.PositionSnapshot{snapshot(resolution.Add(-48*time.Hour), 500, 500)}
	trades := []store.Trade{trade("t1", "0xabc", "NO", 100, resolution.Add(-8*time.Hour))}

	analysis, err := d.Analyze(m, trades, snaps)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if analysis.Records["0xabc"].ContrarianWin {
		t.Error("Expected tie to be non-contrarian by definition")
	}
}

func TestNoSnapshotBeforeTradeIsNonContrarian(t *testing.T) {
	// A trade placed before the first snapshot has no majority evidence.
	d := New(24*time.Hour, 1.0)

	m := resolvedMarket("NO")
	snaps := []store.PositionSnapshot{snapshot(resolution.Add(-4*time.Hour), 700, 300)}
	trades := []store.Trade{trade("t1", "0xabc", "NO", 100, resolution.Add(-8*time.Hour))}

	analysis, err := d.Analyze(m, trades, snaps)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if analysis.Records["0xabc"].ContrarianWin {
		t.Error("Expected no ContrarianWin without a snapshot at trade time")
	}
}

func TestHedgeDetection(t *testing.T) {
	// Trader bets $500 on both YES and NO in the same market
	d := New(24*time.Hour, 1.0)

	m := resolvedMarket("NO")
	snaps := []store.PositionSnapshot{snapshot(resolution.Add(-48*time.Hour), 700, 300)}
	trades := []store.Trade{
		trade("t1", "0xabc", "YES", 500, resolution.Add(-40*time.Hour)),
		trade("t2", "0xabc", "NO", 500, resolution.Add(-39*time.Hour)),
	}

	analysis, err := d.Analyze(m, trades, snaps)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	var hedge *store.Signal
	for i := range analysis.Signals {
		if analysis.Signals[i].Kind == store.SignalHedge {
			if hedge != nil {
				t.Fatal("Expected exactly one Hedge signal")
			}
			hedge = &analysis.Signals[i]
		}
	}
	if hedge == nil {
		t.Fatal("Expected a Hedge signal")
	}

	if balanced, _ := hedge.Evidence["balanced"].(bool); !balanced {
		t.Errorf("Expected near-equal amounts to be balanced, evidence: %v", hedge.Evidence)
	}
	if ratio, _ := hedge.Evidence["balance_ratio"].(float64); ratio != 1.0 {
		t.Errorf("Expected balance ratio 1.0, got %v", ratio)
	}

	// $500 hedged both ways at payout ratio 1.0: win 500, lose 500
	rec := analysis.Records["0xabc"]
	if !rec.PnL.IsZero() {
		t.Errorf("Expected zero PnL on a perfect hedge, got %s", rec.PnL)
	}
}

func TestSkewedHedgeIsReportedUnbalanced(t *testing.T) {
	d := New(24*time.Hour, 1.0)

	m := resolvedMarket("NO")
	snaps := []store.PositionSnapshot{snapshot(resolution.Add(-48*time.Hour), 700, 300)}
	trades := []store.Trade{
		trade("t1", "0xabc", "YES", 1000, resolution.Add(-40*time.Hour)),
		trade("t2", "0xabc", "NO", 100, resolution.Add(-39*time.Hour)),
	}

	analysis, err := d.Analyze(m, trades, snaps)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	for _, sig := range analysis.Signals {
		if sig.Kind != store.SignalHedge {
			continue
		}
		if balanced, _ := sig.Evidence["balanced"].(bool); balanced {
			t.Errorf("Expected skewed hedge to be unbalanced, evidence: %v", sig.Evidence)
		}
		return
	}
	t.Fatal("Expected a Hedge signal")
}

func TestTimingStats(t *testing.T) {
	d := New(24*time.Hour, 1.0)

	m := resolvedMarket("NO")
	snaps := []store.PositionSnapshot{snapshot(resolution.Add(-48*time.Hour), 700, 300)}
	trades := []store.Trade{
		trade("t1", "0xabc", "NO", 100, resolution.Add(-30*time.Hour)),
		trade("t2", "0xabc", "NO", 200, resolution.Add(-6*time.Hour)),
	}

	analysis, err := d.Analyze(m, trades, snaps)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	rec := analysis.Records["0xabc"]
	if rec.WindowHours != 24 {
		t.Errorf("Expected trading window 24h, got %v", rec.WindowHours)
	}
	if rec.LastOffsetHours != 6 {
		t.Errorf("Expected last trade offset 6h, got %v", rec.LastOffsetHours)
	}
}

func TestMissingMarketDataIsSkippable(t *testing.T) {
	d := New(24*time.Hour, 1.0)
	trades := []store.Trade{trade("t1", "0xabc", "NO", 100, resolution.Add(-8*time.Hour))}
	snaps := []store.PositionSnapshot{snapshot(resolution.Add(-48*time.Hour), 700, 300)}

	// Unresolved market
	unresolved := resolvedMarket("")
	unresolved.Resolved = false
	if _, err := d.Analyze(unresolved, trades, snaps); err == nil {
		t.Error("Expected error for unresolved market")
	} else {
		var missing *store.MissingMarketDataError
		if !errors.As(err, &missing) {
			t.Errorf("Expected MissingMarketDataError, got %v", err)
		}
	}

	// No snapshots
	if _, err := d.Analyze(resolvedMarket("NO"), trades, nil); err == nil {
		t.Error("Expected error for market without snapshots")
	} else {
		var missing *store.MissingMarketDataError
		if !errors.As(err, &missing) {
			t.Errorf("Expected MissingMarketDataError, got %v", err)
		}
	}
}
