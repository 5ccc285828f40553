// Package detector derives per-trade and per-market edge signals.
package detector

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyedge/engine/internal/store"
)

// balancedHedgeRatio is the minimum small-side/large-side amount ratio for a
// hedge to be reported as near-equal. Skewed hedges are still reported;
// classifying intent is left to the consumer.
const balancedHedgeRatio = 0.8

// Detector computes signals for one resolved market at a time. It holds no
// per-market state, so markets may be analyzed concurrently by independent
// workers.
type Detector struct {
	lateThreshold time.Duration
	payoutRatio   decimal.Decimal
}

// New creates a Detector. payoutRatio is the profit per unit staked on a
// winning position, supplied by the platform's valuation rule.
func New(lateThreshold time.Duration, payoutRatio float64) *Detector {
	return &Detector{
		lateThreshold: lateThreshold,
		payoutRatio:   decimal.NewFromFloat(payoutRatio),
	}
}

// MarketAnalysis is the result of signal computation for one market.
type MarketAnalysis struct {
	MarketID string
	Signals  []store.Signal

	// Records holds per-trader stats keyed by trader ID
	Records map[string]*store.MarketRecord
}

// Analyze computes all signals for one market given its deduplicated trades
// and position snapshots.
//
// Returns a MissingMarketDataError when the market is unresolved or has no
// position snapshots; callers skip the market and continue the batch.
func (d *Detector) Analyze(m store.Market, trades []store.Trade, snaps []store.PositionSnapshot) (*MarketAnalysis, error) {
	if !m.Resolved || m.Winner == "" {
		return nil, &store.MissingMarketDataError{MarketID: m.ID, Reason: "no resolved outcome"}
	}
	if m.ResolutionTime.IsZero() {
		return nil, &store.MissingMarketDataError{MarketID: m.ID, Reason: "no resolution timestamp"}
	}
	if len(snaps) == 0 {
		return nil, &store.MissingMarketDataError{MarketID: m.ID, Reason: "no position snapshots"}
	}

	sorted := make([]store.PositionSnapshot, len(snaps))
	copy(sorted, snaps)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	analysis := &MarketAnalysis{
		MarketID: m.ID,
		Records:  make(map[string]*store.MarketRecord),
	}

	for trader, traderTrades := range groupByTrader(trades) {
		record, signals := d.analyzeTrader(m, trader, traderTrades, sorted)
		analysis.Records[trader] = record
		analysis.Signals = append(analysis.Signals, signals...)
	}

	return analysis, nil
}

// analyzeTrader computes one trader's record and signals within a market.
// traderTrades must be sorted by timestamp.
func (d *Detector) analyzeTrader(m store.Market, trader string, trades []store.Trade, snaps []store.PositionSnapshot) (*store.MarketRecord, []store.Signal) {
	record := &store.MarketRecord{
		MarketID:    m.ID,
		FirstTrade:  trades[0].Timestamp,
		LastTrade:   trades[len(trades)-1].Timestamp,
		TradeCount:  len(trades),
		SideVolumes: make(map[string]decimal.Decimal),
	}

	for _, t := range trades {
		record.Volume = record.Volume.Add(t.Amount)
		record.Staked = record.Staked.Add(t.Amount)
		record.SideVolumes[t.Outcome] = record.SideVolumes[t.Outcome].Add(t.Amount)
	}

	record.LastOffsetHours = m.ResolutionTime.Sub(record.LastTrade).Hours()
	record.WindowHours = record.LastTrade.Sub(record.FirstTrade).Hours()
	record.Winner = m.Winner
	record.Position = store.PrimarySide(record.SideVolumes)
	record.Won = record.Position == m.Winner

	winStake := record.SideVolumes[m.Winner]
	loseStake := record.Staked.Sub(winStake)
	record.PnL = winStake.Mul(d.payoutRatio).Sub(loseStake)

	var signals []store.Signal

	// Late entry: only the first trade's lateness is attributed to the
	// trader for this market. Exactly at the threshold is not late.
	if m.ResolutionTime.Sub(record.FirstTrade) < d.lateThreshold {
		record.LateEntry = true
		signals = append(signals, store.Signal{
			Kind:     store.SignalLateEntry,
			MarketID: m.ID,
			TraderID: trader,
			Evidence: map[string]interface{}{
				"entry_offset_hours": m.ResolutionTime.Sub(record.FirstTrade).Hours(),
				"threshold_hours":    d.lateThreshold.Hours(),
			},
		})
	}

	// Contrarian win: at trade time the trade's side must differ from the
	// strict-majority side, and the market must have resolved to the
	// trade's side. One signal per trader per market.
	for _, t := range trades {
		if t.Outcome != m.Winner {
			continue
		}
		majority, ok := majorityAt(snaps, t.Timestamp)
		if !ok || majority == t.Outcome {
			continue
		}
		record.ContrarianWin = true
		signals = append(signals, store.Signal{
			Kind:     store.SignalContrarianWin,
			MarketID: m.ID,
			TraderID: trader,
			Evidence: map[string]interface{}{
				"side":       t.Outcome,
				"majority":   majority,
				"trade_time": t.Timestamp.UTC(),
				"amount":     t.Amount.String(),
			},
		})
		break
	}

	// Hedge: positions on two or more distinct outcomes of the same market.
	if len(record.SideVolumes) >= 2 {
		record.Hedge = true
		signals = append(signals, store.Signal{
			Kind:     store.SignalHedge,
			MarketID: m.ID,
			TraderID: trader,
			Evidence: hedgeEvidence(record.SideVolumes),
		})
	}

	return record, signals
}

// groupByTrader buckets trades per trader, each bucket sorted by timestamp
// with trade ID as tie-break for determinism.
func groupByTrader(trades []store.Trade) map[string][]store.Trade {
	grouped := make(map[string][]store.Trade)
	for _, t := range trades {
		grouped[t.TraderID] = append(grouped[t.TraderID], t)
	}
	for _, ts := range grouped {
		sort.Slice(ts, func(i, j int) bool {
			if !ts[i].Timestamp.Equal(ts[j].Timestamp) {
				return ts[i].Timestamp.Before(ts[j].Timestamp)
			}
			return ts[i].ID < ts[j].ID
		})
	}
	return grouped
}

// majorityAt infers the majority side at a point in time from the latest
// snapshot at or before it. A side is the majority only when its volume is
// strictly greater than every other side's; ties yield no majority.
func majorityAt(snaps []store.PositionSnapshot, at time.Time) (string, bool) {
	var snap *store.PositionSnapshot
	for i := range snaps {
		if snaps[i].Timestamp.After(at) {
			break
		}
		snap = &snaps[i]
	}
	if snap == nil {
		return "", false
	}

	var best string
	var bestVol decimal.Decimal
	tied := false
	for side, vol := range snap.Volumes {
		switch vol.Cmp(bestVol) {
		case 1:
			best, bestVol, tied = side, vol, false
		case 0:
			if best != "" {
				tied = true
			}
		}
	}
	if best == "" || tied {
		return "", false
	}
	return best, true
}

// hedgeEvidence reports each side's amount and whether the hedge is
// near-equal.
func hedgeEvidence(sideVolumes map[string]decimal.Decimal) map[string]interface{} {
	sides := make(map[string]string, len(sideVolumes))
	var smallest, largest decimal.Decimal
	first := true
	for side, vol := range sideVolumes {
		sides[side] = vol.String()
		if first {
			smallest, largest = vol, vol
			first = false
			continue
		}
		if vol.LessThan(smallest) {
			smallest = vol
		}
		if vol.GreaterThan(largest) {
			largest = vol
		}
	}

	ratio := 0.0
	if largest.IsPositive() {
		ratio = smallest.Div(largest).InexactFloat64()
	}

	return map[string]interface{}{
		"sides":         sides,
		"balance_ratio": ratio,
		"balanced":      ratio >= balancedHedgeRatio,
	}
}
