// Package aggregate folds per-market signal results into trader profiles.
package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/polyedge/engine/internal/detector"
	"github.com/polyedge/engine/internal/store"
)

// Partial is an intermediate aggregation over a subset of markets. Partials
// combine associatively and commutatively, so markets can be processed in any
// order or in parallel batches and merged afterwards.
//
// Partial is not safe for concurrent use; each worker owns one.
type Partial struct {
	profiles map[string]*store.TraderProfile
}

// NewPartial creates an empty partial aggregation.
func NewPartial() *Partial {
	return &Partial{profiles: make(map[string]*store.TraderProfile)}
}

func (p *Partial) profile(traderID string) *store.TraderProfile {
	prof, ok := p.profiles[traderID]
	if !ok {
		prof = store.NewTraderProfile(traderID)
		p.profiles[traderID] = prof
	}
	return prof
}

// AddAnalysis folds one market's signal computation into the partial.
func (p *Partial) AddAnalysis(a *detector.MarketAnalysis) {
	for trader, record := range a.Records {
		prof := p.profile(trader)
		if existing, ok := prof.Records[record.MarketID]; ok {
			prof.Records[record.MarketID] = mergeRecords(existing, record)
		} else {
			prof.Records[record.MarketID] = record
		}
	}
	for _, sig := range a.Signals {
		p.AddSignal(sig)
	}
}

// AddSignal tallies a signal against its trader. Used directly for Duplicate
// signals, which are emitted batch-wide rather than per market.
func (p *Partial) AddSignal(sig store.Signal) {
	p.profile(sig.TraderID).SignalCounts[sig.Kind]++
}

// Merge combines another partial into this one. Fails with an
// AggregationConflictError when two partials disagree on an immutable
// identity field for the same trader; the conflict is surfaced, never
// silently resolved.
func (p *Partial) Merge(other *Partial) error {
	for traderID, src := range other.profiles {
		dst, ok := p.profiles[traderID]
		if !ok {
			p.profiles[traderID] = src
			continue
		}

		if dst.Name != "" && src.Name != "" && dst.Name != src.Name {
			return &store.AggregationConflictError{
				TraderID: traderID,
				Field:    "name",
				A:        dst.Name,
				B:        src.Name,
			}
		}
		if dst.Name == "" {
			dst.Name = src.Name
		}

		for marketID, record := range src.Records {
			if existing, ok := dst.Records[marketID]; ok {
				dst.Records[marketID] = mergeRecords(existing, record)
			} else {
				dst.Records[marketID] = record
			}
		}
		for kind, count := range src.SignalCounts {
			dst.SignalCounts[kind] += count
		}
	}
	return nil
}

// SetName attaches a display name to a trader's profile.
func (p *Partial) SetName(traderID, name string) {
	p.profile(traderID).Name = name
}

// Profiles returns the underlying profile table keyed by trader ID.
func (p *Partial) Profiles() map[string]*store.TraderProfile {
	return p.profiles
}

// Finalize computes the derived fields of every profile from its per-market
// records: totals, ROI, win rate, timing stats, primary position, and the
// LateEntry and ContrarianWin co-occurrence count across distinct markets.
//
// Co-occurrence counts distinct markets where LateEntry and ContrarianWin
// both hold; it is computed from per-market flags, not raw signal totals.
func (p *Partial) Finalize() []*store.TraderProfile {
	out := make([]*store.TraderProfile, 0, len(p.profiles))

	for _, prof := range p.profiles {
		prof.PnL = decimal.Zero
		prof.Staked = decimal.Zero
		prof.Volume = decimal.Zero
		prof.Wins, prof.Losses = 0, 0
		prof.TradeCount = 0
		prof.CoOccurrence = 0

		sideTotals := make(map[string]decimal.Decimal)
		minOffset := 0.0
		sumWindow := 0.0
		seen := 0

		for _, rec := range prof.Records {
			prof.PnL = prof.PnL.Add(rec.PnL)
			prof.Staked = prof.Staked.Add(rec.Staked)
			prof.Volume = prof.Volume.Add(rec.Volume)
			prof.TradeCount += rec.TradeCount
			if rec.Won {
				prof.Wins++
			} else {
				prof.Losses++
			}
			if rec.LateEntry && rec.ContrarianWin {
				prof.CoOccurrence++
			}
			for side, vol := range rec.SideVolumes {
				sideTotals[side] = sideTotals[side].Add(vol)
			}
			if seen == 0 || rec.LastOffsetHours < minOffset {
				minOffset = rec.LastOffsetHours
			}
			sumWindow += rec.WindowHours
			seen++
		}

		if seen > 0 {
			prof.LastOffsetH = minOffset
			prof.WindowHours = sumWindow / float64(seen)
		}
		prof.PrimaryAction = store.PrimarySide(sideTotals)

		if prof.Staked.IsPositive() {
			prof.ROI = prof.PnL.Div(prof.Staked).InexactFloat64()
		}
		if total := prof.Wins + prof.Losses; total > 0 {
			prof.WinRate = float64(prof.Wins) / float64(total)
		}

		out = append(out, prof)
	}

	return out
}

// mergeRecords combines two records for the same trader and market. The
// operation is associative and commutative: min/max on times, sums on counts
// and volumes, OR on signal flags, with the position recomputed from the
// merged side volumes.
func mergeRecords(a, b *store.MarketRecord) *store.MarketRecord {
	merged := &store.MarketRecord{
		MarketID:    a.MarketID,
		FirstTrade:  a.FirstTrade,
		LastTrade:   a.LastTrade,
		TradeCount:  a.TradeCount + b.TradeCount,
		Volume:      a.Volume.Add(b.Volume),
		Staked:      a.Staked.Add(b.Staked),
		PnL:         a.PnL.Add(b.PnL),
		Winner:      a.Winner,
		SideVolumes: make(map[string]decimal.Decimal),

		LateEntry:     a.LateEntry || b.LateEntry,
		ContrarianWin: a.ContrarianWin || b.ContrarianWin,
		Hedge:         a.Hedge || b.Hedge,
	}

	if b.FirstTrade.Before(merged.FirstTrade) {
		merged.FirstTrade = b.FirstTrade
	}
	if b.LastTrade.After(merged.LastTrade) {
		merged.LastTrade = b.LastTrade
	}
	if merged.Winner == "" {
		merged.Winner = b.Winner
	}

	for side, vol := range a.SideVolumes {
		merged.SideVolumes[side] = merged.SideVolumes[side].Add(vol)
	}
	for side, vol := range b.SideVolumes {
		merged.SideVolumes[side] = merged.SideVolumes[side].Add(vol)
	}

	merged.LastOffsetHours = a.LastOffsetHours
	if b.LastOffsetHours < merged.LastOffsetHours {
		merged.LastOffsetHours = b.LastOffsetHours
	}
	merged.WindowHours = merged.LastTrade.Sub(merged.FirstTrade).Hours()

	merged.Position = store.PrimarySide(merged.SideVolumes)
	merged.Won = merged.Position == merged.Winner

	return merged
}
