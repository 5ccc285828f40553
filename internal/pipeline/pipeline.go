// Package pipeline runs one batch of the edge detection engine end to end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/polyedge/engine/internal/aggregate"
	"github.com/polyedge/engine/internal/config"
	"github.com/polyedge/engine/internal/dedup"
	"github.com/polyedge/engine/internal/detector"
	"github.com/polyedge/engine/internal/metrics"
	"github.com/polyedge/engine/internal/rank"
	"github.com/polyedge/engine/internal/store"
)

// Inputs holds the normalized feeds for one batch run.
type Inputs struct {
	Markets   []store.Market
	Trades    []store.Trade
	Snapshots []store.PositionSnapshot

	// Allowlist restricts scoring to the listed traders when non-nil,
	// mapping trader ID to an optional display name.
	Allowlist map[string]string
}

// Result is the outcome of one batch run.
type Result struct {
	// Profiles is the full ranked profile table; flagged and unflagged
	// traders alike, ordered by descending score.
	Profiles []*store.TraderProfile

	// Signals is every signal emitted during the run, for auditing.
	Signals []store.Signal

	// Empty reports that zero markets were processed. Distinct from a
	// pipeline failure: callers can tell "no edge found" from a crash.
	Empty bool
}

// Run executes the batch: dedup, per-market signal computation across a
// worker pool, profile aggregation, and ranking. Markets are independent, so
// workers share no mutable state; each owns a partial aggregation merged at
// the end.
func Run(ctx context.Context, cfg *config.Config, in Inputs, tracker *metrics.RunTracker) (*Result, error) {
	trades := in.Trades
	if in.Allowlist != nil {
		trades = filterByTrader(trades, in.Allowlist)
	}

	// Dedup is scoped to this batch and discarded afterwards.
	deduper := dedup.New(cfg.DedupBucketWidth)
	deduper.AddAll(trades)
	deduped := deduper.Trades()
	dupSignals := deduper.Signals()
	tracker.SetDeduped(len(deduped), len(trades)-len(deduped))

	tradesByMarket := make(map[string][]store.Trade)
	for _, t := range deduped {
		tradesByMarket[t.MarketID] = append(tradesByMarket[t.MarketID], t)
	}
	snapsByMarket := make(map[string][]store.PositionSnapshot)
	for _, s := range in.Snapshots {
		snapsByMarket[s.MarketID] = append(snapsByMarket[s.MarketID], s)
	}

	tracker.SetMarketsTotal(len(in.Markets))

	det := detector.New(cfg.LateEntryThreshold, cfg.PayoutRatio)

	jobs := make(chan store.Market, len(in.Markets))
	partials := make([]*aggregate.Partial, cfg.WorkerCount)
	signals := make([][]store.Signal, cfg.WorkerCount)

	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		partials[i] = aggregate.NewPartial()
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			worker(ctx, id, det, jobs, tradesByMarket, snapsByMarket, partials[id], &signals[id], tracker)
		}(i)
	}

	for _, m := range in.Markets {
		jobs <- m
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch cancelled: %w", err)
	}

	// Merge order does not affect the outcome; partial aggregations
	// combine associatively.
	merged := aggregate.NewPartial()
	for _, p := range partials {
		if err := merged.Merge(p); err != nil {
			return nil, fmt.Errorf("failed to merge partial aggregations: %w", err)
		}
	}

	allSignals := dupSignals
	for _, s := range signals {
		allSignals = append(allSignals, s...)
	}
	for _, sig := range dupSignals {
		merged.AddSignal(sig)
		tracker.IncrementSignal(sig.Kind)
	}

	// Allowlisted traders appear in the profile table even without trades;
	// no evaluated trader is silently dropped.
	for traderID, name := range in.Allowlist {
		merged.SetName(traderID, name)
	}

	profiles := merged.Finalize()
	profiles = rank.Rank(profiles, rank.Thresholds{
		MinCoOccurrence: cfg.MinCoOccurrence,
		MinROI:          cfg.MinROI,
		MinVolume:       cfg.MinVolume,
	})

	flagged := 0
	for _, p := range profiles {
		if p.Flagged {
			flagged++
		}
	}
	tracker.SetTraderCounts(len(profiles), flagged)
	tracker.ObserveRunDone()

	result := &Result{Profiles: profiles, Signals: allSignals}

	snap := tracker.Snapshot()
	if snap.MarketsProcessed == 0 {
		result.Empty = true
		slog.Warn("empty_result",
			"run_id", snap.RunID,
			"markets_total", snap.MarketsTotal,
			"markets_skipped", snap.MarketsSkipped,
		)
	}

	return result, nil
}

// worker scores markets from the jobs channel into its own partial
// aggregation. Markets missing resolution data or snapshots are skipped and
// counted, never fatal.
func worker(ctx context.Context, id int, det *detector.Detector, jobs <-chan store.Market,
	tradesByMarket map[string][]store.Trade, snapsByMarket map[string][]store.PositionSnapshot,
	partial *aggregate.Partial, signals *[]store.Signal, tracker *metrics.RunTracker) {

	slog.Debug("worker_started", "id", id)
	defer slog.Debug("worker_stopped", "id", id)

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-jobs:
			if !ok {
				return
			}

			trades := tradesByMarket[m.ID]
			if len(trades) == 0 {
				tracker.IncrementMarketSkipped()
				slog.Debug("market_skipped", "market", m.ID, "reason", "no trades")
				continue
			}

			analysis, err := det.Analyze(m, trades, snapsByMarket[m.ID])
			if err != nil {
				var missing *store.MissingMarketDataError
				if errors.As(err, &missing) {
					tracker.IncrementMarketSkipped()
					slog.Warn("market_skipped", "market", m.ID, "reason", missing.Reason)
					continue
				}
				tracker.IncrementMarketSkipped()
				slog.Error("market_analysis_failed", "market", m.ID, "error", err)
				continue
			}

			partial.AddAnalysis(analysis)
			*signals = append(*signals, analysis.Signals...)
			for _, sig := range analysis.Signals {
				tracker.IncrementSignal(sig.Kind)
			}
			tracker.IncrementMarketProcessed()
		}
	}
}

// filterByTrader keeps only trades from allowlisted traders.
func filterByTrader(trades []store.Trade, allowlist map[string]string) []store.Trade {
	out := make([]store.Trade, 0, len(trades))
	for _, t := range trades {
		if _, ok := allowlist[t.TraderID]; ok {
			out = append(out, t)
		}
	}
	return out
}
