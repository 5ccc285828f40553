// Package main is the entry point for the Polyedge trader scoring engine.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/polyedge/engine/internal/config"
	"github.com/polyedge/engine/internal/ingest"
	"github.com/polyedge/engine/internal/metrics"
	"github.com/polyedge/engine/internal/output"
	"github.com/polyedge/engine/internal/pipeline"
	"github.com/polyedge/engine/internal/ui"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger := setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("polyedge starting",
		"version", "1.0.0",
	)

	slog.Info("config_loaded",
		"market_feed", cfg.MarketFeedPath,
		"trade_feed", cfg.TradeFeedPath,
		"snapshot_feed", cfg.SnapshotFeedPath,
		"leaderboard", cfg.LeaderboardPath,
		"output", cfg.OutputPath,
		"late_entry_threshold", cfg.LateEntryThreshold,
		"dedup_bucket", cfg.DedupBucketWidth,
		"min_co_occurrence", cfg.MinCoOccurrence,
		"min_roi", cfg.MinROI,
		"min_volume", cfg.MinVolume,
		"payout_ratio", cfg.PayoutRatio,
		"worker_count", cfg.WorkerCount,
		"enable_tui", cfg.EnableTUI,
		"enable_metrics", cfg.EnableMetrics,
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("shutdown_signal_received", "signal", sig.String())
		cancel()
	}()

	// Run metadata and Prometheus counters for this batch
	tracker := metrics.NewRunTracker()
	if cfg.EnableMetrics {
		go tracker.Serve(ctx, cfg.PrometheusPort)
	}

	// Load input feeds
	markets, marketsSkipped, err := ingest.LoadMarkets(cfg.MarketFeedPath)
	if err != nil {
		slog.Error("failed to load market feed", "error", err)
		os.Exit(1)
	}

	trades, tradesSkipped, err := ingest.LoadTrades(cfg.TradeFeedPath)
	if err != nil {
		slog.Error("failed to load trade feed", "error", err)
		os.Exit(1)
	}

	snapshots, snapsSkipped, err := ingest.LoadSnapshots(cfg.SnapshotFeedPath)
	if err != nil {
		// Markets without snapshots are skipped downstream, not fatal
		slog.Warn("failed to load snapshot feed", "error", err)
	}

	tracker.AddNormalized(len(trades))
	tracker.AddSkippedRecords(tradesSkipped + marketsSkipped + snapsSkipped)

	slog.Info("feeds_loaded",
		"markets", len(markets),
		"trades", len(trades),
		"snapshots", len(snapshots),
		"records_skipped", tradesSkipped+marketsSkipped+snapsSkipped,
	)

	// Optional trader allowlist from a leaderboard CSV
	var allowlist map[string]string
	if cfg.LeaderboardPath != "" {
		entries, err := ingest.LoadLeaderboard(cfg.LeaderboardPath)
		if err != nil {
			slog.Error("failed to load leaderboard", "error", err)
			os.Exit(1)
		}
		allowlist = make(map[string]string, len(entries))
		for _, e := range entries {
			allowlist[e.TraderID] = e.Name
		}
		slog.Info("leaderboard_loaded", "traders", len(allowlist))
	}

	// Run the batch
	result, err := pipeline.Run(ctx, cfg, pipeline.Inputs{
		Markets:   markets,
		Trades:    trades,
		Snapshots: snapshots,
		Allowlist: allowlist,
	}, tracker)
	if err != nil {
		slog.Error("batch_failed", "error", err)
		os.Exit(1)
	}

	// Write the ranked profile table
	if err := output.WriteCSV(cfg.OutputPath, result.Profiles); err != nil {
		slog.Error("failed to write output", "error", err)
		os.Exit(1)
	}

	snap := tracker.Snapshot()
	slog.Info("run_complete",
		"run_id", snap.RunID,
		"duration", snap.Duration.Round(time.Millisecond),
		"markets_processed", snap.MarketsProcessed,
		"markets_skipped", snap.MarketsSkipped,
		"records_skipped", snap.RecordsSkipped,
		"traders_evaluated", snap.TradersEvaluated,
		"traders_flagged", snap.TradersFlagged,
		"empty_result", result.Empty,
		"output", cfg.OutputPath,
	)

	// Optionally browse the results in the TUI
	if cfg.EnableTUI {
		app := ui.NewApp(result, snap)

		go func() {
			<-ctx.Done()
			app.Stop()
		}()

		if err := app.Run(); err != nil {
			slog.Error("tui_error", "error", err)
			os.Exit(1)
		}
	}
}

// setupLogger creates a structured logger with the specified level.
// Format: 2025-01-04 14:32:01 [INFO]  message key=value
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format("2006-01-02 15:04:05"))
				}
			}
			return a
		},
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}
