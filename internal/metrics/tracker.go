// Package metrics tracks run metadata and exposes Prometheus counters.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunSnapshot is a point-in-time view of one batch run's counters. Nothing is
// dropped silently: every skipped record and market shows up here.
type RunSnapshot struct {
	RunID            string
	StartedAt        time.Time
	Duration         time.Duration
	TradesNormalized int64
	RecordsSkipped   int64
	TradesDeduped    int64
	DuplicatesFound  int64
	MarketsTotal     int64
	MarketsProcessed int64
	MarketsSkipped   int64
	SignalsByKind    map[string]int64
	TradersEvaluated int64
	TradersFlagged   int64
}

// RunTracker provides thread-safe tracking of a single batch run. It is
// created at batch start and discarded at batch end.
type RunTracker struct {
	mu               sync.RWMutex
	runID            string
	startTime        time.Time
	tradesNormalized int64
	recordsSkipped   int64
	tradesDeduped    int64
	duplicatesFound  int64
	marketsTotal     int64
	marketsProcessed int64
	marketsSkipped   int64
	signalsByKind    map[string]int64
	tradersEvaluated int64
	tradersFlagged   int64

	registry *prometheus.Registry

	tradesCounter   *prometheus.CounterVec
	marketsCounter  *prometheus.CounterVec
	signalsCounter  *prometheus.CounterVec
	flaggedTraders  prometheus.Counter
	evaluatedGauge  prometheus.Gauge
	runDurationHist prometheus.Histogram
}

// NewRunTracker creates a tracker for a new batch run with a fresh run ID.
func NewRunTracker() *RunTracker {
	registry := prometheus.NewRegistry()

	t := &RunTracker{
		runID:         uuid.NewString(),
		startTime:     time.Now(),
		signalsByKind: make(map[string]int64),
		registry:      registry,

		tradesCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyedge_trades_total",
				Help: "Trade records by processing outcome",
			},
			[]string{"outcome"},
		),
		marketsCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyedge_markets_total",
				Help: "Markets by processing outcome",
			},
			[]string{"outcome"},
		),
		signalsCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyedge_signals_total",
				Help: "Signals emitted by kind",
			},
			[]string{"kind"},
		),
		flaggedTraders: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "polyedge_flagged_traders_total",
				Help: "Traders flagged for review",
			},
		),
		evaluatedGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "polyedge_traders_evaluated",
				Help: "Traders evaluated in the current run",
			},
		),
		runDurationHist: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "polyedge_run_duration_seconds",
				Help:    "Batch run duration",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
	}

	registry.MustRegister(
		t.tradesCounter,
		t.marketsCounter,
		t.signalsCounter,
		t.flaggedTraders,
		t.evaluatedGauge,
		t.runDurationHist,
	)

	return t
}

// RunID returns the unique identifier of this batch run.
func (t *RunTracker) RunID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.runID
}

// AddNormalized records successfully normalized trade records.
func (t *RunTracker) AddNormalized(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tradesNormalized += int64(n)
	t.tradesCounter.WithLabelValues("normalized").Add(float64(n))
}

// AddSkippedRecords records malformed records skipped at the normalizer.
func (t *RunTracker) AddSkippedRecords(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recordsSkipped += int64(n)
	t.tradesCounter.WithLabelValues("skipped").Add(float64(n))
}

// SetDeduped records the size of the deduplicated trade set and how many
// raw trades collapsed away.
func (t *RunTracker) SetDeduped(deduped, duplicates int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tradesDeduped = int64(deduped)
	t.duplicatesFound = int64(duplicates)
	t.tradesCounter.WithLabelValues("duplicate").Add(float64(duplicates))
}

// SetMarketsTotal records how many markets the batch saw.
func (t *RunTracker) SetMarketsTotal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.marketsTotal = int64(n)
}

// IncrementMarketProcessed records one market scored.
func (t *RunTracker) IncrementMarketProcessed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.marketsProcessed++
	t.marketsCounter.WithLabelValues("processed").Inc()
}

// IncrementMarketSkipped records one market skipped for missing data.
func (t *RunTracker) IncrementMarketSkipped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.marketsSkipped++
	t.marketsCounter.WithLabelValues("skipped").Inc()
}

// IncrementSignal records a signal emission by kind.
func (t *RunTracker) IncrementSignal(kind string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.signalsByKind[kind]++
	t.signalsCounter.WithLabelValues(kind).Inc()
}

// SetTraderCounts records the ranking outcome.
func (t *RunTracker) SetTraderCounts(evaluated, flagged int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tradersEvaluated = int64(evaluated)
	t.tradersFlagged = int64(flagged)
	t.evaluatedGauge.Set(float64(evaluated))
	t.flaggedTraders.Add(float64(flagged))
}

// ObserveRunDone records the run duration.
func (t *RunTracker) ObserveRunDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runDurationHist.Observe(time.Since(t.startTime).Seconds())
}

// Snapshot returns a point-in-time copy of the run counters.
func (t *RunTracker) Snapshot() RunSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	signalsCopy := make(map[string]int64, len(t.signalsByKind))
	for k, v := range t.signalsByKind {
		signalsCopy[k] = v
	}

	return RunSnapshot{
		RunID:            t.runID,
		StartedAt:        t.startTime,
		Duration:         time.Since(t.startTime),
		TradesNormalized: t.tradesNormalized,
		RecordsSkipped:   t.recordsSkipped,
		TradesDeduped:    t.tradesDeduped,
		DuplicatesFound:  t.duplicatesFound,
		MarketsTotal:     t.marketsTotal,
		MarketsProcessed: t.marketsProcessed,
		MarketsSkipped:   t.marketsSkipped,
		SignalsByKind:    signalsCopy,
		TradersEvaluated: t.tradersEvaluated,
		TradersFlagged:   t.tradersFlagged,
	}
}

// Serve exposes the run's Prometheus registry on /metrics until the context
// is cancelled. Errors are logged, never fatal to the run.
func (t *RunTracker) Serve(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics_server_started", "port", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Warn("metrics_server_error", "error", err)
	}
}
