package ingest

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/polyedge/engine/internal/store"
)

// Settled-price bounds for inferring a winner on binary markets. A market
// whose outcome prices sit at ~1 and ~0 is treated as resolved even when the
// feed omits an explicit resolved outcome.
const (
	settledHi = 0.98
	settledLo = 0.02
)

var (
	marketIDAliases  = []string{"conditionId", "condition_id", "id", "market_id", "marketId"}
	questionAliases  = []string{"question", "title"}
	endTimeAliases   = []string{"resolution_time", "resolutionTime", "endDate", "end_date", "closedTime", "closed_time"}
	winnerAliases    = []string{"resolved_outcome", "resolvedOutcome", "winner"}
	snapVolumeAliase = []string{"volumes", "outcome_volumes", "outcomeVolumes"}
)

// NormalizeMarket converts one raw market record into a canonical Market.
// A market lacking an identifier or resolution timestamp is malformed; a
// market lacking a winner is kept but marked unresolved.
func NormalizeMarket(rec map[string]interface{}) (store.Market, error) {
	id := pickString(rec, marketIDAliases...)
	if id == "" {
		return store.Market{}, &store.MalformedRecordError{Field: "market_id", Reason: "missing"}
	}

	resTime, ok := pickTime(rec, endTimeAliases...)
	if !ok {
		return store.Market{}, &store.MalformedRecordError{Field: "resolution_time", Reason: "missing or unparseable"}
	}

	m := store.Market{
		ID:             id,
		Question:       pickString(rec, questionAliases...),
		ResolutionTime: resTime,
		OutcomeVolumes: pickVolumes(rec, snapVolumeAliase...),
	}

	if w := NormalizeOutcome(pickString(rec, winnerAliases...)); w != "" {
		m.Winner = w
		m.Resolved = true
		return m, nil
	}

	if w, ok := inferWinner(rec); ok {
		m.Winner = w
		m.Resolved = true
	}

	return m, nil
}

// NormalizeMarkets converts a batch of raw market records, skipping and
// counting malformed ones.
func NormalizeMarkets(records []map[string]interface{}) ([]store.Market, int) {
	markets := make([]store.Market, 0, len(records))
	skipped := 0

	for _, rec := range records {
		m, err := NormalizeMarket(rec)
		if err != nil {
			skipped++
			slog.Debug("market_record_skipped", "error", err)
			continue
		}
		markets = append(markets, m)
	}

	return markets, skipped
}

// NormalizeSnapshot converts one raw position snapshot record.
func NormalizeSnapshot(rec map[string]interface{}) (store.PositionSnapshot, error) {
	id := pickString(rec, marketIDAliases...)
	if id == "" {
		return store.PositionSnapshot{}, &store.MalformedRecordError{Field: "market_id", Reason: "missing"}
	}

	ts, ok := pickTime(rec, timeAliases...)
	if !ok {
		return store.PositionSnapshot{}, &store.MalformedRecordError{Field: "timestamp", Reason: "missing or unparseable"}
	}

	vols := pickVolumes(rec, snapVolumeAliase...)
	if len(vols) == 0 {
		return store.PositionSnapshot{}, &store.MalformedRecordError{Field: "volumes", Reason: "missing or empty"}
	}

	return store.PositionSnapshot{MarketID: id, Timestamp: ts, Volumes: vols}, nil
}

// NormalizeSnapshots converts a batch of raw snapshot records, skipping and
// counting malformed ones.
func NormalizeSnapshots(records []map[string]interface{}) ([]store.PositionSnapshot, int) {
	snaps := make([]store.PositionSnapshot, 0, len(records))
	skipped := 0

	for _, rec := range records {
		s, err := NormalizeSnapshot(rec)
		if err != nil {
			skipped++
			slog.Debug("snapshot_record_skipped", "error", err)
			continue
		}
		snaps = append(snaps, s)
	}

	return snaps, skipped
}

// inferWinner infers the resolved outcome of a binary market from settled
// outcome prices (~1 and ~0).
func inferWinner(rec map[string]interface{}) (string, bool) {
	outcomes := pickStringList(rec, "outcomes")
	prices := pickFloatList(rec, "outcomePrices", "outcome_prices")

	if len(outcomes) != 2 || len(prices) != 2 {
		return "", false
	}

	settled := (prices[0] >= settledHi && prices[1] <= settledLo) ||
		(prices[1] >= settledHi && prices[0] <= settledLo)
	if !settled {
		return "", false
	}

	if prices[0] > prices[1] {
		return NormalizeOutcome(outcomes[0]), true
	}
	return NormalizeOutcome(outcomes[1]), true
}

// pickVolumes extracts a per-outcome volume map with normalized outcome keys.
func pickVolumes(rec map[string]interface{}, keys ...string) map[string]decimal.Decimal {
	for _, k := range keys {
		raw, ok := rec[k].(map[string]interface{})
		if !ok {
			continue
		}
		vols := make(map[string]decimal.Decimal, len(raw))
		for outcome, v := range raw {
			wrapped := map[string]interface{}{"v": v}
			if d, ok := pickDecimal(wrapped, "v"); ok {
				vols[NormalizeOutcome(outcome)] = d
			}
		}
		if len(vols) > 0 {
			return vols
		}
	}
	return nil
}

// pickStringList extracts a list of strings, accepting both JSON arrays and
// the stringified arrays some feeds emit.
func pickStringList(rec map[string]interface{}, keys ...string) []string {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case []interface{}:
			out := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		case string:
			var out []string
			if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &out); err == nil && len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

// pickFloatList extracts a list of floats, accepting numbers, numeric strings,
// and stringified arrays.
func pickFloatList(rec map[string]interface{}, keys ...string) []float64 {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case []interface{}:
			out := make([]float64, 0, len(v))
			for _, item := range v {
				switch n := item.(type) {
				case float64:
					out = append(out, n)
				case string:
					wrapped := map[string]interface{}{"v": n}
					if d, ok := pickDecimal(wrapped, "v"); ok {
						out = append(out, d.InexactFloat64())
					}
				}
			}
			if len(out) > 0 {
				return out
			}
		case string:
			var raw []string
			if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &raw); err == nil {
				out := make([]float64, 0, len(raw))
				for _, s := range raw {
					wrapped := map[string]interface{}{"v": s}
					if d, ok := pickDecimal(wrapped, "v"); ok {
						out = append(out, d.InexactFloat64())
					}
				}
				if len(out) > 0 {
					return out
				}
			}
		}
	}
	return nil
}
