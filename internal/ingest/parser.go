// Package ingest normalizes raw feed records into canonical store types.
package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyedge/engine/internal/store"
)

// Field aliases accepted for each required trade field. Feeds originate from
// either the data API or a profile scrape, so names vary per source.
var (
	traderAliases  = []string{"proxyWallet", "maker", "user", "trader_id", "traderId", "wallet"}
	marketAliases  = []string{"conditionId", "condition_id", "market", "market_id", "marketId", "slug"}
	outcomeAliases = []string{"outcome", "position"}
	amountAliases  = []string{"usdcSize", "usdc_size", "size", "amount"}
	timeAliases    = []string{"timestamp", "transactionTime", "transaction_time", "matchTime", "match_time"}
	idAliases      = []string{"id", "trade_id", "tradeId", "transactionHash"}
	posAliases     = []string{"positionSize", "position_size", "resultingPosition"}
)

// NormalizeTrade converts one loosely-typed raw record into a canonical Trade.
// Returns a MalformedRecordError when a required field is absent or unparseable.
func NormalizeTrade(rec map[string]interface{}) (store.Trade, error) {
	trader := pickString(rec, traderAliases...)
	if trader == "" {
		return store.Trade{}, &store.MalformedRecordError{Field: "trader", Reason: "missing"}
	}

	market := pickString(rec, marketAliases...)
	if market == "" {
		return store.Trade{}, &store.MalformedRecordError{Field: "market", Reason: "missing"}
	}

	outcome := NormalizeOutcome(pickString(rec, outcomeAliases...))
	if outcome == "" {
		return store.Trade{}, &store.MalformedRecordError{Field: "outcome", Reason: "missing"}
	}

	amount, ok := pickDecimal(rec, amountAliases...)
	if !ok {
		return store.Trade{}, &store.MalformedRecordError{Field: "amount", Reason: "missing or unparseable"}
	}
	if !amount.IsPositive() {
		return store.Trade{}, &store.MalformedRecordError{Field: "amount", Reason: "must be positive"}
	}

	ts, ok := pickTime(rec, timeAliases...)
	if !ok {
		return store.Trade{}, &store.MalformedRecordError{Field: "timestamp", Reason: "missing or unparseable"}
	}

	trade := store.Trade{
		ID:        pickString(rec, idAliases...),
		MarketID:  market,
		TraderID:  trader,
		Outcome:   outcome,
		Amount:    amount,
		Timestamp: ts,
	}

	if pos, ok := pickDecimal(rec, posAliases...); ok {
		trade.PositionSize = pos
	}

	if trade.ID == "" {
		trade.ID = fmt.Sprintf("%s-%s-%d", market, trader, ts.UnixNano())
	}

	return trade, nil
}

// NormalizeTrades converts a batch of raw records, skipping and counting
// malformed ones. Skips are never fatal to the batch.
func NormalizeTrades(records []map[string]interface{}) ([]store.Trade, int) {
	trades := make([]store.Trade, 0, len(records))
	skipped := 0

	for _, rec := range records {
		trade, err := NormalizeTrade(rec)
		if err != nil {
			skipped++
			slog.Debug("trade_record_skipped", "error", err)
			continue
		}
		trades = append(trades, trade)
	}

	return trades, skipped
}

// NormalizeOutcome canonicalizes an outcome label for cross-source comparison.
func NormalizeOutcome(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// pickString returns the first non-empty string among the aliased keys.
func pickString(rec map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// pickDecimal returns the first parseable amount among the aliased keys.
// Accepts JSON numbers, numeric strings, and json.Number values.
func pickDecimal(rec map[string]interface{}, keys ...string) (decimal.Decimal, bool) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case float64:
			return decimal.NewFromFloat(val), true
		case json.Number:
			if d, err := decimal.NewFromString(val.String()); err == nil {
				return d, true
			}
		case string:
			if d, err := decimal.NewFromString(strings.TrimSpace(val)); err == nil {
				return d, true
			}
		}
	}
	return decimal.Decimal{}, false
}

// pickTime returns the first parseable timestamp among the aliased keys.
func pickTime(rec map[string]interface{}, keys ...string) (time.Time, bool) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case float64:
			if t, ok := unixTime(int64(val)); ok {
				return t, true
			}
		case json.Number:
			if n, err := val.Int64(); err == nil {
				if t, ok := unixTime(n); ok {
					return t, true
				}
			}
		case string:
			if t, ok := ParseTimestamp(val); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// ParseTimestamp tries unix seconds/milliseconds and common layouts.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return unixTime(n)
	}

	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05.000Z",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}

// unixTime interprets n as unix seconds, or milliseconds when too large.
func unixTime(n int64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	if n > 1e12 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}
