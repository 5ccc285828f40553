// Package store provides the canonical data model shared by the pipeline.
package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market represents a prediction market with its resolution data.
// Immutable once resolved.
type Market struct {
	// ID is the market/condition identifier
	ID string

	// Question is the human-readable market question
	Question string

	// ResolutionTime is when the market resolved (or its close horizon)
	ResolutionTime time.Time

	// Resolved reports whether a winning outcome is known
	Resolved bool

	// Winner is the resolved outcome (e.g. "YES" or "NO"), empty if unresolved
	Winner string

	// OutcomeVolumes is the total volume per outcome at resolution
	OutcomeVolumes map[string]decimal.Decimal
}

// Trade is a single normalized bet by one trader in one market.
type Trade struct {
	// ID is a unique identifier for this trade record
	ID string

	// MarketID is the market/condition identifier
	MarketID string

	// TraderID is the wallet or account that placed the trade
	TraderID string

	// Outcome is the side chosen (e.g. "YES" or "NO")
	Outcome string

	// Amount is the monetary stake or share quantity
	Amount decimal.Decimal

	// Timestamp is when the trade occurred
	Timestamp time.Time

	// PositionSize is the resulting position, zero if not reported
	PositionSize decimal.Decimal

	// DuplicateCount is how many raw trades collapsed into this record.
	// Zero and one both mean "no duplicates seen".
	DuplicateCount int
}

// PositionSnapshot is a per-market aggregate of outcome volumes at a given
// time, used to infer the majority side at the moment of a trade.
type PositionSnapshot struct {
	MarketID  string
	Timestamp time.Time
	Volumes   map[string]decimal.Decimal
}

// Signal kinds emitted by the pipeline.
const (
	SignalLateEntry     = "LATE_ENTRY"
	SignalContrarianWin = "CONTRARIAN_WIN"
	SignalHedge         = "HEDGE"
	SignalDuplicate     = "DUPLICATE"
)

// Signal is a typed fact attached to a trader within a market.
type Signal struct {
	Kind     string
	MarketID string
	TraderID string
	Evidence map[string]interface{} // extra context (offsets, per-side amounts)
}

// MarketRecord holds one trader's per-market stats after signal computation.
// All fields combine associatively so partial profiles merge in any order.
type MarketRecord struct {
	MarketID   string
	FirstTrade time.Time
	LastTrade  time.Time
	TradeCount int
	Volume     decimal.Decimal

	// SideVolumes is the trader's volume per outcome within the market
	SideVolumes map[string]decimal.Decimal

	// Position is the side holding the greater share of the trader's volume
	Position string

	// Winner is the market's resolved outcome, carried for merge recomputation
	Winner string

	// Won reports whether Position matched the resolved outcome
	Won bool

	// PnL is the profit or loss attributed to this market
	PnL decimal.Decimal

	// Staked is the total amount the trader put at risk in this market
	Staked decimal.Decimal

	// LastOffsetHours is resolution time minus last trade, in hours
	LastOffsetHours float64

	// WindowHours is last trade minus first trade, in hours
	WindowHours float64

	LateEntry     bool
	ContrarianWin bool
	Hedge         bool
}

// TraderProfile aggregates one trader's activity across all processed markets.
// Built incrementally by the aggregator; finalized fields (ROI, WinRate,
// CoOccurrence, Score, Flagged) are filled in at the end of a run.
type TraderProfile struct {
	TraderID string

	// Name is an optional display name from a leaderboard input
	Name string

	// Records holds per-market stats keyed by market ID
	Records map[string]*MarketRecord

	// SignalCounts tallies signals by kind across markets
	SignalCounts map[string]int

	PnL    decimal.Decimal
	Staked decimal.Decimal
	Volume decimal.Decimal
	Wins   int
	Losses int

	// Finalized fields
	ROI           float64
	WinRate       float64
	CoOccurrence  int     // distinct markets with both LateEntry and ContrarianWin
	TradeCount    int
	LastOffsetH   float64 // closest last-trade offset to resolution, in hours
	WindowHours   float64 // mean trading window across markets, in hours
	PrimaryAction string  // side with the most volume across all markets
	Score         float64
	Flagged       bool
}

// NewTraderProfile creates an empty profile for a trader.
func NewTraderProfile(traderID string) *TraderProfile {
	return &TraderProfile{
		TraderID:     traderID,
		Records:      make(map[string]*MarketRecord),
		SignalCounts: make(map[string]int),
	}
}

// PrimarySide returns the side holding the greatest volume, with a
// lexicographic tie-break for reproducible output.
func PrimarySide(sideVolumes map[string]decimal.Decimal) string {
	var best string
	var bestVol decimal.Decimal
	for side, vol := range sideVolumes {
		switch vol.Cmp(bestVol) {
		case 1:
			best, bestVol = side, vol
		case 0:
			if best == "" || side < best {
				best, bestVol = side, vol
			}
		}
	}
	return best
}
