package store

import "fmt"

// MalformedRecordError marks a raw feed record missing a required field or
// carrying an unparseable value. Such records are skipped and counted, never
// fatal to the batch.
type MalformedRecordError struct {
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: field %q: %s", e.Field, e.Reason)
}

// MissingMarketDataError marks a market that cannot be scored because it lacks
// resolution data or position snapshots. The market is skipped and the batch
// continues.
type MissingMarketDataError struct {
	MarketID string
	Reason   string
}

func (e *MissingMarketDataError) Error() string {
	return fmt.Sprintf("missing market data for %s: %s", e.MarketID, e.Reason)
}

// AggregationConflictError is returned when two partial profiles for the same
// trader disagree on an immutable identity field. The merge fails rather than
// silently picking a side.
type AggregationConflictError struct {
	TraderID string
	Field    string
	A, B     string
}

func (e *AggregationConflictError) Error() string {
	return fmt.Sprintf("aggregation conflict for trader %s: %s %q vs %q", e.TraderID, e.Field, e.A, e.B)
}
