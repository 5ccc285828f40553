// Package dedup collapses repeated bets into single annotated trades.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/polyedge/engine/internal/store"
)

// amountPrecision is the number of decimal places amounts are rounded to
// before fingerprinting. Two genuinely distinct trades rounded into the same
// bucket are an accepted false positive, tunable via the bucket width.
const amountPrecision = 2

// Deduper maintains a fingerprint-to-trade table for a single batch run.
// It is created at batch start and discarded at batch end; no state leaks
// across runs.
type Deduper struct {
	mu     sync.Mutex
	bucket time.Duration
	table  map[string]*store.Trade
}

// New creates a Deduper with the given time-bucket width.
func New(bucketWidth time.Duration) *Deduper {
	return &Deduper{
		bucket: bucketWidth,
		table:  make(map[string]*store.Trade),
	}
}

// Fingerprint computes the content hash identifying a trade's economic action:
// same trader, market, outcome, rounded amount, and coarse time bucket.
func Fingerprint(t store.Trade, bucket time.Duration) string {
	slot := t.Timestamp.UnixNano() / int64(bucket)
	key := fmt.Sprintf("%s|%s|%s|%s|%d",
		t.TraderID, t.MarketID, t.Outcome, t.Amount.StringFixed(amountPrecision), slot)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Add records a trade, collapsing it into an existing canonical trade when
// its fingerprint has been seen.
//
// The canonical trade keeps the earliest timestamp seen for the fingerprint
// (ties broken by smaller trade ID), so the final set does not depend on
// input order. A trade carrying a DuplicateCount from a previous run
// contributes its full weight, which makes deduplication idempotent.
func (d *Deduper) Add(t store.Trade) {
	d.mu.Lock()
	defer d.mu.Unlock()

	weight := t.DuplicateCount
	if weight < 1 {
		weight = 1
	}

	fp := Fingerprint(t, d.bucket)
	existing, ok := d.table[fp]
	if !ok {
		canonical := t
		canonical.DuplicateCount = weight
		d.table[fp] = &canonical
		return
	}

	existing.DuplicateCount += weight
	if t.Timestamp.Before(existing.Timestamp) ||
		(t.Timestamp.Equal(existing.Timestamp) && t.ID < existing.ID) {
		existing.Timestamp = t.Timestamp
		existing.ID = t.ID
	}
}

// AddAll records a batch of trades.
func (d *Deduper) AddAll(trades []store.Trade) {
	for _, t := range trades {
		d.Add(t)
	}
}

// Trades returns the deduplicated set ordered by timestamp, then trade ID.
func (d *Deduper) Trades() []store.Trade {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]store.Trade, 0, len(d.table))
	for _, t := range d.table {
		out = append(out, *t)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})

	return out
}

// Signals emits one Duplicate signal per collapsed trade.
func (d *Deduper) Signals() []store.Signal {
	var signals []store.Signal
	for _, t := range d.Trades() {
		if t.DuplicateCount <= 1 {
			continue
		}
		signals = append(signals, store.Signal{
			Kind:     store.SignalDuplicate,
			MarketID: t.MarketID,
			TraderID: t.TraderID,
			Evidence: map[string]interface{}{
				"duplicate_count": t.DuplicateCount,
				"outcome":         t.Outcome,
				"amount":          t.Amount.StringFixed(amountPrecision),
			},
		})
	}
	return signals
}
