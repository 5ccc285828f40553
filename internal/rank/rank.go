// Package rank scores trader profiles and orders them for review.
package rank

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/polyedge/engine/internal/store"
)

// Score weights. Repeated LateEntry+ContrarianWin co-occurrence dominates;
// ROI and volume refine the ordering among traders with equal pattern counts.
const (
	coOccurrenceWeight = 3.0
	roiWeight          = 2.0
	roiCap             = 10.0
)

// Thresholds holds the flagging rules applied to every profile.
type Thresholds struct {
	// MinCoOccurrence is the minimum number of distinct markets where
	// LateEntry and ContrarianWin co-occur
	MinCoOccurrence int

	// MinROI is the minimum return on staked amount
	MinROI float64

	// MinVolume is the minimum total traded volume
	MinVolume float64
}

// Score computes the sophistication score for one profile. Deterministic:
// equal profiles always produce equal scores.
func Score(p *store.TraderProfile) float64 {
	roi := p.ROI
	if roi > roiCap {
		roi = roiCap
	}
	if roi < -1 {
		roi = -1
	}

	volume := p.Volume.InexactFloat64()
	if volume < 0 {
		volume = 0
	}

	return coOccurrenceWeight*float64(p.CoOccurrence) +
		roiWeight*roi +
		math.Log10(1+volume) +
		p.WinRate
}

// Rank scores and flags every profile, then orders them by descending score
// with a stable tie-break on trader ID. No trader is dropped: unflagged
// profiles stay in the output table for auditability.
func Rank(profiles []*store.TraderProfile, th Thresholds) []*store.TraderProfile {
	minVolume := decimal.NewFromFloat(th.MinVolume)

	for _, p := range profiles {
		p.Score = Score(p)
		p.Flagged = p.CoOccurrence >= th.MinCoOccurrence &&
			p.ROI >= th.MinROI &&
			p.Volume.GreaterThanOrEqual(minVolume)
	}

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Score != profiles[j].Score {
			return profiles[i].Score > profiles[j].Score
		}
		return profiles[i].TraderID < profiles[j].TraderID
	})

	return profiles
}
