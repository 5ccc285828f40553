package rank

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/polyedge/engine/internal/store"
)

func profileWith(id string, coOccurrence int, roi float64, volume int64, winRate float64) *store.TraderProfile {
	p := store.NewTraderProfile(id)
	p.CoOccurrence = coOccurrence
	p.ROI = roi
	p.Volume = decimal.NewFromInt(volume)
	p.WinRate = winRate
	return p
}

func TestRepeatedPatternIsFlagged(t *testing.T) {
	th := Thresholds{MinCoOccurrence: 2, MinROI: 0, MinVolume: 0}

	profiles := Rank([]*store.TraderProfile{
		profileWith("0xaaa", 3, 1.5, 10000, 0.8),
		profileWith("0xbbb", 1, 2.0, 50000, 0.9),
	}, th)

	byID := make(map[string]*store.TraderProfile)
	for _, p := range profiles {
		byID[p.TraderID] = p
	}

	if !byID["0xaaa"].Flagged {
		t.Error("Expected trader with 3 co-occurrences to be flagged")
	}
	if byID["0xbbb"].Flagged {
		t.Error("Expected trader with 1 co-occurrence to stay unflagged despite high ROI")
	}
}

func TestUnflaggedProfilesAreKept(t *testing.T) {
	th := Thresholds{MinCoOccurrence: 2, MinROI: 0.5, MinVolume: 1000}

	profiles := Rank([]*store.TraderProfile{
		profileWith("0xaaa", 0, -0.5, 100, 0.1),
		profileWith("0xbbb", 5, 2.0, 100000, 0.9),
	}, th)

	if len(profiles) != 2 {
		t.Fatalf("Expected all profiles retained, got %d", len(profiles))
	}
	if profiles[0].TraderID != "0xbbb" {
		t.Errorf("Expected flagged trader ranked first, got %s", profiles[0].TraderID)
	}
}

func TestOrderingIsDeterministic(t *testing.T) {
	make3 := func() []*store.TraderProfile {
		return []*store.TraderProfile{
			profileWith("0xccc", 2, 1.0, 5000, 0.7),
			profileWith("0xaaa", 2, 1.0, 5000, 0.7),
			profileWith("0xbbb", 2, 1.0, 5000, 0.7),
		}
	}

	th := Thresholds{MinCoOccurrence: 2}
	first := Rank(make3(), th)
	second := Rank(make3(), th)

	want := []string{"0xaaa", "0xbbb", "0xccc"}
	for i, id := range want {
		if first[i].TraderID != id {
			t.Errorf("Tied scores should break on trader ID: position %d got %s, want %s", i, first[i].TraderID, id)
		}
		if first[i].TraderID != second[i].TraderID {
			t.Errorf("Ranking not deterministic at position %d: %s vs %s", i, first[i].TraderID, second[i].TraderID)
		}
	}
}

func TestExtremeROIIsCapped(t *testing.T) {
	runaway := profileWith("0xaaa", 1, 500.0, 1000, 0.5)
	capped := profileWith("0xbbb", 1, 10.0, 1000, 0.5)

	if Score(runaway) != Score(capped) {
		t.Errorf("ROI above cap should not raise score: %v vs %v", Score(runaway), Score(capped))
	}

	deepLoss := profileWith("0xccc", 1, -50.0, 1000, 0.5)
	floor := profileWith("0xddd", 1, -1.0, 1000, 0.5)
	if Score(deepLoss) != Score(floor) {
		t.Errorf("ROI below -1 should clamp: %v vs %v", Score(deepLoss), Score(floor))
	}
}

func TestCoOccurrenceDominatesScore(t *testing.T) {
	pattern := profileWith("0xaaa", 4, 0.0, 100, 0.5)
	lucky := profileWith("0xbbb", 0, 3.0, 100, 1.0)

	if Score(pattern) <= Score(lucky) {
		t.Errorf("Repeated pattern should outscore one lucky streak: %v vs %v", Score(pattern), Score(lucky))
	}
}
