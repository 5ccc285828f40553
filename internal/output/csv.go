// Package output writes the ranked profile table for downstream tooling.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/polyedge/engine/internal/store"
)

// header defines the stable column order. Downstream tooling depends on it;
// do not reorder.
var header = []string{
	"trader_id",
	"total_volume",
	"primary_position",
	"last_trade_offset_hours",
	"trading_window_hours",
	"trade_count",
	"sophistication_score",
	"flagged",
}

// WriteCSV writes profiles to path in ranked order, creating parent
// directories as needed.
func WriteCSV(path string, profiles []*store.TraderProfile) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, p := range profiles {
		row := []string{
			p.TraderID,
			p.Volume.StringFixed(2),
			p.PrimaryAction,
			strconv.FormatFloat(p.LastOffsetH, 'f', 2, 64),
			strconv.FormatFloat(p.WindowHours, 'f', 2, 64),
			strconv.Itoa(p.TradeCount),
			strconv.FormatFloat(p.Score, 'f', 4, 64),
			strconv.FormatBool(p.Flagged),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", p.TraderID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	return nil
}
