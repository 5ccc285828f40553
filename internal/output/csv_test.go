package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/polyedge/engine/internal/store"
)

func TestWriteCSVStableColumns(t *testing.T) {
	p := store.NewTraderProfile("0xabc")
	p.Volume = decimal.NewFromFloat(1234.5)
	p.PrimaryAction = "NO"
	p.LastOffsetH = 5.25
	p.WindowHours = 48
	p.TradeCount = 7
	p.Score = 9.1234
	p.Flagged = true

	path := filepath.Join(t.TempDir(), "reports", "profiles.csv")
	if err := WriteCSV(path, []*store.TraderProfile{p}); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse output: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected header plus 1 row, got %d rows", len(rows))
	}

	wantHeader := []string{
		"trader_id", "total_volume", "primary_position",
		"last_trade_offset_hours", "trading_window_hours",
		"trade_count", "sophistication_score", "flagged",
	}
	for i, col := range wantHeader {
		if rows[0][i] != col {
			t.Errorf("Header column %d = %q, want %q", i, rows[0][i], col)
		}
	}

	row := rows[1]
	if row[0] != "0xabc" || row[1] != "1234.50" || row[2] != "NO" || row[7] != "true" {
		t.Errorf("Unexpected row contents: %v", row)
	}
	if row[6] != "9.1234" {
		t.Errorf("Expected fixed-precision score, got %q", row[6])
	}
}

func TestWriteCSVEmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.csv")
	if err := WriteCSV(path, nil); err != nil {
		t.Fatalf("WriteCSV failed on empty table: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if len(data) == 0 {
		t.Error("Expected header row even with no profiles")
	}
}
