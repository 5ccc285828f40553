package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}

func TestReadRecordsJSONArray(t *testing.T) {
	path := writeTemp(t, "feed.json", `[{"a": 1}, {"b": 2}]`)

	records, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("Expected 2 records, got %d", len(records))
	}
}

func TestReadRecordsNDJSON(t *testing.T) {
	path := writeTemp(t, "feed.ndjson", `{"a": 1}

{"b": 2}
not json
{"c": 3}
`)

	records, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords failed: %v", err)
	}
	// Blank and unparseable lines are skipped, not fatal
	if len(records) != 3 {
		t.Errorf("Expected 3 records, got %d", len(records))
	}
}

func TestReadRecordsEmptyFile(t *testing.T) {
	path := writeTemp(t, "empty.json", "  \n")

	records, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords failed on empty feed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}

func TestLoadLeaderboard(t *testing.T) {
	path := writeTemp(t, "leaderboard.csv", `Rank,Name,Profile URL
1,whale_hunter,https://polymarket.com/profile/0xaaa111
2,quiet_money,https://polymarket.com/profile/0xbbb222
3,,0xccc333
`)

	entries, err := LoadLeaderboard(path)
	if err != nil {
		t.Fatalf("LoadLeaderboard failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}

	if entries[0].Rank != 1 || entries[0].Name != "whale_hunter" || entries[0].TraderID != "0xaaa111" {
		t.Errorf("Unexpected first entry: %+v", entries[0])
	}
	if entries[2].TraderID != "0xccc333" {
		t.Errorf("Bare wallet column should pass through, got %q", entries[2].TraderID)
	}
}
