package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/polyedge/engine/internal/store"
)

// ReadRecords reads raw feed records from a file. Accepts either a JSON array
// of objects or newline-delimited JSON objects.
func ReadRecords(path string) ([]map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed %s: %w", path, err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var records []map[string]interface{}
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("failed to decode feed %s: %w", path, err)
		}
		return records, nil
	}

	// Newline-delimited JSON
	var records []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec map[string]interface{}
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			slog.Debug("feed_line_skipped", "path", path, "line", line, "error", err)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan feed %s: %w", path, err)
	}

	return records, nil
}

// LoadTrades reads and normalizes the trade feed. Returns the canonical
// trades and the count of malformed records skipped.
func LoadTrades(path string) ([]store.Trade, int, error) {
	records, err := ReadRecords(path)
	if err != nil {
		return nil, 0, err
	}
	trades, skipped := NormalizeTrades(records)
	return trades, skipped, nil
}

// LoadMarkets reads and normalizes the market feed.
func LoadMarkets(path string) ([]store.Market, int, error) {
	records, err := ReadRecords(path)
	if err != nil {
		return nil, 0, err
	}
	markets, skipped := NormalizeMarkets(records)
	return markets, skipped, nil
}

// LoadSnapshots reads and normalizes the position snapshot feed.
func LoadSnapshots(path string) ([]store.PositionSnapshot, int, error) {
	records, err := ReadRecords(path)
	if err != nil {
		return nil, 0, err
	}
	snaps, skipped := NormalizeSnapshots(records)
	return snaps, skipped, nil
}

// LeaderboardEntry is one row of an optional trader allowlist CSV.
type LeaderboardEntry struct {
	Rank     int
	Name     string
	TraderID string
}

// LoadLeaderboard reads a leaderboard CSV (rank, name, trader id). When
// present, scoring is restricted to the listed traders and their display
// names are attached to profiles.
func LoadLeaderboard(path string) ([]LeaderboardEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open leaderboard %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var entries []LeaderboardEntry
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read leaderboard %s: %w", path, err)
		}
		row++

		if len(record) < 3 {
			continue
		}
		// Skip the header row
		if row == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "rank") {
			continue
		}

		traderID := strings.TrimSpace(record[2])
		if traderID == "" {
			continue
		}
		// Profile URLs from the scraper carry the wallet as the last segment
		if idx := strings.LastIndex(traderID, "/"); idx >= 0 {
			traderID = traderID[idx+1:]
		}

		entry := LeaderboardEntry{
			Name:     strings.TrimSpace(record[1]),
			TraderID: traderID,
		}
		fmt.Sscanf(strings.TrimSpace(record[0]), "%d", &entry.Rank)
		entries = append(entries, entry)
	}

	return entries, nil
}
