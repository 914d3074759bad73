// Package data loads historical bars from local files. It is a thin
// adapter in front of the engine: exchange APIs and warehouse queries
// live behind the same Bar schema but outside this repo's core.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/quantlab/backrun/internal/domain"
)

// LoadCSV reads bars from a CSV file with a header row of
// timestamp,open,high,low,close,volume. Timestamps are RFC3339 or unix
// milliseconds. Bars are returned in file order; ordering and
// deduplication are the validator's concern, not the loader's.
func LoadCSV(path string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars file: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV parses bars from any reader in the canonical CSV schema.
func ReadCSV(r io.Reader) ([]domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 6

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse bars csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Skip a header row if present.
	start := 0
	if _, err := strconv.ParseFloat(records[0][1], 64); err != nil {
		start = 1
	}

	bars := make([]domain.Bar, 0, len(records)-start)
	for i := start; i < len(records); i++ {
		bar, err := parseRow(records[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseRow(row []string) (domain.Bar, error) {
	ts, err := parseTimestamp(row[0])
	if err != nil {
		return domain.Bar{}, err
	}

	vals := make([]float64, 5)
	for i, field := range row[1:] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("bad numeric field %q: %w", field, err)
		}
		vals[i] = v
	}

	return domain.Bar{
		Timestamp: ts,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
