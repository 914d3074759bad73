package artifacts

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/backrun/internal/domain"
)

func sampleResults() []*domain.BacktestResult {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	return []*domain.BacktestResult{
		{
			JobID:          "11111111-aaaa-bbbb-cccc-222222222222",
			Symbol:         "BTCUSD",
			Strategy:       "sma_cross_10_30",
			StartTime:      start,
			EndTime:        start.Add(24 * time.Hour),
			InitialCapital: 10000,
			FinalCapital:   11000,
			TotalTrades:    4,
			WinRate:        0.75,
			MaxDrawdown:    0.05,
			Metrics:        map[string]float64{"sharpe_ratio": 1.4},
		},
		{
			JobID:          "x",
			Symbol:         "ETHUSD",
			Strategy:       "sma_cross_5_20",
			InitialCapital: 10000,
			FinalCapital:   9500,
			Metrics:        map[string]float64{},
		},
	}
}

func TestWriteResultsJSONL(t *testing.T) {
	w := NewWriter(t.TempDir())
	require.NoError(t, w.WriteResults(sampleResults()))

	f, err := os.Open(filepath.Join(w.OutputDir(), "results.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var decoded []domain.BacktestResult
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var res domain.BacktestResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &res))
		decoded = append(decoded, res)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, decoded, 2)
	assert.Equal(t, "BTCUSD", decoded[0].Symbol)
	assert.InDelta(t, 11000, decoded[0].FinalCapital, 1e-9)
	assert.Equal(t, "ETHUSD", decoded[1].Symbol)
}

func TestWriteSummaryMarkdown(t *testing.T) {
	w := NewWriter(t.TempDir())
	require.NoError(t, w.WriteSummary(sampleResults()))

	raw, err := os.ReadFile(filepath.Join(w.OutputDir(), "summary.md"))
	require.NoError(t, err)
	content := string(raw)

	assert.Contains(t, content, "| 11111111 |", "job ids are shortened")
	assert.Contains(t, content, "BTCUSD")
	assert.Contains(t, content, "sma_cross_10_30")
	assert.Contains(t, content, "10.00%", "total return from capital delta")
	assert.Contains(t, content, "-5.00%", "losing runs keep their sign")
}

func TestWriterUsesDatedDirectory(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root)

	assert.Equal(t, filepath.Join(root, time.Now().Format("2006-01-02")), w.OutputDir())
}
