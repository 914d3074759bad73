package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantlab/backrun/internal/domain"
)

func TestSummaryFromResult(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	res := &domain.BacktestResult{
		JobID:          "job-1",
		Symbol:         "BTCUSD",
		Strategy:       "sma_cross_10_30",
		StartTime:      start,
		EndTime:        start.Add(48 * time.Hour),
		InitialCapital: 10000,
		FinalCapital:   10800,
		TotalTrades:    6,
		WinRate:        0.5,
		MaxDrawdown:    0.08,
		Metrics: map[string]float64{
			"sharpe_ratio":      1.2,
			"annualized_return": 0.35,
		},
	}

	summary := SummaryFromResult(res)

	assert.Equal(t, "job-1", summary.JobID)
	assert.Equal(t, "BTCUSD", summary.Symbol)
	assert.Equal(t, 6, summary.TotalTrades)
	assert.InDelta(t, 1.2, summary.SharpeRatio, 1e-9)
	assert.InDelta(t, 0.35, summary.AnnualizedReturn, 1e-9)
	assert.InDelta(t, 0.08, summary.MaxDrawdown, 1e-9)
}

func TestSummaryFromResultMissingMetrics(t *testing.T) {
	summary := SummaryFromResult(&domain.BacktestResult{JobID: "job-2"})

	assert.Zero(t, summary.SharpeRatio)
	assert.Zero(t, summary.AnnualizedReturn)
}
