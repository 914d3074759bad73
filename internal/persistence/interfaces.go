// Package persistence defines optional storage for completed backtest
// results. The engine core performs no I/O; these repositories are a
// layer callers may wire on top when sweep results need to outlive the
// process.
package persistence

import (
	"context"
	"time"

	"github.com/quantlab/backrun/internal/domain"
)

// ResultSummary is the flat, queryable projection of a BacktestResult.
// Full trade ledgers and equity curves stay in artifacts; the database
// row carries what sweep comparisons filter and sort on.
type ResultSummary struct {
	ID               int64     `json:"id" db:"id"`
	JobID            string    `json:"job_id" db:"job_id"`
	Symbol           string    `json:"symbol" db:"symbol"`
	Strategy         string    `json:"strategy" db:"strategy"`
	StartTime        time.Time `json:"start_time" db:"start_time"`
	EndTime          time.Time `json:"end_time" db:"end_time"`
	InitialCapital   float64   `json:"initial_capital" db:"initial_capital"`
	FinalCapital     float64   `json:"final_capital" db:"final_capital"`
	TotalTrades      int       `json:"total_trades" db:"total_trades"`
	WinRate          float64   `json:"win_rate" db:"win_rate"`
	MaxDrawdown      float64   `json:"max_drawdown" db:"max_drawdown"`
	SharpeRatio      float64   `json:"sharpe_ratio" db:"sharpe_ratio"`
	AnnualizedReturn float64   `json:"annualized_return" db:"annualized_return"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// SummaryFromResult projects a completed result onto its summary row.
func SummaryFromResult(res *domain.BacktestResult) ResultSummary {
	return ResultSummary{
		JobID:            res.JobID,
		Symbol:           res.Symbol,
		Strategy:         res.Strategy,
		StartTime:        res.StartTime,
		EndTime:          res.EndTime,
		InitialCapital:   res.InitialCapital,
		FinalCapital:     res.FinalCapital,
		TotalTrades:      res.TotalTrades,
		WinRate:          res.WinRate,
		MaxDrawdown:      res.MaxDrawdown,
		SharpeRatio:      res.Metrics["sharpe_ratio"],
		AnnualizedReturn: res.Metrics["annualized_return"],
	}
}

// ResultsRepo stores and queries backtest result summaries.
type ResultsRepo interface {
	// Insert stores one summary row.
	Insert(ctx context.Context, summary ResultSummary) error

	// InsertBatch stores many summaries atomically.
	InsertBatch(ctx context.Context, summaries []ResultSummary) error

	// ListByStrategy returns summaries for a strategy, newest first.
	ListByStrategy(ctx context.Context, strategy string, limit int) ([]ResultSummary, error)

	// ListBySymbol returns summaries for a symbol, newest first.
	ListBySymbol(ctx context.Context, symbol string, limit int) ([]ResultSummary, error)
}
