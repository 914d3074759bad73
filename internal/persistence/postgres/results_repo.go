package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/quantlab/backrun/internal/persistence"
)

// resultsRepo implements ResultsRepo for PostgreSQL.
type resultsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewResultsRepo creates a PostgreSQL results repository.
func NewResultsRepo(db *sqlx.DB, timeout time.Duration) persistence.ResultsRepo {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &resultsRepo{db: db, timeout: timeout}
}

// Connect opens a PostgreSQL connection pool from a DSN.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

const insertQuery = `
	INSERT INTO backtest_results
	(job_id, symbol, strategy, start_time, end_time, initial_capital,
	 final_capital, total_trades, win_rate, max_drawdown, sharpe_ratio,
	 annualized_return)
	VALUES (:job_id, :symbol, :strategy, :start_time, :end_time,
	 :initial_capital, :final_capital, :total_trades, :win_rate,
	 :max_drawdown, :sharpe_ratio, :annualized_return)`

func (r *resultsRepo) Insert(ctx context.Context, summary persistence.ResultSummary) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.NamedExecContext(ctx, insertQuery, summary); err != nil {
		return fmt.Errorf("insert result %s: %w", summary.JobID, err)
	}
	return nil
}

func (r *resultsRepo) InsertBatch(ctx context.Context, summaries []persistence.ResultSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, summary := range summaries {
		if _, err := tx.NamedExecContext(ctx, insertQuery, summary); err != nil {
			return fmt.Errorf("insert result %s: %w", summary.JobID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results batch: %w", err)
	}
	return nil
}

func (r *resultsRepo) ListByStrategy(ctx context.Context, strategy string, limit int) ([]persistence.ResultSummary, error) {
	return r.list(ctx, "strategy", strategy, limit)
}

func (r *resultsRepo) ListBySymbol(ctx context.Context, symbol string, limit int) ([]persistence.ResultSummary, error) {
	return r.list(ctx, "symbol", symbol, limit)
}

func (r *resultsRepo) list(ctx context.Context, column, value string, limit int) ([]persistence.ResultSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT id, job_id, symbol, strategy, start_time, end_time,
		       initial_capital, final_capital, total_trades, win_rate,
		       max_drawdown, sharpe_ratio, annualized_return, created_at
		FROM backtest_results
		WHERE %s = $1
		ORDER BY created_at DESC
		LIMIT $2`, column)

	var out []persistence.ResultSummary
	if err := r.db.SelectContext(ctx, &out, query, value, limit); err != nil {
		return nil, fmt.Errorf("list results by %s: %w", column, err)
	}
	return out, nil
}
