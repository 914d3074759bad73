// Package batch runs many independent backtests concurrently. Jobs share
// nothing mutable: each worker builds its own validator, simulator, and
// analyzer, so parallelism exists only across runs and never inside one
// path-dependent run. A failing job is logged and excluded; the batch as
// a whole never aborts because of one bad job.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quantlab/backrun/internal/analytics"
	"github.com/quantlab/backrun/internal/domain"
	"github.com/quantlab/backrun/internal/fees"
	"github.com/quantlab/backrun/internal/quality"
	"github.com/quantlab/backrun/internal/sim"
	"github.com/quantlab/backrun/internal/telemetry"
)

// Job bundles everything one backtest run needs. Bars and signals are
// aligned one-to-one and owned by the job; nothing is shared between
// jobs.
type Job struct {
	ID        string
	Symbol    string
	Timeframe string
	Strategy  string

	Bars    []domain.Bar
	Signals []domain.Signal

	InitialCapital float64
	Slippage       float64
	Exchange       string
	FeeModel       fees.Model // optional override of the exchange schedule
	Sizer          sim.Sizer  // optional, defaults to fixed-fraction sizing

	// QualityThreshold gates the run on the pre-flight report score.
	// Below-threshold data logs a warning and proceeds unless
	// FailOnQuality is set.
	QualityThreshold float64
	FailOnQuality    bool
}

// Config tunes the runner.
type Config struct {
	// Workers caps the pool size. Zero means min(GOMAXPROCS, len(jobs)).
	Workers int
	// PerRowCost is the assumed wall-clock cost per bar, used only for
	// the upfront cost estimate log line, never for scheduling.
	PerRowCost time.Duration

	Quality  quality.Config
	Analyzer analytics.Config
}

// DefaultConfig returns reference runner settings.
func DefaultConfig() Config {
	return Config{
		PerRowCost: 2 * time.Microsecond,
		Quality:    quality.DefaultConfig(),
		Analyzer:   analytics.DefaultConfig(),
	}
}

// Runner executes batches of independent backtest jobs.
type Runner struct {
	cfg     Config
	metrics *telemetry.Registry // optional
	cache   quality.ReportCache // optional
}

// NewRunner creates a batch runner. Both the telemetry registry and the
// report cache may be nil.
func NewRunner(cfg Config, metrics *telemetry.Registry, cache quality.ReportCache) *Runner {
	if cfg.PerRowCost <= 0 {
		cfg.PerRowCost = 2 * time.Microsecond
	}
	return &Runner{cfg: cfg, metrics: metrics, cache: cache}
}

// RunBatch executes all jobs on a fixed-size worker pool and returns the
// successful results. Order of results is not guaranteed; every
// successful job appears exactly once. Context cancellation stops
// dispatching new jobs; in-flight jobs run to completion, matching the
// no-mid-run-cancellation model.
func (r *Runner) RunBatch(ctx context.Context, jobs []Job) []*domain.BacktestResult {
	if len(jobs) == 0 {
		return nil
	}

	totalRows := 0
	for i := range jobs {
		if jobs[i].ID == "" {
			jobs[i].ID = uuid.NewString()
		}
		totalRows += len(jobs[i].Bars)
	}

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	log.Info().
		Int("jobs", len(jobs)).
		Int("workers", workers).
		Int("total_bars", totalRows).
		Dur("estimated_cost", time.Duration(totalRows)*r.cfg.PerRowCost).
		Msg("starting batch sweep")

	jobCh := make(chan Job)
	resultCh := make(chan *domain.BacktestResult, len(jobs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				if res := r.runJob(job); res != nil {
					resultCh <- res
				}
			}
		}()
	}

dispatch:
	for _, job := range jobs {
		select {
		case jobCh <- job:
		case <-ctx.Done():
			log.Warn().Err(ctx.Err()).Msg("batch dispatch cancelled")
			break dispatch
		}
	}
	close(jobCh)
	wg.Wait()
	close(resultCh)

	results := make([]*domain.BacktestResult, 0, len(jobs))
	for res := range resultCh {
		results = append(results, res)
	}

	log.Info().
		Int("succeeded", len(results)).
		Int("failed", len(jobs)-len(results)).
		Msg("batch sweep finished")

	return results
}

// runJob executes validate → simulate → analyze for one job. Any error
// or panic is contained here: the job is logged with its identity and
// dropped from the results.
func (r *Runner) runJob(job Job) (result *domain.BacktestResult) {
	start := time.Now()
	if r.metrics != nil {
		r.metrics.JobsStarted.Inc()
		r.metrics.ActiveJobs.Inc()
		defer r.metrics.ActiveJobs.Dec()
	}

	var failReason string
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("job_id", job.ID).
				Str("symbol", job.Symbol).
				Str("strategy", job.Strategy).
				Interface("panic", rec).
				Msg("backtest job panicked")
			failReason = "panic"
			result = nil
		}
		var err error
		if result == nil {
			err = fmt.Errorf("job failed: %s", failReason)
		}
		r.metrics.ObserveJob(time.Since(start), len(job.Bars), err, failReason)
	}()

	report := r.validate(job)
	if report != nil && job.QualityThreshold > 0 && !report.IsValid(job.QualityThreshold) {
		if job.FailOnQuality {
			log.Error().
				Str("job_id", job.ID).
				Str("symbol", job.Symbol).
				Float64("score", report.Score).
				Float64("threshold", job.QualityThreshold).
				Msg("job rejected: data quality below threshold")
			failReason = "quality"
			return nil
		}
		log.Warn().
			Str("job_id", job.ID).
			Str("symbol", job.Symbol).
			Float64("score", report.Score).
			Float64("threshold", job.QualityThreshold).
			Msg("data quality below threshold, proceeding")
	}

	feeModel := job.FeeModel
	if feeModel == nil {
		feeModel = fees.ForExchange(job.Exchange)
	}

	simulator := sim.NewSimulator(sim.Config{
		Symbol:         job.Symbol,
		InitialCapital: job.InitialCapital,
		Slippage:       job.Slippage,
		FeeModel:       feeModel,
		Sizer:          job.Sizer,
	})

	res, err := simulator.Run(job.Bars, job.Signals, job.Strategy)
	if err != nil {
		log.Error().
			Str("job_id", job.ID).
			Str("symbol", job.Symbol).
			Str("strategy", job.Strategy).
			Err(err).
			Msg("backtest job failed")
		failReason = "simulation"
		return nil
	}

	analyzer := analytics.NewAnalyzer(r.cfg.Analyzer)
	res.Metrics = analyzer.Analyze(res.EquityCurve, res.Trades)
	res.JobID = job.ID
	res.QualityReport = report

	log.Info().
		Str("job_id", job.ID).
		Str("symbol", job.Symbol).
		Str("strategy", job.Strategy).
		Int("trades", res.TotalTrades).
		Float64("final_capital", res.FinalCapital).
		Dur("elapsed", time.Since(start)).
		Msg("backtest job completed")

	return res
}

// validate produces (or fetches from cache) the pre-flight quality
// report for a job's bars.
func (r *Runner) validate(job Job) *domain.DataQualityReport {
	if len(job.Bars) == 0 {
		return nil
	}

	var key string
	if r.cache != nil {
		from := job.Bars[0].Timestamp
		to := job.Bars[len(job.Bars)-1].Timestamp
		key = quality.ReportKey(job.Symbol, job.Timeframe, from, to)
		if cached, ok := r.cache.Get(key); ok {
			return cached
		}
	}

	report := quality.NewValidator(r.cfg.Quality).Validate(job.Bars, job.Symbol, job.Timeframe)

	if r.cache != nil {
		r.cache.Set(key, report, time.Hour)
	}
	return report
}
