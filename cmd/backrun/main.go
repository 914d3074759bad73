package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/quantlab/backrun/internal/analytics"
	"github.com/quantlab/backrun/internal/artifacts"
	"github.com/quantlab/backrun/internal/batch"
	"github.com/quantlab/backrun/internal/config"
	"github.com/quantlab/backrun/internal/data"
	"github.com/quantlab/backrun/internal/domain"
	"github.com/quantlab/backrun/internal/fees"
	"github.com/quantlab/backrun/internal/persistence"
	"github.com/quantlab/backrun/internal/persistence/postgres"
	"github.com/quantlab/backrun/internal/quality"
	"github.com/quantlab/backrun/internal/sim"
	"github.com/quantlab/backrun/internal/strategy"
	"github.com/quantlab/backrun/internal/telemetry"
)

const (
	appName = "backrun"
	version = "v0.4.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Market-bar backtesting and sweep engine",
		Version: version,
		Long: `backrun replays OHLCV bars through trading strategies, scores the
input data quality first, simulates fills with slippage and exchange
fees, and reports risk-adjusted performance per run.`,
	}

	backtestCmd := &cobra.Command{
		Use:   "backtest [bars.csv]",
		Short: "Run a single backtest over a CSV of bars",
		Args:  cobra.ExactArgs(1),
		RunE:  runBacktest,
	}
	addInstrumentFlags(backtestCmd.Flags())
	backtestCmd.Flags().Float64("capital", 10000, "Initial capital")
	backtestCmd.Flags().Float64("slippage", 0.0005, "Slippage fraction per fill")
	backtestCmd.Flags().String("exchange", "binance", "Fee schedule to apply")
	backtestCmd.Flags().Int("fast", 10, "Fast SMA period")
	backtestCmd.Flags().Int("slow", 30, "Slow SMA period")
	backtestCmd.Flags().String("from", "", "Replay start (RFC3339, inclusive)")
	backtestCmd.Flags().String("to", "", "Replay end (RFC3339, exclusive)")

	sweepCmd := &cobra.Command{
		Use:   "sweep [config.yaml]",
		Short: "Run a batch of backtests from a config file",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}

	validateCmd := &cobra.Command{
		Use:   "validate [bars.csv]",
		Short: "Score data quality for a CSV of bars without simulating",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	addInstrumentFlags(validateCmd.Flags())

	rootCmd.AddCommand(backtestCmd, sweepCmd, validateCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func addInstrumentFlags(fs *pflag.FlagSet) {
	fs.String("symbol", "BTCUSD", "Instrument symbol")
	fs.String("timeframe", "1h", "Bar timeframe (1m|5m|15m|1h|4h|1d)")
}

func parseRangeFlags(cmd *cobra.Command) (from, to time.Time, err error) {
	if raw, _ := cmd.Flags().GetString("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			return from, to, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if raw, _ := cmd.Flags().GetString("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			return from, to, fmt.Errorf("invalid --to: %w", err)
		}
	}
	return from, to, nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	symbol, _ := cmd.Flags().GetString("symbol")
	timeframe, _ := cmd.Flags().GetString("timeframe")
	capital, _ := cmd.Flags().GetFloat64("capital")
	slippage, _ := cmd.Flags().GetFloat64("slippage")
	exchange, _ := cmd.Flags().GetString("exchange")
	fast, _ := cmd.Flags().GetInt("fast")
	slow, _ := cmd.Flags().GetInt("slow")

	bars, err := data.LoadCSV(args[0])
	if err != nil {
		return err
	}

	from, to, err := parseRangeFlags(cmd)
	if err != nil {
		return err
	}
	bars, err = sim.FilterRange(bars, from, to)
	if err != nil {
		return err
	}

	validator := quality.NewValidator(quality.DefaultConfig())
	report := validator.Validate(bars, symbol, timeframe)
	log.Info().
		Str("symbol", symbol).
		Float64("quality_score", report.Score).
		Int("issues", len(report.Issues)).
		Msg("data quality scored")

	strat := strategy.NewSMACross(fast, slow)
	simulator := sim.NewSimulator(sim.Config{
		Symbol:         symbol,
		InitialCapital: capital,
		Slippage:       slippage,
		FeeModel:       fees.ForExchange(exchange),
	})

	res, err := simulator.Run(bars, strat.Signals(bars), strat.Name())
	if err != nil {
		return err
	}
	res.QualityReport = report
	res.Metrics = analytics.NewAnalyzer(analytics.DefaultConfig()).Analyze(res.EquityCurve, res.Trades)

	printResult(res)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	if len(cfg.Jobs) == 0 {
		return fmt.Errorf("config has no jobs")
	}

	var metrics *telemetry.Registry
	if cfg.MetricsAddr != "" {
		metrics = telemetry.NewRegistry()
		metrics.Serve(cfg.MetricsAddr)
	}

	var cache quality.ReportCache
	if cfg.RedisAddr != "" {
		cache = quality.NewRedisCache(cfg.RedisAddr)
	} else {
		cache = quality.NewMemoryCache()
	}

	jobs, err := buildJobs(cfg)
	if err != nil {
		return err
	}

	runner := batch.NewRunner(batch.Config{
		Workers:  cfg.Workers,
		Quality:  cfg.Quality,
		Analyzer: cfg.Analyzer,
	}, metrics, cache)

	results := runner.RunBatch(cmd.Context(), jobs)
	log.Info().
		Int("submitted", len(jobs)).
		Int("completed", len(results)).
		Msg("sweep finished")

	writer := artifacts.NewWriter(cfg.OutputDir)
	if err := writer.WriteResults(results); err != nil {
		return err
	}
	if err := writer.WriteSummary(results); err != nil {
		return err
	}
	log.Info().Str("dir", writer.OutputDir()).Msg("artifacts written")

	if cfg.PostgresDSN != "" {
		if err := storeResults(cmd.Context(), cfg.PostgresDSN, results); err != nil {
			// Artifacts already hold the full results on disk.
			log.Warn().Err(err).Msg("storing results in postgres failed")
		}
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	symbol, _ := cmd.Flags().GetString("symbol")
	timeframe, _ := cmd.Flags().GetString("timeframe")

	bars, err := data.LoadCSV(args[0])
	if err != nil {
		return err
	}

	report := quality.NewValidator(quality.DefaultConfig()).Validate(bars, symbol, timeframe)

	fmt.Printf("Symbol:        %s\n", report.Symbol)
	fmt.Printf("Records:       %d\n", report.TotalRecords)
	fmt.Printf("Missing:       %d\n", report.MissingRecords)
	fmt.Printf("Duplicates:    %d\n", report.DuplicateRecords)
	fmt.Printf("Quality score: %.4f\n", report.Score)
	for _, issue := range report.Issues {
		fmt.Printf("  - %s\n", issue)
	}
	return nil
}

func buildJobs(cfg *config.Config) ([]batch.Job, error) {
	jobs := make([]batch.Job, 0, len(cfg.Jobs))
	for _, spec := range cfg.Jobs {
		bars, err := data.LoadCSV(spec.BarsFile)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", spec.Symbol, err)
		}

		capital := spec.InitialCapital
		if capital <= 0 {
			capital = cfg.InitialCapital
		}
		slippage := spec.Slippage
		if slippage <= 0 {
			slippage = cfg.Slippage
		}
		exchange := spec.Exchange
		if exchange == "" {
			exchange = cfg.Exchange
		}

		var feeModel fees.Model
		if cfg.Commission > 0 {
			feeModel = fees.Fixed("config", cfg.Commission, cfg.Commission)
		}

		strat := strategy.NewSMACross(spec.FastPeriod, spec.SlowPeriod)
		jobs = append(jobs, batch.Job{
			Symbol:           spec.Symbol,
			Timeframe:        spec.Timeframe,
			Strategy:         strat.Name(),
			Bars:             bars,
			Signals:          strat.Signals(bars),
			InitialCapital:   capital,
			Slippage:         slippage,
			Exchange:         exchange,
			FeeModel:         feeModel,
			QualityThreshold: cfg.DataQualityThreshold,
			FailOnQuality:    cfg.FailOnQuality,
		})
	}
	return jobs, nil
}

func storeResults(ctx context.Context, dsn string, results []*domain.BacktestResult) error {
	db, err := postgres.Connect(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	summaries := make([]persistence.ResultSummary, 0, len(results))
	for _, res := range results {
		summaries = append(summaries, persistence.SummaryFromResult(res))
	}
	repo := postgres.NewResultsRepo(db, 10*time.Second)
	return repo.InsertBatch(ctx, summaries)
}

func printResult(res *domain.BacktestResult) {
	fmt.Printf("Strategy:          %s\n", res.Strategy)
	fmt.Printf("Symbol:            %s\n", res.Symbol)
	fmt.Printf("Bars:              %s .. %s\n",
		res.StartTime.Format(time.RFC3339), res.EndTime.Format(time.RFC3339))
	fmt.Printf("Initial capital:   %.2f\n", res.InitialCapital)
	fmt.Printf("Final capital:     %.2f\n", res.FinalCapital)
	fmt.Printf("Trades:            %d\n", res.TotalTrades)
	fmt.Printf("Win rate:          %.1f%%\n", res.WinRate*100)
	fmt.Printf("Max drawdown:      %.2f%%\n", res.MaxDrawdown*100)
	fmt.Printf("Total return:      %.2f%%\n", res.Metrics[analytics.MetricTotalReturn]*100)
	fmt.Printf("Annualized return: %.2f%%\n", res.Metrics[analytics.MetricAnnualizedReturn]*100)
	fmt.Printf("Sharpe ratio:      %.2f\n", res.Metrics[analytics.MetricSharpe])
	fmt.Printf("Sortino ratio:     %.2f\n", res.Metrics[analytics.MetricSortino])
	fmt.Printf("Quality score:     %.4f\n", res.QualityReport.Score)
}
