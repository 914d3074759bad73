// Package analytics turns an equity curve and trade ledger into
// risk-adjusted performance metrics. Annualization adapts to the bar
// timeframe by deriving periods-per-year from the median inter-bar delta
// instead of hardcoding a daily or minutely constant.
package analytics

import (
	"math"

	"github.com/quantlab/backrun/internal/domain"
)

// Metric keys returned by Analyze.
const (
	MetricTotalReturn       = "total_return"
	MetricAnnualizedReturn  = "annualized_return"
	MetricVolatility        = "volatility"
	MetricSharpe            = "sharpe_ratio"
	MetricSortino           = "sortino_ratio"
	MetricCalmar            = "calmar_ratio"
	MetricProfitFactor      = "profit_factor"
	MetricAvgWin            = "avg_win"
	MetricAvgLoss           = "avg_loss"
	MetricLargestWin        = "largest_win"
	MetricLargestLoss       = "largest_loss"
	MetricMaxWinStreak      = "max_consecutive_wins"
	MetricMaxLossStreak     = "max_consecutive_losses"
	MetricMaxDrawdown       = "max_drawdown"
	MetricMaxDrawdownBars   = "max_drawdown_duration_bars"
	MetricAvgDrawdown       = "avg_drawdown"
	MetricVaR95             = "var_95"
	MetricVaR99             = "var_99"
	MetricCVaR95            = "cvar_95"
	MetricCVaR99            = "cvar_99"
	MetricVolatilityBeta    = "volatility_beta"
	MetricPeriodsPerYear    = "periods_per_year"
)

// drawdownEpsilon separates real drawdowns from float noise when marking
// in-drawdown bars.
const drawdownEpsilon = 0.001

// Config tunes annualization and the beta approximation.
type Config struct {
	// RiskFreeRate is the annual risk-free rate used by Sharpe/Sortino.
	RiskFreeRate float64 `yaml:"risk_free_rate"`
	// MarketVolatility is the assumed annualized market volatility for
	// the volatility-ratio beta. This is an acknowledged simplification,
	// not a covariance beta against a benchmark series; the metric is
	// named volatility_beta to make that explicit.
	MarketVolatility float64 `yaml:"market_volatility"`
}

// DefaultConfig returns reference analyzer settings.
func DefaultConfig() Config {
	return Config{
		RiskFreeRate:     0.02,
		MarketVolatility: 0.60,
	}
}

// Analyzer computes performance metrics for completed runs.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer creates an analyzer with the given settings.
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze computes the full metrics map. Fewer than two equity points
// yields an empty map: there is no return series to analyze.
func (a *Analyzer) Analyze(equityCurve []domain.EquityPoint, trades []domain.Trade) map[string]float64 {
	metrics := make(map[string]float64)
	if len(equityCurve) < 2 {
		return metrics
	}

	returns := periodReturns(equityCurve)
	ppy := a.periodsPerYear(equityCurve)
	metrics[MetricPeriodsPerYear] = ppy

	first := equityCurve[0].Equity
	last := equityCurve[len(equityCurve)-1].Equity
	totalReturn := safeDiv(last-first, first)
	metrics[MetricTotalReturn] = totalReturn

	periods := float64(len(returns))
	annualized := 0.0
	if periods > 0 && 1+totalReturn > 0 {
		annualized = math.Pow(1+totalReturn, ppy/periods) - 1
	}
	metrics[MetricAnnualizedReturn] = annualized

	vol := stdDev(returns) * math.Sqrt(ppy)
	metrics[MetricVolatility] = vol
	metrics[MetricVolatilityBeta] = safeDiv(vol, a.cfg.MarketVolatility)

	rfPerPeriod := 0.0
	if ppy > 0 {
		rfPerPeriod = a.cfg.RiskFreeRate / ppy
	}
	metrics[MetricSharpe] = safeDiv(mean(returns)-rfPerPeriod, stdDev(returns)) * math.Sqrt(ppy)
	metrics[MetricSortino] = a.sortino(returns, rfPerPeriod, ppy)

	maxDD, maxDDBars, avgDD := drawdownStats(equityCurve)
	metrics[MetricMaxDrawdown] = maxDD
	metrics[MetricMaxDrawdownBars] = float64(maxDDBars)
	metrics[MetricAvgDrawdown] = avgDD
	metrics[MetricCalmar] = safeDiv(annualized, maxDD)

	a.tradeStats(trades, metrics)
	a.tailRisk(returns, metrics)

	return metrics
}

// periodReturns computes simple per-period returns from the equity curve.
func periodReturns(curve []domain.EquityPoint) []float64 {
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev > 0 {
			returns = append(returns, curve[i].Equity/prev-1)
		} else {
			returns = append(returns, 0)
		}
	}
	return returns
}

// periodsPerYear derives the annualization factor from the median
// inter-bar delta, so minute bars and daily bars annualize correctly
// without configuration.
func (a *Analyzer) periodsPerYear(curve []domain.EquityPoint) float64 {
	deltas := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		d := curve[i].Timestamp.Sub(curve[i-1].Timestamp).Seconds()
		if d > 0 {
			deltas = append(deltas, d)
		}
	}

	med := median(deltas)
	if med <= 0 {
		return 0
	}
	const secondsPerYear = 365 * 24 * 3600
	return secondsPerYear / med
}

func (a *Analyzer) sortino(returns []float64, rfPerPeriod, ppy float64) float64 {
	var negative []float64
	for _, r := range returns {
		if r < 0 {
			negative = append(negative, r)
		}
	}
	if len(negative) == 0 {
		return 0
	}
	downside := stdDev(negative)
	return safeDiv(mean(returns)-rfPerPeriod, downside) * math.Sqrt(ppy)
}

// drawdownStats walks the curve once: running peak, max drawdown, and the
// duration/depth of in-drawdown stretches (drawdown > epsilon).
func drawdownStats(curve []domain.EquityPoint) (maxDD float64, maxDurationBars int, avgDD float64) {
	peak := curve[0].Equity
	currentRun := 0
	ddSum := 0.0
	ddBars := 0

	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}

		dd := 0.0
		if peak > 0 {
			dd = (peak - point.Equity) / peak
		}
		if dd > maxDD {
			maxDD = dd
		}

		if dd > drawdownEpsilon {
			currentRun++
			ddSum += dd
			ddBars++
			if currentRun > maxDurationBars {
				maxDurationBars = currentRun
			}
		} else {
			currentRun = 0
		}
	}

	if ddBars > 0 {
		avgDD = ddSum / float64(ddBars)
	}
	return maxDD, maxDurationBars, avgDD
}

// tradeStats fills trade-ledger metrics: profit factor, averages,
// extremes, and win/loss streaks. Opening trades carry zero realized PnL
// and reset neither streak counter.
func (a *Analyzer) tradeStats(trades []domain.Trade, metrics map[string]float64) {
	var grossProfit, grossLoss float64
	var winSum, lossSum float64
	var largestWin, largestLoss float64
	wins, losses := 0, 0
	winStreak, lossStreak := 0, 0
	maxWinStreak, maxLossStreak := 0, 0

	for _, t := range trades {
		if !t.Closing || t.RealizedPnL == 0 {
			continue
		}

		if t.RealizedPnL > 0 {
			grossProfit += t.RealizedPnL
			winSum += t.RealizedPnL
			wins++
			if t.RealizedPnL > largestWin {
				largestWin = t.RealizedPnL
			}
			winStreak++
			lossStreak = 0
			if winStreak > maxWinStreak {
				maxWinStreak = winStreak
			}
		} else {
			loss := math.Abs(t.RealizedPnL)
			grossLoss += loss
			lossSum += loss
			losses++
			if loss > largestLoss {
				largestLoss = loss
			}
			lossStreak++
			winStreak = 0
			if lossStreak > maxLossStreak {
				maxLossStreak = lossStreak
			}
		}
	}

	metrics[MetricProfitFactor] = safeDiv(grossProfit, grossLoss)
	metrics[MetricAvgWin] = safeDiv(winSum, float64(wins))
	metrics[MetricAvgLoss] = safeDiv(lossSum, float64(losses))
	metrics[MetricLargestWin] = largestWin
	metrics[MetricLargestLoss] = largestLoss
	metrics[MetricMaxWinStreak] = float64(maxWinStreak)
	metrics[MetricMaxLossStreak] = float64(maxLossStreak)
}

// tailRisk computes historical VaR and CVaR at 95/99.
func (a *Analyzer) tailRisk(returns []float64, metrics map[string]float64) {
	var95 := percentile(returns, 5)
	var99 := percentile(returns, 1)

	metrics[MetricVaR95] = var95
	metrics[MetricVaR99] = var99
	metrics[MetricCVaR95] = tailMean(returns, var95)
	metrics[MetricCVaR99] = tailMean(returns, var99)
}

// AnnualizedHoldingPeriod is a helper reporting the span of the curve in
// years, useful for sanity-checking annualized figures in reports.
func AnnualizedHoldingPeriod(curve []domain.EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}
	span := curve[len(curve)-1].Timestamp.Sub(curve[0].Timestamp)
	return span.Hours() / (365 * 24)
}
