// Package domain holds the core data model shared by the validator,
// simulator, analyzer, and batch runner. Types here are plain records:
// immutable once produced, serialization-ready, and free of behavior that
// would couple them to any one engine component.
package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Bar is one OHLCV candle. Bars are produced by an external feed and are
// never mutated after ingestion.
type Bar struct {
	Timestamp time.Time `json:"ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// HasValidPrices reports whether every price field is positive and finite.
// Bars failing this check must not drive any trading decision.
func (b Bar) HasValidPrices() bool {
	for _, p := range []float64{b.Open, b.High, b.Low, b.Close} {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return false
		}
	}
	return true
}

// Signal carries the per-bar strategy decision. At most one of the four
// flags is honored per bar; contradictory combinations are resolved by the
// simulator's one-action-per-bar policy.
type Signal struct {
	EnterLong  bool `json:"enter_long"`
	ExitLong   bool `json:"exit_long"`
	EnterShort bool `json:"enter_short"`
	ExitShort  bool `json:"exit_short"`
}

// IsFlat reports whether the signal requests no action at all.
func (s Signal) IsFlat() bool {
	return !s.EnterLong && !s.ExitLong && !s.EnterShort && !s.ExitShort
}

// Side is the direction of a position or fill.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// TradeType distinguishes maker and taker fills for fee calculation.
type TradeType string

const (
	TradeTypeMaker TradeType = "maker"
	TradeTypeTaker TradeType = "taker"
)

// Trade is one executed fill, immutable once appended to the ledger.
// RealizedPnL is populated only on position-closing fills; opening fills
// carry zero.
type Trade struct {
	Timestamp   time.Time `json:"ts"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Price       float64   `json:"price"`
	Quantity    float64   `json:"qty"`
	Fee         float64   `json:"fee"`
	RealizedPnL float64   `json:"realized_pnl"`
	Strategy    string    `json:"strategy"`
	Closing     bool      `json:"closing"`
}

// Position is the open exposure for one symbol. Exactly one simulator
// instance owns a position at a time; there is at most one open position
// per symbol.
type Position struct {
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Size          float64   `json:"size"`
	EntryPrice    float64   `json:"entry_price"`
	CurrentPrice  float64   `json:"current_price"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	EntryTime     time.Time `json:"entry_time"`
	// Margin is the cash withheld for short positions (a fixed fraction
	// of entry notional in the simplified margin model). Zero for longs.
	Margin float64 `json:"margin,omitempty"`
}

// MarkToMarket updates the position's current price and unrealized PnL.
func (p *Position) MarkToMarket(price float64) {
	p.CurrentPrice = price
	if p.Side == SideLong {
		p.UnrealizedPnL = (price - p.EntryPrice) * p.Size
	} else {
		p.UnrealizedPnL = (p.EntryPrice - price) * p.Size
	}
}

// MarketValue is the position's contribution to total equity. Longs are
// marked at size × current price; shorts contribute their withheld margin
// plus mark-to-market PnL.
func (p *Position) MarketValue() float64 {
	if p.Side == SideLong {
		return p.Size * p.CurrentPrice
	}
	return p.Margin + p.UnrealizedPnL
}

// EquityPoint is one sample of the equity curve, recorded once per
// processed bar with strictly increasing timestamps.
type EquityPoint struct {
	Timestamp     time.Time `json:"ts"`
	Equity        float64   `json:"equity"`
	Cash          float64   `json:"cash"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
}

// BacktestResult aggregates the outcome of one completed run. It is
// created once and read-only thereafter; persistence of the record is an
// external concern.
type BacktestResult struct {
	JobID          string                 `json:"job_id"`
	Symbol         string                 `json:"symbol"`
	Strategy       string                 `json:"strategy"`
	StartTime      time.Time              `json:"start_time"`
	EndTime        time.Time              `json:"end_time"`
	InitialCapital float64                `json:"initial_capital"`
	FinalCapital   float64                `json:"final_capital"`
	TotalTrades    int                    `json:"total_trades"`
	WinningTrades  int                    `json:"winning_trades"`
	LosingTrades   int                    `json:"losing_trades"`
	WinRate        float64                `json:"win_rate"`
	MaxDrawdown    float64                `json:"max_drawdown"`
	Metrics        map[string]float64     `json:"metrics"`
	Trades         []Trade                `json:"trades"`
	EquityCurve    []EquityPoint          `json:"equity_curve"`
	QualityReport  *DataQualityReport     `json:"quality_report,omitempty"`
}

// DataQualityReport summarizes pre-flight validation of a bar sequence.
type DataQualityReport struct {
	Symbol           string   `json:"symbol"`
	Timeframe        string   `json:"timeframe"`
	TotalRecords     int      `json:"total_records"`
	MissingRecords   int      `json:"missing_records"`
	DuplicateRecords int      `json:"duplicate_records"`
	Coverage         float64  `json:"coverage"`
	Score            float64  `json:"score"`
	Issues           []string `json:"issues,omitempty"`
}

// IsValid reports whether the quality score meets the given threshold.
func (r *DataQualityReport) IsValid(threshold float64) bool {
	return r.Score >= threshold
}

// ParseTimeframe converts a timeframe label like "1m", "15m", "4h", "1d"
// into the expected interval between consecutive bars.
func ParseTimeframe(tf string) (time.Duration, error) {
	tf = strings.ToLower(strings.TrimSpace(tf))
	if len(tf) < 2 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}

	unit := tf[len(tf)-1]
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}

	switch unit {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown timeframe unit %q", tf)
	}
}
