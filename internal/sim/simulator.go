// Package sim replays historical bars through per-bar signals and keeps
// the full portfolio bookkeeping: cash, positions, trade ledger, equity
// curve, and running drawdown. One Simulator instance owns its portfolio
// exclusively and processes bars strictly sequentially; path dependency
// rules out any parallelism inside a single run.
package sim

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantlab/backrun/internal/domain"
	"github.com/quantlab/backrun/internal/fees"
)

// Outcome classifies what ProcessBar did with a bar's signal.
type Outcome string

const (
	// OutcomeHeld: no actionable signal, state marked to market only.
	OutcomeHeld Outcome = "held"
	// OutcomeExecuted: an entry, exit, or additive fill was recorded.
	OutcomeExecuted Outcome = "executed"
	// OutcomeSkippedInsufficientFunds: entry requested but cash or margin
	// was short; portfolio left unchanged.
	OutcomeSkippedInsufficientFunds Outcome = "skipped_insufficient_funds"
	// OutcomeSkippedInvalidSignal: contradictory or unmatched flags.
	OutcomeSkippedInvalidSignal Outcome = "skipped_invalid_signal"
	// OutcomeSkippedBadBar: a NaN/non-positive price field disqualified
	// the bar from any decision path.
	OutcomeSkippedBadBar Outcome = "skipped_bad_bar"
)

// BarOutcome is the per-bar step result. Skips are values, not errors.
type BarOutcome struct {
	Outcome Outcome
	Trade   *domain.Trade
	Reason  string
}

// Config bundles the execution assumptions for one simulator instance.
type Config struct {
	Symbol         string
	InitialCapital float64
	// Slippage is the adverse fractional price movement applied to every
	// fill: entries pay it in the direction of the trade, exits against
	// the closer.
	Slippage float64
	// ShortMarginFrac is the fraction of notional withheld as margin on
	// short entries. Zero selects the default of 10%.
	ShortMarginFrac float64
	FeeModel        fees.Model
	Sizer           Sizer
}

// Simulator advances one bar at a time and owns all portfolio state.
type Simulator struct {
	cfg Config

	cash      float64
	positions map[string]*domain.Position
	trades    []domain.Trade
	equity    []domain.EquityPoint

	peakEquity  float64
	maxDrawdown float64
	wins        int
	losses      int

	lastTimestamp time.Time
}

// NewSimulator creates a simulator and resets it to initial capital.
func NewSimulator(cfg Config) *Simulator {
	if cfg.ShortMarginFrac <= 0 {
		cfg.ShortMarginFrac = 0.10
	}
	if cfg.FeeModel == nil {
		cfg.FeeModel = fees.ForExchange("binance")
	}
	if cfg.Sizer == nil {
		cfg.Sizer = DefaultSizer
	}

	s := &Simulator{cfg: cfg}
	s.Reset()
	return s
}

// Reset discards all state and returns the portfolio to initial capital.
func (s *Simulator) Reset() {
	s.cash = s.cfg.InitialCapital
	s.positions = make(map[string]*domain.Position)
	s.trades = nil
	s.equity = nil
	s.peakEquity = s.cfg.InitialCapital
	s.maxDrawdown = 0
	s.wins = 0
	s.losses = 0
	s.lastTimestamp = time.Time{}
}

// Equity returns cash plus the market value of all open positions.
func (s *Simulator) Equity() float64 {
	eq := s.cash
	for _, pos := range s.positions {
		eq += pos.MarketValue()
	}
	return eq
}

// Cash returns the current free cash balance.
func (s *Simulator) Cash() float64 { return s.cash }

// MaxDrawdown returns the running peak-to-trough drawdown fraction.
func (s *Simulator) MaxDrawdown() float64 { return s.maxDrawdown }

// EquityCurve returns the recorded equity points, one per processed bar.
func (s *Simulator) EquityCurve() []domain.EquityPoint { return s.equity }

// Trades returns the trade ledger in execution order.
func (s *Simulator) Trades() []domain.Trade { return s.trades }

// WinLossCounts returns closed-trade win and loss counters.
func (s *Simulator) WinLossCounts() (wins, losses int) { return s.wins, s.losses }

// ProcessBar advances the simulation by one bar. Bars must arrive in
// strictly increasing timestamp order; the simulator refuses out-of-order
// input rather than re-sorting, since silent re-sorting would mask caller
// bugs. At most one signal action is honored per bar.
func (s *Simulator) ProcessBar(ts time.Time, bar domain.Bar, signal domain.Signal, strategy string) (BarOutcome, error) {
	if !s.lastTimestamp.IsZero() && !ts.After(s.lastTimestamp) {
		return BarOutcome{}, ErrOutOfOrder
	}
	s.lastTimestamp = ts

	badBar := !bar.HasValidPrices()

	// Mark-to-market before any decision.
	if pos, ok := s.positions[s.cfg.Symbol]; ok && !badBar {
		pos.MarkToMarket(bar.Close)
	}

	outcome := BarOutcome{Outcome: OutcomeHeld}
	switch {
	case badBar:
		outcome = BarOutcome{Outcome: OutcomeSkippedBadBar, Reason: "bar has invalid price fields"}
		log.Debug().Str("symbol", s.cfg.Symbol).Time("ts", ts).Msg("skipping action on bad bar")
	case !signal.IsFlat():
		outcome = s.applySignal(ts, bar, signal, strategy)
	}

	s.recordEquity(ts)
	return outcome, nil
}

// applySignal resolves the one-action-per-bar policy: exits of an open
// position take precedence, then entries. Unmatched or contradictory
// flags are ignored as a documented simplification.
func (s *Simulator) applySignal(ts time.Time, bar domain.Bar, signal domain.Signal, strategy string) BarOutcome {
	pos := s.positions[s.cfg.Symbol]

	switch {
	case signal.ExitLong && pos != nil && pos.Side == domain.SideLong:
		return s.closePosition(ts, bar.Close, pos.Size, strategy)
	case signal.ExitShort && pos != nil && pos.Side == domain.SideShort:
		return s.closePosition(ts, bar.Close, pos.Size, strategy)
	case signal.EnterLong && pos != nil && pos.Side == domain.SideShort:
		// Opposite-direction entry always closes the open position first.
		return s.closePosition(ts, bar.Close, pos.Size, strategy)
	case signal.EnterShort && pos != nil && pos.Side == domain.SideLong:
		return s.closePosition(ts, bar.Close, pos.Size, strategy)
	case signal.EnterLong:
		return s.enter(ts, bar.Close, domain.SideLong, strategy)
	case signal.EnterShort:
		return s.enter(ts, bar.Close, domain.SideShort, strategy)
	default:
		return BarOutcome{Outcome: OutcomeSkippedInvalidSignal, Reason: "no matching position for exit signal"}
	}
}

// enter opens a new position or merges an additive same-direction fill
// into the existing one via a size-weighted average entry price.
func (s *Simulator) enter(ts time.Time, price float64, side domain.Side, strategy string) BarOutcome {
	size := s.cfg.Sizer(SizingInput{
		Strategy: strategy,
		Equity:   s.Equity(),
		Price:    price,
	})
	if size <= 0 || math.IsNaN(size) {
		return BarOutcome{Outcome: OutcomeSkippedInvalidSignal, Reason: "sizer returned non-positive quantity"}
	}

	execPrice := price * (1 + s.cfg.Slippage)
	if side == domain.SideShort {
		// Short sellers receive less than mark: slippage works against
		// the opener on both sides.
		execPrice = price * (1 - s.cfg.Slippage)
	}
	fee := s.cfg.FeeModel.Fee(domain.TradeTypeTaker, execPrice, size, s.cfg.Symbol)

	var required float64
	if side == domain.SideLong {
		required = execPrice*size + fee
	} else {
		required = s.cfg.ShortMarginFrac*execPrice*size + fee
	}
	if s.cash < required {
		log.Info().
			Str("symbol", s.cfg.Symbol).
			Str("side", string(side)).
			Float64("required", required).
			Float64("cash", s.cash).
			Msg("entry skipped: insufficient funds")
		return BarOutcome{Outcome: OutcomeSkippedInsufficientFunds, Reason: "insufficient cash for entry"}
	}

	s.cash -= required
	pos, exists := s.positions[s.cfg.Symbol]
	if exists {
		// Additive same-direction fill.
		total := pos.Size + size
		pos.EntryPrice = (pos.EntryPrice*pos.Size + execPrice*size) / total
		pos.Size = total
		if side == domain.SideShort {
			pos.Margin += s.cfg.ShortMarginFrac * execPrice * size
		}
		pos.MarkToMarket(price)
	} else {
		pos = &domain.Position{
			Symbol:     s.cfg.Symbol,
			Side:       side,
			Size:       size,
			EntryPrice: execPrice,
			EntryTime:  ts,
		}
		if side == domain.SideShort {
			pos.Margin = s.cfg.ShortMarginFrac * execPrice * size
		}
		pos.MarkToMarket(price)
		s.positions[s.cfg.Symbol] = pos
	}

	trade := domain.Trade{
		Timestamp: ts,
		Symbol:    s.cfg.Symbol,
		Side:      side,
		Price:     execPrice,
		Quantity:  size,
		Fee:       fee,
		Strategy:  strategy,
	}
	s.trades = append(s.trades, trade)

	return BarOutcome{Outcome: OutcomeExecuted, Trade: &s.trades[len(s.trades)-1]}
}

// closePosition closes up to quantity of the open position at the bar
// price with slippage applied against the closer. A quantity below the
// open size decrements the position instead of removing it.
func (s *Simulator) closePosition(ts time.Time, price, quantity float64, strategy string) BarOutcome {
	pos, ok := s.positions[s.cfg.Symbol]
	if !ok {
		return BarOutcome{Outcome: OutcomeSkippedInvalidSignal, Reason: "no open position"}
	}
	if quantity > pos.Size {
		quantity = pos.Size
	}

	var execPrice, realized float64
	if pos.Side == domain.SideLong {
		execPrice = price * (1 - s.cfg.Slippage)
		realized = (execPrice - pos.EntryPrice) * quantity
	} else {
		execPrice = price * (1 + s.cfg.Slippage)
		realized = (pos.EntryPrice - execPrice) * quantity
	}
	fee := s.cfg.FeeModel.Fee(domain.TradeTypeTaker, execPrice, quantity, s.cfg.Symbol)

	if pos.Side == domain.SideLong {
		s.cash += execPrice*quantity - fee
	} else {
		marginReleased := pos.Margin * quantity / pos.Size
		s.cash += marginReleased + realized - fee
		pos.Margin -= marginReleased
	}

	pos.Size -= quantity
	if pos.Size <= 1e-12 {
		delete(s.positions, s.cfg.Symbol)
	} else {
		pos.MarkToMarket(price)
	}

	switch {
	case realized > 0:
		s.wins++
	case realized < 0:
		s.losses++
	}

	trade := domain.Trade{
		Timestamp:   ts,
		Symbol:      s.cfg.Symbol,
		Side:        pos.Side,
		Price:       execPrice,
		Quantity:    quantity,
		Fee:         fee,
		RealizedPnL: realized,
		Strategy:    strategy,
		Closing:     true,
	}
	s.trades = append(s.trades, trade)

	return BarOutcome{Outcome: OutcomeExecuted, Trade: &s.trades[len(s.trades)-1]}
}

// ReducePosition closes part of the open position outside the signal
// path, for callers that manage exit sizing themselves.
func (s *Simulator) ReducePosition(ts time.Time, bar domain.Bar, quantity float64, strategy string) (BarOutcome, error) {
	if !s.lastTimestamp.IsZero() && ts.Before(s.lastTimestamp) {
		return BarOutcome{}, ErrOutOfOrder
	}
	if !bar.HasValidPrices() {
		return BarOutcome{Outcome: OutcomeSkippedBadBar, Reason: "bar has invalid price fields"}, nil
	}
	return s.closePosition(ts, bar.Close, quantity, strategy), nil
}

// recordEquity appends one equity-curve point and updates the running
// peak and max drawdown.
func (s *Simulator) recordEquity(ts time.Time) {
	eq := s.Equity()

	unrealized := 0.0
	for _, pos := range s.positions {
		unrealized += pos.UnrealizedPnL
	}

	s.equity = append(s.equity, domain.EquityPoint{
		Timestamp:     ts,
		Equity:        eq,
		Cash:          s.cash,
		UnrealizedPnL: unrealized,
	})

	if eq > s.peakEquity {
		s.peakEquity = eq
	}
	if s.peakEquity > 0 {
		dd := (s.peakEquity - eq) / s.peakEquity
		if dd > s.maxDrawdown {
			s.maxDrawdown = dd
		}
	}
}

// FilterRange returns the bars whose timestamps fall in [start, end).
// A zero start or end leaves that bound open.
func FilterRange(bars []domain.Bar, start, end time.Time) ([]domain.Bar, error) {
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return nil, ErrInvalidRange
	}

	out := make([]domain.Bar, 0, len(bars))
	for _, bar := range bars {
		if !start.IsZero() && bar.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && !bar.Timestamp.Before(end) {
			continue
		}
		out = append(out, bar)
	}
	return out, nil
}

// Run replays an aligned bar/signal sequence from a reset state and
// returns the assembled result. Empty input is a data error; per-bar
// skips are not.
func (s *Simulator) Run(bars []domain.Bar, signals []domain.Signal, strategy string) (*domain.BacktestResult, error) {
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	if len(signals) != len(bars) {
		return nil, ErrSignalMismatch
	}

	s.Reset()
	for i, bar := range bars {
		if _, err := s.ProcessBar(bar.Timestamp, bar, signals[i], strategy); err != nil {
			return nil, err
		}
	}

	return s.Result(strategy), nil
}

// Result snapshots the current run into a read-only BacktestResult.
// Metrics beyond win rate and drawdown are filled in by the analyzer.
func (s *Simulator) Result(strategy string) *domain.BacktestResult {
	res := &domain.BacktestResult{
		Symbol:         s.cfg.Symbol,
		Strategy:       strategy,
		InitialCapital: s.cfg.InitialCapital,
		FinalCapital:   s.Equity(),
		TotalTrades:    len(s.trades),
		WinningTrades:  s.wins,
		LosingTrades:   s.losses,
		MaxDrawdown:    s.maxDrawdown,
		Trades:         s.trades,
		EquityCurve:    s.equity,
		Metrics:        map[string]float64{},
	}

	if closed := s.wins + s.losses; closed > 0 {
		res.WinRate = float64(s.wins) / float64(closed)
	}
	if len(s.equity) > 0 {
		res.StartTime = s.equity[0].Timestamp
		res.EndTime = s.equity[len(s.equity)-1].Timestamp
	}
	return res
}
