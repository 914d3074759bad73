// Package fees provides the injectable fee model used by the simulator.
// The simulator only ever sees the Model interface; exchange-specific
// schedules live behind it so fee tables can change without touching the
// execution path.
package fees

import (
	"strings"

	"github.com/quantlab/backrun/internal/domain"
)

// Model computes the fee for a simulated fill.
type Model interface {
	Fee(tradeType domain.TradeType, price, quantity float64, symbol string) float64
	Name() string
}

// Schedule is a flat maker/taker fee model expressed as notional fractions.
type Schedule struct {
	Exchange string  `yaml:"exchange"`
	Maker    float64 `yaml:"maker"`
	Taker    float64 `yaml:"taker"`
}

// Fee returns rate × price × quantity for the given trade type.
func (s *Schedule) Fee(tradeType domain.TradeType, price, quantity float64, _ string) float64 {
	rate := s.Taker
	if tradeType == domain.TradeTypeMaker {
		rate = s.Maker
	}
	return rate * price * quantity
}

// Name returns the exchange this schedule models.
func (s *Schedule) Name() string { return s.Exchange }

// Reference spot schedules. These are defaults for research runs, not a
// source of truth for live trading.
var schedules = map[string]Schedule{
	"binance": {Exchange: "binance", Maker: 0.0002, Taker: 0.0004},
	"kraken":  {Exchange: "kraken", Maker: 0.0016, Taker: 0.0026},
	"okx":     {Exchange: "okx", Maker: 0.0008, Taker: 0.0010},
	"zero":    {Exchange: "zero", Maker: 0, Taker: 0},
}

// ForExchange returns the fee schedule for a known exchange name, falling
// back to the binance schedule for unrecognized names.
func ForExchange(exchange string) Model {
	if s, ok := schedules[strings.ToLower(exchange)]; ok {
		sched := s
		return &sched
	}
	sched := schedules["binance"]
	sched.Exchange = strings.ToLower(exchange)
	return &sched
}

// Fixed returns a model with explicit maker/taker rates, used when config
// overrides the exchange schedule with a flat commission.
func Fixed(name string, maker, taker float64) Model {
	return &Schedule{Exchange: name, Maker: maker, Taker: taker}
}
