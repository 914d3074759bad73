package strategy

import (
	"fmt"

	"github.com/quantlab/backrun/internal/domain"
)

// SMACross is a long-only moving-average crossover: enter when the fast
// average crosses above the slow one, exit on the cross back down. It
// exists so the engine can be exercised end-to-end, not as a serious
// trading strategy.
type SMACross struct {
	Fast int
	Slow int
}

// NewSMACross creates a crossover strategy with the given periods.
func NewSMACross(fast, slow int) *SMACross {
	if fast <= 0 {
		fast = 10
	}
	if slow <= fast {
		slow = fast * 3
	}
	return &SMACross{Fast: fast, Slow: slow}
}

// Name identifies the strategy in trade ledgers and logs.
func (s *SMACross) Name() string {
	return fmt.Sprintf("sma_cross_%d_%d", s.Fast, s.Slow)
}

// Signals emits one signal per bar. Bars inside the slow warm-up window
// are always hold.
func (s *SMACross) Signals(bars []domain.Bar) []domain.Signal {
	signals := make([]domain.Signal, len(bars))
	if len(bars) < s.Slow+1 {
		return signals
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	fast := sma(closes, s.Fast)
	slow := sma(closes, s.Slow)

	for i := s.Slow; i < len(bars); i++ {
		crossedUp := fast[i-1] <= slow[i-1] && fast[i] > slow[i]
		crossedDown := fast[i-1] >= slow[i-1] && fast[i] < slow[i]

		switch {
		case crossedUp:
			signals[i].EnterLong = true
		case crossedDown:
			signals[i].ExitLong = true
		}
	}
	return signals
}
