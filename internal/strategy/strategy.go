// Package strategy defines the signal-source contract the simulator
// consumes and ships one reference implementation. Real signal research
// happens outside this repo; the engine only needs per-bar flags.
package strategy

import "github.com/quantlab/backrun/internal/domain"

// Strategy produces exactly one signal per bar, in bar order. Strategies
// must be deterministic for reproducible backtests.
type Strategy interface {
	Name() string
	// Signals returns a signal slice aligned one-to-one with bars.
	Signals(bars []domain.Bar) []domain.Signal
}

// sma computes a simple moving average series; entries before the period
// warms up are zero.
func sma(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}
