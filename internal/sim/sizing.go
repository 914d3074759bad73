package sim

// SizingInput carries everything a position sizer may want to look at.
// Fields beyond Equity and Price are optional context; the default sizer
// ignores them.
type SizingInput struct {
	Strategy       string
	Equity         float64
	Price          float64
	SignalStrength float64
	Volatility     float64
	WinRate        float64
	AvgWin         float64
	AvgLoss        float64
}

// Sizer converts run state into an order quantity. A non-positive return
// value skips the entry.
type Sizer func(in SizingInput) float64

// defaultRiskFraction is the share of equity committed per entry by the
// fallback sizer.
const defaultRiskFraction = 0.05

// DefaultSizer risks a fixed fraction of current equity per entry.
func DefaultSizer(in SizingInput) float64 {
	if in.Price <= 0 {
		return 0
	}
	return in.Equity * defaultRiskFraction / in.Price
}
