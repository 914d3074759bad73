package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeframe(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"1m", time.Minute},
		{"5m", 5 * time.Minute},
		{"15m", 15 * time.Minute},
		{"1h", time.Hour},
		{"4h", 4 * time.Hour},
		{"1d", 24 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"30s", 30 * time.Second},
		{" 1H ", time.Hour},
	}
	for _, tc := range cases {
		got, err := ParseTimeframe(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"", "h", "0h", "-1h", "1x", "abc"} {
		_, err := ParseTimeframe(bad)
		assert.Error(t, err, bad)
	}
}

func TestBarHasValidPrices(t *testing.T) {
	good := Bar{Open: 100, High: 105, Low: 99, Close: 104}
	assert.True(t, good.HasValidPrices())

	bad := good
	bad.Close = 0
	assert.False(t, bad.HasValidPrices())

	bad = good
	bad.High = math.NaN()
	assert.False(t, bad.HasValidPrices())

	bad = good
	bad.Low = math.Inf(1)
	assert.False(t, bad.HasValidPrices())
}

func TestSignalIsFlat(t *testing.T) {
	assert.True(t, Signal{}.IsFlat())
	assert.False(t, Signal{EnterLong: true}.IsFlat())
	assert.False(t, Signal{ExitShort: true}.IsFlat())
}

func TestPositionMarkToMarket(t *testing.T) {
	long := &Position{Side: SideLong, Size: 2, EntryPrice: 100}
	long.MarkToMarket(110)
	assert.InDelta(t, 20, long.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 220, long.MarketValue(), 1e-9)

	short := &Position{Side: SideShort, Size: 2, EntryPrice: 100, Margin: 20}
	short.MarkToMarket(90)
	assert.InDelta(t, 20, short.UnrealizedPnL, 1e-9)
	// Short value is withheld margin plus mark-to-market PnL.
	assert.InDelta(t, 40, short.MarketValue(), 1e-9)

	short.MarkToMarket(110)
	assert.InDelta(t, -20, short.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 0, short.MarketValue(), 1e-9)
}

func TestDataQualityReportIsValid(t *testing.T) {
	report := &DataQualityReport{Score: 0.95}
	assert.True(t, report.IsValid(0.95))
	assert.True(t, report.IsValid(0.90))
	assert.False(t, report.IsValid(0.96))
}
