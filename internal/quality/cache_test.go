package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/backrun/internal/domain"
)

func TestReportKey(t *testing.T) {
	from := time.Unix(1700000000, 0)
	to := time.Unix(1700003600, 0)

	key := ReportKey("BTCUSD", "1h", from, to)
	assert.Equal(t, "quality:BTCUSD:1h:1700000000:1700003600", key)
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	cache := NewMemoryCache()
	report := &domain.DataQualityReport{Symbol: "BTCUSD", Score: 0.97}

	_, ok := cache.Get("missing")
	assert.False(t, ok)

	cache.Set("k", report, 0)
	got, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, report, got)
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache()
	cache.Set("k", &domain.DataQualityReport{Symbol: "BTCUSD"}, time.Nanosecond)

	time.Sleep(time.Millisecond)
	_, ok := cache.Get("k")
	assert.False(t, ok)
}

func TestMemoryCacheZeroTTLNeverExpires(t *testing.T) {
	cache := NewMemoryCache()
	cache.Set("k", &domain.DataQualityReport{Symbol: "BTCUSD"}, 0)

	time.Sleep(time.Millisecond)
	_, ok := cache.Get("k")
	assert.True(t, ok)
}
