package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantlab/backrun/internal/domain"
)

func TestForExchangeKnownSchedules(t *testing.T) {
	binance := ForExchange("binance")
	assert.Equal(t, "binance", binance.Name())
	assert.InDelta(t, 0.04, binance.Fee(domain.TradeTypeTaker, 100, 1, "BTCUSD"), 1e-9)
	assert.InDelta(t, 0.02, binance.Fee(domain.TradeTypeMaker, 100, 1, "BTCUSD"), 1e-9)

	kraken := ForExchange("KRAKEN")
	assert.Equal(t, "kraken", kraken.Name(), "lookup is case-insensitive")
	assert.InDelta(t, 0.26, kraken.Fee(domain.TradeTypeTaker, 100, 1, "BTCUSD"), 1e-9)

	zero := ForExchange("zero")
	assert.Zero(t, zero.Fee(domain.TradeTypeTaker, 100, 1, "BTCUSD"))
}

func TestForExchangeUnknownFallsBack(t *testing.T) {
	m := ForExchange("nonesuch")

	// Unknown venues get the binance rates under their own name.
	assert.Equal(t, "nonesuch", m.Name())
	assert.InDelta(t, 0.04, m.Fee(domain.TradeTypeTaker, 100, 1, "BTCUSD"), 1e-9)
}

func TestFixedOverride(t *testing.T) {
	m := Fixed("config", 0.001, 0.002)

	assert.Equal(t, "config", m.Name())
	assert.InDelta(t, 0.1, m.Fee(domain.TradeTypeMaker, 100, 1, "BTCUSD"), 1e-9)
	assert.InDelta(t, 0.2, m.Fee(domain.TradeTypeTaker, 100, 1, "BTCUSD"), 1e-9)
}

func TestFeeScalesWithNotional(t *testing.T) {
	m := Fixed("flat", 0.001, 0.001)
	assert.InDelta(t, 2.5, m.Fee(domain.TradeTypeTaker, 500, 5, "ETHUSD"), 1e-9)
}
