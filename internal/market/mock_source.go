package market

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// MockSource generates simulated OHLCV data so the engine can run without
// any exchange connectivity. Generation is seeded per symbol, so repeated
// calls for the same symbol produce the same price path.
type MockSource struct {
	mu         sync.Mutex
	basePrices map[string]float64
	drift      float64 // per-bar drift, e.g. 0.001 = +0.1% per bar
	volatility float64 // per-bar noise amplitude, e.g. 0.02 = 2%
}

// NewMockSource creates a mock bar source with the given drift and volatility
func NewMockSource(drift, volatility float64) *MockSource {
	return &MockSource{
		basePrices: map[string]float64{
			"BTCUSDT": 43000,
			"ETHUSDT": 2300,
			"SOLUSDT": 98,
		},
		drift:      drift,
		volatility: volatility,
	}
}

// GetBars returns a simulated random-walk series for the symbol
func (ms *MockSource) GetBars(_ context.Context, symbol string, tf Timeframe, limit int) (*Series, error) {
	ms.mu.Lock()
	base, ok := ms.basePrices[symbol]
	ms.mu.Unlock()
	if !ok {
		base = 100.0
	}

	seed := int64(0)
	for _, c := range symbol + string(tf) {
		seed = seed*31 + int64(c)
	}
	rng := rand.New(rand.NewSource(seed))

	interval := tf.Duration()
	now := time.Now().Truncate(interval)
	bars := make([]Bar, limit)

	price := base
	for i := 0; i < limit; i++ {
		openTime := now.Add(-time.Duration(limit-i) * interval)

		open := price
		noise := (rng.Float64()*2 - 1) * ms.volatility
		close := open * (1 + ms.drift + noise)
		high := math.Max(open, close) * (1 + rng.Float64()*ms.volatility/2)
		low := math.Min(open, close) * (1 - rng.Float64()*ms.volatility/2)
		volume := 1000 + rng.Float64()*9000

		bars[i] = Bar{
			OpenTime: openTime.UnixMilli(),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    close,
			Volume:   volume,
		}
		price = close
	}

	return NewSeries(symbol, tf, bars)
}

// SetBasePrice overrides the starting price for a symbol
func (ms *MockSource) SetBasePrice(symbol string, price float64) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.basePrices[symbol] = price
}
