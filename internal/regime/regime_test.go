package regime

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/market"
)

// seriesFromCloses builds a series from close prices with a configurable
// wick size so tests control the noise level
func seriesFromCloses(closes []float64, wick float64) *market.Series {
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		high := open
		if c > high {
			high = c
		}
		low := open
		if c < low {
			low = c
		}
		bars[i] = market.Bar{
			OpenTime: int64((i + 1) * 3600000),
			Open:     open,
			High:     high + wick,
			Low:      low - wick,
			Close:    c,
			Volume:   1000,
		}
	}
	return &market.Series{Symbol: "TESTUSDT", Timeframe: market.TF1h, Bars: bars}
}

func linearCloses(start, end float64, n int) []float64 {
	closes := make([]float64, n)
	step := (end - start) / float64(n-1)
	for i := range closes {
		closes[i] = start + step*float64(i)
	}
	return closes
}

func testClassifier() *Classifier {
	return NewClassifier(zerolog.Nop())
}

func assertScoresBounded(t *testing.T, cls *Classification) {
	t.Helper()
	for name, v := range map[string]float64{
		"trend_strength": cls.TrendStrength,
		"volatility":     cls.Volatility,
		"momentum":       cls.Momentum,
		"confidence":     cls.Confidence,
	} {
		if v < 0 || v > 1 {
			t.Errorf("%s = %f outside [0,1]", name, v)
		}
	}
}

func TestClassifyUptrend(t *testing.T) {
	// Linear +20% over 100 bars, low noise
	series := seriesFromCloses(linearCloses(100, 120, 100), 0.3)
	cls := testClassifier().Classify(series)

	if !cls.Regime.IsBull() {
		t.Errorf("uptrend classified as %s, want BULL_STRONG or BULL_WEAK", cls.Regime)
	}
	if cls.TrendStrength < 0.3 {
		t.Errorf("trend strength %f on a clean uptrend, want >= 0.3", cls.TrendStrength)
	}
	assertScoresBounded(t, cls)
}

func TestClassifyDowntrend(t *testing.T) {
	series := seriesFromCloses(linearCloses(120, 100, 100), 0.3)
	cls := testClassifier().Classify(series)

	if !cls.Regime.IsBear() {
		t.Errorf("downtrend classified as %s, want BEAR_STRONG or BEAR_WEAK", cls.Regime)
	}
	assertScoresBounded(t, cls)
}

func TestClassifyFlat(t *testing.T) {
	// Flat prices with ~0.2% noise stay below the volatile threshold
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100
	}
	series := seriesFromCloses(closes, 0.2)
	cls := testClassifier().Classify(series)

	if cls.Regime != Sideways {
		t.Errorf("flat series classified as %s, want SIDEWAYS", cls.Regime)
	}
	assertScoresBounded(t, cls)
}

func TestClassifyVolatileChop(t *testing.T) {
	// No trend but wide swings. The cycle varies both its tops and its
	// bottoms so directional movement alternates sides and ADX stays low,
	// while ATR percent saturates. A plain two-value oscillation would pin
	// every bar to the same high and low, leaving all directional movement
	// on one side and saturating ADX instead.
	cycle := []float64{100, 104, 99, 103}
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = cycle[i%len(cycle)]
	}
	series := seriesFromCloses(closes, 0.5)
	cls := testClassifier().Classify(series)

	if cls.Regime != Volatile && cls.Regime != Sideways {
		t.Errorf("choppy series classified as %s, want VOLATILE or SIDEWAYS", cls.Regime)
	}
	if cls.Volatility < 0.5 {
		t.Errorf("volatility %f on 3%%-swing chop, want >= 0.5", cls.Volatility)
	}
	assertScoresBounded(t, cls)
}

func TestClassifyInsufficientData(t *testing.T) {
	series := seriesFromCloses(linearCloses(100, 105, 10), 0.3)
	cls := testClassifier().Classify(series)

	if cls.Regime != Sideways {
		t.Errorf("short series classified as %s, want SIDEWAYS fallback", cls.Regime)
	}
	if cls.Confidence > 0.3 {
		t.Errorf("fallback confidence %f, want <= 0.3", cls.Confidence)
	}
	if cls.KeyLevels.Current != series.LastClose() {
		t.Errorf("key level current = %f, want last close %f", cls.KeyLevels.Current, series.LastClose())
	}
}

func TestKeyLevels(t *testing.T) {
	series := seriesFromCloses(linearCloses(100, 120, 100), 0.3)
	cls := testClassifier().Classify(series)

	if cls.KeyLevels.Support <= 0 || cls.KeyLevels.Resistance <= 0 {
		t.Fatal("key levels not populated")
	}
	if cls.KeyLevels.Support > cls.KeyLevels.Resistance {
		t.Errorf("support %f above resistance %f", cls.KeyLevels.Support, cls.KeyLevels.Resistance)
	}
}

func TestCacheSetGet(t *testing.T) {
	cache := NewCache(time.Minute)
	cls := &Classification{Regime: BullStrong, Confidence: 0.8}

	if _, ok := cache.Get("BTCUSDT", market.TF1h); ok {
		t.Error("expected cache miss on empty cache")
	}

	cache.Set("BTCUSDT", market.TF1h, cls)
	got, ok := cache.Get("BTCUSDT", market.TF1h)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Regime != BullStrong {
		t.Errorf("cached regime = %s, want BULL_STRONG", got.Regime)
	}

	// Different timeframe is a different key
	if _, ok := cache.Get("BTCUSDT", market.TF4h); ok {
		t.Error("expected miss for different timeframe")
	}
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache(10 * time.Millisecond)
	cache.Set("BTCUSDT", market.TF1h, &Classification{Regime: Sideways})

	time.Sleep(20 * time.Millisecond)
	if _, ok := cache.Get("BTCUSDT", market.TF1h); ok {
		t.Error("expected expired entry to miss")
	}

	cache.Purge()
	if cache.Len() != 0 {
		t.Errorf("purge left %d entries", cache.Len())
	}
}

func TestCacheLastWriteWins(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Set("BTCUSDT", market.TF1h, &Classification{Regime: BullWeak})
	cache.Set("BTCUSDT", market.TF1h, &Classification{Regime: BearWeak})

	got, ok := cache.Get("BTCUSDT", market.TF1h)
	if !ok || got.Regime != BearWeak {
		t.Errorf("expected last write BEAR_WEAK, got %+v", got)
	}
}
