// Package regime classifies the current market regime from an OHLCV series.
// The classification is a pure function of the latest indicator snapshot;
// callers own caching and refresh policy.
package regime

import (
	"time"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/indicators"
	"trading-signal-engine/internal/market"
)

// Regime labels the current market condition
type Regime string

const (
	BullStrong Regime = "BULL_STRONG"
	BullWeak   Regime = "BULL_WEAK"
	BearStrong Regime = "BEAR_STRONG"
	BearWeak   Regime = "BEAR_WEAK"
	Sideways   Regime = "SIDEWAYS"
	Volatile   Regime = "VOLATILE"
)

// IsBull reports whether the regime is a bullish trend phase
func (r Regime) IsBull() bool {
	return r == BullStrong || r == BullWeak
}

// IsBear reports whether the regime is a bearish trend phase
func (r Regime) IsBear() bool {
	return r == BearStrong || r == BearWeak
}

// KeyLevels holds the rolling support/resistance window around current price.
// Support <= Current <= Resistance is NOT guaranteed: price can break out of
// the rolling window between bars.
type KeyLevels struct {
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
	Current    float64 `json:"current"`
}

// Classification is the full regime classification output. All scores are
// bounded to [0, 1] at construction.
type Classification struct {
	Regime        Regime    `json:"regime"`
	TrendStrength float64   `json:"trend_strength"`
	Volatility    float64   `json:"volatility"`
	Momentum      float64   `json:"momentum"`
	Confidence    float64   `json:"confidence"`
	KeyLevels     KeyLevels `json:"key_levels"`
	ComputedAt    time.Time `json:"computed_at"`
}

// Classifier lookback parameters. The thresholds in Classify are tuned
// against these standard periods.
const (
	adxPeriod      = 14
	atrPeriod      = 14
	aroonPeriod    = 25
	cciPeriod      = 20
	rocPeriod      = 10
	keyLevelPeriod = 20

	// ADX above this marks a trending market
	trendingADX = 25.0

	// Fallback confidence when indicators are not computable
	fallbackConfidence = 0.25
)

// Classifier derives a Regime from indicator readings
type Classifier struct {
	logger zerolog.Logger
}

// NewClassifier creates a regime classifier
func NewClassifier(logger zerolog.Logger) *Classifier {
	return &Classifier{
		logger: logger.With().Str("component", "RegimeClassifier").Logger(),
	}
}

// Classify derives the market regime from the series. On a series too short
// for ADX/Aroon/CCI it falls back to a low-confidence SIDEWAYS
// classification instead of failing.
func (c *Classifier) Classify(series *market.Series) *Classification {
	bars := series.Bars
	currentPrice := series.LastClose()

	cls := &Classification{
		Regime:     Sideways,
		Confidence: fallbackConfidence,
		KeyLevels:  KeyLevels{Current: currentPrice},
		ComputedAt: time.Now().UTC(),
	}

	if support, resistance, err := indicators.CalculateRollingHighLow(bars, keyLevelPeriod); err == nil {
		cls.KeyLevels.Support = support
		cls.KeyLevels.Resistance = resistance
	}

	adx, errADX := indicators.CalculateADX(bars, adxPeriod)
	aroon, errAroon := indicators.CalculateAroon(bars, aroonPeriod)
	cci, errCCI := indicators.CalculateCCI(bars, cciPeriod)
	if errADX != nil || errAroon != nil || errCCI != nil {
		c.logger.Debug().
			Str("symbol", series.Symbol).
			Str("timeframe", string(series.Timeframe)).
			Int("bars", len(bars)).
			Msg("insufficient data for regime classification, defaulting to sideways")
		return cls
	}

	cls.TrendStrength = indicators.Clamp(adx.ADX/50.0, 0, 1)

	if atr, err := indicators.CalculateATR(bars, atrPeriod); err == nil && currentPrice > 0 {
		// ATR as percent of price, saturating at 1% - beyond that the
		// market is treated as fully volatile
		cls.Volatility = indicators.Clamp(atr/currentPrice*100.0, 0, 1)
	}

	if roc, err := indicators.CalculateROC(bars, rocPeriod); err == nil {
		abs := roc
		if abs < 0 {
			abs = -abs
		}
		cls.Momentum = indicators.Clamp(abs/10.0, 0, 1)
	}

	cls.Regime = decide(adx.ADX, aroon, cci, cls.Volatility)
	cls.Confidence = indicators.Clamp(
		(cls.TrendStrength+(1.0-cls.Volatility)+cls.Momentum)/3.0, 0, 1)

	c.logger.Debug().
		Str("symbol", series.Symbol).
		Str("timeframe", string(series.Timeframe)).
		Str("regime", string(cls.Regime)).
		Float64("adx", adx.ADX).
		Float64("trend_strength", cls.TrendStrength).
		Float64("volatility", cls.Volatility).
		Float64("confidence", cls.Confidence).
		Msg("regime classified")

	return cls
}

// decide implements the regime decision table, first match wins
func decide(adx float64, aroon *indicators.AroonResult, cci, volatility float64) Regime {
	if adx > trendingADX {
		switch {
		case aroon.Up > 70 && cci > 100:
			return BullStrong
		case aroon.Up > 50 && cci > 0:
			return BullWeak
		case aroon.Down > 70 && cci < -100:
			return BearStrong
		case aroon.Down > 50 && cci < 0:
			return BearWeak
		default:
			return Sideways
		}
	}
	if volatility > 0.5 {
		return Volatile
	}
	return Sideways
}
