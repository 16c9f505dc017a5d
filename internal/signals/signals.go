// Package signals turns indicator values into directional readings using
// regime-aware thresholds. Each reading carries the raw value alongside the
// call so consumers never see a bare label.
package signals

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/adaptive"
	"trading-signal-engine/internal/indicators"
	"trading-signal-engine/internal/market"
	"trading-signal-engine/internal/regime"
)

// SignalType is the directional call of a single indicator
type SignalType string

const (
	Buy     SignalType = "BUY"
	Sell    SignalType = "SELL"
	Neutral SignalType = "NEUTRAL"
)

// IndicatorReading is one indicator's synthesized signal. Strength measures
// how far the value sits past its threshold; confidence additionally folds
// in the regime classification confidence.
type IndicatorReading struct {
	Name        string     `json:"name"`
	Value       float64    `json:"value"`
	Signal      SignalType `json:"signal"`
	Strength    float64    `json:"strength"`
	Confidence  float64    `json:"confidence"`
	Description string     `json:"description"`
	DerivedAt   time.Time  `json:"derived_at"`
}

// Regime-conditioned RSI thresholds. Bull regimes demand deeper oversold
// readings before buying; bear regimes trigger earlier.
const (
	rsiBullOversold      = 25.0
	rsiBullOverbought    = 75.0
	rsiBearOversold      = 35.0
	rsiBearOverbought    = 65.0
	rsiNeutralOversold   = 30.0
	rsiNeutralOverbought = 70.0

	stochOversold   = 20.0
	stochOverbought = 80.0

	williamsOversold   = -80.0
	williamsOverbought = -20.0

	cciExtreme = 100.0

	// MACD histogram saturates strength at 0.5% of price
	macdHistogramScale = 200.0

	// Trend-aligned MACD calls get a confidence boost
	macdTrendBoost = 1.2
)

// Synthesizer produces IndicatorReadings for one series under one regime
type Synthesizer struct {
	logger zerolog.Logger
}

// NewSynthesizer creates a signal synthesizer
func NewSynthesizer(logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		logger: logger.With().Str("component", "SignalSynthesizer").Logger(),
	}
}

// Synthesize evaluates every indicator in the adapted parameter set against
// the series and regime. Indicators without enough bars are skipped, never
// scored as neutral: the returned map contains only computable readings.
func (s *Synthesizer) Synthesize(series *market.Series, params adaptive.Params, cls *regime.Classification) map[string]IndicatorReading {
	readings := make(map[string]IndicatorReading)
	now := time.Now()

	add := func(name string, r *IndicatorReading) {
		if r == nil {
			s.logger.Debug().
				Str("symbol", series.Symbol).
				Str("timeframe", string(series.Timeframe)).
				Str("indicator", name).
				Msg("indicator not computable, excluded from scoring")
			return
		}
		r.Name = name
		r.DerivedAt = now
		readings[name] = *r
	}

	add("rsi", s.rsiReading(series, params, cls))
	add("macd", s.macdReading(series, params, cls))
	add("ema", s.emaReading(series, params, cls))
	add("bollinger", s.bollingerReading(series, params, cls))
	add("stochastic", s.stochasticReading(series, params, cls))
	add("williams_r", s.williamsReading(series, params, cls))
	add("cci", s.cciReading(series, params, cls))
	add("adx", s.adxReading(series, params, cls))

	return readings
}

// rsiThresholds returns the (oversold, overbought) pair for a regime
func rsiThresholds(cls *regime.Classification) (float64, float64) {
	switch {
	case cls.Regime.IsBull():
		return rsiBullOversold, rsiBullOverbought
	case cls.Regime.IsBear():
		return rsiBearOversold, rsiBearOverbought
	default:
		return rsiNeutralOversold, rsiNeutralOverbought
	}
}

func (s *Synthesizer) rsiReading(series *market.Series, params adaptive.Params, cls *regime.Classification) *IndicatorReading {
	rsi, err := indicators.CalculateRSI(series.Bars, params.RSIPeriod)
	if err != nil {
		return nil
	}

	oversold, overbought := rsiThresholds(cls)
	r := &IndicatorReading{Value: rsi, Signal: Neutral}

	switch {
	case rsi <= oversold:
		r.Signal = Buy
		r.Strength = indicators.Clamp((oversold-rsi)/oversold, 0, 1)
		r.Description = fmt.Sprintf("RSI %.1f below %.0f oversold", rsi, oversold)
	case rsi >= overbought:
		r.Signal = Sell
		r.Strength = indicators.Clamp((rsi-overbought)/(100-overbought), 0, 1)
		r.Description = fmt.Sprintf("RSI %.1f above %.0f overbought", rsi, overbought)
	default:
		r.Description = fmt.Sprintf("RSI %.1f inside (%.0f, %.0f) band", rsi, oversold, overbought)
	}
	r.Confidence = indicators.Clamp(r.Strength*cls.Confidence, 0, 1)
	return r
}

func (s *Synthesizer) macdReading(series *market.Series, params adaptive.Params, cls *regime.Classification) *IndicatorReading {
	macd, err := indicators.CalculateMACD(series.Bars, params.MACDFast, params.MACDSlow, params.MACDSignal)
	if err != nil {
		return nil
	}

	price := series.LastClose()
	r := &IndicatorReading{Value: macd.Histogram, Signal: Neutral}
	if price > 0 {
		r.Strength = indicators.Clamp(abs(macd.Histogram)/price*macdHistogramScale, 0, 1)
	}

	switch {
	case macd.MACD > macd.Signal && macd.Histogram > 0:
		r.Signal = Buy
		r.Description = fmt.Sprintf("MACD %.4f over signal %.4f, rising histogram", macd.MACD, macd.Signal)
	case macd.MACD < macd.Signal && macd.Histogram < 0:
		r.Signal = Sell
		r.Description = fmt.Sprintf("MACD %.4f under signal %.4f, falling histogram", macd.MACD, macd.Signal)
	default:
		r.Strength = 0
		r.Description = "MACD crossing, no committed direction"
	}

	r.Confidence = r.Strength * cls.Confidence
	if (r.Signal == Buy && cls.Regime.IsBull()) || (r.Signal == Sell && cls.Regime.IsBear()) {
		r.Confidence *= macdTrendBoost
	}
	r.Confidence = indicators.Clamp(r.Confidence, 0, 1)
	return r
}

func (s *Synthesizer) emaReading(series *market.Series, params adaptive.Params, cls *regime.Classification) *IndicatorReading {
	fast, err := indicators.CalculateEMA(series.Bars, params.EMAFast)
	if err != nil {
		return nil
	}
	slow, err := indicators.CalculateEMA(series.Bars, params.EMASlow)
	if err != nil {
		return nil
	}

	price := series.LastClose()
	r := &IndicatorReading{Value: fast - slow, Signal: Neutral}

	separation := 0.0
	if slow != 0 {
		separation = abs(fast-slow) / slow
	}

	switch {
	case price > fast && fast > slow:
		r.Signal = Buy
		r.Strength = indicators.Clamp(separation*50, 0, 1)
		r.Description = fmt.Sprintf("price %.4f above fast EMA %.4f above slow EMA %.4f", price, fast, slow)
	case price < fast && fast < slow:
		r.Signal = Sell
		r.Strength = indicators.Clamp(separation*50, 0, 1)
		r.Description = fmt.Sprintf("price %.4f below fast EMA %.4f below slow EMA %.4f", price, fast, slow)
	default:
		// Partial stacking still carries a little information
		r.Strength = indicators.Clamp(separation*10, 0, 0.3)
		r.Description = fmt.Sprintf("EMAs not stacked: price %.4f, fast %.4f, slow %.4f", price, fast, slow)
	}
	r.Confidence = indicators.Clamp(r.Strength*cls.Confidence, 0, 1)
	return r
}

func (s *Synthesizer) bollingerReading(series *market.Series, params adaptive.Params, cls *regime.Classification) *IndicatorReading {
	bb, err := indicators.CalculateBollingerBands(series.Bars, params.BollingerPeriod, params.BollingerStdDev)
	if err != nil {
		return nil
	}

	price := series.LastClose()
	width := bb.Upper - bb.Lower
	r := &IndicatorReading{Value: price, Signal: Neutral}
	if width <= 0 {
		r.Description = "Bollinger bands collapsed, no reading"
		return r
	}
	position := (price - bb.Lower) / width

	switch {
	case price <= bb.Lower:
		r.Signal = Buy
		r.Strength = 0.8
		r.Description = fmt.Sprintf("price %.4f at or below lower band %.4f", price, bb.Lower)
	case price >= bb.Upper:
		r.Signal = Sell
		r.Strength = 0.8
		r.Description = fmt.Sprintf("price %.4f at or above upper band %.4f", price, bb.Upper)
	case position > 0.7:
		// Inside the band but leaning: partial evidence is kept, not cut
		r.Signal = Sell
		r.Strength = indicators.Clamp((position-0.7)/0.3*0.5, 0, 0.5)
		r.Description = fmt.Sprintf("price in upper band region, position %.2f", position)
	case position < 0.3:
		r.Signal = Buy
		r.Strength = indicators.Clamp((0.3-position)/0.3*0.5, 0, 0.5)
		r.Description = fmt.Sprintf("price in lower band region, position %.2f", position)
	default:
		r.Description = fmt.Sprintf("price mid-band, position %.2f", position)
	}
	r.Confidence = indicators.Clamp(r.Strength*cls.Confidence, 0, 1)
	return r
}

func (s *Synthesizer) stochasticReading(series *market.Series, params adaptive.Params, cls *regime.Classification) *IndicatorReading {
	stoch, err := indicators.CalculateStochastic(series.Bars, params.StochK, params.StochD)
	if err != nil {
		return nil
	}

	r := &IndicatorReading{Value: stoch.K, Signal: Neutral}
	switch {
	case stoch.K <= stochOversold && stoch.D <= stochOversold:
		r.Signal = Buy
		r.Strength = indicators.Clamp((stochOversold-stoch.K)/stochOversold, 0, 1)
		r.Description = fmt.Sprintf("stochastic %%K %.1f / %%D %.1f oversold", stoch.K, stoch.D)
	case stoch.K >= stochOverbought && stoch.D >= stochOverbought:
		r.Signal = Sell
		r.Strength = indicators.Clamp((stoch.K-stochOverbought)/(100-stochOverbought), 0, 1)
		r.Description = fmt.Sprintf("stochastic %%K %.1f / %%D %.1f overbought", stoch.K, stoch.D)
	default:
		r.Description = fmt.Sprintf("stochastic %%K %.1f / %%D %.1f mid-range", stoch.K, stoch.D)
	}
	r.Confidence = indicators.Clamp(r.Strength*cls.Confidence, 0, 1)
	return r
}

func (s *Synthesizer) williamsReading(series *market.Series, params adaptive.Params, cls *regime.Classification) *IndicatorReading {
	wr, err := indicators.CalculateWilliamsR(series.Bars, params.WilliamsRPeriod)
	if err != nil {
		return nil
	}

	r := &IndicatorReading{Value: wr, Signal: Neutral}
	switch {
	case wr <= williamsOversold:
		r.Signal = Buy
		r.Strength = indicators.Clamp((williamsOversold-wr)/20, 0, 1)
		r.Description = fmt.Sprintf("Williams %%R %.1f oversold", wr)
	case wr >= williamsOverbought:
		r.Signal = Sell
		r.Strength = indicators.Clamp((wr-williamsOverbought)/20, 0, 1)
		r.Description = fmt.Sprintf("Williams %%R %.1f overbought", wr)
	default:
		r.Description = fmt.Sprintf("Williams %%R %.1f mid-range", wr)
	}
	r.Confidence = indicators.Clamp(r.Strength*cls.Confidence, 0, 1)
	return r
}

func (s *Synthesizer) cciReading(series *market.Series, params adaptive.Params, cls *regime.Classification) *IndicatorReading {
	cci, err := indicators.CalculateCCI(series.Bars, params.CCIPeriod)
	if err != nil {
		return nil
	}

	r := &IndicatorReading{Value: cci, Signal: Neutral}
	switch {
	case cci <= -cciExtreme:
		r.Signal = Buy
		r.Strength = indicators.Clamp((-cciExtreme-cci)/cciExtreme, 0, 1)
		r.Description = fmt.Sprintf("CCI %.0f below -100 extreme", cci)
	case cci >= cciExtreme:
		r.Signal = Sell
		r.Strength = indicators.Clamp((cci-cciExtreme)/cciExtreme, 0, 1)
		r.Description = fmt.Sprintf("CCI %.0f above +100 extreme", cci)
	default:
		r.Description = fmt.Sprintf("CCI %.0f inside normal range", cci)
	}
	r.Confidence = indicators.Clamp(r.Strength*cls.Confidence, 0, 1)
	return r
}

// adxReading is a trend-strength gauge, not a directional call: it reports
// NEUTRAL with strength proportional to ADX so fusion can weigh how
// trustworthy the directional indicators are.
func (s *Synthesizer) adxReading(series *market.Series, params adaptive.Params, cls *regime.Classification) *IndicatorReading {
	adx, err := indicators.CalculateADX(series.Bars, params.ADXPeriod)
	if err != nil {
		return nil
	}

	r := &IndicatorReading{
		Value:    adx.ADX,
		Signal:   Neutral,
		Strength: indicators.Clamp(adx.ADX/50, 0, 1),
	}
	if adx.ADX > 25 {
		r.Description = fmt.Sprintf("ADX %.1f trending, +DI %.1f / -DI %.1f", adx.ADX, adx.PlusDI, adx.MinusDI)
	} else {
		r.Description = fmt.Sprintf("ADX %.1f ranging", adx.ADX)
	}
	r.Confidence = indicators.Clamp(r.Strength*cls.Confidence, 0, 1)
	return r
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
