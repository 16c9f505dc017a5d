package adaptive

import (
	"testing"

	"trading-signal-engine/internal/regime"
)

var allProfiles = []Profile{Scalping, Swing, Trend, Momentum}

func TestAdaptBoundsProperty(t *testing.T) {
	// No combination of regime scores may push a parameter outside its
	// documented clamp range
	extremes := []float64{0, 0.1, 0.29, 0.3, 0.5, 0.7, 0.71, 0.9, 1.0}

	for _, profile := range allProfiles {
		for _, vol := range extremes {
			for _, trend := range extremes {
				cls := &regime.Classification{
					Regime:        regime.Volatile,
					Volatility:    vol,
					TrendStrength: trend,
				}
				p := Adapt(cls, profile)
				if err := Validate(p); err != nil {
					t.Errorf("profile=%s vol=%.2f trend=%.2f: %v", profile, vol, trend, err)
				}
				if p.EMAFast >= p.EMASlow {
					t.Errorf("profile=%s: ema_fast %d >= ema_slow %d", profile, p.EMAFast, p.EMASlow)
				}
				if p.MACDFast >= p.MACDSlow {
					t.Errorf("profile=%s: macd_fast %d >= macd_slow %d", profile, p.MACDFast, p.MACDSlow)
				}
			}
		}
	}
}

func TestAdaptHighVolatilityShrinks(t *testing.T) {
	calm := &regime.Classification{Volatility: 0.5}
	stormy := &regime.Classification{Volatility: 0.9}

	base := Adapt(calm, Swing)
	shrunk := Adapt(stormy, Swing)

	if shrunk.RSIPeriod >= base.RSIPeriod {
		t.Errorf("high volatility should shrink RSI period: %d vs %d", shrunk.RSIPeriod, base.RSIPeriod)
	}
	if shrunk.EMAFast >= base.EMAFast {
		t.Errorf("high volatility should shrink fast EMA: %d vs %d", shrunk.EMAFast, base.EMAFast)
	}
	if shrunk.BollingerPeriod >= base.BollingerPeriod {
		t.Errorf("high volatility should shrink Bollinger length: %d vs %d", shrunk.BollingerPeriod, base.BollingerPeriod)
	}
}

func TestAdaptLowVolatilityGrows(t *testing.T) {
	mid := &regime.Classification{Volatility: 0.5}
	quiet := &regime.Classification{Volatility: 0.1}

	base := Adapt(mid, Swing)
	grown := Adapt(quiet, Swing)

	if grown.RSIPeriod <= base.RSIPeriod {
		t.Errorf("low volatility should grow RSI period: %d vs %d", grown.RSIPeriod, base.RSIPeriod)
	}
}

func TestAdaptStrongTrendShortensMACD(t *testing.T) {
	weak := &regime.Classification{Volatility: 0.5, TrendStrength: 0.5}
	strong := &regime.Classification{Volatility: 0.5, TrendStrength: 0.9}

	base := Adapt(weak, Swing)
	reactive := Adapt(strong, Swing)

	if reactive.MACDFast >= base.MACDFast {
		t.Errorf("strong trend should shorten MACD fast: %d vs %d", reactive.MACDFast, base.MACDFast)
	}
	if reactive.MACDSlow >= base.MACDSlow {
		t.Errorf("strong trend should shorten MACD slow: %d vs %d", reactive.MACDSlow, base.MACDSlow)
	}
}

func TestAdaptDeterministic(t *testing.T) {
	cls := &regime.Classification{Regime: regime.BullStrong, Volatility: 0.8, TrendStrength: 0.85}

	p1 := Adapt(cls, Scalping)
	p2 := Adapt(cls, Scalping)
	if p1 != p2 {
		t.Errorf("Adapt is not deterministic: %+v vs %+v", p1, p2)
	}
}

func TestAdaptProfilesDiffer(t *testing.T) {
	cls := &regime.Classification{Volatility: 0.5}

	scalp := Adapt(cls, Scalping)
	swing := Adapt(cls, Swing)
	if scalp.RSIPeriod >= swing.RSIPeriod {
		t.Errorf("scalping RSI period %d should be shorter than swing %d", scalp.RSIPeriod, swing.RSIPeriod)
	}
	if scalp.EMAFast >= swing.EMAFast {
		t.Errorf("scalping fast EMA %d should be shorter than swing %d", scalp.EMAFast, swing.EMAFast)
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	p := baseParams(Swing)
	p.RSIPeriod = 3
	if err := Validate(p); err == nil {
		t.Error("expected validation failure for rsi_period=3")
	}

	p = baseParams(Swing)
	p.MACDSlow = 40
	if err := Validate(p); err == nil {
		t.Error("expected validation failure for macd_slow=40")
	}
}
