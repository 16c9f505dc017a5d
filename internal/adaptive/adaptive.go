// Package adaptive maps a classified market regime and a strategy profile
// to concrete indicator parameters. Adjustment is deterministic: identical
// (regime, profile) input always yields the same parameter set.
package adaptive

import (
	"errors"
	"fmt"

	"trading-signal-engine/internal/regime"
)

// Profile selects a base parameter family
type Profile string

const (
	Scalping Profile = "scalping"
	Swing    Profile = "swing"
	Trend    Profile = "trend"
	Momentum Profile = "momentum"
)

// ErrInvalidParameter indicates a period outside its documented clamp range
// reached a computation. This is a programming defect (the adapter clamps
// everything it emits), so callers should fail loudly rather than clamp.
var ErrInvalidParameter = errors.New("indicator parameter outside documented range")

// Params is the concrete indicator parameter set consumed by the indicator
// library and signal synthesizer
type Params struct {
	RSIPeriod       int     `json:"rsi_period"`
	EMAFast         int     `json:"ema_fast"`
	EMASlow         int     `json:"ema_slow"`
	MACDFast        int     `json:"macd_fast"`
	MACDSlow        int     `json:"macd_slow"`
	MACDSignal      int     `json:"macd_signal"`
	BollingerPeriod int     `json:"bollinger_period"`
	BollingerStdDev float64 `json:"bollinger_std_dev"`
	StochK          int     `json:"stoch_k"`
	StochD          int     `json:"stoch_d"`
	WilliamsRPeriod int     `json:"williams_r_period"`
	CCIPeriod       int     `json:"cci_period"`
	ATRPeriod       int     `json:"atr_period"`
	ADXPeriod       int     `json:"adx_period"`
	AroonPeriod     int     `json:"aroon_period"`
}

// Documented clamp bounds. Adjustments never move a parameter outside its
// bound, no matter how extreme the regime scores are.
const (
	MinRSIPeriod = 7
	MaxRSIPeriod = 21
	MinEMAFast   = 5
	MaxEMAFast   = 21
	MinEMASlow   = 13
	MaxEMASlow   = 55
	MinMACDFast  = 6
	MaxMACDFast  = 12
	MinMACDSlow  = 13
	MaxMACDSlow  = 26
	MinBollinger = 10
	MaxBollinger = 30
)

// Adjustment thresholds and steps
const (
	highVolatility      = 0.7
	lowVolatility       = 0.3
	strongTrendStrength = 0.8

	oscillatorStep = 2 // RSI / EMA-fast shrink or grow step
	bollingerStep  = 3
	macdFastStep   = 2
	macdSlowStep   = 4
)

// baseParams returns the fixed per-profile parameter table
func baseParams(profile Profile) Params {
	switch profile {
	case Scalping:
		return Params{
			RSIPeriod: 9, EMAFast: 5, EMASlow: 13,
			MACDFast: 8, MACDSlow: 17, MACDSignal: 9,
			BollingerPeriod: 12, BollingerStdDev: 2.0,
			StochK: 5, StochD: 3,
			WilliamsRPeriod: 10, CCIPeriod: 14,
			ATRPeriod: 14, ADXPeriod: 14, AroonPeriod: 25,
		}
	case Trend:
		return Params{
			RSIPeriod: 14, EMAFast: 21, EMASlow: 55,
			MACDFast: 12, MACDSlow: 26, MACDSignal: 9,
			BollingerPeriod: 20, BollingerStdDev: 2.0,
			StochK: 14, StochD: 3,
			WilliamsRPeriod: 14, CCIPeriod: 20,
			ATRPeriod: 14, ADXPeriod: 14, AroonPeriod: 25,
		}
	case Momentum:
		return Params{
			RSIPeriod: 10, EMAFast: 8, EMASlow: 21,
			MACDFast: 10, MACDSlow: 22, MACDSignal: 7,
			BollingerPeriod: 15, BollingerStdDev: 2.0,
			StochK: 9, StochD: 3,
			WilliamsRPeriod: 10, CCIPeriod: 14,
			ATRPeriod: 14, ADXPeriod: 14, AroonPeriod: 25,
		}
	default: // Swing
		return Params{
			RSIPeriod: 14, EMAFast: 9, EMASlow: 21,
			MACDFast: 12, MACDSlow: 26, MACDSignal: 9,
			BollingerPeriod: 20, BollingerStdDev: 2.0,
			StochK: 14, StochD: 3,
			WilliamsRPeriod: 14, CCIPeriod: 20,
			ATRPeriod: 14, ADXPeriod: 14, AroonPeriod: 25,
		}
	}
}

// Adapt produces the indicator parameter set for a regime and profile.
// High volatility shrinks the reactive windows, low volatility grows them,
// a very strong trend shortens the MACD periods. Every adjusted value is
// clamped to its documented bound.
func Adapt(cls *regime.Classification, profile Profile) Params {
	p := baseParams(profile)

	switch {
	case cls.Volatility > highVolatility:
		p.RSIPeriod = clampInt(p.RSIPeriod-oscillatorStep, MinRSIPeriod, MaxRSIPeriod)
		p.EMAFast = clampInt(p.EMAFast-oscillatorStep, MinEMAFast, MaxEMAFast)
		p.BollingerPeriod = clampInt(p.BollingerPeriod-bollingerStep, MinBollinger, MaxBollinger)
	case cls.Volatility < lowVolatility:
		p.RSIPeriod = clampInt(p.RSIPeriod+oscillatorStep, MinRSIPeriod, MaxRSIPeriod)
		p.EMAFast = clampInt(p.EMAFast+oscillatorStep, MinEMAFast, MaxEMAFast)
		p.BollingerPeriod = clampInt(p.BollingerPeriod+bollingerStep, MinBollinger, MaxBollinger)
	}

	if cls.TrendStrength > strongTrendStrength {
		p.MACDFast = clampInt(p.MACDFast-macdFastStep, MinMACDFast, MaxMACDFast)
		p.MACDSlow = clampInt(p.MACDSlow-macdSlowStep, MinMACDSlow, MaxMACDSlow)
	}

	// The EMA pair must stay ordered after adjustment
	if p.EMAFast >= p.EMASlow {
		p.EMAFast = clampInt(p.EMASlow-1, MinEMAFast, MaxEMAFast)
	}
	if p.MACDFast >= p.MACDSlow {
		p.MACDFast = clampInt(p.MACDSlow-1, MinMACDFast, MaxMACDFast)
	}

	return p
}

// Validate checks that every parameter sits inside its documented range.
// A failure here means a caller bypassed Adapt.
func Validate(p Params) error {
	checks := []struct {
		name     string
		val, min int
		max      int
	}{
		{"rsi_period", p.RSIPeriod, MinRSIPeriod, MaxRSIPeriod},
		{"ema_fast", p.EMAFast, MinEMAFast, MaxEMAFast},
		{"ema_slow", p.EMASlow, MinEMASlow, MaxEMASlow},
		{"macd_fast", p.MACDFast, MinMACDFast, MaxMACDFast},
		{"macd_slow", p.MACDSlow, MinMACDSlow, MaxMACDSlow},
		{"bollinger_period", p.BollingerPeriod, MinBollinger, MaxBollinger},
	}
	for _, c := range checks {
		if c.val < c.min || c.val > c.max {
			return fmt.Errorf("%w: %s=%d not in [%d,%d]", ErrInvalidParameter, c.name, c.val, c.min, c.max)
		}
	}
	if p.MACDSignal < 2 || p.StochK < 2 || p.StochD < 1 {
		return fmt.Errorf("%w: smoothing periods too small", ErrInvalidParameter)
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
