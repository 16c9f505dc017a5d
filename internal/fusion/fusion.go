// Package fusion combines per-timeframe pattern and indicator evidence into
// one directional call. Every invocation is independent: no state survives
// between calls, and a discarded candidate leaves no trace beyond a log line.
package fusion

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trading-signal-engine/internal/indicators"
	"trading-signal-engine/internal/market"
	"trading-signal-engine/internal/patterns"
	"trading-signal-engine/internal/regime"
	"trading-signal-engine/internal/signals"
)

// SignalType is the terminal directional call
type SignalType string

const (
	Long  SignalType = "LONG"
	Short SignalType = "SHORT"
)

// ErrDegenerateRisk marks a candidate whose entry/stop geometry carries no
// measurable risk. Such candidates are discarded, never emitted.
var ErrDegenerateRisk = errors.New("candidate signal has zero or non-finite risk")

// TimeframeResult is one timeframe's full evidence set
type TimeframeResult struct {
	Timeframe      market.Timeframe
	Classification *regime.Classification
	Readings       map[string]signals.IndicatorReading
	Patterns       []patterns.Match
}

// Thresholds are the regime-conditioned aggregate levels a side must clear.
// They are asymmetric on purpose: a bull regime lowers the bar for LONG and
// raises it for SHORT.
type Thresholds struct {
	Long  float64 `json:"long"`
	Short float64 `json:"short"`
}

// Config carries the hand-tuned fusion constants. The defaults are
// empirically chosen values, not derived quantities.
type Config struct {
	Weights           map[market.Timeframe]float64 `json:"weights"`
	PatternShare      float64                      `json:"pattern_share"`
	RegimeBiasMax     float64                      `json:"regime_bias_max"`
	HighPriorityBoost float64                      `json:"high_priority_boost"`

	BullThresholds    Thresholds `json:"bull_thresholds"`
	BearThresholds    Thresholds `json:"bear_thresholds"`
	NeutralThresholds Thresholds `json:"neutral_thresholds"`

	MinRiskReward map[regime.Regime]float64 `json:"min_risk_reward"`

	// Fallback stop/target distances (fraction of price) when no pattern
	// supplies geometry
	StopPercent   map[regime.Regime]float64 `json:"stop_percent"`
	TargetPercent map[regime.Regime]float64 `json:"target_percent"`
}

// DefaultConfig returns the tuned swing-style fusion constants
func DefaultConfig() Config {
	return Config{
		Weights: map[market.Timeframe]float64{
			market.TF1w: 0.40,
			market.TF1d: 0.35,
			market.TF4h: 0.15,
			market.TF1h: 0.10,
		},
		PatternShare:      0.60,
		RegimeBiasMax:     0.15,
		HighPriorityBoost: 0.15,

		BullThresholds:    Thresholds{Long: 0.30, Short: 0.45},
		BearThresholds:    Thresholds{Long: 0.45, Short: 0.30},
		NeutralThresholds: Thresholds{Long: 0.38, Short: 0.38},

		MinRiskReward: map[regime.Regime]float64{
			regime.BullStrong: 1.5,
			regime.BullWeak:   1.8,
			regime.BearStrong: 2.0,
			regime.BearWeak:   2.2,
			regime.Sideways:   2.5,
			regime.Volatile:   3.0,
		},
		StopPercent: map[regime.Regime]float64{
			regime.BullStrong: 0.02,
			regime.BullWeak:   0.02,
			regime.BearStrong: 0.02,
			regime.BearWeak:   0.02,
			regime.Sideways:   0.015,
			regime.Volatile:   0.02,
		},
		TargetPercent: map[regime.Regime]float64{
			regime.BullStrong: 0.05,
			regime.BullWeak:   0.05,
			regime.BearStrong: 0.05,
			regime.BearWeak:   0.05,
			regime.Sideways:   0.04,
			regime.Volatile:   0.07,
		},
	}
}

// Validate checks the structural requirements on the constants
func (c Config) Validate() error {
	sum := 0.0
	for tf, w := range c.Weights {
		if w < 0 {
			return fmt.Errorf("negative weight %.3f for timeframe %s", w, tf)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("timeframe weights sum to %.4f, must sum to 1", sum)
	}
	if c.PatternShare < 0 || c.PatternShare > 1 {
		return fmt.Errorf("pattern share %.3f outside [0,1]", c.PatternShare)
	}
	return nil
}

// FusedSignal is the terminal output of one fusion call
type FusedSignal struct {
	ID                     string             `json:"id"`
	Symbol                 string             `json:"symbol"`
	SignalType             SignalType         `json:"signal_type"`
	Timeframes             []market.Timeframe `json:"timeframes"`
	EntryPrice             float64            `json:"entry_price"`
	StopLoss               float64            `json:"stop_loss"`
	TakeProfit             float64            `json:"take_profit"`
	RiskReward             float64            `json:"risk_reward"`
	Confidence             float64            `json:"confidence"`
	Reasoning              string             `json:"reasoning"`
	ContributingIndicators []string           `json:"contributing_indicators"`
	GeneratedAt            time.Time          `json:"generated_at"`
}

// Fuser combines timeframe evidence under a fixed constant set
type Fuser struct {
	cfg    Config
	logger zerolog.Logger
}

// NewFuser creates a fuser after validating the constants
func NewFuser(cfg Config, logger zerolog.Logger) (*Fuser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Fuser{
		cfg:    cfg,
		logger: logger.With().Str("component", "SignalFusion").Logger(),
	}, nil
}

// Fuse turns the per-timeframe evidence into at most one signal. A nil
// result with nil error means HOLD: no tradeable edge, which is the common
// case and not a fault.
func (f *Fuser) Fuse(symbol string, price float64, overall *regime.Classification, results []TimeframeResult) (*FusedSignal, error) {
	if len(results) == 0 || overall == nil {
		return nil, nil
	}

	var bullish, bearish float64
	for _, res := range results {
		w, ok := f.cfg.Weights[res.Timeframe]
		if !ok {
			continue
		}
		pb, pbe := patternScores(res.Patterns)
		ib, ibe := indicatorScores(res.Readings)
		bullish += w * (f.cfg.PatternShare*pb + (1-f.cfg.PatternShare)*ib)
		bearish += w * (f.cfg.PatternShare*pbe + (1-f.cfg.PatternShare)*ibe)
	}

	// Regime bias scaled by trend strength, additive on the trending side
	bias := f.cfg.RegimeBiasMax * overall.TrendStrength
	switch {
	case overall.Regime.IsBull():
		bullish += bias
	case overall.Regime.IsBear():
		bearish += bias
	}

	thresholds := f.thresholdsFor(overall.Regime)

	var direction SignalType
	var aggregate float64
	switch {
	case bullish > bearish && bullish > thresholds.Long:
		direction = Long
		aggregate = bullish
	case bearish > bullish && bearish > thresholds.Short:
		direction = Short
		aggregate = bearish
	default:
		f.logger.Debug().
			Str("symbol", symbol).
			Float64("bullish", bullish).
			Float64("bearish", bearish).
			Str("regime", string(overall.Regime)).
			Msg("no side cleared its threshold, holding")
		return nil, nil
	}

	contributing := contributingPatterns(results, direction)
	entry, stop, target := f.geometry(price, direction, overall.Regime, contributing)

	risk := math.Abs(entry - stop)
	reward := math.Abs(target - entry)
	if risk == 0 || !isFinite(entry, stop, target) {
		f.logger.Warn().
			Str("symbol", symbol).
			Float64("entry", entry).
			Float64("stop", stop).
			Msg("discarding candidate: " + ErrDegenerateRisk.Error())
		return nil, nil
	}
	riskReward := reward / risk

	if min, ok := f.cfg.MinRiskReward[overall.Regime]; ok && riskReward < min {
		f.logger.Debug().
			Str("symbol", symbol).
			Float64("risk_reward", riskReward).
			Float64("minimum", min).
			Msg("discarding candidate below regime risk/reward minimum")
		return nil, nil
	}

	confidence := indicators.Clamp(aggregate, 0, 1)
	boosted := false
	for _, m := range contributing {
		if patterns.HighPriorityPatterns[m.Pattern] {
			confidence = indicators.Clamp(confidence+f.cfg.HighPriorityBoost, 0, 1)
			boosted = true
			break
		}
	}

	sig := &FusedSignal{
		ID:                     uuid.New().String(),
		Symbol:                 symbol,
		SignalType:             direction,
		Timeframes:             timeframesOf(results),
		EntryPrice:             entry,
		StopLoss:               stop,
		TakeProfit:             target,
		RiskReward:             riskReward,
		Confidence:             confidence,
		Reasoning:              f.reasoning(overall, direction, bullish, bearish, contributing, boosted),
		ContributingIndicators: contributingIndicators(results, direction),
		GeneratedAt:            time.Now().UTC(),
	}

	f.logger.Info().
		Str("symbol", symbol).
		Str("signal", string(direction)).
		Float64("confidence", sig.Confidence).
		Float64("risk_reward", sig.RiskReward).
		Msg("fused signal emitted")
	return sig, nil
}

func (f *Fuser) thresholdsFor(r regime.Regime) Thresholds {
	switch {
	case r.IsBull():
		return f.cfg.BullThresholds
	case r.IsBear():
		return f.cfg.BearThresholds
	default:
		return f.cfg.NeutralThresholds
	}
}

// patternScores reduces a timeframe's matches to bullish and bearish
// evidence in [0,1]: the best combined score per side
func patternScores(matches []patterns.Match) (bull, bear float64) {
	for _, m := range matches {
		score := m.CombinedScore()
		switch m.Direction {
		case patterns.Bullish:
			if score > bull {
				bull = score
			}
		case patterns.Bearish:
			if score > bear {
				bear = score
			}
		}
	}
	return bull, bear
}

// indicatorScores averages reading confidence per side over all computable
// readings. Neutral readings dilute both sides, which is intended: a wall of
// neutral indicators should not produce a confident call.
func indicatorScores(readings map[string]signals.IndicatorReading) (bull, bear float64) {
	if len(readings) == 0 {
		return 0, 0
	}
	var bullSum, bearSum float64
	for _, r := range readings {
		switch r.Signal {
		case signals.Buy:
			bullSum += r.Confidence
		case signals.Sell:
			bearSum += r.Confidence
		}
	}
	n := float64(len(readings))
	return bullSum / n, bearSum / n
}

// contributingPatterns returns the best direction-matching pattern per
// timeframe, highest combined score first
func contributingPatterns(results []TimeframeResult, direction SignalType) []patterns.Match {
	want := patterns.Bullish
	if direction == Short {
		want = patterns.Bearish
	}
	var out []patterns.Match
	for _, res := range results {
		best := -1
		for i, m := range res.Patterns {
			if m.Direction != want {
				continue
			}
			if best < 0 || m.CombinedScore() > res.Patterns[best].CombinedScore() {
				best = i
			}
		}
		if best >= 0 {
			out = append(out, res.Patterns[best])
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CombinedScore() > out[b].CombinedScore()
	})
	return out
}

// geometry averages entry/stop/target over the contributing patterns, or
// falls back to regime-dependent distances from the current price
func (f *Fuser) geometry(price float64, direction SignalType, r regime.Regime, contributing []patterns.Match) (entry, stop, target float64) {
	if len(contributing) > 0 {
		for _, m := range contributing {
			entry += m.EntryPrice
			stop += m.StopLoss
			target += m.TakeProfit
		}
		n := float64(len(contributing))
		return entry / n, stop / n, target / n
	}

	stopPct := f.cfg.StopPercent[r]
	targetPct := f.cfg.TargetPercent[r]
	if direction == Long {
		return price, price * (1 - stopPct), price * (1 + targetPct)
	}
	return price, price * (1 + stopPct), price * (1 - targetPct)
}

func contributingIndicators(results []TimeframeResult, direction SignalType) []string {
	want := signals.Buy
	if direction == Short {
		want = signals.Sell
	}
	seen := make(map[string]bool)
	for _, res := range results {
		for name, r := range res.Readings {
			if r.Signal == want {
				seen[name] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (f *Fuser) reasoning(overall *regime.Classification, direction SignalType, bullish, bearish float64, contributing []patterns.Match, boosted bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s regime (trend %.2f, volatility %.2f): bullish %.2f vs bearish %.2f",
		overall.Regime, overall.TrendStrength, overall.Volatility, bullish, bearish)
	if len(contributing) > 0 {
		names := make([]string, 0, len(contributing))
		for _, m := range contributing {
			names = append(names, string(m.Pattern))
		}
		fmt.Fprintf(&b, "; %s patterns: %s", strings.ToLower(string(direction)), strings.Join(names, ", "))
	}
	if boosted {
		b.WriteString("; high-priority pattern boost applied")
	}
	return b.String()
}

func timeframesOf(results []TimeframeResult) []market.Timeframe {
	out := make([]market.Timeframe, len(results))
	for i, res := range results {
		out[i] = res.Timeframe
	}
	return out
}

func isFinite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
