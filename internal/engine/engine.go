// Package engine wires the analysis pipeline behind one facade: bars in,
// at most one fused signal out. All I/O lives in the BarSource and the
// optional regime store; everything else is pure computation.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/adaptive"
	"trading-signal-engine/internal/fusion"
	"trading-signal-engine/internal/indicators"
	"trading-signal-engine/internal/market"
	"trading-signal-engine/internal/patterns"
	"trading-signal-engine/internal/regime"
	"trading-signal-engine/internal/signals"
)

// RegimeStore is an optional write-through store for classifications shared
// across engine hosts. A nil store disables write-through; store errors
// degrade to recomputation, never to failure.
type RegimeStore interface {
	Get(ctx context.Context, symbol string, tf market.Timeframe) (*regime.Classification, error)
	Set(ctx context.Context, symbol string, tf market.Timeframe, cls *regime.Classification) error
}

// Config holds the engine-level knobs
type Config struct {
	Profile       adaptive.Profile
	Timeframes    []market.Timeframe
	BarLimit      int
	PatternWindow int
	CacheTTL      time.Duration
	Fusion        fusion.Config
}

// DefaultConfig returns the swing-style engine configuration
func DefaultConfig() Config {
	return Config{
		Profile:       adaptive.Swing,
		Timeframes:    []market.Timeframe{market.TF1h, market.TF4h, market.TF1d, market.TF1w},
		BarLimit:      250,
		PatternWindow: 5,
		CacheTTL:      regime.DefaultCacheTTL,
		Fusion:        fusion.DefaultConfig(),
	}
}

// Engine is the analysis facade
type Engine struct {
	source      market.BarSource
	classifier  *regime.Classifier
	detector    *patterns.Detector
	synthesizer *signals.Synthesizer
	fuser       *fusion.Fuser
	regimeCache *regime.Cache
	store       RegimeStore
	cfg         Config
	logger      zerolog.Logger
}

// New builds an engine. store may be nil.
func New(source market.BarSource, cfg Config, store RegimeStore, logger zerolog.Logger) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("engine requires a bar source")
	}
	if len(cfg.Timeframes) == 0 {
		return nil, fmt.Errorf("engine requires at least one timeframe")
	}
	if cfg.BarLimit <= 0 {
		cfg.BarLimit = DefaultConfig().BarLimit
	}
	if cfg.PatternWindow <= 0 {
		cfg.PatternWindow = DefaultConfig().PatternWindow
	}
	if cfg.Profile == "" {
		cfg.Profile = adaptive.Swing
	}

	fuser, err := fusion.NewFuser(cfg.Fusion, logger)
	if err != nil {
		return nil, fmt.Errorf("building fuser: %w", err)
	}

	return &Engine{
		source:      source,
		classifier:  regime.NewClassifier(logger),
		detector:    patterns.NewDetector(logger),
		synthesizer: signals.NewSynthesizer(logger),
		fuser:       fuser,
		regimeCache: regime.NewCache(cfg.CacheTTL),
		store:       store,
		cfg:         cfg,
		logger:      logger.With().Str("component", "Engine").Logger(),
	}, nil
}

// ComputeIndicators evaluates the standard indicator set over a series with
// explicit parameters and returns the latest raw values. Uncomputable
// indicators are omitted, never reported as zero.
func (e *Engine) ComputeIndicators(series *market.Series, params adaptive.Params) map[string]float64 {
	values := make(map[string]float64)
	bars := series.Bars

	if v, err := indicators.CalculateSMA(bars, params.EMASlow); err == nil {
		values["sma"] = v
	}
	if v, err := indicators.CalculateEMA(bars, params.EMAFast); err == nil {
		values["ema_fast"] = v
	}
	if v, err := indicators.CalculateEMA(bars, params.EMASlow); err == nil {
		values["ema_slow"] = v
	}
	if v, err := indicators.CalculateRSI(bars, params.RSIPeriod); err == nil {
		values["rsi"] = v
	}
	if m, err := indicators.CalculateMACD(bars, params.MACDFast, params.MACDSlow, params.MACDSignal); err == nil {
		values["macd"] = m.MACD
		values["macd_signal"] = m.Signal
		values["macd_histogram"] = m.Histogram
	}
	if s, err := indicators.CalculateStochastic(bars, params.StochK, params.StochD); err == nil {
		values["stoch_k"] = s.K
		values["stoch_d"] = s.D
	}
	if v, err := indicators.CalculateWilliamsR(bars, params.WilliamsRPeriod); err == nil {
		values["williams_r"] = v
	}
	if v, err := indicators.CalculateCCI(bars, params.CCIPeriod); err == nil {
		values["cci"] = v
	}
	if b, err := indicators.CalculateBollingerBands(bars, params.BollingerPeriod, params.BollingerStdDev); err == nil {
		values["bb_upper"] = b.Upper
		values["bb_middle"] = b.Middle
		values["bb_lower"] = b.Lower
	}
	if v, err := indicators.CalculateATR(bars, params.ATRPeriod); err == nil {
		values["atr"] = v
	}
	if a, err := indicators.CalculateADX(bars, params.ADXPeriod); err == nil {
		values["adx"] = a.ADX
		values["plus_di"] = a.PlusDI
		values["minus_di"] = a.MinusDI
	}
	if a, err := indicators.CalculateAroon(bars, params.AroonPeriod); err == nil {
		values["aroon_up"] = a.Up
		values["aroon_down"] = a.Down
	}
	if v, err := indicators.CalculateOBV(bars); err == nil {
		values["obv"] = v
	}
	if low, high, err := indicators.CalculateRollingHighLow(bars, 20); err == nil {
		values["rolling_low"] = low
		values["rolling_high"] = high
	}
	return values
}

// ClassifyRegime classifies a series, going through the in-memory cache and
// the optional shared store before recomputing
func (e *Engine) ClassifyRegime(ctx context.Context, series *market.Series) *regime.Classification {
	if cls, ok := e.regimeCache.Get(series.Symbol, series.Timeframe); ok {
		return cls
	}

	if e.store != nil {
		if cls, err := e.store.Get(ctx, series.Symbol, series.Timeframe); err == nil && cls != nil {
			e.regimeCache.Set(series.Symbol, series.Timeframe, cls)
			return cls
		}
	}

	cls := e.classifier.Classify(series)
	e.regimeCache.Set(series.Symbol, series.Timeframe, cls)
	if e.store != nil {
		if err := e.store.Set(ctx, series.Symbol, series.Timeframe, cls); err != nil {
			e.logger.Warn().Err(err).
				Str("symbol", series.Symbol).
				Msg("regime store write failed, continuing without write-through")
		}
	}
	return cls
}

// AdaptParameters maps a classification and profile to indicator parameters
func (e *Engine) AdaptParameters(cls *regime.Classification, profile adaptive.Profile) adaptive.Params {
	return adaptive.Adapt(cls, profile)
}

// DetectPatterns scans a series and returns matches sorted by confidence
// descending
func (e *Engine) DetectPatterns(series *market.Series) []patterns.Match {
	return e.detector.Detect(series)
}

// SynthesizeSignals produces regime-conditioned indicator readings
func (e *Engine) SynthesizeSignals(series *market.Series, params adaptive.Params, cls *regime.Classification) map[string]signals.IndicatorReading {
	return e.synthesizer.Synthesize(series, params, cls)
}

// Fuse combines prepared per-timeframe results into at most one signal
func (e *Engine) Fuse(symbol string, price float64, overall *regime.Classification, results []fusion.TimeframeResult) (*fusion.FusedSignal, error) {
	return e.fuser.Fuse(symbol, price, overall, results)
}

// timeframeOutcome carries one timeframe's evidence out of the fan-out
type timeframeOutcome struct {
	result fusion.TimeframeResult
	price  float64
	err    error
}

// Analyze runs the full pipeline for one symbol: per-timeframe fetch,
// classification, synthesis and pattern detection in parallel, then fusion.
// A (nil, nil) return is the frequent no-signal outcome, not an error.
func (e *Engine) Analyze(ctx context.Context, symbol string) (*fusion.FusedSignal, error) {
	outcomes := make([]timeframeOutcome, len(e.cfg.Timeframes))

	var wg sync.WaitGroup
	for i, tf := range e.cfg.Timeframes {
		wg.Add(1)
		go func(i int, tf market.Timeframe) {
			defer wg.Done()
			outcomes[i] = e.analyzeTimeframe(ctx, symbol, tf)
		}(i, tf)
	}
	wg.Wait()

	var results []fusion.TimeframeResult
	price := 0.0
	for i, out := range outcomes {
		if out.err != nil {
			// Partial failure tolerance: one missing timeframe degrades
			// the fusion weights, it does not abort the call
			e.logger.Warn().Err(out.err).
				Str("symbol", symbol).
				Str("timeframe", string(e.cfg.Timeframes[i])).
				Msg("timeframe analysis failed, excluded from fusion")
			continue
		}
		results = append(results, out.result)
		if price == 0 {
			price = out.price
		}
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("analyzing %s: no timeframe produced data", symbol)
	}

	overall := e.overallClassification(results)
	return e.fuser.Fuse(symbol, price, overall, results)
}

func (e *Engine) analyzeTimeframe(ctx context.Context, symbol string, tf market.Timeframe) timeframeOutcome {
	series, err := e.source.GetBars(ctx, symbol, tf, e.cfg.BarLimit)
	if err != nil {
		return timeframeOutcome{err: fmt.Errorf("fetching %s %s bars: %w", symbol, tf, err)}
	}
	if err := series.Validate(); err != nil {
		return timeframeOutcome{err: fmt.Errorf("validating %s %s series: %w", symbol, tf, err)}
	}

	cls := e.ClassifyRegime(ctx, series)
	params := adaptive.Adapt(cls, e.cfg.Profile)

	return timeframeOutcome{
		result: fusion.TimeframeResult{
			Timeframe:      tf,
			Classification: cls,
			Readings:       e.synthesizer.Synthesize(series, params, cls),
			Patterns:       e.detector.DetectRecent(series, e.cfg.PatternWindow),
		},
		price: series.LastClose(),
	}
}

// overallClassification picks the highest-weighted timeframe's regime as the
// fusion-level market view
func (e *Engine) overallClassification(results []fusion.TimeframeResult) *regime.Classification {
	best := results[0].Classification
	bestWeight := -1.0
	for _, res := range results {
		if w := e.cfg.Fusion.Weights[res.Timeframe]; w > bestWeight && res.Classification != nil {
			best = res.Classification
			bestWeight = w
		}
	}
	return best
}

// Snapshot is the per-timeframe view served to collaborators that want the
// intermediate evidence rather than the fused call
type Snapshot struct {
	Symbol         string                              `json:"symbol"`
	Timeframe      market.Timeframe                    `json:"timeframe"`
	Classification *regime.Classification              `json:"classification"`
	Params         adaptive.Params                     `json:"params"`
	Readings       map[string]signals.IndicatorReading `json:"readings"`
	Values         map[string]float64                  `json:"values"`
	Patterns       []patterns.Match                    `json:"patterns"`
}

// Inspect runs the pipeline for a single (symbol, timeframe) pair and
// returns every intermediate product
func (e *Engine) Inspect(ctx context.Context, symbol string, tf market.Timeframe) (*Snapshot, error) {
	series, err := e.source.GetBars(ctx, symbol, tf, e.cfg.BarLimit)
	if err != nil {
		return nil, fmt.Errorf("fetching %s %s bars: %w", symbol, tf, err)
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s %s series: %w", symbol, tf, err)
	}

	cls := e.ClassifyRegime(ctx, series)
	params := adaptive.Adapt(cls, e.cfg.Profile)

	return &Snapshot{
		Symbol:         symbol,
		Timeframe:      tf,
		Classification: cls,
		Params:         params,
		Readings:       e.synthesizer.Synthesize(series, params, cls),
		Values:         e.ComputeIndicators(series, params),
		Patterns:       e.detector.Detect(series),
	}, nil
}
