// Package patterns detects candlestick and structural chart patterns in an
// OHLCV series. Detection is independent of the indicator path: every match
// carries entry/stop/target derived from the pattern's own geometry.
package patterns

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/market"
)

// Detector scans bar series for chart patterns
type Detector struct {
	minBodySize  float64 // minimum candle body as fraction of range for "long" candles
	rewardRatio  float64 // target distance as multiple of risk for candle patterns
	contextBars  int     // bars inspected for trend context
	contextShare float64 // fraction of directional closes needed for a trend
	logger       zerolog.Logger
}

// NewDetector creates a pattern detector with standard thresholds
func NewDetector(logger zerolog.Logger) *Detector {
	return &Detector{
		minBodySize:  0.6,
		rewardRatio:  2.0,
		contextBars:  10,
		contextShare: 0.6,
		logger:       logger.With().Str("component", "PatternDetector").Logger(),
	}
}

// Detect scans the whole series and returns all matches sorted by
// confidence descending. The first element is the primary pattern.
func (d *Detector) Detect(series *market.Series) []Match {
	bars := series.Bars
	var matches []Match

	add := func(m *Match) {
		if m != nil {
			matches = append(matches, *m)
		}
	}

	for i := 0; i < len(bars); i++ {
		add(d.checkSingleCandle(series, i))
	}
	for i := 1; i < len(bars); i++ {
		add(d.checkEngulfing(series, i))
		add(d.checkHarami(series, i))
	}
	for i := 2; i < len(bars); i++ {
		add(d.checkMorningStar(series, i))
		add(d.checkEveningStar(series, i))
	}

	if len(bars) >= MinBarsRequired(HeadAndShoulders) {
		add(d.checkHeadAndShoulders(series))
		add(d.checkInverseHeadAndShoulders(series))
	}
	if len(bars) >= MinBarsRequired(DoubleTop) {
		add(d.checkDoubleTop(series))
		add(d.checkDoubleBottom(series))
	}

	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].Confidence != matches[b].Confidence {
			return matches[a].Confidence > matches[b].Confidence
		}
		return matches[a].CombinedScore() > matches[b].CombinedScore()
	})

	return matches
}

// DetectRecent returns matches whose final candle falls within the last
// `window` bars, sorted by confidence descending. This is the set fusion
// consumes: stale formations do not drive fresh signals.
func (d *Detector) DetectRecent(series *market.Series, window int) []Match {
	all := d.Detect(series)
	cutoff := series.Len() - window
	recent := make([]Match, 0, len(all))
	for _, m := range all {
		if m.CandleIndex >= cutoff {
			recent = append(recent, m)
		}
	}
	return recent
}

// buildMatch assembles a Match from pattern geometry. Returns nil when the
// risk distance is not positive - degenerate geometry is discarded, never
// emitted.
func (d *Detector) buildMatch(series *market.Series, idx int, pt PatternType, dir Direction, confidence, entry, stop, target float64, desc string) *Match {
	risk := entry - stop
	if risk < 0 {
		risk = -risk
	}
	if risk == 0 {
		return nil
	}
	reward := target - entry
	if reward < 0 {
		reward = -reward
	}

	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	return &Match{
		Pattern:     pt,
		Direction:   dir,
		Tier:        tierFor(confidence),
		Confidence:  confidence,
		EntryPrice:  entry,
		StopLoss:    stop,
		TakeProfit:  target,
		RiskReward:  reward / risk,
		Timeframe:   series.Timeframe,
		CandleIndex: idx,
		DetectedAt:  series.Bars[idx].Time(),
		Description: desc,
	}
}

// trendBefore reports the direction of the closes preceding idx: 1 for a
// rise, -1 for a decline, 0 when there is no clear trend or not enough
// history. "Clear" means at least contextShare of the close-to-close moves
// agree - a monotonic-enough comparison, not a regression.
func (d *Detector) trendBefore(bars []market.Bar, idx int) int {
	if idx < 2 {
		return 0
	}
	start := idx - d.contextBars
	if start < 1 {
		start = 1
	}
	up, down, total := 0, 0, 0
	for i := start; i < idx; i++ {
		total++
		if bars[i].Close > bars[i-1].Close {
			up++
		} else if bars[i].Close < bars[i-1].Close {
			down++
		}
	}
	if total < 3 {
		return 0
	}
	if float64(down)/float64(total) >= d.contextShare {
		return -1
	}
	if float64(up)/float64(total) >= d.contextShare {
		return 1
	}
	return 0
}

// ============================================================================
// SINGLE-CANDLE PATTERNS
// ============================================================================

func (d *Detector) checkSingleCandle(series *market.Series, i int) *Match {
	bar := series.Bars[i]
	if bar.Range() == 0 {
		return nil
	}

	context := d.trendBefore(series.Bars, i)

	if isDojiShape(bar) {
		return d.classifyDoji(series, i, bar)
	}

	if isHammerShape(bar) {
		// Same shape reads bullish after a decline (hammer) and bearish
		// after a rise (hanging man)
		if context == 1 {
			return d.buildMatch(series, i, HangingMan, Bearish, 0.59,
				bar.Close, bar.High, bar.Close-d.rewardRatio*(bar.High-bar.Close),
				"hanging man after advance")
		}
		confidence := 0.55
		if context == -1 {
			confidence = 0.7
		}
		return d.buildMatch(series, i, Hammer, Bullish, confidence,
			bar.Close, bar.Low, bar.Close+d.rewardRatio*(bar.Close-bar.Low),
			"hammer rejection of lower prices")
	}

	if isShootingStarShape(bar) {
		confidence := 0.55
		if context == 1 {
			confidence = 0.7
		}
		return d.buildMatch(series, i, ShootingStar, Bearish, confidence,
			bar.Close, bar.High, bar.Close-d.rewardRatio*(bar.High-bar.Close),
			"shooting star rejection of higher prices")
	}

	return nil
}

func (d *Detector) classifyDoji(series *market.Series, i int, bar market.Bar) *Match {
	body := bar.Body()
	upper := bar.UpperWick()
	lower := bar.LowerWick()

	if lower > body*3 && upper < bar.Range()*0.1 {
		return d.buildMatch(series, i, DragonflyDoji, Bullish, 0.62,
			bar.Close, bar.Low, bar.Close+d.rewardRatio*(bar.Close-bar.Low),
			"dragonfly doji with long lower shadow")
	}
	if upper > body*3 && lower < bar.Range()*0.1 {
		return d.buildMatch(series, i, GravestoneDoji, Bearish, 0.62,
			bar.Close, bar.High, bar.Close-d.rewardRatio*(bar.High-bar.Close),
			"gravestone doji with long upper shadow")
	}
	// Plain doji: indecision, levels straddle the bar
	return d.buildMatch(series, i, Doji, Neutral, 0.5,
		bar.Close, bar.Low, bar.High,
		"doji indecision")
}

// isDojiShape: body under 10% of the full range
func isDojiShape(bar market.Bar) bool {
	r := bar.Range()
	return r > 0 && bar.Body()/r < 0.10
}

// isHammerShape: long lower wick (2x body), little upper wick
func isHammerShape(bar market.Bar) bool {
	body := bar.Body()
	return body > 0 && bar.LowerWick() >= body*2 && bar.UpperWick() <= body*0.3
}

// isShootingStarShape: long upper wick (2x body), little lower wick
func isShootingStarShape(bar market.Bar) bool {
	body := bar.Body()
	return body > 0 && bar.UpperWick() >= body*2 && bar.LowerWick() <= body*0.3
}

// ============================================================================
// TWO-CANDLE PATTERNS
// ============================================================================

func (d *Detector) checkEngulfing(series *market.Series, i int) *Match {
	c1, c2 := series.Bars[i-1], series.Bars[i]

	// Bullish: bearish candle fully engulfed by a bullish one
	if c1.IsBearish() && c2.IsBullish() && c2.Open <= c1.Close && c2.Close >= c1.Open {
		stop := c2.Low
		if c1.Low < stop {
			stop = c1.Low
		}
		confidence := 0.75
		if d.trendBefore(series.Bars, i-1) == -1 {
			confidence = 0.8
		}
		return d.buildMatch(series, i, BullishEngulfing, Bullish, confidence,
			c2.Close, stop, c2.Close+d.rewardRatio*(c2.Close-stop),
			"bullish engulfing of prior bearish body")
	}

	// Bearish: bullish candle fully engulfed by a bearish one
	if c1.IsBullish() && c2.IsBearish() && c2.Open >= c1.Close && c2.Close <= c1.Open {
		stop := c2.High
		if c1.High > stop {
			stop = c1.High
		}
		confidence := 0.75
		if d.trendBefore(series.Bars, i-1) == 1 {
			confidence = 0.8
		}
		return d.buildMatch(series, i, BearishEngulfing, Bearish, confidence,
			c2.Close, stop, c2.Close-d.rewardRatio*(stop-c2.Close),
			"bearish engulfing of prior bullish body")
	}

	return nil
}

func (d *Detector) checkHarami(series *market.Series, i int) *Match {
	c1, c2 := series.Bars[i-1], series.Bars[i]

	if c1.Range() == 0 || c1.Body() < c1.Range()*d.minBodySize {
		return nil // first candle must be dominant
	}

	// Bullish harami: small bullish body inside a large bearish body
	if c1.IsBearish() && c2.IsBullish() &&
		c2.Open >= c1.Close && c2.Close <= c1.Open && c2.Body() <= c1.Body()*0.5 {
		return d.buildMatch(series, i, BullishHarami, Bullish, 0.68,
			c2.Close, c1.Low, c2.Close+d.rewardRatio*(c2.Close-c1.Low),
			"bullish harami inside prior bearish body")
	}

	// Bearish harami: small bearish body inside a large bullish body
	if c1.IsBullish() && c2.IsBearish() &&
		c2.Open <= c1.Close && c2.Close >= c1.Open && c2.Body() <= c1.Body()*0.5 {
		return d.buildMatch(series, i, BearishHarami, Bearish, 0.68,
			c2.Close, c1.High, c2.Close-d.rewardRatio*(c1.High-c2.Close),
			"bearish harami inside prior bullish body")
	}

	return nil
}

// ============================================================================
// THREE-CANDLE PATTERNS
// ============================================================================

func (d *Detector) checkMorningStar(series *market.Series, i int) *Match {
	c1, c2, c3 := series.Bars[i-2], series.Bars[i-1], series.Bars[i]

	// Long bearish candle
	if !c1.IsBearish() || c1.Range() == 0 || c1.Body() < c1.Range()*d.minBodySize {
		return nil
	}
	// Small indecision body
	if c2.Body() > c1.Body()*0.4 {
		return nil
	}
	// Long bullish candle closing above the midpoint of the first
	if !c3.IsBullish() || c3.Range() == 0 || c3.Body() < c3.Range()*d.minBodySize {
		return nil
	}
	midpoint := (c1.Open + c1.Close) / 2
	if c3.Close < midpoint {
		return nil
	}

	confidence := 0.7
	if c3.Body() > c1.Body()*1.2 {
		confidence += 0.1
	}

	stop := lowestLow(c1, c2, c3)
	return d.buildMatch(series, i, MorningStar, Bullish, confidence,
		c3.Close, stop, c3.Close+d.rewardRatio*(c3.Close-stop),
		fmt.Sprintf("morning star reversal, close above %.4f midpoint", midpoint))
}

func (d *Detector) checkEveningStar(series *market.Series, i int) *Match {
	c1, c2, c3 := series.Bars[i-2], series.Bars[i-1], series.Bars[i]

	if !c1.IsBullish() || c1.Range() == 0 || c1.Body() < c1.Range()*d.minBodySize {
		return nil
	}
	if c2.Body() > c1.Body()*0.4 {
		return nil
	}
	if !c3.IsBearish() || c3.Range() == 0 || c3.Body() < c3.Range()*d.minBodySize {
		return nil
	}
	midpoint := (c1.Open + c1.Close) / 2
	if c3.Close > midpoint {
		return nil
	}

	confidence := 0.7
	if c3.Body() > c1.Body()*1.2 {
		confidence += 0.1
	}

	stop := highestHigh(c1, c2, c3)
	return d.buildMatch(series, i, EveningStar, Bearish, confidence,
		c3.Close, stop, c3.Close-d.rewardRatio*(stop-c3.Close),
		fmt.Sprintf("evening star reversal, close below %.4f midpoint", midpoint))
}

func lowestLow(bars ...market.Bar) float64 {
	low := bars[0].Low
	for _, b := range bars[1:] {
		if b.Low < low {
			low = b.Low
		}
	}
	return low
}

func highestHigh(bars ...market.Bar) float64 {
	high := bars[0].High
	for _, b := range bars[1:] {
		if b.High > high {
			high = b.High
		}
	}
	return high
}
