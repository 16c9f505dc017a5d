package patterns

import (
	"time"

	"trading-signal-engine/internal/market"
)

// PatternType identifies a chart pattern
type PatternType string

const (
	// Single-candle patterns
	Doji           PatternType = "doji"
	DragonflyDoji  PatternType = "dragonfly_doji"
	GravestoneDoji PatternType = "gravestone_doji"
	Hammer         PatternType = "hammer"
	HangingMan     PatternType = "hanging_man"
	ShootingStar   PatternType = "shooting_star"

	// Two-candle patterns
	BullishEngulfing PatternType = "bullish_engulfing"
	BearishEngulfing PatternType = "bearish_engulfing"
	BullishHarami    PatternType = "bullish_harami"
	BearishHarami    PatternType = "bearish_harami"

	// Three-candle patterns
	MorningStar PatternType = "morning_star"
	EveningStar PatternType = "evening_star"

	// Structural patterns
	HeadAndShoulders        PatternType = "head_and_shoulders"
	InverseHeadAndShoulders PatternType = "inverse_head_and_shoulders"
	DoubleTop               PatternType = "double_top"
	DoubleBottom            PatternType = "double_bottom"
)

// Direction classifies the pattern's expected resolution
type Direction string

const (
	Bullish Direction = "BULLISH"
	Bearish Direction = "BEARISH"
	Neutral Direction = "NEUTRAL"
)

// StrengthTier buckets pattern confidence for display and filtering
type StrengthTier string

const (
	Weak       StrengthTier = "WEAK"
	Moderate   StrengthTier = "MODERATE"
	Strong     StrengthTier = "STRONG"
	VeryStrong StrengthTier = "VERY_STRONG"
)

func tierFor(confidence float64) StrengthTier {
	switch {
	case confidence >= 0.75:
		return VeryStrong
	case confidence >= 0.65:
		return Strong
	case confidence >= 0.55:
		return Moderate
	default:
		return Weak
	}
}

// priorityWeights are hard-coded historical win rates per pattern. They are
// descriptive priors used to rank patterns against each other, not
// re-estimated statistics.
var priorityWeights = map[PatternType]float64{
	HeadAndShoulders:        0.83,
	InverseHeadAndShoulders: 0.82,
	BearishEngulfing:        0.79,
	MorningStar:             0.78,
	DoubleBottom:            0.78,
	DoubleTop:               0.75,
	EveningStar:             0.72,
	BullishEngulfing:        0.63,
	Hammer:                  0.60,
	HangingMan:              0.59,
	ShootingStar:            0.59,
	DragonflyDoji:           0.57,
	GravestoneDoji:          0.57,
	BullishHarami:           0.53,
	BearishHarami:           0.53,
	Doji:                    0.50,
}

// PriorityWeight returns the historical-confidence weight for a pattern
// (0.5 for unknown patterns)
func PriorityWeight(pt PatternType) float64 {
	if w, ok := priorityWeights[pt]; ok {
		return w
	}
	return 0.5
}

// minBarsRequired is the minimum series length per pattern class
var minBarsRequired = map[PatternType]int{
	Doji:                    1,
	DragonflyDoji:           1,
	GravestoneDoji:          1,
	Hammer:                  1,
	HangingMan:              1,
	ShootingStar:            1,
	BullishEngulfing:        2,
	BearishEngulfing:        2,
	BullishHarami:           2,
	BearishHarami:           2,
	MorningStar:             3,
	EveningStar:             3,
	HeadAndShoulders:        20,
	InverseHeadAndShoulders: 20,
	DoubleTop:               15,
	DoubleBottom:            15,
}

// MinBarsRequired returns the minimum series length for a pattern
func MinBarsRequired(pt PatternType) int {
	if n, ok := minBarsRequired[pt]; ok {
		return n
	}
	return 3
}

// HighPriorityPatterns are the structural and three-candle patterns that
// earn a confidence boost during fusion
var HighPriorityPatterns = map[PatternType]bool{
	HeadAndShoulders:        true,
	InverseHeadAndShoulders: true,
	MorningStar:             true,
	EveningStar:             true,
	DoubleTop:               true,
	DoubleBottom:            true,
}

// Match represents one detected pattern with its trade geometry. Entry,
// stop and target come from the pattern's own shape, never from indicator
// values.
type Match struct {
	Pattern     PatternType      `json:"pattern"`
	Direction   Direction        `json:"direction"`
	Tier        StrengthTier     `json:"tier"`
	Confidence  float64          `json:"confidence"`
	EntryPrice  float64          `json:"entry_price"`
	StopLoss    float64          `json:"stop_loss"`
	TakeProfit  float64          `json:"take_profit"`
	RiskReward  float64          `json:"risk_reward"`
	Timeframe   market.Timeframe `json:"timeframe"`
	CandleIndex int              `json:"candle_index"`
	DetectedAt  time.Time        `json:"detected_at"`
	Description string           `json:"description"`
}

// CombinedScore ranks this match against patterns from other timeframes:
// historical priority weight times instance confidence.
func (m Match) CombinedScore() float64 {
	return PriorityWeight(m.Pattern) * m.Confidence
}
