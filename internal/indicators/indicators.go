// Package indicators computes standard technical indicators over OHLCV bars.
// All functions are pure: the same bars and parameters always produce the
// same output. When a series is too short for the requested lookback they
// return ErrInsufficientData instead of a misleading neutral value.
package indicators

import (
	"errors"
	"fmt"
	"math"

	"trading-signal-engine/internal/market"
)

// ErrInsufficientData is returned when a series is shorter than the
// indicator's required lookback. Callers must exclude the indicator from
// scoring, not substitute zero.
var ErrInsufficientData = errors.New("insufficient bars for indicator")

// MinPeriod is the smallest valid lookback for any indicator
const MinPeriod = 2

func checkPeriod(n, period, required int) error {
	if period < MinPeriod {
		return fmt.Errorf("period %d below minimum %d", period, MinPeriod)
	}
	if n < required {
		return fmt.Errorf("%w: have %d bars, need %d", ErrInsufficientData, n, required)
	}
	return nil
}

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// CalculateSMA calculates the Simple Moving Average of the closes
func CalculateSMA(bars []market.Bar, period int) (float64, error) {
	if err := checkPeriod(len(bars), period, period); err != nil {
		return 0, err
	}
	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += bars[i].Close
	}
	return sum / float64(period), nil
}

// CalculateEMA calculates the Exponential Moving Average of the closes,
// seeded with the SMA of the first period bars.
func CalculateEMA(bars []market.Bar, period int) (float64, error) {
	series, err := CalculateEMASeries(bars, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// CalculateEMASeries returns the full EMA curve. The result has one entry
// per input bar; entries before index period-1 are NaN (warm-up region).
func CalculateEMASeries(bars []market.Bar, period int) ([]float64, error) {
	if err := checkPeriod(len(bars), period, period); err != nil {
		return nil, err
	}

	out := make([]float64, len(bars))
	for i := 0; i < period-1; i++ {
		out[i] = math.NaN()
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += bars[i].Close
	}
	ema := sum / float64(period)
	out[period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(bars); i++ {
		ema = (bars[i].Close-ema)*multiplier + ema
		out[i] = ema
	}
	return out, nil
}

// emaOverValues runs an EMA over a pre-computed value series (used for the
// MACD signal line). Seeded with the SMA of the first period values.
func emaOverValues(values []float64, period int) ([]float64, error) {
	if err := checkPeriod(len(values), period, period); err != nil {
		return nil, err
	}

	out := make([]float64, len(values))
	for i := 0; i < period-1; i++ {
		out[i] = math.NaN()
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out, nil
}

// ============================================================================
// RSI (Wilder smoothing)
// ============================================================================

// CalculateRSI calculates the Relative Strength Index using Wilder's
// recursive smoothing (the standard definition).
func CalculateRSI(bars []market.Bar, period int) (float64, error) {
	series, err := CalculateRSISeries(bars, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// CalculateRSISeries returns the RSI curve; entries before index period are NaN.
func CalculateRSISeries(bars []market.Bar, period int) ([]float64, error) {
	if err := checkPeriod(len(bars), period, period+1); err != nil {
		return nil, err
	}

	out := make([]float64, len(bars))
	for i := 0; i < period; i++ {
		out[i] = math.NaN()
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		change := bars[i].Close - bars[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	for i := period + 1; i < len(bars); i++ {
		change := bars[i].Close - bars[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out, nil
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// ============================================================================
// MACD
// ============================================================================

// MACDResult holds MACD line, signal line and histogram values
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// CalculateMACD calculates MACD with a true EMA signal line computed over
// the MACD history (not an approximation).
func CalculateMACD(bars []market.Bar, fastPeriod, slowPeriod, signalPeriod int) (*MACDResult, error) {
	if fastPeriod >= slowPeriod {
		return nil, fmt.Errorf("fast period %d must be below slow period %d", fastPeriod, slowPeriod)
	}
	required := slowPeriod + signalPeriod - 1
	if err := checkPeriod(len(bars), fastPeriod, required); err != nil {
		return nil, err
	}

	fastSeries, err := CalculateEMASeries(bars, fastPeriod)
	if err != nil {
		return nil, err
	}
	slowSeries, err := CalculateEMASeries(bars, slowPeriod)
	if err != nil {
		return nil, err
	}

	// MACD line exists from index slowPeriod-1 onward
	macdValues := make([]float64, 0, len(bars)-slowPeriod+1)
	for i := slowPeriod - 1; i < len(bars); i++ {
		macdValues = append(macdValues, fastSeries[i]-slowSeries[i])
	}

	signalSeries, err := emaOverValues(macdValues, signalPeriod)
	if err != nil {
		return nil, fmt.Errorf("%w: MACD signal line", ErrInsufficientData)
	}

	macdLine := macdValues[len(macdValues)-1]
	signalLine := signalSeries[len(signalSeries)-1]
	return &MACDResult{
		MACD:      macdLine,
		Signal:    signalLine,
		Histogram: macdLine - signalLine,
	}, nil
}

// ============================================================================
// STOCHASTIC OSCILLATOR
// ============================================================================

// StochasticResult holds %K and %D values
type StochasticResult struct {
	K float64
	D float64
}

// CalculateStochastic calculates the Stochastic Oscillator. %D is the SMA
// of %K over dPeriod (standard definition).
func CalculateStochastic(bars []market.Bar, kPeriod, dPeriod int) (*StochasticResult, error) {
	required := kPeriod + dPeriod - 1
	if err := checkPeriod(len(bars), kPeriod, required); err != nil {
		return nil, err
	}

	kValues := make([]float64, dPeriod)
	for j := 0; j < dPeriod; j++ {
		end := len(bars) - (dPeriod - 1 - j)
		kValues[j] = stochasticK(bars[:end], kPeriod)
	}

	dSum := 0.0
	for _, k := range kValues {
		dSum += k
	}

	return &StochasticResult{
		K: kValues[len(kValues)-1],
		D: dSum / float64(dPeriod),
	}, nil
}

func stochasticK(bars []market.Bar, kPeriod int) float64 {
	start := len(bars) - kPeriod
	highest := bars[start].High
	lowest := bars[start].Low
	for i := start; i < len(bars); i++ {
		if bars[i].High > highest {
			highest = bars[i].High
		}
		if bars[i].Low < lowest {
			lowest = bars[i].Low
		}
	}
	if highest == lowest {
		return 50.0
	}
	return (bars[len(bars)-1].Close - lowest) / (highest - lowest) * 100.0
}

// ============================================================================
// WILLIAMS %R
// ============================================================================

// CalculateWilliamsR calculates Williams %R over the period. Output is in
// [-100, 0]: near 0 means overbought, near -100 oversold.
func CalculateWilliamsR(bars []market.Bar, period int) (float64, error) {
	if err := checkPeriod(len(bars), period, period); err != nil {
		return 0, err
	}

	start := len(bars) - period
	highest := bars[start].High
	lowest := bars[start].Low
	for i := start; i < len(bars); i++ {
		if bars[i].High > highest {
			highest = bars[i].High
		}
		if bars[i].Low < lowest {
			lowest = bars[i].Low
		}
	}
	if highest == lowest {
		return -50.0, nil
	}
	return (highest - bars[len(bars)-1].Close) / (highest - lowest) * -100.0, nil
}

// ============================================================================
// CCI (Commodity Channel Index)
// ============================================================================

// CalculateCCI calculates the Commodity Channel Index using typical price
// and mean absolute deviation with the standard 0.015 constant.
func CalculateCCI(bars []market.Bar, period int) (float64, error) {
	if err := checkPeriod(len(bars), period, period); err != nil {
		return 0, err
	}

	start := len(bars) - period
	tp := make([]float64, period)
	sum := 0.0
	for i := 0; i < period; i++ {
		b := bars[start+i]
		tp[i] = (b.High + b.Low + b.Close) / 3.0
		sum += tp[i]
	}
	mean := sum / float64(period)

	meanDev := 0.0
	for _, v := range tp {
		meanDev += math.Abs(v - mean)
	}
	meanDev /= float64(period)

	if meanDev == 0 {
		return 0, nil
	}
	return (tp[period-1] - mean) / (0.015 * meanDev), nil
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// BollingerResult holds the three Bollinger band values. Upper >= Middle >=
// Lower always holds for a non-negative multiplier.
type BollingerResult struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// CalculateBollingerBands calculates Bollinger Bands from the close SMA and
// population standard deviation.
func CalculateBollingerBands(bars []market.Bar, period int, stdDevMultiplier float64) (*BollingerResult, error) {
	middle, err := CalculateSMA(bars, period)
	if err != nil {
		return nil, err
	}

	variance := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		diff := bars[i].Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return &BollingerResult{
		Upper:  middle + stdDev*stdDevMultiplier,
		Middle: middle,
		Lower:  middle - stdDev*stdDevMultiplier,
	}, nil
}

// ============================================================================
// ATR (Wilder smoothing)
// ============================================================================

// CalculateATR calculates the Average True Range with Wilder's smoothing
func CalculateATR(bars []market.Bar, period int) (float64, error) {
	if err := checkPeriod(len(bars), period, period+1); err != nil {
		return 0, err
	}

	// Seed with the simple mean of the first period true ranges
	atr := 0.0
	for i := 1; i <= period; i++ {
		atr += trueRange(bars[i], bars[i-1])
	}
	atr /= float64(period)

	for i := period + 1; i < len(bars); i++ {
		atr = (atr*float64(period-1) + trueRange(bars[i], bars[i-1])) / float64(period)
	}
	return atr, nil
}

func trueRange(cur, prev market.Bar) float64 {
	return math.Max(cur.High-cur.Low,
		math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
}

// ============================================================================
// ADX / DMI (Wilder smoothing)
// ============================================================================

// ADXResult holds the trend-strength values from the directional movement system
type ADXResult struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
}

// CalculateADX calculates the Average Directional Index together with +DI
// and -DI using the full Wilder directional movement system. Requires at
// least 2*period bars.
func CalculateADX(bars []market.Bar, period int) (*ADXResult, error) {
	if err := checkPeriod(len(bars), period, 2*period+1); err != nil {
		return nil, err
	}

	n := len(bars)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		upMove := bars[i].High - bars[i-1].High
		downMove := bars[i-1].Low - bars[i].Low
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		tr[i] = trueRange(bars[i], bars[i-1])
	}

	// Wilder-smoothed running sums, seeded over the first period values
	smPlus, smMinus, smTR := 0.0, 0.0, 0.0
	for i := 1; i <= period; i++ {
		smPlus += plusDM[i]
		smMinus += minusDM[i]
		smTR += tr[i]
	}

	dxValues := make([]float64, 0, n-period)
	plusDI, minusDI := 0.0, 0.0
	appendDX := func() {
		if smTR == 0 {
			plusDI, minusDI = 0, 0
			dxValues = append(dxValues, 0)
			return
		}
		plusDI = smPlus / smTR * 100.0
		minusDI = smMinus / smTR * 100.0
		diSum := plusDI + minusDI
		if diSum == 0 {
			dxValues = append(dxValues, 0)
			return
		}
		dxValues = append(dxValues, math.Abs(plusDI-minusDI)/diSum*100.0)
	}
	appendDX()

	for i := period + 1; i < n; i++ {
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		smTR = smTR - smTR/float64(period) + tr[i]
		appendDX()
	}

	// ADX: Wilder smoothing over the DX values
	if len(dxValues) < period {
		return nil, fmt.Errorf("%w: ADX smoothing", ErrInsufficientData)
	}
	adx := 0.0
	for i := 0; i < period; i++ {
		adx += dxValues[i]
	}
	adx /= float64(period)
	for i := period; i < len(dxValues); i++ {
		adx = (adx*float64(period-1) + dxValues[i]) / float64(period)
	}

	return &ADXResult{ADX: adx, PlusDI: plusDI, MinusDI: minusDI}, nil
}

// ============================================================================
// AROON
// ============================================================================

// AroonResult holds Aroon up/down values in [0, 100]
type AroonResult struct {
	Up   float64
	Down float64
}

// CalculateAroon calculates Aroon up/down over the period: 100 when the
// extreme is the current bar, 0 when it is period bars back.
func CalculateAroon(bars []market.Bar, period int) (*AroonResult, error) {
	if err := checkPeriod(len(bars), period, period+1); err != nil {
		return nil, err
	}

	window := bars[len(bars)-period-1:]
	highIdx, lowIdx := 0, 0
	for i := 1; i < len(window); i++ {
		if window[i].High >= window[highIdx].High {
			highIdx = i
		}
		if window[i].Low <= window[lowIdx].Low {
			lowIdx = i
		}
	}

	sinceHigh := len(window) - 1 - highIdx
	sinceLow := len(window) - 1 - lowIdx
	return &AroonResult{
		Up:   float64(period-sinceHigh) / float64(period) * 100.0,
		Down: float64(period-sinceLow) / float64(period) * 100.0,
	}, nil
}

// ============================================================================
// OBV, ROC, ROLLING HIGH/LOW
// ============================================================================

// CalculateOBV calculates On-Balance Volume over the whole series
func CalculateOBV(bars []market.Bar) (float64, error) {
	if len(bars) < 2 {
		return 0, fmt.Errorf("%w: have %d bars, need 2", ErrInsufficientData, len(bars))
	}
	obv := 0.0
	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			obv += bars[i].Volume
		case bars[i].Close < bars[i-1].Close:
			obv -= bars[i].Volume
		}
	}
	return obv, nil
}

// CalculateROC calculates the percent rate of change over period bars
func CalculateROC(bars []market.Bar, period int) (float64, error) {
	if err := checkPeriod(len(bars), period, period+1); err != nil {
		return 0, err
	}
	past := bars[len(bars)-period-1].Close
	if past == 0 {
		return 0, nil
	}
	return (bars[len(bars)-1].Close - past) / past * 100.0, nil
}

// CalculateRollingHighLow returns the lowest low and highest high over the
// last period bars. Used for support/resistance levels.
func CalculateRollingHighLow(bars []market.Bar, period int) (low float64, high float64, err error) {
	if err := checkPeriod(len(bars), period, period); err != nil {
		return 0, 0, err
	}
	start := len(bars) - period
	low = bars[start].Low
	high = bars[start].High
	for i := start; i < len(bars); i++ {
		if bars[i].Low < low {
			low = bars[i].Low
		}
		if bars[i].High > high {
			high = bars[i].High
		}
	}
	return low, high, nil
}

// Clamp bounds a value to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
