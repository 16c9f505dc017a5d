package patterns

import (
	"fmt"
	"math"

	"trading-signal-engine/internal/market"
)

// Structural pattern constants. The neckline and target projections are
// heuristic approximations kept for compatibility with the tuned fusion
// thresholds, not validated projection laws.
const (
	extremaWindow = 2 // bars on each side that a local extreme must dominate

	shoulderTolerance    = 0.05 // shoulders must match within 5%
	necklineFactor       = 0.95 // neckline approximated as 95% of the lower shoulder
	headTargetProjection = 1.2  // target projects 1.2x the head-to-neckline height

	doubleTolerance = 0.015 // double top/bottom peaks must match within 1.5%
	doubleMinDepth  = 0.02  // middle retracement must be at least 2% deep
)

// findPeaks returns indices of local maxima of the highs: bars whose high
// dominates extremaWindow bars on each side
func findPeaks(bars []market.Bar) []int {
	var peaks []int
	for i := extremaWindow; i < len(bars)-extremaWindow; i++ {
		isPeak := true
		for j := i - extremaWindow; j <= i+extremaWindow; j++ {
			if j != i && bars[j].High >= bars[i].High {
				isPeak = false
				break
			}
		}
		if isPeak {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// findTroughs returns indices of local minima of the lows
func findTroughs(bars []market.Bar) []int {
	var troughs []int
	for i := extremaWindow; i < len(bars)-extremaWindow; i++ {
		isTrough := true
		for j := i - extremaWindow; j <= i+extremaWindow; j++ {
			if j != i && bars[j].Low <= bars[i].Low {
				isTrough = false
				break
			}
		}
		if isTrough {
			troughs = append(troughs, i)
		}
	}
	return troughs
}

// checkHeadAndShoulders looks for three peaks with the middle one strictly
// highest and the outer two within shoulderTolerance of each other
func (d *Detector) checkHeadAndShoulders(series *market.Series) *Match {
	peaks := findPeaks(series.Bars)
	if len(peaks) < 3 {
		return nil
	}

	li, hi, ri := peaks[len(peaks)-3], peaks[len(peaks)-2], peaks[len(peaks)-1]
	left := series.Bars[li].High
	head := series.Bars[hi].High
	right := series.Bars[ri].High

	if head <= left || head <= right {
		return nil
	}
	asymmetry := math.Abs(left-right) / math.Max(left, right)
	if asymmetry > shoulderTolerance {
		return nil
	}

	lowerShoulder := math.Min(left, right)
	neckline := lowerShoulder * necklineFactor
	target := neckline - headTargetProjection*(head-neckline)

	// Symmetric shoulders earn up to +0.15 confidence
	confidence := 0.7 + (shoulderTolerance-asymmetry)/shoulderTolerance*0.15

	return d.buildMatch(series, ri, HeadAndShoulders, Bearish, confidence,
		neckline, head, target,
		fmt.Sprintf("head and shoulders, head %.4f over %.4f neckline", head, neckline))
}

// checkInverseHeadAndShoulders mirrors the head-and-shoulders test over the
// lows
func (d *Detector) checkInverseHeadAndShoulders(series *market.Series) *Match {
	troughs := findTroughs(series.Bars)
	if len(troughs) < 3 {
		return nil
	}

	li, hi, ri := troughs[len(troughs)-3], troughs[len(troughs)-2], troughs[len(troughs)-1]
	left := series.Bars[li].Low
	head := series.Bars[hi].Low
	right := series.Bars[ri].Low

	if head >= left || head >= right {
		return nil
	}
	asymmetry := math.Abs(left-right) / math.Max(left, right)
	if asymmetry > shoulderTolerance {
		return nil
	}

	higherShoulder := math.Max(left, right)
	neckline := higherShoulder * (2 - necklineFactor) // mirrored 105%
	target := neckline + headTargetProjection*(neckline-head)

	confidence := 0.7 + (shoulderTolerance-asymmetry)/shoulderTolerance*0.15

	return d.buildMatch(series, ri, InverseHeadAndShoulders, Bullish, confidence,
		neckline, head, target,
		fmt.Sprintf("inverse head and shoulders, head %.4f under %.4f neckline", head, neckline))
}

// checkDoubleTop looks for two matching peaks separated by a sufficiently
// deep retracement
func (d *Detector) checkDoubleTop(series *market.Series) *Match {
	peaks := findPeaks(series.Bars)
	if len(peaks) < 2 {
		return nil
	}

	ai, bi := peaks[len(peaks)-2], peaks[len(peaks)-1]
	first := series.Bars[ai].High
	second := series.Bars[bi].High

	spread := math.Abs(first-second) / math.Max(first, second)
	if spread > doubleTolerance {
		return nil
	}

	// Neckline is the lowest low between the two peaks
	neckline := series.Bars[ai].Low
	for i := ai; i <= bi; i++ {
		if series.Bars[i].Low < neckline {
			neckline = series.Bars[i].Low
		}
	}
	top := math.Max(first, second)
	if (top-neckline)/top < doubleMinDepth {
		return nil // retracement too shallow to be a real formation
	}

	target := neckline - (top - neckline)
	confidence := 0.68 + (doubleTolerance-spread)/doubleTolerance*0.12

	return d.buildMatch(series, bi, DoubleTop, Bearish, confidence,
		neckline, top, target,
		fmt.Sprintf("double top at %.4f with %.4f neckline", top, neckline))
}

// checkDoubleBottom mirrors the double-top test over the lows
func (d *Detector) checkDoubleBottom(series *market.Series) *Match {
	troughs := findTroughs(series.Bars)
	if len(troughs) < 2 {
		return nil
	}

	ai, bi := troughs[len(troughs)-2], troughs[len(troughs)-1]
	first := series.Bars[ai].Low
	second := series.Bars[bi].Low

	spread := math.Abs(first-second) / math.Max(first, second)
	if spread > doubleTolerance {
		return nil
	}

	neckline := series.Bars[ai].High
	for i := ai; i <= bi; i++ {
		if series.Bars[i].High > neckline {
			neckline = series.Bars[i].High
		}
	}
	bottom := math.Min(first, second)
	if (neckline-bottom)/neckline < doubleMinDepth {
		return nil
	}

	target := neckline + (neckline - bottom)
	confidence := 0.68 + (doubleTolerance-spread)/doubleTolerance*0.12

	return d.buildMatch(series, bi, DoubleBottom, Bullish, confidence,
		neckline, bottom, target,
		fmt.Sprintf("double bottom at %.4f with %.4f neckline", bottom, neckline))
}
