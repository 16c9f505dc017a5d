package patterns

import (
	"testing"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/market"
)

func testDetector() *Detector {
	return NewDetector(zerolog.Nop())
}

func b(o, h, l, c float64) market.Bar {
	return market.Bar{Open: o, High: h, Low: l, Close: c}
}

func mkSeries(t *testing.T, bars []market.Bar) *market.Series {
	t.Helper()
	for i := range bars {
		bars[i].OpenTime = int64(i+1) * 3_600_000
		bars[i].Volume = 1000
	}
	s, err := market.NewSeries("TESTUSDT", market.TF1h, bars)
	if err != nil {
		t.Fatalf("building series: %v", err)
	}
	return s
}

func findPattern(matches []Match, pt PatternType) (Match, bool) {
	for _, m := range matches {
		if m.Pattern == pt {
			return m, true
		}
	}
	return Match{}, false
}

func TestDetectMorningStar(t *testing.T) {
	series := mkSeries(t, []market.Bar{
		b(100, 100.5, 93.5, 94),    // long bearish
		b(93.5, 94, 92.5, 93.2),    // indecision
		b(93, 98.6, 92.8, 98.5),    // long bullish above midpoint
	})

	matches := testDetector().Detect(series)
	m, ok := findPattern(matches, MorningStar)
	if !ok {
		t.Fatal("morning star not detected")
	}
	if m.Direction != Bullish {
		t.Errorf("direction = %s, want BULLISH", m.Direction)
	}
	if m.Confidence < 0.7 {
		t.Errorf("confidence = %.2f, want >= 0.7", m.Confidence)
	}
	if m.StopLoss != 92.5 {
		t.Errorf("stop = %.2f, want lowest low 92.5", m.StopLoss)
	}
	if m.EntryPrice != 98.5 {
		t.Errorf("entry = %.2f, want 98.5", m.EntryPrice)
	}
}

func TestDetectBullishEngulfing(t *testing.T) {
	series := mkSeries(t, []market.Bar{
		b(100, 100.5, 97.5, 98),
		b(97.8, 100.4, 97.6, 100.2),
	})

	matches := testDetector().Detect(series)
	m, ok := findPattern(matches, BullishEngulfing)
	if !ok {
		t.Fatal("bullish engulfing not detected")
	}
	if m.Direction != Bullish {
		t.Errorf("direction = %s, want BULLISH", m.Direction)
	}
	if m.StopLoss != 97.5 {
		t.Errorf("stop = %.2f, want joint low 97.5", m.StopLoss)
	}
	if m.RiskReward < 1.99 || m.RiskReward > 2.01 {
		t.Errorf("risk/reward = %.2f, want 2.0", m.RiskReward)
	}
}

func TestDetectBearishHarami(t *testing.T) {
	series := mkSeries(t, []market.Bar{
		b(100, 104.5, 99.5, 104),
		b(103, 103.2, 101.3, 101.5),
	})

	matches := testDetector().Detect(series)
	m, ok := findPattern(matches, BearishHarami)
	if !ok {
		t.Fatal("bearish harami not detected")
	}
	if m.Direction != Bearish {
		t.Errorf("direction = %s, want BEARISH", m.Direction)
	}
	if m.StopLoss != 104.5 {
		t.Errorf("stop = %.2f, want prior high 104.5", m.StopLoss)
	}
}

// The same long-lower-wick shape reads as a hammer after a decline and as a
// hanging man after an advance.
func TestHammerVersusHangingMan(t *testing.T) {
	decline := make([]market.Bar, 0, 12)
	for i := 0; i < 11; i++ {
		o := 101.0 - float64(i)
		c := 100.0 - float64(i)
		decline = append(decline, b(o, o+0.1, c-0.1, c))
	}
	decline = append(decline, b(89.0, 89.6, 87.0, 89.5))

	matches := testDetector().Detect(mkSeries(t, decline))
	m, ok := findPattern(matches, Hammer)
	if !ok {
		t.Fatal("hammer not detected after decline")
	}
	if m.Confidence < 0.69 {
		t.Errorf("hammer after decline confidence = %.2f, want 0.7", m.Confidence)
	}
	if _, ok := findPattern(matches, HangingMan); ok {
		t.Error("hanging man detected in a downtrend context")
	}

	advance := make([]market.Bar, 0, 12)
	for i := 0; i < 11; i++ {
		o := 99.0 + float64(i)
		c := 100.0 + float64(i)
		advance = append(advance, b(o, c+0.1, o-0.1, c))
	}
	advance = append(advance, b(111.0, 111.6, 109.0, 111.5))

	matches = testDetector().Detect(mkSeries(t, advance))
	m, ok = findPattern(matches, HangingMan)
	if !ok {
		t.Fatal("hanging man not detected after advance")
	}
	if m.Direction != Bearish {
		t.Errorf("hanging man direction = %s, want BEARISH", m.Direction)
	}
}

func TestDetectHeadAndShoulders(t *testing.T) {
	highs := []float64{
		100, 101, 102, 103, 105, 103, 101, 100, 102, 106,
		110, 106, 102, 100, 101, 103, 105.5, 103, 101, 100,
		99, 98, 97,
	}
	bars := make([]market.Bar, len(highs))
	for i, h := range highs {
		bars[i] = b(h-1.5, h, h-2, h-1)
	}

	matches := testDetector().Detect(mkSeries(t, bars))
	m, ok := findPattern(matches, HeadAndShoulders)
	if !ok {
		t.Fatal("head and shoulders not detected")
	}
	if m.Direction != Bearish {
		t.Errorf("direction = %s, want BEARISH", m.Direction)
	}
	if m.StopLoss != 110 {
		t.Errorf("stop = %.2f, want head high 110", m.StopLoss)
	}
	// Neckline sits at 95% of the lower shoulder (105)
	if m.EntryPrice < 99.7 || m.EntryPrice > 99.8 {
		t.Errorf("entry = %.4f, want 99.75 neckline", m.EntryPrice)
	}
	if m.Confidence < 0.8 {
		t.Errorf("near-symmetric shoulders should score high, got %.2f", m.Confidence)
	}
	if m.TakeProfit >= m.EntryPrice {
		t.Errorf("bearish target %.2f should sit below entry %.2f", m.TakeProfit, m.EntryPrice)
	}
}

func TestDetectDoubleTop(t *testing.T) {
	highs := []float64{
		100, 101, 102, 103, 105, 103, 101, 99, 98, 99,
		101, 103, 105.2, 103, 101, 99, 98,
	}
	bars := make([]market.Bar, len(highs))
	for i, h := range highs {
		bars[i] = b(h-1.5, h, h-2, h-1)
	}

	matches := testDetector().Detect(mkSeries(t, bars))
	m, ok := findPattern(matches, DoubleTop)
	if !ok {
		t.Fatal("double top not detected")
	}
	if m.Direction != Bearish {
		t.Errorf("direction = %s, want BEARISH", m.Direction)
	}
	// Neckline is the lowest low between the peaks
	if m.EntryPrice != 96 {
		t.Errorf("entry = %.2f, want 96 neckline", m.EntryPrice)
	}
	if _, ok := findPattern(matches, DoubleBottom); ok {
		t.Error("double bottom detected on a topping formation")
	}
}

func TestStructuralPatternsNeedHistory(t *testing.T) {
	bars := []market.Bar{
		b(100, 102, 98, 101),
		b(101, 104, 100, 103),
		b(103, 106, 102, 105),
		b(105, 108, 104, 107),
		b(107, 110, 106, 109),
	}
	matches := testDetector().Detect(mkSeries(t, bars))
	for _, m := range matches {
		switch m.Pattern {
		case HeadAndShoulders, InverseHeadAndShoulders, DoubleTop, DoubleBottom:
			t.Errorf("structural pattern %s detected on a 5-bar series", m.Pattern)
		}
	}
}

func TestDetectSortedByConfidence(t *testing.T) {
	series := mkSeries(t, []market.Bar{
		b(100, 100.5, 97.5, 98),
		b(97.8, 100.4, 97.6, 100.2),   // engulfing, 0.75
		b(100.2, 100.7, 99.7, 100.22), // doji, 0.5
	})

	matches := testDetector().Detect(series)
	if len(matches) < 2 {
		t.Fatalf("expected at least 2 matches, got %d", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Confidence > matches[i-1].Confidence {
			t.Errorf("matches not sorted: %.2f after %.2f", matches[i].Confidence, matches[i-1].Confidence)
		}
	}
}

func TestDetectRecentFiltersStale(t *testing.T) {
	bars := []market.Bar{
		b(100, 100.5, 97.5, 98),
		b(97.8, 100.4, 97.6, 100.2), // engulfing at index 1
	}
	price := 100.2
	for i := 0; i < 8; i++ {
		bars = append(bars, b(price, price+0.15, price-0.05, price+0.1))
		price += 0.1
	}
	series := mkSeries(t, bars)
	d := testDetector()

	if _, ok := findPattern(d.Detect(series), BullishEngulfing); !ok {
		t.Fatal("engulfing not detected in full scan")
	}
	if _, ok := findPattern(d.DetectRecent(series, 3), BullishEngulfing); ok {
		t.Error("stale engulfing survived the recency filter")
	}
}

func TestBuildMatchRejectsZeroRisk(t *testing.T) {
	series := mkSeries(t, []market.Bar{b(100, 102, 98, 101)})
	d := testDetector()

	if m := d.buildMatch(series, 0, Doji, Neutral, 0.5, 100, 100, 104, "flat stop"); m != nil {
		t.Errorf("zero-risk geometry should be discarded, got %+v", m)
	}
	if m := d.buildMatch(series, 0, Hammer, Bullish, 0.6, 101, 98, 107, "valid"); m == nil {
		t.Error("valid geometry rejected")
	}
}

func TestCombinedScoreRanking(t *testing.T) {
	hs := Match{Pattern: HeadAndShoulders, Confidence: 0.8}
	doji := Match{Pattern: Doji, Confidence: 0.8}
	if hs.CombinedScore() <= doji.CombinedScore() {
		t.Errorf("structural pattern should outrank doji at equal confidence: %.3f vs %.3f",
			hs.CombinedScore(), doji.CombinedScore())
	}
}
