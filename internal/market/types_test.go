package market

import (
	"context"
	"errors"
	"testing"
)

func validBars(n int) []Bar {
	bars := make([]Bar, n)
	for i := range bars {
		bars[i] = Bar{
			OpenTime: int64(i+1) * 3_600_000,
			Open:     100, High: 101, Low: 99, Close: 100.5,
			Volume: 1000,
		}
	}
	return bars
}

func TestNewSeriesValidation(t *testing.T) {
	tests := []struct {
		name    string
		bars    []Bar
		wantErr error
	}{
		{"valid", validBars(3), nil},
		{"empty", nil, ErrEmptySeries},
		{
			"duplicate timestamp",
			func() []Bar {
				bars := validBars(3)
				bars[2].OpenTime = bars[1].OpenTime
				return bars
			}(),
			ErrUnorderedSeries,
		},
		{
			"high below low",
			func() []Bar {
				bars := validBars(3)
				bars[1].High = 98
				return bars
			}(),
			ErrMalformedBar,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSeries("BTCUSDT", TF1h, tt.bars)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewSeries error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseTimeframe(t *testing.T) {
	for _, raw := range []string{"1m", "5m", "15m", "1h", "4h", "1d", "1w"} {
		tf, err := ParseTimeframe(raw)
		if err != nil {
			t.Errorf("ParseTimeframe(%q) error: %v", raw, err)
		}
		if string(tf) != raw {
			t.Errorf("ParseTimeframe(%q) = %q", raw, tf)
		}
	}
	if _, err := ParseTimeframe("3h"); err == nil {
		t.Error("ParseTimeframe(3h) did not fail")
	}
	if _, err := ParseTimeframe(""); err == nil {
		t.Error("ParseTimeframe(empty) did not fail")
	}
}

func TestBarAnatomy(t *testing.T) {
	bull := Bar{Open: 100, High: 106, Low: 98, Close: 104}
	if !bull.IsBullish() || bull.IsBearish() {
		t.Error("bull bar misclassified")
	}
	if got := bull.Body(); got != 4 {
		t.Errorf("Body = %v, want 4", got)
	}
	if got := bull.UpperWick(); got != 2 {
		t.Errorf("UpperWick = %v, want 2", got)
	}
	if got := bull.LowerWick(); got != 2 {
		t.Errorf("LowerWick = %v, want 2", got)
	}

	bear := Bar{Open: 104, High: 106, Low: 98, Close: 100}
	if !bear.IsBearish() {
		t.Error("bear bar misclassified")
	}
	if got := bear.Body(); got != 4 {
		t.Errorf("bear Body = %v, want 4", got)
	}
	if got := bear.UpperWick(); got != 2 {
		t.Errorf("bear UpperWick = %v, want 2", got)
	}
}

func TestSeriesAccessors(t *testing.T) {
	bars := validBars(10)
	bars[9].Close = 123.45
	s, err := NewSeries("BTCUSDT", TF1h, bars)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}

	if s.Len() != 10 {
		t.Errorf("Len = %d, want 10", s.Len())
	}
	if s.LastClose() != 123.45 {
		t.Errorf("LastClose = %v, want 123.45", s.LastClose())
	}
	if got := len(s.Closes()); got != 10 {
		t.Errorf("Closes length = %d, want 10", got)
	}

	tail := s.Tail(3)
	if tail.Len() != 3 {
		t.Errorf("Tail(3) length = %d, want 3", tail.Len())
	}
	if tail.LastClose() != s.LastClose() {
		t.Error("Tail dropped the most recent bar")
	}
	if s.Tail(50) != s {
		t.Error("oversized Tail should return the series itself")
	}
}

func TestMockSourceIsDeterministicPerSymbol(t *testing.T) {
	source := NewMockSource(0.001, 0.02)
	ctx := context.Background()

	a, err := source.GetBars(ctx, "BTCUSDT", TF1h, 50)
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	b, err := source.GetBars(ctx, "BTCUSDT", TF1h, 50)
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}

	if a.Len() != 50 || b.Len() != 50 {
		t.Fatalf("lengths = %d, %d, want 50", a.Len(), b.Len())
	}
	for i := range a.Bars {
		if a.Bars[i].Close != b.Bars[i].Close {
			t.Fatalf("bar %d differs between identical requests", i)
		}
	}

	other, err := source.GetBars(ctx, "ETHUSDT", TF1h, 50)
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	if other.Bars[0].Open == a.Bars[0].Open {
		t.Error("different symbols produced the same price path")
	}
}

func TestMockSourceUnknownSymbol(t *testing.T) {
	source := NewMockSource(0.001, 0.01)

	s, err := source.GetBars(context.Background(), "DOGEUSDT", TF4h, 20)
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	if s.Len() != 20 {
		t.Errorf("length = %d, want 20", s.Len())
	}
	if err := s.Validate(); err != nil {
		t.Errorf("generated series invalid: %v", err)
	}
}

func TestMockSourceBasePriceOverride(t *testing.T) {
	source := NewMockSource(0, 0.001)
	source.SetBasePrice("DOGEUSDT", 5000)

	s, err := source.GetBars(context.Background(), "DOGEUSDT", TF1h, 10)
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	if got := s.Bars[0].Open; got != 5000 {
		t.Errorf("first open = %v, want the overridden base 5000", got)
	}
}
