package market

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Timeframe represents a chart timeframe
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
	TF1w  Timeframe = "1w"
)

// ParseTimeframe validates a timeframe string from an external boundary
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(s); tf {
	case TF1m, TF5m, TF15m, TF1h, TF4h, TF1d, TF1w:
		return tf, nil
	default:
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
}

// Duration returns the bar interval for a timeframe
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	case TF1w:
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// Bar represents a single OHLCV candlestick. Immutable once produced.
type Bar struct {
	OpenTime int64   `json:"openTime"` // milliseconds since epoch
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Time returns the bar open time as time.Time
func (b Bar) Time() time.Time {
	return time.Unix(b.OpenTime/1000, 0)
}

// Body returns the absolute body size of the bar
func (b Bar) Body() float64 {
	if b.Close > b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}

// Range returns the full high-low range of the bar
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// UpperWick returns the distance from the body top to the high
func (b Bar) UpperWick() float64 {
	if b.Close > b.Open {
		return b.High - b.Close
	}
	return b.High - b.Open
}

// LowerWick returns the distance from the body bottom to the low
func (b Bar) LowerWick() float64 {
	if b.Close > b.Open {
		return b.Open - b.Low
	}
	return b.Close - b.Low
}

// IsBullish reports whether the bar closed above its open
func (b Bar) IsBullish() bool {
	return b.Close > b.Open
}

// IsBearish reports whether the bar closed below its open
func (b Bar) IsBearish() bool {
	return b.Close < b.Open
}

// Series is an ordered sequence of bars for one (symbol, timeframe) pair
type Series struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Bars      []Bar     `json:"bars"`
}

// Series validation errors
var (
	ErrEmptySeries     = errors.New("series has no bars")
	ErrUnorderedSeries = errors.New("series timestamps are not strictly increasing")
	ErrMalformedBar    = errors.New("bar has inconsistent OHLC values")
)

// NewSeries builds a Series and validates ordering
func NewSeries(symbol string, tf Timeframe, bars []Bar) (*Series, error) {
	s := &Series{Symbol: symbol, Timeframe: tf, Bars: bars}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the structural invariants of the series: non-empty,
// strictly increasing timestamps, high >= low on every bar.
func (s *Series) Validate() error {
	if len(s.Bars) == 0 {
		return ErrEmptySeries
	}
	for i, b := range s.Bars {
		if b.High < b.Low {
			return fmt.Errorf("%w: bar %d high %.8f below low %.8f", ErrMalformedBar, i, b.High, b.Low)
		}
		if i > 0 && b.OpenTime <= s.Bars[i-1].OpenTime {
			return fmt.Errorf("%w: bar %d", ErrUnorderedSeries, i)
		}
	}
	return nil
}

// Len returns the number of bars in the series
func (s *Series) Len() int {
	return len(s.Bars)
}

// Last returns the most recent bar
func (s *Series) Last() Bar {
	return s.Bars[len(s.Bars)-1]
}

// LastClose returns the most recent closing price
func (s *Series) LastClose() float64 {
	return s.Bars[len(s.Bars)-1].Close
}

// Closes returns the closing prices in order
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Tail returns a sub-series containing the last n bars (or the whole
// series when it is shorter than n). The underlying bars are shared.
func (s *Series) Tail(n int) *Series {
	if n >= len(s.Bars) {
		return s
	}
	return &Series{Symbol: s.Symbol, Timeframe: s.Timeframe, Bars: s.Bars[len(s.Bars)-n:]}
}

// BarSource supplies OHLCV windows to the engine. Implementations own all
// I/O concerns (transport, retries, staleness) - the engine only consumes.
type BarSource interface {
	GetBars(ctx context.Context, symbol string, tf Timeframe, limit int) (*Series, error)
}
