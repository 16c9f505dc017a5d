// Package scanner runs the analysis engine across a watchlist on a fixed
// interval and publishes whatever signals it finds on the event bus.
package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trading-signal-engine/internal/engine"
	"trading-signal-engine/internal/events"
	"trading-signal-engine/internal/fusion"
)

// Config holds scanner configuration
type Config struct {
	Enabled     bool
	Interval    time.Duration
	WorkerCount int
	ScanTimeout time.Duration
	Symbols     []string
}

// DefaultConfig returns the scanner defaults
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		Interval:    5 * time.Minute,
		WorkerCount: 4,
		ScanTimeout: 2 * time.Minute,
	}
}

// SymbolResult is the outcome of analyzing one symbol during a scan. A nil
// Signal with an empty Error means the analysis ran and found no edge.
type SymbolResult struct {
	Symbol string              `json:"symbol"`
	Signal *fusion.FusedSignal `json:"signal,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// ScanResult aggregates the outcomes of one scan cycle
type ScanResult struct {
	ScanID         string         `json:"scan_id"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	Duration       time.Duration  `json:"duration"`
	SymbolsScanned int            `json:"symbols_scanned"`
	SignalsFound   int            `json:"signals_found"`
	Results        []SymbolResult `json:"results"`
}

// Scanner orchestrates periodic multi-symbol analysis
type Scanner struct {
	engine   *engine.Engine
	bus      *events.EventBus
	cfg      Config
	logger   zerolog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu         sync.RWMutex
	lastResult *ScanResult
}

// New creates a scanner. The bus may be nil when no sink is interested.
func New(eng *engine.Engine, bus *events.EventBus, cfg Config, logger zerolog.Logger) *Scanner {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultConfig().WorkerCount
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = DefaultConfig().ScanTimeout
	}
	return &Scanner{
		engine:   eng,
		bus:      bus,
		cfg:      cfg,
		logger:   logger.With().Str("component", "Scanner").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start begins the background scan loop
func (sc *Scanner) Start() {
	if !sc.cfg.Enabled || len(sc.cfg.Symbols) == 0 {
		sc.logger.Info().Msg("scanner disabled")
		return
	}

	sc.wg.Add(1)
	go sc.runScanLoop()
	sc.logger.Info().
		Int("symbols", len(sc.cfg.Symbols)).
		Dur("interval", sc.cfg.Interval).
		Msg("scanner started")
}

// Stop halts the scan loop and waits for an in-flight scan to finish
func (sc *Scanner) Stop() {
	sc.stopOnce.Do(func() { close(sc.stopChan) })
	sc.wg.Wait()
}

func (sc *Scanner) runScanLoop() {
	defer sc.wg.Done()

	ticker := time.NewTicker(sc.cfg.Interval)
	defer ticker.Stop()

	sc.Scan()

	for {
		select {
		case <-ticker.C:
			sc.Scan()
		case <-sc.stopChan:
			sc.logger.Info().Msg("scanner stopped")
			return
		}
	}
}

// Scan executes a single scan cycle over the configured symbols
func (sc *Scanner) Scan() *ScanResult {
	ctx, cancel := context.WithTimeout(context.Background(), sc.cfg.ScanTimeout)
	defer cancel()

	start := time.Now()
	result := &ScanResult{
		ScanID:    uuid.New().String(),
		StartTime: start,
	}

	symbolChan := make(chan string, len(sc.cfg.Symbols))
	resultChan := make(chan SymbolResult, len(sc.cfg.Symbols))

	var wg sync.WaitGroup
	for i := 0; i < sc.cfg.WorkerCount; i++ {
		wg.Add(1)
		go sc.worker(ctx, symbolChan, resultChan, &wg)
	}
	for _, symbol := range sc.cfg.Symbols {
		symbolChan <- symbol
	}
	close(symbolChan)
	wg.Wait()
	close(resultChan)

	for res := range resultChan {
		result.Results = append(result.Results, res)
		if res.Signal != nil {
			result.SignalsFound++
		}
	}
	result.SymbolsScanned = len(result.Results)
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start)

	sc.mu.Lock()
	sc.lastResult = result
	sc.mu.Unlock()

	sc.logger.Info().
		Str("scanId", result.ScanID).
		Int("scanned", result.SymbolsScanned).
		Int("signals", result.SignalsFound).
		Dur("took", result.Duration).
		Msg("scan completed")

	if sc.bus != nil {
		sc.bus.Publish(events.Event{
			Type: events.EventScanCompleted,
			Data: map[string]interface{}{
				"scan_id":  result.ScanID,
				"scanned":  result.SymbolsScanned,
				"signals":  result.SignalsFound,
				"duration": result.Duration.String(),
			},
		})
	}
	return result
}

func (sc *Scanner) worker(ctx context.Context, symbols <-chan string, results chan<- SymbolResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for symbol := range symbols {
		select {
		case <-ctx.Done():
			results <- SymbolResult{Symbol: symbol, Error: ctx.Err().Error()}
			continue
		default:
		}

		signal, err := sc.engine.Analyze(ctx, symbol)
		if err != nil {
			sc.logger.Warn().Err(err).Str("symbol", symbol).Msg("scan analysis failed")
			if sc.bus != nil {
				sc.bus.PublishError("scanner", "analysis failed for "+symbol, err)
			}
			results <- SymbolResult{Symbol: symbol, Error: err.Error()}
			continue
		}

		sc.publishSignal(signal)
		results <- SymbolResult{Symbol: symbol, Signal: signal}
	}
}

func (sc *Scanner) publishSignal(signal *fusion.FusedSignal) {
	if signal == nil || sc.bus == nil {
		return
	}
	sc.bus.PublishSignal(signal.Symbol, string(signal.SignalType),
		signal.EntryPrice, signal.Confidence, signal.Reasoning)
}

// LastResult returns the most recent completed scan, or nil before the
// first scan finishes.
func (sc *Scanner) LastResult() *ScanResult {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastResult
}
