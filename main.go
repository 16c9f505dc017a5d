package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"trading-signal-engine/config"
	"trading-signal-engine/internal/adaptive"
	"trading-signal-engine/internal/api"
	"trading-signal-engine/internal/cache"
	"trading-signal-engine/internal/engine"
	"trading-signal-engine/internal/events"
	"trading-signal-engine/internal/fusion"
	"trading-signal-engine/internal/market"
	"trading-signal-engine/internal/regime"
	"trading-signal-engine/internal/scanner"
)

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.LoggingConfig)
	logger.Info().
		Str("profile", cfg.EngineConfig.Profile).
		Strs("timeframes", cfg.EngineConfig.Timeframes).
		Msg("starting trading signal engine")

	var store *cache.RegimeStore
	if cfg.RedisConfig.Enabled {
		store, err = cache.NewRegimeStore(cfg.RedisConfig, cfg.EngineConfig.RegimeCacheDuration(), logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("building regime store")
		}
		defer store.Close()
	}

	source := market.NewMockSource(cfg.MarketConfig.MockDrift, cfg.MarketConfig.MockVolatility)

	// A typed nil pointer must not become a non-nil interface
	var regimeStore engine.RegimeStore
	if store != nil {
		regimeStore = store
	}

	eng, err := engine.New(source, buildEngineConfig(cfg), regimeStore, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("building engine")
	}

	bus := events.NewEventBus()
	bus.Subscribe(events.EventSignalGenerated, func(ev events.Event) {
		logger.Info().
			Interface("signal", ev.Data).
			Msg("signal generated")
	})

	watchlist := scanner.New(eng, bus, buildScannerConfig(cfg), logger)
	watchlist.Start()
	defer watchlist.Stop()

	server := api.NewServer(cfg.ServerConfig, eng, store, logger)
	server.AttachScanner(watchlist)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
	logger.Info().Msg("stopped")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out *os.File
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			out = os.Stdout
		} else {
			out = f
		}
	}

	var logger zerolog.Logger
	if cfg.JSONFormat {
		logger = zerolog.New(out)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}
	logger = logger.Level(level).With().Timestamp().Logger()
	if cfg.IncludeFile {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

func buildEngineConfig(cfg *config.Config) engine.Config {
	engCfg := engine.DefaultConfig()
	engCfg.Profile = adaptive.Profile(cfg.EngineConfig.Profile)
	engCfg.BarLimit = cfg.EngineConfig.BarLimit
	engCfg.PatternWindow = cfg.EngineConfig.PatternWindow
	engCfg.CacheTTL = cfg.EngineConfig.RegimeCacheDuration()
	engCfg.Fusion = buildFusionConfig(cfg.FusionConfig)

	var tfs []market.Timeframe
	for _, raw := range cfg.EngineConfig.Timeframes {
		tf, err := market.ParseTimeframe(raw)
		if err != nil {
			continue
		}
		tfs = append(tfs, tf)
	}
	if len(tfs) > 0 {
		engCfg.Timeframes = tfs
	}
	return engCfg
}

func buildScannerConfig(cfg *config.Config) scanner.Config {
	return scanner.Config{
		Enabled:     cfg.ScannerConfig.Enabled,
		Interval:    cfg.ScannerConfig.ScanIntervalDuration(),
		WorkerCount: cfg.ScannerConfig.WorkerCount,
		ScanTimeout: cfg.ScannerConfig.ScanTimeoutDuration(),
		Symbols:     cfg.EngineConfig.DefaultSymbols,
	}
}

func buildFusionConfig(fc config.FusionConfig) fusion.Config {
	fuCfg := fusion.DefaultConfig()
	fuCfg.PatternShare = fc.PatternShare
	fuCfg.RegimeBiasMax = fc.RegimeBiasMax
	fuCfg.HighPriorityBoost = fc.HighPriorityBoost
	fuCfg.BullThresholds = fusion.Thresholds{Long: fc.BullLongThreshold, Short: fc.BullShortThreshold}
	fuCfg.BearThresholds = fusion.Thresholds{Long: fc.BearLongThreshold, Short: fc.BearShortThreshold}
	fuCfg.NeutralThresholds = fusion.Thresholds{Long: fc.NeutralLongThreshold, Short: fc.NeutralShortThreshold}

	if len(fc.TimeframeWeights) > 0 {
		weights := make(map[market.Timeframe]float64, len(fc.TimeframeWeights))
		for raw, w := range fc.TimeframeWeights {
			tf, err := market.ParseTimeframe(raw)
			if err != nil {
				continue
			}
			weights[tf] = w
		}
		fuCfg.Weights = weights
	}
	if len(fc.MinRiskReward) > 0 {
		fuCfg.MinRiskReward = regimeMap(fc.MinRiskReward)
	}
	if len(fc.StopPercent) > 0 {
		fuCfg.StopPercent = regimeMap(fc.StopPercent)
	}
	if len(fc.TargetPercent) > 0 {
		fuCfg.TargetPercent = regimeMap(fc.TargetPercent)
	}
	return fuCfg
}

func regimeMap(src map[string]float64) map[regime.Regime]float64 {
	out := make(map[regime.Regime]float64, len(src))
	for raw, v := range src {
		out[regime.Regime(raw)] = v
	}
	return out
}
