package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerConfig  ServerConfig  `json:"server"`
	LoggingConfig LoggingConfig `json:"logging"`
	RedisConfig   RedisConfig   `json:"redis"`
	MarketConfig  MarketConfig  `json:"market"`
	EngineConfig  EngineConfig  `json:"engine"`
	FusionConfig  FusionConfig  `json:"fusion"`
	ScannerConfig ScannerConfig `json:"scanner"`
}

type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// RedisConfig holds the optional shared regime store configuration
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// MarketConfig holds the simulated bar source parameters
type MarketConfig struct {
	MockDrift      float64 `json:"mock_drift"`      // Per-bar drift, e.g. 0.0005
	MockVolatility float64 `json:"mock_volatility"` // Per-bar noise amplitude, e.g. 0.01
}

// EngineConfig holds the analysis pipeline knobs
type EngineConfig struct {
	Profile        string   `json:"profile"`    // scalping, swing, trend, momentum
	Timeframes     []string `json:"timeframes"` // e.g. ["1h","4h","1d","1w"]
	BarLimit       int      `json:"bar_limit"`
	PatternWindow  int      `json:"pattern_window"`
	RegimeCacheTTL int      `json:"regime_cache_ttl"` // Seconds
	DefaultSymbols []string `json:"default_symbols"`
}

// FusionConfig carries the hand-tuned fusion constants. Values are
// empirically chosen; changing one shifts signal frequency system-wide.
type FusionConfig struct {
	TimeframeWeights  map[string]float64 `json:"timeframe_weights"`
	PatternShare      float64            `json:"pattern_share"`
	RegimeBiasMax     float64            `json:"regime_bias_max"`
	HighPriorityBoost float64            `json:"high_priority_boost"`

	BullLongThreshold     float64 `json:"bull_long_threshold"`
	BullShortThreshold    float64 `json:"bull_short_threshold"`
	BearLongThreshold     float64 `json:"bear_long_threshold"`
	BearShortThreshold    float64 `json:"bear_short_threshold"`
	NeutralLongThreshold  float64 `json:"neutral_long_threshold"`
	NeutralShortThreshold float64 `json:"neutral_short_threshold"`

	MinRiskReward map[string]float64 `json:"min_risk_reward"`
	StopPercent   map[string]float64 `json:"stop_percent"`
	TargetPercent map[string]float64 `json:"target_percent"`
}

// ScannerConfig holds the background watchlist scanner knobs. The scanner
// analyzes EngineConfig.DefaultSymbols on each cycle.
type ScannerConfig struct {
	Enabled      bool `json:"enabled"`
	ScanInterval int  `json:"scan_interval"` // Seconds
	WorkerCount  int  `json:"worker_count"`
	ScanTimeout  int  `json:"scan_timeout"` // Seconds
}

func Load() (*Config, error) {
	// Base config from file, if present
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	// Environment variable overrides take precedence
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "*")
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 30)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", "localhost:6379")
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", 0)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", 10)

	// Market config
	cfg.MarketConfig.MockDrift = getEnvFloatOrDefault("MARKET_MOCK_DRIFT", 0.0005)
	cfg.MarketConfig.MockVolatility = getEnvFloatOrDefault("MARKET_MOCK_VOLATILITY", 0.01)

	// Engine config
	cfg.EngineConfig.Profile = getEnvOrDefault("ENGINE_PROFILE", "swing")
	cfg.EngineConfig.BarLimit = getEnvIntOrDefault("ENGINE_BAR_LIMIT", 250)
	cfg.EngineConfig.PatternWindow = getEnvIntOrDefault("ENGINE_PATTERN_WINDOW", 5)
	cfg.EngineConfig.RegimeCacheTTL = getEnvIntOrDefault("ENGINE_REGIME_CACHE_TTL", 300)

	// Fusion constants
	cfg.FusionConfig.PatternShare = getEnvFloatOrDefault("FUSION_PATTERN_SHARE", 0.60)
	cfg.FusionConfig.RegimeBiasMax = getEnvFloatOrDefault("FUSION_REGIME_BIAS_MAX", 0.15)
	cfg.FusionConfig.HighPriorityBoost = getEnvFloatOrDefault("FUSION_HIGH_PRIORITY_BOOST", 0.15)
	cfg.FusionConfig.BullLongThreshold = getEnvFloatOrDefault("FUSION_BULL_LONG_THRESHOLD", 0.30)
	cfg.FusionConfig.BullShortThreshold = getEnvFloatOrDefault("FUSION_BULL_SHORT_THRESHOLD", 0.45)
	cfg.FusionConfig.BearLongThreshold = getEnvFloatOrDefault("FUSION_BEAR_LONG_THRESHOLD", 0.45)
	cfg.FusionConfig.BearShortThreshold = getEnvFloatOrDefault("FUSION_BEAR_SHORT_THRESHOLD", 0.30)
	cfg.FusionConfig.NeutralLongThreshold = getEnvFloatOrDefault("FUSION_NEUTRAL_LONG_THRESHOLD", 0.38)
	cfg.FusionConfig.NeutralShortThreshold = getEnvFloatOrDefault("FUSION_NEUTRAL_SHORT_THRESHOLD", 0.38)

	// Scanner config
	cfg.ScannerConfig.Enabled = getEnvOrDefault("SCANNER_ENABLED", "true") == "true"
	cfg.ScannerConfig.ScanInterval = getEnvIntOrDefault("SCANNER_INTERVAL", 300)
	cfg.ScannerConfig.WorkerCount = getEnvIntOrDefault("SCANNER_WORKERS", 4)
	cfg.ScannerConfig.ScanTimeout = getEnvIntOrDefault("SCANNER_TIMEOUT", 120)
}

func applyDefaults(cfg *Config) {
	if len(cfg.EngineConfig.Timeframes) == 0 {
		cfg.EngineConfig.Timeframes = []string{"1h", "4h", "1d", "1w"}
	}
	if len(cfg.EngineConfig.DefaultSymbols) == 0 {
		cfg.EngineConfig.DefaultSymbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	}
	if len(cfg.FusionConfig.TimeframeWeights) == 0 {
		cfg.FusionConfig.TimeframeWeights = map[string]float64{
			"1w": 0.40, "1d": 0.35, "4h": 0.15, "1h": 0.10,
		}
	}
	if len(cfg.FusionConfig.MinRiskReward) == 0 {
		cfg.FusionConfig.MinRiskReward = map[string]float64{
			"BULL_STRONG": 1.5, "BULL_WEAK": 1.8,
			"BEAR_STRONG": 2.0, "BEAR_WEAK": 2.2,
			"SIDEWAYS": 2.5, "VOLATILE": 3.0,
		}
	}
	if len(cfg.FusionConfig.StopPercent) == 0 {
		cfg.FusionConfig.StopPercent = map[string]float64{
			"BULL_STRONG": 0.02, "BULL_WEAK": 0.02,
			"BEAR_STRONG": 0.02, "BEAR_WEAK": 0.02,
			"SIDEWAYS": 0.015, "VOLATILE": 0.02,
		}
	}
	if len(cfg.FusionConfig.TargetPercent) == 0 {
		cfg.FusionConfig.TargetPercent = map[string]float64{
			"BULL_STRONG": 0.05, "BULL_WEAK": 0.05,
			"BEAR_STRONG": 0.05, "BEAR_WEAK": 0.05,
			"SIDEWAYS": 0.04, "VOLATILE": 0.07,
		}
	}
}

// RegimeCacheDuration returns the regime cache TTL as a duration
func (e EngineConfig) RegimeCacheDuration() time.Duration {
	return time.Duration(e.RegimeCacheTTL) * time.Second
}

// ScanIntervalDuration returns the scan interval as a duration
func (s ScannerConfig) ScanIntervalDuration() time.Duration {
	return time.Duration(s.ScanInterval) * time.Second
}

// ScanTimeoutDuration returns the per-scan timeout as a duration
func (s ScannerConfig) ScanTimeoutDuration() time.Duration {
	return time.Duration(s.ScanTimeout) * time.Second
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
