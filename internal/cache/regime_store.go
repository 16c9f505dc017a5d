// Package cache provides a Redis-backed store for regime classifications
// shared across engine hosts. The store degrades gracefully: when Redis is
// unavailable a circuit breaker opens and callers fall back to local
// recomputation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trading-signal-engine/config"
	"trading-signal-engine/internal/market"
	"trading-signal-engine/internal/regime"
)

// ErrUnavailable is returned while the circuit breaker is open
var ErrUnavailable = errors.New("redis unavailable (circuit breaker open)")

// DefaultTTL matches the regime cache refresh window
const DefaultTTL = 5 * time.Minute

// RegimeStore persists serialized classifications keyed by
// regime:{symbol}:{timeframe}
type RegimeStore struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewRegimeStore connects to Redis and verifies connectivity. A failed
// initial ping returns the store in degraded mode, not an error: the
// breaker reopens it once Redis comes back.
func NewRegimeStore(cfg config.RedisConfig, ttl time.Duration, logger zerolog.Logger) (*RegimeStore, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	rs := &RegimeStore{
		client:        client,
		ttl:           ttl,
		logger:        logger.With().Str("component", "RegimeStore").Logger(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		rs.logger.Warn().Err(err).Str("address", cfg.Address).
			Msg("initial redis connection failed, starting degraded")
		return rs, nil
	}

	rs.healthy = true
	rs.lastCheck = time.Now()
	rs.logger.Info().Str("address", cfg.Address).Msg("redis connected")
	return rs, nil
}

// IsHealthy reports whether Redis is currently usable
func (rs *RegimeStore) IsHealthy() bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.healthy
}

func (rs *RegimeStore) recordFailure() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.failureCount++
	if rs.failureCount >= rs.maxFailures {
		if rs.healthy {
			rs.logger.Warn().Int("failures", rs.failureCount).
				Msg("circuit breaker open, redis marked unhealthy")
		}
		rs.healthy = false
	}
}

func (rs *RegimeStore) recordSuccess() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.healthy {
		rs.logger.Info().Msg("circuit breaker closed, redis recovered")
	}
	rs.healthy = true
	rs.failureCount = 0
	rs.lastCheck = time.Now()
}

// checkHealth pings Redis in the background once the recheck interval has
// passed while unhealthy
func (rs *RegimeStore) checkHealth() {
	rs.mu.RLock()
	shouldCheck := !rs.healthy && time.Since(rs.lastCheck) >= rs.checkInterval
	rs.mu.RUnlock()
	if !shouldCheck {
		return
	}

	rs.mu.Lock()
	rs.lastCheck = time.Now()
	rs.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rs.client.Ping(ctx).Err(); err == nil {
			rs.recordSuccess()
		}
	}()
}

func storeKey(symbol string, tf market.Timeframe) string {
	return fmt.Sprintf("regime:%s:%s", symbol, tf)
}

// Get fetches a classification. A cache miss returns (nil, nil).
func (rs *RegimeStore) Get(ctx context.Context, symbol string, tf market.Timeframe) (*regime.Classification, error) {
	rs.checkHealth()
	if !rs.IsHealthy() {
		return nil, ErrUnavailable
	}

	data, err := rs.client.Get(ctx, storeKey(symbol, tf)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			rs.recordSuccess()
			return nil, nil
		}
		rs.recordFailure()
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	rs.recordSuccess()

	var cls regime.Classification
	if err := json.Unmarshal([]byte(data), &cls); err != nil {
		// A corrupt entry is a miss, not a failure
		rs.logger.Warn().Err(err).Str("symbol", symbol).Msg("discarding corrupt cached classification")
		return nil, nil
	}
	return &cls, nil
}

// Set stores a classification with the store TTL
func (rs *RegimeStore) Set(ctx context.Context, symbol string, tf market.Timeframe, cls *regime.Classification) error {
	rs.checkHealth()
	if !rs.IsHealthy() {
		return ErrUnavailable
	}

	data, err := json.Marshal(cls)
	if err != nil {
		return fmt.Errorf("marshaling classification: %w", err)
	}
	if err := rs.client.Set(ctx, storeKey(symbol, tf), data, rs.ttl).Err(); err != nil {
		rs.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}
	rs.recordSuccess()
	return nil
}

// Delete removes one symbol/timeframe entry
func (rs *RegimeStore) Delete(ctx context.Context, symbol string, tf market.Timeframe) error {
	rs.checkHealth()
	if !rs.IsHealthy() {
		return ErrUnavailable
	}

	if err := rs.client.Del(ctx, storeKey(symbol, tf)).Err(); err != nil {
		rs.recordFailure()
		return fmt.Errorf("redis delete failed: %w", err)
	}
	rs.recordSuccess()
	return nil
}

// Close releases the Redis connection pool
func (rs *RegimeStore) Close() error {
	return rs.client.Close()
}
