// Package redis caches strategy records in front of the primary store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tunogya/spi/pkg/data"
	"github.com/tunogya/spi/pkg/model"
)

// Config holds Redis configuration
type Config struct {
	Enabled  bool          `env:"ENABLED" envDefault:"false"`
	Address  string        `env:"ADDRESS" envDefault:"localhost:6379"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	PoolSize int           `env:"POOL_SIZE" envDefault:"10"`
	TTL      time.Duration `env:"TTL" envDefault:"10m"`
}

const keyStrategy = "spi:strategy:%s"

// StrategyCache is a read-through StrategyReader. When Redis is unavailable it serves
// every read from the wrapped reader and retries Redis after a backoff.
type StrategyCache struct {
	client *redis.Client
	next   data.StrategyReader
	ttl    time.Duration
	logger zerolog.Logger

	mu            sync.RWMutex
	healthy       bool
	failureCount  int
	lastFailure   time.Time
	maxFailures   int
	retryInterval time.Duration
}

var _ data.StrategyReader = (*StrategyCache)(nil)

// NewStrategyCache connects to Redis. A failed initial ping leaves the cache degraded, not broken.
func NewStrategyCache(ctx context.Context, cfg Config, next data.StrategyReader, logger zerolog.Logger) *StrategyCache {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	c := &StrategyCache{
		client:        client,
		next:          next,
		ttl:           cfg.TTL,
		logger:        logger.With().Str("component", "strategy_cache").Logger(),
		maxFailures:   3,
		retryInterval: 30 * time.Second,
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		c.logger.Warn().Err(err).Str("addr", cfg.Address).Msg("redis unavailable, serving from store")
		c.failureCount = c.maxFailures
		c.lastFailure = time.Now()
		return c
	}

	c.healthy = true
	c.logger.Info().Str("addr", cfg.Address).Msg("redis connected")
	return c
}

// Close closes the Redis client
func (c *StrategyCache) Close() error {
	return c.client.Close()
}

// IsHealthy reports whether Redis is currently used
func (c *StrategyCache) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

// FindByID serves the strategy from Redis, loading and caching it on a miss.
// Absent strategies are not cached.
func (c *StrategyCache) FindByID(ctx context.Context, id string) (*model.StrategyRecord, error) {
	if c.available() {
		raw, err := c.client.Get(ctx, key(id)).Bytes()
		switch {
		case err == nil:
			c.recordSuccess()
			var s model.StrategyRecord
			if err := json.Unmarshal(raw, &s); err == nil {
				return &s, nil
			}
			c.logger.Warn().Str("strategy_id", id).Msg("discarding undecodable cache entry")
		case errors.Is(err, redis.Nil):
			c.recordSuccess()
		default:
			c.recordFailure(err)
		}
	}

	s, err := c.next.FindByID(ctx, id)
	if err != nil || s == nil {
		return s, err
	}

	if c.available() {
		if raw, err := json.Marshal(s); err == nil {
			if err := c.client.Set(ctx, key(id), raw, c.ttl).Err(); err != nil {
				c.recordFailure(err)
			}
		}
	}

	return s, nil
}

// Invalidate drops a cached strategy
func (c *StrategyCache) Invalidate(ctx context.Context, id string) error {
	if !c.available() {
		return nil
	}
	if err := c.client.Del(ctx, key(id)).Err(); err != nil {
		c.recordFailure(err)
		return fmt.Errorf("failed to invalidate strategy %s: %w", id, err)
	}
	return nil
}

func key(id string) string {
	return fmt.Sprintf(keyStrategy, id)
}

// available returns true when Redis is healthy or the retry interval has passed
func (c *StrategyCache) available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy || time.Since(c.lastFailure) >= c.retryInterval
}

func (c *StrategyCache) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount++
	c.lastFailure = time.Now()
	if c.failureCount >= c.maxFailures && c.healthy {
		c.logger.Warn().Err(err).Int("failures", c.failureCount).Msg("redis marked unhealthy")
		c.healthy = false
	}
}

func (c *StrategyCache) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.healthy {
		c.logger.Info().Msg("redis recovered")
	}
	c.healthy = true
	c.failureCount = 0
}
