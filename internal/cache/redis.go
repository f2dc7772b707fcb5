package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"chanplan/internal/log"
	"chanplan/internal/models"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis is a Redis-backed Cache. Metadata is stored as JSON so instances
// sharing the server also share enrichment results.
type Redis struct {
	client *redis.Client
	logger zerolog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connect %s: %w", cfg.Addr, err)
	}

	logger := log.WithComponent("cache")
	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to redis cache")

	return &Redis{client: client, logger: logger}, nil
}

func (c *Redis) Get(key string) (*models.ContentMeta, bool) {
	ctx, cancel := opContext()
	defer cancel()

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.misses.Add(1)
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
		c.misses.Add(1)
		return nil, false
	}

	var meta models.ContentMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cached metadata is not valid json")
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &meta, true
}

func (c *Redis) Set(key string, meta *models.ContentMeta, ttl time.Duration) {
	data, err := json.Marshal(meta)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("metadata marshal failed")
		return
	}
	if ttl < 0 {
		ttl = 0 // redis: 0 means persist
	}

	ctx, cancel := opContext()
	defer cancel()
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis set failed")
		return
	}
	c.sets.Add(1)
}

func (c *Redis) Delete(key string) {
	ctx, cancel := opContext()
	defer cancel()
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis delete failed")
	}
}

func (c *Redis) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.FlushDB(ctx).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis flush failed")
	}
}

func (c *Redis) Stats() Stats {
	ctx, cancel := opContext()
	defer cancel()

	size, err := c.client.DBSize(ctx).Result()
	if err != nil {
		c.logger.Warn().Err(err).Msg("redis dbsize failed")
		size = 0
	}
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
		Size:   int(size),
	}
}

func (c *Redis) Close() error {
	return c.client.Close()
}

// Ping reports whether the backend is reachable, for health checks.
func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Second)
}
