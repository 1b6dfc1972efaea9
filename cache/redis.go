package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hubenschmidt/go-orchestra/logging"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Redis shares cached results across server instances. Failures degrade to
// cache misses.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewRedis(cfg RedisConfig, logger zerolog.Logger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Redis{
		rdb:    rdb,
		ttl:    cfg.TTL,
		logger: logging.Component(logger, "cache"),
	}, nil
}

func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
		}
		return nil, false
	}
	return data, true
}

func (c *Redis) Set(ctx context.Context, key string, value []byte) {
	if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis set failed")
	}
}

func (c *Redis) Close() error {
	return c.rdb.Close()
}
