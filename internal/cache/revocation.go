// Package cache keeps a shared view of token revocations in Redis so most
// authorization checks skip the database.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix = "blocklist:"

	revokedValue = "1"
	activeValue  = "0"
)

// RevocationCache records what is known about a jti. A missing entry means
// "unknown", never "not revoked".
type RevocationCache interface {
	MarkRevoked(ctx context.Context, jti string, ttl time.Duration) error
	MarkActive(ctx context.Context, jti string, ttl time.Duration) error
	Lookup(ctx context.Context, jti string) (revoked bool, found bool, err error)
	Forget(ctx context.Context, jti string) error
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, cfg Config, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Successfully connected to redis", zap.String("addr", cfg.Addr))
	return client, nil
}

type redisRevocationCache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisRevocationCache(client *redis.Client, logger *zap.Logger) RevocationCache {
	return &redisRevocationCache{client: client, logger: logger}
}

// MarkRevoked overwrites any previous state for the jti.
func (c *redisRevocationCache) MarkRevoked(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, keyPrefix+jti, revokedValue, ttl).Err()
}

// MarkActive only writes when nothing is cached, so a concurrent revocation
// is never replaced by a stale "active".
func (c *redisRevocationCache) MarkActive(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.SetNX(ctx, keyPrefix+jti, activeValue, ttl).Err()
}

func (c *redisRevocationCache) Lookup(ctx context.Context, jti string) (bool, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+jti).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, false, nil
		}
		return false, false, err
	}

	switch val {
	case revokedValue:
		return true, true, nil
	case activeValue:
		return false, true, nil
	default:
		c.logger.Warn("Unexpected blocklist cache value", zap.String("jti", jti), zap.String("value", val))
		return false, false, nil
	}
}

func (c *redisRevocationCache) Forget(ctx context.Context, jti string) error {
	return c.client.Del(ctx, keyPrefix+jti).Err()
}
