package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/tailorbook/config"
	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client    *redis.Client
	placesTTL time.Duration
	searchTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, placesTTL, searchTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		placesTTL, searchTTL,
	)
}

func NewRedisCacheWithClient(client *redis.Client, placesTTL, searchTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, placesTTL: placesTTL, searchTTL: searchTTL}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetPlace returns nil, nil on a miss.
func (c *RedisCache) GetPlace(ctx context.Context, key string) (*domain.Place, error) {
	var place domain.Place
	ok, err := c.get(ctx, placeKey(key), &place)
	if err != nil || !ok {
		return nil, err
	}
	return &place, nil
}

func (c *RedisCache) SetPlace(ctx context.Context, key string, place *domain.Place) error {
	return c.set(ctx, placeKey(key), place, c.placesTTL)
}

// GetTailors returns nil, nil on a miss.
func (c *RedisCache) GetTailors(ctx context.Context, key string) ([]domain.TailorProfile, error) {
	var tailors []domain.TailorProfile
	ok, err := c.get(ctx, tailorsKey(key), &tailors)
	if err != nil || !ok {
		return nil, err
	}
	return tailors, nil
}

func (c *RedisCache) SetTailors(ctx context.Context, key string, tailors []domain.TailorProfile) error {
	return c.set(ctx, tailorsKey(key), tailors, c.searchTTL)
}

func (c *RedisCache) get(ctx context.Context, key string, out interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisCache) set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func placeKey(key string) string {
	return "cache:geocode:" + key
}

func tailorsKey(key string) string {
	return "cache:tailors:" + key
}
