package tokenstore

import (
	"context"
	"fmt"

	"github.com/Domenick1991/tailorbook/config"
	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(cfg config.RedisConfig, prefix, profile string) *RedisStore {
	return NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}), prefix, profile)
}

func NewRedisStoreWithClient(client *redis.Client, prefix, profile string) *RedisStore {
	return &RedisStore{client: client, key: sessionKey(prefix, profile)}
}

func (r *RedisStore) Load(ctx context.Context) (*domain.Session, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fromFields(fields)
}

// Save replaces the hash inside MULTI/EXEC so the fields change together.
func (r *RedisStore) Save(ctx context.Context, session domain.Session) error {
	fields, err := toFields(session)
	if err != nil {
		return err
	}
	values := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		pipe.HSet(ctx, r.key, values...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func sessionKey(prefix, profile string) string {
	return fmt.Sprintf("%s:%s:session", prefix, profile)
}

var _ Store = (*RedisStore)(nil)
