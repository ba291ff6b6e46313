package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each key as a plain Redis string.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to addr and verifies the connection with a PING.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping redis %s: %v", ErrStorage, addr, err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	value, err := r.client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		err = ErrNotFound
	case err != nil:
		err = fmt.Errorf("%w: get %s: %v", ErrStorage, key, err)
	}
	observe("redis", "get", start, err)
	return value, err
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := r.client.Set(ctx, key, value, 0).Err()
	if err != nil {
		err = fmt.Errorf("%w: set %s: %v", ErrStorage, key, err)
	}
	observe("redis", "set", start, err)
	return err
}

func (r *RedisStore) Remove(ctx context.Context, key string) error {
	start := time.Now()
	err := r.client.Del(ctx, key).Err()
	if err != nil {
		err = fmt.Errorf("%w: del %s: %v", ErrStorage, key, err)
	}
	observe("redis", "remove", start, err)
	return err
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
