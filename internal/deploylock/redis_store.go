package deploylock

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisClientMissingMessageConstant = "redis store requires a client"

// ErrRedisClientNotConfigured indicates a RedisStore without a client.
var ErrRedisClientNotConfigured = errors.New(redisClientMissingMessageConstant)

// RedisStore keeps locks in a Redis server reached directly.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore wraps a Redis client. A zero ttl keeps keys until they are deleted.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, ErrRedisClientNotConfigured
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// NewRedisStoreFromURL connects to the Redis server described by a redis:// URL.
func NewRedisStoreFromURL(redisURL string, ttl time.Duration) (*RedisStore, *redis.Client, error) {
	options, parseError := redis.ParseURL(redisURL)
	if parseError != nil {
		return nil, nil, parseError
	}
	client := redis.NewClient(options)
	store, storeError := NewRedisStore(client, ttl)
	if storeError != nil {
		return nil, nil, storeError
	}
	return store, client, nil
}

// SetIfAbsent issues SETNX.
func (store *RedisStore) SetIfAbsent(executionContext context.Context, key string, value string) (bool, error) {
	return store.client.SetNX(executionContext, key, value, store.ttl).Result()
}

// Get issues GET and maps redis.Nil to a missing key.
func (store *RedisStore) Get(executionContext context.Context, key string) (string, bool, error) {
	value, getError := store.client.Get(executionContext, key).Result()
	if errors.Is(getError, redis.Nil) {
		return "", false, nil
	}
	if getError != nil {
		return "", false, getError
	}
	return value, true, nil
}

// Delete issues DEL.
func (store *RedisStore) Delete(executionContext context.Context, key string) error {
	return store.client.Del(executionContext, key).Err()
}
