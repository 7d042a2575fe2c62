package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// idempotencyPending marks a key whose first request is still running.
const idempotencyPending = "pending"

// ErrIdempotencyInProgress is returned by Reserve while another request
// holding the same key has not finished.
var ErrIdempotencyInProgress = errors.New("idempotency key in progress")

// IdempotencyStore maps a (user, key) pair to the order it produced.
type IdempotencyStore interface {
	// Reserve claims the key. It returns the order id of a finished request
	// with the same key, or "" when the caller now owns the key.
	Reserve(ctx context.Context, userID, key string) (string, error)
	Complete(ctx context.Context, userID, key, orderID string) error
	Release(ctx context.Context, userID, key string) error
}

type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (s *RedisIdempotencyStore) getIdemKey(userID, key string) string {
	return fmt.Sprintf("idem:order:%s:%s", userID, key)
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, userID, key string) (string, error) {
	k := s.getIdemKey(userID, key)
	ok, err := s.client.SetNX(ctx, k, idempotencyPending, s.ttl).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return "", nil
	}

	val, err := s.client.Get(ctx, k).Result()
	if err == redis.Nil {
		// Expired between SETNX and GET; try once more.
		ok, err = s.client.SetNX(ctx, k, idempotencyPending, s.ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return "", nil
		}
		return "", ErrIdempotencyInProgress
	}
	if err != nil {
		return "", err
	}
	if val == idempotencyPending {
		return "", ErrIdempotencyInProgress
	}
	return val, nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, userID, key, orderID string) error {
	return s.client.Set(ctx, s.getIdemKey(userID, key), orderID, s.ttl).Err()
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, userID, key string) error {
	return s.client.Del(ctx, s.getIdemKey(userID, key)).Err()
}

// NewRedisClient parses redisURL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
