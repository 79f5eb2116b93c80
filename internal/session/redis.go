package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
)

const redisPrefix = "secrets:session:"

// RedisStore keeps sessions as plain keys whose TTL is the idle lifetime.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// OpenRedis parses a redis:// URL, connects and verifies the connection.
func OpenRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, accountID uuid.UUID, ttl time.Duration) error {
	return s.client.Set(ctx, redisPrefix+key, accountID.String(), ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string, ttl time.Duration) (uuid.UUID, error) {
	k := redisPrefix + key
	v, err := s.client.GetEx(ctx, k, ttl).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrMissing
	}
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.FromString(v)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt session value: %w", err)
	}
	return id, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisPrefix+key).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error { return s.client.Close() }
