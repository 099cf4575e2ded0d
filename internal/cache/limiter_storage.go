package cache

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

const limiterKeyPrefix = "limiter:"

var _ fiber.Storage = (*LimiterStorage)(nil)

// LimiterStorage implements fiber.Storage on top of Redis so request limits
// are shared between instances.
type LimiterStorage struct {
	client Client
}

func NewLimiterStorage(client Client) *LimiterStorage {
	return &LimiterStorage{client: client}
}

func (s *LimiterStorage) Get(key string) ([]byte, error) {
	v, err := s.client.Get(context.Background(), limiterKeyPrefix+key)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

func (s *LimiterStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	return s.client.Set(context.Background(), limiterKeyPrefix+key, string(val), exp)
}

func (s *LimiterStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	return s.client.Del(context.Background(), limiterKeyPrefix+key)
}

func (s *LimiterStorage) Reset() error {
	ctx := context.Background()
	keys, err := s.client.Keys(ctx, limiterKeyPrefix+"*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...)
}

// Close is a no-op; the client is owned by main.
func (s *LimiterStorage) Close() error {
	return nil
}
