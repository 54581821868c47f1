package persistence

import (
	"context"
	"fmt"

	"labeler_server/core/domain"
	"labeler_server/core/port/out"
	"labeler_server/pkg/cache"
)

// RedisStore keeps the model state under one Redis key; a single SET replaces it atomically.
type RedisStore struct {
	cache *cache.RedisCache
	key   string
	codec *Codec
}

var (
	_ out.ModelStore    = (*RedisStore)(nil)
	_ out.HealthChecker = (*RedisStore)(nil)
)

func NewRedisStore(c *cache.RedisCache, key string, codec *Codec) *RedisStore {
	return &RedisStore{cache: c, key: key, codec: codec}
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Load(ctx context.Context) (*domain.ModelState, error) {
	data, found, err := s.cache.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	if !found {
		return nil, domain.ErrStateNotFound
	}
	return s.codec.Decode(data)
}

func (s *RedisStore) Save(ctx context.Context, state *domain.ModelState) error {
	data, err := s.codec.Encode(state)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, s.key, data, 0); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}
