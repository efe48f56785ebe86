package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreMiss means the shared store holds no token list
var ErrStoreMiss = errors.New("token store miss")

// Store is a shared second-level cache for the token list
type Store interface {
	// Load returns the stored list and its remaining lifetime, or ErrStoreMiss
	Load(ctx context.Context) ([]Token, time.Duration, error)
	Save(ctx context.Context, tokens []Token, ttl time.Duration) error
}

// RedisStore keeps the token list as a JSON array under a single key
type RedisStore struct {
	rdb redis.Cmdable
	key string
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(rdb redis.Cmdable, key string) *RedisStore {
	if key == "" {
		key = "aggregator:tokens"
	}
	return &RedisStore{rdb: rdb, key: key}
}

// Load reads the token list
func (s *RedisStore) Load(ctx context.Context) ([]Token, time.Duration, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, ErrStoreMiss
	}
	if err != nil {
		return nil, 0, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	var tokens []Token
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, 0, fmt.Errorf("decode stored tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil, 0, ErrStoreMiss
	}

	ttl, err := s.rdb.PTTL(ctx, s.key).Result()
	if err != nil || ttl < 0 {
		ttl = 0
	}
	return tokens, ttl, nil
}

// Save writes the token list with an expiry
func (s *RedisStore) Save(ctx context.Context, tokens []Token, ttl time.Duration) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}
