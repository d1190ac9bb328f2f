package state

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wonny/fwtrader/pkg/redis"
)

// RedisStore persists the Context as msgpack under <prefix>:context:<strategy>
type RedisStore struct {
	client *redis.Client
	key    string
	codec  Codec
}

// NewRedisStore keys the Context by strategy under the client prefix
func NewRedisStore(client *redis.Client, strategyID string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    client.Key("context", strategyID),
		codec:  MsgpackCodec{},
	}
}

// Key returns the redis key
func (s *RedisStore) Key() string {
	return s.key
}

func (s *RedisStore) Load(ctx context.Context) (*Context, error) {
	if !s.client.Enabled() {
		return nil, fmt.Errorf("redis store: redis is disabled")
	}

	data, err := s.client.Redis().Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get context: %w", err)
	}
	return s.codec.Unmarshal(data)
}

func (s *RedisStore) Save(ctx context.Context, c *Context) error {
	if !s.client.Enabled() {
		return fmt.Errorf("redis store: redis is disabled")
	}

	data, err := s.codec.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	// TTL 없음: Context는 명시적 reset 전까지 유지
	if err := s.client.Redis().Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set context: %w", err)
	}
	return nil
}
