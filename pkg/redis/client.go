package redis

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/fwtrader/pkg/config"
)

const (
	defaultPrefix = "fwtrader"
	pingTimeout   = 3 * time.Second
)

// Client is the process-wide Redis handle; disabled clients turn every caller into a no-op
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb    *redis.Client
	prefix string
}

// New connects when cfg.Enabled, otherwise returns a disabled client
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	c := &Client{prefix: cfg.Prefix}
	if !cfg.Enabled {
		return c, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", rdb.Options().Addr, err)
	}

	c.rdb = rdb
	return c, nil
}

// NewFromRedis wraps an existing go-redis client (tests, shared pools)
func NewFromRedis(rdb *redis.Client, prefix string) *Client {
	return &Client{rdb: rdb, prefix: prefix}
}

// Prefix namespaces every key this process writes
func (c *Client) Prefix() string {
	if c == nil || c.prefix == "" {
		return defaultPrefix
	}
	return c.prefix
}

// Key joins parts under the prefix: fwtrader:context:demo
func (c *Client) Key(parts ...string) string {
	return strings.Join(append([]string{c.Prefix()}, parts...), ":")
}

func (c *Client) Enabled() bool {
	return c != nil && c.rdb != nil
}

func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}

// Redis returns the underlying client; nil when disabled
func (c *Client) Redis() *redis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}
