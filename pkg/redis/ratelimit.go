package redis

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig defines a sliding-window budget shared by every process using the key
type RateLimitConfig struct {
	Key    string        // e.g. "alpaca", "alpaca_data"
	Limit  int           // Maximum requests per window
	Window time.Duration // Window length
}

// Predefined budgets for the broker APIs (분당 200회)
var (
	AlpacaRateLimit = RateLimitConfig{
		Key:    "alpaca",
		Limit:  200,
		Window: time.Minute,
	}

	AlpacaDataRateLimit = RateLimitConfig{
		Key:    "alpaca_data",
		Limit:  200,
		Window: time.Minute,
	}
)

// slidingWindow trims the window, then admits the call when under the limit
// KEYS[1]=key  ARGV: now_ms, window_start_ms, limit, window_ms, member
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
local count = redis.call('ZCARD', key)
local limit = tonumber(ARGV[3])
if count < limit then
	redis.call('ZADD', key, ARGV[1], ARGV[5])
	redis.call('PEXPIRE', key, ARGV[4])
	return {1, limit - count - 1}
end
return {0, 0}
`)

// retryInterval is the Wait polling step
const retryInterval = 100 * time.Millisecond

// RateLimiter implements sliding window rate limiting using Redis
// ⭐ SSOT: 레이트 리밋은 여기서만
// 프로세스 간 공유 (같은 API 키를 쓰는 여러 trader)
type RateLimiter struct {
	client *Client
	prefix string
	now    func() time.Time
	seq    atomic.Uint64
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix, now: time.Now}
}

// Allow admits one request if the window has room
// Returns (allowed, remaining, error). Redis 비활성 시 항상 허용
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (bool, int, error) {
	if r == nil || !r.client.Enabled() {
		return true, cfg.Limit, nil
	}

	now := r.now().UnixMilli()
	// 같은 ms의 요청이 서로 덮어쓰지 않도록 member에 seq 포함
	member := fmt.Sprintf("%d-%d", now, r.seq.Add(1))

	result, err := slidingWindow.Run(ctx, r.client.Redis(),
		[]string{fmt.Sprintf("%s:ratelimit:%s", r.prefix, cfg.Key)},
		now, now-cfg.Window.Milliseconds(), cfg.Limit, cfg.Window.Milliseconds(), member,
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", cfg.Key, err)
	}
	return result[0] == 1, int(result[1]), nil
}

// Wait blocks until a request is allowed or ctx is cancelled
func (r *RateLimiter) Wait(ctx context.Context, cfg RateLimitConfig) error {
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		allowed, _, err := r.Allow(ctx, cfg)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
