package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/fwtrader/pkg/logger"
	"github.com/wonny/fwtrader/pkg/redis"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4096
)

// Client is the JSON REST client used at the broker boundary
// ⭐ SSOT: 모든 외부 HTTP 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	http    *http.Client
	logger  *logger.Logger
	retry   RetryConfig
	limiter *redis.RateLimiter
	limit   redis.RateLimitConfig
	headers http.Header
}

// RetryConfig 지수 백오프 재시도 설정
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetry 3회, 1s → 10s
var DefaultRetry = RetryConfig{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 10 * time.Second}

// StatusError is a non-2xx response
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Option configures a Client
type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithoutRetry sends every request exactly once
func WithoutRetry() Option {
	return func(c *Client) { c.retry = RetryConfig{} }
}

// WithRateLimit waits on a shared Redis window before each attempt
// nil limiter = 제한 없음
func WithRateLimit(limiter *redis.RateLimiter, cfg redis.RateLimitConfig) Option {
	return func(c *Client) {
		c.limiter = limiter
		c.limit = cfg
	}
}

// WithHeader sets a header on every request (API keys 등)
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// New creates a client
// ⭐ SSOT: http.Client 인스턴스는 여기서만 생성
func New(log *logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	c := &Client{
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  log.WithComponent("http"),
		retry:   DefaultRetry,
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON decodes a 2xx JSON body into out
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	return c.DoJSON(ctx, http.MethodGet, url, nil, out)
}

// PostJSON sends in as JSON and decodes a 2xx body into out (nil = discard)
func (c *Client) PostJSON(ctx context.Context, url string, in, out interface{}) error {
	return c.DoJSON(ctx, http.MethodPost, url, in, out)
}

// Delete expects a 2xx and discards the body
func (c *Client) Delete(ctx context.Context, url string) error {
	return c.DoJSON(ctx, http.MethodDelete, url, nil, nil)
}

// DoJSON is the single request path: encode, send with retry, check status, decode
func (c *Client) DoJSON(ctx context.Context, method, url string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, url, err)
		}
		payload = b
	}

	resp, err := c.send(ctx, method, url, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, url, err)
	}
	return nil
}

// send builds a fresh request per attempt
// 주문 POST 같은 비멱등 요청은 429 (처리 전 거절) 에서만 재시도
func (c *Client) send(ctx context.Context, method, url string, payload []byte) (*http.Response, error) {
	start := time.Now()
	log := c.logger.WithFields(map[string]interface{}{"method": method, "url": url})
	delay := c.retry.InitialDelay
	idempotent := method != http.MethodPost && method != http.MethodPatch

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx, c.limit); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build %s request: %w", method, err)
		}
		req.Header = c.headers.Clone()
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		retry := false
		switch {
		case err != nil:
			retry = idempotent && ctx.Err() == nil
		case IsRetryable(resp.StatusCode):
			retry = idempotent || resp.StatusCode == http.StatusTooManyRequests
		}

		if !retry || attempt >= c.retry.MaxRetries {
			if err != nil {
				log.WithFields(map[string]interface{}{"attempts": attempt + 1, "duration": time.Since(start)}).
					WithError(err).Error("HTTP request failed")
				return nil, err
			}
			log.WithFields(map[string]interface{}{"status_code": resp.StatusCode, "duration": time.Since(start)}).
				Debug("HTTP request completed")
			return resp, nil
		}

		wait := delay
		if resp != nil {
			if ra := retryAfter(resp.Header.Get("Retry-After")); ra > 0 {
				wait = ra
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		log.WithFields(map[string]interface{}{"attempt": attempt + 1, "delay": wait}).Warn("Retrying HTTP request")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, c.retry.MaxDelay)
	}
}

// retryAfter parses the seconds form of Retry-After
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// IsRetryable reports statuses the client retries for idempotent requests
func IsRetryable(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
