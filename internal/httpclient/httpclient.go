// Package httpclient builds the resty client used for outbound calls such as
// notification webhooks.
package httpclient

import (
	"errors"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "accountmart/1"

type Config struct {
	baseURL          string
	timeout          time.Duration
	retryCount       int
	retryWaitTime    time.Duration
	retryMaxWaitTime time.Duration
	headers          map[string]string
}

type Option func(c *Config)

func WithBaseURL(baseURL string) Option {
	return func(c *Config) {
		c.baseURL = baseURL
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.timeout = timeout
	}
}

func WithRetryCount(count int) Option {
	return func(c *Config) {
		c.retryCount = count
	}
}

func WithRetryWaitTime(waitTime, maxWaitTime time.Duration) Option {
	return func(c *Config) {
		c.retryWaitTime = waitTime
		c.retryMaxWaitTime = maxWaitTime
	}
}

// WithHeader adds a header sent with every request, e.g. a shared secret
// expected by the receiving endpoint.
func WithHeader(key, value string) Option {
	return func(c *Config) {
		c.headers[key] = value
	}
}

func New(opts ...Option) *resty.Client {
	cfg := &Config{
		timeout:          5 * time.Second,
		retryCount:       3,
		retryWaitTime:    500 * time.Millisecond,
		retryMaxWaitTime: 5 * time.Second,
		headers:          make(map[string]string),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	client := resty.New().
		SetBaseURL(cfg.baseURL).
		SetTimeout(cfg.timeout).
		SetHeader("User-Agent", userAgent).
		SetHeaders(cfg.headers).
		SetRetryCount(cfg.retryCount).
		SetRetryWaitTime(cfg.retryWaitTime).
		SetRetryMaxWaitTime(cfg.retryMaxWaitTime).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if isRetryableError(err) {
				return true
			}

			// Receivers under load answer 429 or 5xx, both are worth another try.
			return resp != nil && (resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError)
		})

	return client
}

// isRetryableError checks if the error is a transport level failure.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}
