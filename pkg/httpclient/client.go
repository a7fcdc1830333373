package httpclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Config holds HTTP client configuration.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int

	// RateLimit caps outgoing requests per second across all callers of the
	// client. Zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Client is an http.Client with a shared rate limit and retries for
// idempotent requests.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	cfg     Config
}

// New creates a Client with a pooled transport.
func New(cfg Config) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	transport.MaxIdleConnsPerHost = cfg.MaxConnsPerHost
	transport.MaxConnsPerHost = cfg.MaxConnsPerHost

	c := &Client{
		http: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		cfg:  cfg,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}
	return c
}

// Do sends req. GET and HEAD are retried on network errors and 5xx responses
// other than 501; every other method is sent once.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)

	attempts := 1
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		attempts += max(c.cfg.MaxRetries, 0)
	}

	for attempt := 1; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := c.http.Do(req)
		if ctx.Err() != nil {
			if resp != nil {
				_ = resp.Body.Close()
			}
			return nil, ctx.Err()
		}

		last := attempt >= attempts
		switch {
		case err != nil && (last || !retryable(err)):
			return nil, fmt.Errorf("http request failed after %d attempts: %w", attempt, err)
		case err == nil && (last || !retryableStatus(resp.StatusCode)):
			return resp, nil
		case err == nil:
			_ = resp.Body.Close()
		}

		select {
		case <-time.After(c.backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// backoff doubles from RetryWaitMin up to RetryWaitMax with ±25% jitter.
func (c *Client) backoff(attempt int) time.Duration {
	d := min(c.cfg.RetryWaitMin<<(attempt-1), c.cfg.RetryWaitMax)
	if d <= 0 {
		return 0
	}
	spread := float64(d) / 4
	return time.Duration(float64(d) - spread + rand.Float64()*2*spread)
}

func retryable(err error) bool {
	var netErr net.Error
	return !errors.Is(err, context.Canceled) && errors.As(err, &netErr)
}

func retryableStatus(status int) bool {
	return status >= http.StatusInternalServerError && status != http.StatusNotImplemented
}
