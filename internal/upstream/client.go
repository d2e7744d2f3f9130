// Package upstream performs the JSON GETs shared by the USGS and NWS clients.
// A request makes a single attempt; optional rate limiting and circuit
// breaking sit in front of it.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrStatus wraps any non-2xx response.
var ErrStatus = errors.New("upstream: unexpected status")

// ErrDecode wraps a response body that is not the expected JSON.
var ErrDecode = errors.New("upstream: decode")

// StatusError carries the HTTP status of a failed request.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d from %s", ErrStatus, e.Code, e.URL)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

const maxBodyBytes = 8 << 20

type Client struct {
	HTTP    *http.Client
	Headers map[string]string
	Limiter *rate.Limiter
	Breaker *gobreaker.CircuitBreaker
}

// NewBreaker returns a breaker that opens after five consecutive host
// failures and lets one request through after cooldown. Only errors that say the host
// itself is unhealthy count; see HostFailure.
func NewBreaker(name string, cooldown time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return !HostFailure(err)
		},
	})
}

// HostFailure reports whether err means the upstream host is failing as a
// whole: transport errors, timeouts, 5xx and 429. A 4xx for one station or
// location, an undecodable body and caller cancellation are per-request.
func HostFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrDecode) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return true
}

// GetJSON fetches url and decodes the body into dst.
func (c *Client) GetJSON(ctx context.Context, url string, dst any) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if c.Breaker == nil {
		return c.get(ctx, url, dst)
	}
	_, err := c.Breaker.Execute(func() (interface{}, error) {
		return nil, c.get(ctx, url, dst)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("circuit %s: %w", c.Breaker.Name(), err)
	}
	return err
}

func (c *Client) get(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{URL: url, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("%w %s: %w", ErrDecode, url, err)
	}
	return nil
}
