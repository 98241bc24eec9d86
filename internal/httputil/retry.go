// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP client shared by search providers and
// the page fetcher: retry with exponential backoff plus rotating identity
// headers.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RetryBaseDelay is the default base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 500 * time.Millisecond

const (
	defaultMaxRetries = 2
	defaultTimeout    = 15 * time.Second

	// MaxBodyBytes bounds how much of a response body ReadBody keeps.
	MaxBodyBytes = 4 << 20
)

// StatusError reports a non-2xx response that survived all retries.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMaxRetries sets the number of retries after the first attempt. Negative
// values mean no retries.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = max(n, 0) }
}

// WithBaseDelay sets the backoff base. Zero keeps RetryBaseDelay.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

// WithIdentities replaces the rotating header sets.
func WithIdentities(ids []Identity) Option {
	return func(c *Client) { c.rotator = NewRotator(ids) }
}

// WithLogger sets the logger used for retry events.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// Client executes requests with retries and identity rotation.
type Client struct {
	http       *http.Client
	maxRetries int
	baseDelay  time.Duration
	rotator    *Rotator
	log        *zap.Logger
}

// NewClient creates a Client with a 15 s timeout, two retries and the
// default identity set.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
		rotator:    NewRotator(DefaultIdentities),
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryable reports whether a status code is worth another attempt.
func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Do executes req, retrying on HTTP 429, 5xx and transport errors. The delay
// starts at the base delay and doubles on each attempt. Identity headers not
// already present on req are filled from the rotator, a fresh identity per
// attempt.
//
// If the context ends during a backoff wait Do returns ctx.Err(). After
// exhausting retries on a retryable status the last response is returned so
// the caller can inspect it.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	base := c.baseDelay
	if base <= 0 {
		base = RetryBaseDelay
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			attemptReq.Body = body
		}
		c.rotator.Next().Apply(attemptReq)

		resp, err := c.http.Do(attemptReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt >= c.maxRetries {
				return nil, err
			}
		} else {
			if !retryable(resp.StatusCode) || attempt >= c.maxRetries {
				return resp, nil
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		backoff := base << attempt
		c.log.Debug("retrying request",
			zap.String("url", req.URL.String()),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", c.maxRetries),
			zap.Duration("backoff", backoff),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Get issues a GET to url with extra headers and returns the body of a 2xx
// response. Other statuses yield a *StatusError.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}
	return ReadBody(resp.Body)
}

// ReadBody reads at most MaxBodyBytes from r.
func ReadBody(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return data, nil
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
