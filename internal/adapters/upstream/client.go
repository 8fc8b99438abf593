// Package upstream executes calls against third-party game-data providers and
// defines the error taxonomy shared by the provider clients.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/armory/pkg/logger"
	"github.com/okian/armory/pkg/metrics"
)

// Default client configuration constants.
const (
	DefaultTimeout  = 10 * time.Second
	maxResponseBody = 8 << 20
)

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource hands out bearer tokens for one provider.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	// Invalidate drops token if it is still the cached one.
	Invalidate(token string)
}

// RequestFunc builds a request bound to ctx.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// AuthorizedRequestFunc builds a request bound to ctx carrying token.
type AuthorizedRequestFunc func(ctx context.Context, token string) (*http.Request, error)

// Client runs HTTP calls for one provider with a per-call timeout.
type Client struct {
	provider string
	http     Doer
	timeout  time.Duration
	logger   logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Client for the named provider.
func NewClient(provider string, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		http:     http.DefaultClient,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named(provider)
	}
	return c
}

// Provider returns the provider name used in errors and metrics.
func (c *Client) Provider() string { return c.provider }

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Do executes one call and returns the response body of a 2xx response.
// Non-2xx responses become *StatusError, deadline expiry becomes *TimeoutError.
func (c *Client) Do(ctx context.Context, build RequestFunc) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := build(callCtx)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.provider, err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(ctx, callCtx, start, err, 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, c.fail(ctx, callCtx, start, err, resp.StatusCode)
	}

	took := time.Since(start)
	c.logger.Debug(ctx, "upstream call",
		logger.String("method", req.Method),
		logger.String("path", req.URL.Path),
		logger.Int("status", resp.StatusCode),
		logger.Duration("took", took))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		metrics.RecordUpstreamRequest(c.provider, "status_"+strconv.Itoa(resp.StatusCode), ms(took))
		return nil, &StatusError{Provider: c.provider, Status: resp.StatusCode, Body: Truncate(body)}
	}
	metrics.RecordUpstreamRequest(c.provider, "ok", ms(took))
	return body, nil
}

// DoAuthorized executes a bearer-authenticated call. A 401/403 response
// invalidates the token and the call is retried once with a fresh one.
func (c *Client) DoAuthorized(ctx context.Context, tokens TokenSource, build AuthorizedRequestFunc) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		token, err := tokens.AccessToken(ctx)
		if err != nil {
			return nil, err
		}

		body, err := c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
			return build(ctx, token)
		})

		var se *StatusError
		if attempt == 0 && errors.As(err, &se) && se.Unauthorized() {
			c.logger.Warn(ctx, "token rejected, refreshing", logger.Int("status", se.Status))
			tokens.Invalidate(token)
			continue
		}
		return body, err
	}
}

// SetBearer attaches the bearer token and asks for JSON.
func SetBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
}

// fail classifies a transport or read failure.
func (c *Client) fail(parent, callCtx context.Context, start time.Time, err error, status int) error {
	took := time.Since(start)
	if isTimeout(err) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		metrics.RecordUpstreamRequest(c.provider, "timeout", ms(took))
		c.logger.Warn(parent, "upstream call timed out", logger.Duration("timeout", c.timeout))
		return &TimeoutError{Provider: c.provider, Timeout: c.timeout, Err: err}
	}
	metrics.RecordUpstreamRequest(c.provider, "transport", ms(took))
	if parent.Err() != nil {
		return fmt.Errorf("%s: %w", c.provider, parent.Err())
	}
	return &StatusError{Provider: c.provider, Status: status, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
