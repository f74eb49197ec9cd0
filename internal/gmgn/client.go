// Package gmgn is a client for the GMGN upstream REST API: login, quotation
// (gas price, token info, trade history) and follow management.
package gmgn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/time/rate"

	"wallet-signal/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL    = "https://gmgn.ai"
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second
	DefaultUserAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Client errors.
var (
	// ErrUnauthorized is returned when the upstream rejects the bearer credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrEmptyNonce is returned when the nonce endpoint answers without a nonce.
	ErrEmptyNonce = errors.New("empty login nonce")

	// ErrNoAccessToken is returned when login succeeds without a token.
	ErrNoAccessToken = errors.New("login returned no access token")
)

// APIError is a non-zero business code in the upstream response envelope.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gmgn error %d: %s", e.Code, e.Msg)
}

// IsUnauthorized reports whether err is an authorization failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// Client calls the upstream REST API.
type Client struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
	limiter    *rate.Limiter
	userAgent  string
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for transport failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the back-off bounds between retries.
func WithRetryDelay(minDelay, maxDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = minDelay
		c.maxDelay = maxDelay
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithRateLimit caps outgoing requests per second. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new upstream REST client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the common upstream response wrapper.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// request describes one upstream call.
type request struct {
	name   string // endpoint label for metrics
	method string
	path   string
	query  url.Values
	token  string // bearer credential, empty for public endpoints
	body   interface{}
}

// do performs a request with rate limiting and retries on transport failures,
// 429 and 5xx. Authorization and business errors are returned immediately.
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	var payload []byte
	if req.body != nil {
		var err error
		payload, err = json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	b := &backoff.Backoff{Min: c.retryDelay, Max: c.maxDelay, Factor: 2, Jitter: true}
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.Duration()):
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("User-Agent", c.userAgent)
		if req.token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+req.token)
		}

		start := time.Now()
		resp, err := c.client.Do(httpReq)
		if err != nil {
			observability.RecordUpstreamRequest(req.name, "transport_error", time.Since(start).Seconds())
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		observability.RecordUpstreamRequest(req.name, http.StatusText(resp.StatusCode), time.Since(start).Seconds())
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%s: %w (status %d)", req.name, ErrUnauthorized, resp.StatusCode)
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		case resp.StatusCode >= http.StatusInternalServerError:
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(respBody))
			continue
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("%s: unexpected status %d: %s", req.name, resp.StatusCode, truncate(respBody))
		}

		var env envelope
		if err := json.Unmarshal(respBody, &env); err != nil {
			return fmt.Errorf("%s: decode response: %w", req.name, err)
		}
		if env.Code != 0 {
			return &APIError{Code: env.Code, Msg: env.Msg}
		}

		if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
			if err := json.Unmarshal(env.Data, out); err != nil {
				return fmt.Errorf("%s: decode data: %w", req.name, err)
			}
		}
		return nil
	}

	return fmt.Errorf("%s: max retries exceeded: %w", req.name, lastErr)
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
