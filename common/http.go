package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrStatus is wrapped by every StatusError so callers can match on it.
var ErrStatus = errors.New("unexpected http status")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.Code, e.Body)
	}
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// MaxBodyBytes caps how much of any response body is read into memory.
const MaxBodyBytes = 20 << 20

// HTTPOptions configures a shared HTTPClient.
type HTTPOptions struct {
	UserAgent string
	// PerHostRPS is the sustained request rate per destination host. Zero disables limiting.
	PerHostRPS   float64
	PerHostBurst int
	// Transport overrides the default transport (tests).
	Transport http.RoundTripper
}

// HTTPClient is the one outbound client of a run. It sets the User-Agent on
// every request and throttles requests per destination host.
type HTTPClient struct {
	client    *http.Client
	userAgent string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewHTTPClient creates a client. Timeouts are applied per call via context.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	burst := opts.PerHostBurst
	if burst <= 0 {
		burst = 1
	}
	rps := rate.Inf
	if opts.PerHostRPS > 0 {
		rps = rate.Limit(opts.PerHostRPS)
	}
	return &HTTPClient{
		client:    &http.Client{Transport: opts.Transport},
		userAgent: opts.UserAgent,
		limiters:  make(map[string]*rate.Limiter),
		rps:       rps,
		burst:     burst,
	}
}

func (c *HTTPClient) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(c.rps, c.burst)
		c.limiters[host] = l
	}
	return l
}

// Wait blocks until the limiter for host admits one request. Queueing time
// is bounded only by ctx, never by a per-request timeout.
func (c *HTTPClient) Wait(ctx context.Context, host string) error {
	if err := c.limiter(host).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", host, err)
	}
	return nil
}

// Do sends req after waiting for the host's rate limiter.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.Wait(req.Context(), req.URL.Host); err != nil {
		return nil, err
	}
	return c.send(req)
}

func (c *HTTPClient) send(req *http.Request) (*http.Response, error) {
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.client.Do(req)
}

// GetBytes fetches rawURL and returns the body and response headers. The
// timeout covers the network exchange only, after the host's limiter has
// admitted the request. A zero timeout means the caller's context alone
// bounds the request.
func (c *HTTPClient) GetBytes(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, http.Header, error) {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if err := c.Wait(ctx, u.Host); err != nil {
		return nil, nil, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resp.Header, &StatusError{URL: rawURL, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, resp.Header, fmt.Errorf("reading body of %s: %w", rawURL, err)
	}
	return body, resp.Header, nil
}

// DoJSON sends payload (if non-nil) as JSON and decodes the response into out
// (if non-nil). Like GetBytes, timeout starts once the limiter admits the
// request.
func (c *HTTPClient) DoJSON(ctx context.Context, method, rawURL string, timeout time.Duration, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if err := c.Wait(ctx, u.Host); err != nil {
		return err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > 512 {
			data = data[:512]
		}
		return &StatusError{URL: rawURL, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
