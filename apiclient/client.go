package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// ErrExhausted wraps the last transport error once every attempt failed.
var ErrExhausted = errors.New("apiclient: attempts exhausted")

type Request struct {
	Method string
	URL    string
	Header http.Header
	Params url.Values
	// SkipLiterals are case-insensitive body phrases marking a permanent
	// business error: a non-200 response containing one is never retried.
	SkipLiterals []string
}

type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

func (r *Response) OK() bool {
	return r != nil && r.StatusCode == http.StatusOK
}

// Contains reports whether the body contains any of the literals, ignoring case.
func (r *Response) Contains(literals ...string) bool {
	if r == nil || len(r.Body) == 0 {
		return false
	}
	body := strings.ToLower(string(r.Body))
	for _, lit := range literals {
		if lit != "" && strings.Contains(body, strings.ToLower(lit)) {
			return true
		}
	}
	return false
}

type Client struct {
	policy  Policy
	http    *http.Client
	limiter *rate.Limiter
	log     logrus.FieldLogger
	sleep   func(context.Context, time.Duration) error

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*Response]
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// WithSleep replaces the backoff wait, mainly so tests can record delays.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

func New(policy Policy, opts ...Option) *Client {
	c := &Client{
		policy:   policy.normalize(),
		http:     &http.Client{},
		log:      logrus.StandardLogger(),
		sleep:    sleepContext,
		breakers: make(map[string]*gobreaker.CircuitBreaker[*Response]),
	}
	if c.policy.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(c.policy.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Policy() Policy { return c.policy }

func (c *Client) Get(ctx context.Context, rawURL string, header http.Header, params url.Values, skip []string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Header: header, Params: params, SkipLiterals: skip})
}

// Do sends req under the retry policy. A non-nil error means no usable
// response was obtained: transport failures on every attempt, an open
// breaker for the host, or ctx cancellation during a backoff wait.
// Non-200 responses are returned without error for the caller to classify.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if !c.policy.BreakerEnabled {
		return c.doWithRetry(ctx, req)
	}

	breaker := c.circuitBreaker(hostOf(req.URL))
	return breaker.Execute(func() (*Response, error) {
		return c.doWithRetry(ctx, req)
	})
}

func (c *Client) doWithRetry(ctx context.Context, req Request) (*Response, error) {
	maxAttempts := c.policy.MaxAttempts
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.send(ctx, req)
		if err != nil {
			lastErr = err
			if attempt == maxAttempts-1 {
				break
			}
			if err := c.backoff(ctx, req, attempt, err); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		if resp.Contains(req.SkipLiterals...) {
			return resp, nil
		}
		if resp.StatusCode == http.StatusInternalServerError && attempt < maxAttempts-1 {
			if err := c.backoff(ctx, req, attempt, fmt.Errorf("status %d", resp.StatusCode)); err != nil {
				return nil, err
			}
			continue
		}
		return resp, nil
	}

	return nil, fmt.Errorf("%w: %s %s after %d attempts: %w", ErrExhausted, req.Method, stripQuery(req.URL), maxAttempts, lastErr)
}

func (c *Client) backoff(ctx context.Context, req Request, attempt int, cause error) error {
	wait := c.policy.Delay(attempt)
	c.log.WithFields(logrus.Fields{
		"url":          stripQuery(req.URL),
		"attempt":      attempt + 1,
		"max_attempts": c.policy.MaxAttempts,
		"backoff_ms":   wait.Milliseconds(),
		"error":        cause,
	}).Warn("retry_attempt")
	return c.sleep(ctx, wait)
}

func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	target, err := buildURL(req.URL, req.Params)
	if err != nil {
		return nil, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.policy.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: mediaType(resp.Header.Get("Content-Type")),
		Body:        body,
	}, nil
}

func (c *Client) circuitBreaker(host string) *gobreaker.CircuitBreaker[*Response] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if breaker, ok := c.breakers[host]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     c.policy.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < c.policy.BreakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= c.policy.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrExhausted)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.log.WithFields(logrus.Fields{"host": name, "from": from.String(), "to": to.String()}).Warn("circuit_breaker_state_change")
		},
	}

	breaker := gobreaker.NewCircuitBreaker[*Response](settings)
	c.breakers[host] = breaker
	return breaker
}

// IsCircuitOpen reports whether err came from an open or saturated breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func buildURL(raw string, params url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}

func stripQuery(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mt
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
