// Package retry wraps upstream HTTP calls with timeouts, exponential backoff
// and rotation across CORS relay services.
package retry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cosmofolio/go-cosmofolio/service/logger"
)

const (
	// DefaultMaxRetries yields MaxRetries+1 total attempts in relayed mode.
	DefaultMaxRetries = 3
	// DefaultTimeout bounds every individual attempt.
	DefaultTimeout = 10 * time.Second

	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 8 * time.Second

	defaultHostRPS   = 10
	defaultHostBurst = 20
)

// ErrOutOfRetries is returned once every relayed attempt has failed.
var ErrOutOfRetries = errors.New("out of retries")

// RelayEncoding selects how a relay expects the target URL to be embedded.
type RelayEncoding int

const (
	// EncodeRaw appends the target URL directly to the relay base.
	EncodeRaw RelayEncoding = iota
	// EncodeQueryEscape percent-encodes the target URL into the relay base.
	EncodeQueryEscape
)

// Relay describes one CORS relay service.
type Relay struct {
	BaseURL  string
	Encoding RelayEncoding
}

// WrapURL builds the relayed URL for target per the relay's convention.
func (r Relay) WrapURL(target string) string {
	if r.Encoding == EncodeQueryEscape {
		return r.BaseURL + url.QueryEscape(target)
	}
	return r.BaseURL + target
}

// DefaultRelays is the ordered relay rotation used in relayed mode.
var DefaultRelays = []Relay{
	{BaseURL: "https://corsproxy.io/?url=", Encoding: EncodeQueryEscape},
	{BaseURL: "https://api.allorigins.win/raw?url=", Encoding: EncodeQueryEscape},
	{BaseURL: "https://api.codetabs.com/v1/proxy?quest=", Encoding: EncodeRaw},
	{BaseURL: "https://thingproxy.freeboard.io/fetch/", Encoding: EncodeRaw},
}

// Retryer performs HTTP requests with per-host rate limiting. Direct requests
// get a single attempt; relayed requests rotate through relays with backoff.
type Retryer struct {
	client     *http.Client
	relays     []Relay
	maxRetries int
	timeout    time.Duration
	minBackoff time.Duration
	maxBackoff time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option configures a Retryer.
type Option func(*Retryer)

// WithRelays overrides the relay rotation.
func WithRelays(relays []Relay) Option {
	return func(r *Retryer) { r.relays = relays }
}

// WithMaxRetries overrides the relayed-mode retry budget.
func WithMaxRetries(n int) Option {
	return func(r *Retryer) { r.maxRetries = n }
}

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Retryer) { r.timeout = d }
}

// WithBackoff overrides the backoff bounds.
func WithBackoff(min, max time.Duration) Option {
	return func(r *Retryer) { r.minBackoff, r.maxBackoff = min, max }
}

// New creates a Retryer around httpClient.
func New(httpClient *http.Client, opts ...Option) *Retryer {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	r := &Retryer{
		client:     httpClient,
		relays:     DefaultRelays,
		maxRetries: DefaultMaxRetries,
		timeout:    DefaultTimeout,
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
		limiters:   map[string]*rate.Limiter{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do performs a single direct attempt with the per-attempt timeout. Timeouts
// and network errors propagate immediately.
func (r *Retryer) Do(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), r.timeout)
	resp, err := r.do(ctx, req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	// cancel once the body is drained, not before
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// RequestSpec is a replayable request for relayed mode.
type RequestSpec struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// DoRelayed attempts spec up to MaxRetries+1 times, routing attempt i through
// relays[i%len(relays)]. HTTP 408/429/5xx and transport errors are retried
// after an exponential backoff; any other non-OK response is returned as-is
// for the caller to interpret.
func (r *Retryer) DoRelayed(ctx context.Context, spec RequestSpec) (*http.Response, error) {
	if len(r.relays) == 0 {
		return nil, errors.New("no relays configured")
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, r.backoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		relay := r.relays[attempt%len(r.relays)]
		relayed := relay.WrapURL(spec.URL)

		req, err := newRequest(ctx, spec, relayed)
		if err != nil {
			return nil, err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		resp, err := r.do(attemptCtx, req.WithContext(attemptCtx))
		if err != nil {
			cancel()
			lastErr = err
			logger.For(ctx).WithError(err).Warnf("relayed fetch attempt %d via %s failed", attempt+1, relay.BaseURL)
			continue
		}

		if retryableStatus(resp.StatusCode) {
			lastErr = ErrHTTPStatus{URL: relayed, Status: resp.StatusCode}
			resp.Body.Close()
			cancel()
			logger.For(ctx).Warnf("relayed fetch attempt %d via %s returned %d", attempt+1, relay.BaseURL, resp.StatusCode)
			continue
		}

		resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrOutOfRetries, lastErr)
}

// ErrHTTPStatus marks a retryable upstream status.
type ErrHTTPStatus struct {
	URL    string
	Status int
}

func (e ErrHTTPStatus) Error() string {
	return fmt.Sprintf("status %d from %s", e.Status, e.URL)
}

func (r *Retryer) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := r.limiterFor(req.URL.Host).Wait(ctx); err != nil {
		return nil, err
	}
	return r.client.Do(req)
}

func (r *Retryer) limiterFor(host string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(defaultHostRPS), defaultHostBurst)
		r.limiters[host] = l
	}
	return l
}

func (r *Retryer) backoff(attempt int) time.Duration {
	d := r.minBackoff * (1 << attempt)
	if d > r.maxBackoff {
		d = r.maxBackoff
	}
	return d
}

func retryableStatus(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func newRequest(ctx context.Context, spec RequestSpec, relayedURL string) (*http.Request, error) {
	var body *bytes.Reader
	if spec.Body != nil {
		body = bytes.NewReader(spec.Body)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, spec.Method, relayedURL, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range spec.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	c.cancel()
	return c.ReadCloser.Close()
}
