// Package transport implements a polite HTTP fetcher: per-domain throttling,
// conditional requests and retry with exponential backoff.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
)

const (
	DefaultUserAgent  = "newspipe/1.0 (+https://github.com/x18815379395-wq/global-news-market-app)"
	DefaultMinDelay   = 1500 * time.Millisecond
	DefaultBaseDelay  = time.Second
	DefaultMaxBackoff = 60 * time.Second
	DefaultTimeout    = 15 * time.Second

	// jitterFactor spreads each backoff delay by up to ±20%.
	jitterFactor = 0.2

	maxBodyBytes = 8 << 20
)

var (
	// ErrDisallowed is returned when robots.txt forbids the request.
	ErrDisallowed = errors.New("disallowed by robots.txt")
	// ErrStatus is wrapped by every StatusError.
	ErrStatus = errors.New("unexpected http status")
)

// StatusError reports a response with status >= 400.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Options configures a Client. Zero UserAgent, BaseDelay, MaxBackoff and
// Timeout take the package defaults. MinDelay and MaxRetries are used as
// given: zero disables throttling or retries, negative values count as zero.
type Options struct {
	UserAgent     string
	Accept        string
	MinDelay      time.Duration
	BaseDelay     time.Duration
	MaxBackoff    time.Duration
	Timeout       time.Duration
	MaxRetries    int
	RespectRobots bool
	HTTPClient    *http.Client
	// Throttle is shared between clients hitting the same hosts. Nil gives
	// the client a private one.
	Throttle *Throttle
	Logger   logrus.FieldLogger
}

// Response is a successful (2xx/3xx other than 304) fetch.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

type validators struct {
	etag         string
	lastModified string
}

// Client is safe for concurrent use.
type Client struct {
	opts Options
	http *http.Client
	log  logrus.FieldLogger

	throttle *Throttle

	mu         sync.Mutex
	validators map[string]validators

	robots robotsCache

	jitterFactor float64
}

func New(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MinDelay < 0 {
		opts.MinDelay = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	th := opts.Throttle
	if th == nil {
		th = NewThrottle()
	}
	return &Client{
		opts:         opts,
		http:         hc,
		log:          log,
		throttle:     th,
		validators:   make(map[string]validators),
		robots:       robotsCache{entries: make(map[string]*robotsEntry)},
		jitterFactor: jitterFactor,
	}
}

// RequestOption customizes a single request.
type RequestOption func(*http.Request)

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// Fetch retrieves rawURL. A 304 Not Modified yields (nil, nil). Failures,
// including any status >= 400, are retried with exponential backoff; the
// last error is returned once MaxRetries retries are exhausted.
func (c *Client) Fetch(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	if c.opts.RespectRobots {
		allowed, err := c.allowed(ctx, u)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
	}

	attempt := 0
	resp, err := backoff.Retry(ctx, func() (*Response, error) {
		attempt++
		if err := c.throttle.Wait(ctx, u.Host, c.opts.MinDelay); err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := c.do(ctx, rawURL, opts)
		if err != nil && !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	},
		backoff.WithBackOff(c.backoff()),
		backoff.WithMaxTries(uint(c.opts.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, delay time.Duration) {
			c.log.WithFields(logrus.Fields{
				"url":      rawURL,
				"attempt":  attempt,
				"delay_ms": delay.Milliseconds(),
				"error":    err,
			}).Debug("request failed, backing off")
		}),
	)
	if err != nil {
		c.log.WithFields(logrus.Fields{"url": rawURL, "attempts": attempt, "error": err}).Warn("giving up on request")
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, rawURL string, opts []RequestOption) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if c.opts.Accept != "" {
		req.Header.Set("Accept", c.opts.Accept)
	}

	c.mu.Lock()
	v := c.validators[rawURL]
	c.mu.Unlock()
	if v.etag != "" {
		req.Header.Set("If-None-Match", v.etag)
	}
	if v.lastModified != "" {
		req.Header.Set("If-Modified-Since", v.lastModified)
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}

	etag, lastMod := resp.Header.Get("ETag"), resp.Header.Get("Last-Modified")
	if etag != "" || lastMod != "" {
		c.mu.Lock()
		c.validators[rawURL] = validators{etag: etag, lastModified: lastMod}
		c.mu.Unlock()
	}

	return &Response{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// backoff doubles from BaseDelay up to MaxBackoff with ±jitterFactor spread.
func (c *Client) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.BaseDelay
	b.MaxInterval = c.opts.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = c.jitterFactor
	return b
}

// retryable treats every transport error and every status >= 400 as a
// failure worth retrying. Cancellation is final.
func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
