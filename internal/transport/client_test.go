package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
	return nil
}

// newTestThrottle never sleeps, has no jitter and reads time from *now.
func newTestThrottle(now *time.Time) (*Throttle, *sleepRecorder) {
	th := NewThrottle()
	rec := &sleepRecorder{}
	th.sleep = rec.sleep
	th.jitter = func(time.Duration) time.Duration { return 0 }
	if now != nil {
		th.now = func() time.Time { return *now }
	}
	return th, rec
}

// newTestClient logs at debug level into a hook and backs off without jitter.
func newTestClient(opts Options) (*Client, *logtest.Hook) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	opts.Logger = log
	if opts.Throttle == nil {
		opts.Throttle, _ = newTestThrottle(nil)
	}
	c := New(opts)
	c.jitterFactor = 0
	return c, hook
}

// backoffDelays returns the delays logged before each retry.
func backoffDelays(hook *logtest.Hook) []int64 {
	var out []int64
	for _, e := range hook.AllEntries() {
		if e.Message == "request failed, backing off" {
			out = append(out, e.Data["delay_ms"].(int64))
		}
	}
	return out
}

func TestFetchConditionalRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c, _ := newTestClient(Options{MinDelay: 0})

	resp, err := c.Fetch(context.Background(), srv.URL+"/feed")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "hello", string(resp.Body))

	resp, err = c.Fetch(context.Background(), srv.URL+"/feed")
	require.NoError(t, err)
	assert.Nil(t, resp, "304 must yield no response and no error")
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, hook := newTestClient(Options{MaxRetries: 3, BaseDelay: time.Millisecond, MaxBackoff: 3 * time.Millisecond})

	resp, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
	assert.Equal(t, []int64{1, 2}, backoffDelays(hook))
}

func TestFetchBackoffIsCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, hook := newTestClient(Options{MaxRetries: 4, BaseDelay: time.Millisecond, MaxBackoff: 3 * time.Millisecond})

	resp, err := c.Fetch(context.Background(), srv.URL)
	assert.Nil(t, resp)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Equal(t, []int64{1, 2, 3, 3}, backoffDelays(hook))

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "giving up on request", last.Message)
	assert.Equal(t, 5, last.Data["attempts"])
}

func TestFetchClientErrorRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := newTestClient(Options{MaxRetries: 2, BaseDelay: time.Millisecond, MaxBackoff: time.Millisecond})

	_, err := c.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrStatus)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits), "every status >= 400 is retried")
}

func TestFetchZeroRetriesTriesOnce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, hook := newTestClient(Options{MaxRetries: 0})

	_, err := c.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrStatus)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
	assert.Empty(t, backoffDelays(hook))
}

func TestFetchCancelledContextNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c, _ := newTestClient(Options{MaxRetries: 3})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, atomic.LoadInt32(&hits))
}

func TestDefaultsApplied(t *testing.T) {
	c := New(Options{MinDelay: -time.Second, MaxRetries: -1})
	assert.Equal(t, DefaultUserAgent, c.opts.UserAgent)
	assert.Equal(t, DefaultBaseDelay, c.opts.BaseDelay)
	assert.Equal(t, DefaultMaxBackoff, c.opts.MaxBackoff)
	assert.Equal(t, DefaultTimeout, c.opts.Timeout)
	assert.Zero(t, c.opts.MinDelay)
	assert.Zero(t, c.opts.MaxRetries)
	assert.NotNil(t, c.throttle)
}

func TestThrottlePerDomain(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	th, rec := newTestThrottle(&now)

	ctx := context.Background()
	require.NoError(t, th.Wait(ctx, "a.example", 2*time.Second))
	require.NoError(t, th.Wait(ctx, "a.example", 2*time.Second))
	require.NoError(t, th.Wait(ctx, "b.example", 2*time.Second))
	require.NoError(t, th.Wait(ctx, "a.example", 2*time.Second))

	// first call per domain is free, later ones queue behind the reserved slot
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rec.calls)
}

func TestThrottleElapsedDelayIsFree(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	th, rec := newTestThrottle(&now)

	require.NoError(t, th.Wait(context.Background(), "a.example", time.Second))
	now = now.Add(5 * time.Second)
	require.NoError(t, th.Wait(context.Background(), "a.example", time.Second))
	assert.Empty(t, rec.calls)
}

func TestThrottleSharedAcrossClients(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	th, rec := newTestThrottle(&now)
	feeds, _ := newTestClient(Options{MinDelay: 2 * time.Second, Throttle: th})
	queries, _ := newTestClient(Options{MinDelay: time.Second, Throttle: th})

	_, err := feeds.Fetch(context.Background(), srv.URL+"/rss")
	require.NoError(t, err)
	_, err = queries.Fetch(context.Background(), srv.URL+"/search")
	require.NoError(t, err)
	_, err = feeds.Fetch(context.Background(), srv.URL+"/rss")
	require.NoError(t, err)

	// the second client queues behind the first one's slot on the same host
	assert.Equal(t, []time.Duration{2 * time.Second, 3 * time.Second}, rec.calls)
}

func TestRobotsDisallow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("public"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := newTestClient(Options{RespectRobots: true})

	_, err := c.Fetch(context.Background(), srv.URL+"/private/page")
	assert.ErrorIs(t, err, ErrDisallowed)

	resp, err := c.Fetch(context.Background(), srv.URL+"/public")
	require.NoError(t, err)
	assert.Equal(t, "public", string(resp.Body))
}

func TestFetchInvalidURL(t *testing.T) {
	c, _ := newTestClient(Options{})
	_, err := c.Fetch(context.Background(), "::not a url")
	assert.Error(t, err)
}
