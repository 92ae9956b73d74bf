package transport

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

type robotsEntry struct {
	once sync.Once
	data *robotstxt.RobotsData
}

type robotsCache struct {
	mu      sync.Mutex
	entries map[string]*robotsEntry
}

func (rc *robotsCache) entry(host string) *robotsEntry {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	e, ok := rc.entries[host]
	if !ok {
		e = &robotsEntry{}
		rc.entries[host] = e
	}
	return e
}

// allowed consults robots.txt for u's host, fetched once per host.
// An unreachable robots.txt allows everything.
func (c *Client) allowed(ctx context.Context, u *url.URL) (bool, error) {
	e := c.robots.entry(u.Host)
	e.once.Do(func() {
		e.data = c.fetchRobots(ctx, u)
	})
	if e.data == nil {
		return true, nil
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return e.data.TestAgent(path, c.opts.UserAgent), nil
}

func (c *Client) fetchRobots(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithField("url", robotsURL).WithError(err).Debug("robots.txt unavailable")
		return nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data
}
