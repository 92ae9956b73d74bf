// Package adapter implements the source adapters that turn upstream feeds,
// news APIs and social timelines into news items.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/x18815379395-wq/global-news-market-app/internal/news"
	"github.com/x18815379395-wq/global-news-market-app/internal/transport"
)

var (
	ErrMissingAPIKey       = errors.New("news service API key missing")
	ErrTimelineUnavailable = errors.New("timeline fetcher unavailable")
	ErrDuplicateAdapter    = errors.New("adapter already registered")
)

// Adapter is the uniform fetch contract. Fetch never fails past this
// boundary: problems are reported through the returned Health.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, c news.Criteria, now time.Time) ([]news.Item, news.Health)
}

// Scoped is implemented by adapters bound to a single market. Adapters that
// do not implement it, or report ok=false, are dispatched for every query.
type Scoped interface {
	Market() (m news.Market, ok bool)
}

// Fetcher is the transport used by adapters. A nil response with a nil
// error means the upstream had nothing new.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts ...transport.RequestOption) (*transport.Response, error)
}

// Relevant reports whether a should be dispatched for markets.
func Relevant(a Adapter, markets []news.Market) bool {
	s, ok := a.(Scoped)
	if !ok {
		return true
	}
	m, scoped := s.Market()
	if !scoped {
		return true
	}
	for _, want := range markets {
		if want == m {
			return true
		}
	}
	return false
}

// report builds the health of one fetch: healthy when anything was
// collected or nothing went wrong.
func report(name string, items []news.Item, lastErr error, start, now time.Time) news.Health {
	h := news.Health{
		Name:           name,
		Healthy:        len(items) > 0 || lastErr == nil,
		ItemsLastFetch: len(items),
		LatencyMS:      news.Float(float64(time.Since(start).Microseconds()) / 1000),
	}
	if lastErr != nil {
		h.LastError = lastErr.Error()
	}
	if h.Healthy {
		h.LastSuccess = news.Time(now)
	}
	return h
}

func discardLogger(log logrus.FieldLogger) logrus.FieldLogger {
	if log != nil {
		return log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Registry holds the configured adapters in registration order.
type Registry struct {
	adapters []Adapter
	names    map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{names: make(map[string]bool)}
}

// Register adds a, rejecting a second adapter with the same name.
func (r *Registry) Register(a Adapter) error {
	name := a.Name()
	if r.names[name] {
		return fmt.Errorf("%s: %w", name, ErrDuplicateAdapter)
	}
	r.names[name] = true
	r.adapters = append(r.adapters, a)
	return nil
}

// Adapters returns a copy of the registered adapters.
func (r *Registry) Adapters() []Adapter {
	return append([]Adapter(nil), r.adapters...)
}

func (r *Registry) Len() int { return len(r.adapters) }

// Names lists adapter names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.adapters))
	for i, a := range r.adapters {
		out[i] = a.Name()
	}
	return out
}
