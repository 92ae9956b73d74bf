package adapter

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/x18815379395-wq/global-news-market-app/internal/feed"
	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

const (
	DefaultFeedLimit  = 15
	DefaultQueryLimit = 18

	GoogleNewsBaseURL = "https://news.google.com/rss/search"
)

// FeedConfig describes a set of feed URLs bound to one market.
type FeedConfig struct {
	Name     string
	Feeds    []string
	Market   news.Market
	Topics   []string
	Limit    int
	Window   time.Duration
	Provider string
}

// FeedAdapter polls RSS/Atom feeds for a single market. With a Window set,
// entries older than now-Window or without a timestamp are dropped.
type FeedAdapter struct {
	cfg     FeedConfig
	fetcher Fetcher
	log     logrus.FieldLogger
}

func NewFeedAdapter(cfg FeedConfig, fetcher Fetcher, log logrus.FieldLogger) *FeedAdapter {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultFeedLimit
	}
	if cfg.Market == "" {
		cfg.Market = news.MarketGlobal
	}
	return &FeedAdapter{cfg: cfg, fetcher: fetcher, log: discardLogger(log).WithField("adapter", cfg.Name)}
}

func (a *FeedAdapter) Name() string { return a.cfg.Name }

func (a *FeedAdapter) Market() (news.Market, bool) { return a.cfg.Market, true }

func (a *FeedAdapter) Fetch(ctx context.Context, c news.Criteria, now time.Time) ([]news.Item, news.Health) {
	if !c.IncludeFinancial || !c.Wants(a.cfg.Market) {
		return nil, news.Skipped(a.cfg.Name)
	}

	start := time.Now()
	var (
		collected []news.Item
		lastErr   error
	)
	for _, feedURL := range a.cfg.Feeds {
		entries, err := fetchEntries(ctx, a.fetcher, feedURL, a.cfg.Name, a.cfg.Topics)
		if err != nil {
			lastErr = err
			a.log.WithFields(logrus.Fields{"url": feedURL, "error": err}).Warn("feed fetch failed")
			continue
		}
		if a.cfg.Window > 0 {
			entries = within(entries, now.Add(-a.cfg.Window))
		}
		if len(entries) > a.cfg.Limit {
			entries = entries[:a.cfg.Limit]
		}
		for _, e := range entries {
			it := entryItem(e, a.cfg.Market)
			if a.cfg.Provider != "" {
				it.Metadata = map[string]string{"provider": a.cfg.Provider, "feed_url": feedURL}
			}
			collected = append(collected, it)
		}
	}
	return collected, report(a.cfg.Name, collected, lastErr, start, now)
}

// QueryConfig describes search-style feeds built from queries.
type QueryConfig struct {
	Name    string
	Queries []string
	// Market is optional; without one the adapter is dispatched for every
	// query and tags its items global.
	Market  news.Market
	BaseURL string
	HL      string
	GL      string
	CEID    string
	Params  map[string]string
	Topics  []string
	Limit   int
}

// QueryFeedAdapter builds one feed URL per search query.
type QueryFeedAdapter struct {
	cfg     QueryConfig
	fetcher Fetcher
	log     logrus.FieldLogger
}

func NewQueryFeedAdapter(cfg QueryConfig, fetcher Fetcher, log logrus.FieldLogger) *QueryFeedAdapter {
	queries := make([]string, 0, len(cfg.Queries))
	for _, q := range cfg.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	cfg.Queries = queries
	if cfg.BaseURL == "" {
		cfg.BaseURL = GoogleNewsBaseURL
	}
	if cfg.HL == "" {
		cfg.HL = "en-US"
	}
	if cfg.GL == "" {
		cfg.GL = "US"
	}
	if cfg.CEID == "" {
		cfg.CEID = "US:en"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultQueryLimit
	}
	if cfg.Name == "" {
		m := cfg.Market
		if m == "" {
			m = news.MarketGlobal
		}
		cfg.Name = "GoogleNews-" + string(m)
	}
	return &QueryFeedAdapter{cfg: cfg, fetcher: fetcher, log: discardLogger(log).WithField("adapter", cfg.Name)}
}

func (a *QueryFeedAdapter) Name() string { return a.cfg.Name }

func (a *QueryFeedAdapter) Market() (news.Market, bool) {
	return a.cfg.Market, a.cfg.Market != ""
}

// FeedURL returns the feed address for query.
func (a *QueryFeedAdapter) FeedURL(query string) string {
	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", a.cfg.HL)
	params.Set("gl", a.cfg.GL)
	params.Set("ceid", a.cfg.CEID)
	for k, v := range a.cfg.Params {
		params.Set(k, v)
	}
	return a.cfg.BaseURL + "?" + params.Encode()
}

func (a *QueryFeedAdapter) Fetch(ctx context.Context, c news.Criteria, now time.Time) ([]news.Item, news.Health) {
	if !c.IncludeFinancial {
		return nil, news.Skipped(a.cfg.Name)
	}
	market := a.cfg.Market
	if market != "" && !c.Wants(market) {
		return nil, news.Skipped(a.cfg.Name)
	}
	if market == "" {
		market = news.MarketGlobal
	}

	start := time.Now()
	var (
		collected []news.Item
		lastErr   error
	)
	for _, q := range a.cfg.Queries {
		feedURL := a.FeedURL(q)
		entries, err := fetchEntries(ctx, a.fetcher, feedURL, a.cfg.Name, a.cfg.Topics)
		if err != nil {
			lastErr = err
			a.log.WithFields(logrus.Fields{"query": q, "error": err}).Warn("query feed fetch failed")
			continue
		}
		if len(entries) > a.cfg.Limit {
			entries = entries[:a.cfg.Limit]
		}
		for _, e := range entries {
			it := entryItem(e, market)
			it.Metadata = map[string]string{"provider": "google-news", "query": q}
			collected = append(collected, it)
		}
	}
	return collected, report(a.cfg.Name, collected, lastErr, start, now)
}

func fetchEntries(ctx context.Context, f Fetcher, feedURL, source string, topics []string) ([]feed.Entry, error) {
	resp, err := f.Fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return feed.Parse(resp.Body, source, topics)
}

func within(entries []feed.Entry, cutoff time.Time) []feed.Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.Published != nil && e.Published.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

func entryItem(e feed.Entry, m news.Market) news.Item {
	return news.Item{
		Title:       e.Title,
		Description: e.Summary,
		URL:         e.URL,
		Source:      e.Source,
		ContentType: news.FinancialNews,
		Market:      m,
		PublishedAt: e.Published,
		Topics:      e.Topics,
	}
}
