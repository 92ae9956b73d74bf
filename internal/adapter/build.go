package adapter

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/x18815379395-wq/global-news-market-app/internal/config"
	"github.com/x18815379395-wq/global-news-market-app/internal/news"
	"github.com/x18815379395-wq/global-news-market-app/internal/ratelimit"
	"github.com/x18815379395-wq/global-news-market-app/internal/transport"
)

const (
	YahooWindow = time.Hour

	feedMinDelay  = transport.DefaultMinDelay
	queryMinDelay = time.Second
)

// Deps are the shared collaborators handed to every adapter.
type Deps struct {
	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter
	// Timeline, when set, serves every social source instead of the
	// url_template scraper.
	Timeline TimelineFetcher
	// Throttle spaces requests per host across every adapter. Build
	// creates one when nil.
	Throttle *transport.Throttle
	Logger   logrus.FieldLogger
}

// Build constructs the registry from configuration. Disabled and
// duplicate entries are logged and skipped.
func Build(cfg *config.Config, deps Deps) *Registry {
	log := discardLogger(deps.Logger)
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.New()
	}
	if deps.Throttle == nil {
		deps.Throttle = transport.NewThrottle()
	}
	reg := NewRegistry()
	add := func(a Adapter) {
		if err := reg.Register(a); err != nil {
			log.WithError(err).Warn("skipping adapter")
		}
	}

	for _, e := range cfg.GoogleNews.Entries {
		q := e.Value
		if !q.On() {
			continue
		}
		qc := QueryConfig{
			Name:    q.DisplayName,
			Queries: q.Queries,
			HL:      q.HL,
			GL:      q.GL,
			CEID:    q.CEID,
			Params:  q.QueryParams,
			Topics:  q.Topics,
			Limit:   q.Limit,
		}
		if q.Market != "" {
			qc.Market, _ = news.ParseMarket(q.Market)
		}
		if qc.Name == "" {
			qc.Name = "GoogleNews-" + e.Name
		}
		add(NewQueryFeedAdapter(qc, client(cfg, deps, q.UserAgent, q.MinDelay, queryMinDelay, ""), log))
	}

	if ns := cfg.NewsService; ns.On() {
		if ns.APIKey == "" {
			log.Info("news service adapter disabled (missing API key)")
		} else {
			add(NewNewsServiceAdapter(newsServiceConfig(ns), client(cfg, deps, "", nil, 0, "application/json"), deps.Limiter, log))
		}
	}

	for _, e := range cfg.RSSFeeds.Entries {
		if !e.Value.On() {
			continue
		}
		add(NewFeedAdapter(feedConfig(e.Name, e.Value, 0, ""), client(cfg, deps, e.Value.UserAgent, e.Value.MinDelay, feedMinDelay, ""), log))
	}

	for _, e := range cfg.YahooFinance.Entries {
		if !e.Value.On() {
			continue
		}
		add(NewFeedAdapter(feedConfig(e.Name, e.Value, YahooWindow, "yahoo-finance"), client(cfg, deps, e.Value.UserAgent, e.Value.MinDelay, feedMinDelay, ""), log))
	}

	for _, e := range cfg.SocialMedia.Entries {
		s := e.Value
		if !s.On() {
			continue
		}
		platform := s.Platform
		if platform == "" {
			platform = e.Name
		}
		market, _ := news.ParseMarket(s.Market)
		timeline := deps.Timeline
		if timeline == nil && s.URLTemplate != "" {
			sel := TimelineSelectors{Item: s.Selectors.Item, Link: s.Selectors.Link, Text: s.Selectors.Text, Time: s.Selectors.Time}
			ht, err := NewHTMLTimeline(s.URLTemplate, sel, client(cfg, deps, "", nil, feedMinDelay, "text/html"))
			if err != nil {
				log.WithError(err).WithField("source", e.Name).Warn("timeline disabled")
			} else {
				timeline = ht
			}
		}
		add(NewSocialAdapter(SocialConfig{Platform: platform, Handle: s.Handle, Limit: s.Limit, Market: market}, timeline, log))
	}

	if reg.Len() == 0 {
		log.Warn("no adapters configured for news pipeline")
	}
	return reg
}

func feedConfig(name string, f config.FeedSource, window time.Duration, provider string) FeedConfig {
	fc := FeedConfig{
		Name:     f.DisplayName,
		Feeds:    f.Feeds,
		Topics:   f.Topics,
		Limit:    f.Limit,
		Window:   f.Window.D(),
		Provider: provider,
	}
	if fc.Name == "" {
		fc.Name = name
	}
	if fc.Window <= 0 {
		fc.Window = window
	}
	fc.Market, _ = news.ParseMarket(f.Market)
	return fc
}

func newsServiceConfig(ns config.NewsServiceSource) NewsServiceConfig {
	sources := make(map[news.Market]string, len(DefaultNewsSources))
	for m, s := range DefaultNewsSources {
		sources[m] = s
	}
	for k, s := range ns.SourcesByMarket {
		if m, ok := news.ParseMarket(k); ok {
			sources[m] = s
		}
	}
	def := ns.DefaultSources
	if def == "" {
		def = DefaultNewsSources[news.MarketGlobal]
	}
	return NewsServiceConfig{
		Name:            ns.Name,
		Endpoint:        ns.Endpoint,
		APIKey:          ns.APIKey,
		SourcesByMarket: sources,
		DefaultSources:  def,
		RateLimit:       ns.RateLimit.D(),
		PageSize:        ns.PageSize,
		Pages:           ns.Pages,
		LookbackDays:    ns.LookbackDays,
		Language:        ns.Language,
	}
}

// client builds a transport client for one adapter. A per-source
// min_delay wins over the global one, which wins over fallback.
func client(cfg *config.Config, deps Deps, userAgent string, minDelay *config.Duration, fallback time.Duration, accept string) *transport.Client {
	t := cfg.Transport
	opts := transport.Options{
		UserAgent:     t.UserAgent,
		Accept:        accept,
		MinDelay:      fallback,
		BaseDelay:     t.BaseDelay.D(),
		MaxBackoff:    t.MaxBackoff.D(),
		Timeout:       t.Timeout.D(),
		MaxRetries:    t.MaxRetries,
		RespectRobots: t.RespectRobots,
		HTTPClient:    deps.HTTPClient,
		Throttle:      deps.Throttle,
		Logger:        deps.Logger,
	}
	if t.MinDelay > 0 {
		opts.MinDelay = t.MinDelay.D()
	}
	if minDelay != nil {
		opts.MinDelay = minDelay.D()
	}
	if userAgent != "" {
		opts.UserAgent = userAgent
	}
	return transport.New(opts)
}
