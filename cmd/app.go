package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/x18815379395-wq/global-news-market-app/internal/adapter"
	"github.com/x18815379395-wq/global-news-market-app/internal/cache"
	"github.com/x18815379395-wq/global-news-market-app/internal/config"
	"github.com/x18815379395-wq/global-news-market-app/internal/logging"
	"github.com/x18815379395-wq/global-news-market-app/internal/metrics"
	"github.com/x18815379395-wq/global-news-market-app/internal/news"
	"github.com/x18815379395-wq/global-news-market-app/internal/pipeline"
	"github.com/x18815379395-wq/global-news-market-app/internal/relevance"
	"github.com/x18815379395-wq/global-news-market-app/internal/scheduler"
	"github.com/x18815379395-wq/global-news-market-app/internal/sentiment"
	"github.com/x18815379395-wq/global-news-market-app/internal/status"
	"github.com/x18815379395-wq/global-news-market-app/internal/store"
	"github.com/x18815379395-wq/global-news-market-app/internal/transport"
)

// app holds everything a command needs for one process lifetime.
type app struct {
	cfg       *config.Config
	log       *logrus.Logger
	cache     *cache.Cache
	scheduler *scheduler.Scheduler
	archive   *store.Archive
	metrics   *metrics.Recorder
	registry  *prometheus.Registry
	pipeline  *pipeline.Pipeline

	closers []func() error
}

func newApp() (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level, format := cfg.Logging.Level, cfg.Logging.Format
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	if flagLogFormat != "" {
		format = flagLogFormat
	}
	log := logging.New(level, format, os.Stderr)
	for _, w := range cfg.Warnings {
		log.WithField("config", flagConfig).Warn(w)
	}

	a := &app{cfg: cfg, log: log}

	var st cache.Store
	if cfg.Cache.RedisURL != "" {
		rs, err := cache.NewRedisStoreFromURL(cfg.Cache.RedisURL, cfg.Cache.RedisKey)
		if err != nil {
			return nil, fmt.Errorf("connecting cache store: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		st = rs
	} else if cfg.Cache.Path != "" {
		st = cache.NewFileStore(cfg.Cache.Path)
	}
	a.cache, err = cache.New(st, cache.Options{
		TTL:              cfg.Cache.TTL.D(),
		MaxEntries:       cfg.Cache.MaxEntries,
		MaxMemoryEntries: cfg.Cache.MaxMemoryEntries,
		Logger:           log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	defaults := scheduler.Defaults{
		BaseInterval: cfg.Scheduler.BaseInterval.D(),
		MinInterval:  cfg.Scheduler.MinInterval.D(),
		MaxInterval:  cfg.Scheduler.MaxInterval.D(),
	}
	a.scheduler = scheduler.New(defaults, scheduler.WithLogger(log))

	if cfg.Archive.Enabled && cfg.Archive.Path != "" {
		a.archive, err = store.Open(cfg.Archive.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening archive: %w", err)
		}
		a.closers = append(a.closers, a.archive.Close)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	adapters := adapter.Build(cfg, adapter.Deps{Logger: log, Throttle: transport.NewThrottle()})

	var lex sentiment.Lexicon
	if cfg.Sentiment.Enabled {
		lex = sentiment.NewVader()
	}

	opts := pipeline.Options{
		Cache:        a.cache,
		Scheduler:    a.scheduler,
		Scorer:       newScorer(cfg.Settings),
		Sentiment:    sentiment.NewAnalyzer(lex, log),
		Metrics:      a.metrics,
		Logger:       log,
		DefaultLimit: cfg.Settings.Limit,
		Criteria:     cfg.Settings.Criteria,
	}
	if a.archive != nil {
		opts.Archive = a.archive
	}
	a.pipeline = pipeline.New(adapters, opts)

	// Only sources the default markets dispatch to are scheduled; others
	// would never be fetched by watch and so stay due forever.
	for _, name := range a.pipeline.AdaptersFor(cfg.Settings.Markets()) {
		d := defaults
		d.Priority = cfg.Scheduler.Priorities[name]
		a.scheduler.Register(name, d)
	}
	return a, nil
}

func newScorer(s config.Settings) *relevance.Scorer {
	var opts []relevance.Option
	if s.RelevanceThreshold > 0 {
		opts = append(opts, relevance.WithThreshold(s.RelevanceThreshold))
	}
	for token, kws := range s.Keywords {
		if m, ok := news.ParseMarket(token); ok {
			opts = append(opts, relevance.WithKeywords(m, kws))
		}
	}
	return relevance.NewScorer(opts...)
}

func (a *app) statusReport(ctx context.Context) status.Report {
	return status.Build(ctx, status.Inputs{
		Pipeline:       a.pipeline,
		Cache:          a.cache,
		Scheduler:      a.scheduler,
		DefaultMarkets: a.cfg.Settings.Markets(),
		DefaultLimit:   a.cfg.Settings.Limit,
	})
}

// Close releases stores in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("closing resource")
		}
	}
	a.closers = nil
}
