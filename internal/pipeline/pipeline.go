// Package pipeline orchestrates one news query: cache lookup, concurrent
// adapter fan-out, post-processing and write-through caching.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/x18815379395-wq/global-news-market-app/internal/adapter"
	"github.com/x18815379395-wq/global-news-market-app/internal/cache"
	"github.com/x18815379395-wq/global-news-market-app/internal/classify"
	"github.com/x18815379395-wq/global-news-market-app/internal/dedup"
	"github.com/x18815379395-wq/global-news-market-app/internal/metrics"
	"github.com/x18815379395-wq/global-news-market-app/internal/news"
	"github.com/x18815379395-wq/global-news-market-app/internal/relevance"
	"github.com/x18815379395-wq/global-news-market-app/internal/scheduler"
	"github.com/x18815379395-wq/global-news-market-app/internal/sentiment"
)

const DefaultLimit = 20

// Archiver receives every freshly computed item list.
type Archiver interface {
	UpsertItems(items []news.Item) error
}

// Options wires the optional collaborators. Only the registry is required.
type Options struct {
	Cache     *cache.Cache
	Scheduler *scheduler.Scheduler
	Scorer    *relevance.Scorer
	Sentiment *sentiment.Analyzer
	Archive   Archiver
	Metrics   *metrics.Recorder
	Logger    logrus.FieldLogger

	// DefaultLimit replaces non-positive limits.
	DefaultLimit int
	// Criteria builds the fetch criteria; defaults to news.NewCriteria.
	Criteria func(markets []news.Market, limit int) news.Criteria
	Clock    func() time.Time
	// CPUs overrides runtime.NumCPU when sizing the worker pool.
	CPUs int
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	registry *adapter.Registry
	opts     Options
	log      logrus.FieldLogger

	mu     sync.Mutex
	health map[string]news.Health
}

func New(registry *adapter.Registry, opts Options) *Pipeline {
	if registry == nil {
		registry = adapter.NewRegistry()
	}
	if opts.Scorer == nil {
		opts.Scorer = relevance.NewScorer()
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.Criteria == nil {
		opts.Criteria = news.NewCriteria
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.CPUs <= 0 {
		opts.CPUs = runtime.NumCPU()
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Pipeline{
		registry: registry,
		opts:     opts,
		log:      log,
		health:   make(map[string]news.Health),
	}
}

// PoolSize bounds the fan-out: at least two workers, at most three per CPU.
func PoolSize(adapters, cpus int) int {
	if cpus < 1 {
		cpus = 1
	}
	return max(2, min(adapters, cpus*3))
}

// RunTokens resolves market tokens, mapping unknown ones to global, and runs
// the query.
func (p *Pipeline) RunTokens(ctx context.Context, tokens []string, limit int) news.Result {
	return p.Run(ctx, news.ResolveMarkets(tokens, p.log), limit)
}

// Run answers a query from the cache when possible and fetches otherwise.
// It never fails: upstream problems surface as health entries.
func (p *Pipeline) Run(ctx context.Context, markets []news.Market, limit int) news.Result {
	markets, limit = p.normalize(markets, limit)
	if p.opts.Cache != nil {
		if res, ok := p.opts.Cache.Get(ctx, markets, limit); ok {
			p.log.WithField("key", cache.Key(markets, limit)).Debug("cache hit")
			p.opts.Metrics.RecordRun(true, len(res.Items), 0)
			return res
		}
	}
	return p.fetch(ctx, markets, limit)
}

// Refresh skips the cache lookup but still writes the fresh result through.
func (p *Pipeline) Refresh(ctx context.Context, markets []news.Market, limit int) news.Result {
	markets, limit = p.normalize(markets, limit)
	return p.fetch(ctx, markets, limit)
}

// Health returns the latest status of every source that has reported,
// sorted by name.
func (p *Pipeline) Health() []news.Health {
	p.mu.Lock()
	out := make([]news.Health, 0, len(p.health))
	for _, h := range p.health {
		out = append(out, h)
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Adapters lists the registered adapter names.
func (p *Pipeline) Adapters() []string { return p.registry.Names() }

// AdaptersFor lists the adapters a run for markets would dispatch to.
func (p *Pipeline) AdaptersFor(markets []news.Market) []string {
	markets, _ = p.normalize(markets, 0)
	var out []string
	for _, a := range p.registry.Adapters() {
		if adapter.Relevant(a, markets) {
			out = append(out, a.Name())
		}
	}
	return out
}

func (p *Pipeline) normalize(markets []news.Market, limit int) ([]news.Market, int) {
	if len(markets) == 0 {
		markets = []news.Market{news.MarketGlobal}
	}
	if limit <= 0 {
		limit = p.opts.DefaultLimit
	}
	return markets, limit
}

type outcome struct {
	items  []news.Item
	health news.Health
}

func (p *Pipeline) fetch(ctx context.Context, markets []news.Market, limit int) news.Result {
	start := time.Now()
	now := p.opts.Clock()
	log := p.log.WithFields(logrus.Fields{"run_id": uuid.NewString(), "markets": markets, "limit": limit})
	criteria := p.opts.Criteria(markets, limit)

	var relevant []adapter.Adapter
	for _, a := range p.registry.Adapters() {
		if adapter.Relevant(a, markets) {
			relevant = append(relevant, a)
		}
	}

	workers := PoolSize(len(relevant), p.opts.CPUs)
	log.WithFields(logrus.Fields{"adapters": len(relevant), "workers": workers}).Info("dispatching adapters")

	// Results are indexed by registration order so dedup is reproducible.
	outcomes := make([]outcome, len(relevant))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, a := range relevant {
		g.Go(func() error {
			items, h := p.call(ctx, a, criteria, now)
			outcomes[i] = outcome{items: items, health: h}
			return nil
		})
	}
	_ = g.Wait()

	var (
		collected []news.Item
		health    = make([]news.Health, 0, len(outcomes))
	)
	for _, o := range outcomes {
		h := o.health
		entry := log.WithFields(logrus.Fields{"adapter": h.Name, "items": len(o.items)})
		if h.LatencyMS != nil {
			entry = entry.WithField("latency_ms", *h.LatencyMS)
		}
		if !h.Healthy {
			entry.WithField("error", h.LastError).Warn("adapter unhealthy")
		} else {
			entry.Debug("adapter fetched")
		}

		if p.opts.Scheduler != nil {
			p.opts.Scheduler.Observe(h)
		}
		p.opts.Metrics.RecordAdapter(h)
		if !h.IsSkipped() {
			p.mu.Lock()
			p.health[h.Name] = h
			p.mu.Unlock()
		}
		collected = append(collected, o.items...)
		health = append(health, h)
	}

	result := news.Result{
		Items:       p.postProcess(collected, limit),
		GeneratedAt: now.UTC(),
		Health:      health,
	}

	if p.opts.Cache != nil {
		if err := p.opts.Cache.Set(ctx, markets, limit, result); err != nil {
			p.opts.Metrics.RecordCacheError()
			log.WithError(err).Warn("cache write failed")
		}
	}
	if p.opts.Archive != nil && len(result.Items) > 0 {
		if err := p.opts.Archive.UpsertItems(result.Items); err != nil {
			log.WithError(err).Warn("archive write failed")
		}
	}

	p.opts.Metrics.RecordRun(false, len(result.Items), time.Since(start))
	log.WithFields(logrus.Fields{"collected": len(collected), "returned": len(result.Items)}).Info("pipeline run complete")
	return result
}

// call runs one adapter, turning a panic into an unhealthy status.
func (p *Pipeline) call(ctx context.Context, a adapter.Adapter, c news.Criteria, now time.Time) (items []news.Item, h news.Health) {
	name := a.Name()
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{"adapter": name, "error": fmt.Sprint(r)}).Error("adapter panicked")
			items, h = nil, news.Failed(name, fmt.Errorf("adapter panic: %v", r))
		}
	}()
	items, h = a.Fetch(ctx, c, now)
	if h.Name == "" {
		h.Name = name
	}
	return items, h
}

// postProcess applies dedup, relevance filtering, sentiment, a stable sort by
// relevance and the limit, in that order. Survivors are then tagged with a
// category.
func (p *Pipeline) postProcess(items []news.Item, limit int) []news.Item {
	out := dedup.Items(items)
	out = p.opts.Scorer.Apply(out)
	out = p.opts.Sentiment.AnalyzeBatch(out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score() > out[j].Score() })
	if len(out) > limit {
		out = out[:limit]
	}
	return classify.Tag(out)
}
