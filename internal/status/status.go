// Package status assembles the JSON-ready health report of a running
// pipeline. Item payloads and credentials never appear in it.
package status

import (
	"context"
	"time"

	"github.com/x18815379395-wq/global-news-market-app/internal/cache"
	"github.com/x18815379395-wq/global-news-market-app/internal/news"
	"github.com/x18815379395-wq/global-news-market-app/internal/scheduler"
)

// HealthSource is the pipeline view the report needs.
type HealthSource interface {
	Health() []news.Health
	Adapters() []string
}

type Inputs struct {
	Pipeline       HealthSource
	Cache          *cache.Cache
	Scheduler      *scheduler.Scheduler
	DefaultMarkets []news.Market
	DefaultLimit   int
	Now            time.Time
}

type Report struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Pipeline    PipelineStatus   `json:"pipeline"`
	Cache       *cache.Snapshot  `json:"cache,omitempty"`
	Config      ConfigSummary    `json:"config"`
	Schedules   []ScheduleStatus `json:"schedules"`
}

type PipelineStatus struct {
	Health         []news.Health `json:"health"`
	AdapterCount   int           `json:"adapter_count"`
	Registered     []string      `json:"registered_adapters"`
	Unhealthy      int           `json:"unhealthy"`
	DefaultMarkets []news.Market `json:"default_markets"`
	DefaultLimit   int           `json:"default_limit"`
}

type ConfigSummary struct {
	CachePath       string  `json:"cache_path"`
	CacheTTLSeconds float64 `json:"cache_ttl_seconds"`
	CacheMaxEntries int     `json:"cache_max_entries"`
}

type ScheduleStatus struct {
	Name            string     `json:"name"`
	Priority        float64    `json:"priority"`
	IntervalSeconds float64    `json:"interval_seconds"`
	AvgLatencyMS    float64    `json:"avg_latency_ms"`
	SuccessStreak   int        `json:"success_count"`
	FailureStreak   int        `json:"failure_count"`
	LastFetch       *time.Time `json:"last_fetch"`
	NextFetch       time.Time  `json:"next_fetch"`
	Due             bool       `json:"due"`
}

// Build collects the report. Missing collaborators leave their section empty.
func Build(ctx context.Context, in Inputs) Report {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	r := Report{
		GeneratedAt: now.UTC(),
		Pipeline: PipelineStatus{
			Health:         []news.Health{},
			Registered:     []string{},
			DefaultMarkets: in.DefaultMarkets,
			DefaultLimit:   in.DefaultLimit,
		},
		Schedules: []ScheduleStatus{},
	}

	if in.Pipeline != nil {
		r.Pipeline.Health = in.Pipeline.Health()
		r.Pipeline.Registered = in.Pipeline.Adapters()
	}
	r.Pipeline.AdapterCount = len(r.Pipeline.Health)
	for _, h := range r.Pipeline.Health {
		if !h.Healthy {
			r.Pipeline.Unhealthy++
		}
	}

	if in.Cache != nil {
		snap := in.Cache.Snapshot(ctx)
		r.Cache = &snap
		r.Config = ConfigSummary{
			CachePath:       snap.StoragePath,
			CacheTTLSeconds: snap.TTLSeconds,
			CacheMaxEntries: snap.MaxEntries,
		}
	}

	if in.Scheduler != nil {
		for _, s := range in.Scheduler.All() {
			r.Schedules = append(r.Schedules, ScheduleStatus{
				Name:            s.Name,
				Priority:        s.Priority,
				IntervalSeconds: s.Interval.Seconds(),
				AvgLatencyMS:    s.AvgLatencyMS,
				SuccessStreak:   s.SuccessStreak,
				FailureStreak:   s.FailureStreak,
				LastFetch:       s.LastFetch,
				NextFetch:       s.NextFetch,
				Due:             s.ShouldFetch(now),
			})
		}
	}
	return r
}
