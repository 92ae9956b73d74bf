// Package scheduler adapts per-source fetch intervals to observed health.
package scheduler

import (
	"time"

	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

const (
	DefaultBaseInterval = 30 * time.Minute
	DefaultMinInterval  = 5 * time.Minute
	DefaultMaxInterval  = 6 * time.Hour
	DefaultPriority     = 1.0

	failureStreakLimit = 3
	successStreakLimit = 5
	slowLatencyMS      = 5000
	fastLatencyMS      = 1000
)

// Schedule is the adaptive state of one source. It is not safe for
// concurrent use on its own; Scheduler guards it.
type Schedule struct {
	Name          string        `json:"name"`
	BaseInterval  time.Duration `json:"base_interval"`
	MinInterval   time.Duration `json:"min_interval"`
	MaxInterval   time.Duration `json:"max_interval"`
	Priority      float64       `json:"priority"`
	SuccessStreak int           `json:"success_count"`
	FailureStreak int           `json:"failure_count"`
	AvgLatencyMS  float64       `json:"avg_latency_ms"`
	Interval      time.Duration `json:"update_frequency"`
	LastFetch     *time.Time    `json:"last_fetch"`
	NextFetch     time.Time     `json:"next_fetch"`

	latencySamples int
}

// Defaults are applied to sources registered lazily.
type Defaults struct {
	BaseInterval time.Duration
	MinInterval  time.Duration
	MaxInterval  time.Duration
	Priority     float64
}

func (d Defaults) withFallbacks() Defaults {
	if d.BaseInterval <= 0 {
		d.BaseInterval = DefaultBaseInterval
	}
	if d.MinInterval <= 0 {
		d.MinInterval = DefaultMinInterval
	}
	if d.MaxInterval <= 0 {
		d.MaxInterval = DefaultMaxInterval
	}
	if d.MaxInterval < d.MinInterval {
		d.MaxInterval = d.MinInterval
	}
	if d.Priority == 0 {
		d.Priority = DefaultPriority
	}
	return d
}

// NewSchedule returns a schedule that is due immediately.
func NewSchedule(name string, d Defaults, now time.Time) *Schedule {
	d = d.withFallbacks()
	return &Schedule{
		Name:         name,
		BaseInterval: d.BaseInterval,
		MinInterval:  d.MinInterval,
		MaxInterval:  d.MaxInterval,
		Priority:     d.Priority,
		Interval:     d.BaseInterval,
		NextFetch:    now,
	}
}

// UpdateWithHealth folds one health report into the streaks and latency
// average, then recomputes the interval.
func (s *Schedule) UpdateWithHealth(h news.Health) {
	if h.Healthy {
		s.SuccessStreak++
		s.FailureStreak = 0
		if h.LatencyMS != nil && *h.LatencyMS > 0 {
			if s.latencySamples == 0 {
				s.AvgLatencyMS = *h.LatencyMS
			} else {
				s.AvgLatencyMS = (s.AvgLatencyMS*9 + *h.LatencyMS) / 10
			}
			s.latencySamples++
		}
	} else {
		s.FailureStreak++
		s.SuccessStreak = 0
	}
	s.adjust()
}

// adjust recomputes Interval from BaseInterval. The latency factor only
// applies once a latency sample exists: a source that has never reported
// one is not treated as fast.
func (s *Schedule) adjust() {
	factor := 1.0
	switch {
	case s.FailureStreak > failureStreakLimit:
		factor *= 1.5
	case s.SuccessStreak > successStreakLimit:
		factor *= 0.8
	}
	if s.latencySamples > 0 {
		switch {
		case s.AvgLatencyMS > slowLatencyMS:
			factor *= 1.2
		case s.AvgLatencyMS < fastLatencyMS:
			factor *= 0.9
		}
	}

	next := time.Duration(float64(s.BaseInterval) * factor)
	if next < s.MinInterval {
		next = s.MinInterval
	}
	if next > s.MaxInterval {
		next = s.MaxInterval
	}
	s.Interval = next
}

// ShouldFetch reports whether the source is due at now.
func (s *Schedule) ShouldFetch(now time.Time) bool {
	return !now.Before(s.NextFetch)
}

// MarkFetched advances the next fetch by the current interval.
func (s *Schedule) MarkFetched(now time.Time) {
	t := now
	s.LastFetch = &t
	s.NextFetch = now.Add(s.Interval)
}

// WaitTime is the remaining time until the source is due, never negative.
func (s *Schedule) WaitTime(now time.Time) time.Duration {
	if s.ShouldFetch(now) {
		return 0
	}
	return s.NextFetch.Sub(now)
}
