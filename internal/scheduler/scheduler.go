package scheduler

import (
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

// Scheduler tracks one Schedule per source name. Schedules are created on
// first registration or first health report and never removed.
type Scheduler struct {
	mu        sync.Mutex
	schedules map[string]*Schedule
	defaults  Defaults
	now       func() time.Time
	log       logrus.FieldLogger
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

func New(d Defaults, opts ...Option) *Scheduler {
	l := logrus.New()
	l.SetOutput(io.Discard)
	s := &Scheduler{
		schedules: make(map[string]*Schedule),
		defaults:  d.withFallbacks(),
		now:       time.Now,
		log:       l,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates or replaces the schedule for name. Zero fields of d take
// the scheduler defaults.
func (s *Scheduler) Register(name string, d Defaults) {
	if d.BaseInterval <= 0 {
		d.BaseInterval = s.defaults.BaseInterval
	}
	if d.MinInterval <= 0 {
		d.MinInterval = s.defaults.MinInterval
	}
	if d.MaxInterval <= 0 {
		d.MaxInterval = s.defaults.MaxInterval
	}
	if d.Priority == 0 {
		d.Priority = s.defaults.Priority
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[name] = NewSchedule(name, d, s.now())
}

// Observe records a health report, registering the source on first sight.
// Reports from out-of-scope no-op fetches are ignored.
func (s *Scheduler) Observe(h news.Health) {
	if h.Name == "" || h.IsSkipped() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[h.Name]
	if !ok {
		sched = NewSchedule(h.Name, s.defaults, s.now())
		s.schedules[h.Name] = sched
	}
	sched.UpdateWithHealth(h)
	s.log.WithFields(logrus.Fields{
		"adapter":        h.Name,
		"interval":       sched.Interval.String(),
		"success_streak": sched.SuccessStreak,
		"failure_streak": sched.FailureStreak,
		"latency_ms":     sched.AvgLatencyMS,
	}).Debug("schedule adjusted")
}

// Due returns the names of sources due at now, highest priority first.
func (s *Scheduler) Due(now time.Time) []string {
	s.mu.Lock()
	due := make([]*Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		if sched.ShouldFetch(now) {
			due = append(due, sched)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		return due[i].Name < due[j].Name
	})
	names := make([]string, len(due))
	for i, sched := range due {
		names[i] = sched.Name
	}
	return names
}

// MarkFetched advances the named schedule. Unknown names are ignored.
func (s *Scheduler) MarkFetched(name string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sched, ok := s.schedules[name]; ok {
		sched.MarkFetched(now)
	}
}

// Get returns a copy of the named schedule.
func (s *Scheduler) Get(name string) (Schedule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[name]
	if !ok {
		return Schedule{}, false
	}
	return *sched, true
}

// All returns copies of every schedule sorted by name.
func (s *Scheduler) All() []Schedule {
	s.mu.Lock()
	out := make([]Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, *sched)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NextFetch is the earliest next-fetch time, false when nothing is registered.
func (s *Scheduler) NextFetch() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		earliest time.Time
		found    bool
	)
	for _, sched := range s.schedules {
		if !found || sched.NextFetch.Before(earliest) {
			earliest = sched.NextFetch
			found = true
		}
	}
	return earliest, found
}

// WaitTime is the time until the earliest source is due, 0 when none are registered.
func (s *Scheduler) WaitTime(now time.Time) time.Duration {
	next, ok := s.NextFetch()
	if !ok || !next.After(now) {
		return 0
	}
	return next.Sub(now)
}
