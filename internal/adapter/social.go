package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/x18815379395-wq/global-news-market-app/internal/dedup"
	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

const DefaultSocialLimit = 6

// RawPost is one post as returned by a timeline capability.
type RawPost struct {
	URL      string
	PostID   string
	PostedAt *time.Time
	Text     string
}

// TimelineFetcher returns up to limit recent public posts of handle.
type TimelineFetcher interface {
	FetchTimeline(ctx context.Context, handle string, limit int) ([]RawPost, error)
}

type SocialConfig struct {
	Platform string
	Handle   string
	Limit    int
	Market   news.Market
}

// SocialAdapter turns a public timeline into social-media items. A nil
// TimelineFetcher makes every in-scope fetch report unhealthy.
type SocialAdapter struct {
	cfg      SocialConfig
	timeline TimelineFetcher
	log      logrus.FieldLogger
}

func NewSocialAdapter(cfg SocialConfig, timeline TimelineFetcher, log logrus.FieldLogger) *SocialAdapter {
	cfg.Platform = strings.ToLower(strings.TrimSpace(cfg.Platform))
	cfg.Handle = strings.TrimPrefix(strings.TrimSpace(cfg.Handle), "@")
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultSocialLimit
	}
	if cfg.Market == "" {
		cfg.Market = news.MarketGlobal
	}
	a := &SocialAdapter{cfg: cfg, timeline: timeline}
	a.log = discardLogger(log).WithField("adapter", a.Name())
	return a
}

func (a *SocialAdapter) Name() string { return a.cfg.Platform + ":" + a.cfg.Handle }

func (a *SocialAdapter) Market() (news.Market, bool) { return a.cfg.Market, true }

func (a *SocialAdapter) Fetch(ctx context.Context, c news.Criteria, now time.Time) ([]news.Item, news.Health) {
	if !c.IncludeSocial || !c.Wants(a.cfg.Market) {
		return nil, news.Skipped(a.Name())
	}

	start := time.Now()
	if a.timeline == nil {
		return nil, report(a.Name(), nil, fmt.Errorf("%s: %w", a.cfg.Platform, ErrTimelineUnavailable), start, now)
	}

	posts, err := a.timeline.FetchTimeline(ctx, a.cfg.Handle, a.cfg.Limit)
	if err != nil {
		a.log.WithError(err).Warn("timeline fetch failed")
	}
	if len(posts) > a.cfg.Limit {
		posts = posts[:a.cfg.Limit]
	}

	items := make([]news.Item, 0, len(posts))
	for _, p := range posts {
		if p.URL == "" {
			continue
		}
		id := p.PostID
		if id == "" {
			id = dedup.Digest(p.URL)
		}
		items = append(items, news.Item{
			Title:       fmt.Sprintf("%s (%s)", a.cfg.Handle, a.cfg.Platform),
			Description: p.Text,
			URL:         p.URL,
			Source:      fmt.Sprintf("%s @%s", a.cfg.Platform, a.cfg.Handle),
			ContentType: news.SocialMedia,
			Market:      a.cfg.Market,
			PublishedAt: p.PostedAt,
			Metadata:    map[string]string{"post_id": id},
		})
	}
	return items, report(a.Name(), items, err, start, now)
}
