// Package relevance scores items by market keyword overlap and recency.
package relevance

import (
	"math"
	"strings"
	"time"

	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

const (
	DefaultThreshold = 0.01

	baseFinancial    = 0.6
	baseOther        = 0.4
	perMatch         = 0.02
	maxMatchBonus    = 0.35
	bonusUnderHour   = 0.15
	bonusUnderSixH   = 0.10
	bonusUnderOneDay = 0.05
)

// Scorer is safe for concurrent use once constructed.
type Scorer struct {
	threshold float64
	keywords  map[news.Market][]string
	now       func() time.Time
}

type Option func(*Scorer)

// WithThreshold sets the minimum similarity a financial-news item needs.
func WithThreshold(v float64) Option {
	return func(s *Scorer) { s.threshold = v }
}

// WithKeywords replaces the keyword list of one market.
func WithKeywords(m news.Market, keywords []string) Option {
	return func(s *Scorer) { s.keywords[m] = lowerAll(keywords) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		threshold: DefaultThreshold,
		keywords:  make(map[news.Market][]string),
		now:       time.Now,
	}
	for m, kws := range DefaultKeywords() {
		s.keywords[m] = lowerAll(kws)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Threshold returns the configured similarity gate.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Keywords returns the lower-cased keyword list applied to m.
func (s *Scorer) Keywords(m news.Market) []string {
	if kws, ok := s.keywords[m]; ok {
		return kws
	}
	return s.keywords[news.MarketGlobal]
}

// Score returns the keyword similarity and the bounded relevance score of it.
func (s *Scorer) Score(it news.Item) (similarity, score float64) {
	keywords := s.Keywords(it.Market)
	if len(keywords) == 0 {
		keywords = lowerAll(BaseKeywords)
	}
	text := strings.ToLower(it.Title + " " + it.Description)

	matches := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			matches++
		}
	}
	similarity = float64(matches) / float64(len(keywords))

	base := baseOther
	if it.ContentType == news.FinancialNews {
		base = baseFinancial
	}
	score = base + math.Min(maxMatchBonus, float64(matches)*perMatch) + s.recencyBonus(it.PublishedAt)
	return similarity, math.Min(1.0, score)
}

// IsRelevant lets social posts through unconditionally and gates everything
// else on the similarity threshold.
func (s *Scorer) IsRelevant(similarity float64, it news.Item) bool {
	if it.ContentType == news.SocialMedia {
		return true
	}
	return similarity >= s.threshold
}

// Apply scores items and drops the irrelevant ones, preserving order.
// Input items are not modified.
func (s *Scorer) Apply(items []news.Item) []news.Item {
	out := make([]news.Item, 0, len(items))
	for _, it := range items {
		sim, score := s.Score(it)
		if !s.IsRelevant(sim, it) {
			continue
		}
		it.SemanticSimilarity = news.Float(sim)
		it.RelevanceScore = news.Float(score)
		out = append(out, it)
	}
	return out
}

func (s *Scorer) recencyBonus(published *time.Time) float64 {
	if published == nil {
		return 0
	}
	age := s.now().Sub(*published)
	switch {
	case age < time.Hour:
		return bonusUnderHour
	case age < 6*time.Hour:
		return bonusUnderSixH
	case age < 24*time.Hour:
		return bonusUnderOneDay
	default:
		return 0
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
