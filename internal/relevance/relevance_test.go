package relevance

import (
	"math"
	"testing"
	"time"

	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSimilarityFullMatch(t *testing.T) {
	s := NewScorer(WithClock(clock), WithKeywords(news.MarketUS, []string{"fed", "inflation"}))
	it := news.Item{
		Title:       "Fed hints at rate cut amid inflation",
		ContentType: news.FinancialNews,
		Market:      news.MarketUS,
	}
	sim, score := s.Score(it)
	if !approx(sim, 1.0) {
		t.Errorf("expected similarity 1.0, got %v", sim)
	}
	if !approx(score, 0.64) {
		t.Errorf("expected score 0.64, got %v", score)
	}
}

func TestSimilarityMonotonic(t *testing.T) {
	s := NewScorer(WithClock(clock))
	base := news.Item{Title: "Markets open", ContentType: news.FinancialNews, Market: news.MarketGlobal}
	more := base
	more.Title += " as inflation cools"

	simBase, _ := s.Score(base)
	simMore, _ := s.Score(more)
	if simMore < simBase {
		t.Errorf("adding a keyword decreased similarity: %v -> %v", simBase, simMore)
	}
}

func TestRecencyBonus(t *testing.T) {
	s := NewScorer(WithClock(clock))
	tests := []struct {
		age  time.Duration
		want float64
	}{
		{30 * time.Minute, 0.15},
		{3 * time.Hour, 0.10},
		{12 * time.Hour, 0.05},
		{48 * time.Hour, 0},
	}
	for _, tt := range tests {
		pub := fixedNow.Add(-tt.age)
		if got := s.recencyBonus(&pub); !approx(got, tt.want) {
			t.Errorf("recencyBonus(%v old) = %v, want %v", tt.age, got, tt.want)
		}
	}
	if got := s.recencyBonus(nil); got != 0 {
		t.Errorf("expected 0 bonus without timestamp, got %v", got)
	}
}

func TestScoreBaseByContentType(t *testing.T) {
	s := NewScorer(WithClock(clock))
	fin := news.Item{Title: "nothing relevant", ContentType: news.FinancialNews}
	soc := news.Item{Title: "nothing relevant", ContentType: news.SocialMedia}

	if _, score := s.Score(fin); !approx(score, 0.6) {
		t.Errorf("financial base: got %v", score)
	}
	if _, score := s.Score(soc); !approx(score, 0.4) {
		t.Errorf("social base: got %v", score)
	}
}

func TestScoreIsClamped(t *testing.T) {
	s := NewScorer(WithClock(clock))
	pub := fixedNow.Add(-time.Minute)
	var title string
	for _, kw := range aShareKeywords {
		title += kw + " "
	}
	it := news.Item{Title: title, ContentType: news.FinancialNews, Market: news.MarketAShare, PublishedAt: &pub}
	_, score := s.Score(it)
	if score != 1.0 {
		t.Errorf("expected score clamped to 1.0, got %v", score)
	}
}

func TestMarketFallsBackToBaseKeywords(t *testing.T) {
	s := NewScorer()
	got := s.Keywords(news.MarketEurope)
	if len(got) != len(BaseKeywords) {
		t.Errorf("expected base keywords for europe, got %v", got)
	}
	if len(s.Keywords(news.MarketUS)) != len(BaseKeywords)+3 {
		t.Errorf("expected us keywords to extend the base set")
	}
}

func TestIsRelevant(t *testing.T) {
	s := NewScorer(WithThreshold(0.2))
	if !s.IsRelevant(0, news.Item{ContentType: news.SocialMedia}) {
		t.Error("social posts always pass")
	}
	if s.IsRelevant(0.1, news.Item{ContentType: news.FinancialNews}) {
		t.Error("below-threshold financial news must be dropped")
	}
	if !s.IsRelevant(0.2, news.Item{ContentType: news.FinancialNews}) {
		t.Error("threshold is inclusive")
	}
}

func TestApplyFiltersAndAnnotates(t *testing.T) {
	s := NewScorer(WithClock(clock))
	items := []news.Item{
		{URL: "https://x/1", Title: "Stock market rallies", ContentType: news.FinancialNews, Market: news.MarketGlobal},
		{URL: "https://x/2", Title: "Cat video", ContentType: news.FinancialNews, Market: news.MarketGlobal},
		{URL: "https://x/3", Title: "Cat video", ContentType: news.SocialMedia, Market: news.MarketGlobal},
	}
	out := s.Apply(items)
	if len(out) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out))
	}
	if out[0].URL != "https://x/1" || out[1].URL != "https://x/3" {
		t.Errorf("unexpected order: %s, %s", out[0].URL, out[1].URL)
	}
	for _, it := range out {
		if it.RelevanceScore == nil || it.SemanticSimilarity == nil {
			t.Errorf("expected scores on %s", it.URL)
		}
	}
	if items[0].RelevanceScore != nil {
		t.Error("Apply must not modify its input")
	}
}
