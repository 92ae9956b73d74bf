package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"NEWS_DEFAULT_MARKETS", "NEWS_PIPELINE_LIMIT", "NEWS_CACHE_TTL", "NEWS_CACHE_PATH",
		"NEWS_CACHE_MAX_ENTRIES", "NEWS_REDIS_URL", "NEWS_SERVICE_API_KEY", "NEWSAPI_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := loadDefaults()
	if err != nil {
		t.Fatalf("loadDefaults: %v", err)
	}
	if cfg.RSSFeeds.Len() == 0 {
		t.Error("expected at least one default rss source")
	}
	if cfg.GoogleNews.Len() == 0 {
		t.Error("expected at least one default query source")
	}
	if cfg.Settings.Limit != 20 {
		t.Errorf("expected limit 20, got %d", cfg.Settings.Limit)
	}
	if got := cfg.Cache.TTL.D(); got != 300*time.Second {
		t.Errorf("expected ttl 300s, got %v", got)
	}
	if len(cfg.Warnings) != 0 {
		t.Errorf("embedded config should load cleanly, got %v", cfg.Warnings)
	}
}

func TestLoadFirstRunWritesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected defaults written to %s: %v", path, err)
	}
	if cfg.Cache.Path == "" || cfg.Archive.Path == "" {
		t.Error("expected storage paths to be resolved")
	}
	if cfg.Cache.RedisKey != DefaultRedisKey {
		t.Errorf("expected default redis key, got %q", cfg.Cache.RedisKey)
	}
}

func TestLoadFromFilePreservesOrder(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
settings:
  limit: 7
rss_feeds:
  zeta:
    feeds: [https://example.com/z.xml]
  alpha:
    feeds: https://example.com/a.xml
    market: crypto
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Settings.Limit != 7 {
		t.Errorf("expected limit 7, got %d", cfg.Settings.Limit)
	}
	if cfg.RSSFeeds.Len() != 2 {
		t.Fatalf("expected user rss section to replace defaults, got %d entries", cfg.RSSFeeds.Len())
	}
	if cfg.RSSFeeds.Entries[0].Name != "zeta" || cfg.RSSFeeds.Entries[1].Name != "alpha" {
		t.Errorf("document order lost: %+v", cfg.RSSFeeds.Entries)
	}
	if got := cfg.RSSFeeds.Entries[1].Value.Feeds; len(got) != 1 || got[0] != "https://example.com/a.xml" {
		t.Errorf("scalar feeds not accepted: %v", got)
	}
	// Sections the file does not mention keep their defaults.
	if cfg.GoogleNews.Len() == 0 {
		t.Error("expected default google_news_rss section to survive")
	}
}

func TestLoadSkipsMalformedEntries(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
rss_feeds:
  broken:
    limit: [not, a, number]
    feeds: [https://example.com/a.xml]
  badurl:
    feeds: ["ftp://example.com/feed", "not a url"]
  ok:
    feeds: [https://example.com/ok.xml]
    market: atlantis
social_media:
  nohandle:
    platform: x
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RSSFeeds.Len() != 1 || cfg.RSSFeeds.Entries[0].Name != "ok" {
		t.Errorf("expected only the valid entry, got %+v", cfg.RSSFeeds.Entries)
	}
	if cfg.SocialMedia.Len() != 0 {
		t.Errorf("expected entry without handle dropped, got %+v", cfg.SocialMedia.Entries)
	}
	joined := strings.Join(cfg.Warnings, "\n")
	for _, want := range []string{"broken", "badurl", "atlantis", "nohandle"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected a warning mentioning %q, got:\n%s", want, joined)
		}
	}
}

func TestExpandEnvWholeValuesOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_NEWS_KEY", "secret")
	t.Setenv("TEST_NEWS_PAGES", "5")
	path := writeConfig(t, `
news_service:
  api_key: ${TEST_NEWS_KEY}
  pages: ${TEST_NEWS_PAGES}
  endpoint: https://example.com/${TEST_NEWS_KEY}
  default_sources: ${TEST_UNSET_VALUE}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NewsService.APIKey != "secret" {
		t.Errorf("api key not expanded: %q", cfg.NewsService.APIKey)
	}
	if cfg.NewsService.Pages != 5 {
		t.Errorf("numeric expansion failed: %d", cfg.NewsService.Pages)
	}
	if cfg.NewsService.Endpoint != "https://example.com/${TEST_NEWS_KEY}" {
		t.Errorf("partial reference should not expand: %q", cfg.NewsService.Endpoint)
	}
	if cfg.NewsService.DefaultSources != "" {
		t.Errorf("unset variable should expand to empty, got %q", cfg.NewsService.DefaultSources)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEWS_DEFAULT_MARKETS", "crypto, japan,bogus")
	t.Setenv("NEWS_PIPELINE_LIMIT", "12")
	t.Setenv("NEWS_CACHE_TTL", "-4")
	t.Setenv("NEWS_CACHE_MAX_ENTRIES", "9")
	t.Setenv("NEWSAPI_API_KEY", "from-env")

	cfg, err := Load(writeConfig(t, "settings:\n  limit: 3\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Settings.Markets(); len(got) != 2 || got[0] != news.MarketCrypto || got[1] != news.MarketJapan {
		t.Errorf("unexpected markets: %v", got)
	}
	if cfg.Settings.Limit != 12 {
		t.Errorf("expected env limit 12, got %d", cfg.Settings.Limit)
	}
	if cfg.Cache.TTL.D() != DefaultCacheTTL {
		t.Errorf("invalid ttl should keep default, got %v", cfg.Cache.TTL)
	}
	if cfg.Cache.MaxEntries != 9 {
		t.Errorf("expected max entries 9, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.NewsService.APIKey != "from-env" {
		t.Errorf("expected api key from env, got %q", cfg.NewsService.APIKey)
	}
	joined := strings.Join(cfg.Warnings, "\n")
	if !strings.Contains(joined, "NEWS_CACHE_TTL") || !strings.Contains(joined, "bogus") {
		t.Errorf("expected warnings for bad ttl and market, got:\n%s", joined)
	}
}

func TestMarketsFallback(t *testing.T) {
	s := Settings{DefaultMarkets: []string{"nowhere"}}
	got := s.Markets()
	if len(got) != len(DefaultMarkets) {
		t.Fatalf("expected fallback markets, got %v", got)
	}
}

func TestCriteriaFlags(t *testing.T) {
	off := false
	s := Settings{IncludeSocial: &off}
	c := s.Criteria([]news.Market{news.MarketUS}, 5)
	if c.IncludeSocial || !c.IncludeFinancial || c.Limit != 5 {
		t.Errorf("unexpected criteria: %+v", c)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"90d", 90 * 24 * time.Hour},
		{"720h", 720 * time.Hour},
		{"300", 300 * time.Second},
		{"1.5", 1500 * time.Millisecond},
		{"", 0},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.input)
		if err != nil {
			t.Errorf("ParseDuration(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
	if _, err := ParseDuration("soon"); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestQueryMergesSingleQuery(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, `
google_news_rss:
  fx:
    query: yen
    queries: [dollar]
  empty:
    queries: []
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GoogleNews.Len() != 1 {
		t.Fatalf("expected empty query source dropped, got %+v", cfg.GoogleNews.Entries)
	}
	if q := cfg.GoogleNews.Entries[0].Value.Queries; len(q) != 2 || q[1] != "yen" {
		t.Errorf("unexpected queries: %v", q)
	}
}
