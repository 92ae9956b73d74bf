package config

import (
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

const (
	DefaultLimit            = 20
	DefaultCacheTTL         = 300 * time.Second
	DefaultCacheMaxEntries  = 4
	DefaultMemoryEntries    = 10
	DefaultArchiveRetention = 30 * 24 * time.Hour
	DefaultRedisKey         = "newspipe:pipeline_cache"
)

// DefaultMarkets is used when neither the file nor NEWS_DEFAULT_MARKETS
// names a known market.
var DefaultMarkets = []news.Market{news.MarketGlobal, news.MarketUS, news.MarketAShare}

type Settings struct {
	DefaultMarkets     []string            `yaml:"default_markets"`
	Limit              int                 `yaml:"limit"`
	IncludeSocial      *bool               `yaml:"include_social"`
	IncludeFinancial   *bool               `yaml:"include_financial"`
	RelevanceThreshold float64             `yaml:"relevance_threshold"`
	Keywords           map[string][]string `yaml:"keywords"`
}

// Markets resolves DefaultMarkets, dropping unknown tokens.
func (s Settings) Markets() []news.Market {
	var out []news.Market
	seen := make(map[news.Market]bool)
	for _, tok := range s.DefaultMarkets {
		m, ok := news.ParseMarket(tok)
		if !ok || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	if len(out) == 0 {
		return append([]news.Market(nil), DefaultMarkets...)
	}
	return out
}

// Criteria builds the fetch criteria for markets using the configured flags.
func (s Settings) Criteria(markets []news.Market, limit int) news.Criteria {
	c := news.NewCriteria(markets, limit)
	if s.IncludeSocial != nil {
		c.IncludeSocial = *s.IncludeSocial
	}
	if s.IncludeFinancial != nil {
		c.IncludeFinancial = *s.IncludeFinancial
	}
	return c
}

type CacheConfig struct {
	TTL              Duration `yaml:"ttl"`
	Path             string   `yaml:"path"`
	MaxEntries       int      `yaml:"max_entries"`
	MaxMemoryEntries int      `yaml:"max_memory_entries"`
	RedisURL         string   `yaml:"redis_url"`
	RedisKey         string   `yaml:"redis_key"`
}

type ArchiveConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Path      string   `yaml:"path"`
	Retention Duration `yaml:"retention"`
}

type SchedulerConfig struct {
	BaseInterval Duration           `yaml:"base_interval"`
	MinInterval  Duration           `yaml:"min_interval"`
	MaxInterval  Duration           `yaml:"max_interval"`
	Priorities   map[string]float64 `yaml:"priorities"`
}

type SentimentConfig struct {
	Enabled bool `yaml:"enabled"`
}

type TransportConfig struct {
	UserAgent     string   `yaml:"user_agent"`
	MinDelay      Duration `yaml:"min_delay"`
	BaseDelay     Duration `yaml:"base_delay"`
	MaxBackoff    Duration `yaml:"max_backoff"`
	Timeout       Duration `yaml:"timeout"`
	MaxRetries    int      `yaml:"max_retries"`
	RespectRobots bool     `yaml:"respect_robots"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Toggle struct {
	Enabled *bool `yaml:"enabled"`
}

// On reports whether the entry is enabled; entries default to on.
func (t Toggle) On() bool { return t.Enabled == nil || *t.Enabled }

// FeedSource is an rss_feeds or yahoo_finance entry.
type FeedSource struct {
	Toggle      `yaml:",inline"`
	DisplayName string     `yaml:"display_name"`
	Feeds       StringList `yaml:"feeds"`
	Market      string     `yaml:"market"`
	Topics      StringList `yaml:"topics"`
	Limit       int        `yaml:"limit"`
	UserAgent   string     `yaml:"user_agent"`
	MinDelay    *Duration  `yaml:"min_delay"`
	Window      Duration   `yaml:"window"`
}

// QuerySource is a google_news_rss entry.
type QuerySource struct {
	Toggle      `yaml:",inline"`
	DisplayName string            `yaml:"display_name"`
	Queries     StringList        `yaml:"queries"`
	Query       string            `yaml:"query"`
	Market      string            `yaml:"market"`
	HL          string            `yaml:"hl"`
	GL          string            `yaml:"gl"`
	CEID        string            `yaml:"ceid"`
	Topics      StringList        `yaml:"topics"`
	Limit       int               `yaml:"limit"`
	UserAgent   string            `yaml:"user_agent"`
	MinDelay    *Duration         `yaml:"min_delay"`
	QueryParams map[string]string `yaml:"query_params"`
}

type NewsServiceSource struct {
	Toggle          `yaml:",inline"`
	Name            string            `yaml:"name"`
	Endpoint        string            `yaml:"endpoint"`
	APIKey          string            `yaml:"api_key"`
	Language        string            `yaml:"language"`
	PageSize        int               `yaml:"page_size"`
	Pages           int               `yaml:"pages"`
	LookbackDays    int               `yaml:"lookback_days"`
	RateLimit       Duration          `yaml:"rate_limit"`
	SourcesByMarket map[string]string `yaml:"sources_by_market"`
	DefaultSources  string            `yaml:"default_sources"`
}

type Selectors struct {
	Item string `yaml:"item"`
	Link string `yaml:"link"`
	Text string `yaml:"text"`
	Time string `yaml:"time"`
}

// SocialSource is a social_media entry. Entries without a url_template
// have no timeline capability and report unhealthy when dispatched.
type SocialSource struct {
	Toggle      `yaml:",inline"`
	Platform    string    `yaml:"platform"`
	Handle      string    `yaml:"handle"`
	Limit       int       `yaml:"limit"`
	Market      string    `yaml:"market"`
	URLTemplate string    `yaml:"url_template"`
	Selectors   Selectors `yaml:"selectors"`
}

type Config struct {
	Settings  Settings        `yaml:"settings"`
	Cache     CacheConfig     `yaml:"cache"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Transport TransportConfig `yaml:"transport"`
	Logging   LoggingConfig   `yaml:"logging"`

	RSSFeeds     Section[FeedSource]   `yaml:"rss_feeds"`
	YahooFinance Section[FeedSource]   `yaml:"yahoo_finance"`
	GoogleNews   Section[QuerySource]  `yaml:"google_news_rss"`
	NewsService  NewsServiceSource     `yaml:"news_service"`
	SocialMedia  Section[SocialSource] `yaml:"social_media"`

	// Warnings lists entries that were ignored or corrected while loading.
	Warnings []string `yaml:"-"`
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "newspipe", "config.yaml")
}

func CachePath() string {
	return filepath.Join(xdg.CacheHome, "newspipe", "pipeline_cache.json")
}

func ArchivePath() string {
	return filepath.Join(xdg.DataHome, "newspipe", "archive.db")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config at path (the XDG default when empty) over the
// embedded defaults, then applies .env and NEWS_* environment overrides.
func Load(path string) (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Write defaults to config path on first run; failure is non-fatal.
		_ = writeDefaults(path)
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	finalize(cfg)
	return cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

// decode parses data over cfg after ${NAME} expansion of scalar values.
func decode(data []byte, cfg *Config) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}
	if len(root.Content) == 0 {
		return nil
	}
	expandEnv(&root)
	if err := root.Decode(cfg); err != nil {
		return err
	}
	cfg.Warnings = append(cfg.Warnings, cfg.RSSFeeds.takeWarnings("rss_feeds")...)
	cfg.Warnings = append(cfg.Warnings, cfg.YahooFinance.takeWarnings("yahoo_finance")...)
	cfg.Warnings = append(cfg.Warnings, cfg.GoogleNews.takeWarnings("google_news_rss")...)
	cfg.Warnings = append(cfg.Warnings, cfg.SocialMedia.takeWarnings("social_media")...)
	return nil
}

var envRef = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// expandEnv replaces scalars that are exactly ${NAME}. Partial references
// inside longer strings are left alone.
func expandEnv(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode {
		if m := envRef.FindStringSubmatch(n.Value); m != nil {
			n.Value = os.Getenv(m[1])
			n.Tag = ""
			n.Style = 0
		}
		return
	}
	for _, c := range n.Content {
		expandEnv(c)
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("NEWS_DEFAULT_MARKETS")); v != "" {
		cfg.Settings.DefaultMarkets = strings.Split(v, ",")
	}
	if n, ok := envInt(cfg, "NEWS_PIPELINE_LIMIT"); ok {
		cfg.Settings.Limit = n
	}
	if n, ok := envInt(cfg, "NEWS_CACHE_TTL"); ok {
		cfg.Cache.TTL = Duration(time.Duration(n) * time.Second)
	}
	if v := strings.TrimSpace(os.Getenv("NEWS_CACHE_PATH")); v != "" {
		cfg.Cache.Path = v
	}
	if n, ok := envInt(cfg, "NEWS_CACHE_MAX_ENTRIES"); ok {
		cfg.Cache.MaxEntries = n
	}
	if v := strings.TrimSpace(os.Getenv("NEWS_REDIS_URL")); v != "" {
		cfg.Cache.RedisURL = v
	}
	for _, key := range []string{"NEWS_SERVICE_API_KEY", "NEWSAPI_API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			cfg.NewsService.APIKey = v
			break
		}
	}
}

// envInt reads a positive integer; anything else is ignored with a warning.
func envInt(cfg *Config, key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		cfg.warnf("%s=%q is not a positive integer; ignored", key, raw)
		return 0, false
	}
	return n, true
}

func finalize(cfg *Config) {
	s := &cfg.Settings
	for _, tok := range s.DefaultMarkets {
		if strings.TrimSpace(tok) == "" {
			continue
		}
		if _, ok := news.ParseMarket(tok); !ok {
			cfg.warnf("unknown market %q in default_markets; skipped", strings.TrimSpace(tok))
		}
	}
	if s.Limit <= 0 {
		s.Limit = DefaultLimit
	}

	c := &cfg.Cache
	if c.TTL <= 0 {
		c.TTL = Duration(DefaultCacheTTL)
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultCacheMaxEntries
	}
	if c.MaxMemoryEntries <= 0 {
		c.MaxMemoryEntries = DefaultMemoryEntries
	}
	if c.Path == "" {
		c.Path = CachePath()
	}
	if c.RedisKey == "" {
		c.RedisKey = DefaultRedisKey
	}

	if cfg.Archive.Path == "" {
		cfg.Archive.Path = ArchivePath()
	}
	if cfg.Archive.Retention <= 0 {
		cfg.Archive.Retention = Duration(DefaultArchiveRetention)
	}

	cfg.RSSFeeds.filter(func(name string, f *FeedSource) bool { return validFeeds(cfg, "rss_feeds", name, f) })
	cfg.YahooFinance.filter(func(name string, f *FeedSource) bool { return validFeeds(cfg, "yahoo_finance", name, f) })
	cfg.GoogleNews.filter(func(name string, q *QuerySource) bool {
		if q.Query != "" {
			q.Queries = append(q.Queries, q.Query)
		}
		if len(q.Queries) == 0 {
			cfg.warnf("google_news_rss.%s: no queries; skipped", name)
			return false
		}
		checkMarket(cfg, "google_news_rss", name, q.Market)
		return true
	})
	cfg.SocialMedia.filter(func(name string, so *SocialSource) bool {
		if strings.TrimSpace(so.Handle) == "" {
			cfg.warnf("social_media.%s: no handle; skipped", name)
			return false
		}
		if so.URLTemplate != "" && !strings.Contains(so.URLTemplate, "{handle}") {
			cfg.warnf("social_media.%s: url_template has no {handle}; timeline disabled", name)
			so.URLTemplate = ""
		}
		checkMarket(cfg, "social_media", name, so.Market)
		return true
	})
}

func validFeeds(cfg *Config, section, name string, f *FeedSource) bool {
	feeds := f.Feeds[:0:0]
	for _, raw := range f.Feeds {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			cfg.warnf("%s.%s: invalid feed url %q; skipped", section, name, raw)
			continue
		}
		feeds = append(feeds, u.String())
	}
	f.Feeds = feeds
	if len(f.Feeds) == 0 {
		cfg.warnf("%s.%s: no usable feeds; skipped", section, name)
		return false
	}
	checkMarket(cfg, section, name, f.Market)
	return true
}

func checkMarket(cfg *Config, section, name, market string) {
	if market == "" {
		return
	}
	if _, ok := news.ParseMarket(market); !ok {
		cfg.warnf("%s.%s: unknown market %q, using global", section, name, market)
	}
}
