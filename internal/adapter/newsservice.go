package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/x18815379395-wq/global-news-market-app/internal/feed"
	"github.com/x18815379395-wq/global-news-market-app/internal/news"
	"github.com/x18815379395-wq/global-news-market-app/internal/ratelimit"
	"github.com/x18815379395-wq/global-news-market-app/internal/transport"
)

const (
	DefaultNewsServiceName     = "news-service"
	DefaultNewsServiceEndpoint = "https://newsapi.org/v2/everything"
	DefaultNewsServiceRate     = time.Second
	DefaultPageSize            = 25
	DefaultPages               = 2
	DefaultLookbackDays        = 2
)

// DefaultNewsSources maps markets to provider source ids.
var DefaultNewsSources = map[news.Market]string{
	news.MarketUS:     "the-wall-street-journal,bloomberg,reuters,financial-times,cnn,cnbc",
	news.MarketGlobal: "the-wall-street-journal,bloomberg,reuters,financial-times,cnn,cnbc",
	news.MarketJapan:  "reuters,bloomberg",
	news.MarketKorea:  "reuters,bloomberg",
	news.MarketAShare: "reuters,bloomberg,financial-times",
	news.MarketCrypto: "coindesk,the-block",
}

type NewsServiceConfig struct {
	Name            string
	Endpoint        string
	APIKey          string
	SourcesByMarket map[news.Market]string
	DefaultSources  string
	RateLimit       time.Duration
	PageSize        int
	Pages           int
	LookbackDays    int
	Language        string
	ExtraParams     map[string]string
}

// NewsServiceAdapter queries a NewsAPI-compatible REST endpoint for every
// requested market, paginating until a short page or the page budget.
type NewsServiceAdapter struct {
	cfg     NewsServiceConfig
	fetcher Fetcher
	limiter *ratelimit.Limiter
	log     logrus.FieldLogger
}

func NewNewsServiceAdapter(cfg NewsServiceConfig, fetcher Fetcher, limiter *ratelimit.Limiter, log logrus.FieldLogger) *NewsServiceAdapter {
	if cfg.Name == "" {
		cfg.Name = DefaultNewsServiceName
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultNewsServiceEndpoint
	}
	if cfg.SourcesByMarket == nil {
		cfg.SourcesByMarket = DefaultNewsSources
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultNewsServiceRate
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Pages <= 0 {
		cfg.Pages = DefaultPages
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if limiter == nil {
		limiter = ratelimit.New()
	}
	limiter.Configure(cfg.Name, cfg.RateLimit)
	return &NewsServiceAdapter{cfg: cfg, fetcher: fetcher, limiter: limiter, log: discardLogger(log).WithField("adapter", cfg.Name)}
}

func (a *NewsServiceAdapter) Name() string { return a.cfg.Name }

type newsServicePayload struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func (a *NewsServiceAdapter) Fetch(ctx context.Context, c news.Criteria, now time.Time) ([]news.Item, news.Health) {
	if strings.TrimSpace(a.cfg.APIKey) == "" {
		a.log.Warn(ErrMissingAPIKey.Error())
		return nil, news.Failed(a.cfg.Name, ErrMissingAPIKey)
	}
	if !c.IncludeFinancial {
		return nil, news.Skipped(a.cfg.Name)
	}

	start := time.Now()
	var (
		collected []news.Item
		lastErr   error
	)
markets:
	for _, m := range c.Markets {
		sources, ok := a.cfg.SourcesByMarket[m]
		if !ok {
			sources = a.cfg.DefaultSources
		}
		if sources == "" {
			continue
		}

		for page := 1; page <= a.cfg.Pages; page++ {
			if err := a.limiter.Wait(ctx, a.cfg.Name); err != nil {
				lastErr = err
				break markets
			}
			payload, err := a.page(ctx, sources, page, now)
			if err != nil {
				lastErr = err
				a.log.WithFields(logrus.Fields{"market": m, "page": page, "error": err}).Warn("news service page failed")
				break
			}
			if payload == nil {
				break
			}
			for _, art := range payload.Articles {
				if strings.TrimSpace(art.Title) == "" || strings.TrimSpace(art.Description) == "" {
					continue
				}
				link := feed.CanonicalURL(art.URL)
				if link == "" {
					continue
				}
				source := art.Source.Name
				if source == "" {
					source = "news"
				}
				collected = append(collected, news.Item{
					Title:       strings.TrimSpace(art.Title),
					Description: strings.TrimSpace(art.Description),
					URL:         link,
					Source:      source,
					ContentType: news.FinancialNews,
					Market:      m,
					PublishedAt: parseTimestamp(art.PublishedAt),
					Metadata:    map[string]string{"provider": "newsapi"},
				})
			}
			if len(payload.Articles) < a.cfg.PageSize {
				break
			}
		}
	}
	return collected, report(a.cfg.Name, collected, lastErr, start, now)
}

// page fetches one result page; nil, nil means the upstream had nothing new.
func (a *NewsServiceAdapter) page(ctx context.Context, sources string, page int, now time.Time) (*newsServicePayload, error) {
	params := url.Values{}
	params.Set("sources", sources)
	params.Set("language", a.cfg.Language)
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(a.cfg.PageSize))
	params.Set("page", strconv.Itoa(page))
	params.Set("from", now.AddDate(0, 0, -a.cfg.LookbackDays).UTC().Format("2006-01-02"))
	params.Set("to", now.UTC().Format("2006-01-02"))
	for k, v := range a.cfg.ExtraParams {
		params.Set(k, v)
	}

	resp, err := a.fetcher.Fetch(ctx, a.cfg.Endpoint+"?"+params.Encode(),
		transport.WithHeader("X-Api-Key", a.cfg.APIKey),
		transport.WithHeader("Accept", "application/json"),
	)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	var payload newsServicePayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("decoding news service response: %w", err)
	}
	if payload.Status == "error" {
		return nil, fmt.Errorf("news service error %s: %s", payload.Code, payload.Message)
	}
	return &payload, nil
}

func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return news.Time(t)
}
