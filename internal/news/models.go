package news

import "time"

// Item is the normalized unit of content shared by every source.
// URL is canonical and is the only deduplication key.
type Item struct {
	Title               string             `json:"title"`
	Description         string             `json:"description"`
	URL                 string             `json:"url"`
	Source              string             `json:"source"`
	ContentType         ContentType        `json:"content_type"`
	Market              Market             `json:"market"`
	PublishedAt         *time.Time         `json:"published_at"`
	Metadata            map[string]string  `json:"metadata"`
	Topics              []string           `json:"topics"`
	RelevanceScore      *float64           `json:"relevance_score"`
	SemanticSimilarity  *float64           `json:"semantic_similarity"`
	SentimentScore      *float64           `json:"sentiment_score,omitempty"`
	SentimentLabel      SentimentLabel     `json:"sentiment_label,omitempty"`
	SentimentDimensions map[string]float64 `json:"sentiment_dimensions,omitempty"`
}

// Score returns the relevance score, treating unscored items as 0.
func (it Item) Score() float64 {
	if it.RelevanceScore == nil {
		return 0
	}
	return *it.RelevanceScore
}

// Criteria describes what a single pipeline run asks of the adapters.
type Criteria struct {
	Markets          []Market
	Limit            int
	Languages        []string
	IncludeSocial    bool
	IncludeFinancial bool
}

// NewCriteria returns criteria that include both social and financial content.
func NewCriteria(markets []Market, limit int) Criteria {
	return Criteria{
		Markets:          markets,
		Limit:            limit,
		IncludeSocial:    true,
		IncludeFinancial: true,
	}
}

// Wants reports whether m is among the requested markets.
func (c Criteria) Wants(m Market) bool {
	for _, want := range c.Markets {
		if want == m {
			return true
		}
	}
	return false
}

// ExtraSkipped marks a status produced by an out-of-scope no-op fetch.
const ExtraSkipped = "skipped"

// Health is a per-source snapshot of the last fetch outcome.
type Health struct {
	Name           string            `json:"name"`
	Healthy        bool              `json:"healthy"`
	LastError      string            `json:"last_error,omitempty"`
	LastSuccess    *time.Time        `json:"last_success"`
	ItemsLastFetch int               `json:"items_last_fetch"`
	LatencyMS      *float64          `json:"latency_ms"`
	Extra          map[string]string `json:"extra"`
}

// Skipped returns the healthy, empty status of an adapter whose scope
// does not intersect the request.
func Skipped(name string) Health {
	return Health{
		Name:    name,
		Healthy: true,
		Extra:   map[string]string{ExtraSkipped: "true"},
	}
}

// Failed returns an unhealthy status carrying err's message.
func Failed(name string, err error) Health {
	h := Health{Name: name}
	if err != nil {
		h.LastError = err.Error()
	}
	return h
}

// IsSkipped reports whether h came from an out-of-scope no-op fetch.
func (h Health) IsSkipped() bool {
	return h.Extra[ExtraSkipped] == "true"
}

// Result is the immutable outcome of one pipeline run.
type Result struct {
	Items       []Item    `json:"items"`
	GeneratedAt time.Time `json:"generated_at"`
	Health      []Health  `json:"health"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Time returns a pointer to t in UTC.
func Time(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
