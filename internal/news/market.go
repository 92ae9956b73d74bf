package news

import (
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"
)

// Market identifies a trading domain used to scope adapters and keyword sets.
type Market string

const (
	MarketGlobal    Market = "global"
	MarketUS        Market = "us"
	MarketJapan     Market = "japan"
	MarketKorea     Market = "korea"
	MarketAShare    Market = "a_share"
	MarketEurope    Market = "europe"
	MarketIndia     Market = "india"
	MarketAustralia Market = "australia"
	MarketCrypto    Market = "crypto"
)

// AllMarkets returns every known market in canonical order.
func AllMarkets() []Market {
	return []Market{
		MarketGlobal, MarketUS, MarketJapan, MarketKorea, MarketAShare,
		MarketEurope, MarketIndia, MarketAustralia, MarketCrypto,
	}
}

var marketAliases = map[string]Market{
	"a-share": MarketAShare,
	"ashare":  MarketAShare,
	"usa":     MarketUS,
	"jp":      MarketJapan,
	"kr":      MarketKorea,
	"eu":      MarketEurope,
	"in":      MarketIndia,
	"au":      MarketAustralia,
}

// ParseMarket maps a token to a Market. Unknown tokens yield MarketGlobal and ok=false.
func ParseMarket(token string) (Market, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	for _, m := range AllMarkets() {
		if string(m) == t {
			return m, true
		}
	}
	if m, ok := marketAliases[t]; ok {
		return m, true
	}
	return MarketGlobal, false
}

// ResolveMarkets parses tokens into a de-duplicated market list, preserving order.
// Unrecognized tokens fall back to MarketGlobal and are logged.
func ResolveMarkets(tokens []string, log logrus.FieldLogger) []Market {
	seen := make(map[Market]bool, len(tokens))
	out := make([]Market, 0, len(tokens))
	for _, tok := range tokens {
		if strings.TrimSpace(tok) == "" {
			continue
		}
		m, ok := ParseMarket(tok)
		if !ok && log != nil {
			log.WithField("market", tok).Warn("unknown market, defaulting to global")
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func (m *Market) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m, _ = ParseMarket(s)
	return nil
}

// ContentType classifies where an item came from.
type ContentType string

const (
	FinancialNews ContentType = "financial-news"
	SocialMedia   ContentType = "social-media"
	Fallback      ContentType = "fallback"
)

// ParseContentType is total: unknown values map to FinancialNews.
func ParseContentType(s string) ContentType {
	switch ContentType(strings.ToLower(strings.TrimSpace(s))) {
	case SocialMedia:
		return SocialMedia
	case Fallback:
		return Fallback
	default:
		return FinancialNews
	}
}

func (c *ContentType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = ParseContentType(s)
	return nil
}

// SentimentLabel is the coarse polarity bucket of an item. Empty means unscored.
type SentimentLabel string

const (
	Positive SentimentLabel = "positive"
	Negative SentimentLabel = "negative"
	Neutral  SentimentLabel = "neutral"
)
