// Package classify assigns a coarse market category to an item from the
// keywords in its title and description.
package classify

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"unicode"

	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

// MetadataKey is the item metadata field Tag writes.
const MetadataKey = "category"

// Category represents an item classification.
type Category string

const (
	MonetaryPolicy Category = "Monetary Policy"
	Earnings       Category = "Earnings"
	Trade          Category = "Trade"
	Commodities    Category = "Commodities"
	Crypto         Category = "Crypto"
	Geopolitics    Category = "Geopolitics"
	Markets        Category = "Markets"
)

// AllCategories returns all valid categories in canonical order.
func AllCategories() []Category {
	return []Category{MonetaryPolicy, Earnings, Trade, Commodities, Crypto, Geopolitics, Markets}
}

var categoryKeywords = map[Category][]string{
	MonetaryPolicy: {
		"fed", "fomc", "central bank", "rate cut", "rate hike", "interest rate",
		"inflation", "cpi", "powell", "ecb", "boj", "pboc", "yield", "treasury",
		"monetary", "quantitative", "liquidity",
	},
	Earnings: {
		"earnings", "revenue", "profit", "guidance", "quarter", "eps", "dividend",
		"buyback", "forecast", "outlook", "beat", "miss", "results",
	},
	Trade: {
		"tariff", "trade war", "export", "import", "sanction", "trade deal",
		"supply chain", "customs", "wto", "embargo",
	},
	Commodities: {
		"oil", "crude", "opec", "gold", "copper", "natural gas", "lithium",
		"wheat", "commodity", "brent", "wti",
	},
	Crypto: {
		"bitcoin", "ethereum", "crypto", "token", "defi", "stablecoin", "blockchain",
		"etf inflow", "halving",
	},
	Geopolitics: {
		"election", "war", "conflict", "taiwan", "geopolitic", "summit",
		"diplomat", "ceasefire", "nato", "missile",
	},
	Markets: {
		"stock", "shares", "index", "rally", "selloff", "s&p", "nasdaq", "dow",
		"nikkei", "kospi", "shanghai", "ipo", "volatility", "bond",
	},
}

// FocusAliases maps short CLI flags to full category names.
var FocusAliases = map[string]Category{
	"fed":         MonetaryPolicy,
	"rates":       MonetaryPolicy,
	"earnings":    Earnings,
	"trade":       Trade,
	"commodities": Commodities,
	"crypto":      Crypto,
	"geo":         Geopolitics,
	"markets":     Markets,
}

// ResolveAlias maps a CLI alias to a Category.
func ResolveAlias(alias string) (Category, error) {
	alias = strings.ToLower(strings.TrimSpace(alias))
	if cat, ok := FocusAliases[alias]; ok {
		return cat, nil
	}
	for _, cat := range AllCategories() {
		if strings.EqualFold(string(cat), alias) {
			return cat, nil
		}
	}
	valid := make([]string, 0, len(FocusAliases))
	for k := range FocusAliases {
		valid = append(valid, k)
	}
	sort.Strings(valid)
	return "", fmt.Errorf("unknown focus %q (valid: %s)", alias, strings.Join(valid, ", "))
}

// Classify determines the category of an item from its title and description.
// Title keywords are weighted 2x. Returns Markets as default.
func Classify(title, description string) Category {
	titleTokens := tokenize(title)
	descTokens := tokenize(description)
	titleLower := strings.ToLower(title)
	descLower := strings.ToLower(description)

	var bestCat Category
	bestScore := 0

	for _, cat := range AllCategories() {
		score := 0
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(kw, " ") {
				if strings.Contains(titleLower, kw) {
					score += 2
				}
				if strings.Contains(descLower, kw) {
					score++
				}
				continue
			}
			// Single words must match a whole token so "war" skips "software".
			score += 2 * count(titleTokens, kw)
			score += count(descTokens, kw)
		}
		// Ties go to the earlier category.
		if score > bestScore {
			bestScore = score
			bestCat = cat
		}
	}

	if bestScore == 0 {
		return Markets
	}
	return bestCat
}

// Tag records the category of every item under MetadataKey. Items that
// already carry a category keep it. Metadata maps are copied, never shared.
func Tag(items []news.Item) []news.Item {
	for i := range items {
		it := &items[i]
		if it.Metadata[MetadataKey] != "" {
			continue
		}
		md := make(map[string]string, len(it.Metadata)+1)
		maps.Copy(md, it.Metadata)
		md[MetadataKey] = string(Classify(it.Title, it.Description))
		it.Metadata = md
	}
	return items
}

// Of returns the category Tag recorded, or "" when untagged.
func Of(it news.Item) Category {
	return Category(it.Metadata[MetadataKey])
}

func count(tokens []string, kw string) int {
	n := 0
	for _, t := range tokens {
		if t == kw {
			n++
		}
	}
	return n
}

func tokenize(s string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
		})
		if word != "" {
			tokens = append(tokens, word)
		}
	}
	return tokens
}
