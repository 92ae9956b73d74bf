package relevance

import "github.com/x18815379395-wq/global-news-market-app/internal/news"

// BaseKeywords is the shared set used by markets without a dedicated list.
var BaseKeywords = []string{
	"stock", "market", "finance", "economy", "tariff", "china",
	"fed", "inflation", "trade", "ipo", "earnings", "geopolitics",
}

var aShareKeywords = []string{
	"semiconductor export ban", "EV subsidy China", "China tech policy", "A-share market",
	"Shanghai Composite", "Shenzhen Component", "Chinese economy", "Beijing policy",
	"Made in China 2025", "Belt and Road Initiative", "Chinese manufacturing",
	"Shanghai-Hong Kong Stock Connect", "RMB internationalization", "Taiwan tensions",
	"China-US trade", "Chinese infrastructure", "New Energy Vehicle", "5G deployment China",
	"semiconductor supply chain", "lithium battery", "solar panel", "wind turbine",
	"AI chip", "supercomputer", "quantum computing", "biotech China", "pharma China",
	"financial markets", "stock market", "trading", "investing", "economy", "finance",
	"market analysis", "trading strategy", "equity markets", "bond markets", "commodities",
	"currencies", "forex", "derivatives", "options", "futures", "portfolio", "assets",
	"returns", "volatility", "risk management", "hedge fund", "mutual fund", "etf",
	"ipo", "earnings", "revenue", "profit", "valuation", "pe ratio", "dividend",
	"market cap", "bull market", "bear market", "correction", "recession", "inflation",
	"interest rates", "fed rate", "monetary policy", "fiscal policy", "gdp", "unemployment",
}

func withBase(extra ...string) []string {
	out := make([]string, 0, len(BaseKeywords)+len(extra))
	out = append(out, BaseKeywords...)
	return append(out, extra...)
}

// DefaultKeywords returns a fresh copy of the per-market keyword table.
func DefaultKeywords() map[news.Market][]string {
	return map[news.Market][]string{
		news.MarketAShare: append([]string(nil), aShareKeywords...),
		news.MarketUS:     withBase("S&P", "Dow", "Treasury"),
		news.MarketJapan:  withBase("Nikkei", "BOJ"),
		news.MarketKorea:  withBase("KOSPI", "Samsung"),
		news.MarketGlobal: withBase(),
		news.MarketCrypto: {"bitcoin", "ethereum", "token", "defi"},
	}
}
