package classify

import (
	"testing"

	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		title, desc string
		want        Category
	}{
		{"Fed signals rate cut as inflation cools", "Powell says CPI is trending lower", MonetaryPolicy},
		{"Apple beats revenue forecast, raises dividend", "Quarter results", Earnings},
		{"New tariff on Chinese imports", "Trade war escalates with export curbs", Trade},
		{"Oil jumps as OPEC trims output", "", Commodities},
		{"Bitcoin tops 100k", "crypto rally", Crypto},
		{"Ceasefire talks stall", "", Geopolitics},
		{"S&P closes at record", "", Markets},
	}
	for _, tt := range tests {
		if got := Classify(tt.title, tt.desc); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.title, got, tt.want)
		}
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	if cat := Classify("", ""); cat != Markets {
		t.Errorf("expected Markets for empty input, got %s", cat)
	}
}

func TestClassifyWholeTokens(t *testing.T) {
	if cat := Classify("New software release", ""); cat != Markets {
		t.Errorf("substring match leaked into %s", cat)
	}
}

func TestClassifyTieGoesToEarlierCategory(t *testing.T) {
	if cat := Classify("Fed gold", ""); cat != MonetaryPolicy {
		t.Errorf("expected Monetary Policy on tie, got %s", cat)
	}
}

func TestClassifyTitleWeightedHigher(t *testing.T) {
	cat := Classify("Oil slides", "bitcoin, ethereum and crypto funds mentioned in passing")
	if cat != Crypto {
		t.Fatalf("three description hits should beat one title hit, got %s", cat)
	}
	cat = Classify("Oil and gold slide", "bitcoin mentioned in passing")
	if cat != Commodities {
		t.Errorf("expected Commodities from title keywords, got %s", cat)
	}
}

func TestTag(t *testing.T) {
	shared := map[string]string{"feed": "wsj"}
	items := []news.Item{
		{Title: "Oil jumps", Metadata: shared},
		{Title: "Fed holds", Metadata: map[string]string{MetadataKey: "Custom"}},
		{Title: "Bitcoin slips"},
	}
	Tag(items)

	if got := Of(items[0]); got != Commodities {
		t.Errorf("items[0] = %q", got)
	}
	if items[0].Metadata["feed"] != "wsj" {
		t.Error("existing metadata dropped")
	}
	if _, ok := shared[MetadataKey]; ok {
		t.Error("shared metadata map was modified")
	}
	if got := Of(items[1]); got != "Custom" {
		t.Errorf("existing category overwritten: %q", got)
	}
	if got := Of(items[2]); got != Crypto {
		t.Errorf("items[2] = %q", got)
	}
}

func TestResolveAlias(t *testing.T) {
	tests := []struct {
		alias    string
		expected Category
		wantErr  bool
	}{
		{"fed", MonetaryPolicy, false},
		{"rates", MonetaryPolicy, false},
		{"earnings", Earnings, false},
		{"trade", Trade, false},
		{"commodities", Commodities, false},
		{"crypto", Crypto, false},
		{"geo", Geopolitics, false},
		{"markets", Markets, false},
		{"Monetary Policy", MonetaryPolicy, false}, // full name
		{" GEOPOLITICS ", Geopolitics, false},
		{"bogus", "", true},
	}

	for _, tt := range tests {
		got, err := ResolveAlias(tt.alias)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ResolveAlias(%q): expected error", tt.alias)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResolveAlias(%q): unexpected error: %v", tt.alias, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ResolveAlias(%q) = %q, want %q", tt.alias, got, tt.expected)
		}
	}
}

func TestAllCategories(t *testing.T) {
	cats := AllCategories()
	if len(cats) != 7 {
		t.Errorf("expected 7 categories, got %d", len(cats))
	}
	for _, c := range cats {
		if len(categoryKeywords[c]) == 0 {
			t.Errorf("category %s has no keywords", c)
		}
	}
}
