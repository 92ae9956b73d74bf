package news

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseMarket(t *testing.T) {
	tests := []struct {
		input string
		want  Market
		ok    bool
	}{
		{"us", MarketUS, true},
		{" JAPAN ", MarketJapan, true},
		{"a_share", MarketAShare, true},
		{"a-share", MarketAShare, true},
		{"crypto", MarketCrypto, true},
		{"mars", MarketGlobal, false},
		{"", MarketGlobal, false},
	}
	for _, tt := range tests {
		got, ok := ParseMarket(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseMarket(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestResolveMarketsDedupsAndFallsBack(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	got := ResolveMarkets([]string{"us", "unknown", "US", "global", "", "korea"}, log)
	want := []Market{MarketUS, MarketGlobal, MarketKorea}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestUnknownEnumsDecodeToDefaults(t *testing.T) {
	var it Item
	raw := `{"title":"t","url":"https://x/1","market":"moon","content_type":"podcast"}`
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if it.Market != MarketGlobal {
		t.Errorf("expected global market, got %q", it.Market)
	}
	if it.ContentType != FinancialNews {
		t.Errorf("expected financial-news, got %q", it.ContentType)
	}
}

func TestCriteriaWants(t *testing.T) {
	c := NewCriteria([]Market{MarketUS, MarketCrypto}, 10)
	if !c.Wants(MarketCrypto) {
		t.Error("expected crypto to be wanted")
	}
	if c.Wants(MarketJapan) {
		t.Error("did not expect japan to be wanted")
	}
	if !c.IncludeSocial || !c.IncludeFinancial {
		t.Error("expected both content flags to default to true")
	}
}

func TestSkippedStatus(t *testing.T) {
	h := Skipped("rss:wsj")
	if !h.Healthy || !h.IsSkipped() || h.ItemsLastFetch != 0 {
		t.Errorf("unexpected skipped status: %+v", h)
	}
	if Failed("x", nil).IsSkipped() {
		t.Error("failed status must not be flagged as skipped")
	}
}
