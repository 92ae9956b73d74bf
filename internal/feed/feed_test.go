package feed

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0">
<channel>
  <title>Markets</title>
  <item>
    <title>Fed holds rates &amp; signals patience</title>
    <link>https://news.example.com/a/1?utm_source=rss&amp;utm_medium=feed</link>
    <description>&lt;p&gt;The &lt;b&gt;Fed&lt;/b&gt; held   rates.&lt;/p&gt;</description>
    <pubDate>Mon, 02 Jan 2006 15:04:05 +0700</pubDate>
    <guid>a-1</guid>
  </item>
  <item>
    <title></title>
    <link>https://news.example.com/a/2#section</link>
  </item>
  <item>
    <title>No link</title>
  </item>
  <item>
    <title>Bad scheme</title>
    <link>ftp://news.example.com/a/3</link>
  </item>
</channel>
</rss>`

func TestParseRSS(t *testing.T) {
	entries, err := Parse([]byte(sampleRSS), "Example", []string{"macro"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Title != "Fed holds rates & signals patience" {
		t.Errorf("unexpected title %q", first.Title)
	}
	if first.URL != "https://news.example.com/a/1" {
		t.Errorf("expected query stripped, got %q", first.URL)
	}
	if first.Summary != "The Fed held rates." {
		t.Errorf("unexpected summary %q", first.Summary)
	}
	if first.Published == nil {
		t.Fatal("expected published time")
	}
	want := time.Date(2006, 1, 2, 8, 4, 5, 0, time.UTC)
	if !first.Published.Equal(want) || first.Published.Location() != time.UTC {
		t.Errorf("expected %v UTC, got %v", want, first.Published)
	}
	if first.Source != "Example" || len(first.Topics) != 1 || first.Topics[0] != "macro" {
		t.Errorf("unexpected provenance: %+v", first)
	}

	second := entries[1]
	if second.Title != UntitledPlaceholder {
		t.Errorf("expected placeholder title, got %q", second.Title)
	}
	if second.URL != "https://news.example.com/a/2#section" {
		t.Errorf("expected fragment preserved, got %q", second.URL)
	}
	if second.Published != nil {
		t.Errorf("expected nil published time, got %v", second.Published)
	}
}

func TestParseAtom(t *testing.T) {
	atom := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom</title>
  <entry>
    <title>Nikkei climbs</title>
    <link href="https://jp.example.com/n/1?ref=atom"/>
    <updated>2024-03-01T10:00:00Z</updated>
    <content type="html">&lt;div&gt;BOJ steady&lt;/div&gt;</content>
  </entry>
</feed>`
	entries, err := Parse([]byte(atom), "JP", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].URL != "https://jp.example.com/n/1" {
		t.Errorf("unexpected url %q", entries[0].URL)
	}
	if entries[0].Summary != "BOJ steady" {
		t.Errorf("unexpected summary %q", entries[0].Summary)
	}
	if entries[0].Published == nil || entries[0].Published.Hour() != 10 {
		t.Errorf("expected updated time fallback, got %v", entries[0].Published)
	}
}

func TestParseLongSummaryIsBounded(t *testing.T) {
	long := strings.Repeat("word ", 400)
	rss := `<rss version="2.0"><channel><item><title>t</title><link>https://x.example/1</link><description>` +
		long + `</description></item></channel></rss>`
	entries, err := Parse([]byte(rss), "X", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := len([]rune(entries[0].Summary)); got != MaxSummaryLen {
		t.Errorf("expected summary of %d runes, got %d", MaxSummaryLen, got)
	}
}

func TestParseGarbage(t *testing.T) {
	if _, err := Parse([]byte("definitely not a feed"), "X", nil); err == nil {
		t.Error("expected error for undecodable document")
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://a.com/x?utm=1", "https://a.com/x"},
		{"https://a.com/x?utm=1#frag", "https://a.com/x#frag"},
		{"http://a.com/", "http://a.com/"},
		{"  https://a.com/y  ", "https://a.com/y"},
		{"/relative/path", ""},
		{"mailto:someone@a.com", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CanonicalURL(tt.input); got != tt.want {
			t.Errorf("CanonicalURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is a long string", 10, "this is a "},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		got := truncate(tt.input, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
	}
}

func TestTruncateUTF8(t *testing.T) {
	input := "こんにちは世界です"
	got := truncate(input, 5)
	want := "こんにちは"
	if got != want {
		t.Errorf("truncate(%q, 5) = %q, want %q", input, got, want)
	}
}

func TestSummaryCutAtMaxLen(t *testing.T) {
	long := strings.Repeat("é", MaxSummaryLen+50)
	got := truncate(long, MaxSummaryLen)
	if n := utf8.RuneCountInString(got); n != MaxSummaryLen {
		t.Errorf("summary runes = %d, want %d", n, MaxSummaryLen)
	}
	if strings.HasSuffix(got, "...") {
		t.Error("summary ends with an ellipsis")
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"<p>Hello</p>", "Hello"},
		{"<b>Bold</b> and <i>italic</i>", "Bold and italic"},
		{"No tags here", "No tags here"},
		{"<div>  Multiple   spaces  </div>", "Multiple spaces"},
		{"", ""},
		{"<a href=\"url\">Link</a> text", "Link text"},
		{"S&amp;P 500 &gt; 5000", "S&P 500 > 5000"},
		{"<script>alert(1)</script>Safe", "Safe"},
	}
	for _, tt := range tests {
		got := stripHTML(tt.input)
		if got != tt.want {
			t.Errorf("stripHTML(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
