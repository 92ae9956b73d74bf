// Package feed normalizes RSS, Atom and JSON feed payloads into entries.
package feed

import (
	"bytes"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

const (
	// MaxSummaryLen bounds entry summaries, in runes.
	MaxSummaryLen = 800
	// UntitledPlaceholder replaces a missing entry title.
	UntitledPlaceholder = "Untitled"
)

// Entry is one normalized feed item.
type Entry struct {
	Title     string
	URL       string
	Summary   string
	Source    string
	Topics    []string
	Published *time.Time
	GUID      string
}

var policy = bluemonday.StrictPolicy()

// Parse decodes raw feed bytes. Entries without a usable link are skipped;
// only an undecodable document is an error.
func Parse(raw []byte, source string, topics []string) ([]Entry, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", source, err)
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		link := CanonicalURL(item.Link)
		if link == "" {
			continue
		}

		title := strings.TrimSpace(html.UnescapeString(item.Title))
		if title == "" {
			title = UntitledPlaceholder
		}

		desc := item.Description
		if desc == "" {
			desc = item.Content
		}

		var pub *time.Time
		if item.PublishedParsed != nil {
			t := item.PublishedParsed.UTC()
			pub = &t
		} else if item.UpdatedParsed != nil {
			t := item.UpdatedParsed.UTC()
			pub = &t
		}

		entries = append(entries, Entry{
			Title:     title,
			URL:       link,
			Summary:   truncate(stripHTML(desc), MaxSummaryLen),
			Source:    source,
			Topics:    append([]string(nil), topics...),
			Published: pub,
			GUID:      item.GUID,
		})
	}
	return entries, nil
}

// CanonicalURL drops the query string and keeps scheme, host, path and
// fragment. Non-http(s) or unparseable links yield "".
func CanonicalURL(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.RawQuery = ""
	u.ForceQuery = false
	return u.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func stripHTML(s string) string {
	text := html.UnescapeString(policy.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}
