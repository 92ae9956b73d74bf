package adapter

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// TimelineSelectors locate posts inside a rendered profile page.
type TimelineSelectors struct {
	Item string
	Link string
	Text string
	Time string
}

// DefaultTimelineSelectors match the markup of common timeline mirrors.
var DefaultTimelineSelectors = TimelineSelectors{
	Item: "article, .timeline-item",
	Link: "a[href*='/status/']",
	Text: ".tweet-content, [data-testid='tweetText'], .status-content",
	Time: "time",
}

// HTMLTimeline is a TimelineFetcher that scrapes a server-rendered profile
// page. URLTemplate must contain "{handle}".
type HTMLTimeline struct {
	URLTemplate string
	Selectors   TimelineSelectors
	Fetcher     Fetcher
}

func NewHTMLTimeline(urlTemplate string, sel TimelineSelectors, f Fetcher) (*HTMLTimeline, error) {
	if !strings.Contains(urlTemplate, "{handle}") {
		return nil, fmt.Errorf("timeline url template %q has no {handle} placeholder", urlTemplate)
	}
	if sel.Item == "" {
		sel.Item = DefaultTimelineSelectors.Item
	}
	if sel.Link == "" {
		sel.Link = DefaultTimelineSelectors.Link
	}
	if sel.Text == "" {
		sel.Text = DefaultTimelineSelectors.Text
	}
	if sel.Time == "" {
		sel.Time = DefaultTimelineSelectors.Time
	}
	return &HTMLTimeline{URLTemplate: urlTemplate, Selectors: sel, Fetcher: f}, nil
}

func (h *HTMLTimeline) FetchTimeline(ctx context.Context, handle string, limit int) ([]RawPost, error) {
	pageURL := strings.ReplaceAll(h.URLTemplate, "{handle}", url.PathEscape(handle))
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing timeline url: %w", err)
	}

	resp, err := h.Fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing timeline html: %w", err)
	}

	var posts []RawPost
	seen := make(map[string]bool)
	doc.Find(h.Selectors.Item).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Find(h.Selectors.Link).First().Attr("href")
		if !ok {
			return true
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref)
		abs.RawQuery = ""
		abs.Fragment = ""
		link := abs.String()
		if seen[link] {
			return true
		}
		seen[link] = true

		post := RawPost{
			URL:    link,
			PostID: path.Base(abs.Path),
			Text:   strings.Join(strings.Fields(s.Find(h.Selectors.Text).First().Text()), " "),
		}
		if ts, ok := s.Find(h.Selectors.Time).First().Attr("datetime"); ok {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				u := t.UTC()
				post.PostedAt = &u
			}
		}
		posts = append(posts, post)
		return limit <= 0 || len(posts) < limit
	})
	return posts, nil
}
