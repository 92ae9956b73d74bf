package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/x18815379395-wq/global-news-market-app/internal/classify"
	"github.com/x18815379395-wq/global-news-market-app/internal/news"
	"github.com/x18815379395-wq/global-news-market-app/internal/status"
)

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorGreen   = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"}

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	okStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	errStyle     = lipgloss.NewStyle().Foreground(colorAccent)
)

const titleWidth = 72

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
}

func heading(w io.Writer, text string) {
	fmt.Fprintln(w, headingStyle.Render(text))
}

func renderItems(w io.Writer, items []news.Item, now time.Time) error {
	if len(items) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No items."))
		return nil
	}
	t := newTable(w)
	t.Header([]string{"#", "Score", "Sentiment", "Market", "Category", "Source", "Age", "Title"})
	for i, it := range items {
		if err := t.Append([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(it.Score(), 'f', 2, 64),
			sentimentCell(it),
			string(it.Market),
			string(classify.Of(it)),
			truncate(it.Source, 24),
			formatAge(it.PublishedAt, now),
			truncate(it.Title, titleWidth),
		}); err != nil {
			return err
		}
	}
	return t.Render()
}

func renderHealth(w io.Writer, health []news.Health) error {
	t := newTable(w)
	t.Header([]string{"Adapter", "Status", "Items", "Latency", "Error"})
	for _, h := range health {
		state := "ok"
		switch {
		case h.IsSkipped():
			state = "skipped"
		case !h.Healthy:
			state = "failing"
		}
		latency := "-"
		if h.LatencyMS != nil {
			latency = fmt.Sprintf("%.0fms", *h.LatencyMS)
		}
		if err := t.Append([]string{h.Name, state, strconv.Itoa(h.ItemsLastFetch), latency, truncate(h.LastError, 60)}); err != nil {
			return err
		}
	}
	return t.Render()
}

func renderSchedules(w io.Writer, schedules []status.ScheduleStatus, now time.Time) error {
	t := newTable(w)
	t.Header([]string{"Source", "Priority", "Interval", "Streak", "Next", "Due"})
	for _, s := range schedules {
		streak := fmt.Sprintf("+%d", s.SuccessStreak)
		if s.FailureStreak > 0 {
			streak = fmt.Sprintf("-%d", s.FailureStreak)
		}
		due := ""
		if s.Due {
			due = "yes"
		}
		next := "now"
		if d := s.NextFetch.Sub(now); d > 0 {
			next = "in " + d.Round(time.Second).String()
		}
		if err := t.Append([]string{
			s.Name,
			strconv.FormatFloat(s.Priority, 'f', 1, 64),
			(time.Duration(s.IntervalSeconds) * time.Second).String(),
			streak,
			next,
			due,
		}); err != nil {
			return err
		}
	}
	return t.Render()
}

func healthSummary(health []news.Health) string {
	var ok, failing int
	for _, h := range health {
		switch {
		case h.IsSkipped():
		case h.Healthy:
			ok++
		default:
			failing++
		}
	}
	s := okStyle.Render(fmt.Sprintf("%d healthy", ok))
	if failing > 0 {
		s += ", " + errStyle.Render(fmt.Sprintf("%d failing", failing))
	}
	return s
}

func sentimentCell(it news.Item) string {
	if it.SentimentScore == nil {
		return "-"
	}
	return fmt.Sprintf("%s %+.2f", it.SentimentLabel, *it.SentimentScore)
}

func formatAge(t *time.Time, now time.Time) string {
	if t == nil {
		return "-"
	}
	d := now.Sub(*t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return formatDuration(d)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
