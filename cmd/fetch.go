package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/x18815379395-wq/global-news-market-app/internal/classify"
	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

var (
	flagMarkets []string
	flagLimit   int
	flagRefresh bool
	flagJSON    bool
	flagSince   string
	flagFocus   string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run the pipeline once and print the merged items",
	Long: `Run one pipeline query. Results come from the cache while fresh; use
--refresh to bypass it. Unknown market tokens fall back to global.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringSliceVarP(&flagMarkets, "markets", "m", nil, "markets to query (global, us, a_share, ...); defaults to config")
	fetchCmd.Flags().IntVarP(&flagLimit, "limit", "n", 0, "maximum items to return; defaults to config")
	fetchCmd.Flags().BoolVar(&flagRefresh, "refresh", false, "skip the cache lookup")
	fetchCmd.Flags().BoolVar(&flagJSON, "json", false, "print the raw result as JSON")
	fetchCmd.Flags().StringVar(&flagSince, "since", "", "only show items published within the duration (e.g., 7d, 24h)")
	fetchCmd.Flags().StringVar(&flagFocus, "focus", "", "only show one category (fed, earnings, trade, commodities, crypto, geo, markets)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var since time.Duration
	if flagSince != "" {
		since, err = parseSince(flagSince)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
	}

	var focus classify.Category
	if flagFocus != "" {
		focus, err = classify.ResolveAlias(flagFocus)
		if err != nil {
			return err
		}
	}

	markets := a.cfg.Settings.Markets()
	if len(flagMarkets) > 0 {
		markets = news.ResolveMarkets(splitTokens(flagMarkets), a.log)
	}

	ctx := cmd.Context()
	var res news.Result
	if flagRefresh {
		res = a.pipeline.Refresh(ctx, markets, flagLimit)
	} else {
		res = a.pipeline.Run(ctx, markets, flagLimit)
	}

	now := time.Now()
	if since > 0 {
		res.Items = publishedWithin(res.Items, now.Add(-since))
	}
	if focus != "" {
		res.Items = inCategory(res.Items, focus)
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	heading(out, fmt.Sprintf("%d items for %s", len(res.Items), joinMarkets(markets)))
	if err := renderItems(out, res.Items, now); err != nil {
		return err
	}
	if len(res.Health) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, healthSummary(res.Health))
	}
	return nil
}

// publishedWithin keeps items published at or after cutoff. Undated items
// are kept.
func publishedWithin(items []news.Item, cutoff time.Time) []news.Item {
	out := items[:0:0]
	for _, it := range items {
		if it.PublishedAt == nil || !it.PublishedAt.Before(cutoff) {
			out = append(out, it)
		}
	}
	return out
}

// inCategory keeps items of category c. Entries cached before tagging are
// classified on the fly, on a copy since items may be owned by the cache.
func inCategory(items []news.Item, c classify.Category) []news.Item {
	out := items[:0:0]
	for _, it := range classify.Tag(append([]news.Item(nil), items...)) {
		if classify.Of(it) == c {
			out = append(out, it)
		}
	}
	return out
}

// splitTokens accepts both repeated flags and comma or space separated lists.
func splitTokens(raw []string) []string {
	var out []string
	for _, r := range raw {
		out = append(out, strings.FieldsFunc(r, func(c rune) bool { return c == ',' || c == ' ' })...)
	}
	return out
}

func joinMarkets(ms []news.Market) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}
