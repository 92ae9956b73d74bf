package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/x18815379395-wq/global-news-market-app/internal/config"
	"github.com/x18815379395-wq/global-news-market-app/internal/news"
	"github.com/x18815379395-wq/global-news-market-app/internal/store"
)

var (
	flagPruneOlderThan string

	flagHistorySince   string
	flagHistoryMarkets []string
	flagHistorySources []string
	flagHistorySearch  string
	flagHistoryLimit   int
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old items from the local archive",
	Long: `Delete archived items older than the retention period and reclaim disk space.

Uses the retention value from config (default: 30d) unless overridden with --older-than.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		db, err := store.Open(cfg.Archive.Path)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer db.Close()

		retention := cfg.Archive.Retention.D()
		if flagPruneOlderThan != "" {
			d, err := parseSince(flagPruneOlderThan)
			if err != nil {
				return fmt.Errorf("invalid --older-than value: %w", err)
			}
			retention = d
		}

		deleted, err := db.Prune(retention)
		if err != nil {
			return fmt.Errorf("pruning: %w", err)
		}

		out := cmd.OutOrStdout()
		if deleted == 0 {
			fmt.Fprintln(out, "Nothing to prune.")
		} else {
			fmt.Fprintf(out, "Pruned %d item(s) older than %s.\n", deleted, formatDuration(retention))
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archive statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		dbPath := cfg.Archive.Path
		db, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer db.Close()

		count, size, err := db.Stats(dbPath)
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Archive: %s\n", dbPath)
		fmt.Fprintf(out, "Items: %d\n", count)
		fmt.Fprintf(out, "Size: %s\n", formatBytes(size))
		if last, ok := db.LastRun(); ok {
			fmt.Fprintf(out, "Last watch run: %s ago\n", formatAge(&last, time.Now()))
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query previously fetched items from the archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		db, err := store.Open(cfg.Archive.Path)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer db.Close()

		now := time.Now()
		opts := store.QueryOpts{
			Sources: splitTokens(flagHistorySources),
			Search:  flagHistorySearch,
			Limit:   flagHistoryLimit,
		}
		if flagHistorySince != "" {
			d, err := parseSince(flagHistorySince)
			if err != nil {
				return fmt.Errorf("invalid --since value: %w", err)
			}
			opts.Since = now.Add(-d)
		}
		for _, tok := range splitTokens(flagHistoryMarkets) {
			m, ok := news.ParseMarket(tok)
			if !ok {
				return fmt.Errorf("unknown market %q", tok)
			}
			opts.Markets = append(opts.Markets, m)
		}

		items, err := db.GetItems(opts)
		if err != nil {
			return fmt.Errorf("querying archive: %w", err)
		}
		return renderItems(cmd.OutOrStdout(), items, now)
	},
}

func init() {
	pruneCmd.Flags().StringVar(&flagPruneOlderThan, "older-than", "", "override retention period (e.g., 30d, 720h)")

	historyCmd.Flags().StringVar(&flagHistorySince, "since", "7d", "only items published within the duration")
	historyCmd.Flags().StringSliceVarP(&flagHistoryMarkets, "markets", "m", nil, "filter by market")
	historyCmd.Flags().StringSliceVar(&flagHistorySources, "source", nil, "filter by source name")
	historyCmd.Flags().StringVarP(&flagHistorySearch, "search", "s", "", "match title or description")
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 50, "maximum items")
}

// parseSince accepts Go durations plus a whole-day "Nd" form.
func parseSince(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
