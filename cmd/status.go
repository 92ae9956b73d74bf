package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagStatusJSON bool
	flagProbe      bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show adapter health, cache contents and fetch schedules",
	Long: `Print the pipeline status report. Pass --probe to run one query first
so that adapter health is populated.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&flagStatusJSON, "json", false, "print the report as JSON")
	statusCmd.Flags().BoolVar(&flagProbe, "probe", false, "run a query for the default markets before reporting")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if flagProbe {
		a.pipeline.Run(ctx, a.cfg.Settings.Markets(), 0)
	}
	report := a.statusReport(ctx)

	out := cmd.OutOrStdout()
	if flagStatusJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	heading(out, "Adapters")
	fmt.Fprintf(out, "%d registered, default markets %s, limit %d\n",
		len(report.Pipeline.Registered), joinMarkets(report.Pipeline.DefaultMarkets), report.Pipeline.DefaultLimit)
	if len(report.Pipeline.Health) > 0 {
		if err := renderHealth(out, report.Pipeline.Health); err != nil {
			return err
		}
		fmt.Fprintln(out, healthSummary(report.Pipeline.Health))
	} else {
		fmt.Fprintln(out, dimStyle.Render("No fetches this session."))
	}

	if c := report.Cache; c != nil {
		fmt.Fprintln(out)
		heading(out, "Cache")
		location := c.StoragePath
		if location == "" {
			location = "memory only"
		}
		fmt.Fprintf(out, "%s, ttl %.0fs, %d memory / %d persisted entries\n",
			location, c.TTLSeconds, len(c.MemoryEntries), len(c.DiskEntries))
	}

	if len(report.Schedules) > 0 {
		fmt.Fprintln(out)
		heading(out, "Schedules")
		return renderSchedules(out, report.Schedules, report.GeneratedAt)
	}
	return nil
}
