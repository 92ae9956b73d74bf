package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

const minWatchWait = 5 * time.Second

var flagMetricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the cache warm for the default markets",
	Long: `Refresh the default markets whenever a source becomes due according to
its adaptive schedule. With --metrics-addr, /metrics and /status are
served over HTTP until interrupted.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "listen address for /metrics and /status (e.g., :9108)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagMetricsAddr != "" {
		srv := a.httpServer(flagMetricsAddr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.WithError(err).Error("metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		a.log.WithField("addr", flagMetricsAddr).Info("serving metrics")
	}

	a.pruneArchive()
	markets := a.cfg.Settings.Markets()
	for {
		_, wait := a.tick(ctx, markets, time.Now())
		a.log.WithField("wait", wait.Round(time.Second).String()).Debug("sleeping")
		select {
		case <-ctx.Done():
			a.log.Info("shutting down")
			return nil
		case <-time.After(wait):
		}
	}
}

// tick refreshes markets if any scheduled source is due at now and
// returns how long to wait before the next tick. Every source the run
// dispatches to is marked fetched, skipped ones included, so a source
// in backoff does not keep the loop spinning.
func (a *app) tick(ctx context.Context, markets []news.Market, now time.Time) (bool, time.Duration) {
	due := a.scheduler.Due(now)
	if len(due) > 0 {
		a.log.WithField("due", due).Info("refreshing")
		a.pipeline.Refresh(ctx, markets, 0)
		for _, name := range a.pipeline.AdaptersFor(markets) {
			a.scheduler.MarkFetched(name, now)
		}
		if a.archive != nil {
			if err := a.archive.SetLastRun(now); err != nil {
				a.log.WithError(err).Warn("recording last run")
			}
		}
	}
	return len(due) > 0, max(a.scheduler.WaitTime(now), minWatchWait)
}

func (a *app) pruneArchive() {
	if a.archive == nil {
		return
	}
	retention := a.cfg.Archive.Retention.D()
	deleted, err := a.archive.Prune(retention)
	if err != nil {
		a.log.WithError(err).Warn("pruning archive")
		return
	}
	if deleted > 0 {
		a.log.WithFields(logrus.Fields{"deleted": deleted, "older_than": formatDuration(retention)}).Info("pruned archive")
	}
}

func (a *app) httpServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(a.statusReport(r.Context())); err != nil {
			a.log.WithError(err).Warn("writing status")
		}
	})
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
