package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestWatchTickSchedulesOnlyDefaultMarketSources(t *testing.T) {
	pub := time.Now().Add(-30 * time.Minute).Format(time.RFC1123Z)
	var mu sync.Mutex
	hits := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, testFeed, pub, pub)
	}))
	defer srv.Close()

	cfgPath, _ := writeTestConfig(t, srv.URL+"/us")
	raw, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	extra := fmt.Sprintf("  coins:\n    feeds: [%s]\n    market: crypto\n", srv.URL+"/crypto")
	raw = []byte(strings.Replace(string(raw), "    market: us\n", "    market: us\n"+extra, 1))
	if err := os.WriteFile(cfgPath, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	prev := flagConfig
	flagConfig = cfgPath
	defer func() { flagConfig = prev }()

	a, err := newApp()
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	if _, ok := a.scheduler.Get("coins"); ok {
		t.Error("crypto source scheduled although crypto is not a default market")
	}
	if _, ok := a.scheduler.Get("local"); !ok {
		t.Fatal("us source not scheduled")
	}

	ctx := context.Background()
	markets := a.cfg.Settings.Markets()
	now := time.Now()

	ran, wait := a.tick(ctx, markets, now)
	if !ran {
		t.Fatal("first tick did not refresh")
	}
	if wait < minWatchWait {
		t.Errorf("wait = %v, want at least %v", wait, minWatchWait)
	}
	if due := a.scheduler.Due(now); len(due) != 0 {
		t.Errorf("still due after tick: %v", due)
	}

	for _, offset := range []time.Duration{10 * time.Second, 20 * time.Second} {
		if ran, wait := a.tick(ctx, markets, now.Add(offset)); ran {
			t.Errorf("tick at +%v refreshed again", offset)
		} else if wait <= minWatchWait {
			t.Errorf("tick at +%v: wait = %v, want the schedule's interval", offset, wait)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if hits["/us"] != 1 {
		t.Errorf("us feed hits = %d, want 1", hits["/us"])
	}
	if hits["/crypto"] != 0 {
		t.Errorf("crypto feed hits = %d, want 0", hits["/crypto"])
	}
}
