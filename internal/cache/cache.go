// Package cache is the two-tier pipeline result cache: a bounded in-memory
// tier in front of a persisted document tier.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

const (
	DefaultTTL              = 300 * time.Second
	DefaultMaxEntries       = 4
	DefaultMaxMemoryEntries = 10

	documentVersion = 2
)

type Options struct {
	TTL              time.Duration
	MaxEntries       int
	MaxMemoryEntries int
	Clock            func() time.Time
	Logger           logrus.FieldLogger
}

type memEntry struct {
	result news.Result
	ts     time.Time
}

// Cache is safe for concurrent use within one process. The persisted tier
// assumes a single writing process.
type Cache struct {
	opts  Options
	store Store
	log   logrus.FieldLogger
	now   func() time.Time

	mu     sync.Mutex
	memory *lru.Cache[string, memEntry]

	diskMu sync.Mutex
}

func New(store Store, opts Options) (*Cache, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.MaxMemoryEntries <= 0 {
		opts.MaxMemoryEntries = DefaultMaxMemoryEntries
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	mem, err := lru.New[string, memEntry](opts.MaxMemoryEntries)
	if err != nil {
		return nil, fmt.Errorf("creating memory tier: %w", err)
	}
	return &Cache{opts: opts, store: store, log: log, now: now, memory: mem}, nil
}

// Key is the canonical identity of a query: sorted market codes, then limit.
func Key(markets []news.Market, limit int) string {
	codes := make([]string, len(markets))
	for i, m := range markets {
		codes[i] = string(m)
	}
	sort.Strings(codes)
	return strings.Join(codes, ",") + ":" + strconv.Itoa(limit)
}

// Get looks in memory first, then in the persisted tier. A persisted hit is
// copied back into memory with its original timestamp.
func (c *Cache) Get(ctx context.Context, markets []news.Market, limit int) (news.Result, bool) {
	key := Key(markets, limit)
	now := c.now()

	c.mu.Lock()
	if e, ok := c.memory.Peek(key); ok {
		if c.fresh(e.ts, now) {
			c.mu.Unlock()
			return e.result, true
		}
		c.memory.Remove(key)
	}
	c.mu.Unlock()

	if c.store == nil {
		return news.Result{}, false
	}

	c.diskMu.Lock()
	entries := c.loadEntries(ctx)
	c.diskMu.Unlock()

	e, ok := entries[key]
	if !ok {
		return news.Result{}, false
	}
	ts := fromEpoch(e.TS)
	if !c.fresh(ts, now) {
		return news.Result{}, false
	}

	result := news.Result{Items: e.Items, GeneratedAt: e.GeneratedAt, Health: e.Health}
	c.mu.Lock()
	c.memory.Add(key, memEntry{result: result, ts: ts})
	c.pruneMemory(now)
	c.mu.Unlock()
	return result, true
}

// Set writes result through both tiers. Only persistence can fail; the
// memory tier is always updated.
func (c *Cache) Set(ctx context.Context, markets []news.Market, limit int, result news.Result) error {
	key := Key(markets, limit)
	now := c.now()

	c.mu.Lock()
	c.memory.Add(key, memEntry{result: result, ts: now})
	c.pruneMemory(now)
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}

	c.diskMu.Lock()
	defer c.diskMu.Unlock()

	entries := c.loadEntries(ctx)
	entries[key] = entryDoc{
		GeneratedAt: result.GeneratedAt,
		Items:       result.Items,
		Health:      result.Health,
		TS:          toEpoch(now),
	}
	entries = c.pruneEntries(entries, now)

	data, err := json.Marshal(document{Version: documentVersion, Entries: entries})
	if err != nil {
		return fmt.Errorf("encoding cache document: %w", err)
	}
	if err := c.store.Save(ctx, data); err != nil {
		return err
	}
	return nil
}

// Location describes where the persisted tier lives.
func (c *Cache) Location() string {
	if c.store == nil {
		return ""
	}
	return c.store.Location()
}

// TTL returns the configured time to live.
func (c *Cache) TTL() time.Duration { return c.opts.TTL }

func (c *Cache) fresh(ts, now time.Time) bool {
	return now.Sub(ts) < c.opts.TTL
}

// pruneMemory drops expired entries. The LRU bound keeps only the most
// recently inserted entries; reads use Peek so they never reorder.
func (c *Cache) pruneMemory(now time.Time) {
	for _, key := range c.memory.Keys() {
		if e, ok := c.memory.Peek(key); ok && !c.fresh(e.ts, now) {
			c.memory.Remove(key)
		}
	}
}

func (c *Cache) pruneEntries(entries map[string]entryDoc, now time.Time) map[string]entryDoc {
	type kv struct {
		key string
		e   entryDoc
	}
	live := make([]kv, 0, len(entries))
	for k, e := range entries {
		if c.fresh(fromEpoch(e.TS), now) {
			live = append(live, kv{k, e})
		}
	}
	if len(live) > c.opts.MaxEntries {
		sort.Slice(live, func(i, j int) bool {
			if live[i].e.TS != live[j].e.TS {
				return live[i].e.TS > live[j].e.TS
			}
			return live[i].key < live[j].key
		})
		live = live[:c.opts.MaxEntries]
	}
	out := make(map[string]entryDoc, len(live))
	for _, p := range live {
		out[p.key] = p.e
	}
	return out
}

func toEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromEpoch(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9))
}
