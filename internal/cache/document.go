package cache

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

// entryDoc is one persisted result. Key is set only in the legacy
// single-entry document.
type entryDoc struct {
	Key         string        `json:"key,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
	Items       []news.Item   `json:"items"`
	Health      []news.Health `json:"health"`
	TS          float64       `json:"ts"`
}

type document struct {
	Version int                 `json:"version"`
	Entries map[string]entryDoc `json:"entries"`
}

// decodeDocument understands the versioned multi-entry document and the
// legacy shape that stored one entry at the root.
func decodeDocument(data []byte) (map[string]entryDoc, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	if _, ok := probe["entries"]; ok {
		var doc document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if doc.Entries == nil {
			doc.Entries = make(map[string]entryDoc)
		}
		return doc.Entries, nil
	}

	var legacy entryDoc
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, err
	}
	if legacy.Key == "" {
		return map[string]entryDoc{}, nil
	}
	key := legacy.Key
	legacy.Key = ""
	return map[string]entryDoc{key: legacy}, nil
}

// loadEntries treats a missing, unreadable or corrupt document as empty.
func (c *Cache) loadEntries(ctx context.Context) map[string]entryDoc {
	data, err := c.store.Load(ctx)
	if err != nil {
		c.log.WithError(err).Warn("cache document unavailable")
		return make(map[string]entryDoc)
	}
	if len(data) == 0 {
		return make(map[string]entryDoc)
	}
	entries, err := decodeDocument(data)
	if err != nil {
		c.log.WithError(err).WithField("location", c.store.Location()).Debug("discarding corrupt cache document")
		return make(map[string]entryDoc)
	}
	return entries
}

// EntryInfo describes one cached result without its payload.
type EntryInfo struct {
	Key        string  `json:"key"`
	AgeSeconds float64 `json:"age_seconds"`
	Items      int     `json:"items"`
}

// Snapshot is the introspection view exposed to status reporting.
type Snapshot struct {
	TTLSeconds       float64     `json:"ttl_seconds"`
	StoragePath      string      `json:"storage_path"`
	MaxEntries       int         `json:"max_entries"`
	MaxMemoryEntries int         `json:"max_memory_entries"`
	MemoryEntries    []EntryInfo `json:"memory_entries"`
	DiskEntries      []EntryInfo `json:"disk_entries"`
}

// Snapshot prunes expired memory entries and reports the live entries of
// both tiers, youngest first.
func (c *Cache) Snapshot(ctx context.Context) Snapshot {
	now := c.now()
	snap := Snapshot{
		TTLSeconds:       c.opts.TTL.Seconds(),
		StoragePath:      c.Location(),
		MaxEntries:       c.opts.MaxEntries,
		MaxMemoryEntries: c.opts.MaxMemoryEntries,
		MemoryEntries:    []EntryInfo{},
		DiskEntries:      []EntryInfo{},
	}

	c.mu.Lock()
	c.pruneMemory(now)
	for _, key := range c.memory.Keys() {
		if e, ok := c.memory.Peek(key); ok {
			snap.MemoryEntries = append(snap.MemoryEntries, EntryInfo{
				Key:        key,
				AgeSeconds: roundAge(now.Sub(e.ts)),
				Items:      len(e.result.Items),
			})
		}
	}
	c.mu.Unlock()
	sortInfos(snap.MemoryEntries)

	if c.store != nil {
		c.diskMu.Lock()
		entries := c.loadEntries(ctx)
		c.diskMu.Unlock()
		for key, e := range entries {
			age := now.Sub(fromEpoch(e.TS))
			if age >= c.opts.TTL {
				continue
			}
			snap.DiskEntries = append(snap.DiskEntries, EntryInfo{
				Key:        key,
				AgeSeconds: roundAge(age),
				Items:      len(e.Items),
			})
		}
		sortInfos(snap.DiskEntries)
		if len(snap.DiskEntries) > c.opts.MaxEntries {
			snap.DiskEntries = snap.DiskEntries[:c.opts.MaxEntries]
		}
	}
	return snap
}

func sortInfos(infos []EntryInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].AgeSeconds != infos[j].AgeSeconds {
			return infos[i].AgeSeconds < infos[j].AgeSeconds
		}
		return infos[i].Key < infos[j].Key
	})
}

func roundAge(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
