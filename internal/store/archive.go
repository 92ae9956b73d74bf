// Package store archives item metadata returned by pipeline runs in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/x18815379395-wq/global-news-market-app/internal/dedup"
	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

type Archive struct {
	readDB  *sql.DB
	writeDB *sql.DB
	now     func() time.Time
}

func Open(dbPath string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating archive dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	a := &Archive{writeDB: writeDB, now: time.Now}
	if err := a.init(); err != nil {
		writeDB.Close()
		return nil, err
	}

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}
	a.readDB = readDB
	return a, nil
}

func (a *Archive) init() error {
	_, err := a.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS items (
			id           TEXT PRIMARY KEY,
			url          TEXT NOT NULL,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			source       TEXT NOT NULL,
			market       TEXT NOT NULL,
			content_type TEXT NOT NULL,
			published    DATETIME,
			relevance    REAL,
			sentiment    REAL,
			label        TEXT NOT NULL DEFAULT '',
			fetched_at   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_items_published ON items(published DESC);
		CREATE INDEX IF NOT EXISTS idx_items_market ON items(market);
		CREATE INDEX IF NOT EXISTS idx_items_source ON items(source);

		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (a *Archive) Close() error {
	var errs []error
	if a.readDB != nil {
		errs = append(errs, a.readDB.Close())
	}
	if a.writeDB != nil {
		errs = append(errs, a.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// UpsertItems stores items keyed by the digest of their URL.
func (a *Archive) UpsertItems(items []news.Item) error {
	tx, err := a.writeDB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO items (id, url, title, description, source, market, content_type, published, relevance, sentiment, label, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			relevance = excluded.relevance,
			sentiment = excluded.sentiment,
			label = excluded.label,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	fetched := a.now().UTC()
	for _, it := range items {
		var published any
		if it.PublishedAt != nil {
			published = it.PublishedAt.UTC()
		}
		_, err := stmt.Exec(
			dedup.Digest(it.URL), it.URL, it.Title, it.Description, it.Source,
			string(it.Market), string(it.ContentType), published,
			nullFloat(it.RelevanceScore), nullFloat(it.SentimentScore), string(it.SentimentLabel),
			fetched,
		)
		if err != nil {
			return fmt.Errorf("upserting item %s: %w", it.URL, err)
		}
	}

	return tx.Commit()
}

// QueryOpts filters GetItems. Zero values disable a filter.
type QueryOpts struct {
	Since   time.Time
	Markets []news.Market
	Sources []string
	Search  string
	Limit   int
}

func (a *Archive) GetItems(opts QueryOpts) ([]news.Item, error) {
	var (
		where []string
		args  []interface{}
	)

	if !opts.Since.IsZero() {
		where = append(where, "COALESCE(published, fetched_at) >= ?")
		args = append(args, opts.Since.UTC())
	}

	if len(opts.Markets) > 0 {
		placeholders := make([]string, len(opts.Markets))
		for i, m := range opts.Markets {
			placeholders[i] = "?"
			args = append(args, string(m))
		}
		where = append(where, "market IN ("+strings.Join(placeholders, ",")+")") //nolint:gosec
	}

	if len(opts.Sources) > 0 {
		placeholders := make([]string, len(opts.Sources))
		for i, s := range opts.Sources {
			placeholders[i] = "?"
			args = append(args, s)
		}
		where = append(where, "source IN ("+strings.Join(placeholders, ",")+")") //nolint:gosec
	}

	if opts.Search != "" {
		where = append(where, "(title LIKE ? OR description LIKE ?)")
		term := "%" + opts.Search + "%"
		args = append(args, term, term)
	}

	query := "SELECT url, title, description, source, market, content_type, published, relevance, sentiment, label FROM items"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY COALESCE(published, fetched_at) DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 500
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := a.readDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []news.Item
	for rows.Next() {
		var (
			it                   news.Item
			market, contentType  string
			label                string
			published            sql.NullTime
			relevance, sentiment sql.NullFloat64
		)
		if err := rows.Scan(&it.URL, &it.Title, &it.Description, &it.Source, &market, &contentType,
			&published, &relevance, &sentiment, &label); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		it.Market, _ = news.ParseMarket(market)
		it.ContentType = news.ParseContentType(contentType)
		it.SentimentLabel = news.SentimentLabel(label)
		if published.Valid {
			it.PublishedAt = news.Time(published.Time)
		}
		if relevance.Valid {
			it.RelevanceScore = news.Float(relevance.Float64)
		}
		if sentiment.Valid {
			it.SentimentScore = news.Float(sentiment.Float64)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Prune deletes items fetched longer ago than retention and reclaims space.
func (a *Archive) Prune(retention time.Duration) (int64, error) {
	cutoff := a.now().Add(-retention).UTC()
	res, err := a.writeDB.Exec("DELETE FROM items WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if _, err := a.writeDB.Exec("VACUUM"); err != nil {
			return n, fmt.Errorf("vacuum: %w", err)
		}
	}
	return n, nil
}

// Stats returns the item count and the on-disk size of dbPath.
func (a *Archive) Stats(dbPath string) (int, int64, error) {
	var count int
	if err := a.readDB.QueryRow("SELECT COUNT(*) FROM items").Scan(&count); err != nil {
		return 0, 0, fmt.Errorf("counting items: %w", err)
	}
	var size int64
	if info, err := os.Stat(dbPath); err == nil {
		size = info.Size()
	}
	return count, size, nil
}

// LastRun reports when SetLastRun was last called.
func (a *Archive) LastRun() (time.Time, bool) {
	var value string
	err := a.readDB.QueryRow("SELECT value FROM meta WHERE key = 'last_run'").Scan(&value)
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (a *Archive) SetLastRun(t time.Time) error {
	_, err := a.writeDB.Exec(`
		INSERT INTO meta (key, value) VALUES ('last_run', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, t.UTC().Format(time.RFC3339))
	return err
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
