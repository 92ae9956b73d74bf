// Package dedup removes repeated items by identity key, first seen wins.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

// ByKey keeps the first element for each key, preserving input order.
// Elements whose key is the zero value are dropped.
func ByKey[T any, K comparable](in []T, key func(T) K) []T {
	var zero K
	seen := make(map[K]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		k := key(v)
		if k == zero {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Items deduplicates by canonical URL.
func Items(items []news.Item) []news.Item {
	return ByKey(items, func(it news.Item) string { return it.URL })
}

// Digest is a stable hex identity over parts, used for archive and post ids.
func Digest(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:16])
}
