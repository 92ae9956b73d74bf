package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

func TestItemsFirstSeenWins(t *testing.T) {
	in := []news.Item{
		{URL: "https://x/1", Source: "A"},
		{URL: "https://x/2", Source: "A"},
		{URL: "https://x/1", Source: "B"},
		{URL: "", Source: "C"},
		{URL: "https://x/3", Source: "B"},
		{URL: "https://x/2", Source: "C"},
	}

	out := Items(in)
	assert.Len(t, out, 3)
	assert.Equal(t, "https://x/1", out[0].URL)
	assert.Equal(t, "A", out[0].Source)
	assert.Equal(t, "https://x/2", out[1].URL)
	assert.Equal(t, "A", out[1].Source)
	assert.Equal(t, "https://x/3", out[2].URL)
}

func TestItemsIdempotent(t *testing.T) {
	in := []news.Item{
		{URL: "https://x/1"}, {URL: "https://x/1"}, {URL: "https://x/2"}, {URL: "https://x/3"}, {URL: "https://x/2"},
	}
	once := Items(in)
	twice := Items(once)
	assert.Equal(t, once, twice)
}

func TestItemsEmpty(t *testing.T) {
	assert.Empty(t, Items(nil))
}

func TestByKeyGeneric(t *testing.T) {
	out := ByKey([]int{3, 1, 3, 2, 1}, func(v int) int { return v })
	assert.Equal(t, []int{3, 1, 2}, out)
}

func TestDigest(t *testing.T) {
	a := Digest("https://example.com/post-1")
	b := Digest("https://example.com/post-2")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Digest("https://example.com/post-1"))
	assert.Len(t, a, 32)
	assert.NotEqual(t, Digest("ab", "c"), Digest("a", "bc"))
}
