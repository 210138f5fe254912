package search

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iconduit/go-iconduit/service/index"
	"github.com/iconduit/go-iconduit/service/persist"
	"github.com/iconduit/go-iconduit/service/redis"
)

type fakeKV map[string][]byte

func (f fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	raw, ok := f[key]
	if !ok {
		return nil, redis.ErrKeyNotFound{Key: key}
	}
	return raw, nil
}

func testCorpus(t *testing.T, withInverted bool) *Engine {
	t.Helper()

	icons := map[string]persist.IconRecord{
		"lucide:home":      {ID: "lucide:home", Name: "home", Source: "lucide", Category: "buildings", Tags: []string{"house", "building"}},
		"lucide:home-plus": {ID: "lucide:home-plus", Name: "home-plus", Source: "lucide", Category: "buildings", Tags: []string{"house", "add"}},
		"lucide:user":      {ID: "lucide:user", Name: "user", Source: "lucide", Category: "people", Tags: []string{"person", "account"}},
		"feather:home":     {ID: "feather:home", Name: "home", Source: "feather", Category: "buildings", Tags: []string{"house"}},
	}

	kv := fakeKV{}
	kv["icon-index"], _ = json.Marshal(persist.IconIndex{Icons: icons})
	kv["synonyms"], _ = json.Marshal(persist.SynonymMap{"home": {"house"}})

	if withInverted {
		inv := persist.InvertedIndex{
			Terms: map[string]persist.TermEntry{
				"home":    {IconIDs: []string{"lucide:home", "lucide:home-plus", "feather:home"}, DF: 3},
				"house":   {IconIDs: []string{"lucide:home", "lucide:home-plus", "feather:home"}, DF: 3},
				"user":    {IconIDs: []string{"lucide:user"}, DF: 1},
				"person":  {IconIDs: []string{"lucide:user"}, DF: 1},
				"account": {IconIDs: []string{"lucide:user"}, DF: 1},
			},
			Prefixes: map[string][]string{
				"home": {"home"},
				"hous": {"house"},
				"user": {"user"},
				"pers": {"person"},
				"acco": {"account"},
			},
			Sources: map[string][]string{
				"lucide":  {"lucide:home", "lucide:home-plus", "lucide:user"},
				"feather": {"feather:home"},
			},
			Categories: map[string][]string{
				"buildings": {"lucide:home", "lucide:home-plus", "feather:home"},
				"people":    {"lucide:user"},
			},
			TotalDocs: 4,
		}
		kv["inverted-index"], _ = json.Marshal(inv)
	}

	return NewEngine(index.NewStore(kv))
}

func TestTokenize(t *testing.T) {
	a := assert.New(t)

	a.Equal([]string{"arrow", "up"}, Tokenize("Arrow-Up"))
	a.Equal([]string{"home"}, Tokenize("home"))
	// Single-character fragments drop out.
	a.Equal([]string{"up"}, Tokenize("x up"))
	a.Empty(Tokenize("a b"))
}

func TestSearch_ExactMatchRanksFirst(t *testing.T) {
	a := assert.New(t)
	e := testCorpus(t, true)

	page, err := e.Search(context.Background(), "home", "", "", 10, 0)
	a.NoError(err)
	a.Equal(MethodInvertedIndex, page.Method)
	a.False(page.CacheHit)
	a.GreaterOrEqual(page.Total, 3)

	a.Equal("home", page.Results[0].Icon.Name)
	// The exact-name hits outrank the partial one.
	a.Greater(page.Results[0].Score, func() float64 {
		for _, r := range page.Results {
			if r.Icon.Name == "home-plus" {
				return r.Score
			}
		}
		return 0
	}())
}

func TestSearch_LinearFallback(t *testing.T) {
	a := assert.New(t)
	e := testCorpus(t, false)

	page, err := e.Search(context.Background(), "home", "", "", 10, 0)
	a.NoError(err)
	a.Equal(MethodLinear, page.Method)
	a.GreaterOrEqual(page.Total, 3)
	a.Equal("home", page.Results[0].Icon.Name)
}

func TestSearch_CachedResults(t *testing.T) {
	a := assert.New(t)
	e := testCorpus(t, true)
	ctx := context.Background()

	first, err := e.Search(ctx, "home", "", "", 10, 0)
	a.NoError(err)
	a.False(first.CacheHit)

	second, err := e.Search(ctx, "home", "", "", 10, 0)
	a.NoError(err)
	a.True(second.CacheHit)
	a.Equal(MethodCached, second.Method)
	a.Equal(first.Total, second.Total)

	// A different filter is a different cache entry.
	third, err := e.Search(ctx, "home", "feather", "", 10, 0)
	a.NoError(err)
	a.False(third.CacheHit)
}

func TestSearch_SourceAndCategoryFilters(t *testing.T) {
	a := assert.New(t)
	e := testCorpus(t, true)
	ctx := context.Background()

	page, err := e.Search(ctx, "home", "feather", "", 10, 0)
	a.NoError(err)
	a.Equal(1, page.Total)
	a.Equal("feather", page.Results[0].Icon.Source)

	page, err = e.Search(ctx, "home", "", "people", 10, 0)
	a.NoError(err)
	a.Zero(page.Total)

	// A filter naming an unknown source empties the results immediately.
	page, err = e.Search(ctx, "home", "nonexistent", "", 10, 0)
	a.NoError(err)
	a.Zero(page.Total)
}

func TestSearch_SynonymExpansion(t *testing.T) {
	a := assert.New(t)
	e := testCorpus(t, true)

	// "home" expands to "house", which is a tag on every home icon; the
	// synonym-only bonus must not outweigh direct hits.
	page, err := e.Search(context.Background(), "home", "", "", 10, 0)
	a.NoError(err)
	for _, r := range page.Results {
		a.NotEqual("user", r.Icon.Name)
	}
}

func TestSearch_NonMatchesAreDropped(t *testing.T) {
	a := assert.New(t)
	e := testCorpus(t, false)

	// Linear fallback scans everything; zero-score icons must not appear.
	page, err := e.Search(context.Background(), "user", "", "", 10, 0)
	a.NoError(err)
	a.Equal(1, page.Total)
	a.Equal("user", page.Results[0].Icon.Name)
}

func TestSearch_Pagination(t *testing.T) {
	a := assert.New(t)
	e := testCorpus(t, true)
	ctx := context.Background()

	page, err := e.Search(ctx, "home", "", "", 2, 0)
	a.NoError(err)
	a.Len(page.Results, 2)
	a.True(page.HasMore)

	page, err = e.Search(ctx, "home", "", "", 2, 2)
	a.NoError(err)
	a.False(page.HasMore)

	// Offsets past the end yield an empty page, not an error.
	page, err = e.Search(ctx, "home", "", "", 2, 50)
	a.NoError(err)
	a.Empty(page.Results)
	a.False(page.HasMore)
}
