package search

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/iconduit/go-iconduit/service/index"
	"github.com/iconduit/go-iconduit/service/metric"
	"github.com/iconduit/go-iconduit/service/persist"
)

const (
	resultCacheSize = 200
	resultCacheTTL  = 5 * time.Minute
	prefixLength    = 4
	minTokenLength  = 2
)

// Method names how a result set was produced.
const (
	MethodInvertedIndex = "inverted_index"
	MethodLinear        = "linear"
	MethodCached        = "cached"
)

// Result is one scored hit.
type Result struct {
	Icon  persist.IconRecord
	Score float64
}

// Page is a slice of a result set plus the metadata the handler reports.
type Page struct {
	Results  []Result
	Total    int
	HasMore  bool
	Method   string
	CacheHit bool
}

type cachedResults struct {
	results  []Result
	method   string
	storedAt time.Time
}

// Engine runs full-text search over the icon index: tokenization, synonym
// expansion, inverted-index candidate gathering with a linear fallback, and
// weighted scoring. Scored result sets are cached and re-sliced per request.
type Engine struct {
	store *index.Store
	cache *lru.Cache
}

func NewEngine(store *index.Store) *Engine {
	cache, err := lru.New(resultCacheSize)
	if err != nil {
		panic(err)
	}
	return &Engine{store: store, cache: cache}
}

var tokenSplitRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Tokenize lowercases, splits on non-alphanumerics, and drops tokens shorter
// than 2 characters.
func Tokenize(q string) []string {
	var tokens []string
	for _, t := range tokenSplitRegex.Split(strings.ToLower(q), -1) {
		if len(t) >= minTokenLength {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// Search runs the query and returns the requested page. The query must
// already be validated (trimmed, lowercased, length >= 2).
func (e *Engine) Search(ctx context.Context, query, source, category string, limit, offset int) (Page, error) {
	stop := metric.Default().Timer("search")
	defer stop()

	cacheKey := query + "\x00" + source + "\x00" + category

	if v, ok := e.cache.Get(cacheKey); ok {
		cached := v.(*cachedResults)
		if time.Since(cached.storedAt) < resultCacheTTL {
			metric.Default().CacheHit("memory", "search")
			return paginate(cached.results, limit, offset, MethodCached, true), nil
		}
		e.cache.Remove(cacheKey)
	}
	metric.Default().CacheMiss("memory", "search")

	idx, err := e.store.GetIndex(ctx)
	if err != nil {
		return Page{}, err
	}
	inverted, err := e.store.GetInvertedIndex(ctx)
	if err != nil {
		return Page{}, err
	}
	synonyms, err := e.store.GetSynonyms(ctx)
	if err != nil {
		return Page{}, err
	}

	tokens := Tokenize(query)
	expanded, synonymOnly := expand(tokens, synonyms)

	var (
		candidates []string
		method     string
	)
	if inverted != nil {
		candidates = gather(inverted, query, expanded, source, category)
		method = MethodInvertedIndex
	} else {
		candidates = linearScan(idx, source, category)
		method = MethodLinear
	}

	totalDocs := len(idx.Icons)
	if inverted != nil && inverted.TotalDocs > 0 {
		totalDocs = inverted.TotalDocs
	}

	results := make([]Result, 0, len(candidates))
	for _, id := range candidates {
		rec, ok := idx.Icons[id]
		if !ok {
			continue
		}
		score := score(rec, query, tokens, synonymOnly, inverted, totalDocs)
		if score > 0 {
			results = append(results, Result{Icon: rec, Score: score})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	e.cache.Add(cacheKey, &cachedResults{results: results, method: method, storedAt: time.Now()})
	return paginate(results, limit, offset, method, false), nil
}

// Reset drops the result cache. For tests only.
func (e *Engine) Reset() {
	e.cache.Purge()
}

// expand adds synonym tokens to the set, tracking which tokens arrived only
// through expansion.
func expand(tokens []string, synonyms persist.SynonymMap) (expanded []string, synonymOnly map[string]bool) {
	synonymOnly = map[string]bool{}
	seen := map[string]bool{}
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			expanded = append(expanded, t)
		}
	}
	for _, t := range tokens {
		for _, syn := range synonyms[t] {
			if !seen[syn] {
				seen[syn] = true
				synonymOnly[syn] = true
				expanded = append(expanded, syn)
			}
		}
	}
	return expanded, synonymOnly
}

// gather unions posting lists for every expanded token plus near-prefix terms
// from the prefix buckets, then applies source/category filters. A filter
// naming a missing key empties the result immediately.
func gather(inv *persist.InvertedIndex, query string, expanded []string, source, category string) []string {
	ids := map[string]bool{}

	add := func(list []string) {
		for _, id := range list {
			ids[id] = true
		}
	}

	for _, t := range expanded {
		if entry, ok := inv.Terms[t]; ok {
			add(entry.IconIDs)
		}
		prefix := t
		if len(prefix) > prefixLength {
			prefix = prefix[:prefixLength]
		}
		for _, term := range inv.Prefixes[prefix] {
			if strings.HasPrefix(term, t) || strings.HasPrefix(t, term) {
				if entry, ok := inv.Terms[term]; ok {
					add(entry.IconIDs)
				}
			}
		}
	}
	if entry, ok := inv.Terms[query]; ok {
		add(entry.IconIDs)
	}

	if source != "" {
		keep, ok := inv.Sources[source]
		if !ok {
			return nil
		}
		ids = intersect(ids, keep)
	}
	if category != "" {
		keep, ok := inv.Categories[category]
		if !ok {
			return nil
		}
		ids = intersect(ids, keep)
	}

	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	// Sorted for deterministic tie ordering under the stable score sort.
	sort.Strings(out)
	return out
}

func intersect(ids map[string]bool, keep []string) map[string]bool {
	out := map[string]bool{}
	for _, id := range keep {
		if ids[id] {
			out[id] = true
		}
	}
	return out
}

func linearScan(idx *persist.IconIndex, source, category string) []string {
	out := make([]string, 0, len(idx.Icons))
	for id, rec := range idx.Icons {
		if source != "" && rec.Source != source {
			continue
		}
		if category != "" && rec.Category != category {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// score sums the weighted signals for one candidate.
func score(rec persist.IconRecord, query string, tokens []string, synonymOnly map[string]bool, inv *persist.InvertedIndex, totalDocs int) float64 {
	var s float64

	if rec.Name == query {
		s += 2.0
	}
	if strings.Contains(rec.Name, query) {
		s += 0.8
	}
	for _, tag := range rec.Tags {
		if tag == query {
			s += 0.5
			break
		}
	}

	tagSet := map[string]bool{}
	for _, tag := range rec.Tags {
		tagSet[tag] = true
	}

	for _, t := range tokens {
		if strings.Contains(rec.Name, t) {
			s += 0.15
		}
		if tagSet[t] {
			s += 0.2
		}
		if strings.HasPrefix(rec.Name, t) {
			s += 0.3
		}
		if inv != nil && totalDocs > 0 {
			if entry, ok := inv.Terms[t]; ok && entry.DF > 0 && (strings.Contains(rec.Name, t) || tagSet[t]) {
				s += math.Log(float64(totalDocs)/float64(entry.DF)) * 0.05
			}
		}
	}

	for syn := range synonymOnly {
		if strings.Contains(rec.Name, syn) || tagSet[syn] {
			s += 0.1
		}
	}

	return s
}

func paginate(results []Result, limit, offset int, method string, cacheHit bool) Page {
	total := len(results)
	page := Page{Total: total, Method: method, CacheHit: cacheHit, HasMore: offset+limit < total}
	if offset >= total {
		page.Results = []Result{}
		return page
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page.Results = results[offset:end]
	return page
}
