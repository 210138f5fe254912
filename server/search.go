package server

import (
	"math/rand"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/iconduit/go-iconduit/service/persist"
	"github.com/iconduit/go-iconduit/util"
	"github.com/iconduit/go-iconduit/validate"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// searchIcons serves full-text search over the index.
func searchIcons(res *resources) gin.HandlerFunc {
	return func(c *gin.Context) {
		query, err := validate.SearchQuery(c.Query("q"))
		if err != nil {
			respondWithError(c, err)
			return
		}

		source := c.Query("source")
		if source != "" {
			if err := validate.SourceName(source); err != nil {
				respondWithError(c, err)
				return
			}
		}
		category := c.Query("category")

		limit, err := validate.ParseLimit(c.Query("limit"), defaultSearchLimit, maxSearchLimit)
		if err != nil {
			respondWithError(c, err)
			return
		}
		offset, err := validate.ParseOffset(c.Query("offset"))
		if err != nil {
			respondWithError(c, err)
			return
		}

		page, err := res.search.Search(c.Request.Context(), query, source, category, limit, offset)
		if err != nil {
			respondWithError(c, err)
			return
		}

		results := make([]gin.H, 0, len(page.Results))
		for _, r := range page.Results {
			results = append(results, gin.H{
				"name":     r.Icon.Name,
				"source":   r.Icon.Source,
				"category": r.Icon.Category,
				"tags":     r.Icon.Tags,
				"score":    r.Score,
			})
		}

		util.RespondData(c, http.StatusOK, results, util.Meta{
			"query":         query,
			"total":         page.Total,
			"limit":         limit,
			"offset":        offset,
			"has_more":      page.HasMore,
			"search_method": page.Method,
			"cache_hit":     page.CacheHit,
		})
	}
}

// listSources reports every configured source with its icon count.
func listSources(res *resources) gin.HandlerFunc {
	return func(c *gin.Context) {
		idx, err := res.index.GetIndex(c.Request.Context())
		if err != nil {
			respondWithError(c, err)
			return
		}

		counts := map[string]int{}
		for _, rec := range idx.Icons {
			counts[rec.Source]++
		}

		sources := make([]gin.H, 0)
		for _, cfg := range persist.AllSourceConfigs() {
			sources = append(sources, gin.H{
				"id":             cfg.ID,
				"name":           cfg.Name,
				"description":    cfg.Description,
				"website":        cfg.Website,
				"license":        cfg.License,
				"variants":       cfg.Variants,
				"defaultVariant": cfg.DefaultVariant,
				"iconCount":      counts[cfg.ID],
			})
		}

		util.RespondData(c, http.StatusOK, sources, util.Meta{"total": len(sources)})
	}
}

// getSource reports one source's metadata plus its icon names.
func getSource(res *resources) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("source")
		cfg, ok := persist.GetSourceConfig(id)
		if !ok {
			respondWithError(c, persist.ErrSourceNotFound{Source: id})
			return
		}

		idx, err := res.index.GetIndex(c.Request.Context())
		if err != nil {
			respondWithError(c, err)
			return
		}

		var names []string
		for _, rec := range idx.Icons {
			if rec.Source == id {
				names = append(names, rec.Name)
			}
		}
		sort.Strings(names)

		util.RespondData(c, http.StatusOK, gin.H{
			"id":             cfg.ID,
			"name":           cfg.Name,
			"description":    cfg.Description,
			"website":        cfg.Website,
			"repository":     cfg.Repository,
			"license":        cfg.License,
			"variants":       cfg.Variants,
			"defaultVariant": cfg.DefaultVariant,
			"iconCount":      len(names),
			"icons":          names,
		}, nil)
	}
}

// listCategories aggregates the categories present in the index, optionally
// restricted to one source. An unknown source yields an empty list.
func listCategories(res *resources) gin.HandlerFunc {
	return func(c *gin.Context) {
		source := c.Query("source")
		if source != "" {
			if err := validate.SourceName(source); err != nil {
				respondWithError(c, err)
				return
			}
		}

		idx, err := res.index.GetIndex(c.Request.Context())
		if err != nil {
			respondWithError(c, err)
			return
		}

		counts := map[string]int{}
		for _, rec := range idx.Icons {
			if source != "" && rec.Source != source {
				continue
			}
			if rec.Category != "" {
				counts[rec.Category]++
			}
		}

		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)

		categories := make([]gin.H, 0, len(names))
		for _, name := range names {
			categories = append(categories, gin.H{"name": name, "iconCount": counts[name]})
		}

		util.RespondData(c, http.StatusOK, categories, util.Meta{"total": len(categories)})
	}
}

// getCategory lists the icons in one category.
func getCategory(res *resources) gin.HandlerFunc {
	return func(c *gin.Context) {
		category := c.Param("category")

		idx, err := res.index.GetIndex(c.Request.Context())
		if err != nil {
			respondWithError(c, err)
			return
		}

		icons := make([]gin.H, 0)
		for _, rec := range idx.Icons {
			if rec.Category == category {
				icons = append(icons, gin.H{"name": rec.Name, "source": rec.Source, "tags": rec.Tags})
			}
		}
		if len(icons) == 0 {
			respondWithError(c, persist.ErrCategoryNotFound{Category: category})
			return
		}
		sort.Slice(icons, func(i, j int) bool {
			if icons[i]["source"] != icons[j]["source"] {
				return icons[i]["source"].(string) < icons[j]["source"].(string)
			}
			return icons[i]["name"].(string) < icons[j]["name"].(string)
		})

		util.RespondData(c, http.StatusOK, gin.H{"name": category, "icons": icons}, util.Meta{"total": len(icons)})
	}
}

// randomIcon renders one uniformly random icon, optionally filtered by source
// and category.
func randomIcon(res *resources) gin.HandlerFunc {
	return func(c *gin.Context) {
		source := c.Query("source")
		if source != "" {
			if err := validate.SourceName(source); err != nil {
				respondWithError(c, err)
				return
			}
		}
		category := c.Query("category")

		idx, err := res.index.GetIndex(c.Request.Context())
		if err != nil {
			respondWithError(c, err)
			return
		}

		keys := make([]string, 0, len(idx.Icons))
		for key, rec := range idx.Icons {
			if source != "" && rec.Source != source {
				continue
			}
			if category != "" && rec.Category != category {
				continue
			}
			keys = append(keys, key)
		}
		if len(keys) == 0 {
			respondWithError(c, persist.ErrIconNotFound{Name: "random", Source: source})
			return
		}
		sort.Strings(keys)
		picked := idx.Icons[keys[rand.Intn(len(keys))]]

		req, err := parseIconRequest(c, picked.Source, picked.Name)
		if err != nil {
			respondWithError(c, err)
			return
		}

		rendered, _, err := res.resolve(c.Request.Context(), req)
		if err != nil {
			respondWithError(c, err)
			return
		}

		// Random picks must not be cached downstream.
		c.Writer.Header().Set("Cache-Control", "no-store")
		c.Writer.Header().Set("Content-Security-Policy", jsonCSP)
		util.RespondData(c, http.StatusOK, gin.H{
			"name":     picked.Name,
			"source":   picked.Source,
			"category": picked.Category,
			"tags":     picked.Tags,
			"variant":  rendered.Variant,
			"svg":      rendered.SVG,
		}, nil)
	}
}
