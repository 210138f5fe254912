package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iconduit/go-iconduit/service/logger"
	"github.com/iconduit/go-iconduit/service/memcache"
	"github.com/iconduit/go-iconduit/service/metric"
	"github.com/iconduit/go-iconduit/service/persist"
	"github.com/iconduit/go-iconduit/service/transform"
	"github.com/iconduit/go-iconduit/util"
	"github.com/iconduit/go-iconduit/validate"
)

const (
	iconCacheControl = "public, max-age=86400, stale-while-revalidate=86400, immutable"
	svgCSP           = "default-src 'none'; style-src 'unsafe-inline'"
	jsonCSP          = "default-src 'none'; frame-ancestors 'none'"

	maxSuggestions = 5
)

// renderedIcon is one fully transformed icon plus the record it came from.
type renderedIcon struct {
	Record  persist.IconRecord
	Variant persist.Variant
	SVG     string
	ETag    string
}

// Cache layers a render can be served from.
const (
	layerEdge   = "edge"
	layerMemory = "memory"
	layerOrigin = "origin"
)

func splitFingerprintSource(fingerprint string) (source, rest string) {
	source, rest, _ = strings.Cut(fingerprint, ":")
	return source, rest
}

// reservedQueryParams are the query keys the icon handler consumes itself.
// Anything else must be a data-* attribute to be forwarded onto the svg tag.
var reservedQueryParams = map[string]bool{
	"source": true, "size": true, "color": true, "stroke": true,
	"stroke-width": true, "variant": true, "rotate": true, "mirror": true,
	"class": true, "format": true,
}

// parseIconRequest validates every query parameter into an IconRequest.
func parseIconRequest(c *gin.Context, source, name string) (persist.IconRequest, error) {
	req := persist.IconRequest{Source: source, Name: name}

	if req.Source == "" {
		req.Source = c.Query("source")
	}
	if req.Source == "" {
		req.Source = validate.DefaultSourceName
	}
	if err := validate.SourceName(req.Source); err != nil {
		return req, err
	}
	if err := validate.IconName(req.Name); err != nil {
		return req, err
	}

	size, err := validate.ParseSize(c.Query("size"))
	if err != nil {
		return req, err
	}
	req.Options.Size = &size

	strokeParam := c.Query("stroke")
	if strokeParam == "" {
		strokeParam = c.Query("stroke-width")
	}
	stroke, err := validate.ParseStrokeWidth(strokeParam)
	if err != nil {
		return req, err
	}
	req.Options.StrokeWidth = &stroke

	color, err := validate.ParseColor(c.Query("color"))
	if err != nil {
		return req, err
	}
	req.Options.Color = color

	rotate, err := validate.ParseRotate(c.Query("rotate"))
	if err != nil {
		return req, err
	}
	req.Options.Rotate = rotate
	req.Options.Mirror = validate.ParseMirror(c.Query("mirror"))
	req.Options.Class = strings.TrimSpace(c.Query("class"))

	variant, err := validate.VariantName(c.Query("variant"))
	if err != nil {
		return req, err
	}
	req.Variant = variant

	switch format := c.Query("format"); format {
	case "", "svg", "json":
		req.Format = format
	default:
		return req, validate.ErrInvalidParameter{Parameter: "format", Reason: fmt.Sprintf("unknown format %q", format)}
	}

	for key, values := range c.Request.URL.Query() {
		if reservedQueryParams[key] || !strings.HasPrefix(key, "data-") || len(values) == 0 {
			continue
		}
		if err := validate.CustomAttribute(key, values[0]); err != nil {
			return req, err
		}
		if req.Options.Attributes == nil {
			req.Options.Attributes = map[string]string{}
		}
		req.Options.Attributes[key] = values[0]
	}

	return req, nil
}

// getIcon serves a single icon through the full cache hierarchy: edge, then
// memory, then a coalesced origin render.
func getIcon(res *resources) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		source, name := "", c.Param("name")
		if sub := c.Param("subname"); sub != "" {
			source, name = name, sub
		}

		req, err := parseIconRequest(c, source, name)
		if err != nil {
			respondWithError(c, err)
			return
		}

		rendered, layer, err := res.resolve(c.Request.Context(), req)
		if err != nil {
			respondWithError(c, err)
			return
		}

		writeIcon(c, req, rendered, layer, start)
	}
}

// resolve walks the cache tiers for the request and reports which layer
// served it.
func (res *resources) resolve(ctx context.Context, req persist.IconRequest) (renderedIcon, string, error) {
	fingerprint := req.Fingerprint()
	edgeKey := req.CanonicalURL()

	if res.edge != nil {
		if entry, stale := res.edge.Match(ctx, edgeKey); entry != nil {
			metric.Default().CacheHit("edge", "icon")
			if stale && res.edge.Revalidate(ctx, edgeKey) {
				go res.refresh(context.WithoutCancel(ctx), req, fingerprint, edgeKey)
			}
			return res.fromCache(ctx, req, *entry), layerEdge, nil
		}
		metric.Default().CacheMiss("edge", "icon")
	}

	if cached, ok := res.memory.Get(fingerprint); ok {
		metric.Default().CacheHit("memory", "icon")
		return res.fromCache(ctx, req, cached), layerMemory, nil
	}
	metric.Default().CacheMiss("memory", "icon")

	rendered, _, err := res.flights.Do(ctx, fingerprint, func(ctx context.Context) (renderedIcon, error) {
		out, err := res.render(ctx, req)
		if err != nil {
			return renderedIcon{}, err
		}
		res.storeTiers(ctx, fingerprint, edgeKey, out)
		return out, nil
	})
	if err != nil {
		return renderedIcon{}, "", err
	}
	return rendered, layerOrigin, nil
}

// fromCache rebuilds a renderedIcon from a cache entry, backfilling the
// record from the in-process index copy so JSON bodies stay complete. The
// backfill is best effort: a cache hit must never fail on an index error.
func (res *resources) fromCache(ctx context.Context, req persist.IconRequest, cached memcache.CachedSVG) renderedIcon {
	out := renderedIcon{
		Record:  persist.IconRecord{Name: req.Name, Source: req.Source},
		Variant: req.Variant,
		SVG:     cached.SVG,
		ETag:    cached.ETag,
	}
	if idx, err := res.index.GetIndex(ctx); err == nil {
		if rec, ok := idx.Get(req.Source, req.Name); ok {
			out.Record = rec
		}
	}
	if out.Variant == "" {
		if cfg, ok := persist.GetSourceConfig(req.Source); ok {
			out.Variant = cfg.DefaultVariant
		}
	}
	return out
}

func (res *resources) storeTiers(ctx context.Context, fingerprint, edgeKey string, out renderedIcon) {
	cached := memcache.CachedSVG{SVG: out.SVG, ETag: out.ETag}
	res.memory.Set(fingerprint, cached)
	if res.edge != nil {
		// Fire and forget; an edge write failure never delays the response.
		go res.edge.Put(context.WithoutCancel(ctx), edgeKey, cached)
	}
}

// refresh re-renders a stale edge entry in the background.
func (res *resources) refresh(ctx context.Context, req persist.IconRequest, fingerprint, edgeKey string) {
	out, err := res.render(ctx, req)
	if err != nil {
		logger.For(ctx).Warnf("background revalidation of %s failed: %s", edgeKey, err)
		return
	}
	res.storeTiers(ctx, fingerprint, edgeKey, out)
}

// render is the origin path: index lookup, variant key resolution, blob
// fetch, and transform.
func (res *resources) render(ctx context.Context, req persist.IconRequest) (renderedIcon, error) {
	idx, err := res.index.GetIndex(ctx)
	if err != nil {
		return renderedIcon{}, err
	}

	rec, ok := idx.Get(req.Source, req.Name)
	if !ok {
		return renderedIcon{}, persist.ErrIconNotFound{
			Name:        req.Name,
			Source:      req.Source,
			Suggestions: suggestions(idx, req.Source, req.Name),
		}
	}

	variant := req.Variant
	key := rec.Path
	if cfg, haveCfg := persist.GetSourceConfig(req.Source); haveCfg {
		if variant == "" {
			variant = cfg.DefaultVariant
		}
		mapped, resolvable := cfg.VariantKey(rec.Path, variant)
		if !resolvable {
			return renderedIcon{}, persist.ErrVariantNotAvailable{Source: req.Source, Name: req.Name, Variant: variant}
		}
		key = mapped
	} else if variant != "" && variant != persist.VariantDefault {
		return renderedIcon{}, persist.ErrVariantNotAvailable{Source: req.Source, Name: req.Name, Variant: variant}
	}

	fetch, err := res.blobs.Get(ctx, key, "")
	if err != nil {
		return renderedIcon{}, err
	}
	if fetch.Object == nil {
		// The index names the icon but the blob is gone.
		return renderedIcon{}, persist.ErrIconNotFound{
			Name:        req.Name,
			Source:      req.Source,
			Suggestions: suggestions(idx, req.Source, req.Name),
		}
	}

	svg := res.transform.Transform(string(fetch.Object.Body), req.Options)

	return renderedIcon{
		Record:  rec,
		Variant: variant,
		SVG:     svg,
		ETag:    transform.ETag(svg),
	}, nil
}

// suggestions returns up to 5 substring-matching names from the same source.
func suggestions(idx *persist.IconIndex, source, name string) []string {
	var out []string
	for _, rec := range idx.Icons {
		if rec.Source != source {
			continue
		}
		if strings.Contains(rec.Name, name) || strings.Contains(name, rec.Name) {
			out = append(out, rec.Name)
		}
	}
	sort.Strings(out)
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// writeIcon negotiates the response body and sets the caching headers.
func writeIcon(c *gin.Context, req persist.IconRequest, rendered renderedIcon, layer string, start time.Time) {
	h := c.Writer.Header()
	h.Set("Cache-Control", iconCacheControl)
	h.Set("ETag", rendered.ETag)
	h.Set("Cache-Tag", fmt.Sprintf("icon:%s:%s,source:%s,variant:%s", req.Source, req.Name, req.Source, rendered.Variant))
	h.Add("Vary", "Accept")
	if layer == layerOrigin {
		h.Set("X-Cache", "MISS")
	} else {
		h.Set("X-Cache", "HIT")
	}
	h.Set("X-Cache-Layer", layer)
	h.Set("X-Response-Time", fmt.Sprintf("%dms", time.Since(start).Milliseconds()))

	if c.Request.Header.Get("If-None-Match") == rendered.ETag {
		c.Status(http.StatusNotModified)
		return
	}

	if wantsSVG(c, req) {
		h.Set("Content-Security-Policy", svgCSP)
		c.Data(http.StatusOK, "image/svg+xml; charset=utf-8", []byte(rendered.SVG))
		metric.Default().Bytes("out", len(rendered.SVG))
		return
	}

	h.Set("Content-Security-Policy", jsonCSP)

	// The data shape is stable: empty metadata serializes as empty values,
	// never as missing keys.
	tags := rendered.Record.Tags
	if tags == nil {
		tags = []string{}
	}
	variants := rendered.Record.Variants
	if variants == nil {
		variants = []persist.Variant{}
	}
	data := gin.H{
		"name":     req.Name,
		"source":   req.Source,
		"variant":  rendered.Variant,
		"svg":      rendered.SVG,
		"category": rendered.Record.Category,
		"tags":     tags,
		"variants": variants,
	}
	if cfg, ok := persist.GetSourceConfig(req.Source); ok {
		data["license"] = cfg.License
	}
	util.RespondData(c, http.StatusOK, data, nil)
	metric.Default().Bytes("out", c.Writer.Size())
}

func wantsSVG(c *gin.Context, req persist.IconRequest) bool {
	if req.Format == "svg" {
		return true
	}
	if req.Format == "json" {
		return false
	}
	return strings.Contains(c.Request.Header.Get("Accept"), "image/svg+xml")
}
