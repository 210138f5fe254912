package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/gin-gonic/gin"
	"github.com/sourcegraph/conc/pool"

	"github.com/iconduit/go-iconduit/service/bundle"
	"github.com/iconduit/go-iconduit/service/metric"
	"github.com/iconduit/go-iconduit/service/persist"
	"github.com/iconduit/go-iconduit/util"
	"github.com/iconduit/go-iconduit/validate"
)

const (
	maxBatchIcons = 50
	maxBulkIcons  = 100

	batchConcurrency = 10
	bulkWorkers      = 10
)

// iconEntry is one requested icon inside a batch or bulk body. Validation is
// deferred to processing so a bad entry fails in-band instead of failing the
// whole request.
type iconEntry struct {
	Name        string            `json:"name"`
	Source      string            `json:"source"`
	Variant     string            `json:"variant"`
	Size        *int              `json:"size"`
	Color       string            `json:"color"`
	StrokeWidth *float64          `json:"strokeWidth"`
	Rotate      *float64          `json:"rotate"`
	Mirror      *bool             `json:"mirror"`
	Class       string            `json:"class"`
	Attributes  map[string]string `json:"attributes"`
}

type batchInput struct {
	Icons    []iconEntry `json:"icons"`
	Defaults *iconEntry  `json:"defaults"`
}

// withDefaults fills an entry's unset fields from the request-level defaults.
func (e iconEntry) withDefaults(d *iconEntry) iconEntry {
	if d == nil {
		return e
	}
	if e.Source == "" {
		e.Source = d.Source
	}
	if e.Variant == "" {
		e.Variant = d.Variant
	}
	if e.Size == nil {
		e.Size = d.Size
	}
	if e.Color == "" {
		e.Color = d.Color
	}
	if e.StrokeWidth == nil {
		e.StrokeWidth = d.StrokeWidth
	}
	if e.Rotate == nil {
		e.Rotate = d.Rotate
	}
	// A pointer so an explicit mirror:false overrides a true default.
	if e.Mirror == nil {
		e.Mirror = d.Mirror
	}
	if e.Class == "" {
		e.Class = d.Class
	}
	if e.Attributes == nil {
		e.Attributes = d.Attributes
	}
	return e
}

// toIconRequest validates an entry into a renderable request.
func (e iconEntry) toIconRequest() (persist.IconRequest, error) {
	req := persist.IconRequest{Source: e.Source, Name: e.Name}
	if req.Source == "" {
		req.Source = validate.DefaultSourceName
	}
	if err := validate.SourceName(req.Source); err != nil {
		return req, err
	}
	if err := validate.IconName(req.Name); err != nil {
		return req, err
	}

	variant, err := validate.VariantName(e.Variant)
	if err != nil {
		return req, err
	}
	req.Variant = variant

	size := validate.DefaultSize
	if e.Size != nil {
		size = *e.Size
		if size < validate.MinSize || size > validate.MaxSize {
			return req, validate.ErrInvalidSize{Value: fmt.Sprintf("%d", size)}
		}
	}
	req.Options.Size = &size

	stroke := float64(validate.DefaultStroke)
	if e.StrokeWidth != nil {
		stroke = *e.StrokeWidth
		if stroke < validate.MinStroke || stroke > validate.MaxStroke {
			return req, validate.ErrInvalidParameter{Parameter: "strokeWidth", Reason: fmt.Sprintf("must be a number between %g and %g", validate.MinStroke, float64(validate.MaxStroke))}
		}
	}
	strokeCopy := stroke
	req.Options.StrokeWidth = &strokeCopy

	color, err := validate.ParseColor(e.Color)
	if err != nil {
		return req, err
	}
	req.Options.Color = color
	req.Options.Rotate = e.Rotate
	if e.Mirror != nil {
		req.Options.Mirror = *e.Mirror
	}
	req.Options.Class = e.Class

	for key, value := range e.Attributes {
		if err := validate.CustomAttribute(key, value); err != nil {
			return req, err
		}
		if req.Options.Attributes == nil {
			req.Options.Attributes = map[string]string{}
		}
		req.Options.Attributes[key] = value
	}

	return req, nil
}

// batchIcons renders up to 50 icons in one request. Entries are processed
// independently; a failure is reported in its slot and never aborts the rest.
func batchIcons(res *resources) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input batchInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondWithError(c, validate.ErrInvalidParameter{Parameter: "body", Reason: err.Error()})
			return
		}
		if len(input.Icons) == 0 {
			respondWithError(c, validate.ErrInvalidParameter{Parameter: "icons", Reason: "at least one icon is required"})
			return
		}
		if len(input.Icons) > maxBatchIcons {
			util.RespondError(c, http.StatusBadRequest, util.ErrorBody{
				Code:    "BATCH_LIMIT_EXCEEDED",
				Message: fmt.Sprintf("batch requests are limited to %d icons, got %d", maxBatchIcons, len(input.Icons)),
			}, fmt.Errorf("batch limit exceeded: %d", len(input.Icons)))
			return
		}

		results := make([]gin.H, len(input.Icons))
		var successful, failed int
		var mu sync.Mutex

		p := pool.New().WithMaxGoroutines(batchConcurrency).WithContext(c.Request.Context())
		for i, entry := range input.Icons {
			i, entry := i, entry
			p.Go(func(ctx context.Context) error {
				slot, ok := res.processEntry(ctx, entry.withDefaults(input.Defaults))
				mu.Lock()
				results[i] = slot
				if ok {
					successful++
				} else {
					failed++
				}
				mu.Unlock()
				return nil
			})
		}
		_ = p.Wait()

		util.RespondData(c, http.StatusOK, results, util.Meta{
			"requested":  len(input.Icons),
			"successful": successful,
			"failed":     failed,
		})
		metric.Default().Bytes("out", c.Writer.Size())
	}
}

// processEntry renders one batch entry, mapping any failure into an in-band
// error object.
func (res *resources) processEntry(ctx context.Context, entry iconEntry) (gin.H, bool) {
	slot := gin.H{"name": entry.Name, "source": entry.Source}

	req, err := entry.toIconRequest()
	slot["source"] = req.Source
	if err == nil {
		var rendered renderedIcon
		rendered, _, err = res.resolve(ctx, req)
		if err == nil {
			slot["variant"] = rendered.Variant
			slot["svg"] = rendered.SVG
			if rendered.Record.Category != "" {
				slot["category"] = rendered.Record.Category
			}
			if len(rendered.Record.Tags) > 0 {
				slot["tags"] = rendered.Record.Tags
			}
			if len(rendered.Record.Variants) > 0 {
				slot["variants"] = rendered.Record.Variants
			}
			if cfg, ok := persist.GetSourceConfig(req.Source); ok {
				slot["license"] = cfg.License
			}
			return slot, true
		}
	}

	_, body := mapError(err)
	slot["error"] = body
	return slot, false
}

// bulkIcons renders up to 100 icons into a downloadable archive.
func bulkIcons(res *resources) gin.HandlerFunc {
	return func(c *gin.Context) {
		format := c.Query("format")
		if format == "" {
			format = bundle.FormatZip
		}
		switch format {
		case bundle.FormatZip, bundle.FormatSVGBundle, bundle.FormatJSONSprite:
		default:
			respondWithError(c, validate.ErrInvalidFormat{Format: format})
			return
		}

		var input batchInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondWithError(c, validate.ErrInvalidParameter{Parameter: "body", Reason: err.Error()})
			return
		}
		if len(input.Icons) == 0 {
			respondWithError(c, validate.ErrInvalidParameter{Parameter: "icons", Reason: "at least one icon is required"})
			return
		}
		if len(input.Icons) > maxBulkIcons {
			util.RespondError(c, http.StatusBadRequest, util.ErrorBody{
				Code:    "BULK_LIMIT_EXCEEDED",
				Message: fmt.Sprintf("bulk requests are limited to %d icons, got %d", maxBulkIcons, len(input.Icons)),
			}, fmt.Errorf("bulk limit exceeded: %d", len(input.Icons)))
			return
		}

		items := make([]*bundle.Item, len(input.Icons))
		var mu sync.Mutex

		wp := workerpool.New(bulkWorkers)
		ctx := c.Request.Context()
		for i, entry := range input.Icons {
			i, entry := i, entry
			wp.Submit(func() {
				req, err := entry.withDefaults(input.Defaults).toIconRequest()
				if err != nil {
					return
				}
				rendered, _, err := res.resolve(ctx, req)
				if err != nil {
					return
				}
				item := &bundle.Item{
					Source:  req.Source,
					Name:    req.Name,
					SVG:     rendered.SVG,
					ViewBox: rendered.Record.ViewBox,
				}
				mu.Lock()
				items[i] = item
				mu.Unlock()
			})
		}
		wp.StopWait()

		rendered := make([]bundle.Item, 0, len(items))
		for _, item := range items {
			if item != nil {
				rendered = append(rendered, *item)
			}
		}
		if len(rendered) == 0 {
			util.RespondError(c, http.StatusBadRequest, util.ErrorBody{
				Code:    "NO_VALID_ICONS",
				Message: "none of the requested icons could be rendered",
			}, fmt.Errorf("no valid icons in bulk request"))
			return
		}

		var body []byte
		var err error
		switch format {
		case bundle.FormatZip:
			body, err = bundle.BuildZip(rendered)
		case bundle.FormatSVGBundle:
			body = bundle.BuildSymbolBundle(rendered)
		case bundle.FormatJSONSprite:
			body, err = bundle.BuildJSONSprite(rendered)
		}
		if err != nil {
			respondWithError(c, err)
			return
		}

		h := c.Writer.Header()
		h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", bundle.AttachmentName(format, time.Now())))
		h.Set("Cache-Control", "public, max-age=86400")
		c.Data(http.StatusOK, bundle.ContentTypes[format], body)
		metric.Default().Bytes("out", len(body))
	}
}
