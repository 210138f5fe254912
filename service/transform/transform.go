package transform

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru"

	"github.com/iconduit/go-iconduit/service/persist"
	"github.com/iconduit/go-iconduit/util"
)

const resultCacheSize = 1000

// Attribute regexes anchor on a preceding whitespace or quote rather than \b;
// RE2 puts a word boundary after a hyphen, so \bwidth= would match inside
// stroke-width=.
var (
	rootTagRegex     = regexp.MustCompile(`<svg\b[^>]*>`)
	widthAttrRegex   = regexp.MustCompile(`(^|[\s"])width="[^"]*"`)
	heightAttrRegex  = regexp.MustCompile(`(^|[\s"])height="[^"]*"`)
	classAttrRegex   = regexp.MustCompile(`(^|[\s"])class="([^"]*)"`)
	strokeWidthRegex = regexp.MustCompile(`\bstroke-width="[^"]*"`)
	strokeWidthCamel = regexp.MustCompile(`\bstrokeWidth="[^"]*"`)
	transformRegex   = regexp.MustCompile(`(^|[\s"])transform="([^"]*)"`)
	viewBoxRegex     = regexp.MustCompile(`(^|[\s"])viewBox="([^"]*)"`)
)

// Engine rewrites SVG documents without parsing them into a DOM: the root
// <svg> open tag and a small set of whole-body token replacements only.
// Output is deterministic in (svg, options) and cached.
type Engine struct {
	cache *lru.Cache
}

func NewEngine() *Engine {
	cache, err := lru.New(resultCacheSize)
	if err != nil {
		panic(err)
	}
	return &Engine{cache: cache}
}

// Transform applies the options to the SVG. Inputs without a root <svg> tag
// pass through unchanged.
func (e *Engine) Transform(svg string, o persist.TransformOptions) string {
	key := cacheKey(svg, o)
	if cached, ok := e.cache.Get(key); ok {
		return cached.(string)
	}

	out := apply(svg, o)
	e.cache.Add(key, out)
	return out
}

// Reset drops the result cache. For tests only.
func (e *Engine) Reset() {
	e.cache.Purge()
}

func cacheKey(svg string, o persist.TransformOptions) string {
	h := fnv.New64a()
	h.Write([]byte(svg))
	opts, _ := json.Marshal(o)
	return fmt.Sprintf("%x:%s", h.Sum64(), opts)
}

func apply(svg string, o persist.TransformOptions) string {
	loc := rootTagRegex.FindStringIndex(svg)
	if loc == nil {
		return svg
	}
	tag := svg[loc[0]:loc[1]]
	rest := svg[loc[1]:]
	head := svg[:loc[0]]

	if o.Size != nil {
		size := strconv.Itoa(*o.Size)
		tag = upsertAttr(tag, "width", size, widthAttrRegex)
		tag = upsertAttr(tag, "height", size, heightAttrRegex)
	}

	if o.Class != "" {
		tag = appendClass(tag, o.Class)
	}

	for _, k := range sortedKeys(o.Attributes) {
		tag = upsertAttr(tag, k, o.Attributes[k], regexp.MustCompile(`(^|[\s"])`+regexp.QuoteMeta(k)+`="[^"]*"`))
	}

	if geo := geometry(tag, o); geo != "" {
		tag = prependTransform(tag, geo)
	}

	// Color and stroke-width rewrites are body-wide. The tag and body are
	// substituted independently so a color replacement can never shift the
	// root tag out from under the geometry rewrites.
	if o.Color != "" && o.Color != "currentColor" {
		tag = strings.ReplaceAll(tag, "currentColor", o.Color)
		rest = strings.ReplaceAll(rest, "currentColor", o.Color)
	}
	if o.StrokeWidth != nil {
		sw := formatNumber(*o.StrokeWidth)
		tag = strokeWidthRegex.ReplaceAllString(tag, `stroke-width="`+sw+`"`)
		rest = strokeWidthRegex.ReplaceAllString(rest, `stroke-width="`+sw+`"`)
		tag = strokeWidthCamel.ReplaceAllString(tag, `strokeWidth="`+sw+`"`)
		rest = strokeWidthCamel.ReplaceAllString(rest, `strokeWidth="`+sw+`"`)
	}

	return head + tag + rest
}

func upsertAttr(tag, name, value string, attrRegex *regexp.Regexp) string {
	replacement := name + `="` + value + `"`
	if attrRegex.MatchString(tag) {
		return attrRegex.ReplaceAllString(tag, "${1}"+replacement)
	}
	return insertAttr(tag, replacement)
}

func insertAttr(tag, attr string) string {
	if strings.HasSuffix(tag, "/>") {
		return tag[:len(tag)-2] + " " + attr + "/>"
	}
	return tag[:len(tag)-1] + " " + attr + ">"
}

func appendClass(tag, class string) string {
	if m := classAttrRegex.FindStringSubmatch(tag); m != nil {
		merged := util.Dedupe(append(strings.Fields(m[2]), strings.Fields(class)...))
		return classAttrRegex.ReplaceAllString(tag, `${1}class="`+strings.Join(merged, " ")+`"`)
	}
	return insertAttr(tag, `class="`+class+`"`)
}

// geometry composes the transform list for mirror and rotate. Both require a
// parseable viewBox; without one they are skipped.
func geometry(tag string, o persist.TransformOptions) string {
	if !o.Mirror && o.Rotate == nil {
		return ""
	}
	x, y, w, h, ok := parseViewBox(tag)
	if !ok {
		return ""
	}
	cx := x + w/2
	cy := y + h/2

	var parts []string
	if o.Mirror {
		parts = append(parts, fmt.Sprintf("scale(-1, 1) translate(%s, 0)", formatNumber(-2*cx)))
	}
	if o.Rotate != nil {
		if deg := NormalizeRotate(*o.Rotate); deg > 0 {
			parts = append(parts, fmt.Sprintf("rotate(%s %s %s)", formatNumber(deg), formatNumber(cx), formatNumber(cy)))
		}
	}
	return strings.Join(parts, " ")
}

func prependTransform(tag, geo string) string {
	if m := transformRegex.FindStringSubmatch(tag); m != nil {
		return transformRegex.ReplaceAllString(tag, `${1}transform="`+geo+" "+m[2]+`"`)
	}
	return insertAttr(tag, `transform="`+geo+`"`)
}

func parseViewBox(tag string) (x, y, w, h float64, ok bool) {
	m := viewBoxRegex.FindStringSubmatch(tag)
	if m == nil {
		return 0, 0, 0, 0, false
	}
	fields := strings.Fields(strings.ReplaceAll(m[2], ",", " "))
	if len(fields) != 4 {
		return 0, 0, 0, 0, false
	}
	vals := make([]float64, 4)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return 0, 0, 0, 0, false
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], vals[3], true
}

// NormalizeRotate maps any real rotation onto [0, 360).
func NormalizeRotate(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ETag computes a weak content validator from a rolling hash of the output
// bytes, returned as a quoted hex string. Weakness is acceptable because the
// output is fully determined by the fingerprint.
func ETag(svg string) string {
	var h uint32
	for i := 0; i < len(svg); i++ {
		h = h*31 + uint32(svg[i])
	}
	return fmt.Sprintf("%q", fmt.Sprintf("%08x", h))
}
