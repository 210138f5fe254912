package persist

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TransformOptions fully determine a transformed SVG given its input. They
// form the fingerprint used by every cache tier and the coalescer.
type TransformOptions struct {
	Size        *int              `json:"size,omitempty"`
	StrokeWidth *float64          `json:"strokeWidth,omitempty"`
	Color       string            `json:"color,omitempty"`
	Rotate      *float64          `json:"rotate,omitempty"`
	Mirror      bool              `json:"mirror,omitempty"`
	Class       string            `json:"class,omitempty"`
	Attributes  map[string]string `json:"customAttributes,omitempty"`
}

// IconRequest is a fully validated single-icon request.
type IconRequest struct {
	Source  string
	Name    string
	Variant Variant
	Format  string
	Options TransformOptions
}

// Fingerprint returns the deterministic cache key
// source:name:variant:size:stroke:color:rotate:mirror:class:format.
// Custom attributes are appended in sorted key order so equal maps always
// fingerprint identically.
func (r IconRequest) Fingerprint() string {
	var b strings.Builder
	b.WriteString(r.Source)
	b.WriteByte(':')
	b.WriteString(r.Name)
	b.WriteByte(':')
	b.WriteString(string(r.Variant))
	b.WriteByte(':')
	o := r.Options
	if o.Size != nil {
		b.WriteString(strconv.Itoa(*o.Size))
	}
	b.WriteByte(':')
	if o.StrokeWidth != nil {
		b.WriteString(strconv.FormatFloat(*o.StrokeWidth, 'f', -1, 64))
	}
	b.WriteByte(':')
	b.WriteString(o.Color)
	b.WriteByte(':')
	if o.Rotate != nil {
		b.WriteString(strconv.FormatFloat(*o.Rotate, 'f', -1, 64))
	}
	b.WriteByte(':')
	b.WriteString(strconv.FormatBool(o.Mirror))
	b.WriteByte(':')
	b.WriteString(o.Class)
	b.WriteByte(':')
	b.WriteString(r.Format)
	if len(o.Attributes) > 0 {
		keys := make([]string, 0, len(o.Attributes))
		for k := range o.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, ":%s=%s", k, o.Attributes[k])
		}
	}
	return b.String()
}

// CanonicalURL builds the edge-cache key for the request.
func (r IconRequest) CanonicalURL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "/v1/icons/%s/%s?variant=%s", r.Source, r.Name, r.Variant)
	o := r.Options
	if o.Size != nil {
		fmt.Fprintf(&b, "&size=%d", *o.Size)
	}
	if o.StrokeWidth != nil {
		fmt.Fprintf(&b, "&stroke=%s", strconv.FormatFloat(*o.StrokeWidth, 'f', -1, 64))
	}
	if o.Color != "" {
		fmt.Fprintf(&b, "&color=%s", o.Color)
	}
	if o.Rotate != nil {
		fmt.Fprintf(&b, "&rotate=%s", strconv.FormatFloat(*o.Rotate, 'f', -1, 64))
	}
	if o.Mirror {
		b.WriteString("&mirror=true")
	}
	if o.Class != "" {
		fmt.Fprintf(&b, "&class=%s", o.Class)
	}
	return b.String()
}
