package persist

import (
	"fmt"
	"strings"
)

// Variant names an icon style family within a source. Sources declare the
// subset they support and a default.
type Variant string

const (
	VariantDefault Variant = "default"
	VariantOutline Variant = "outline"
	VariantSolid   Variant = "solid"
	VariantMini    Variant = "mini"
	VariantFilled  Variant = "filled"
	VariantDuotone Variant = "duotone"
)

// KnownVariants is the full set of variants any source may declare.
var KnownVariants = map[Variant]bool{
	VariantDefault: true,
	VariantOutline: true,
	VariantSolid:   true,
	VariantMini:    true,
	VariantFilled:  true,
	VariantDuotone: true,
}

// IconRecord is one entry in the icon index. Identity is the pair
// (source, name) joined as "source:name".
type IconRecord struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Source   string    `json:"source"`
	Category string    `json:"category"`
	Tags     []string  `json:"tags"`
	Variants []Variant `json:"variants"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	ViewBox  string    `json:"viewBox"`
	// Path is the opaque content key used by the blob store.
	Path string `json:"path"`
}

// Key returns the canonical index key for the record.
func (r IconRecord) Key() string {
	return IconKey(r.Source, r.Name)
}

// HasVariant reports whether the record lists the given variant.
func (r IconRecord) HasVariant(v Variant) bool {
	for _, have := range r.Variants {
		if have == v {
			return true
		}
	}
	return false
}

// IconKey joins a source and name into an index key.
func IconKey(source, name string) string {
	return fmt.Sprintf("%s:%s", source, name)
}

// SplitIconKey is the inverse of IconKey.
func SplitIconKey(key string) (source, name string) {
	source, name, _ = strings.Cut(key, ":")
	return source, name
}

// IndexStats aggregates over the whole index.
type IndexStats struct {
	TotalIcons  int      `json:"totalIcons"`
	Sources     []string `json:"sources"`
	LastUpdated string   `json:"lastUpdated"`
}

// IconIndex maps "source:name" keys to records.
type IconIndex struct {
	Icons map[string]IconRecord `json:"icons"`
	Stats IndexStats            `json:"stats"`
}

// Get resolves a record by source and name.
func (i *IconIndex) Get(source, name string) (IconRecord, bool) {
	if i == nil || i.Icons == nil {
		return IconRecord{}, false
	}
	rec, ok := i.Icons[IconKey(source, name)]
	return rec, ok
}

// TermEntry is one posting list in the inverted index. DF is the document
// frequency of the term and must equal len(IconIDs).
type TermEntry struct {
	IconIDs []string `json:"iconIds"`
	DF      int      `json:"df"`
}

// InvertedIndex supports full-text candidate gathering. Prefixes maps
// 4-character prefixes to the terms sharing them.
type InvertedIndex struct {
	Terms      map[string]TermEntry `json:"terms"`
	Prefixes   map[string][]string  `json:"prefixes"`
	Sources    map[string][]string  `json:"sources"`
	Categories map[string][]string  `json:"categories"`
	TotalDocs  int                  `json:"totalDocs"`
}

// SynonymMap expands query tokens. Symmetry is not required.
type SynonymMap map[string][]string
