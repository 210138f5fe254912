package persist

import (
	_ "embed"
	"sort"

	yaml "gopkg.in/yaml.v2"
)

//go:embed sources.yaml
var sourcesYAML []byte

// License describes the license an icon set is distributed under.
type License struct {
	Type string `json:"type" yaml:"type"`
	URL  string `json:"url" yaml:"url"`
}

// SourceConfig is the static per-source metadata table entry. Variant
// dispatch across sources is a lookup against this table, not a hierarchy.
type SourceConfig struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	Description    string    `json:"description" yaml:"description"`
	Website        string    `json:"website" yaml:"website"`
	Repository     string    `json:"repository" yaml:"repository"`
	License        License   `json:"license" yaml:"license"`
	Variants       []Variant `json:"variants" yaml:"variants"`
	DefaultVariant Variant   `json:"defaultVariant" yaml:"defaultVariant"`
	// VariantSuffixes maps a variant to the path suffix appended to the
	// record's content key before the extension. Sources with a single
	// variant omit the map entirely.
	VariantSuffixes map[Variant]string `json:"-" yaml:"variantSuffixes"`
}

// SupportsVariant reports whether the source declares the variant.
func (s SourceConfig) SupportsVariant(v Variant) bool {
	for _, have := range s.Variants {
		if have == v {
			return true
		}
	}
	return false
}

// VariantKey maps a content key to its variant-specific storage key. The
// default variant always resolves to the key unchanged. Non-default variants
// without a suffix rule do not resolve.
func (s SourceConfig) VariantKey(path string, v Variant) (string, bool) {
	if v == "" || v == s.DefaultVariant || v == VariantDefault {
		return path, true
	}
	if !s.SupportsVariant(v) {
		return "", false
	}
	suffix, ok := s.VariantSuffixes[v]
	if !ok {
		return "", false
	}
	if suffix == "" {
		return path, true
	}
	// Keys are "<source>/<name>.svg"; the suffix slots in before the extension.
	if n := len(path); n > 4 && path[n-4:] == ".svg" {
		return path[:n-4] + suffix + ".svg", true
	}
	return path + suffix, true
}

type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

var sourceTable = loadSourceTable()

func loadSourceTable() map[string]SourceConfig {
	var f sourcesFile
	if err := yaml.Unmarshal(sourcesYAML, &f); err != nil {
		panic(err)
	}
	table := make(map[string]SourceConfig, len(f.Sources))
	for _, s := range f.Sources {
		table[s.ID] = s
	}
	return table
}

// GetSourceConfig resolves a source id against the static table.
func GetSourceConfig(id string) (SourceConfig, bool) {
	s, ok := sourceTable[id]
	return s, ok
}

// AllSourceConfigs returns every configured source sorted by id.
func AllSourceConfigs() []SourceConfig {
	out := make([]SourceConfig, 0, len(sourceTable))
	for _, s := range sourceTable {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
