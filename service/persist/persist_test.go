package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIconKeyRoundTrip(t *testing.T) {
	a := assert.New(t)

	key := IconKey("lucide", "arrow-up")
	a.Equal("lucide:arrow-up", key)

	source, name := SplitIconKey(key)
	a.Equal("lucide", source)
	a.Equal("arrow-up", name)
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := assert.New(t)

	size := 48
	stroke := 1.5
	req := IconRequest{
		Source:  "lucide",
		Name:    "home",
		Variant: VariantOutline,
		Format:  "svg",
		Options: TransformOptions{
			Size:        &size,
			StrokeWidth: &stroke,
			Color:       "#ff0000",
			Mirror:      true,
			Class:       "icon",
			Attributes:  map[string]string{"data-b": "2", "data-a": "1"},
		},
	}

	first := req.Fingerprint()
	a.Equal("lucide:home:outline:48:1.5:#ff0000::true:icon:svg:data-a=1:data-b=2", first)
	for i := 0; i < 5; i++ {
		a.Equal(first, req.Fingerprint())
	}

	// Attribute insertion order must not matter.
	req.Options.Attributes = map[string]string{"data-a": "1", "data-b": "2"}
	a.Equal(first, req.Fingerprint())

	// Any option change changes the fingerprint.
	other := req
	otherSize := 64
	other.Options.Size = &otherSize
	a.NotEqual(first, other.Fingerprint())
}

func TestCanonicalURL(t *testing.T) {
	a := assert.New(t)

	size := 48
	req := IconRequest{
		Source:  "lucide",
		Name:    "home",
		Variant: VariantDefault,
		Options: TransformOptions{Size: &size, Color: "#f00"},
	}
	a.Equal("/v1/icons/lucide/home?variant=default&size=48&color=#f00", req.CanonicalURL())
}

func TestSourceConfig_VariantKey(t *testing.T) {
	a := assert.New(t)

	heroicons, ok := GetSourceConfig("heroicons")
	a.True(ok)

	t.Run("default variant keeps the key", func(t *testing.T) {
		key, ok := heroicons.VariantKey("heroicons/home.svg", VariantOutline)
		a.True(ok)
		a.Equal("heroicons/home.svg", key)
	})

	t.Run("suffix slots in before the extension", func(t *testing.T) {
		key, ok := heroicons.VariantKey("heroicons/home.svg", VariantSolid)
		a.True(ok)
		a.Equal("heroicons/home-solid.svg", key)
	})

	t.Run("undeclared variant does not resolve", func(t *testing.T) {
		_, ok := heroicons.VariantKey("heroicons/home.svg", VariantDuotone)
		a.False(ok)
	})

	lucide, ok := GetSourceConfig("lucide")
	a.True(ok)

	t.Run("single-variant source serves only its default", func(t *testing.T) {
		key, ok := lucide.VariantKey("lucide/home.svg", "")
		a.True(ok)
		a.Equal("lucide/home.svg", key)

		_, ok = lucide.VariantKey("lucide/home.svg", VariantSolid)
		a.False(ok)
	})
}

func TestHasVariant(t *testing.T) {
	a := assert.New(t)

	rec := IconRecord{Variants: []Variant{VariantOutline, VariantSolid}}
	a.True(rec.HasVariant(VariantSolid))
	a.False(rec.HasVariant(VariantMini))
}

func TestAllSourceConfigs_Sorted(t *testing.T) {
	a := assert.New(t)

	configs := AllSourceConfigs()
	a.NotEmpty(configs)
	for i := 1; i < len(configs); i++ {
		a.Less(configs[i-1].ID, configs[i].ID)
	}
}
