package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSize(t *testing.T) {
	a := assert.New(t)

	n, err := ParseSize("")
	a.NoError(err)
	a.Equal(DefaultSize, n)

	n, err = ParseSize("8")
	a.NoError(err)
	a.Equal(8, n)

	n, err = ParseSize("512")
	a.NoError(err)
	a.Equal(512, n)

	for _, bad := range []string{"7", "513", "abc", "24.5", "-24"} {
		_, err = ParseSize(bad)
		a.Error(err, "expected %q to be rejected", bad)
		a.IsType(ErrInvalidSize{}, err)
	}
}

func TestParseStrokeWidth(t *testing.T) {
	a := assert.New(t)

	f, err := ParseStrokeWidth("")
	a.NoError(err)
	a.Equal(float64(DefaultStroke), f)

	f, err = ParseStrokeWidth("0.5")
	a.NoError(err)
	a.Equal(0.5, f)

	f, err = ParseStrokeWidth("3")
	a.NoError(err)
	a.Equal(float64(3), f)

	for _, bad := range []string{"0.4", "3.1", "wide"} {
		_, err = ParseStrokeWidth(bad)
		a.Error(err, "expected %q to be rejected", bad)
	}
}

func TestParseColor(t *testing.T) {
	a := assert.New(t)

	c, err := ParseColor("")
	a.NoError(err)
	a.Equal("currentColor", c)

	c, err = ParseColor("#ff0000")
	a.NoError(err)
	a.Equal("#ff0000", c)

	c, err = ParseColor("#f00")
	a.NoError(err)
	a.Equal("#f00", c)

	c, err = ParseColor("RebeccaPurple")
	a.NoError(err)
	a.Equal("rebeccapurple", c)

	// Idempotent over its own output.
	c2, err := ParseColor(c)
	a.NoError(err)
	a.Equal(c, c2)

	for _, bad := range []string{"#ff00", "#gggggg", "rgb(0,0,0)", "url(javascript:x)"} {
		_, err = ParseColor(bad)
		a.Error(err, "expected %q to be rejected", bad)
	}
}

func TestParseMirror(t *testing.T) {
	a := assert.New(t)

	a.True(ParseMirror("true"))
	a.True(ParseMirror(" TRUE "))
	a.True(ParseMirror("1"))
	a.True(ParseMirror("yes"))
	a.True(ParseMirror("on"))
	a.False(ParseMirror("no"))
	a.False(ParseMirror("false"))
	a.False(ParseMirror(""))
	a.False(ParseMirror("2"))
}

func TestParseRotate(t *testing.T) {
	a := assert.New(t)

	r, err := ParseRotate("")
	a.NoError(err)
	a.Nil(r)

	r, err = ParseRotate("90")
	a.NoError(err)
	a.Equal(90.0, *r)

	r, err = ParseRotate("-45.5")
	a.NoError(err)
	a.Equal(-45.5, *r)

	_, err = ParseRotate("sideways")
	a.Error(err)
}

func TestParseLimitAndOffset(t *testing.T) {
	a := assert.New(t)

	n, err := ParseLimit("", 20, 100)
	a.NoError(err)
	a.Equal(20, n)

	// Fractional limits floor.
	n, err = ParseLimit("10.9", 20, 100)
	a.NoError(err)
	a.Equal(10, n)

	_, err = ParseLimit("0", 20, 100)
	a.Error(err)
	_, err = ParseLimit("101", 20, 100)
	a.Error(err)

	off, err := ParseOffset("")
	a.NoError(err)
	a.Equal(0, off)

	off, err = ParseOffset("5")
	a.NoError(err)
	a.Equal(5, off)

	_, err = ParseOffset("-1")
	a.Error(err)
}

func TestIconAndSourceNames(t *testing.T) {
	a := assert.New(t)

	a.NoError(IconName("arrow-up-2"))
	a.Error(IconName(""))
	a.Error(IconName("Arrow"))
	a.Error(IconName("arrow_up"))
	a.Error(IconName("../../etc/passwd"))

	a.NoError(SourceName("lucide"))
	a.Error(SourceName("Lucide"))
	a.Error(SourceName(""))
}

func TestVariantName(t *testing.T) {
	a := assert.New(t)

	v, err := VariantName("")
	a.NoError(err)
	a.Empty(v)

	v, err = VariantName("Solid")
	a.NoError(err)
	a.EqualValues("solid", v)

	_, err = VariantName("sketchy")
	a.Error(err)
}

func TestCustomAttribute(t *testing.T) {
	a := assert.New(t)

	a.NoError(CustomAttribute("data-testid", "icon"))
	a.NoError(CustomAttribute("aria-label", "home icon"))

	a.Error(CustomAttribute("onclick", "alert(1)"))
	a.Error(CustomAttribute("onLoad", "x"))
	a.Error(CustomAttribute("data-href", "javascript:alert(1)"))
	a.Error(CustomAttribute("data-href", "JAVA SCRIPT:alert(1)"))
	a.Error(CustomAttribute("data-src", "data:text/html,<script>"))
	a.Error(CustomAttribute("1bad", "x"))
}

func TestSearchQuery(t *testing.T) {
	a := assert.New(t)

	q, err := SearchQuery("  HOme ")
	a.NoError(err)
	a.Equal("home", q)

	q, err = SearchQuery("ho")
	a.NoError(err)
	a.Equal("ho", q)

	_, err = SearchQuery("h")
	a.Error(err)
	_, err = SearchQuery("  ")
	a.Error(err)
}
