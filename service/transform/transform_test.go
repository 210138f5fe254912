package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iconduit/go-iconduit/service/persist"
)

const homeSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="24" height="24" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2"><path d="M3 9l9-7 9 7v11a2 2 0 0 1-2 2H5a2 2 0 0 1-2-2z"/></svg>`

func TestTransform_SizeAndColor(t *testing.T) {
	a := assert.New(t)
	e := NewEngine()

	size := 48
	out := e.Transform(homeSVG, persist.TransformOptions{
		Size:  &size,
		Color: "#ff0000",
	})

	a.Contains(out, `width="48"`)
	a.Contains(out, `height="48"`)
	a.Contains(out, `stroke="#ff0000"`)
	a.NotContains(out, "currentColor")
	a.Contains(out, `stroke-width="2"`)
}

func TestTransform_StrokeWidth(t *testing.T) {
	a := assert.New(t)
	e := NewEngine()

	sw := 1.5
	out := e.Transform(homeSVG, persist.TransformOptions{StrokeWidth: &sw})
	a.Contains(out, `stroke-width="1.5"`)
	a.NotContains(out, `stroke-width="2"`)

	camel := `<svg strokeWidth="2"><path strokeWidth="2"/></svg>`
	out = e.Transform(camel, persist.TransformOptions{StrokeWidth: &sw})
	a.Equal(2, strings.Count(out, `strokeWidth="1.5"`))
}

func TestTransform_InsertsMissingAttrs(t *testing.T) {
	a := assert.New(t)
	e := NewEngine()

	size := 32
	out := e.Transform(`<svg viewBox="0 0 24 24"><path/></svg>`, persist.TransformOptions{Size: &size})
	a.Contains(out, `width="32"`)
	a.Contains(out, `height="32"`)
}

// Heroicons-style sources size the root tag with viewBox only and carry a
// stroke-width attribute; sizing must insert width/height instead of
// rewriting stroke-width.
func TestTransform_SizeOnStrokeWidthOnlyTag(t *testing.T) {
	a := assert.New(t)
	e := NewEngine()

	heart := `<svg xmlns="http://www.w3.org/2000/svg" fill="none" viewBox="0 0 24 24" stroke-width="1.5" stroke="currentColor"><path stroke-linecap="round" d="M21 8.25c0-2.485-2.099-4.5-4.688-4.5"/></svg>`

	size := 48
	out := e.Transform(heart, persist.TransformOptions{Size: &size})
	a.Contains(out, `width="48"`)
	a.Contains(out, `height="48"`)
	a.Contains(out, `stroke-width="1.5"`)
	a.NotContains(out, `stroke-width="48"`)

	sw := 2.0
	out = e.Transform(heart, persist.TransformOptions{Size: &size, StrokeWidth: &sw})
	a.Contains(out, `width="48"`)
	a.Contains(out, `height="48"`)
	a.Contains(out, `stroke-width="2"`)
}

func TestTransform_ClassMerging(t *testing.T) {
	a := assert.New(t)
	e := NewEngine()

	out := e.Transform(`<svg class="icon"><path/></svg>`, persist.TransformOptions{Class: "icon spin"})
	a.Contains(out, `class="icon spin"`)

	out = e.Transform(`<svg><path/></svg>`, persist.TransformOptions{Class: "spin"})
	a.Contains(out, `class="spin"`)
}

func TestTransform_Geometry(t *testing.T) {
	a := assert.New(t)
	e := NewEngine()

	rotate := 90.0
	out := e.Transform(homeSVG, persist.TransformOptions{Rotate: &rotate})
	a.Contains(out, `transform="rotate(90 12 12)"`)

	out = e.Transform(homeSVG, persist.TransformOptions{Mirror: true})
	a.Contains(out, `transform="scale(-1, 1) translate(-24, 0)"`)

	// Both compose, mirror first.
	out = e.Transform(homeSVG, persist.TransformOptions{Mirror: true, Rotate: &rotate})
	a.Contains(out, `transform="scale(-1, 1) translate(-24, 0) rotate(90 12 12)"`)

	// Without a viewBox geometry is skipped.
	out = e.Transform(`<svg><path/></svg>`, persist.TransformOptions{Mirror: true})
	a.NotContains(out, "transform=")

	// Full turns are dropped.
	full := 360.0
	out = e.Transform(homeSVG, persist.TransformOptions{Rotate: &full})
	a.NotContains(out, "rotate(")
}

func TestTransform_CustomAttributes(t *testing.T) {
	a := assert.New(t)
	e := NewEngine()

	out := e.Transform(homeSVG, persist.TransformOptions{
		Attributes: map[string]string{"data-testid": "home-icon", "aria-label": "Home"},
	})
	a.Contains(out, `data-testid="home-icon"`)
	a.Contains(out, `aria-label="Home"`)
}

func TestTransform_Deterministic(t *testing.T) {
	a := assert.New(t)
	e := NewEngine()

	size := 48
	opts := persist.TransformOptions{
		Size:   &size,
		Color:  "#00ff00",
		Mirror: true,
		Attributes: map[string]string{
			"data-a": "1",
			"data-b": "2",
			"data-c": "3",
		},
	}

	first := e.Transform(homeSVG, opts)
	for i := 0; i < 10; i++ {
		a.Equal(first, e.Transform(homeSVG, opts))
	}

	// A fresh engine (no warm cache) produces the same bytes.
	a.Equal(first, NewEngine().Transform(homeSVG, opts))
}

func TestTransform_PassthroughWithoutRoot(t *testing.T) {
	a := assert.New(t)
	e := NewEngine()

	in := `<circle r="4"/>`
	size := 48
	a.Equal(in, e.Transform(in, persist.TransformOptions{Size: &size}))
}

func TestNormalizeRotate(t *testing.T) {
	a := assert.New(t)

	a.Equal(90.0, NormalizeRotate(90))
	a.Equal(270.0, NormalizeRotate(-90))
	a.Equal(0.0, NormalizeRotate(360))
	a.Equal(45.0, NormalizeRotate(405))
}

func TestETag(t *testing.T) {
	a := assert.New(t)

	tag := ETag("abc")
	a.True(strings.HasPrefix(tag, `"`) && strings.HasSuffix(tag, `"`))
	a.Equal(tag, ETag("abc"))
	a.NotEqual(tag, ETag("abd"))
}

func TestTransform_SizeWithColorIndependent(t *testing.T) {
	a := assert.New(t)
	e := NewEngine()

	// Color substitution in the body must not disturb the size rewrite on the
	// root tag.
	size := 64
	out := e.Transform(homeSVG, persist.TransformOptions{Size: &size, Color: "tomato"})
	a.Contains(out, `width="64"`)
	a.Contains(out, `height="64"`)
	a.Contains(out, `stroke="tomato"`)
}
