package bundle

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testItems = []Item{
	{Source: "lucide", Name: "home", SVG: `<svg viewBox="0 0 24 24"><path d="M3 9"/></svg>`, ViewBox: "0 0 24 24"},
	{Source: "lucide", Name: "user", SVG: `<svg viewBox="0 0 24 24"><circle r="4"/></svg>`, ViewBox: "0 0 24 24"},
}

func TestBuildZip(t *testing.T) {
	a := assert.New(t)

	body, err := BuildZip(testItems)
	a.NoError(err)

	r, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	a.NoError(err)
	a.Len(r.File, 2)

	a.Equal("lucide-home.svg", r.File[0].Name)
	a.Equal("lucide-user.svg", r.File[1].Name)

	for i, f := range r.File {
		a.Equal(zip.Store, f.Method)

		rc, err := f.Open()
		a.NoError(err)
		content, err := io.ReadAll(rc)
		rc.Close()
		a.NoError(err)
		a.Equal(testItems[i].SVG, string(content))
	}
}

func TestBuildZip_EnforcesSizeCap(t *testing.T) {
	a := assert.New(t)

	big := Item{Source: "lucide", Name: "big", SVG: strings.Repeat("x", MaxArchiveBytes-10)}
	overflow := Item{Source: "lucide", Name: "overflow", SVG: strings.Repeat("y", 100)}

	body, err := BuildZip([]Item{big, overflow})
	a.NoError(err)

	r, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	a.NoError(err)
	a.Len(r.File, 1)
	a.Equal("lucide-big.svg", r.File[0].Name)
}

func TestItemFilename_Sanitized(t *testing.T) {
	a := assert.New(t)

	item := Item{Source: "lucide", Name: "home"}
	a.Equal("lucide-home.svg", item.Filename())

	hostile := Item{Source: `..\..`, Name: "evil"}
	name := hostile.Filename()
	a.NotContains(name, "..")
	a.NotContains(name, `\`)
}

func TestBuildSymbolBundle(t *testing.T) {
	a := assert.New(t)

	out := string(BuildSymbolBundle(testItems))
	a.Contains(out, `<symbol id="lucide-home" viewBox="0 0 24 24">`)
	a.Contains(out, `<symbol id="lucide-user" viewBox="0 0 24 24">`)
	a.Contains(out, `<path d="M3 9"/>`)
	a.NotContains(out, `<symbol id="lucide-home" viewBox="0 0 24 24"><svg`)
	a.True(strings.HasPrefix(out, "<svg "))
	a.Contains(out, "</defs>")

	// Missing viewBox falls back to the 24-unit box.
	out = string(BuildSymbolBundle([]Item{{Source: "s", Name: "n", SVG: "<svg><path/></svg>"}}))
	a.Contains(out, `viewBox="0 0 24 24"`)
}

func TestBuildJSONSprite(t *testing.T) {
	a := assert.New(t)

	body, err := BuildJSONSprite(testItems)
	a.NoError(err)

	var out struct {
		Format    string `json:"format"`
		Version   string `json:"version"`
		Generated string `json:"generated"`
		Icons     []struct {
			ID     string `json:"id"`
			Source string `json:"source"`
			Name   string `json:"name"`
			SVG    string `json:"svg"`
		} `json:"icons"`
	}
	a.NoError(json.Unmarshal(body, &out))
	a.Equal(FormatJSONSprite, out.Format)
	a.Equal("1", out.Version)
	a.NotEmpty(out.Generated)
	a.Len(out.Icons, 2)
	a.Equal("lucide-home", out.Icons[0].ID)
	a.Equal(testItems[0].SVG, out.Icons[0].SVG)
}

func TestAttachmentName(t *testing.T) {
	a := assert.New(t)

	at := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	a.Equal("icons-2026-03-14.zip", AttachmentName(FormatZip, at))
	a.Equal("icons-2026-03-14.svg", AttachmentName(FormatSVGBundle, at))
	a.Equal("icons-2026-03-14.json", AttachmentName(FormatJSONSprite, at))
}
