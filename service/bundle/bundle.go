package bundle

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/iconduit/go-iconduit/util"
)

// MaxArchiveBytes caps the uncompressed size of a bulk archive. The composer
// stops accepting entries once the cap is exceeded.
const MaxArchiveBytes = 25 * util.MB

// Format names for bulk output.
const (
	FormatZip        = "zip"
	FormatSVGBundle  = "svg-bundle"
	FormatJSONSprite = "json-sprite"
)

// Extensions maps bulk formats to attachment file extensions.
var Extensions = map[string]string{
	FormatZip:        "zip",
	FormatSVGBundle:  "svg",
	FormatJSONSprite: "json",
}

// ContentTypes maps bulk formats to response content types.
var ContentTypes = map[string]string{
	FormatZip:        "application/zip",
	FormatSVGBundle:  "image/svg+xml; charset=utf-8",
	FormatJSONSprite: "application/json; charset=utf-8",
}

// Item is one rendered icon headed into an archive.
type Item struct {
	Source  string
	Name    string
	SVG     string
	ViewBox string
}

// Filename is the archive entry name, sanitized against traversal.
func (i Item) Filename() string {
	name := fmt.Sprintf("%s-%s.svg", i.Source, i.Name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, `\`, "")
	return name
}

// BuildZip assembles a store-method ZIP archive: entries are written
// verbatim with CRC-32 and length headers, no compression. Entries past the
// 25 MiB uncompressed cap are dropped.
func BuildZip(items []Item) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	var total int
	now := time.Now()
	for _, item := range items {
		if total+len(item.SVG) > MaxArchiveBytes {
			break
		}
		total += len(item.SVG)

		fw, err := w.CreateHeader(&zip.FileHeader{
			Name:     item.Filename(),
			Method:   zip.Store,
			Modified: now,
		})
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write([]byte(item.SVG)); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var rootOpenTagRegex = regexp.MustCompile(`<svg\b[^>]*>`)

// innerSVG strips the root open tag and the closing </svg>, leaving the
// renderable body.
func innerSVG(svg string) string {
	loc := rootOpenTagRegex.FindStringIndex(svg)
	if loc == nil {
		return svg
	}
	body := svg[loc[1]:]
	if idx := strings.LastIndex(body, "</svg>"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// BuildSymbolBundle produces a single SVG document whose defs hold one
// symbol per icon, addressable as #{source}-{name}.
func BuildSymbolBundle(items []Item) []byte {
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="0" height="0" style="display:none">` + "\n<defs>\n")
	for _, item := range items {
		viewBox := item.ViewBox
		if viewBox == "" {
			viewBox = "0 0 24 24"
		}
		fmt.Fprintf(&b, `<symbol id="%s-%s" viewBox="%s">%s</symbol>`+"\n", item.Source, item.Name, viewBox, innerSVG(item.SVG))
	}
	b.WriteString("</defs>\n</svg>\n")
	return []byte(b.String())
}

type spriteIcon struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Name   string `json:"name"`
	SVG    string `json:"svg"`
}

type sprite struct {
	Format    string       `json:"format"`
	Version   string       `json:"version"`
	Generated string       `json:"generated"`
	Icons     []spriteIcon `json:"icons"`
}

// BuildJSONSprite produces the JSON sprite manifest.
func BuildJSONSprite(items []Item) ([]byte, error) {
	out := sprite{
		Format:    FormatJSONSprite,
		Version:   "1",
		Generated: time.Now().UTC().Format(time.RFC3339),
		Icons:     make([]spriteIcon, 0, len(items)),
	}
	for _, item := range items {
		out.Icons = append(out.Icons, spriteIcon{
			ID:     fmt.Sprintf("%s-%s", item.Source, item.Name),
			Source: item.Source,
			Name:   item.Name,
			SVG:    item.SVG,
		})
	}
	return json.Marshal(out)
}

// AttachmentName builds the Content-Disposition filename for a bulk download.
func AttachmentName(format string, at time.Time) string {
	return fmt.Sprintf("icons-%s.%s", at.UTC().Format("2006-01-02"), Extensions[format])
}
