package validate

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/iconduit/go-iconduit/util"
)

// MaxSVGPayload is the largest SVG the sanitizer will accept.
const MaxSVGPayload = 1 * util.MB

// Threat codes reported by SanitizeSVG.
const (
	ThreatPayloadTooLarge = "payload_too_large"
	ThreatMalformedXML    = "malformed_xml"
	ThreatScriptElement   = "script_element"
	ThreatEventHandler    = "event_handler_attribute"
	ThreatScriptURI       = "script_uri"
)

var allowedElements = map[string]bool{
	"svg": true, "g": true, "path": true, "circle": true, "ellipse": true,
	"line": true, "polygon": true, "polyline": true, "rect": true,
	"text": true, "tspan": true, "defs": true, "use": true, "symbol": true,
	"linearGradient": true, "radialGradient": true, "stop": true,
	"clipPath": true, "mask": true, "pattern": true, "filter": true,
	"feGaussianBlur": true, "feOffset": true, "feBlend": true,
	"feColorMatrix": true, "title": true, "desc": true, "metadata": true,
}

var allowedAttributes = map[string]bool{
	"id": true, "class": true, "style": true, "transform": true,
	"fill": true, "stroke": true, "stroke-width": true,
	"stroke-linecap": true, "stroke-linejoin": true,
	"stroke-dasharray": true, "stroke-dashoffset": true,
	"opacity": true, "fill-opacity": true, "stroke-opacity": true,
	"d": true, "cx": true, "cy": true, "r": true, "rx": true, "ry": true,
	"x": true, "y": true, "x1": true, "y1": true, "x2": true, "y2": true,
	"points": true, "width": true, "height": true,
	"font-family": true, "font-size": true, "font-weight": true,
	"text-anchor": true, "dominant-baseline": true,
	"viewBox": true, "preserveAspectRatio": true,
	"xmlns": true, "xmlns:xlink": true, "version": true,
	"offset": true, "stop-color": true, "stop-opacity": true,
	"gradientUnits": true, "gradientTransform": true, "spreadMethod": true,
	"xlink:href": true, "href": true, "clip-path": true, "mask": true,
	"clip-rule": true, "filter": true, "stdDeviation": true,
	"in": true, "in2": true, "mode": true, "result": true,
	"type": true, "values": true, "dur": true, "repeatCount": true,
	"role": true, "aria-label": true, "aria-hidden": true, "focusable": true,
}

var (
	scriptTagRegex    = regexp.MustCompile(`(?i)<script`)
	eventHandlerRegex = regexp.MustCompile(`(?i)\son\w+=`)
	scriptURIRegex    = regexp.MustCompile(`(?i)javascript:`)
)

// SanitizeSVG validates an SVG payload against the element and attribute
// allowlists, operating on parsed XML. Any threat yields empty output and the
// full threat list; partially sanitized output is never exposed.
func SanitizeSVG(payload []byte) ([]byte, []string) {
	if len(payload) > MaxSVGPayload {
		return nil, []string{ThreatPayloadTooLarge}
	}

	var threats []string
	seen := map[string]bool{}
	report := func(code string) {
		if !seen[code] {
			seen[code] = true
			threats = append(threats, code)
		}
	}

	dec := xml.NewDecoder(bytes.NewReader(payload))
	// Icon SVGs carry no external entities; forbid resolution outright.
	dec.Entity = xml.HTMLEntity
	sawRoot := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			report(ThreatMalformedXML)
			break
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true

		name := start.Name.Local
		if strings.EqualFold(name, "script") {
			report(ThreatScriptElement)
			continue
		}
		if !allowedElements[name] {
			report("disallowed_element:" + name)
		}

		for _, attr := range start.Attr {
			attrName := attrKey(attr.Name)
			if strings.HasPrefix(strings.ToLower(attrName), "on") {
				report(ThreatEventHandler)
				continue
			}
			if !allowedAttributes[attrName] {
				report("disallowed_attribute:" + attrName)
				continue
			}
			if scriptURIRegex.MatchString(attr.Value) {
				report(ThreatScriptURI)
			}
		}
	}

	if !sawRoot {
		report(ThreatMalformedXML)
	}
	if len(threats) > 0 {
		return nil, threats
	}
	return payload, nil
}

func attrKey(n xml.Name) string {
	// The decoder resolves xmlns/xlink prefixes to namespace URLs; map them
	// back to the allowlist spellings.
	switch n.Space {
	case "":
		return n.Local
	case "xmlns":
		return "xmlns:" + n.Local
	case "http://www.w3.org/1999/xlink", "xlink":
		return "xlink:" + n.Local
	case "http://www.w3.org/2000/xmlns/":
		return "xmlns:" + n.Local
	}
	if n.Local == "xmlns" {
		return "xmlns"
	}
	return n.Space + ":" + n.Local
}

// ValidateSVGContent is the fast blob-store check: the body must look like an
// SVG document and must not carry scripts, inline handlers, or javascript
// URLs. Bodies failing this are treated as misses upstream.
func ValidateSVGContent(body []byte) error {
	s := string(body)
	if !strings.Contains(s, "<svg") || !strings.Contains(s, "</svg>") {
		return errors.New("body is not an svg document")
	}
	if scriptTagRegex.MatchString(s) {
		return errors.New("svg contains a script element")
	}
	if eventHandlerRegex.MatchString(s) {
		return errors.New("svg contains an inline event handler")
	}
	if scriptURIRegex.MatchString(s) {
		return errors.New("svg contains a javascript url")
	}
	return nil
}

var keyCharRegex = regexp.MustCompile(`^[a-zA-Z0-9\-_.\/]+$`)
var slashRunRegex = regexp.MustCompile(`/{2,}`)

// SanitizeKey guards blob keys against path traversal. Runs of slashes are
// collapsed; traversal segments, absolute paths, and characters outside
// [a-zA-Z0-9-_./] are rejected.
func SanitizeKey(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("key %q contains a traversal segment", key)
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("key %q is absolute", key)
	}
	if !keyCharRegex.MatchString(key) {
		return "", fmt.Errorf("key %q contains invalid characters", key)
	}
	return slashRunRegex.ReplaceAllString(key, "/"), nil
}
