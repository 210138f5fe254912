package validate

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

const cleanSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2"><path d="M3 9l9-7 9 7v11a2 2 0 0 1-2 2H5a2 2 0 0 1-2-2z"/></svg>`

func TestSanitizeSVG_Clean(t *testing.T) {
	a := assert.New(t)

	out, threats := SanitizeSVG([]byte(cleanSVG))
	a.Empty(threats)
	a.Equal([]byte(cleanSVG), out)
}

func TestSanitizeSVG_Threats(t *testing.T) {
	a := assert.New(t)

	t.Run("script element", func(t *testing.T) {
		out, threats := SanitizeSVG([]byte(`<svg><script>alert(1)</script></svg>`))
		a.Nil(out)
		a.Contains(threats, ThreatScriptElement)
	})

	t.Run("event handler attribute", func(t *testing.T) {
		out, threats := SanitizeSVG([]byte(`<svg onload="alert(1)"><path d="M0 0"/></svg>`))
		a.Nil(out)
		a.Contains(threats, ThreatEventHandler)
	})

	t.Run("javascript url", func(t *testing.T) {
		out, threats := SanitizeSVG([]byte(`<svg xmlns="http://www.w3.org/2000/svg"><use href="javascript:alert(1)"/></svg>`))
		a.Nil(out)
		a.Contains(threats, ThreatScriptURI)
	})

	t.Run("disallowed element", func(t *testing.T) {
		out, threats := SanitizeSVG([]byte(`<svg><foreignObject/></svg>`))
		a.Nil(out)
		a.Contains(threats, "disallowed_element:foreignObject")
	})

	t.Run("malformed xml", func(t *testing.T) {
		out, threats := SanitizeSVG([]byte(`<svg><path`))
		a.Nil(out)
		a.Contains(threats, ThreatMalformedXML)
	})

	t.Run("oversized payload", func(t *testing.T) {
		big := append([]byte("<svg>"), bytes.Repeat([]byte("a"), MaxSVGPayload)...)
		out, threats := SanitizeSVG(big)
		a.Nil(out)
		a.Equal([]string{ThreatPayloadTooLarge}, threats)
	})
}

func TestValidateSVGContent(t *testing.T) {
	a := assert.New(t)

	a.NoError(ValidateSVGContent([]byte(cleanSVG)))
	a.Error(ValidateSVGContent([]byte(`{"not":"svg"}`)))
	a.Error(ValidateSVGContent([]byte(`<svg><SCRIPT>x</SCRIPT></svg>`)))
	a.Error(ValidateSVGContent([]byte(`<svg onclick=alert(1)></svg>`)))
	a.Error(ValidateSVGContent([]byte(`<svg><a href="JavaScript:x">x</a></svg>`)))
}

func TestSanitizeKey(t *testing.T) {
	a := assert.New(t)

	clean, err := SanitizeKey("lucide/home.svg")
	a.NoError(err)
	a.Equal("lucide/home.svg", clean)

	clean, err = SanitizeKey("lucide//home.svg")
	a.NoError(err)
	a.Equal("lucide/home.svg", clean)

	for _, bad := range []string{"", "../etc/passwd", "lucide/../home.svg", "/abs/path.svg", "lucide\\home.svg", "lucide/home.svg?x=1"} {
		_, err := SanitizeKey(bad)
		a.Error(err, "expected %q to be rejected", bad)
	}
}
