package validate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iconduit/go-iconduit/service/persist"
)

const (
	MinSize           = 8
	MaxSize           = 512
	DefaultSize       = 24
	MinStroke         = 0.5
	MaxStroke         = 3
	DefaultStroke     = 2
	DefaultColor      = "currentColor"
	MaxNameLength     = 100
	MaxSourceLength   = 50
	DefaultSourceName = "lucide"
)

var (
	nameRegex       = regexp.MustCompile(`^[a-z0-9-]+$`)
	hexColorRegex   = regexp.MustCompile(`^#([0-9a-fA-F]{3}){1,2}$`)
	namedColorRegex = regexp.MustCompile(`^[a-zA-Z]+$`)
	attrNameRegex   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-_:.]*$`)
)

// bannedAttrValues are URL schemes that must never appear in attribute values.
var bannedAttrValues = []string{"javascript:", "vbscript:", "data:text/html", "file:", "about:"}

// ErrInvalidSize maps to INVALID_SIZE.
type ErrInvalidSize struct {
	Value string
}

func (e ErrInvalidSize) Error() string {
	return fmt.Sprintf("size must be an integer between %d and %d, got %q", MinSize, MaxSize, e.Value)
}

// ErrInvalidColor maps to INVALID_COLOR.
type ErrInvalidColor struct {
	Value string
}

func (e ErrInvalidColor) Error() string {
	return fmt.Sprintf("color must be currentColor, a hex color, or a CSS named color, got %q", e.Value)
}

// ErrInvalidParameter maps to INVALID_PARAMETER.
type ErrInvalidParameter struct {
	Parameter string
	Reason    string
}

func (e ErrInvalidParameter) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Parameter, e.Reason)
}

// ErrInvalidFormat maps to INVALID_FORMAT.
type ErrInvalidFormat struct {
	Format string
}

func (e ErrInvalidFormat) Error() string {
	return fmt.Sprintf("unsupported format %q", e.Format)
}

// ParseSize parses a size parameter, defaulting to 24 when absent.
func ParseSize(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultSize, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < MinSize || n > MaxSize {
		return 0, ErrInvalidSize{Value: s}
	}
	return n, nil
}

// ParseStrokeWidth parses a stroke-width parameter, defaulting to 2.
func ParseStrokeWidth(s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultStroke, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < MinStroke || f > MaxStroke {
		return 0, ErrInvalidParameter{Parameter: "stroke", Reason: fmt.Sprintf("must be a number between %g and %g", MinStroke, float64(MaxStroke))}
	}
	return f, nil
}

// ParseColor accepts currentColor, hex colors, and CSS named colors. Absent
// input yields the currentColor default. Idempotent over its own output.
func ParseColor(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == DefaultColor {
		return DefaultColor, nil
	}
	if hexColorRegex.MatchString(s) {
		return s, nil
	}
	if namedColorRegex.MatchString(s) {
		return strings.ToLower(s), nil
	}
	return "", ErrInvalidColor{Value: s}
}

// ParseRotate parses an optional rotation in degrees.
func ParseRotate(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, ErrInvalidParameter{Parameter: "rotate", Reason: "must be a number of degrees"}
	}
	return &f, nil
}

// ParseMirror is truthy for true/1/yes/on, case-insensitive, else false.
func ParseMirror(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// ParseLimit parses a page-size parameter with a floor on fractional input.
func ParseLimit(s string, def, max int) (int, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, ErrInvalidParameter{Parameter: "limit", Reason: "must be an integer"}
	}
	n := int(math.Floor(f))
	if n < 1 || n > max {
		return 0, ErrInvalidParameter{Parameter: "limit", Reason: fmt.Sprintf("must be between 1 and %d", max)}
	}
	return n, nil
}

// ParseOffset parses a non-negative pagination offset.
func ParseOffset(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0, ErrInvalidParameter{Parameter: "offset", Reason: "must be a non-negative integer"}
	}
	return int(math.Floor(f)), nil
}

// IconName validates a canonical icon name.
func IconName(name string) error {
	if len(name) < 1 || len(name) > MaxNameLength || !nameRegex.MatchString(name) {
		return ErrInvalidParameter{Parameter: "name", Reason: "must match ^[a-z0-9-]+$ with length 1..100"}
	}
	return nil
}

// SourceName validates a source id.
func SourceName(source string) error {
	if len(source) < 1 || len(source) > MaxSourceLength || !nameRegex.MatchString(source) {
		return ErrInvalidParameter{Parameter: "source", Reason: "must match ^[a-z0-9-]+$ with length 1..50"}
	}
	return nil
}

// VariantName validates a requested variant against the known set.
func VariantName(v string) (persist.Variant, error) {
	if v == "" {
		return "", nil
	}
	variant := persist.Variant(strings.ToLower(v))
	if !persist.KnownVariants[variant] {
		return "", ErrInvalidParameter{Parameter: "variant", Reason: fmt.Sprintf("unknown variant %q", v)}
	}
	return variant, nil
}

// CustomAttribute validates an attribute key/value pair destined for the root
// svg tag. Event handlers and script-bearing URL values are rejected.
func CustomAttribute(key, value string) error {
	if !attrNameRegex.MatchString(key) {
		return ErrInvalidParameter{Parameter: key, Reason: "invalid attribute name"}
	}
	if strings.HasPrefix(strings.ToLower(key), "on") {
		return ErrInvalidParameter{Parameter: key, Reason: "event handler attributes are not allowed"}
	}
	lowered := strings.ToLower(strings.ReplaceAll(value, " ", ""))
	for _, banned := range bannedAttrValues {
		if strings.Contains(lowered, banned) {
			return ErrInvalidParameter{Parameter: key, Reason: "attribute value contains a banned URL scheme"}
		}
	}
	return nil
}

// SearchQuery trims and lowercases a query, rejecting queries shorter than 2.
func SearchQuery(q string) (string, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if len(q) < 2 {
		return "", ErrInvalidParameter{Parameter: "q", Reason: "query must be at least 2 characters"}
	}
	return q, nil
}

// RegisterCustomValidators registers request-binding validators with gin's
// validator engine.
func RegisterCustomValidators(v *validator.Validate) {
	v.RegisterValidation("icon_name", func(fl validator.FieldLevel) bool {
		return IconName(fl.Field().String()) == nil
	})
	v.RegisterValidation("icon_source", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || SourceName(s) == nil
	})
	v.RegisterValidation("icon_variant", func(fl validator.FieldLevel) bool {
		_, err := VariantName(fl.Field().String())
		return err == nil
	})
}
