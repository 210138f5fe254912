package persist

import "fmt"

// ErrIconNotFound is returned when no record exists for (source, name), or a
// record exists but its blob is missing. Suggestions carries up to 5
// substring-matching names from the same source.
type ErrIconNotFound struct {
	Name        string
	Source      string
	Suggestions []string
}

func (e ErrIconNotFound) Error() string {
	return fmt.Sprintf("icon not found: %s:%s", e.Source, e.Name)
}

// ErrVariantNotAvailable is returned when a requested variant is not declared
// by the source, or the source has no key mapping for it.
type ErrVariantNotAvailable struct {
	Source  string
	Name    string
	Variant Variant
}

func (e ErrVariantNotAvailable) Error() string {
	return fmt.Sprintf("variant %s not available for %s:%s", e.Variant, e.Source, e.Name)
}

// ErrCategoryNotFound is returned for lookups against an unknown category.
type ErrCategoryNotFound struct {
	Category string
}

func (e ErrCategoryNotFound) Error() string {
	return fmt.Sprintf("category not found: %s", e.Category)
}

// ErrSourceNotFound is returned for lookups against an unknown source.
type ErrSourceNotFound struct {
	Source string
}

func (e ErrSourceNotFound) Error() string {
	return fmt.Sprintf("source not found: %s", e.Source)
}

// ErrStorage wraps key-value or object-store backend failures, including
// circuit-broken calls.
type ErrStorage struct {
	Op  string
	Err error
}

func (e ErrStorage) Error() string {
	return fmt.Sprintf("storage error during %s: %s", e.Op, e.Err)
}

func (e ErrStorage) Unwrap() error {
	return e.Err
}
