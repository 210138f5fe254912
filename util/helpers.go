package util

import (
	"strings"
)

// GinContextKey is the request-context key the GinContextToContext middleware
// stores the gin context under.
const GinContextKey string = "GinContextKey"

const (
	// KB is the number of bytes in a kilobyte
	KB = 1024
	// MB is the number of bytes in a megabyte
	MB = 1024 * KB
)

// ContainsString checks whether an item exists in a slice
func ContainsString(s []string, str string) bool {
	for _, v := range s {
		if v == str {
			return true
		}
	}
	return false
}

// Dedupe removes duplicate elements, preserving first-seen order.
func Dedupe(s []string) []string {
	seen := make(map[string]bool, len(s))
	out := s[:0]
	for _, v := range s {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// SplitCSV splits a comma-separated value list, trimming whitespace and
// dropping empty entries.
func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
