package utils

import (
	"strconv"
	"strings"
)

// ParseValue coerces a raw file cell into its natural scalar type.
func ParseValue(s string) interface{} {
	// Trim whitespace first
	s = strings.TrimSpace(s)

	// try int
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	// try float
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// CleanHeader normalizes a CSV header cell: trims whitespace and strips any
// stray quotes left by exporters.
func CleanHeader(h string) string {
	h = strings.TrimSpace(h)
	return strings.ReplaceAll(h, `"`, "")
}
