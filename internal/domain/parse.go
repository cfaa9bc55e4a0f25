package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{DateLayout, "01/02/2006", "2006/01/02"}

// ParseDate parses a source date, returning false for empty or unrecognized
// values.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	// Some CDC exports append a midnight timestamp: "2023-05-10T00:00:00.000".
	if i := strings.IndexByte(s, 'T'); i == len(DateLayout) {
		s = s[:i]
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// ParseNumber parses a numeric cell. Thousands separators are removed. Empty
// strings, placeholders such as "N/A", and non-finite values are rejected.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseFloatOrZero parses a string as float64, returning 0 on failure.
func parseFloatOrZero(s string) float64 {
	v, ok := ParseNumber(s)
	if !ok {
		return 0
	}
	return v
}
