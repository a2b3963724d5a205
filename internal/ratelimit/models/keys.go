package models

import (
	"fmt"
	"strings"
)

// KeyPrefix namespaces window counters in the shared store.
const KeyPrefix = "ratelimit"

// WindowKey identifies one fixed-window counter: client, path and period unit.
// It centralizes key format and sanitization to prevent key collision attacks.
type WindowKey struct {
	client string
	path   string
	period Period
}

// NewWindowKey creates a window key for the given client and path.
func NewWindowKey(client, path string, period Period) WindowKey {
	return WindowKey{
		client: sanitizeKeySegment(client),
		path:   sanitizeKeySegment(path),
		period: period,
	}
}

// String returns the formatted key for storage lookup.
func (k WindowKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", KeyPrefix, k.client, k.path, k.period)
}

// sanitizeKeySegment escapes delimiter characters in key segments so that a
// client-controlled value containing ':' cannot address another counter.
//
// Escape rules (order matters):
//  1. Escape '_' to '__' (escape the escape character first)
//  2. Escape ':' to '_c' (escape the delimiter)
//
// Examples:
//   - "::1"        → "_c_c1"
//   - "/a_b/"      → "/a__b/"
//   - "1.2.3.4:/x" → "1.2.3.4_c/x"
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}
