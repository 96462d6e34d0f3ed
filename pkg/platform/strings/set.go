// Package strings provides string set helpers used when merging lookup results.
package strings

import (
	"slices"
	"strings"
)

// SortedSet trims every value, drops blanks and duplicates and returns the
// remaining values in ascending order. The result never aliases values.
//
// Example:
//
//	SortedSet(" 00000002", "00000001", "00000002", "")
//	// Returns: []string{"00000001", "00000002"}
func SortedSet(values ...string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	slices.Sort(result)
	return result
}

// Union merges sets produced by SortedSet.
func Union(sets ...[]string) []string {
	var all []string
	for _, s := range sets {
		all = append(all, s...)
	}
	return SortedSet(all...)
}

// NormalizeName upper-cases and collapses internal whitespace so names from
// different sources compare consistently.
func NormalizeName(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}
