package util

import "strings"

// UniqueStrings returns a deduplicated copy of the slice preserving insertion order.
// Returns nil for empty or nil input.
func UniqueStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(s))
	result := make([]string, 0, len(s))
	for _, v := range s {
		if _, exists := seen[v]; !exists {
			seen[v] = struct{}{}
			result = append(result, v)
		}
	}
	return result
}

// SplitFields splits a whitespace-separated list into its distinct items,
// preserving first-seen order. Returns nil for a blank string.
func SplitFields(s string) []string {
	return UniqueStrings(strings.Fields(s))
}

// StringSet builds a membership set from the given items.
func StringSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, v := range items {
		set[v] = struct{}{}
	}
	return set
}
