// Package util provides utility functions for operations like sorting.
package util

import (
	"sort"
)

// SliceProcessor is a function that processes a string item.
type SliceProcessor func(string)

// SortStringSlice sorts a string slice in-place for deterministic order.
func SortStringSlice(slice []string) {
	if len(slice) > 0 {
		sort.Strings(slice)
	}
}

// SortAndIterateSlice sorts a copy of a slice and applies a function to
// each item. This centralizes the common pattern of creating a copy of
// a slice, sorting it, and then iterating over the sorted values.
func SortAndIterateSlice(slice []string, fn SliceProcessor) {
	if len(slice) == 0 {
		return
	}

	sorted := make([]string, len(slice))
	copy(sorted, slice)
	sort.Strings(sorted)

	for _, item := range sorted {
		fn(item)
	}
}

// SortStringMapKeys returns a sorted slice of keys from a string map.
func SortStringMapKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
