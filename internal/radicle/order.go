package radicle

import (
	"sort"
	"strings"
)

// CompareEntries orders directories before files and otherwise compares
// names byte-wise, which is case-sensitive.
func CompareEntries(a, b Entry) int {
	if a.Kind != b.Kind {
		if a.IsDir() {
			return -1
		}
		if b.IsDir() {
			return 1
		}
	}
	return strings.Compare(a.Name, b.Name)
}

// SortEntries sorts entries in place with CompareEntries.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return CompareEntries(entries[i], entries[j]) < 0
	})
}
