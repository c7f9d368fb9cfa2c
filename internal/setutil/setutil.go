// Package setutil provides set algebra over package name slices.
//
// All operations return sorted, deduplicated slices so that every set has a
// single canonical representation. That keeps closure computation
// deterministic and makes the fixpoint stability test a plain equality
// check. Package counts are in the hundreds, so clarity wins over speed.
package setutil

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// SortUnique returns a sorted copy of names with duplicates removed.
// The input slice is not modified.
func SortUnique(names []string) []string {
	return sorted(mapset.NewThreadUnsafeSet(names...))
}

// Union returns the sorted, deduplicated union of a and b.
func Union(a, b []string) []string {
	return sorted(mapset.NewThreadUnsafeSet(a...).Union(mapset.NewThreadUnsafeSet(b...)))
}

// Difference returns the sorted, deduplicated elements of a not present in b.
func Difference(a, b []string) []string {
	return sorted(mapset.NewThreadUnsafeSet(a...).Difference(mapset.NewThreadUnsafeSet(b...)))
}

// Intersect returns the sorted, deduplicated elements present in both a and b.
func Intersect(a, b []string) []string {
	return sorted(mapset.NewThreadUnsafeSet(a...).Intersect(mapset.NewThreadUnsafeSet(b...)))
}

// Equal reports whether a and b contain the same elements, ignoring order
// and duplicates. This is the fixpoint stability test: two iterations that
// add and drop the same number of different names compare unequal.
func Equal(a, b []string) bool {
	return mapset.NewThreadUnsafeSet(a...).Equal(mapset.NewThreadUnsafeSet(b...))
}

// Contains reports whether names contains name.
func Contains(names []string, name string) bool {
	return mapset.NewThreadUnsafeSet(names...).Contains(name)
}

func sorted(s mapset.Set[string]) []string {
	out := s.ToSlice()
	sort.Strings(out)
	return out
}
