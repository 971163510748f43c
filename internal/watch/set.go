package watch

import (
	"maps"
	"slices"
)

// Set is a set of absolute file paths.
type Set map[string]struct{}

// NewSet returns a Set holding paths.
func NewSet(paths ...string) Set {
	s := make(Set, len(paths))
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

// Add inserts path into the set.
func (s Set) Add(path string) { s[path] = struct{}{} }

// Has reports whether path is in the set.
func (s Set) Has(path string) bool {
	_, ok := s[path]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// Diff computes the operations that turn previous into next: toAdd holds the
// paths only in next, toRemove the paths only in previous. Both are sorted.
func Diff(previous, next Set) (toAdd, toRemove []string) {
	for p := range next {
		if !previous.Has(p) {
			toAdd = append(toAdd, p)
		}
	}
	for p := range previous {
		if !next.Has(p) {
			toRemove = append(toRemove, p)
		}
	}
	slices.Sort(toAdd)
	slices.Sort(toRemove)
	return toAdd, toRemove
}
