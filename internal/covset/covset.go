// Package covset implements ordered set algebra over per-module BB
// offset sets, the way the pack's coverage-signal package implements
// set algebra over sorted PC slices -- adapted here to uint64 module
// offsets (rather than 32-bit fuzzer PCs) so that the "diff" subcommand
// can compare two coverage dumps module by module.
package covset

import "sort"

// Set is a sorted, deduplicated collection of BB offsets for one
// module.
type Set []uint64

const sentinel = ^uint64(0)

func (s Set) Len() int           { return len(s) }
func (s Set) Less(i, j int) bool { return s[i] < s[j] }
func (s Set) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Canonicalize sorts offsets and removes duplicates in place.
func Canonicalize(offsets []uint64) Set {
	sort.Sort(Set(offsets))
	i := 0
	last := sentinel
	for _, off := range offsets {
		if off != last {
			last = off
			offsets[i] = off
			i++
		}
	}
	return Set(offsets[:i])
}

// Union returns every offset present in either set.
func Union(a, b Set) Set {
	return foreach(a, b, func(v0, v1 uint64) uint64 {
		if v0 <= v1 {
			return v0
		}
		return v1
	})
}

// Intersection returns only the offsets present in both sets.
func Intersection(a, b Set) Set {
	return foreach(a, b, func(v0, v1 uint64) uint64 {
		if v0 == v1 {
			return v0
		}
		return sentinel
	})
}

// Difference returns the offsets present in a but absent from b --
// the BBs a's run covered that b's did not.
func Difference(a, b Set) Set {
	return foreach(a, b, func(v0, v1 uint64) uint64 {
		if v0 < v1 {
			return v0
		}
		return sentinel
	})
}

// SymmetricDifference returns offsets present in exactly one of a, b.
func SymmetricDifference(a, b Set) Set {
	return foreach(a, b, func(v0, v1 uint64) uint64 {
		if v0 < v1 {
			return v0
		}
		if v1 < v0 {
			return v1
		}
		return sentinel
	})
}

func foreach(a, b Set, f func(uint64, uint64) uint64) Set {
	var res Set
	for i0, i1 := 0, 0; i0 < len(a) || i1 < len(b); {
		v0, v1 := sentinel, sentinel
		if i0 < len(a) {
			v0 = a[i0]
		}
		if i1 < len(b) {
			v1 = b[i1]
		}
		if v0 <= v1 {
			i0++
		}
		if v1 <= v0 {
			i1++
		}
		if v := f(v0, v1); v != sentinel {
			res = append(res, v)
		}
	}
	return res
}

// ModuleDiff is one module's comparison result between two dumps.
type ModuleDiff struct {
	Module   string
	OnlyLeft Set
	OnlyRight Set
	Shared   Set
}

// Diff compares two per-module offset-set maps (as produced by parsing
// a dump-file's BB records, keyed by module name) and returns one
// ModuleDiff per module present in either side.
func Diff(left, right map[string]Set) []ModuleDiff {
	names := map[string]bool{}
	for n := range left {
		names[n] = true
	}
	for n := range right {
		names[n] = true
	}

	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	out := make([]ModuleDiff, 0, len(sorted))
	for _, n := range sorted {
		l, r := left[n], right[n]
		out = append(out, ModuleDiff{
			Module:    n,
			OnlyLeft:  Difference(l, r),
			OnlyRight: Difference(r, l),
			Shared:    Intersection(l, r),
		})
	}
	return out
}
