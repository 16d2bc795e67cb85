package lenz

import "sort"

// Placement helpers for comparator-ordered outputs. All comparators follow
// the cmp convention: negative when a sorts before b, zero when equal,
// positive when a sorts after b.

// searchInsert returns the position a new item should be inserted at: the
// first index whose element compares strictly greater than v. Equal
// elements stay ahead of the newcomer, so ties resolve by insertion order,
// matching the stable sort used when the output is built from scratch.
func searchInsert[T any](items []T, v T, cmp func(a, b T) int) int {
	return sort.Search(len(items), func(i int) bool {
		return cmp(items[i], v) > 0
	})
}

// canStayAt reports whether v can occupy position idx without violating
// the ordering against its neighbors. Items that can stay are replaced in
// place rather than relocated, which keeps downstream churn minimal.
func canStayAt[T any](items []T, idx int, v T, cmp func(a, b T) int) bool {
	if idx > 0 && cmp(items[idx-1], v) > 0 {
		return false
	}
	if idx < len(items)-1 && cmp(v, items[idx+1]) > 0 {
		return false
	}
	return true
}

// searchMove returns the position the existing element at idx should move
// to after its sort key changed to v. The search runs over the slice with
// idx conceptually removed and the result is in post-removal coordinates:
// remove at idx, insert at the returned position.
func searchMove[T any](items []T, idx int, v T, cmp func(a, b T) int) int {
	return sort.Search(len(items)-1, func(j int) bool {
		real := j
		if j >= idx {
			real = j + 1
		}
		return cmp(items[real], v) > 0
	})
}
