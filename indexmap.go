package lenz

import "sort"

// indexMap records, for every output position, the source position the
// element there derives from. Entry m.entries[d] == s means the element at
// output position d came from source position s.
//
// Without a comparator the output preserves source order, so the entries
// are strictly increasing and lowerBound applies. With a comparator the
// entries are an arbitrary permutation of the retained source positions
// and only find applies.
type indexMap struct {
	entries []int
}

func (m *indexMap) len() int {
	return len(m.entries)
}

func (m *indexMap) at(d int) int {
	return m.entries[d]
}

func (m *indexMap) set(d, s int) {
	m.entries[d] = s
}

// push appends source position s as the last entry.
func (m *indexMap) push(s int) {
	m.entries = append(m.entries, s)
}

// insert places source position s at output position d, shifting later
// entries right.
func (m *indexMap) insert(d, s int) {
	m.entries = append(m.entries, 0)
	copy(m.entries[d+1:], m.entries[d:])
	m.entries[d] = s
}

// removeAt deletes the entry at output position d, shifting later entries
// left.
func (m *indexMap) removeAt(d int) {
	m.entries = append(m.entries[:d], m.entries[d+1:]...)
}

// shiftAtOrAbove adds delta to every entry >= s. Used to re-center the
// map after a source insertion or removal at s.
func (m *indexMap) shiftAtOrAbove(s, delta int) {
	for i, e := range m.entries {
		if e >= s {
			m.entries[i] = e + delta
		}
	}
}

// shiftRange adds delta to every entry in [lo, hi). Used to re-center the
// map after a source move.
func (m *indexMap) shiftRange(lo, hi, delta int) {
	for i, e := range m.entries {
		if e >= lo && e < hi {
			m.entries[i] = e + delta
		}
	}
}

// find returns the output position whose entry equals s, or -1. The map
// is unordered under a comparator, so this is a linear scan.
func (m *indexMap) find(s int) int {
	for i, e := range m.entries {
		if e == s {
			return i
		}
	}
	return -1
}

// lowerBound returns the first output position whose entry is >= s.
// Valid only while the entries are strictly increasing, i.e. when the
// owning view has no comparator.
func (m *indexMap) lowerBound(s int) int {
	return sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i] >= s
	})
}

func (m *indexMap) clear() {
	m.entries = m.entries[:0]
}

// snapshot returns a copy of the entries. Diagnostics and tests only.
func (m *indexMap) snapshot() []int {
	out := make([]int, len(m.entries))
	copy(out, m.entries)
	return out
}
