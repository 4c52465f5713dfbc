package util

import (
	"bytes"
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// FastIntSet keeps track of a set of non-negative integers. The zero value is
// an empty set. A FastIntSet must be Copy'd before being modified if the
// original is still referenced, since a plain assignment shares storage.
type FastIntSet struct {
	set *bitset.BitSet
}

// MakeFastIntSet returns a set initialized with the given values.
func MakeFastIntSet(vals ...int) FastIntSet {
	var s FastIntSet
	for _, v := range vals {
		s.Add(v)
	}
	return s
}

func (s *FastIntSet) Add(i int) {
	if i < 0 {
		panic(fmt.Sprintf("negative value %d added to FastIntSet", i))
	}
	if s.set == nil {
		s.set = bitset.New(64)
	}
	s.set.Set(uint(i))
}

// AddRange adds the interval [from, to] to the set.
func (s *FastIntSet) AddRange(from, to int) {
	for i := from; i <= to; i++ {
		s.Add(i)
	}
}

func (s *FastIntSet) Remove(i int) {
	if s.set != nil && i >= 0 {
		s.set.Clear(uint(i))
	}
}

func (s FastIntSet) Contains(i int) bool {
	return s.set != nil && i >= 0 && s.set.Test(uint(i))
}

func (s FastIntSet) Empty() bool {
	return s.set == nil || s.set.None()
}

func (s FastIntSet) Len() int {
	if s.set == nil {
		return 0
	}
	return int(s.set.Count())
}

// Next returns the first value in the set which is >= startVal. If there is no
// such value, the second return value is false.
func (s FastIntSet) Next(startVal int) (int, bool) {
	if s.set == nil {
		return 0, false
	}
	if startVal < 0 {
		startVal = 0
	}
	i, ok := s.set.NextSet(uint(startVal))
	return int(i), ok
}

// ForEach calls f for each value in the set, in increasing order.
func (s FastIntSet) ForEach(f func(i int)) {
	for i, ok := s.Next(0); ok; i, ok = s.Next(i + 1) {
		f(i)
	}
}

// Ordered returns a slice with all the values in the set, in increasing order.
func (s FastIntSet) Ordered() []int {
	if s.Empty() {
		return nil
	}
	res := make([]int, 0, s.Len())
	s.ForEach(func(i int) {
		res = append(res, i)
	})
	return res
}

func (s FastIntSet) Copy() FastIntSet {
	if s.set == nil {
		return FastIntSet{}
	}
	return FastIntSet{set: s.set.Clone()}
}

func (s *FastIntSet) UnionWith(rhs FastIntSet) {
	if rhs.set == nil {
		return
	}
	if s.set == nil {
		s.set = rhs.set.Clone()
		return
	}
	s.set.InPlaceUnion(rhs.set)
}

func (s FastIntSet) Union(rhs FastIntSet) FastIntSet {
	r := s.Copy()
	r.UnionWith(rhs)
	return r
}

func (s *FastIntSet) IntersectionWith(rhs FastIntSet) {
	if s.set == nil {
		return
	}
	if rhs.set == nil {
		s.set = nil
		return
	}
	s.set.InPlaceIntersection(rhs.set)
}

func (s FastIntSet) Intersection(rhs FastIntSet) FastIntSet {
	r := s.Copy()
	r.IntersectionWith(rhs)
	return r
}

func (s FastIntSet) Intersects(rhs FastIntSet) bool {
	if s.set == nil || rhs.set == nil {
		return false
	}
	return s.set.IntersectionCardinality(rhs.set) > 0
}

func (s *FastIntSet) DifferenceWith(rhs FastIntSet) {
	if s.set == nil || rhs.set == nil {
		return
	}
	s.set.InPlaceDifference(rhs.set)
}

func (s FastIntSet) Difference(rhs FastIntSet) FastIntSet {
	r := s.Copy()
	r.DifferenceWith(rhs)
	return r
}

// SubsetOf returns true if rhs contains all the elements in s.
func (s FastIntSet) SubsetOf(rhs FastIntSet) bool {
	if s.Empty() {
		return true
	}
	if rhs.set == nil {
		return false
	}
	return rhs.set.IsSuperSet(s.set)
}

// Equals returns true if the two sets are identical. The underlying bitsets
// may have different lengths, so bitset.Equal can't be used directly.
func (s FastIntSet) Equals(rhs FastIntSet) bool {
	return s.SubsetOf(rhs) && rhs.SubsetOf(s)
}

// String returns a list representation of elements. Sequential runs of
// positive numbers are shown as ranges, e.g. (1,3-5,7).
func (s FastIntSet) String() string {
	var buf bytes.Buffer
	buf.WriteByte('(')
	appendRange := func(start, end int) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		if start == end {
			fmt.Fprintf(&buf, "%d", start)
		} else if start+1 == end {
			fmt.Fprintf(&buf, "%d,%d", start, end)
		} else {
			fmt.Fprintf(&buf, "%d-%d", start, end)
		}
	}
	rangeStart, rangeEnd := -1, -1
	s.ForEach(func(i int) {
		if rangeStart != -1 && rangeEnd == i-1 {
			rangeEnd = i
			return
		}
		if rangeStart != -1 {
			appendRange(rangeStart, rangeEnd)
		}
		rangeStart, rangeEnd = i, i
	})
	if rangeStart != -1 {
		appendRange(rangeStart, rangeEnd)
	}
	buf.WriteByte(')')
	return buf.String()
}
