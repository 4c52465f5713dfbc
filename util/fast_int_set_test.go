package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFastIntSet(t *testing.T) {
	var s FastIntSet
	require.True(t, s.Empty())
	require.Equal(t, "()", s.String())

	s.Add(3)
	s.Add(1)
	s.AddRange(5, 7)
	require.Equal(t, 5, s.Len())
	require.Equal(t, []int{1, 3, 5, 6, 7}, s.Ordered())
	require.Equal(t, "(1,3,5-7)", s.String())
	require.True(t, s.Contains(6))
	require.False(t, s.Contains(4))
	require.False(t, s.Contains(1000))

	next, ok := s.Next(4)
	require.True(t, ok)
	require.Equal(t, 5, next)
	_, ok = s.Next(8)
	require.False(t, ok)

	s.Remove(6)
	require.Equal(t, "(1,3,5,7)", s.String())
}

func TestFastIntSetAlgebra(t *testing.T) {
	a := MakeFastIntSet(1, 2, 3)
	b := MakeFastIntSet(3, 4)

	require.Equal(t, "(1-4)", a.Union(b).String())
	require.Equal(t, "(3)", a.Intersection(b).String())
	require.Equal(t, "(1,2)", a.Difference(b).String())
	require.True(t, a.Intersects(b))
	require.False(t, a.Intersects(MakeFastIntSet(9)))

	// Union must not modify its receiver.
	require.Equal(t, "(1-3)", a.String())

	require.True(t, MakeFastIntSet(1, 3).SubsetOf(a))
	require.False(t, b.SubsetOf(a))
	require.True(t, FastIntSet{}.SubsetOf(a))

	// Sets with different backing lengths are still equal.
	big := MakeFastIntSet(1000)
	big.Remove(1000)
	big.UnionWith(MakeFastIntSet(1, 2, 3))
	require.True(t, big.Equals(a))
}

func TestFastIntSetCopy(t *testing.T) {
	a := MakeFastIntSet(1)
	c := a.Copy()
	c.Add(2)
	require.Equal(t, "(1)", a.String())
	require.Equal(t, "(1,2)", c.String())
}
