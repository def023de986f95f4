package spatial

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

func TestEqualWithEpsilon(t *testing.T) {
	require.True(t, EqualWithEpsilon(0.1, 0.2, 0.11))
	require.False(t, EqualWithEpsilon(0.1, 0.3, 0.11))
}

func TestNewBox(t *testing.T) {
	b := NewBox(r3.Vector{X: 10, Y: -1, Z: 3}, r3.Vector{X: 0, Y: 1, Z: -3})
	require.Equal(t, r3.Vector{X: 0, Y: -1, Z: -3}, b.Min)
	require.Equal(t, r3.Vector{X: 10, Y: 1, Z: 3}, b.Max)
	require.True(t, b.IsValid())
	require.Equal(t, r3.Vector{X: 5}, b.Center())

	c := NewBoxFromCenter(r3.Vector{X: 1, Y: 1, Z: 1}, r3.Vector{X: -1, Y: 1, Z: 1})
	require.Equal(t, r3.Vector{}, c.Min)
	require.Equal(t, r3.Vector{X: 2, Y: 2, Z: 2}, c.Max)
}

func TestBoxOverlap(t *testing.T) {
	a := NewBox(r3.Vector{}, r3.Vector{X: 10, Y: 10, Z: 10})

	t.Run("overlapping", func(t *testing.T) {
		require.True(t, a.IsOverlapped(NewBox(r3.Vector{X: 5, Y: 5, Z: 5}, r3.Vector{X: 15, Y: 15, Z: 15})))
	})

	t.Run("touching faces", func(t *testing.T) {
		require.True(t, a.IsOverlapped(NewBox(r3.Vector{X: 10}, r3.Vector{X: 20, Y: 10, Z: 10})))
	})

	t.Run("disjoint", func(t *testing.T) {
		require.False(t, a.IsOverlapped(NewBox(r3.Vector{X: 11}, r3.Vector{X: 20, Y: 10, Z: 10})))
	})

	t.Run("global box overlaps everything", func(t *testing.T) {
		require.True(t, GlobalBox().IsOverlapped(a))
		require.True(t, GlobalBox().IsGlobal())
		require.False(t, a.IsGlobal())
	})
}

func TestBoxContainment(t *testing.T) {
	a := NewBox(r3.Vector{}, r3.Vector{X: 10, Y: 10, Z: 10})

	require.True(t, a.IsContained(a))
	require.True(t, a.IsContained(NewBox(r3.Vector{X: 1, Y: 1, Z: 1}, r3.Vector{X: 2, Y: 2, Z: 2})))
	require.False(t, a.IsContained(NewBox(r3.Vector{X: 1, Y: 1, Z: 1}, r3.Vector{X: 12, Y: 2, Z: 2})))

	require.True(t, a.ContainsPoint(r3.Vector{}))
	require.True(t, a.ContainsPoint(r3.Vector{X: 5, Y: 5, Z: 5}))
	require.False(t, a.ContainsPoint(r3.Vector{X: 10, Y: 5, Z: 5}))
}

func TestBoxClosestPoint(t *testing.T) {
	a := NewBox(r3.Vector{}, r3.Vector{X: 10, Y: 10, Z: 10})
	require.Equal(t, r3.Vector{X: 10, Y: 5, Z: 0}, a.ClosestPoint(r3.Vector{X: 20, Y: 5, Z: -3}))
	require.Equal(t, r3.Vector{X: 1, Y: 2, Z: 3}, a.ClosestPoint(r3.Vector{X: 1, Y: 2, Z: 3}))
}

func TestBoundingSphere(t *testing.T) {
	s := NewBox(r3.Vector{X: -1, Y: -1, Z: -1}, r3.Vector{X: 1, Y: 1, Z: 1}).BoundingSphere()
	require.Equal(t, r3.Vector{}, s.Center)
	require.True(t, EqualWithEpsilon(1.7320508, s.Radius, 0.0001))
}

func TestPlane(t *testing.T) {
	pl := NewPlane(r3.Vector{X: 5}, r3.Vector{X: 2})
	require.Equal(t, r3.Vector{X: 1}, pl.Normal)
	require.Equal(t, float64(3), pl.Distance(r3.Vector{X: 8, Y: 4}))
	require.Equal(t, r3.Vector{X: 2, Y: 4}, pl.Reflect(r3.Vector{X: 8, Y: 4}))
}
