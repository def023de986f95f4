package models

import (
	"testing"

	"github.com/aukilabs/zonegraph/portal"
	"github.com/aukilabs/zonegraph/zone"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

func newTestMirror() *Mirror {
	return NewMirror("mirror", r3.Vector{X: 0, Y: 5, Z: 2}, r3.Vector{X: 2}, r3.Vector{X: 0.1, Y: 5, Z: 2})
}

func TestMirror(t *testing.T) {
	m := newTestMirror()
	require.Equal(t, MirrorObjectType, m.TypeMask())
	require.Equal(t, r3.Vector{X: 1}, m.Plane.Normal)

	t.Run("portals face the camera", func(t *testing.T) {
		portals := m.TransformPortals(r3.Vector{X: 10, Y: 5, Z: 2})
		require.Len(t, portals, 1)
		require.True(t, portals[0].FlipCull)
		require.Greater(t, portals[0].TraverseStart.X, 0.0)

		require.Empty(t, m.TransformPortals(r3.Vector{X: -10, Y: 5, Z: 2}))
	})

	t.Run("points are reflected", func(t *testing.T) {
		p := m.TransformPoint(0, r3.Vector{X: 10, Y: 3, Z: 2})
		require.Equal(t, r3.Vector{X: -10, Y: 3, Z: 2}, p)
	})

	t.Run("frustum", func(t *testing.T) {
		require.True(t, m.ComputeFrustum(0, portal.NewBaseState(r3.Vector{X: 10})))
		require.False(t, m.ComputeFrustum(0, portal.NewBaseState(r3.Vector{X: -10})))
		require.False(t, m.ComputeFrustum(1, portal.NewBaseState(r3.Vector{X: 10})))
	})

	t.Run("portal clips the reflected view", func(t *testing.T) {
		parent := portal.NewBaseState(r3.Vector{X: 10})
		state := parent.AddSubsidiary(m, 0, r3.Vector{X: -10}, r3.Vector{X: 0.01})

		m.OpenPortal(0, state, parent)
		require.NotNil(t, state.ClipPlane)
		require.Equal(t, m.Plane, *state.ClipPlane)

		m.ClosePortal(0, state, parent)
		require.Nil(t, state.ClipPlane)
	})
}

func TestSceneRenderPlan(t *testing.T) {
	s := newTestScene(t)
	m := newTestMirror()
	require.NoError(t, s.AddObject(m))
	crate := addEntity(t, s, "crate", 5, 5)
	far := addEntity(t, s, "far", 500, 5)

	t.Run("facing the mirror", func(t *testing.T) {
		passes, err := s.RenderPlan(r3.Vector{X: 10, Y: 5, Z: 2}, 100)
		require.NoError(t, err)
		require.Len(t, passes, 2)

		reflected := passes[0]
		require.Equal(t, 1, reflected.Depth)
		require.Equal(t, m.ID, reflected.PortalOwner)
		require.True(t, reflected.FlipCull)
		require.True(t, reflected.Clipped)
		require.Equal(t, Point{X: -10, Y: 5, Z: 2}, reflected.Camera)
		require.ElementsMatch(t, []zone.ObjectID{m.ID, crate.ID}, reflected.Objects)

		base := passes[1]
		require.Equal(t, 0, base.Depth)
		require.Zero(t, base.PortalOwner)
		require.False(t, base.FlipCull)
		require.False(t, base.Clipped)
		require.ElementsMatch(t, []zone.ObjectID{m.ID, crate.ID}, base.Objects)
		require.NotContains(t, base.Objects, far.ID)
	})

	t.Run("behind the mirror", func(t *testing.T) {
		passes, err := s.RenderPlan(r3.Vector{X: -10, Y: 5, Z: 2}, 100)
		require.NoError(t, err)
		require.Len(t, passes, 1)
		require.ElementsMatch(t, []zone.ObjectID{m.ID, crate.ID}, passes[0].Objects)
	})
}
