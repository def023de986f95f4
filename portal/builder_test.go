package portal

import (
	"testing"

	"github.com/aukilabs/zonegraph/spatial"
	"github.com/aukilabs/zonegraph/zone"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

type drawable struct {
	zone.Object
}

func newDrawable(id zone.ObjectID, b spatial.Box) *drawable {
	d := &drawable{Object: zone.Object{ID: id, Type: 1}}
	d.SetWorldBox(b)
	return d
}

func (d *drawable) PrepRenderImages(state *RenderState) {
	state.AddImage(logImage{id: d.ID})
}

type testMirror struct {
	drawable
	plane  spatial.Plane
	opened int
}

func newTestMirror(id zone.ObjectID, point r3.Vector, normal r3.Vector) *testMirror {
	m := &testMirror{plane: spatial.NewPlane(point, normal)}
	m.ID = id
	m.Type = 1
	m.SetWorldBox(spatial.NewBoxFromCenter(point, r3.Vector{X: 0.1, Y: 5, Z: 5}))
	return m
}

func (m *testMirror) TransformPortals(camera r3.Vector) []TransformPortal {
	if m.plane.Distance(camera) <= 0 {
		return nil
	}
	return []TransformPortal{{
		Index:         0,
		TraverseStart: m.plane.Reflect(camera),
		FlipCull:      true,
	}}
}

func (m *testMirror) ComputeFrustum(index int, parent *RenderState) bool {
	return m.plane.Distance(parent.Camera) > 0
}

func (m *testMirror) TransformPoint(index int, p r3.Vector) r3.Vector {
	return m.plane.Reflect(p)
}

func (m *testMirror) OpenPortal(index int, state *RenderState, parent *RenderState) {
	m.opened++
	state.ClipPlane = &m.plane
}

func (m *testMirror) ClosePortal(index int, state *RenderState, parent *RenderState) {
	state.ClipPlane = nil
}

func newTestRegistry(t *testing.T, objects ...zone.SceneObject) *zone.Registry {
	grid := spatial.NewRegularGrid(4, 4, 10)
	registry := zone.NewRegistry(grid, zone.Options{Strict: true, VerifyLinks: true})

	root := zone.NewSceneRoot(1)
	grid.Insert(root)
	require.NoError(t, registry.RegisterZones(root, 1))

	for _, obj := range objects {
		grid.Insert(obj.SceneObject())
		require.NoError(t, registry.ZoneInsert(obj))
	}
	return registry
}

func imageIDs(state *RenderState) []zone.ObjectID {
	var ids []zone.ObjectID
	for _, img := range state.Images {
		ids = append(ids, img.ObjectID())
	}
	return ids
}

func TestBuilderWithoutPortals(t *testing.T) {
	near := newDrawable(2, spatial.NewBoxFromCenter(r3.Vector{X: 5}, r3.Vector{X: 1, Y: 1, Z: 1}))
	far := newDrawable(3, spatial.NewBoxFromCenter(r3.Vector{X: 500}, r3.Vector{X: 1, Y: 1, Z: 1}))
	registry := newTestRegistry(t, near, far)

	base, err := NewBuilder(registry, 100).Build(r3.Vector{})
	require.NoError(t, err)
	require.True(t, base.IsBase())
	require.Empty(t, base.Subsidiaries)
	require.Equal(t, []zone.ObjectID{2}, imageIDs(base))
}

func TestBuilderMirror(t *testing.T) {
	mirror := newTestMirror(2, r3.Vector{}, r3.Vector{X: 1})
	crate := newDrawable(3, spatial.NewBoxFromCenter(r3.Vector{X: 5}, r3.Vector{X: 1, Y: 1, Z: 1}))
	registry := newTestRegistry(t, mirror, crate)

	base, err := NewBuilder(registry, 100).Build(r3.Vector{X: 10})
	require.NoError(t, err)
	require.ElementsMatch(t, []zone.ObjectID{2, 3}, imageIDs(base))
	require.Len(t, base.Subsidiaries, 1)

	reflected := base.Subsidiaries[0]
	require.Same(t, base, reflected.Parent)
	require.Equal(t, 1, reflected.Depth)
	require.True(t, reflected.FlipCull)
	require.Equal(t, r3.Vector{X: -10}, reflected.Camera)
	require.ElementsMatch(t, []zone.ObjectID{2, 3}, imageIDs(reflected))
	require.Empty(t, reflected.Subsidiaries)

	var log []string
	require.NoError(t, Traverse(base, logRenderer{log: &log}))
	require.Equal(t, 1, mirror.opened)
	require.Nil(t, reflected.ClipPlane)
	require.Len(t, log, 4)

	t.Run("mirrors facing away are skipped", func(t *testing.T) {
		base, err := NewBuilder(registry, 100).Build(r3.Vector{X: -10})
		require.NoError(t, err)
		require.Empty(t, base.Subsidiaries)
	})
}

func TestBuilderDepthLimit(t *testing.T) {
	left := newTestMirror(2, r3.Vector{}, r3.Vector{X: 1})
	right := newTestMirror(3, r3.Vector{X: 20}, r3.Vector{X: -1})
	registry := newTestRegistry(t, left, right)

	base, err := NewBuilder(registry, 1000).Build(r3.Vector{X: 10})
	require.NoError(t, err)

	count := 0
	maxDepth := 0
	var walk func(s *RenderState)
	walk = func(s *RenderState) {
		count++
		if s.Depth > maxDepth {
			maxDepth = s.Depth
		}
		if s.Parent != nil {
			require.Equal(t, !s.Parent.FlipCull, s.FlipCull)
		}
		for _, child := range s.Subsidiaries {
			walk(child)
		}
	}
	walk(base)

	require.Equal(t, MaxTraversalDepth-1, maxDepth)
	require.Equal(t, 7, count)
}
