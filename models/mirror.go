package models

import (
	"github.com/aukilabs/zonegraph/portal"
	"github.com/aukilabs/zonegraph/spatial"
	"github.com/aukilabs/zonegraph/zone"
	"github.com/golang/geo/r3"
)

// How far in front of the mirror surface the reflected view starts its
// zone walk.
const mirrorTraverseOffset = 0.01

// Mirror is a flat mirror. It owns a single transform portal showing the
// scene reflected across its plane.
type Mirror struct {
	zone.Object

	Plane spatial.Plane
}

// NewMirror creates a mirror centered on point and facing normal. extents
// is the half size of its box.
func NewMirror(name string, point r3.Vector, normal r3.Vector, extents r3.Vector) *Mirror {
	m := &Mirror{
		Object: zone.Object{
			Name:      name,
			Type:      MirrorObjectType,
			Scopeable: true,
		},
		Plane: spatial.NewPlane(point, normal),
	}
	m.SetWorldBox(spatial.NewBoxFromCenter(point, extents.Abs()))
	return m
}

func (m *Mirror) TransformPortals(camera r3.Vector) []portal.TransformPortal {
	if m.Plane.Distance(camera) <= 0 {
		return nil
	}

	return []portal.TransformPortal{
		{
			Index:         0,
			TraverseStart: m.Plane.Point.Add(m.Plane.Normal.Mul(mirrorTraverseOffset)),
			FlipCull:      true,
		},
	}
}

func (m *Mirror) ComputeFrustum(index int, parent *portal.RenderState) bool {
	return index == 0 && m.Plane.Distance(parent.Camera) > 0
}

func (m *Mirror) TransformPoint(index int, p r3.Vector) r3.Vector {
	return m.Plane.Reflect(p)
}

func (m *Mirror) OpenPortal(index int, state *portal.RenderState, parent *portal.RenderState) {
	plane := m.Plane
	state.ClipPlane = &plane
}

func (m *Mirror) ClosePortal(index int, state *portal.RenderState, parent *portal.RenderState) {
	state.ClipPlane = nil
}

func (m *Mirror) PrepRenderImages(state *portal.RenderState) {
	state.AddImage(ObjectImage{ID: m.ID, Type: m.Type})
}
