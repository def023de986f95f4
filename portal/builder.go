package portal

import (
	"github.com/aukilabs/zonegraph/zone"
	"github.com/golang/geo/r3"
)

// MaxTraversalDepth limits how many portals deep the render tree goes,
// including the base state.
const MaxTraversalDepth = 4

// TransformPortal is a portal into a transformed copy of the scene.
type TransformPortal struct {
	Index int

	// TraverseStart is the point in portal space where the zone walk of the
	// view through the portal starts.
	TraverseStart r3.Vector

	// FlipCull is set when the portal space has mirrored winding.
	FlipCull bool
}

// TransformPortalOwner is implemented by objects owning transform portals.
type TransformPortalOwner interface {
	Owner

	// TransformPortals returns the portals facing camera.
	TransformPortals(camera r3.Vector) []TransformPortal

	// ComputeFrustum reports whether portal index can be seen from parent.
	ComputeFrustum(index int, parent *RenderState) bool

	// TransformPoint maps p into the space seen through portal index.
	TransformPoint(index int, p r3.Vector) r3.Vector
}

// ImagePreparer is implemented by objects that draw something.
type ImagePreparer interface {
	PrepRenderImages(state *RenderState)
}

// Builder builds render trees out of the zones reachable from a camera.
type Builder struct {
	registry        *zone.Registry
	visibleDistance float64
	maxDepth        int
}

func NewBuilder(registry *zone.Registry, visibleDistance float64) *Builder {
	return &Builder{
		registry:        registry,
		visibleDistance: visibleDistance,
		maxDepth:        MaxTraversalDepth,
	}
}

// Build returns the render tree seen from camera. Every state gets the
// images of the objects reachable from its traverse start.
func (b *Builder) Build(camera r3.Vector) (*RenderState, error) {
	base := NewBaseState(camera)
	if err := b.build(base); err != nil {
		return nil, err
	}
	return base, nil
}

func (b *Builder) build(state *RenderState) error {
	key := b.registry.NextStateKey()
	var portals []TransformPortal
	var portalOwners []TransformPortalOwner

	visit := func(obj zone.SceneObject) {
		o := obj.SceneObject()
		if !o.Visit(key) {
			return
		}
		if o.WorldBox().ClosestPoint(state.Camera).Sub(state.Camera).Norm() > b.visibleDistance {
			return
		}

		if p, ok := obj.(ImagePreparer); ok {
			p.PrepRenderImages(state)
		}
		if owner, ok := obj.(TransformPortalOwner); ok {
			for _, portal := range owner.TransformPortals(state.Camera) {
				portals = append(portals, portal)
				portalOwners = append(portalOwners, owner)
			}
		}
	}

	reachable, err := b.registry.MarkReachable(state.TraverseStart, state.Camera, b.visibleDistance, key, visit)
	if err != nil {
		return err
	}

	for _, z := range reachable.Zones() {
		b.registry.ForEachMember(z, visit)
	}

	if state.Depth+1 >= b.maxDepth {
		return nil
	}

	for i, portal := range portals {
		owner := portalOwners[i]
		if !owner.ComputeFrustum(portal.Index, state) {
			continue
		}

		child := state.AddSubsidiary(owner, portal.Index, owner.TransformPoint(portal.Index, state.Camera), portal.TraverseStart)
		child.FlipCull = state.FlipCull != portal.FlipCull
		if err := b.build(child); err != nil {
			return err
		}
	}
	return nil
}
