package models

import (
	"github.com/aukilabs/zonegraph/portal"
	"github.com/aukilabs/zonegraph/zone"
	"github.com/golang/geo/r3"
)

// RenderPass describes one render state in the order it is rendered.
type RenderPass struct {
	Depth       int             `json:"depth"`
	PortalOwner zone.ObjectID   `json:"portal_owner,omitempty"`
	PortalIndex int             `json:"portal_index"`
	Camera      Point           `json:"camera"`
	FlipCull    bool            `json:"flip_cull"`
	Clipped     bool            `json:"clipped"`
	Objects     []zone.ObjectID `json:"objects"`
}

type passRecorder struct {
	passes []RenderPass
}

func (r *passRecorder) RenderImages(state *portal.RenderState) {
	pass := RenderPass{
		Depth:       state.Depth,
		PortalIndex: state.PortalIndex,
		Camera:      PointFromVector(state.Camera),
		FlipCull:    state.FlipCull,
		Clipped:     state.ClipPlane != nil,
		Objects:     make([]zone.ObjectID, 0, len(state.Images)),
	}
	if state.PortalOwner != nil {
		pass.PortalOwner = state.PortalOwner.SceneObject().ID
	}
	for _, img := range state.Images {
		pass.Objects = append(pass.Objects, img.ObjectID())
	}
	r.passes = append(r.passes, pass)
}

// RenderPlan builds the render tree seen from camera and returns its passes
// in render order: views through portals first, the base view last.
func (s *Scene) RenderPlan(camera r3.Vector, visibleDistance float64) ([]RenderPass, error) {
	base, err := portal.NewBuilder(s.registry, visibleDistance).Build(camera)
	if err != nil {
		return nil, err
	}

	var recorder passRecorder
	if err := portal.Traverse(base, &recorder); err != nil {
		return nil, err
	}
	return recorder.passes, nil
}
