package portal

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	ErrTypeMalformedTree = "portal_malformed_tree"
)

// Renderer draws the images collected into a render state.
type Renderer interface {
	RenderImages(state *RenderState)
}

// Traverse renders the tree rooted at state depth first. Subsidiaries are
// rendered before their parent, and every non base state is bracketed by
// its portal owner opening and closing the portal.
func Traverse(state *RenderState, r Renderer) error {
	if state.phase != Unvisited {
		return errors.New("render state already traversed").
			WithType(ErrTypeMalformedTree).
			WithTag("depth", state.Depth).
			WithTag("phase", state.phase.String())
	}

	for _, child := range state.Subsidiaries {
		if child.Parent != state {
			return errors.New("subsidiary render state has another parent").
				WithType(ErrTypeMalformedTree).
				WithTag("depth", child.Depth)
		}
		if err := Traverse(child, r); err != nil {
			return err
		}
	}
	state.phase = ChildrenRendered

	if state.Parent == nil {
		r.RenderImages(state)
		state.phase = SelfRendered
		return nil
	}

	if state.PortalOwner == nil {
		return errors.New("portal render state has no portal owner").
			WithType(ErrTypeMalformedTree).
			WithTag("depth", state.Depth).
			WithTag("portal_index", state.PortalIndex)
	}

	state.PortalOwner.OpenPortal(state.PortalIndex, state, state.Parent)
	state.phase = PortalOpen
	r.RenderImages(state)
	state.phase = SelfRendered
	state.PortalOwner.ClosePortal(state.PortalIndex, state, state.Parent)
	state.phase = PortalClosed
	return nil
}
