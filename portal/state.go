package portal

import (
	"github.com/aukilabs/zonegraph/spatial"
	"github.com/aukilabs/zonegraph/zone"
	"github.com/golang/geo/r3"
)

// Phase is the traversal progress of a render state.
type Phase int

const (
	Unvisited Phase = iota
	ChildrenRendered
	PortalOpen
	SelfRendered
	PortalClosed
)

func (p Phase) String() string {
	switch p {
	case Unvisited:
		return "unvisited"
	case ChildrenRendered:
		return "children_rendered"
	case PortalOpen:
		return "portal_open"
	case SelfRendered:
		return "self_rendered"
	case PortalClosed:
		return "portal_closed"
	default:
		return "unknown"
	}
}

// Owner is implemented by objects owning portals into other coordinate
// spaces, such as mirrors.
type Owner interface {
	zone.SceneObject

	// OpenPortal prepares state, seen through portal index of parent, for
	// rendering. It typically sets up a clip plane.
	OpenPortal(index int, state *RenderState, parent *RenderState)

	// ClosePortal undoes what OpenPortal did.
	ClosePortal(index int, state *RenderState, parent *RenderState)
}

// Image is a draw request collected into a render state.
type Image interface {
	ObjectID() zone.ObjectID
}

// RenderState is a node of the render tree. The base state has no parent.
// Every other state is the view through one portal of its parent.
type RenderState struct {
	Parent       *RenderState
	PortalOwner  Owner
	PortalIndex  int
	Subsidiaries []*RenderState
	Images       []Image

	// Camera is the viewpoint, already transformed into the portal space.
	Camera r3.Vector

	// TraverseStart is where zone lookups for this state start.
	TraverseStart r3.Vector

	FlipCull  bool
	ClipPlane *spatial.Plane
	Depth     int

	phase Phase
}

func NewBaseState(camera r3.Vector) *RenderState {
	return &RenderState{
		Camera:        camera,
		TraverseStart: camera,
	}
}

// AddSubsidiary attaches the view through portal index of owner.
func (s *RenderState) AddSubsidiary(owner Owner, index int, camera r3.Vector, traverseStart r3.Vector) *RenderState {
	child := &RenderState{
		Parent:        s,
		PortalOwner:   owner,
		PortalIndex:   index,
		Camera:        camera,
		TraverseStart: traverseStart,
		FlipCull:      s.FlipCull,
		Depth:         s.Depth + 1,
	}
	s.Subsidiaries = append(s.Subsidiaries, child)
	return child
}

func (s *RenderState) AddImage(img Image) {
	s.Images = append(s.Images, img)
}

func (s *RenderState) Phase() Phase {
	return s.phase
}

func (s *RenderState) IsBase() bool {
	return s.Parent == nil
}
