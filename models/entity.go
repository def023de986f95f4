package models

import (
	"github.com/aukilabs/zonegraph/portal"
	"github.com/aukilabs/zonegraph/spatial"
	"github.com/aukilabs/zonegraph/zone"
	"github.com/golang/geo/r3"
)

const (
	EntityObjectType uint32 = 1 << iota
	InteriorObjectType
	MirrorObjectType
)

// ObjectTypeName returns the label used for an object type in logs and
// metrics.
func ObjectTypeName(t uint32) string {
	switch t {
	case EntityObjectType:
		return "entity"
	case InteriorObjectType:
		return "interior"
	case MirrorObjectType:
		return "mirror"
	default:
		return "unknown"
	}
}

// ObjectImage is the draw request of a scene object.
type ObjectImage struct {
	ID   zone.ObjectID
	Type uint32
}

func (img ObjectImage) ObjectID() zone.ObjectID {
	return img.ID
}

// Entity is a movable object placed by its pose.
type Entity struct {
	zone.Object

	// The half size of the entity box around its position.
	Extents r3.Vector

	pose Pose
}

func NewEntity(name string, pose Pose, extents r3.Vector) *Entity {
	e := &Entity{
		Object: zone.Object{
			Name:      name,
			Type:      EntityObjectType,
			Scopeable: true,
		},
		Extents: extents.Abs(),
	}
	e.SetPose(pose)
	return e
}

// SetPose moves the entity. The scene must rezone it afterwards.
func (e *Entity) SetPose(v Pose) {
	e.pose = v
	e.SetWorldBox(spatial.NewBoxFromCenter(v.Position(), e.Extents))
}

func (e *Entity) Pose() Pose {
	return e.pose
}

func (e *Entity) PrepRenderImages(state *portal.RenderState) {
	state.AddImage(ObjectImage{ID: e.ID, Type: e.Type})
}

type Pose struct {
	PX float32
	PY float32
	PZ float32
	RX float32
	RY float32
	RZ float32
	RW float32
}

func (p Pose) Position() r3.Vector {
	return r3.Vector{X: float64(p.PX), Y: float64(p.PY), Z: float64(p.PZ)}
}

// PoseAt returns an unrotated pose at position p.
func PoseAt(p r3.Vector) Pose {
	return Pose{
		PX: float32(p.X),
		PY: float32(p.Y),
		PZ: float32(p.Z),
		RW: 1,
	}
}
