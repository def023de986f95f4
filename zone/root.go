package zone

import (
	"github.com/aukilabs/zonegraph/spatial"
	"github.com/golang/geo/r3"
)

// SceneRoot is the root zone manager. It covers the whole world with the
// single outdoor zone 0 and is never itself a zone member.
type SceneRoot struct {
	Object
}

func NewSceneRoot(id ObjectID) *SceneRoot {
	root := &SceneRoot{
		Object: Object{
			ID:   id,
			Name: "scene_root",
		},
	}
	root.SetWorldBox(spatial.GlobalBox())
	return root
}

func (root *SceneRoot) OverlappingZones(obj SceneObject, zones []ZoneID) ([]ZoneID, bool) {
	return append(zones, RootZone), false
}

func (root *SceneRoot) PointZone(p r3.Vector) (ZoneID, bool) {
	return RootZone, true
}

func (root *SceneRoot) TryAscendPast(viewpoint r3.Vector, distance float64, state ScopeState) bool {
	state.Mark(RootZone)
	return false
}

func (root *SceneRoot) MarkReachableChildren(viewpoint r3.Vector, distance float64, state ScopeState) {
	state.Mark(RootZone)
}
