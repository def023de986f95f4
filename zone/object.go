package zone

import (
	"github.com/aukilabs/zonegraph/spatial"
	"github.com/golang/geo/r3"
)

// ZoneID is a global zone identifier. Zone 0 is the outdoor zone owned by
// the scene root.
type ZoneID uint32

// ObjectID identifies a scene object. 0 is never assigned.
type ObjectID uint32

const RootZone ZoneID = 0

// StateKey stamps objects visited during a traversal pass.
type StateKey uint64

// Object holds the zoning state every scene object carries. Concrete scene
// objects embed it and satisfy SceneObject through it.
//
// The registry owns the zoning fields. They must only be changed from the
// scene goroutine.
type Object struct {
	ID        ObjectID
	Name      string
	Type      uint32
	Scopeable bool

	worldBox    spatial.Box
	worldSphere spatial.Sphere

	zoneRefHead    linkID
	numCurrZones   int
	managesZones   bool
	zoneRangeStart ZoneID
	lastStateKey   StateKey
}

// SceneObject is implemented by everything the registry can zone.
type SceneObject interface {
	SceneObject() *Object
}

func (o *Object) SceneObject() *Object {
	return o
}

func (o *Object) ObjectID() uint32 {
	return uint32(o.ID)
}

func (o *Object) TypeMask() uint32 {
	return o.Type
}

func (o *Object) WorldBox() spatial.Box {
	return o.worldBox
}

func (o *Object) WorldSphere() spatial.Sphere {
	return o.worldSphere
}

// SetWorldBox updates the world bounds. It does not rezone the object.
func (o *Object) SetWorldBox(b spatial.Box) {
	o.worldBox = b
	o.worldSphere = b.BoundingSphere()
}

// NumCurrZones returns how many zones the object is currently a member of.
func (o *Object) NumCurrZones() int {
	return o.numCurrZones
}

func (o *Object) IsManagingZones() bool {
	return o.managesZones
}

// ZoneRangeStart returns the first global id of the zones the object
// manages.
func (o *Object) ZoneRangeStart() (ZoneID, bool) {
	return o.zoneRangeStart, o.managesZones
}

func (o *Object) LastStateKey() StateKey {
	return o.lastStateKey
}

// Visit stamps the object with key. It returns false when the object was
// already stamped with it.
func (o *Object) Visit(key StateKey) bool {
	if o.lastStateKey == key {
		return false
	}
	o.lastStateKey = key
	return true
}

// ZoneManager is implemented by objects that partition their volume into
// zones registered with the registry.
type ZoneManager interface {
	SceneObject

	// OverlappingZones appends to zones the global ids of the managed zones
	// the object overlaps. outsideIncluded reports whether the object also
	// extends outside of the manager's zones.
	OverlappingZones(obj SceneObject, zones []ZoneID) (result []ZoneID, outsideIncluded bool)

	// PointZone returns the managed zone containing p.
	PointZone(p r3.Vector) (ZoneID, bool)
}

// ZoneScoper is implemented by zone managers that take part in scoping.
type ZoneScoper interface {
	SceneObject

	// TryAscendPast marks the zones reachable from viewpoint. It returns true
	// when the outside of the manager is reachable as well.
	TryAscendPast(viewpoint r3.Vector, distance float64, state ScopeState) bool

	// MarkReachableChildren marks the zones reachable from an outside
	// viewpoint.
	MarkReachableChildren(viewpoint r3.Vector, distance float64, state ScopeState)
}

// Connection receives the objects found in scope.
type Connection interface {
	ObjectInScope(obj SceneObject)
}

// BroadPhase answers box overlap queries over every object in the scene.
type BroadPhase interface {
	FindOverlapping(box spatial.Box, typeMask uint32, fn func(spatial.Item))
}

// ScopeState marks zones found reachable during a scoping pass, indexed by
// global zone id.
type ScopeState []bool

func (s ScopeState) Mark(z ZoneID) {
	if int(z) < len(s) {
		s[z] = true
	}
}

func (s ScopeState) Reachable(z ZoneID) bool {
	return int(z) < len(s) && s[z]
}

// Zones returns the reachable zone ids in ascending order.
func (s ScopeState) Zones() []ZoneID {
	var zones []ZoneID
	for i, ok := range s {
		if ok {
			zones = append(zones, ZoneID(i))
		}
	}
	return zones
}
