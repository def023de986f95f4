package models

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/zonegraph/portal"
	"github.com/aukilabs/zonegraph/spatial"
	"github.com/aukilabs/zonegraph/zone"
	"github.com/golang/geo/r3"
)

const (
	ErrTypeInvalidInterior = "interior_invalid"
)

// Room is an axis aligned zone of an interior.
type Room struct {
	Name string
	Box  spatial.Box

	// OpenToOutside is set when the outside can be seen from the room.
	OpenToOutside bool

	// Openings lists the indexes of the rooms that can be seen from this
	// room. Openings work both ways.
	Openings []int
}

// Interior is a zone manager that partitions a building into rooms. Each
// room is one zone.
//
// Room boxes are kept relative to the minimum corner of the interior world
// box, so that moving the interior moves its rooms.
type Interior struct {
	zone.Object

	rooms     []Room
	neighbors [][]int
}

// NewInterior creates an interior whose world box encloses all of its
// rooms.
func NewInterior(name string, rooms []Room) (*Interior, error) {
	if len(rooms) == 0 {
		return nil, errors.New("interior without rooms").
			WithType(ErrTypeInvalidInterior).
			WithTag("name", name)
	}

	neighbors := make([][]int, len(rooms))
	bounds := rooms[0].Box
	for i, room := range rooms {
		if !room.Box.IsValid() || room.Box.IsGlobal() {
			return nil, errors.New("invalid room box").
				WithType(ErrTypeInvalidInterior).
				WithTag("name", name).
				WithTag("room", i)
		}

		bounds = spatial.Box{
			Min: r3.Vector{
				X: min(bounds.Min.X, room.Box.Min.X),
				Y: min(bounds.Min.Y, room.Box.Min.Y),
				Z: min(bounds.Min.Z, room.Box.Min.Z),
			},
			Max: r3.Vector{
				X: max(bounds.Max.X, room.Box.Max.X),
				Y: max(bounds.Max.Y, room.Box.Max.Y),
				Z: max(bounds.Max.Z, room.Box.Max.Z),
			},
		}

		for _, j := range room.Openings {
			if j < 0 || j >= len(rooms) || j == i {
				return nil, errors.New("invalid room opening").
					WithType(ErrTypeInvalidInterior).
					WithTag("name", name).
					WithTag("room", i).
					WithTag("opening", j)
			}
			neighbors[i] = appendUnique(neighbors[i], j)
			neighbors[j] = appendUnique(neighbors[j], i)
		}
	}

	local := make([]Room, len(rooms))
	for idx, room := range rooms {
		local[idx] = room
		local[idx].Box = room.Box.Translate(bounds.Min.Mul(-1))
		local[idx].Openings = append([]int(nil), room.Openings...)
	}

	interior := &Interior{
		Object: zone.Object{
			Name:      name,
			Type:      InteriorObjectType,
			Scopeable: true,
		},
		rooms:     local,
		neighbors: neighbors,
	}
	interior.SetWorldBox(bounds)
	return interior, nil
}

// Rooms returns the rooms with their boxes in world space.
func (i *Interior) Rooms() []Room {
	rooms := make([]Room, len(i.rooms))
	for idx, room := range i.rooms {
		rooms[idx] = room
		rooms[idx].Box = i.roomBox(idx)
	}
	return rooms
}

// NumZones returns the number of zones the interior registers.
func (i *Interior) NumZones() uint32 {
	return uint32(len(i.rooms))
}

// OverlappingZones returns the rooms overlapped by obj. The outside is
// included when a corner or the center of obj is not covered by any room.
func (i *Interior) OverlappingZones(obj zone.SceneObject, zones []zone.ZoneID) ([]zone.ZoneID, bool) {
	start, ok := i.ZoneRangeStart()
	if !ok {
		return zones, true
	}

	b := obj.SceneObject().WorldBox()
	for idx := range i.rooms {
		if i.roomBox(idx).IsOverlapped(b) {
			zones = append(zones, start+zone.ZoneID(idx))
		}
	}

	for _, p := range samplePoints(b) {
		if !i.covers(p) {
			return zones, true
		}
	}
	return zones, false
}

func (i *Interior) PointZone(p r3.Vector) (zone.ZoneID, bool) {
	start, ok := i.ZoneRangeStart()
	if !ok {
		return 0, false
	}

	if idx := i.roomAt(p); idx >= 0 {
		return start + zone.ZoneID(idx), true
	}
	return 0, false
}

// TryAscendPast marks the rooms visible from the room containing viewpoint.
// The outside is reachable when one of them is open to outside, or when
// viewpoint is not in a room at all.
func (i *Interior) TryAscendPast(viewpoint r3.Vector, distance float64, state zone.ScopeState) bool {
	idx := i.roomAt(viewpoint)
	if idx < 0 {
		i.MarkReachableChildren(viewpoint, distance, state)
		return true
	}

	outside := false
	for _, r := range i.reachableRooms([]int{idx}) {
		i.markRoom(r, state)
		if i.rooms[r].OpenToOutside {
			outside = true
		}
	}
	return outside
}

// MarkReachableChildren marks the rooms visible from the outside.
func (i *Interior) MarkReachableChildren(viewpoint r3.Vector, distance float64, state zone.ScopeState) {
	var open []int
	for idx, room := range i.rooms {
		if room.OpenToOutside {
			open = append(open, idx)
		}
	}

	for _, r := range i.reachableRooms(open) {
		i.markRoom(r, state)
	}
}

func (i *Interior) PrepRenderImages(state *portal.RenderState) {
	state.AddImage(ObjectImage{ID: i.ID, Type: i.Type})
}

func (i *Interior) markRoom(idx int, state zone.ScopeState) {
	if start, ok := i.ZoneRangeStart(); ok {
		state.Mark(start + zone.ZoneID(idx))
	}
}

func (i *Interior) roomBox(idx int) spatial.Box {
	return i.rooms[idx].Box.Translate(i.WorldBox().Min)
}

func (i *Interior) roomAt(p r3.Vector) int {
	for idx := range i.rooms {
		if i.roomBox(idx).ContainsPoint(p) {
			return idx
		}
	}
	return -1
}

func (i *Interior) covers(p r3.Vector) bool {
	point := spatial.Box{Min: p, Max: p}
	for idx := range i.rooms {
		if i.roomBox(idx).IsContained(point) {
			return true
		}
	}
	return false
}

// reachableRooms returns the rooms connected to from through openings,
// from included.
func (i *Interior) reachableRooms(from []int) []int {
	seen := make([]bool, len(i.rooms))
	queue := make([]int, 0, len(i.rooms))
	for _, idx := range from {
		if !seen[idx] {
			seen[idx] = true
			queue = append(queue, idx)
		}
	}

	for n := 0; n < len(queue); n++ {
		for _, next := range i.neighbors[queue[n]] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return queue
}

func samplePoints(b spatial.Box) []r3.Vector {
	points := make([]r3.Vector, 0, 9)
	for _, x := range []float64{b.Min.X, b.Max.X} {
		for _, y := range []float64{b.Min.Y, b.Max.Y} {
			for _, z := range []float64{b.Min.Z, b.Max.Z} {
				points = append(points, r3.Vector{X: x, Y: y, Z: z})
			}
		}
	}
	return append(points, b.Center())
}

func appendUnique(s []int, v int) []int {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}
