package models

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/zonegraph/spatial"
	"github.com/aukilabs/zonegraph/zone"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

func TestNewInterior(t *testing.T) {
	t.Run("bounds enclose the rooms", func(t *testing.T) {
		house := newHouse(t)
		require.Equal(t, uint32(3), house.NumZones())
		require.Equal(t, InteriorObjectType, house.TypeMask())
		require.True(t, house.WorldBox().Equal(spatial.NewBox(r3.Vector{}, r3.Vector{X: 30, Y: 10, Z: 5})))
		require.Len(t, house.Rooms(), 3)
	})

	tests := []struct {
		name  string
		rooms []Room
	}{
		{
			name: "no rooms",
		},
		{
			name:  "global room",
			rooms: []Room{{Box: spatial.GlobalBox()}},
		},
		{
			name:  "opening to an unknown room",
			rooms: []Room{{Box: roomBox(0, 10), Openings: []int{3}}},
		},
		{
			name:  "opening to itself",
			rooms: []Room{{Box: roomBox(0, 10), Openings: []int{0}}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewInterior("broken", test.rooms)
			require.Error(t, err)
			require.True(t, errors.IsType(err, ErrTypeInvalidInterior))
		})
	}
}

func TestInteriorZones(t *testing.T) {
	house := newHouse(t)

	t.Run("unregistered interior", func(t *testing.T) {
		e := NewEntity("chair", PoseAt(r3.Vector{X: 5, Y: 5, Z: 1}), r3.Vector{X: 1, Y: 1, Z: 1})
		zones, outside := house.OverlappingZones(e, nil)
		require.Empty(t, zones)
		require.True(t, outside)

		_, ok := house.PointZone(r3.Vector{X: 5, Y: 5, Z: 1})
		require.False(t, ok)
	})

	s := newTestScene(t)
	require.NoError(t, s.AddObject(house))

	t.Run("overlapping zones", func(t *testing.T) {
		tests := []struct {
			name    string
			center  r3.Vector
			extents r3.Vector
			zones   []zone.ZoneID
			outside bool
		}{
			{
				name:    "inside the hall",
				center:  r3.Vector{X: 5, Y: 5, Z: 2},
				extents: r3.Vector{X: 1, Y: 1, Z: 1},
				zones:   []zone.ZoneID{1},
			},
			{
				name:    "across two walls",
				center:  r3.Vector{X: 15, Y: 5, Z: 2},
				extents: r3.Vector{X: 6, Y: 1, Z: 1},
				zones:   []zone.ZoneID{1, 2, 3},
			},
			{
				name:    "through the roof",
				center:  r3.Vector{X: 25, Y: 5, Z: 5},
				extents: r3.Vector{X: 1, Y: 1, Z: 1},
				zones:   []zone.ZoneID{3},
				outside: true,
			},
			{
				name:    "outside",
				center:  r3.Vector{X: 50, Y: 50, Z: 2},
				extents: r3.Vector{X: 1, Y: 1, Z: 1},
				outside: true,
			},
		}

		for _, test := range tests {
			t.Run(test.name, func(t *testing.T) {
				e := NewEntity(test.name, PoseAt(test.center), test.extents)
				zones, outside := house.OverlappingZones(e, nil)
				require.Equal(t, test.zones, zones)
				require.Equal(t, test.outside, outside)
			})
		}
	})

	t.Run("point zone", func(t *testing.T) {
		z, ok := house.PointZone(r3.Vector{X: 25, Y: 5, Z: 1})
		require.True(t, ok)
		require.Equal(t, zone.ZoneID(3), z)

		_, ok = house.PointZone(r3.Vector{X: 35, Y: 5, Z: 1})
		require.False(t, ok)
	})

	t.Run("ascend past", func(t *testing.T) {
		tests := []struct {
			name      string
			viewpoint r3.Vector
			reachable []zone.ZoneID
			ascends   bool
		}{
			{name: "from the hall", viewpoint: r3.Vector{X: 5, Y: 5, Z: 1}, reachable: []zone.ZoneID{1, 2}, ascends: true},
			{name: "from the bedroom", viewpoint: r3.Vector{X: 15, Y: 5, Z: 1}, reachable: []zone.ZoneID{1, 2}, ascends: true},
			{name: "from the vault", viewpoint: r3.Vector{X: 25, Y: 5, Z: 1}, reachable: []zone.ZoneID{3}},
			{name: "from outside", viewpoint: r3.Vector{X: 50, Y: 5, Z: 1}, reachable: []zone.ZoneID{1, 2}, ascends: true},
		}

		for _, test := range tests {
			t.Run(test.name, func(t *testing.T) {
				state := make(zone.ScopeState, 4)
				ascends := house.TryAscendPast(test.viewpoint, 100, state)
				require.Equal(t, test.ascends, ascends)
				require.Equal(t, test.reachable, state.Zones())
			})
		}
	})

	t.Run("reachable children", func(t *testing.T) {
		state := make(zone.ScopeState, 4)
		house.MarkReachableChildren(r3.Vector{X: 50, Y: 5, Z: 1}, 100, state)
		require.Equal(t, []zone.ZoneID{1, 2}, state.Zones())
	})
}
