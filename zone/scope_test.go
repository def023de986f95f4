package zone

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

func TestScopeScene(t *testing.T) {
	s := newTestScene(t, Options{})

	building := newTestManager(2, cube(0, 10))
	s.addManager(building)

	inside := newTestEntity(3, cube(4, 5))
	s.addEntity(inside)
	outside := newTestEntity(4, cube(20, 21))
	s.addEntity(outside)
	far := newTestEntity(5, cube(1000, 1001))
	s.addEntity(far)

	require.Equal(t, []ZoneID{1}, s.registry.CurrZones(inside))
	require.Equal(t, []ZoneID{RootZone}, s.registry.CurrZones(outside))

	t.Run("sealed zones are culled from outside", func(t *testing.T) {
		conn := newRecordingConn()
		require.NoError(t, s.registry.ScopeScene(r3.Vector{X: 15, Y: 15, Z: 15}, 100, conn))
		require.True(t, conn.has(outside.ID))
		require.False(t, conn.has(inside.ID))
		require.False(t, conn.has(far.ID))
		require.False(t, conn.has(building.ID))
	})

	t.Run("outside is culled from a sealed zone", func(t *testing.T) {
		conn := newRecordingConn()
		require.NoError(t, s.registry.ScopeScene(r3.Vector{X: 5, Y: 5, Z: 5}, 100, conn))
		require.True(t, conn.has(inside.ID))
		require.False(t, conn.has(outside.ID))
	})

	t.Run("transparent managers are ascended past", func(t *testing.T) {
		building.transparent = true
		defer func() { building.transparent = false }()

		conn := newRecordingConn()
		require.NoError(t, s.registry.ScopeScene(r3.Vector{X: 5, Y: 5, Z: 5}, 100, conn))
		require.True(t, conn.has(inside.ID))
		require.True(t, conn.has(outside.ID))
		require.False(t, conn.has(far.ID))
	})

	t.Run("transparent managers are marked from outside", func(t *testing.T) {
		building.transparent = true
		defer func() { building.transparent = false }()

		conn := newRecordingConn()
		require.NoError(t, s.registry.ScopeScene(r3.Vector{X: 15, Y: 15, Z: 15}, 100, conn))
		require.True(t, conn.has(inside.ID))
		require.True(t, conn.has(outside.ID))
	})

	t.Run("scopeable managers are reported once", func(t *testing.T) {
		building.transparent = true
		building.Scopeable = true
		defer func() {
			building.transparent = false
			building.Scopeable = false
		}()

		conn := newRecordingConn()
		require.NoError(t, s.registry.ScopeScene(r3.Vector{X: 5, Y: 5, Z: 5}, 100, conn))
		require.Equal(t, 1, conn.seen[building.ID])
		for id, count := range conn.seen {
			require.Equal(t, 1, count, "object %d", id)
		}
	})

	t.Run("every pass uses a new state key", func(t *testing.T) {
		first := newRecordingConn()
		require.NoError(t, s.registry.ScopeScene(r3.Vector{X: 15, Y: 15, Z: 15}, 100, first))
		key := outside.LastStateKey()

		second := newRecordingConn()
		require.NoError(t, s.registry.ScopeScene(r3.Vector{X: 15, Y: 15, Z: 15}, 100, second))
		require.Equal(t, first.seen, second.seen)
		require.Greater(t, outside.LastStateKey(), key)
	})
}

func TestScopeDistance(t *testing.T) {
	s := newTestScene(t, Options{})

	// Sphere centered at x=30 with a radius of sqrt(3).
	e := newTestEntity(2, box(29, -1, -1, 31, 1, 1))
	s.addEntity(e)

	tests := []struct {
		name     string
		distance float64
		inScope  bool
	}{
		{name: "center within distance", distance: 31, inScope: true},
		{name: "surface within distance", distance: 29, inScope: true},
		{name: "surface out of distance", distance: 28, inScope: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			conn := newRecordingConn()
			require.NoError(t, s.registry.ScopeScene(r3.Vector{}, test.distance, conn))
			require.Equal(t, test.inScope, conn.has(e.ID))
		})
	}

	t.Run("unscopeable objects are never reported", func(t *testing.T) {
		e.Scopeable = false
		defer func() { e.Scopeable = true }()

		conn := newRecordingConn()
		require.NoError(t, s.registry.ScopeScene(r3.Vector{}, 100, conn))
		require.False(t, conn.has(e.ID))
	})
}

func TestScopeEnclosingManagers(t *testing.T) {
	s := newTestScene(t, Options{})

	// The zone reaches far past the manager's own bounds.
	m := newTestManager(2, cube(0, 1), cube(0, 200))
	m.Scopeable = true
	s.addManager(m)

	conn := newRecordingConn()
	require.NoError(t, s.registry.ScopeScene(r3.Vector{X: 150, Y: 150, Z: 150}, 10, conn))
	require.Equal(t, 1, conn.seen[m.ID])

	t.Run("unscopeable managers are not reported", func(t *testing.T) {
		m.Scopeable = false
		defer func() { m.Scopeable = true }()

		conn := newRecordingConn()
		require.NoError(t, s.registry.ScopeScene(r3.Vector{X: 150, Y: 150, Z: 150}, 10, conn))
		require.False(t, conn.has(m.ID))
	})
}

func TestMarkReachable(t *testing.T) {
	s := newTestScene(t, Options{})
	a := newTestManager(2, cube(0, 10))
	s.addManager(a)
	b := newTestManager(3, cube(20, 30))
	b.transparent = true
	s.addManager(b)

	var visited []ObjectID
	key := s.registry.NextStateKey()
	state, err := s.registry.MarkReachable(r3.Vector{X: 50}, r3.Vector{X: 50}, 100, key, func(obj SceneObject) {
		visited = append(visited, obj.SceneObject().ID)
	})
	require.NoError(t, err)
	require.Equal(t, []ZoneID{0, 2}, state.Zones())
	require.Equal(t, []ObjectID{s.root.ID}, visited)
	require.Equal(t, key, s.root.LastStateKey())
}

func TestScopeAscentRequiresSingleZone(t *testing.T) {
	s := newTestScene(t, Options{})
	p := newTestManager(2, cube(0, 10))
	s.addManager(p)

	// m straddles p, so it is in both p's zone and the root zone.
	m := newTestManager(3, cube(8, 12))
	m.transparent = true
	s.addManager(m)
	require.Equal(t, 2, m.NumCurrZones())

	viewpoint := r3.Vector{X: 11, Y: 11, Z: 11}
	owner, _, err := s.registry.FindZone(viewpoint)
	require.NoError(t, err)
	require.Equal(t, ZoneManager(m), owner)

	require.Panics(t, func() {
		s.registry.MarkReachable(viewpoint, viewpoint, 100, s.registry.NextStateKey(), func(SceneObject) {})
	})
}
