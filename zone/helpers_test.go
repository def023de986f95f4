package zone

import (
	"testing"

	"github.com/aukilabs/zonegraph/spatial"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

const (
	testEntityType  = 1
	testManagerType = 2
)

func box(minX, minY, minZ, maxX, maxY, maxZ float64) spatial.Box {
	return spatial.NewBox(r3.Vector{X: minX, Y: minY, Z: minZ}, r3.Vector{X: maxX, Y: maxY, Z: maxZ})
}

func cube(min float64, max float64) spatial.Box {
	return box(min, min, min, max, max, max)
}

type testEntity struct {
	Object
}

func newTestEntity(id ObjectID, b spatial.Box) *testEntity {
	e := &testEntity{Object: Object{
		ID:        id,
		Name:      "entity",
		Type:      testEntityType,
		Scopeable: true,
	}}
	e.SetWorldBox(b)
	return e
}

// testManager splits its volume into one zone per box. A transparent
// manager sees and is seen from the outside; an opaque one is sealed.
type testManager struct {
	Object
	zoneBoxes   []spatial.Box
	transparent bool

	// The number of OverlappingZones calls.
	queries int
}

func newTestManager(id ObjectID, b spatial.Box, zoneBoxes ...spatial.Box) *testManager {
	if len(zoneBoxes) == 0 {
		zoneBoxes = []spatial.Box{b}
	}
	m := &testManager{
		Object: Object{
			ID:   id,
			Name: "manager",
			Type: testManagerType,
		},
		zoneBoxes: zoneBoxes,
	}
	m.SetWorldBox(b)
	return m
}

func (m *testManager) start() ZoneID {
	start, _ := m.ZoneRangeStart()
	return start
}

func (m *testManager) OverlappingZones(obj SceneObject, zones []ZoneID) ([]ZoneID, bool) {
	m.queries++
	b := obj.SceneObject().WorldBox()
	outside := true
	for i, zb := range m.zoneBoxes {
		if !zb.IsOverlapped(b) {
			continue
		}
		zones = append(zones, m.start()+ZoneID(i))
		if zb.IsContained(b) {
			outside = false
		}
	}
	return zones, outside
}

func (m *testManager) PointZone(p r3.Vector) (ZoneID, bool) {
	for i, zb := range m.zoneBoxes {
		if zb.ContainsPoint(p) {
			return m.start() + ZoneID(i), true
		}
	}
	return 0, false
}

func (m *testManager) TryAscendPast(viewpoint r3.Vector, distance float64, state ScopeState) bool {
	if m.transparent {
		m.markAll(state)
		return true
	}
	if z, ok := m.PointZone(viewpoint); ok {
		state.Mark(z)
	}
	return false
}

func (m *testManager) MarkReachableChildren(viewpoint r3.Vector, distance float64, state ScopeState) {
	if m.transparent {
		m.markAll(state)
	}
}

func (m *testManager) markAll(state ScopeState) {
	for i := range m.zoneBoxes {
		state.Mark(m.start() + ZoneID(i))
	}
}

type testScene struct {
	t        *testing.T
	registry *Registry
	grid     *spatial.RegularGrid
	root     *SceneRoot
}

func newTestScene(t *testing.T, opts Options) *testScene {
	opts.Strict = true
	opts.VerifyLinks = true
	if opts.RefPoolBlockSize == 0 {
		opts.RefPoolBlockSize = 8
	}

	grid := spatial.NewRegularGrid(4, 4, 10)
	s := &testScene{
		t:        t,
		registry: NewRegistry(grid, opts),
		grid:     grid,
		root:     NewSceneRoot(1),
	}
	grid.Insert(s.root)
	require.NoError(t, s.registry.RegisterZones(s.root, 1))
	return s
}

func (s *testScene) addEntity(e *testEntity) {
	s.grid.Insert(e)
	require.NoError(s.t, s.registry.ZoneInsert(e))
}

func (s *testScene) addManager(m *testManager) {
	s.grid.Insert(m)
	require.NoError(s.t, s.registry.RegisterZones(m, uint32(len(m.zoneBoxes))))
	require.NoError(s.t, s.registry.ZoneInsert(m))
}

func (s *testScene) removeManager(m *testManager) {
	require.NoError(s.t, s.registry.UnregisterZones(m))
	require.NoError(s.t, s.registry.ZoneRemove(m))
	s.grid.Remove(m)
}

type recordingConn struct {
	seen map[ObjectID]int
}

func newRecordingConn() *recordingConn {
	return &recordingConn{seen: make(map[ObjectID]int)}
}

func (c *recordingConn) ObjectInScope(obj SceneObject) {
	c.seen[obj.SceneObject().ID]++
}

func (c *recordingConn) has(id ObjectID) bool {
	_, ok := c.seen[id]
	return ok
}
