package models

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/zonegraph/spatial"
	"github.com/aukilabs/zonegraph/zone"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
)

const (
	ErrTypeSceneClosed   = "scene_closed"
	ErrTypeObjectUnknown = "scene_object_unknown"
	ErrTypeObjectInvalid = "scene_object_invalid"
)

const (
	DefaultGridResolution = 16
	DefaultGridCells      = 64

	sizeEpsilon = 1e-6
)

type SceneOptions struct {
	// The interval between two frames.
	FrameDuration time.Duration

	// The size of a broad phase grid cell.
	GridResolution float64

	// The initial number of grid cells per side.
	GridCells uint

	Zones zone.Options
}

// A zone manager that knows how many zones it registers.
type zoneOwner interface {
	zone.ZoneManager
	NumZones() uint32
}

// Scene holds the scene objects, their broad phase container and their zone
// registry.
//
// Object and zone methods are not safe for concurrent use. They must be
// called before frames are dispatched, from a frame handler, or through Do.
type Scene struct {
	UUID string

	objectIDs SequentialIDGenerator
	objects   map[zone.ObjectID]zone.SceneObject
	grid      *spatial.RegularGrid
	registry  *zone.Registry
	root      *zone.SceneRoot

	tasks           chan func()
	closed          chan struct{}
	startFrameOnce  sync.Once
	frameTicker     *time.Ticker
	frame           uint64
	frameHandlerIDs SequentialIDGenerator
	frameHandlers   map[uint32]func(frame uint64)
	frameMutex      sync.RWMutex

	closeOnce sync.Once
}

func NewScene(opts SceneOptions) (*Scene, error) {
	if opts.FrameDuration <= 0 {
		opts.FrameDuration = time.Second / 60
	}
	if opts.GridResolution <= 0 {
		opts.GridResolution = DefaultGridResolution
	}
	if opts.GridCells == 0 {
		opts.GridCells = DefaultGridCells
	}

	grid := spatial.NewRegularGrid(opts.GridCells, opts.GridCells, opts.GridResolution)
	s := &Scene{
		UUID:          uuid.New().String(),
		objects:       make(map[zone.ObjectID]zone.SceneObject),
		grid:          grid,
		registry:      zone.NewRegistry(grid, opts.Zones),
		tasks:         make(chan func()),
		closed:        make(chan struct{}),
		frameTicker:   time.NewTicker(opts.FrameDuration),
		frameHandlers: make(map[uint32]func(uint64)),
	}

	s.root = zone.NewSceneRoot(zone.ObjectID(s.objectIDs.New()))
	if err := s.registry.RegisterZones(s.root, 1); err != nil {
		s.frameTicker.Stop()
		return nil, errors.New("registering scene root zone failed").Wrap(err)
	}
	return s, nil
}

func (s *Scene) Close() {
	s.closeOnce.Do(func() {
		s.frameTicker.Stop()
		close(s.closed)
	})
}

func (s *Scene) Registry() *zone.Registry {
	return s.registry
}

func (s *Scene) Root() *zone.SceneRoot {
	return s.root
}

// AddObject assigns an id to obj and adds it to the scene. Objects that
// manage zones register them before being zoned.
func (s *Scene) AddObject(obj zone.SceneObject) error {
	o := obj.SceneObject()
	if o.ID != 0 {
		return errors.New("object already added to a scene").
			WithType(ErrTypeObjectInvalid).
			WithTag("object_id", o.ID).
			WithTag("name", o.Name)
	}
	if o.Type == 0 {
		return errors.New("object has no type").
			WithType(ErrTypeObjectInvalid).
			WithTag("name", o.Name)
	}
	if !o.WorldBox().IsValid() {
		return errors.New("object has an invalid world box").
			WithType(ErrTypeObjectInvalid).
			WithTag("name", o.Name)
	}

	o.ID = zone.ObjectID(s.objectIDs.New())
	s.grid.Insert(o)

	if m, ok := obj.(zoneOwner); ok {
		if err := s.registry.RegisterZones(m, m.NumZones()); err != nil {
			id := o.ID
			s.rollbackAdd(obj)
			return errors.New("registering object zones failed").
				WithTag("object_id", id).
				WithTag("name", o.Name).
				Wrap(err)
		}
	}

	if err := s.registry.ZoneInsert(obj); err != nil {
		id := o.ID
		s.rollbackAdd(obj)
		return errors.New("zoning object failed").
			WithTag("object_id", id).
			WithTag("name", o.Name).
			Wrap(err)
	}

	s.objects[o.ID] = obj
	instrumentIncreaseObjectGauge(o.Type)
	logs.WithTag("object_id", o.ID).
		WithTag("name", o.Name).
		WithTag("type", ObjectTypeName(o.Type)).
		Debug("object added")
	return nil
}

// rollbackAdd undoes a partial AddObject. The object id is not reused.
func (s *Scene) rollbackAdd(obj zone.SceneObject) {
	o := obj.SceneObject()

	var err error
	if m, ok := obj.(zone.ZoneManager); ok && o.IsManagingZones() {
		err = s.registry.UnregisterZones(m)
	}
	if zerr := s.registry.ZoneRemove(obj); err == nil {
		err = zerr
	}
	if err != nil {
		logs.WithTag("object_id", o.ID).
			WithTag("name", o.Name).
			Warn(errors.New("rolling back object add failed").Wrap(err))
	}

	s.grid.Remove(o)
	o.ID = 0
}

// RemoveObject removes the object with the given id from the scene. Zones
// it manages are unregistered and their members rezoned.
func (s *Scene) RemoveObject(id zone.ObjectID) error {
	obj, ok := s.objects[id]
	if !ok {
		return errors.New("unknown object").
			WithType(ErrTypeObjectUnknown).
			WithTag("object_id", id)
	}
	o := obj.SceneObject()

	var err error
	if m, ok := obj.(zone.ZoneManager); ok && o.IsManagingZones() {
		err = s.registry.UnregisterZones(m)
	}
	if zerr := s.registry.ZoneRemove(obj); err == nil {
		err = zerr
	}

	s.grid.Remove(o)
	delete(s.objects, id)
	instrumentDecreaseObjectGauge(o.Type)
	logs.WithTag("object_id", id).
		WithTag("name", o.Name).
		Debug("object removed")

	if err != nil {
		return errors.New("unzoning object failed").
			WithTag("object_id", id).
			Wrap(err)
	}
	return nil
}

// SetWorldBox moves an object. Its zones are recomputed, and when it manages
// zones, so are the zones of the objects it overlapped before and after the
// move.
func (s *Scene) SetWorldBox(id zone.ObjectID, b spatial.Box) error {
	obj, ok := s.objects[id]
	if !ok {
		return errors.New("unknown object").
			WithType(ErrTypeObjectUnknown).
			WithTag("object_id", id)
	}
	if !b.IsValid() {
		return errors.New("invalid world box").
			WithType(ErrTypeObjectInvalid).
			WithTag("object_id", id)
	}

	o := obj.SceneObject()
	prev := o.WorldBox()
	if _, ok := obj.(*Interior); ok && !sameSize(prev, b) {
		return errors.New("interiors can only be moved, not resized").
			WithType(ErrTypeObjectInvalid).
			WithTag("object_id", id)
	}

	o.SetWorldBox(b)
	s.grid.Update(o)
	return s.rezone(obj, prev)
}

func sameSize(a, b spatial.Box) bool {
	da := a.Max.Sub(a.Min)
	db := b.Max.Sub(b.Min)
	return spatial.EqualWithEpsilon(da.X, db.X, sizeEpsilon) &&
		spatial.EqualWithEpsilon(da.Y, db.Y, sizeEpsilon) &&
		spatial.EqualWithEpsilon(da.Z, db.Z, sizeEpsilon)
}

// SetEntityPose moves an entity to the given pose.
func (s *Scene) SetEntityPose(id zone.ObjectID, pose Pose) error {
	obj, ok := s.objects[id]
	if !ok {
		return errors.New("unknown object").
			WithType(ErrTypeObjectUnknown).
			WithTag("object_id", id)
	}

	e, ok := obj.(*Entity)
	if !ok {
		return errors.New("object is not an entity").
			WithType(ErrTypeObjectInvalid).
			WithTag("object_id", id)
	}

	prev := e.WorldBox()
	e.SetPose(pose)
	s.grid.Update(e)
	return s.rezone(e, prev)
}

func (s *Scene) rezone(obj zone.SceneObject, prev spatial.Box) error {
	o := obj.SceneObject()
	if s.registry.IsZoned(obj) {
		if err := s.registry.ZoneRemove(obj); err != nil {
			return err
		}
		if err := s.registry.ZoneInsert(obj); err != nil {
			return err
		}
	}

	if o.IsManagingZones() {
		return s.registry.RezoneWithin(prev)
	}
	return nil
}

func (s *Scene) Object(id zone.ObjectID) (zone.SceneObject, bool) {
	obj, ok := s.objects[id]
	return obj, ok
}

// Objects returns the scene objects sorted by id.
func (s *Scene) Objects() []zone.SceneObject {
	objects := make([]zone.SceneObject, 0, len(s.objects))
	for _, obj := range s.objects {
		objects = append(objects, obj)
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].SceneObject().ID < objects[j].SceneObject().ID
	})
	return objects
}

func (s *Scene) ObjectCount() int {
	return len(s.objects)
}

// FindZone returns the id of the manager owning the innermost zone that
// contains p, along with the zone.
func (s *Scene) FindZone(p r3.Vector) (zone.ObjectID, zone.ZoneID, error) {
	m, z, err := s.registry.FindZone(p)
	if err != nil {
		return 0, 0, err
	}
	return m.SceneObject().ID, z, nil
}

// Scope reports to conn the objects in scope from viewpoint.
func (s *Scene) Scope(viewpoint r3.Vector, distance float64, conn zone.Connection) error {
	return s.registry.ScopeScene(viewpoint, distance, conn)
}

// Do runs fn on the scene goroutine and returns its error. It blocks until
// fn returned, the scene is closed or ctx is done.
func (s *Scene) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	task := func() {
		done <- fn()
	}

	select {
	case s.tasks <- task:
	case <-s.closed:
		return errors.New("scene is closed").WithType(ErrTypeSceneClosed)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleFrame registers a handler called on every frame. Handlers run on
// the scene goroutine.
func (s *Scene) HandleFrame(h func(frame uint64)) (cancel func()) {
	s.frameMutex.Lock()
	defer s.frameMutex.Unlock()

	id := s.frameHandlerIDs.New()
	s.frameHandlers[id] = h

	return func() {
		s.frameMutex.Lock()
		defer s.frameMutex.Unlock()

		delete(s.frameHandlers, id)
		s.frameHandlerIDs.Reuse(id)
	}
}

// StartDispatchFrames runs the scene goroutine until the scene is closed.
func (s *Scene) StartDispatchFrames() {
	s.startFrameOnce.Do(func() {
		for {
			select {
			case <-s.closed:
				return

			case task := <-s.tasks:
				task()

			case <-s.frameTicker.C:
				s.dispatchFrame()
			}
		}
	})
}

func (s *Scene) dispatchFrame() {
	start := time.Now()
	s.frame++

	s.frameMutex.RLock()
	handlers := make([]func(uint64), 0, len(s.frameHandlers))
	for _, h := range s.frameHandlers {
		handlers = append(handlers, h)
	}
	s.frameMutex.RUnlock()

	for _, h := range handlers {
		h(s.frame)
	}
	instrumentFrameDuration(time.Since(start))
}

type SceneDebugInfo struct {
	UUID    string            `json:"uuid"`
	Frame   uint64            `json:"frame"`
	Objects int               `json:"objects"`
	Grid    spatial.DebugInfo `json:"grid"`
	Zones   zone.DebugInfo    `json:"zones"`
}

func (s *Scene) DebugInfo() SceneDebugInfo {
	return SceneDebugInfo{
		UUID:    s.UUID,
		Frame:   s.frame,
		Objects: len(s.objects),
		Grid:    s.grid.GetDebugInfo(),
		Zones:   s.registry.GetDebugInfo(),
	}
}
