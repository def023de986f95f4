package zone

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/zonegraph/spatial"
)

const DefaultMaxObjectZones = 128

type Options struct {
	// The number of links allocated at once by the link pool.
	RefPoolBlockSize int

	// The maximum number of link pool blocks. 0 means unlimited.
	MaxRefPoolBlocks int

	// The maximum number of zones a single object can be a member of.
	MaxObjectZones int

	// Panics on invariant violations instead of logging them.
	Strict bool

	// Runs Verify after every rezone.
	VerifyLinks bool
}

type managerEntry struct {
	obj        ZoneManager
	rangeStart ZoneID
	numZones   uint32
}

// Registry tracks zone managers, the global zone id space they own and the
// zone membership of every zoned object.
//
// A Registry is not safe for concurrent use. It must only be used from the
// goroutine owning the scene.
type Registry struct {
	maxObjectZones int
	strict         bool
	verifyLinks    bool

	pool           *RefPool
	broadPhase     BroadPhase
	managers       []managerEntry
	bins           []linkID
	currZoneEnd    ZoneID
	numActiveZones uint32
	objects        map[ObjectID]SceneObject
	owners         map[ObjectID]ZoneManager
	stateKey       StateKey
	queryBuf       []ZoneID

	// The manager whose overlapping objects were rezoned by RegisterZones
	// and not touched since.
	justRegistered *Object
}

func NewRegistry(broadPhase BroadPhase, opts Options) *Registry {
	if opts.MaxObjectZones <= 0 {
		opts.MaxObjectZones = DefaultMaxObjectZones
	}

	r := &Registry{
		maxObjectZones: opts.MaxObjectZones,
		strict:         opts.Strict,
		verifyLinks:    opts.VerifyLinks,
		pool:           NewRefPool(opts.RefPoolBlockSize, opts.MaxRefPoolBlocks),
		broadPhase:     broadPhase,
		objects:        make(map[ObjectID]SceneObject),
		owners:         make(map[ObjectID]ZoneManager),
	}
	r.instrument()
	return r
}

// RegisterZones allocates numZones contiguous zone ids to owner. The first
// manager registered becomes the root and owns zone 0. Objects overlapping
// the owner are rezoned to account for the new zones.
func (r *Registry) RegisterZones(owner ZoneManager, numZones uint32) error {
	o := owner.SceneObject()
	if o.managesZones {
		return r.violation(errors.New("object already manages zones").
			WithType(ErrTypeAlreadyManaged).
			WithTag("object", o.ID).
			WithTag("name", o.Name))
	}
	if numZones == 0 {
		return errors.New("zone managers must register at least one zone").
			WithType(ErrTypeInvalidRange).
			WithTag("object", o.ID)
	}

	r.compactZonesCheck()
	r.justRegistered = nil

	sentinels := make([]linkID, 0, numZones)
	for i := uint32(0); i < numZones; i++ {
		id, err := r.pool.Allocate()
		if err != nil {
			for _, s := range sentinels {
				if ferr := r.pool.Free(s); ferr != nil {
					return r.violation(ferr)
				}
			}
			return errors.New("registering zones failed").
				WithType(ErrTypePoolExhausted).
				WithTag("object", o.ID).
				Wrap(err)
		}
		sentinels = append(sentinels, id)
	}

	start := r.currZoneEnd
	for i, id := range sentinels {
		l := r.pool.get(id)
		l.kind = linkSentinel
		l.zone = start + ZoneID(i)
		l.object = o.ID
		r.bins = append(r.bins, id)
	}

	r.currZoneEnd += ZoneID(numZones)
	r.numActiveZones += numZones
	r.managers = append(r.managers, managerEntry{
		obj:        owner,
		rangeStart: start,
		numZones:   numZones,
	})
	r.owners[o.ID] = owner
	o.managesZones = true
	o.zoneRangeStart = start

	logs.WithTag("object", o.ID).
		WithTag("name", o.Name).
		WithTag("range_start", start).
		WithTag("num_zones", numZones).
		Debug("zones registered")

	err := r.rezoneOverlapping(o)
	if err == nil {
		r.justRegistered = o
	}
	r.instrument()
	return err
}

// UnregisterZones releases the zones owned by owner. The ids are not reused.
// Every member of the released zones loses that membership and objects
// overlapping the owner are rezoned.
func (r *Registry) UnregisterZones(owner ZoneManager) error {
	o := owner.SceneObject()
	idx := -1
	for i, m := range r.managers {
		if m.obj.SceneObject() == o {
			idx = i
			break
		}
	}
	if idx < 0 || !o.managesZones {
		return r.violation(errors.New("object does not manage zones").
			WithType(ErrTypeNotManaged).
			WithTag("object", o.ID).
			WithTag("name", o.Name))
	}

	r.justRegistered = nil
	entry := r.managers[idx]
	for i := uint32(0); i < entry.numZones; i++ {
		if err := r.clearBin(entry.rangeStart + ZoneID(i)); err != nil {
			return err
		}
	}

	r.numActiveZones -= entry.numZones
	r.managers = append(r.managers[:idx], r.managers[idx+1:]...)
	delete(r.owners, o.ID)
	o.managesZones = false
	o.zoneRangeStart = 0

	logs.WithTag("object", o.ID).
		WithTag("name", o.Name).
		WithTag("range_start", entry.rangeStart).
		WithTag("num_zones", entry.numZones).
		Debug("zones unregistered")

	var err error
	if entry.rangeStart != RootZone {
		err = r.rezoneOverlapping(o)
	}
	r.compactZonesCheck()
	r.instrument()
	return err
}

// clearBin frees every link of the zone bin, including its sentinel, and
// splices the member links out of their object chains.
func (r *Registry) clearBin(z ZoneID) error {
	sentinel := r.bins[z]
	if sentinel == 0 {
		return r.violation(errors.New("zone bin already released").
			WithType(ErrTypeInvariant).
			WithTag("zone", z))
	}

	s := r.pool.get(sentinel)
	for id := s.nextInBin; id != 0; {
		l := r.pool.get(id)
		next := l.nextInBin

		if obj, ok := r.objects[l.object]; ok {
			r.spliceFromChain(obj.SceneObject(), id)
		} else {
			r.violation(errors.New("zone member is not a zoned object").
				WithType(ErrTypeInvariant).
				WithTag("zone", z).
				WithTag("object", l.object))
		}

		l.prevInBin = 0
		l.nextInBin = 0
		l.nextInObj = 0
		if err := r.pool.Free(id); err != nil {
			return r.violation(err)
		}
		id = next
	}

	s.nextInBin = 0
	if err := r.pool.Free(sentinel); err != nil {
		return r.violation(err)
	}
	r.bins[z] = 0
	return nil
}

// spliceFromChain removes the link from the object chain without touching
// its bin pointers.
func (r *Registry) spliceFromChain(o *Object, id linkID) {
	var prev linkID
	for cur := o.zoneRefHead; cur != 0; cur = r.pool.get(cur).nextInObj {
		if cur != id {
			prev = cur
			continue
		}

		next := r.pool.get(cur).nextInObj
		if prev == 0 {
			o.zoneRefHead = next
		} else {
			r.pool.get(prev).nextInObj = next
		}
		r.pool.get(cur).nextInObj = 0
		o.numCurrZones--
		return
	}

	r.violation(errors.New("zone link missing from object chain").
		WithType(ErrTypeInvariant).
		WithTag("object", o.ID).
		WithTag("link", id))
}

// ZoneInsert starts tracking obj and computes its zone memberships. When
// obj manages zones, the objects it overlaps are rezoned too.
func (r *Registry) ZoneInsert(obj SceneObject) error {
	o := obj.SceneObject()
	if existing, ok := r.objects[o.ID]; ok && existing.SceneObject() != o {
		return r.violation(errors.New("object id already zoned by another object").
			WithType(ErrTypeInvariant).
			WithTag("object", o.ID))
	}
	if o.numCurrZones != 0 {
		return r.violation(errors.New("object already has zone memberships").
			WithType(ErrTypeInvariant).
			WithTag("object", o.ID).
			WithTag("zones", o.numCurrZones))
	}

	r.objects[o.ID] = obj
	if err := r.rezone(obj); err != nil {
		return err
	}

	// Objects overlapping a manager added right after its registration are
	// already zoned.
	rezoned := r.justRegistered == o
	r.justRegistered = nil
	if o.managesZones && !rezoned {
		return r.rezoneOverlapping(o)
	}
	return nil
}

// ZoneRemove drops every zone membership of obj and stops tracking it.
func (r *Registry) ZoneRemove(obj SceneObject) error {
	o := obj.SceneObject()
	r.justRegistered = nil
	err := r.detach(o)
	delete(r.objects, o.ID)
	r.instrument()
	return err
}

// Rezone recomputes the zone memberships of a tracked object, typically
// after it moved.
func (r *Registry) Rezone(obj SceneObject) error {
	o := obj.SceneObject()
	if _, ok := r.objects[o.ID]; !ok {
		return errors.New("object is not zoned").
			WithType(ErrTypeInvariant).
			WithTag("object", o.ID)
	}
	r.justRegistered = nil
	if err := r.rezone(obj); err != nil {
		return err
	}
	if o.managesZones {
		return r.rezoneOverlapping(o)
	}
	return nil
}

func (r *Registry) rezone(obj SceneObject) error {
	o := obj.SceneObject()
	if err := r.detach(o); err != nil {
		return err
	}

	box := o.WorldBox()
	zones := make([]ZoneID, 0, 4)
	overflowed := false

	for i := len(r.managers) - 1; i >= 0; i-- {
		m := r.managers[i]
		mo := m.obj.SceneObject()
		if mo == o {
			continue
		}

		mbox := mo.WorldBox()
		if !mbox.IsOverlapped(box) {
			continue
		}
		// Objects enclosing the manager are not inside any of its zones.
		if box.IsContained(mbox) {
			continue
		}

		found, outsideIncluded := m.obj.OverlappingZones(obj, r.queryBuf[:0])
		r.queryBuf = found[:0]
		if len(found) == 0 && !outsideIncluded {
			r.violation(errors.New("manager reported no zones and no outside").
				WithType(ErrTypeInvariant).
				WithTag("manager", mo.ID).
				WithTag("object", o.ID))
			outsideIncluded = true
		}

		if remaining := r.maxObjectZones - len(zones); len(found) > remaining {
			found = found[:remaining]
			overflowed = true
		}
		zones = append(zones, found...)

		if !outsideIncluded {
			break
		}
	}

	if overflowed {
		instrumentOverflow()
		logs.Warn(errors.New("object overlaps too many zones").
			WithTag("object", o.ID).
			WithTag("name", o.Name).
			WithTag("max_object_zones", r.maxObjectZones))
	}

	if len(zones) == 0 {
		r.instrument()
		return r.violation(errors.New("object is not in any zone").
			WithType(ErrTypeInvariant).
			WithTag("object", o.ID).
			WithTag("name", o.Name))
	}

	for _, z := range zones {
		if err := r.link(o, z); err != nil {
			r.instrument()
			return err
		}
	}

	instrumentRezone()
	r.instrument()

	if r.verifyLinks {
		if err := r.Verify(); err != nil {
			return r.violation(err)
		}
	}
	return nil
}

// link adds o to zone z, prepending the link to both the zone bin and the
// object chain.
func (r *Registry) link(o *Object, z ZoneID) error {
	if z >= r.currZoneEnd || r.bins[z] == 0 {
		return r.violation(errors.New("manager reported an unknown zone").
			WithType(ErrTypeInvariant).
			WithTag("object", o.ID).
			WithTag("zone", z))
	}

	id, err := r.pool.Allocate()
	if err != nil {
		return errors.New("adding zone membership failed").
			WithType(ErrTypePoolExhausted).
			WithTag("object", o.ID).
			WithTag("zone", z).
			Wrap(err)
	}

	l := r.pool.get(id)
	l.zone = z
	l.object = o.ID

	sentinel := r.pool.get(r.bins[z])
	l.prevInBin = r.bins[z]
	l.nextInBin = sentinel.nextInBin
	if sentinel.nextInBin != 0 {
		r.pool.get(sentinel.nextInBin).prevInBin = id
	}
	sentinel.nextInBin = id

	l.nextInObj = o.zoneRefHead
	o.zoneRefHead = id
	o.numCurrZones++
	return nil
}

// detach removes every zone membership of o.
func (r *Registry) detach(o *Object) error {
	for id := o.zoneRefHead; id != 0; {
		l := r.pool.get(id)
		next := l.nextInObj

		r.pool.get(l.prevInBin).nextInBin = l.nextInBin
		if l.nextInBin != 0 {
			r.pool.get(l.nextInBin).prevInBin = l.prevInBin
		}

		l.prevInBin = 0
		l.nextInBin = 0
		l.nextInObj = 0
		if err := r.pool.Free(id); err != nil {
			o.zoneRefHead = next
			return r.violation(err)
		}
		id = next
	}

	o.zoneRefHead = 0
	o.numCurrZones = 0
	return nil
}

// rezoneOverlapping rezones every tracked object the broad phase reports as
// overlapping owner, except owner itself.
func (r *Registry) rezoneOverlapping(owner *Object) error {
	return r.rezoneBox(owner.WorldBox(), owner)
}

// RezoneWithin rezones every tracked object overlapping b. It is used after
// a manager moved away from b.
func (r *Registry) RezoneWithin(b spatial.Box) error {
	return r.rezoneBox(b, nil)
}

func (r *Registry) rezoneBox(b spatial.Box, skip *Object) error {
	if r.broadPhase == nil {
		return nil
	}

	var candidates []SceneObject
	r.broadPhase.FindOverlapping(b, spatial.AllTypes, func(it spatial.Item) {
		obj, ok := r.objects[ObjectID(it.ObjectID())]
		if !ok || obj.SceneObject() == skip {
			return
		}
		candidates = append(candidates, obj)
	})

	var err error
	for _, obj := range candidates {
		if rerr := r.rezone(obj); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}

// compactZonesCheck is where released zone ids would be reclaimed. Ids are
// kept stable instead, so the space only grows.
func (r *Registry) compactZonesCheck() {
	if uint32(r.currZoneEnd) == r.numActiveZones {
		return
	}
	logs.WithTag("zone_end", r.currZoneEnd).
		WithTag("active_zones", r.numActiveZones).
		Debug("zone id space has holes")
}

// NextStateKey returns a fresh stamp for a traversal pass.
func (r *Registry) NextStateKey() StateKey {
	r.stateKey++
	return r.stateKey
}

// ZoneOwner returns the manager owning zone z.
func (r *Registry) ZoneOwner(z ZoneID) (ZoneManager, bool) {
	if z >= r.currZoneEnd || r.bins[z] == 0 {
		return nil, false
	}
	owner, ok := r.owners[r.pool.get(r.bins[z]).object]
	return owner, ok
}

// Root returns the manager owning zone 0.
func (r *Registry) Root() (ZoneManager, bool) {
	if len(r.managers) == 0 || r.managers[0].rangeStart != RootZone {
		return nil, false
	}
	return r.managers[0].obj, true
}

// CurrZones returns the zones obj is a member of, most recent first.
func (r *Registry) CurrZones(obj SceneObject) []ZoneID {
	o := obj.SceneObject()
	zones := make([]ZoneID, 0, o.numCurrZones)
	for id := o.zoneRefHead; id != 0; id = r.pool.get(id).nextInObj {
		zones = append(zones, r.pool.get(id).zone)
	}
	return zones
}

// CurrZone returns the first zone of the object chain.
func (r *Registry) CurrZone(obj SceneObject) (ZoneID, bool) {
	o := obj.SceneObject()
	if o.zoneRefHead == 0 {
		return 0, false
	}
	return r.pool.get(o.zoneRefHead).zone, true
}

// ForEachMember calls fn for every member of zone z. fn must not change
// zone memberships.
func (r *Registry) ForEachMember(z ZoneID, fn func(SceneObject)) {
	if z >= r.currZoneEnd || r.bins[z] == 0 {
		return
	}
	for id := r.pool.get(r.bins[z]).nextInBin; id != 0; id = r.pool.get(id).nextInBin {
		if obj, ok := r.objects[r.pool.get(id).object]; ok {
			fn(obj)
		}
	}
}

// Members returns the ids of the members of zone z.
func (r *Registry) Members(z ZoneID) []ObjectID {
	var ids []ObjectID
	r.ForEachMember(z, func(obj SceneObject) {
		ids = append(ids, obj.SceneObject().ID)
	})
	return ids
}

// IsZoneActive reports whether z is currently owned by a manager.
func (r *Registry) IsZoneActive(z ZoneID) bool {
	return z < r.currZoneEnd && r.bins[z] != 0
}

func (r *Registry) ZoneEnd() ZoneID {
	return r.currZoneEnd
}

func (r *Registry) NumActiveZones() uint32 {
	return r.numActiveZones
}

func (r *Registry) NumManagers() int {
	return len(r.managers)
}

// IsZoned reports whether obj is tracked by the registry.
func (r *Registry) IsZoned(obj SceneObject) bool {
	o := obj.SceneObject()
	tracked, ok := r.objects[o.ID]
	return ok && tracked.SceneObject() == o
}

func (r *Registry) instrument() {
	instrumentRegistry(len(r.managers), r.numActiveZones, uint32(r.currZoneEnd), r.pool.InUse(), r.pool.Blocks())
}
