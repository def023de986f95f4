package zone

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/golang/geo/r3"
)

// ScopeScene reports to conn every scopeable object within distance of
// viewpoint that is reachable through the zone graph, plus the scopeable
// managers enclosing viewpoint.
func (r *Registry) ScopeScene(viewpoint r3.Vector, distance float64, conn Connection) error {
	key := r.NextStateKey()
	reported := 0
	report := func(obj SceneObject) {
		if inScope(obj.SceneObject(), viewpoint, distance) {
			reported++
			conn.ObjectInScope(obj)
		}
	}

	// Managers passed on the way up are reported whatever their distance.
	ascend := func(obj SceneObject) {
		if obj.SceneObject().Scopeable {
			reported++
			conn.ObjectInScope(obj)
		}
	}

	state, err := r.MarkReachable(viewpoint, viewpoint, distance, key, ascend)
	if err != nil {
		return err
	}

	for _, z := range state.Zones() {
		r.ForEachMember(z, func(obj SceneObject) {
			if obj.SceneObject().Visit(key) {
				report(obj)
			}
		})
	}

	instrumentScopePass(reported)
	return nil
}

// MarkReachable computes the zones reachable from viewpoint. The walk starts
// in the zone containing start, ascends through the enclosing managers as
// long as their outside is reachable, then lets every other manager whose
// outer zone was reached mark its own reachable zones.
//
// Managers visited during the ascent are stamped with key and passed to
// visit before they are stamped.
func (r *Registry) MarkReachable(start r3.Vector, viewpoint r3.Vector, distance float64, key StateKey, visit func(SceneObject)) (ScopeState, error) {
	owner, _, err := r.FindZone(start)
	if err != nil {
		return nil, err
	}

	state := make(ScopeState, r.currZoneEnd)
	var current SceneObject = owner
	for current != nil {
		o := current.SceneObject()
		if o.lastStateKey != key {
			visit(current)
			o.lastStateKey = key
		}

		scoper, ok := current.(ZoneScoper)
		if !ok {
			return state, r.violation(errors.New("zone manager cannot be scoped").
				WithType(ErrTypeInvariant).
				WithTag("object", o.ID).
				WithTag("name", o.Name))
		}
		if !scoper.TryAscendPast(viewpoint, distance, state) {
			break
		}

		if o.numCurrZones != 1 {
			return state, r.violation(errors.New("ascending past a manager that is not in exactly one zone").
				WithType(ErrTypeInvariant).
				WithTag("object", o.ID).
				WithTag("zones", o.numCurrZones))
		}

		outer, _ := r.CurrZone(current)
		next, ok := r.ZoneOwner(outer)
		if !ok {
			return state, r.violation(errors.New("zone has no owner").
				WithType(ErrTypeInvariant).
				WithTag("zone", outer))
		}
		current = next
	}

	for i := 1; i < len(r.managers); i++ {
		m := r.managers[i]
		o := m.obj.SceneObject()
		if o.lastStateKey == key {
			continue
		}

		outer, ok := r.CurrZone(m.obj)
		if !ok || !state.Reachable(outer) {
			continue
		}

		if scoper, ok := m.obj.(ZoneScoper); ok {
			scoper.MarkReachableChildren(viewpoint, distance, state)
		}
	}

	return state, nil
}

// inScope tests the object bounding sphere against the scope distance. The
// cheap squared center distance test runs first.
func inScope(o *Object, viewpoint r3.Vector, distance float64) bool {
	if !o.Scopeable {
		return false
	}

	sphere := o.WorldSphere()
	difSq := sphere.Center.Sub(viewpoint).Norm2()
	if difSq < distance*distance {
		return true
	}
	return math.Sqrt(difSq)-sphere.Radius < distance
}
