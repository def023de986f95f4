package zone

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/golang/geo/r3"
)

// FindZone returns the innermost zone containing p and its owner. The search
// starts in the root zone and descends into the managers whose outer zone is
// the current one until none of them contains the point.
func (r *Registry) FindZone(p r3.Vector) (ZoneManager, ZoneID, error) {
	owner, ok := r.Root()
	if !ok {
		return nil, 0, errors.New("no root zone manager registered").
			WithType(ErrTypeNotManaged)
	}
	curr := RootZone

	// Each descent enters a different manager, so the walk cannot be deeper
	// than the number of managers.
	for depth := 0; depth < len(r.managers); depth++ {
		descended := false
		for i := 1; i < len(r.managers); i++ {
			m := r.managers[i]
			z, ok := r.CurrZone(m.obj)
			if !ok || z != curr {
				continue
			}

			inner, inside := m.obj.PointZone(p)
			if !inside {
				continue
			}
			if inner < m.rangeStart || inner >= m.rangeStart+ZoneID(m.numZones) {
				return owner, curr, r.violation(errors.New("manager returned a zone it does not own").
					WithType(ErrTypeInvariant).
					WithTag("manager", m.obj.SceneObject().ID).
					WithTag("zone", inner))
			}

			curr = inner
			owner = m.obj
			descended = true
			break
		}

		if !descended {
			return owner, curr, nil
		}
	}

	return owner, curr, r.violation(errors.New("zone lookup did not converge").
		WithType(ErrTypeInvariant).
		WithTag("zone", curr))
}
