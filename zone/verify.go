package zone

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Verify walks every bin, object chain and the pool free list and checks
// that they agree with each other. It returns the first inconsistency found.
func (r *Registry) Verify() error {
	var end ZoneID
	for i, m := range r.managers {
		if i == 0 && m.rangeStart != RootZone {
			return errors.New("first manager does not own the root zone").WithType(ErrTypeInvariant).
				WithTag("range_start", m.rangeStart)
		}
		if m.rangeStart < end {
			return errors.New("manager zone ranges overlap").WithType(ErrTypeInvariant).
				WithTag("object", m.obj.SceneObject().ID).
				WithTag("range_start", m.rangeStart)
		}
		end = m.rangeStart + ZoneID(m.numZones)
		if end > r.currZoneEnd {
			return errors.New("manager zone range past the allocated zone end").WithType(ErrTypeInvariant).
				WithTag("object", m.obj.SceneObject().ID)
		}
	}

	sentinels := 0
	inBins := make(map[linkID]struct{})
	for z := ZoneID(0); z < r.currZoneEnd; z++ {
		head := r.bins[z]
		if head == 0 {
			continue
		}
		sentinels++

		s := r.pool.get(head)
		if s.kind != linkSentinel || s.zone != z {
			return errors.New("zone bin is not headed by its sentinel").WithType(ErrTypeInvariant).WithTag("zone", z)
		}
		if _, ok := r.owners[s.object]; !ok {
			return errors.New("zone sentinel owner is not a manager").WithType(ErrTypeInvariant).WithTag("zone", z)
		}

		prev := head
		for id := s.nextInBin; id != 0; id = r.pool.get(id).nextInBin {
			l := r.pool.get(id)
			if l.kind != linkMember || l.zone != z {
				return errors.New("zone bin holds a foreign link").WithType(ErrTypeInvariant).
					WithTag("zone", z).
					WithTag("link", id)
			}
			if l.prevInBin != prev {
				return errors.New("zone bin back link is broken").WithType(ErrTypeInvariant).
					WithTag("zone", z).
					WithTag("link", id)
			}
			if _, ok := r.objects[l.object]; !ok {
				return errors.New("zone member is not a zoned object").WithType(ErrTypeInvariant).
					WithTag("zone", z).
					WithTag("object", l.object)
			}
			if _, ok := inBins[id]; ok {
				return errors.New("link is in more than one bin position").WithType(ErrTypeInvariant).WithTag("link", id)
			}
			inBins[id] = struct{}{}
			prev = id
		}
	}

	inChains := 0
	for _, obj := range r.objects {
		o := obj.SceneObject()
		n := 0
		for id := o.zoneRefHead; id != 0; id = r.pool.get(id).nextInObj {
			l := r.pool.get(id)
			if l.kind != linkMember || l.object != o.ID {
				return errors.New("object chain holds a foreign link").WithType(ErrTypeInvariant).
					WithTag("object", o.ID).
					WithTag("link", id)
			}
			if _, ok := inBins[id]; !ok {
				return errors.New("object chain link is missing from its bin").WithType(ErrTypeInvariant).
					WithTag("object", o.ID).
					WithTag("zone", l.zone)
			}
			n++
			if n > r.maxObjectZones {
				return errors.New("object chain is too long").WithType(ErrTypeInvariant).WithTag("object", o.ID)
			}
		}
		if n != o.numCurrZones {
			return errors.New("object zone count does not match its chain").WithType(ErrTypeInvariant).
				WithTag("object", o.ID).
				WithTag("count", o.numCurrZones).
				WithTag("chain", n)
		}
		inChains += n
	}

	if inChains != len(inBins) {
		return errors.New("bin links and chain links differ").WithType(ErrTypeInvariant).
			WithTag("bins", len(inBins)).
			WithTag("chains", inChains)
	}
	if r.pool.InUse() != inChains+sentinels {
		return errors.New("link pool usage does not match the zone links").WithType(ErrTypeInvariant).
			WithTag("in_use", r.pool.InUse()).
			WithTag("links", inChains+sentinels)
	}
	if free := r.pool.freeCount(); free != r.pool.Capacity()-r.pool.InUse() {
		return errors.New("link pool free list is corrupted").WithType(ErrTypeInvariant).
			WithTag("free", free).
			WithTag("capacity", r.pool.Capacity())
	}

	return nil
}
