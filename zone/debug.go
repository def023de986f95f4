package zone

type ManagerInfo struct {
	ObjectID   ObjectID `json:"object_id"`
	Name       string   `json:"name"`
	RangeStart ZoneID   `json:"range_start"`
	NumZones   uint32   `json:"num_zones"`
	OuterZones []ZoneID `json:"outer_zones"`
}

type ZoneInfo struct {
	ID      ZoneID     `json:"id"`
	Owner   ObjectID   `json:"owner"`
	Members []ObjectID `json:"members"`
}

type DebugInfo struct {
	ZoneEnd       ZoneID        `json:"zone_end"`
	ActiveZones   uint32        `json:"active_zones"`
	ZonedObjects  int           `json:"zoned_objects"`
	LinksInUse    int           `json:"links_in_use"`
	PoolBlocks    int           `json:"pool_blocks"`
	PoolCapacity  int           `json:"pool_capacity"`
	Managers      []ManagerInfo `json:"managers"`
	Zones         []ZoneInfo    `json:"zones"`
	VerifyFailure string        `json:"verify_failure,omitempty"`
}

// GetDebugInfo returns a snapshot of the registry for debugging.
func (r *Registry) GetDebugInfo() DebugInfo {
	info := DebugInfo{
		ZoneEnd:      r.currZoneEnd,
		ActiveZones:  r.numActiveZones,
		ZonedObjects: len(r.objects),
		LinksInUse:   r.pool.InUse(),
		PoolBlocks:   r.pool.Blocks(),
		PoolCapacity: r.pool.Capacity(),
	}

	for _, m := range r.managers {
		o := m.obj.SceneObject()
		info.Managers = append(info.Managers, ManagerInfo{
			ObjectID:   o.ID,
			Name:       o.Name,
			RangeStart: m.rangeStart,
			NumZones:   m.numZones,
			OuterZones: r.CurrZones(m.obj),
		})
	}

	for z := ZoneID(0); z < r.currZoneEnd; z++ {
		if !r.IsZoneActive(z) {
			continue
		}
		info.Zones = append(info.Zones, ZoneInfo{
			ID:      z,
			Owner:   r.pool.get(r.bins[z]).object,
			Members: r.Members(z),
		})
	}

	if err := r.Verify(); err != nil {
		info.VerifyFailure = err.Error()
	}
	return info
}
