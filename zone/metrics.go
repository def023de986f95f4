package zone

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	zoneManagers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zone_managers",
		Help: "The number of registered zone managers.",
	})

	zonesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zones_active",
		Help: "The number of zones owned by a manager.",
	})

	zonesAllocated = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zones_allocated",
		Help: "The number of zone ids handed out, including released ones.",
	})

	zoneLinksInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zone_links_in_use",
		Help: "The number of allocated zone membership links.",
	})

	zoneLinkPoolBlocks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zone_link_pool_blocks",
		Help: "The number of blocks allocated by the zone link pool.",
	})

	zoneRezoneTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zone_rezone_total",
		Help: "The total number of object rezones.",
	})

	zoneOverflowTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zone_overflow_total",
		Help: "The total number of rezones truncated by the per object zone limit.",
	})

	zoneInvariantViolationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zone_invariant_violations_total",
		Help: "The total number of zone structure invariant violations.",
	})

	zoneScopePassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zone_scope_passes_total",
		Help: "The total number of scoping passes.",
	})

	zoneScopeObjectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zone_scope_objects_total",
		Help: "The total number of objects reported in scope.",
	})
)

func instrumentRegistry(managers int, activeZones uint32, allocatedZones uint32, linksInUse int, poolBlocks int) {
	zoneManagers.Set(float64(managers))
	zonesActive.Set(float64(activeZones))
	zonesAllocated.Set(float64(allocatedZones))
	zoneLinksInUse.Set(float64(linksInUse))
	zoneLinkPoolBlocks.Set(float64(poolBlocks))
}

func instrumentRezone() {
	zoneRezoneTotal.Inc()
}

func instrumentOverflow() {
	zoneOverflowTotal.Inc()
}

func instrumentInvariantViolation() {
	zoneInvariantViolationsTotal.Inc()
}

func instrumentScopePass(objects int) {
	zoneScopePassesTotal.Inc()
	zoneScopeObjectsTotal.Add(float64(objects))
}
