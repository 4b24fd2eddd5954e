// Package metrics defines the prometheus collectors of the memory core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "xvmem"

// sources of an allocated page
const (
	SourceLocal = "local"
	SourceSteal = "steal"
)

// Metrics holds the collectors of the allocator, the buffer cache and the disk driver
type Metrics struct {
	// PageAllocs counts successful page allocations by cpu and source (local or steal)
	PageAllocs *prometheus.CounterVec
	// PageAllocFailures counts allocations that found no free page on any cpu
	PageAllocFailures prometheus.Counter
	// PageFrees counts freed pages by cpu
	PageFrees *prometheus.CounterVec

	// CacheHits counts acquires served from a cached buffer
	CacheHits prometheus.Counter
	// CacheMisses counts acquires that had to repurpose a buffer
	CacheMisses prometheus.Counter
	// CacheEvictions counts cached blocks dropped to repurpose their buffer for another block
	CacheEvictions prometheus.Counter
	// CacheLostRaces counts acquires that found the block inserted by a concurrent acquire
	CacheLostRaces prometheus.Counter

	// DiskReads counts blocks read from devices
	DiskReads prometheus.Counter
	// DiskWrites counts blocks written to devices
	DiskWrites prometheus.Counter
}

// New creates the collectors and registers them to reg.
// when reg is nil, the collectors are not registered anywhere
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PageAllocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kalloc",
			Name:      "page_allocs_total",
			Help:      "Number of allocated physical pages.",
		}, []string{"cpu", "source"}),
		PageAllocFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kalloc",
			Name:      "page_alloc_failures_total",
			Help:      "Number of allocations that found no free page.",
		}),
		PageFrees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kalloc",
			Name:      "page_frees_total",
			Help:      "Number of freed physical pages.",
		}, []string{"cpu"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bcache",
			Name:      "hits_total",
			Help:      "Number of acquires served by a cached buffer.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bcache",
			Name:      "misses_total",
			Help:      "Number of acquires that did not find the block in its bucket.",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bcache",
			Name:      "evictions_total",
			Help:      "Number of cached blocks dropped to repurpose their buffer.",
		}),
		CacheLostRaces: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bcache",
			Name:      "lost_races_total",
			Help:      "Number of acquires that found the block inserted concurrently.",
		}),
		DiskReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "disk",
			Name:      "reads_total",
			Help:      "Number of blocks read from devices.",
		}),
		DiskWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "disk",
			Name:      "writes_total",
			Help:      "Number of blocks written to devices.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.PageAllocs, m.PageAllocFailures, m.PageFrees,
			m.CacheHits, m.CacheMisses, m.CacheEvictions, m.CacheLostRaces,
			m.DiskReads, m.DiskWrites,
		)
	}
	return m
}
