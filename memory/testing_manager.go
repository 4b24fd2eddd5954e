package memory

import (
	"github.com/HayatoShiba/xvmem/metrics"
	"github.com/HayatoShiba/xvmem/param"
)

// TestingNewManager initializes the allocator with npages pages above KERNBASE and ncpu cpus
func TestingNewManager(ncpu, npages int) (*Manager, *metrics.Metrics, error) {
	cfg := param.DefaultConfig()
	cfg.CPUs = ncpu
	cfg.KernelEnd = param.KERNBASE
	cfg.PhysTop = param.KERNBASE + uint64(npages)*param.PGSIZE
	mt := metrics.New(nil)
	m, err := NewManager(cfg, WithMetrics(mt))
	return m, mt, err
}
