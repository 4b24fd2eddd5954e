/*
Package kernel boots the memory core.

Boot builds, from one boot configuration, every component of the core:
  - the logger, which also becomes zap's global logger so that halts are reported through it
  - the prometheus registry and the collectors registered to it
  - the disk driver
  - the physical page allocator
  - the buffer cache on top of the disk driver

Boot runs once per process. The booted kernel is kept as process-wide state and is never torn down.
New builds the same components without touching the process-wide state, for tests and tools
which need more than one instance.
*/
package kernel

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HayatoShiba/xvmem/logger"
	"github.com/HayatoShiba/xvmem/memory"
	"github.com/HayatoShiba/xvmem/metrics"
	"github.com/HayatoShiba/xvmem/param"
	"github.com/HayatoShiba/xvmem/storage/buffer"
	"github.com/HayatoShiba/xvmem/storage/disk"
)

// ErrAlreadyBooted is returned by Boot when the kernel has been booted before
var ErrAlreadyBooted = errors.New("kernel: already booted")

// Kernel holds the components of the memory core
type Kernel struct {
	config   param.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	disk     *disk.Manager
	memory   *memory.Manager
	cache    *buffer.Manager
}

var (
	bootMu sync.Mutex
	booted *Kernel
)

// Boot builds the kernel from cfg and keeps it as the process-wide kernel.
// it can succeed only once per process
func Boot(cfg param.Config) (*Kernel, error) {
	bootMu.Lock()
	defer bootMu.Unlock()
	if booted != nil {
		return nil, ErrAlreadyBooted
	}
	k, err := New(cfg)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(k.logger)
	booted = k
	k.logger.Info("kernel booted",
		zap.Int("cpus", cfg.CPUs),
		zap.Int("pages", k.memory.NumPages()),
		zap.Int("buffers", k.cache.Size()))
	return k, nil
}

// Get returns the process-wide kernel, or nil before Boot succeeds
func Get() *Kernel {
	bootMu.Lock()
	defer bootMu.Unlock()
	return booted
}

// New builds the kernel from cfg
func New(cfg param.Config) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	lg, err := logger.New(cfg.Log)
	if err != nil {
		return nil, errors.Wrap(err, "logger.New failed")
	}
	reg := prometheus.NewRegistry()
	mt := metrics.New(reg)

	dm, err := disk.NewManager(cfg.DiskDir, disk.WithLogger(lg), disk.WithMetrics(mt))
	if err != nil {
		return nil, errors.Wrap(err, "disk.NewManager failed")
	}
	mm, err := memory.NewManager(cfg, memory.WithLogger(lg), memory.WithMetrics(mt))
	if err != nil {
		return nil, errors.Wrap(err, "memory.NewManager failed")
	}
	bm, err := buffer.NewManager(dm, cfg, buffer.WithLogger(lg), buffer.WithMetrics(mt))
	if err != nil {
		return nil, errors.Wrap(err, "buffer.NewManager failed")
	}
	return &Kernel{
		config:   cfg,
		logger:   lg,
		registry: reg,
		metrics:  mt,
		disk:     dm,
		memory:   mm,
		cache:    bm,
	}, nil
}

// Config returns the boot configuration
func (k *Kernel) Config() param.Config {
	return k.config
}

// Logger returns the logger
func (k *Kernel) Logger() *zap.Logger {
	return k.logger
}

// Registry returns the registry holding the collectors of the kernel
func (k *Kernel) Registry() *prometheus.Registry {
	return k.registry
}

// Metrics returns the collectors
func (k *Kernel) Metrics() *metrics.Metrics {
	return k.metrics
}

// Memory returns the physical page allocator
func (k *Kernel) Memory() *memory.Manager {
	return k.memory
}

// Cache returns the buffer cache
func (k *Kernel) Cache() *buffer.Manager {
	return k.cache
}

// Disk returns the disk driver
func (k *Kernel) Disk() *disk.Manager {
	return k.disk
}

// Sync flushes the device images and the logger
func (k *Kernel) Sync() error {
	if err := k.disk.Sync(); err != nil {
		return errors.Wrap(err, "disk.Sync failed")
	}
	// syncing stdout/stderr fails on some platforms, which is not worth reporting
	_ = k.logger.Sync()
	return nil
}
