package param

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/HayatoShiba/xvmem/logger"
)

// Config is the boot configuration.
// it is read once before the core boots and is never changed afterward
type Config struct {
	// CPUs is the number of cores, one free list each
	CPUs int `yaml:"cpus"`
	// Buffers is the number of buffer slots in the buffer cache
	Buffers int `yaml:"buffers"`
	// Buckets is the number of hash buckets of the buffer cache
	Buckets int `yaml:"buckets"`
	// KernelEnd is the first address after the kernel image.
	// pages below it are never handed out by the allocator
	KernelEnd uint64 `yaml:"kernel_end"`
	// PhysTop is the end of physical memory
	PhysTop uint64 `yaml:"phys_top"`
	// DiskDir is the directory holding device images.
	// when empty, devices are kept in memory
	DiskDir string `yaml:"disk_dir"`
	// Log configures the logger
	Log logger.Config `yaml:"log"`
}

// defaultKernelEnd leaves room for the kernel text and data of the reference build
const defaultKernelEnd = KERNBASE + 0x26000

// DefaultConfig returns the reference configuration
func DefaultConfig() Config {
	return Config{
		CPUs:      NCPU,
		Buffers:   NBUF,
		Buckets:   NBUCKET,
		KernelEnd: defaultKernelEnd,
		PhysTop:   PHYSTOP,
		Log: logger.Config{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the yaml file at path on top of the reference configuration
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "os.ReadFile failed")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrap(err, "yaml.Unmarshal failed")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// Validate checks whether the configuration can boot
func (c Config) Validate() error {
	if c.CPUs <= 0 {
		return errors.Errorf("cpus must be positive: %d", c.CPUs)
	}
	if c.Buffers <= 0 {
		return errors.Errorf("buffers must be positive: %d", c.Buffers)
	}
	if c.Buckets <= 0 {
		return errors.Errorf("buckets must be positive: %d", c.Buckets)
	}
	if c.KernelEnd == 0 {
		return errors.New("kernel_end must be set")
	}
	// at least one page must fit between the kernel and the end of memory
	if PGROUNDUP(c.KernelEnd)+PGSIZE > c.PhysTop {
		return errors.Errorf("no page fits between kernel_end %#x and phys_top %#x", c.KernelEnd, c.PhysTop)
	}
	return nil
}
