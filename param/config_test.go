package param

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGROUND(t *testing.T) {
	tests := []struct {
		name string
		addr uint64
		up   uint64
		down uint64
	}{
		{
			name: "aligned",
			addr: KERNBASE,
			up:   KERNBASE,
			down: KERNBASE,
		},
		{
			name: "in the middle of a page",
			addr: KERNBASE + 1,
			up:   KERNBASE + PGSIZE,
			down: KERNBASE,
		},
		{
			name: "last byte of a page",
			addr: KERNBASE + PGSIZE - 1,
			up:   KERNBASE + PGSIZE,
			down: KERNBASE,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.up, PGROUNDUP(tt.addr))
			assert.Equal(t, tt.down, PGROUNDDOWN(tt.addr))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		ok     bool
	}{
		{
			name:   "reference configuration",
			modify: func(c *Config) {},
			ok:     true,
		},
		{
			name:   "no cpu",
			modify: func(c *Config) { c.CPUs = 0 },
		},
		{
			name:   "no buffer",
			modify: func(c *Config) { c.Buffers = 0 },
		},
		{
			name:   "no bucket",
			modify: func(c *Config) { c.Buckets = -1 },
		},
		{
			name:   "kernel end is not set",
			modify: func(c *Config) { c.KernelEnd = 0 },
		},
		{
			name:   "no page fits above the kernel",
			modify: func(c *Config) { c.PhysTop = c.KernelEnd + 10 },
		},
		{
			name: "exactly one page fits",
			modify: func(c *Config) {
				c.KernelEnd = KERNBASE
				c.PhysTop = KERNBASE + PGSIZE
			},
			ok: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(&c)
			err := c.Validate()
			if tt.ok {
				assert.Nil(t, err)
			} else {
				assert.NotNil(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("fields not in the file keep the default", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "core.yaml")
		content := "cpus: 4\nbuckets: 7\nlog:\n  level: debug\n"
		require.Nil(t, os.WriteFile(path, []byte(content), 0600))

		cfg, err := Load(path)
		assert.Nil(t, err)
		assert.Equal(t, 4, cfg.CPUs)
		assert.Equal(t, 7, cfg.Buckets)
		assert.Equal(t, NBUF, cfg.Buffers)
		assert.Equal(t, PHYSTOP, cfg.PhysTop)
		assert.Equal(t, "debug", cfg.Log.Level)
	})
	t.Run("invalid configuration is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "core.yaml")
		require.Nil(t, os.WriteFile(path, []byte("buffers: 0\n"), 0600))

		_, err := Load(path)
		assert.NotNil(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.NotNil(t, err)
	})
}
