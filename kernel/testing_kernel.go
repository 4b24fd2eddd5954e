package kernel

import (
	"testing"

	"go.uber.org/zap"

	"github.com/HayatoShiba/xvmem/param"
)

// TestingConfig returns a small configuration which keeps devices in memory.
// the logger writes only errors to stderr
func TestingConfig(npages int) param.Config {
	cfg := param.DefaultConfig()
	cfg.CPUs = 4
	cfg.Buffers = 8
	cfg.KernelEnd = param.KERNBASE
	cfg.PhysTop = param.KERNBASE + uint64(npages)*param.PGSIZE
	cfg.Log.Level = "error"
	cfg.Log.OutputFile = "stderr"
	return cfg
}

// testingResetBoot makes the test start unbooted and, when it ends,
// forgets the booted kernel and restores zap's global logger
func testingResetBoot(t testing.TB) {
	t.Helper()
	reset := func() {
		bootMu.Lock()
		booted = nil
		bootMu.Unlock()
	}
	reset()
	prev := zap.L()
	t.Cleanup(func() {
		reset()
		zap.ReplaceGlobals(prev)
	})
}
