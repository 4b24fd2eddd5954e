//go:build !windows

package memory

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// mapArena maps size bytes of anonymous memory standing in for physical RAM.
// pages are committed lazily by the OS so a large range is cheap until touched
func mapArena(size int) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrap(err, "unix.Mmap failed")
	}
	return b, nil
}
