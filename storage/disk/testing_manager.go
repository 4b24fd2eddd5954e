package disk

import (
	"testing"

	"github.com/HayatoShiba/xvmem/common"
	"github.com/HayatoShiba/xvmem/param"
)

// TestingNewFileManager initializes disk manager with image files under t.TempDir()
func TestingNewFileManager(t *testing.T) (*Manager, error) {
	return NewManager(t.TempDir())
}

// TestingNewBufferManager initializes disk manager with in-memory images. This prevents unnecessary disk I/O.
func TestingNewBufferManager() (*Manager, error) {
	return NewManager("")
}

// TestingBlock is a Block which is not managed by a buffer cache
type TestingBlock struct {
	Dev common.Device
	No  common.BlockNo
	Buf [param.BSIZE]byte
}

// Device returns the device of the block
func (b *TestingBlock) Device() common.Device { return b.Dev }

// BlockNo returns the block number
func (b *TestingBlock) BlockNo() common.BlockNo { return b.No }

// Data returns the block contents
func (b *TestingBlock) Data() []byte { return b.Buf[:] }
