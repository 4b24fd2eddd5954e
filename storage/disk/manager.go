/*
Disk manager is the block-device driver the buffer cache fills and flushes buffers with.

Every device is a flat image of BSIZE blocks: block n lives at byte offset n*BSIZE.
Images are files under a directory (one file per device, "<dev>.img"),
or byte slices when no directory is configured. The latter is used in tests and
by boots which do not need the blocks to outlive the process.

Requests are synchronous and serialized: ReadWrite returns after the transfer has completed,
and one request is in flight at a time, as with a single virtio queue.
Reading a block that has never been written yields zeros, writing past the end of an image extends it.
*/
package disk

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/HayatoShiba/xvmem/common"
	"github.com/HayatoShiba/xvmem/metrics"
	"github.com/HayatoShiba/xvmem/param"
)

// Block is what the driver transfers: BSIZE bytes of one block of one device
type Block interface {
	Device() common.Device
	BlockNo() common.BlockNo
	Data() []byte
}

// Manager manages device images
type Manager struct {
	// opener opens the image of a device
	opener opener
	// mu serializes requests
	mu sync.Mutex

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures the Manager
type Option func(*Manager)

// WithLogger sets the logger. zap.NewNop() is used by default
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l.Named("disk")
		}
	}
}

// WithMetrics sets the collectors the driver reports to
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		if mt != nil {
			m.metrics = mt
		}
	}
}

// NewManager initializes disk manager with device images under dir.
// when dir is empty, images are kept in memory
func NewManager(dir string, opts ...Option) (*Manager, error) {
	var op opener
	if dir == "" {
		op = newBufferOpener()
	} else {
		fo, err := newFileOpener(dir)
		if err != nil {
			return nil, errors.Wrap(err, "newFileOpener failed")
		}
		op = fo
	}
	m := &Manager{
		opener:  op,
		logger:  zap.NewNop(),
		metrics: metrics.New(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// ReadWrite reads the block from its device into blk.Data(), or writes blk.Data() to the device when write is true.
// it returns after the transfer has completed
func (m *Manager) ReadWrite(blk Block, write bool) error {
	data := blk.Data()
	if len(data) != param.BSIZE {
		return errors.Errorf("block size must be %d: %d", param.BSIZE, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.opener.open(blk.Device())
	if err != nil {
		return errors.Wrap(err, "open failed")
	}
	offset := blockOffset(blk.BlockNo())
	if write {
		if err := writeAt(st, data, offset); err != nil {
			return errors.Wrapf(err, "write dev %d block %d failed", blk.Device(), blk.BlockNo())
		}
		m.metrics.DiskWrites.Inc()
		m.logger.Debug("wrote block", zap.Uint32("dev", uint32(blk.Device())), zap.Uint32("blockno", uint32(blk.BlockNo())))
		return nil
	}
	if err := readAt(st, data, offset); err != nil {
		return errors.Wrapf(err, "read dev %d block %d failed", blk.Device(), blk.BlockNo())
	}
	m.metrics.DiskReads.Inc()
	m.logger.Debug("read block", zap.Uint32("dev", uint32(blk.Device())), zap.Uint32("blockno", uint32(blk.BlockNo())))
	return nil
}

// Sync flushes every opened image
func (m *Manager) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for dev, st := range m.opener.opened() {
		if err := st.Sync(); err != nil {
			return errors.Wrapf(err, "sync dev %d failed", dev)
		}
	}
	return nil
}

// blockOffset calculates the byte offset of the block within the image
// the block size is fixed so that it is easy to calculate
func blockOffset(blockno common.BlockNo) int64 {
	return int64(blockno) * param.BSIZE
}

// readAt reads len(p) bytes at offset. the part beyond the end of the image is 0-filled
func readAt(st storage, p []byte, offset int64) error {
	size, err := st.Size()
	if err != nil {
		return errors.Wrap(err, "Size failed")
	}
	if offset >= size {
		clear(p)
		return nil
	}
	if _, err := st.Seek(offset, io.SeekStart); err != nil {
		return errors.Wrap(err, "Seek failed")
	}
	n, err := io.ReadFull(st, p)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		clear(p[n:])
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "io.ReadFull failed")
	}
	return nil
}

// writeAt writes p at offset
func writeAt(st storage, p []byte, offset int64) error {
	if _, err := st.Seek(offset, io.SeekStart); err != nil {
		return errors.Wrap(err, "Seek failed")
	}
	if _, err := st.Write(p); err != nil {
		return errors.Wrap(err, "Write failed")
	}
	return nil
}
